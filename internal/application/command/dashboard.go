package command

import (
	"context"

	"github.com/hobby-university/learner-hub/pkg/logger"
)

// DashboardInvalidator drops a learner's cached dashboards.
// *redis.DashboardCache satisfies it.
type DashboardInvalidator interface {
	Invalidate(ctx context.Context, learnerID string) error
}

// invalidateDashboard runs before the command returns, so the learner's next
// dashboard read already misses the cache. A failure leaves the cached view
// to expire with its TTL.
func invalidateDashboard(ctx context.Context, d DashboardInvalidator, log *logger.Logger, learnerID string) {
	if d == nil {
		return
	}
	if err := d.Invalidate(ctx, learnerID); err != nil {
		log.Warn("dashboard cache invalidation failed", logger.LearnerID(learnerID), logger.Err(err))
	}
}
