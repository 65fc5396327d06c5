// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FeatureGate reports whether a feature is enabled for a learner.
// *config.FeatureFlags satisfies it.
type FeatureGate interface {
	IsEnabledFor(feature, learnerID string) bool
}

func validationError(op string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.WrapError("query", op, shared.ErrInvalidInput, err.Error(), err)
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return shared.WrapError("query", op, shared.ErrInvalidInput, strings.Join(parts, "; "), err)
}

// enabled treats a nil gate as "everything on".
func enabled(gate FeatureGate, feature, learnerID string) bool {
	if gate == nil || feature == "" {
		return true
	}
	return gate.IsEnabledFor(feature, learnerID)
}

// loadSnapshot reads the learner's attendance for [trialStart, today] and
// derives the progress snapshot.
func loadSnapshot(
	ctx context.Context,
	attendance progress.AttendanceRepository,
	p *learner.Profile,
	today time.Time,
) (progress.Snapshot, error) {
	if p.TrialStartDate.After(today) {
		return progress.ComputeSnapshot(p.TrialStartDate, today, nil)
	}

	records, err := attendance.ListBetween(ctx, p.ID, p.TrialStartDate, today)
	if err != nil {
		return progress.Snapshot{}, fmt.Errorf("load attendance: %w", err)
	}
	return progress.ComputeSnapshot(p.TrialStartDate, today, progress.CompletedDates(records))
}
