package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

// minGenerationTTL keeps a learner's generation counter alive well past the
// views stamped with it. If the counter expired first it would restart at 0
// and could resurrect a view written under the old 0.
const minGenerationTTL = 48 * time.Hour

// DashboardCache stores rendered dashboard views per learner, generation and
// calendar day. A new day produces a new key, so yesterday's view never leaks
// into today.
//
// Invalidate bumps the learner's generation. A reader that computed its view
// before the bump still writes it under the old generation, where no later
// reader looks.
type DashboardCache struct {
	cache  *Cache
	ttl    time.Duration
	genTTL time.Duration
}

// NewDashboardCache creates a new DashboardCache.
func NewDashboardCache(cache *Cache, ttl time.Duration) *DashboardCache {
	if ttl <= 0 {
		ttl = TTLDashboard
	}
	return &DashboardCache{cache: cache, ttl: ttl, genTTL: max(minGenerationTTL, 2*ttl)}
}

// Generation returns the learner's current cache generation, 0 if none.
func (d *DashboardCache) Generation(ctx context.Context, learnerID string) (int64, error) {
	gen, err := d.cache.client.Get(ctx, DashboardGenerationKey(learnerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get loads a cached view into dest. ok is false on a miss.
func (d *DashboardCache) Get(ctx context.Context, learnerID string, gen int64, day time.Time, dest any) (bool, error) {
	err := d.cache.Get(ctx, DashboardKey(learnerID, gen, timeutil.FormatDate(day)), dest)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Set caches a view under gen.
func (d *DashboardCache) Set(ctx context.Context, learnerID string, gen int64, day time.Time, view any) error {
	return d.cache.Set(ctx, DashboardKey(learnerID, gen, timeutil.FormatDate(day)), view, d.ttl)
}

// Invalidate moves the learner to a new generation, then deletes the views
// of earlier ones.
func (d *DashboardCache) Invalidate(ctx context.Context, learnerID string) error {
	key := DashboardGenerationKey(learnerID)

	pipe := d.cache.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, d.genTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return d.cache.DeleteByPattern(ctx, DashboardPattern(learnerID))
}

// DashboardGenerationKey holds the learner's generation counter. It sits
// outside DashboardPattern so invalidation never deletes it.
func DashboardGenerationKey(learnerID string) string {
	return prefixDashboardGen + learnerID
}

func formatGeneration(gen int64) string {
	return "g" + strconv.FormatInt(gen, 10)
}
