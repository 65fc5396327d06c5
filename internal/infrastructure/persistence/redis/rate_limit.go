package redis

import (
	"context"
	"strconv"
	"time"
)

const prefixRateLimit = "ratelimit:"

// RateLimiter counts requests per client in fixed windows kept in Redis, so
// every API replica enforces the same limit.
type RateLimiter struct {
	cache  *Cache
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per key and window.
func NewRateLimiter(cache *Cache, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{cache: cache, limit: limit, window: window, now: time.Now}
}

// Allow increments the key's counter for the current window. The counter
// expires shortly after the window ends.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	slot, reset := windowOf(now, l.window)
	redisKey := RateLimitKey(key, slot)

	pipe := l.cache.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireAt(ctx, redisKey, reset.Add(time.Second))
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, err
	}

	if incr.Val() > int64(l.limit) {
		return false, reset.Sub(now), nil
	}
	return true, 0, nil
}

// windowOf returns the index of the window containing t and when it ends.
func windowOf(t time.Time, window time.Duration) (int64, time.Time) {
	slot := t.UnixNano() / int64(window)
	return slot, time.Unix(0, (slot+1)*int64(window))
}

// RateLimitKey is the counter key of key in window slot.
func RateLimitKey(key string, slot int64) string {
	return prefixRateLimit + key + ":" + strconv.FormatInt(slot, 10)
}
