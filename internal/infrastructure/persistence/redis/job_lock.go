package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobLocker hands out Redis locks for scheduled jobs so that only one worker
// replica runs a job at a time.
type JobLocker struct {
	cache *Cache
}

// NewJobLocker creates a new JobLocker.
func NewJobLocker(cache *Cache) *JobLocker {
	return &JobLocker{cache: cache}
}

// Acquire takes the lock named after the job. ok is false when it is held.
func (l *JobLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	lock, err := l.cache.TryLock(ctx, "job:"+name, uuid.NewString(), ttl)
	if err != nil {
		return nil, false, err
	}
	if lock == nil {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(ctx)
	}
	return release, true, nil
}
