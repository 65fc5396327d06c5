package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardKeys(t *testing.T) {
	key := DashboardKey("learner-1", 3, "2024-01-07")
	assert.Equal(t, "dashboard:learner-1:g3:2024-01-07", key)
	assert.NotEqual(t, key, DashboardKey("learner-1", 4, "2024-01-07"))
	assert.Equal(t, "dashboard:learner-1:*", DashboardPattern("learner-1"))
	assert.Equal(t, "dashgen:learner-1", DashboardGenerationKey("learner-1"))
	assert.Equal(t, "lock:detect_inactive_learners", LockKey("detect_inactive_learners"))
}

func TestConfig_Options(t *testing.T) {
	t.Run("individual settings", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Host = "cache"
		cfg.DB = 2

		opts, err := cfg.Options()
		require.NoError(t, err)
		assert.Equal(t, "cache:6379", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 10, opts.PoolSize)
		assert.Equal(t, 3*time.Second, opts.ReadTimeout)
	})

	t.Run("url wins", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.URL = "redis://:secret@redis.internal:6380/4"

		opts, err := cfg.Options()
		require.NoError(t, err)
		assert.Equal(t, "redis.internal:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 4, opts.DB)
	})

	t.Run("bad url", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.URL = "http://nope"

		_, err := cfg.Options()
		assert.Error(t, err)
	})
}

func TestNewDashboardCache_DefaultTTL(t *testing.T) {
	c := NewDashboardCache(&Cache{}, 0)
	assert.Equal(t, TTLDashboard, c.ttl)

	c = NewDashboardCache(&Cache{}, time.Minute)
	assert.Equal(t, time.Minute, c.ttl)
	assert.Equal(t, minGenerationTTL, c.genTTL)

	c = NewDashboardCache(&Cache{}, 72*time.Hour)
	assert.Equal(t, 144*time.Hour, c.genTTL)
}

func TestWindowOf(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 15, 0, time.UTC)

	slot, reset := windowOf(at, time.Minute)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 1, 0, 0, time.UTC), reset.UTC())
	assert.Equal(t, 45*time.Second, reset.Sub(at))

	next, _ := windowOf(at.Add(45*time.Second), time.Minute)
	assert.Equal(t, slot+1, next)

	same, _ := windowOf(at.Add(44*time.Second), time.Minute)
	assert.Equal(t, slot, same)

	assert.Equal(t, "ratelimit:203.0.113.7:42", RateLimitKey("203.0.113.7", 42))
}
