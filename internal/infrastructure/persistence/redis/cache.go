// Package redis holds the Redis-backed pieces of the learner hub:
//   - Cache: JSON values with a TTL, pattern invalidation and SETNX locks
//   - DashboardCache: one dashboard view per learner, generation and day
//   - JobLocker: keeps scheduled jobs from running on two worker replicas
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// Config holds the connection settings. URL, when set, replaces Host, Port,
// Password and DB. Zero values keep the go-redis defaults.
type Config struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig is a local Redis on 6379.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Options converts the config to go-redis options.
func (c Config) Options() (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Password: c.Password,
		DB:       c.DB,
	}
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		opts = parsed
	}

	setIfPositive(&opts.PoolSize, c.PoolSize)
	setIfPositive(&opts.MinIdleConns, c.MinIdleConns)
	setIfPositive(&opts.MaxRetries, c.MaxRetries)
	setIfPositive(&opts.DialTimeout, c.DialTimeout)
	setIfPositive(&opts.ReadTimeout, c.ReadTimeout)
	setIfPositive(&opts.WriteTimeout, c.WriteTimeout)

	return opts, nil
}

func setIfPositive[T int | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("redis: cache miss")

const (
	prefixDashboard    = "dashboard:"
	prefixDashboardGen = "dashgen:"
	prefixLock         = "lock:"

	// TTLDashboard applies when no dashboard TTL is configured.
	TTLDashboard = 10 * time.Minute

	defaultLockTTL = 30 * time.Second
	scanBatch      = 100
)

// Cache stores JSON-encoded values.
type Cache struct {
	client *redis.Client
}

// NewCache connects and pings once within the dial timeout.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Cache{client: client}, nil
}

func (c *Cache) Close() error { return c.client.Close() }

// Ping is used by the health check.
func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

// Set encodes value with sonic and stores it for ttl. A zero ttl never expires.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Get decodes the value stored at key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}

	if err := sonic.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern removes every key matching pattern. It walks the keyspace
// with SCAN and deletes in batches, so it never blocks Redis like KEYS would.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := c.client.Del(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return flush()
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCKS
// ══════════════════════════════════════════════════════════════════════════════

// Lock is held until Release or until its TTL runs out.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// TryLock takes the lock on resource. It returns a nil Lock and no error when
// another holder has it.
func (c *Cache) TryLock(ctx context.Context, resource, token string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	key := LockKey(resource)
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, err
	}
	return &Lock{client: c.client, key: key, token: token}, nil
}

// Release deletes the lock only if the token still matches, so an expired
// lock taken over by another replica is left alone.
func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DashboardKey is the key of a learner's dashboard for a cache generation on
// date (YYYY-MM-DD).
func DashboardKey(learnerID string, gen int64, date string) string {
	return prefixDashboard + learnerID + ":" + formatGeneration(gen) + ":" + date
}

// DashboardPattern matches every cached dashboard of a learner.
func DashboardPattern(learnerID string) string {
	return prefixDashboard + learnerID + ":*"
}

// LockKey is the key of the lock on resource.
func LockKey(resource string) string {
	return prefixLock + resource
}
