// Package app wires configuration to the infrastructure shared by the API
// server and the worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hobby-university/learner-hub/config"
	"github.com/hobby-university/learner-hub/internal/infrastructure/metrics"
	"github.com/hobby-university/learner-hub/internal/infrastructure/persistence/postgres"
	"github.com/hobby-university/learner-hub/internal/infrastructure/persistence/redis"
	"github.com/hobby-university/learner-hub/internal/infrastructure/storage"
	"github.com/hobby-university/learner-hub/pkg/circuitbreaker"
	"github.com/hobby-university/learner-hub/pkg/logger"
	"github.com/hobby-university/learner-hub/pkg/retry"
)

// Infra holds the connections to backing services. Cache and Archive are nil
// when the service is disabled or unreachable at boot.
type Infra struct {
	DB      *postgres.Connection
	Cache   *redis.Cache
	Archive *storage.CertificateArchive
	Metrics *metrics.Metrics

	log *logger.Logger
}

// NewLogger builds the process logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stdout
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = cfg.Observability.LogFormat
	if cfg.App.Debug && cfg.Observability.LogLevel == "" {
		opts.Level = logger.LevelDebug
	}

	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// Open connects to PostgreSQL (required), then Redis and object storage
// (optional). Migrations run when DB_AUTO_MIGRATE is set.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Infra, error) {
	infra := &Infra{Metrics: metrics.New(), log: log}

	startup := retry.Startup(func(attempt int, err error, wait time.Duration) {
		log.Warn("backing service not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.Err(err),
		)
	})

	// ─────────────────────────────────────────────────────────────────────────
	// PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	db, err := retry.Value(ctx, startup, func(ctx context.Context) (*postgres.Connection, error) {
		conn, err := postgres.NewConnection(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if errors.Is(err, postgres.ErrInvalidConfig) {
			return nil, retry.Stop(err)
		}
		return conn, err
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	infra.DB = db
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(db).Migrate(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database schema is up to date", logger.Int("applied", applied))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		cache, err := retry.Value(ctx, startup, func(ctx context.Context) (*redis.Cache, error) {
			return redis.NewCache(ctx, redis.Config{
				URL:          cfg.Redis.URL,
				Host:         cfg.Redis.Host,
				Port:         cfg.Redis.Port,
				Password:     cfg.Redis.Password,
				DB:           cfg.Redis.DB,
				PoolSize:     cfg.Redis.PoolSize,
				MinIdleConns: cfg.Redis.MinIdleConns,
				MaxRetries:   redis.DefaultConfig().MaxRetries,
				DialTimeout:  cfg.Redis.DialTimeout,
				ReadTimeout:  cfg.Redis.ReadTimeout,
				WriteTimeout: cfg.Redis.WriteTimeout,
			})
		})
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		} else {
			infra.Cache = cache
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Certificate archive (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Storage.Enabled() {
		archive, err := storage.NewCertificateArchive(storage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
			OnBreakerChange: func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			},
		})
		if err == nil {
			err = startup.Do(ctx, func(ctx context.Context) error {
				err := archive.EnsureBucket(ctx)
				if storage.IsAccessError(err) {
					return retry.Stop(err)
				}
				return err
			})
		}
		if err != nil {
			log.Warn("certificate archive unavailable", logger.Err(err))
		} else {
			infra.Archive = archive
			log.Info("certificate archive ready", logger.String("bucket", cfg.Storage.Bucket))
		}
	}

	return infra, nil
}

// Close releases all connections.
func (i *Infra) Close() {
	if i.Cache != nil {
		if err := i.Cache.Close(); err != nil {
			i.log.Warn("failed to close Redis", logger.Err(err))
		}
	}
	if i.DB != nil {
		i.log.Info("closing database connection...")
		i.DB.Close()
	}
}
