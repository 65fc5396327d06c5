// Package main is the entry point of the learner hub background worker.
//
// The worker runs scheduled jobs:
//   - detecting trial learners who stopped completing lessons
//
// Operators can list jobs and trigger a run through /jobs on the metrics
// port, authenticated with an admin API key.
//
// Job runs are guarded by a Redis lock so that several replicas can run
// side by side.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hobby-university/learner-hub/config"
	"github.com/hobby-university/learner-hub/internal/app"

	// Application layer
	"github.com/hobby-university/learner-hub/internal/application/eventhandler"

	// Infrastructure layer
	"github.com/hobby-university/learner-hub/internal/infrastructure/messaging"
	"github.com/hobby-university/learner-hub/internal/infrastructure/persistence/postgres"
	"github.com/hobby-university/learner-hub/internal/infrastructure/persistence/redis"
	"github.com/hobby-university/learner-hub/internal/infrastructure/scheduler"
	"github.com/hobby-university/learner-hub/internal/infrastructure/scheduler/jobs"

	// Interface layer
	"github.com/hobby-university/learner-hub/internal/interface/http/handlers"

	// Packages
	"github.com/hobby-university/learner-hub/pkg/logger"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := app.NewLogger(cfg).With(logger.Component("worker"))
	defer func() { _ = log.Sync() }()

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. BACKING SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	learners := postgres.NewLearnerRepository(infra.DB)
	attendance := postgres.NewAttendanceRepository(infra.DB)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	busConfig.Recorder = infra.Metrics
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() { _ = bus.Close() }()

	if err := eventhandler.Subscribe(bus, eventhandler.NewOnLearnerInactiveHandler(log)); err != nil {
		return fmt.Errorf("failed to subscribe event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	schedConfig := scheduler.Config{
		Logger:     log,
		Location:   cfg.App.Location,
		JobTimeout: cfg.Scheduler.JobTimeout,
		Recorder:   infra.Metrics,
	}
	if infra.Cache != nil {
		schedConfig.Locker = redis.NewJobLocker(infra.Cache)
	} else {
		log.Warn("Redis unavailable, jobs run without a distributed lock")
	}
	sched := scheduler.New(schedConfig)

	detectInactive := jobs.NewDetectInactiveJob(
		learners,
		attendance,
		bus,
		timeutil.NewCalendar(cfg.App.Location),
		timeutil.SystemClock(),
		log,
		jobs.DetectInactiveConfig{InactiveAfterDays: cfg.Scheduler.InactiveAfterDays},
	)
	if cfg.Features.IsEnabled(config.FeatureInactivityJob) {
		if err := sched.Register(detectInactive, cfg.Scheduler.DetectInactiveSpec); err != nil {
			return fmt.Errorf("failed to register %s: %w", detectInactive.Name(), err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. METRICS & ADMIN ENDPOINTS
	// ─────────────────────────────────────────────────────────────────────────
	var metricsServer *http.Server
	if cfg.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", infra.Metrics.Handler())
		if len(cfg.Auth.AdminAPIKeys) > 0 {
			adminAuth := handlers.NewAPIKeyAuth("X-API-Key", cfg.Auth.AdminAPIKeys, nil)
			admin := adminAuth.Middleware(sched.AdminHandler())
			mux.Handle("/jobs", admin)
			mux.Handle("/jobs/", admin)
		}
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port+1),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", logger.Err(err))
			}
		}()
	}

	log.Info("worker is running", logger.Int("jobs", len(sched.ListJobs())))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop failed", logger.Err(err))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	log.Info("shutdown completed successfully")
	return nil
}
