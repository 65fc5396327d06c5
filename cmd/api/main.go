// Package main is the entry point of the Hobby University learner API.
//
// The API serves the learner dashboard, daily lessons, quiz submission and
// trial certificates. Enrollment changes are applied through the admin routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hobby-university/learner-hub/config"
	"github.com/hobby-university/learner-hub/internal/app"

	// Application layer
	"github.com/hobby-university/learner-hub/internal/application/command"
	"github.com/hobby-university/learner-hub/internal/application/eventhandler"
	"github.com/hobby-university/learner-hub/internal/application/query"

	// Domain layer
	"github.com/hobby-university/learner-hub/internal/domain/certificate"

	// Infrastructure layer
	"github.com/hobby-university/learner-hub/internal/infrastructure/messaging"
	"github.com/hobby-university/learner-hub/internal/infrastructure/persistence/postgres"
	"github.com/hobby-university/learner-hub/internal/infrastructure/persistence/redis"

	// Interface layer
	httpserver "github.com/hobby-university/learner-hub/internal/interface/http"
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

	log := app.NewLogger(cfg)
	defer func() { _ = log.Sync() }()

	log.Info("starting learner API",
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	calendar := timeutil.NewCalendar(cfg.App.Location)
	clock := timeutil.SystemClock()
	features := cfg.Features

	// ─────────────────────────────────────────────────────────────────────────
	// 2. BACKING SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	learners := postgres.NewLearnerRepository(infra.DB)
	lessons := postgres.NewLessonRepository(infra.DB)
	attendance := postgres.NewAttendanceRepository(infra.DB)
	results := postgres.NewResultRepository(infra.DB)
	quizStore := postgres.NewQuizStore(infra.DB)

	// Dashboards are cached only when Redis is up. The commands invalidate a
	// learner's views before they return.
	var (
		dashboardCache *redis.DashboardCache
		dashboards     command.DashboardInvalidator
	)
	if infra.Cache != nil {
		dashboardCache = redis.NewDashboardCache(infra.Cache, cfg.Redis.DashboardTTL)
		dashboards = dashboardCache
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	busConfig.Recorder = infra.Metrics
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	registerLearner := command.NewRegisterLearnerHandler(learners, bus, calendar, clock, log)
	submitQuiz := command.NewSubmitQuizHandler(command.SubmitQuizDeps{
		Learners:      learners,
		Lessons:       lessons,
		Store:         quizStore,
		Publisher:     bus,
		Calendar:      calendar,
		Clock:         clock,
		Logger:        log,
		Features:      features,
		VideoGateFlag: config.FeatureVideoGate,
		Recorder:      infra.Metrics,
		Dashboards:    dashboards,
	})
	updateEnrollment := command.NewUpdateEnrollmentHandler(learners, bus, clock, log, dashboards)

	dashboardDeps := query.GetDashboardDeps{
		Learners:   learners,
		Attendance: attendance,
		Calendar:   calendar,
		Clock:      clock,
		Logger:     log,
		Features:   features,
		CacheFlag:  config.FeatureDashboardCache,
		Recorder:   infra.Metrics,
	}
	if dashboardCache != nil {
		dashboardDeps.Cache = dashboardCache
	}
	getDashboard := query.NewGetDashboardHandler(dashboardDeps)

	getTodayLesson := query.NewGetTodayLessonHandler(learners, attendance, lessons, calendar, clock)

	certificateDeps := query.GetCertificateDeps{
		Learners:    learners,
		Attendance:  attendance,
		Results:     results,
		Calendar:    calendar,
		Clock:       clock,
		Logger:      log,
		Features:    features,
		ArchiveFlag: config.FeatureCertificateArchive,
		Recorder:    infra.Metrics,
	}
	var archive certificate.Archive
	if infra.Archive != nil {
		archive = infra.Archive
	}
	certificateDeps.Archive = archive
	getCertificate := query.NewGetCertificateHandler(certificateDeps)
	verifyCertificate := query.NewVerifyCertificateHandler(archive, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	milestones := eventhandler.NewOnAttendanceRecordedHandler(learners, attendance, bus, log, eventhandler.OnAttendanceRecordedConfig{
		Features: features,
		Flag:     config.FeatureMilestoneEvents,
	})
	if err := eventhandler.Subscribe(bus, milestones); err != nil {
		return fmt.Errorf("failed to subscribe event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", handlers.NewPingCheck(infra.DB))
	if infra.Cache != nil {
		health.AddOptionalCheck("redis", handlers.NewPingCheck(infra.Cache))
	}
	if infra.Archive != nil {
		health.AddOptionalCheck("certificate_archive", handlers.NewPingCheck(infra.Archive))
	}

	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverConfig.APIKeys = cfg.Auth.AdminAPIKeys
	serverConfig.Version = cfg.App.Version
	serverConfig.Auth = handlers.BearerAuthConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}

	deps := httpserver.Dependencies{
		RegisterLearner:   registerLearner,
		SubmitQuiz:        submitQuiz,
		UpdateEnrollment:  updateEnrollment,
		GetDashboard:      getDashboard,
		GetTodayLesson:    getTodayLesson,
		GetCertificate:    getCertificate,
		VerifyCertificate: verifyCertificate,
		Logger:            log,
		HealthChecker:     health,
	}
	if infra.Cache != nil && cfg.HTTP.RateLimitPerMinute > 0 {
		deps.RateLimiter = redis.NewRateLimiter(infra.Cache, cfg.HTTP.RateLimitPerMinute, time.Minute)
	}
	if cfg.Observability.MetricsEnabled {
		deps.Recorder = infra.Metrics
		deps.MetricsHandler = infra.Metrics.Handler()
	}

	server := httpserver.NewServer(serverConfig, deps)
	serverErr := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return err
		}
		return errors.New("http server stopped unexpectedly")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logger.Err(err))
	}

	log.Info("shutdown completed successfully")
	return nil
}
