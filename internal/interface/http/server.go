// Package http implements the REST API of the learner hub: the learner
// routes behind bearer auth, the admin enrollment route behind API keys,
// health probes and Prometheus metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hobby-university/learner-hub/internal/application/command"
	"github.com/hobby-university/learner-hub/internal/application/query"
	"github.com/hobby-university/learner-hub/internal/interface/http/handlers"
	"github.com/hobby-university/learner-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodyBytes   int64

	EnableCORS     bool
	AllowedOrigins []string

	// RateLimitPerMinute caps requests per client IP. Zero disables the limit.
	RateLimitPerMinute int

	// Auth verifies learner access tokens.
	Auth handlers.BearerAuthConfig

	// APIKeys guard the admin routes. They may be plain keys or bcrypt hashes.
	// The admin API rejects every request when the list is empty.
	APIKeyHeader string
	APIKeys      []string

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       64 << 10,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 100,
		APIKeyHeader:       "X-API-Key",
		Version:            "v1",
	}
}

// Address returns host:port.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

type RegisterLearner interface {
	Handle(ctx context.Context, cmd command.RegisterLearnerCommand) (*command.RegisterLearnerResult, error)
}

type SubmitQuiz interface {
	Handle(ctx context.Context, cmd command.SubmitQuizCommand) (*command.SubmitQuizResult, error)
}

type UpdateEnrollment interface {
	Handle(ctx context.Context, cmd command.UpdateEnrollmentCommand) (*command.UpdateEnrollmentResult, error)
}

type GetDashboard interface {
	Handle(ctx context.Context, q query.GetDashboardQuery) (*query.DashboardView, error)
}

type GetTodayLesson interface {
	Handle(ctx context.Context, q query.GetTodayLessonQuery) (*query.TodayLessonView, error)
}

type GetCertificate interface {
	Handle(ctx context.Context, q query.GetCertificateQuery) (*query.CertificateView, error)
}

type VerifyCertificate interface {
	Handle(ctx context.Context, q query.VerifyCertificateQuery) (*query.VerifiedCertificateView, error)
}

// RequestRecorder observes finished requests. *metrics.Metrics satisfies it.
type RequestRecorder interface {
	RequestStarted() func(route, method string, status int, elapsed time.Duration)
}

// RateLimiter decides whether a client may make another request. When it
// refuses, retryAfter is how long until the client's window resets.
// *redis.RateLimiter satisfies it.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (ok bool, retryAfter time.Duration, err error)
}

// Dependencies are the use cases behind the routes. A nil use case answers
// 501 so the server can be started with a partial wiring in tests.
type Dependencies struct {
	// Commands
	RegisterLearner  RegisterLearner
	SubmitQuiz       SubmitQuiz
	UpdateEnrollment UpdateEnrollment

	// Queries
	GetDashboard   GetDashboard
	GetTodayLesson GetTodayLesson
	GetCertificate GetCertificate

	// VerifyCertificate backs the public verification route.
	VerifyCertificate VerifyCertificate

	Logger        *logger.Logger
	HealthChecker handlers.HealthChecker

	// RateLimiter replaces the per-process limiter, typically with one
	// shared through Redis.
	RateLimiter RateLimiter

	Recorder       RequestRecorder
	MetricsHandler http.Handler
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

type Server struct {
	config Config
	deps   Dependencies
	log    *logger.Logger

	router     *http.ServeMux
	httpServer *http.Server

	bearer  *handlers.BearerAuth
	admin   *handlers.APIKeyAuth
	limiter RateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer builds the router and the middleware chain. It does not listen.
func NewServer(config Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		config:  config,
		deps:    deps,
		log:     log.With(logger.Component("http")),
		router:  http.NewServeMux(),
		bearer:  handlers.NewBearerAuth(config.Auth, writeJSONError),
		admin:   handlers.NewAPIKeyAuth(config.APIKeyHeader, config.APIKeys, writeJSONError),
		limiter: deps.RateLimiter,
	}
	if s.limiter == nil && config.RateLimitPerMinute > 0 {
		s.limiter = newWindowLimiter(config.RateLimitPerMinute, time.Minute)
	}

	s.routes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.middleware(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// Handler returns the router wrapped in all middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Probes
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /{$}", s.handleRoot)

	if s.deps.MetricsHandler != nil {
		s.router.Handle("GET /metrics", s.deps.MetricsHandler)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Learner routes (bearer token)
	// ─────────────────────────────────────────────────────────────────────────
	learner := handlers.Chain(s.bearer.Middleware, handlers.NoCacheMiddleware)

	s.router.Handle("POST /api/v1/learners", learner(http.HandlerFunc(s.handleRegisterLearner)))
	s.router.Handle("GET /api/v1/me/dashboard", learner(http.HandlerFunc(s.handleGetDashboard)))
	s.router.Handle("GET /api/v1/me/lessons/today", learner(http.HandlerFunc(s.handleGetTodayLesson)))
	s.router.Handle("POST /api/v1/me/lessons/{id}/quiz", learner(http.HandlerFunc(s.handleSubmitQuiz)))
	s.router.Handle("GET /api/v1/me/certificate", learner(http.HandlerFunc(s.handleGetCertificate)))

	// ─────────────────────────────────────────────────────────────────────────
	// Public routes
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /api/v1/certificates/{id}", s.handleVerifyCertificate)

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes (API key)
	// ─────────────────────────────────────────────────────────────────────────
	s.router.Handle("POST /api/v1/admin/learners/{id}/enrollment",
		s.admin.Middleware(http.HandlerFunc(s.handleUpdateEnrollment)))
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens and blocks until Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("http: server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: listen: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields the listen error,
// if any, and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime is zero until Start is called.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
