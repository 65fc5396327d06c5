// Package handlers contains HTTP building blocks shared by the API server:
// health checks, authentication and reusable middleware.
//
// # Health Checks
//
// CompositeHealthChecker runs named probes in parallel. Optional probes only
// degrade the status:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(db))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Warn("health check failed", logger.String("message", status.Message))
//	}
//
// # Authentication
//
// Learner routes accept the auth provider's HS256 access tokens. The token's
// subject is the learner ID:
//
//	auth := handlers.NewBearerAuth(handlers.BearerAuthConfig{
//	    Secret:   []byte(cfg.Auth.JWTSecret),
//	    Issuer:   cfg.Auth.Issuer,
//	    Audience: cfg.Auth.Audience,
//	}, writeError)
//	mux.Handle("GET /api/v1/me/dashboard", auth.Middleware(dashboardHandler))
//
// Admin routes use static API keys (APIKeyAuth).
//
// # Middleware
//
// Middleware functions follow the standard pattern and compose with Chain:
//
//	handler := handlers.Chain(
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1 << 20),
//	)(finalHandler)
package handlers
