package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// BEARER TOKEN AUTHENTICATION
// Access tokens are issued by the external auth provider and signed with a
// shared HS256 secret. The subject claim is the learner ID.
// ══════════════════════════════════════════════════════════════════════════════

// Principal is the authenticated caller of a learner route.
type Principal struct {
	LearnerID string
	Email     string
}

// Claims are the access token claims the service reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// BearerAuthConfig configures BearerAuth.
type BearerAuthConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// BearerAuth verifies access tokens and stores the Principal in the request context.
type BearerAuth struct {
	secret     []byte
	parser     *jwt.Parser
	writeError ErrorWriter
}

// ErrInvalidToken is returned by Verify for any token that is not accepted.
var ErrInvalidToken = errors.New("invalid access token")

// NewBearerAuth creates a new bearer token authenticator.
func NewBearerAuth(cfg BearerAuthConfig, writeError ErrorWriter) *BearerAuth {
	if cfg.Leeway <= 0 {
		cfg.Leeway = 30 * time.Second
	}
	if writeError == nil {
		writeError = plainError
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &BearerAuth{
		secret:     cfg.Secret,
		parser:     jwt.NewParser(opts...),
		writeError: writeError,
	}
}

// Verify parses and validates a raw token.
func (a *BearerAuth) Verify(raw string) (Principal, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return Principal{}, fmt.Errorf("%w: subject is not a learner id", ErrInvalidToken)
	}

	return Principal{LearnerID: claims.Subject, Email: claims.Email}, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *BearerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			a.writeError(w, r, http.StatusUnauthorized, "missing_token", "Bearer token is required")
			return
		}

		principal, err := a.Verify(raw)
		if err != nil {
			a.writeError(w, r, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Context
// ─────────────────────────────────────────────────────────────────────────────

type principalKey struct{}

// WithPrincipal stores the principal in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// SignToken issues an HS256 token for the given learner. The service never
// issues tokens itself; this is used by tests and local tooling.
func SignToken(secret []byte, claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
