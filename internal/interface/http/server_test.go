package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hobby-university/learner-hub/internal/application/command"
	"github.com/hobby-university/learner-hub/internal/application/query"
	"github.com/hobby-university/learner-hub/internal/domain/certificate"
	"github.com/hobby-university/learner-hub/internal/domain/learner"
	"github.com/hobby-university/learner-hub/internal/domain/lesson"
	"github.com/hobby-university/learner-hub/internal/domain/progress"
	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/internal/interface/http/handlers"
	"github.com/hobby-university/learner-hub/pkg/timeutil"
)

var secret = []byte("server-test-secret-0123456789abcdef")

const learnerID = "5f0c2b1e-8a4d-4c1e-9d3a-2b7f6e8c1a90"

// ─────────────────────────────────────────────────────────────────────────────
// stubs
// ─────────────────────────────────────────────────────────────────────────────

type registerFunc func(context.Context, command.RegisterLearnerCommand) (*command.RegisterLearnerResult, error)

func (f registerFunc) Handle(ctx context.Context, c command.RegisterLearnerCommand) (*command.RegisterLearnerResult, error) {
	return f(ctx, c)
}

type quizFunc func(context.Context, command.SubmitQuizCommand) (*command.SubmitQuizResult, error)

func (f quizFunc) Handle(ctx context.Context, c command.SubmitQuizCommand) (*command.SubmitQuizResult, error) {
	return f(ctx, c)
}

type enrollmentFunc func(context.Context, command.UpdateEnrollmentCommand) (*command.UpdateEnrollmentResult, error)

func (f enrollmentFunc) Handle(ctx context.Context, c command.UpdateEnrollmentCommand) (*command.UpdateEnrollmentResult, error) {
	return f(ctx, c)
}

type dashboardFunc func(context.Context, query.GetDashboardQuery) (*query.DashboardView, error)

func (f dashboardFunc) Handle(ctx context.Context, q query.GetDashboardQuery) (*query.DashboardView, error) {
	return f(ctx, q)
}

type certificateFunc func(context.Context, query.GetCertificateQuery) (*query.CertificateView, error)

func (f certificateFunc) Handle(ctx context.Context, q query.GetCertificateQuery) (*query.CertificateView, error) {
	return f(ctx, q)
}

// archiveMap is an in-memory certificate.Archive.
type archiveMap map[string]*certificate.Certificate

func (a archiveMap) Put(_ context.Context, c *certificate.Certificate) (string, error) {
	a[c.CertificateID] = c
	return "certificates/" + c.CertificateID + ".json", nil
}

func (a archiveMap) Get(_ context.Context, id string) (*certificate.Certificate, error) {
	c, ok := a[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

type recorded struct {
	route  string
	method string
	status int
}

type recorder struct{ calls []recorded }

func (r *recorder) RequestStarted() func(string, string, int, time.Duration) {
	return func(route, method string, status int, _ time.Duration) {
		r.calls = append(r.calls, recorded{route, method, status})
	}
}

type failingHealth struct{}

func (failingHealth) Check(context.Context) handlers.HealthStatus {
	return handlers.HealthStatus{Healthy: false, Ready: false, Message: "Some checks failed: postgres"}
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func newTestServer(deps Dependencies) *Server {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.Auth = handlers.BearerAuthConfig{Secret: secret}
	cfg.APIKeys = []string{"admin-key"}
	return NewServer(cfg, deps)
}

func token(t *testing.T) string {
	t.Helper()
	raw, err := handlers.SignToken(secret, handlers.Claims{
		Email: "sarah@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   learnerID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)
	return raw
}

func do(t *testing.T, s *Server, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp JSONResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func bearer(t *testing.T) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token(t)}
}

func sampleProfile() *learner.Profile {
	return &learner.Profile{
		ID:             learnerID,
		Email:          "sarah@example.com",
		FullName:       "Sarah Johnson",
		Age:            34,
		Location:       "Portland, OR",
		Hobby:          learner.HobbyPhotography,
		Motivation:     "Learn to shoot landscapes",
		TrialStartDate: timeutil.Date(2024, 3, 1),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_HealthEndpoints(t *testing.T) {
	s := newTestServer(Dependencies{HealthChecker: handlers.NewCompositeHealthChecker("test")})

	for _, path := range []string{"/health", "/healthz", "/ready", "/live", "/"} {
		rec, resp := do(t, s, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.True(t, resp.Success, path)
	}
}

func TestServer_Unhealthy(t *testing.T) {
	s := newTestServer(Dependencies{HealthChecker: failingHealth{}})

	rec, _ := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, resp := do(t, s, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_ready", resp.Error.Code)

	rec, _ = do(t, s, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER ROUTES
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_RegisterLearner(t *testing.T) {
	var got command.RegisterLearnerCommand
	s := newTestServer(Dependencies{
		RegisterLearner: registerFunc(func(_ context.Context, c command.RegisterLearnerCommand) (*command.RegisterLearnerResult, error) {
			got = c
			return &command.RegisterLearnerResult{Profile: sampleProfile()}, nil
		}),
	})

	body := `{"full_name":"Sarah Johnson","age":34,"location":"Portland, OR","hobby":"photography","motivation":"Learn to shoot landscapes"}`
	rec, resp := do(t, s, http.MethodPost, "/api/v1/learners", body, bearer(t))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	assert.Equal(t, learnerID, got.LearnerID)
	assert.Equal(t, "sarah@example.com", got.Email, "email falls back to the token claim")
	assert.Equal(t, "photography", got.Hobby)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "2024-03-01", data["trial_start_date"])
	assert.Equal(t, "trial", data["phase"])
}

func TestServer_RequiresToken(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec, resp := do(t, s, http.MethodGet, "/api/v1/me/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "missing_token", resp.Error.Code)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, rec.Header().Get("X-Request-ID"))
}

func TestServer_RejectsMalformedBody(t *testing.T) {
	s := newTestServer(Dependencies{
		SubmitQuiz: quizFunc(func(context.Context, command.SubmitQuizCommand) (*command.SubmitQuizResult, error) {
			t.Fatal("handler must not be called")
			return nil, nil
		}),
	})

	for _, body := range []string{`{"answers":[0,1`, `{"answers":[0],"cheat":true}`} {
		rec, resp := do(t, s, http.MethodPost, "/api/v1/me/lessons/lesson-1/quiz", body, bearer(t))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "invalid_json", resp.Error.Code)
	}
}

func TestServer_SubmitQuiz(t *testing.T) {
	var got command.SubmitQuizCommand
	s := newTestServer(Dependencies{
		SubmitQuiz: quizFunc(func(_ context.Context, c command.SubmitQuizCommand) (*command.SubmitQuizResult, error) {
			got = c
			return &command.SubmitQuizResult{LessonID: c.LessonID, Score: 67, Band: lesson.BandPassing, Correct: 2, Total: 3}, nil
		}),
	})

	rec, resp := do(t, s, http.MethodPost, "/api/v1/me/lessons/lesson-1/quiz",
		`{"answers":[0,1,2],"video_progress":95}`, bearer(t))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "lesson-1", got.LessonID)
	assert.Equal(t, []int{0, 1, 2}, got.Answers)
	assert.Equal(t, 95, got.VideoProgress)
	assert.Equal(t, float64(67), resp.Data.(map[string]any)["score"])
}

func TestServer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not registered", shared.ErrLearnerNotFound, http.StatusNotFound, "not_found"},
		{"incomplete answers", shared.ErrIncompleteAnswers, http.StatusBadRequest, "invalid_request"},
		{"bad answer", shared.ErrInvalidAnswer, http.StatusBadRequest, "invalid_request"},
		{"video", shared.ErrVideoNotWatched, http.StatusConflict, "invalid_state"},
		{"trial not started", &progress.InvalidRangeError{}, http.StatusUnprocessableEntity, "progress_unavailable"},
		{"certificate", shared.ErrCertificateNotAvailable, http.StatusForbidden, "forbidden"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"unknown", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(Dependencies{
				GetDashboard: dashboardFunc(func(context.Context, query.GetDashboardQuery) (*query.DashboardView, error) {
					return nil, tt.err
				}),
			})

			rec, resp := do(t, s, http.MethodGet, "/api/v1/me/dashboard", "", bearer(t))
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.False(t, resp.Success)
		})
	}
}

func TestServer_ErrorMessages(t *testing.T) {
	s := newTestServer(Dependencies{
		GetCertificate: certificateFunc(func(context.Context, query.GetCertificateQuery) (*query.CertificateView, error) {
			return nil, shared.ErrCertificateNotAvailable
		}),
		GetDashboard: dashboardFunc(func(context.Context, query.GetDashboardQuery) (*query.DashboardView, error) {
			return nil, errors.New("dial tcp 10.0.0.3:5432: secret internals")
		}),
	})

	_, resp := do(t, s, http.MethodGet, "/api/v1/me/certificate", "", bearer(t))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "certificate not yet available", resp.Error.Message)

	_, resp = do(t, s, http.MethodGet, "/api/v1/me/dashboard", "", bearer(t))
	require.NotNil(t, resp.Error)
	assert.NotContains(t, resp.Error.Message, "10.0.0.3")
}

func TestServer_NotImplemented(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec, _ := do(t, s, http.MethodGet, "/api/v1/me/lessons/today", "", bearer(t))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE VERIFICATION
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_VerifyCertificate(t *testing.T) {
	archive := archiveMap{"CERT-1A2B3C4D": {
		CertificateID:  "CERT-1A2B3C4D",
		StudentName:    "Sarah Johnson",
		CourseName:     "Photography Professional Development",
		CompletionDate: "March 30, 2024",
		Grade:          "A",
	}}
	s := newTestServer(Dependencies{VerifyCertificate: query.NewVerifyCertificateHandler(archive, nil)})

	t.Run("issued", func(t *testing.T) {
		rec, resp := do(t, s, http.MethodGet, "/api/v1/certificates/CERT-1A2B3C4D", "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := resp.Data.(map[string]any)
		assert.Equal(t, true, data["valid"])
		assert.Equal(t, "Sarah Johnson", data["certificate"].(map[string]any)["student_name"])
	})

	t.Run("never issued", func(t *testing.T) {
		rec, resp := do(t, s, http.MethodGet, "/api/v1/certificates/CERT-00000000", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "not_found", resp.Error.Code)
		assert.Equal(t, "no certificate with this ID was issued", resp.Error.Message)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec, _ := do(t, s, http.MethodGet, "/api/v1/certificates/12345", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_VerifyCertificateWithoutArchive(t *testing.T) {
	s := newTestServer(Dependencies{VerifyCertificate: query.NewVerifyCertificateHandler(nil, nil)})

	rec, resp := do(t, s, http.MethodGet, "/api/v1/certificates/CERT-1A2B3C4D", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "service_unavailable", resp.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN ROUTES
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_UpdateEnrollment(t *testing.T) {
	var got command.UpdateEnrollmentCommand
	s := newTestServer(Dependencies{
		UpdateEnrollment: enrollmentFunc(func(_ context.Context, c command.UpdateEnrollmentCommand) (*command.UpdateEnrollmentResult, error) {
			got = c
			p := sampleProfile()
			p.TrialCompleted = true
			return &command.UpdateEnrollmentResult{Profile: p, Phase: progress.PhaseAdvanced}, nil
		}),
	})
	path := "/api/v1/admin/learners/" + learnerID + "/enrollment"
	body := `{"action":"complete_trial"}`

	rec, _ := do(t, s, http.MethodPost, path, body, bearer(t))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "learner tokens do not open admin routes")

	rec, resp := do(t, s, http.MethodPost, path, body, map[string]string{"X-API-Key": "admin-key"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, learnerID, got.LearnerID)
	assert.Equal(t, command.ActionCompleteTrial, got.Action)

	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["trial_completed"])
	assert.Equal(t, "advanced", data["phase"])
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_MetricsUseRoutePattern(t *testing.T) {
	rec := &recorder{}
	s := newTestServer(Dependencies{
		Recorder: rec,
		SubmitQuiz: quizFunc(func(_ context.Context, c command.SubmitQuizCommand) (*command.SubmitQuizResult, error) {
			return &command.SubmitQuizResult{LessonID: c.LessonID}, nil
		}),
	})

	do(t, s, http.MethodPost, "/api/v1/me/lessons/abc/quiz", `{"answers":[0]}`, bearer(t))
	do(t, s, http.MethodGet, "/nope", "", nil)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, recorded{"POST /api/v1/me/lessons/{id}/quiz", http.MethodPost, http.StatusOK}, rec.calls[0])
	assert.Equal(t, "unmatched", rec.calls[1].route)
	assert.Equal(t, http.StatusNotFound, rec.calls[1].status)
}

func TestServer_KeepsClientRequestID(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec, resp := do(t, s, http.MethodGet, "/live", "", map[string]string{"X-Request-ID": "req-123"})
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-123", resp.RequestID)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 2
	s := NewServer(cfg, Dependencies{})
	limiter := s.limiter.(*windowLimiter)
	limiter.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 15, 0, time.UTC) }

	for range 2 {
		rec, _ := do(t, s, http.MethodGet, "/live", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec, resp := do(t, s, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "45", rec.Header().Get("Retry-After"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "rate_limit_exceeded", resp.Error.Code)

	limiter.now = func() time.Time { return time.Date(2025, 3, 1, 12, 1, 0, 0, time.UTC) }
	rec, _ = do(t, s, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type limiterFunc func(ctx context.Context, key string) (bool, time.Duration, error)

func (f limiterFunc) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return f(ctx, key)
}

func TestServer_SharedRateLimiter(t *testing.T) {
	var keys []string
	s := newTestServer(Dependencies{
		RateLimiter: limiterFunc(func(_ context.Context, key string) (bool, time.Duration, error) {
			keys = append(keys, key)
			if len(keys) == 1 {
				return false, 1500 * time.Millisecond, nil
			}
			return false, 0, errors.New("redis: connection refused")
		}),
	})

	rec, _ := do(t, s, http.MethodGet, "/live", "", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	rec, _ = do(t, s, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "limiter errors let requests through")

	assert.Equal(t, "203.0.113.7", keys[0])
}
