package http

import (
	"context"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hobby-university/learner-hub/internal/interface/http/handlers"
	"github.com/hobby-university/learner-hub/pkg/logger"
)

// middleware wraps the router. Outermost first: request ID, CORS, rate
// limit, panic recovery, access log, metrics, security headers, body limit.
func (s *Server) middleware(router http.Handler) http.Handler {
	var chain []handlers.MiddlewareFunc

	chain = append(chain, s.requestID)
	if s.config.EnableCORS {
		chain = append(chain, s.cors)
	}
	if s.limiter != nil {
		chain = append(chain, s.rateLimit)
	}
	chain = append(chain, s.recoverPanics, s.accessLog)
	if s.deps.Recorder != nil {
		chain = append(chain, s.observe)
	}
	chain = append(chain, handlers.SecurityHeadersMiddleware)
	if s.config.MaxBodyBytes > 0 {
		chain = append(chain, handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes))
	}

	return handlers.Chain(chain...)(router)
}

type requestIDKey struct{}

// requestID keeps a client-supplied X-Request-ID of sane length and otherwise
// generates one. The request logger carries it from here on.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logger.WithContext(ctx, s.log.WithRequestID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", sw.status),
			logger.Latency(time.Since(start)),
			logger.String("ip", clientIP(r)),
		}
		if p, ok := handlers.PrincipalFromContext(r.Context()); ok {
			fields = append(fields, logger.LearnerID(p.LearnerID))
		}

		log := logger.FromContext(r.Context())
		if sw.status >= http.StatusInternalServerError {
			log.Warn("http request", fields...)
		} else {
			log.Info("http request", fields...)
		}
	})
}

// observe records count and latency under the route pattern, so path
// parameters such as lesson IDs do not create new label values.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := s.deps.Recorder.RequestStarted()
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := "unmatched"
		if _, pattern := s.router.Handler(r); pattern != "" {
			route = pattern
		}
		done(route, r.Method, sw.status, time.Since(start))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.FromContext(r.Context()).Error("panic recovered",
					logger.Any("panic", v),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
				)
				writeJSONError(w, r, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.config.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// rateLimit fails open: if the limiter's backend errors, the request passes.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter, err := s.limiter.Allow(r.Context(), clientIP(r))
		if err != nil {
			logger.FromContext(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
			ok = true
		}
		if !ok {
			secs := max(int(math.Ceil(retryAfter.Seconds())), 1)
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeJSONError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter remembers the first status code written.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if i := strings.LastIndex(r.RemoteAddr, ":"); i != -1 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-PROCESS RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// windowLimiter counts requests per key in fixed windows. It is used when no
// shared limiter is configured, so each replica enforces its own limit.
type windowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current int64
	counts  map[string]int
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	return &windowLimiter{limit: limit, window: window, now: time.Now, counts: make(map[string]int)}
}

func (l *windowLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	slot := now.UnixNano() / int64(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	// A new window forgets every client at once.
	if slot != l.current {
		l.current = slot
		clear(l.counts)
	}

	if l.counts[key] >= l.limit {
		reset := time.Unix(0, (slot+1)*int64(l.window))
		return false, reset.Sub(now), nil
	}
	l.counts[key]++
	return true, 0, nil
}
