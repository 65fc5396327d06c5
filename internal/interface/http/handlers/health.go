package handlers

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports the state of the service and its dependencies.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc probes one dependency. A nil error means healthy.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus is the body of /health.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Ready     bool                   `json:"ready"`
	Degraded  bool                   `json:"degraded,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Pinger is implemented by the Postgres connection, the Redis cache and the
// certificate archive.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingCheck probes p.
func NewPingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// ──────────────────────────────────────────────────────────────────────────────
// Composite
// ──────────────────────────────────────────────────────────────────────────────

// CompositeHealthChecker runs every registered probe in parallel. A failing
// required probe (Postgres) makes the service unhealthy and not ready. A
// failing optional probe (Redis, object storage) only marks it degraded,
// because the API keeps serving without a cache or an archive.
type CompositeHealthChecker struct {
	version string
	started time.Time
	timeout time.Duration

	mu     sync.RWMutex
	probes []probe
}

type probe struct {
	name     string
	fn       HealthCheckFunc
	optional bool
}

// NewCompositeHealthChecker creates a checker with a 5s per-probe timeout.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		version: version,
		started: time.Now(),
		timeout: 5 * time.Second,
	}
}

// AddCheck registers a required probe. Registering a name again replaces it.
func (c *CompositeHealthChecker) AddCheck(name string, fn HealthCheckFunc) {
	c.add(probe{name: name, fn: fn})
}

// AddOptionalCheck registers a probe whose failure only degrades the service.
func (c *CompositeHealthChecker) AddOptionalCheck(name string, fn HealthCheckFunc) {
	c.add(probe{name: name, fn: fn, optional: true})
}

func (c *CompositeHealthChecker) add(p probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.probes {
		if c.probes[i].name == p.name {
			c.probes[i] = p
			return
		}
	}
	c.probes = append(c.probes, p)
}

// Check runs all probes and aggregates them.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	probes := append([]probe(nil), c.probes...)
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	if len(probes) == 0 {
		status.Message = "No health checks registered"
		return status
	}

	results := make([]CheckResult, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.run(ctx, p)
		}()
	}
	wg.Wait()

	status.Checks = make(map[string]CheckResult, len(probes))
	var failed, degraded []string
	for i, p := range probes {
		res := results[i]
		status.Checks[p.name] = res
		switch {
		case res.Healthy:
		case p.optional:
			degraded = append(degraded, p.name)
		default:
			failed = append(failed, p.name)
		}
	}

	status.Degraded = len(degraded) > 0
	switch {
	case len(failed) > 0:
		status.Healthy, status.Ready = false, false
		status.Message = "Some checks failed: " + strings.Join(failed, ", ")
	case status.Degraded:
		status.Message = "Degraded: " + strings.Join(degraded, ", ")
	default:
		status.Message = "All checks passed"
	}

	return status
}

func (c *CompositeHealthChecker) run(ctx context.Context, p probe) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := p.fn(ctx)

	res := CheckResult{
		Healthy:  err == nil,
		Optional: p.optional,
		Message:  "OK",
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		res.Message = err.Error()
	}
	return res
}
