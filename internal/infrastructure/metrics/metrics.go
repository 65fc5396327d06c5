// Package metrics exposes Prometheus collectors for the learner hub.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hobby-university/learner-hub/internal/domain/shared"
)

const namespace = "learner_hub"

// Metrics owns a private registry and every collector registered on it.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsActive  prometheus.Gauge

	quizScores        *prometheus.HistogramVec
	attendanceDays    prometheus.Counter
	certificateIssued prometheus.Counter

	eventsPublished *prometheus.CounterVec
	eventHandlers   *prometheus.HistogramVec

	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route", "method"},
		),
		httpRequestsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of in-flight HTTP requests",
			},
		),

		quizScores: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "quiz_score_percent",
				Help:      "Distribution of submitted quiz scores",
				Buckets:   []float64{20, 40, 60, 80, 90, 100},
			},
			[]string{"band"},
		),
		attendanceDays: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attendance_days_recorded_total",
				Help:      "Completed lesson days recorded for the first time",
			},
		),
		certificateIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "certificates_issued_total",
				Help:      "Certificates rendered for download",
			},
		),

		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Domain events published on the bus",
			},
			[]string{"event_type"},
		),
		eventHandlers: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_handler_duration_seconds",
				Help:      "Event handler execution time",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event_type", "outcome"},
		),

		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Scheduled job executions",
			},
			[]string{"job", "outcome"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Scheduled job execution time",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
			},
			[]string{"job"},
		),

		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by result",
			},
			[]string{"cache", "result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsActive,
		m.quizScores,
		m.attendanceDays,
		m.certificateIssued,
		m.eventsPublished,
		m.eventHandlers,
		m.jobRuns,
		m.jobDuration,
		m.cacheLookups,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTP
// ─────────────────────────────────────────────────────────────────────────────

// RequestStarted increments the in-flight gauge and returns its finisher.
func (m *Metrics) RequestStarted() func(route, method string, status int, elapsed time.Duration) {
	m.httpRequestsActive.Inc()
	return func(route, method string, status int, elapsed time.Duration) {
		m.httpRequestsActive.Dec()
		m.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Learning
// ─────────────────────────────────────────────────────────────────────────────

// ObserveQuiz records a scored quiz.
func (m *Metrics) ObserveQuiz(score int, band string) {
	m.quizScores.WithLabelValues(band).Observe(float64(score))
}

// AttendanceRecorded counts a newly completed lesson day.
func (m *Metrics) AttendanceRecorded() {
	m.attendanceDays.Inc()
}

// CertificateIssued counts a rendered certificate.
func (m *Metrics) CertificateIssued() {
	m.certificateIssued.Inc()
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// ─────────────────────────────────────────────────────────────────────────────
// Events and jobs
// ─────────────────────────────────────────────────────────────────────────────

// RecordPublish counts a published event.
func (m *Metrics) RecordPublish(eventType shared.EventType) {
	m.eventsPublished.WithLabelValues(string(eventType)).Inc()
}

// RecordHandler records one handler execution.
func (m *Metrics) RecordHandler(eventType shared.EventType, elapsed time.Duration, success bool) {
	m.eventHandlers.WithLabelValues(string(eventType), outcome(success)).Observe(elapsed.Seconds())
}

// RecordJob records one scheduled job run.
func (m *Metrics) RecordJob(job string, elapsed time.Duration, success bool) {
	m.jobRuns.WithLabelValues(job, outcome(success)).Inc()
	m.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
