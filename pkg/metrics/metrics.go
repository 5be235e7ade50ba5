// Package metrics holds the Prometheus collectors exported by `chatrelay serve`.
//
// Every recording method is safe on a nil *Metrics so components can take an
// optional collector set without guarding each call.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatrelay"

// Session outcomes.
const (
	OutcomeClosed   = "closed"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Event publish results.
const (
	EventPublished = "published"
	EventFailed    = "failed"
	EventDropped   = "dropped"
)

// Metrics is a collector set bound to its own registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	activeSessions   prometheus.Gauge
	sessions         *prometheus.CounterVec
	sessionDuration  *prometheus.HistogramVec
	tokens           *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
	persistFailures  *prometheus.CounterVec
	events           *prometheus.CounterVec
	modelCacheLookup *prometheus.CounterVec
}

// New registers every collector, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route. Streaming routes measure the full stream.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_active_sessions",
			Help:      "Relay sessions currently streaming.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_sessions_total",
			Help:      "Relay sessions by final outcome.",
		}, []string{"outcome"}),
		sessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_session_duration_seconds",
			Help:      "Relay session wall time by model.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"model"}),
		tokens: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_tokens",
			Help:      "Tokens generated per finalized session.",
			Buckets:   []float64{10, 50, 100, 200, 500, 1000, 2000, 4000},
		}, []string{"model"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Inference server failures by kind.",
		}, []string{"kind"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Best-effort persistence writes that failed, by operation.",
		}, []string{"op"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Generation events by publish result.",
		}, []string{"result"}),
		modelCacheLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_cache_lookups_total",
			Help:      "Upstream model-list cache lookups by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.activeSessions,
		m.sessions,
		m.sessionDuration,
		m.tokens,
		m.upstreamErrors,
		m.persistFailures,
		m.events,
		m.modelCacheLookup,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// SessionStarted marks a relay session as streaming.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionEnded records the outcome of a session that was started.
func (m *Metrics) SessionEnded(outcome, model string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	m.sessions.WithLabelValues(outcome).Inc()
	m.sessionDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// SessionRejected counts a request refused before any transport opened.
func (m *Metrics) SessionRejected() {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(OutcomeRejected).Inc()
}

// TokensGenerated records a finalized session's token count.
func (m *Metrics) TokensGenerated(model string, n int) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(model).Observe(float64(n))
}

// UpstreamError counts an inference server failure. kind is "status",
// "timeout", "transport" or "truncated".
func (m *Metrics) UpstreamError(kind string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(kind).Inc()
}

// PersistFailed counts a failed best-effort write.
func (m *Metrics) PersistFailed(op string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(op).Inc()
}

// Event counts a generation event by publish result.
func (m *Metrics) Event(result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(result).Inc()
}

// ModelCacheLookup counts a model-list cache hit or miss.
func (m *Metrics) ModelCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.modelCacheLookup.WithLabelValues(result).Inc()
}
