package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service's prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	sweeps       *prometheus.CounterVec
	notices      *prometheus.CounterVec
	realtimeSubs prometheus.Gauge
}

// NewMetrics registers collectors on a private registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Error responses by route and error code.",
		}, []string{"route", "method", "code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doubt_transitions_total",
			Help:      "Lifecycle transition attempts by action and result.",
		}, []string{"action", "from", "to", "result"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doubt_sweep_items_total",
			Help:      "Doubts handled by background sweeps.",
		}, []string{"sweep", "outcome"}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_emitted_total",
			Help:      "Notification emission attempts by type and result.",
		}, []string{"type", "result"}),
		realtimeSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_subscribers",
			Help:      "Open change feed subscriptions.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.errors, m.transitions, m.sweeps, m.notices, m.realtimeSubs,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordTransition counts a lifecycle attempt. result is applied, rejected, stale, noop or failed.
func (m *Metrics) RecordTransition(action, from, to, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, from, to, result).Inc()
}

// RecordSweep counts doubts handled by a sweep.
func (m *Metrics) RecordSweep(sweep, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweeps.WithLabelValues(sweep, outcome).Add(float64(n))
}

// RecordNotification counts notification emission attempts.
func (m *Metrics) RecordNotification(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.notices.WithLabelValues(kind, result).Inc()
}

// SubscriberDelta tracks open change feed streams.
func (m *Metrics) SubscriberDelta(delta int) {
	if m == nil {
		return
	}
	m.realtimeSubs.Add(float64(delta))
}
