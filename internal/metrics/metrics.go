// Package metrics exposes prometheus collectors for the relay.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "erasure_relay"

// Metrics groups the relay collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	WebhookTotal        *prometheus.CounterVec
	RuleOutcomesTotal   *prometheus.CounterVec
	DiagnosticsTotal    *prometheus.CounterVec
	DeleteDuration      *prometheus.HistogramVec
	AdminAuthFailures   *prometheus.CounterVec
	RetentionDeleted    prometheus.Counter
}

// New builds the collectors on a dedicated registry.
func New() *Metrics {
	buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request latency",
			Buckets:   buckets,
		}, []string{"method", "path"}),
		WebhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Webhook deliveries by result",
		}, []string{"result"}),
		RuleOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_outcomes_total",
			Help:      "Rule executions by outcome",
		}, []string{"outcome"}),
		DiagnosticsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics emitted by kind",
		}, []string{"kind"}),
		DeleteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "datastore_delete_duration_seconds",
			Help:      "Latency of data-store delete calls",
			Buckets:   buckets,
		}, []string{"datastore_type"}),
		AdminAuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_auth_failures_total",
			Help:      "Rejected admin requests by reason",
		}, []string{"reason"}),
		RetentionDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "error_logs_pruned_total",
			Help:      "Error log rows removed by retention",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WebhookTotal,
		m.RuleOutcomesTotal,
		m.DiagnosticsTotal,
		m.DeleteDuration,
		m.AdminAuthFailures,
		m.RetentionDeleted,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveWebhook(result string) {
	if m == nil {
		return
	}
	m.WebhookTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRule(outcome string) {
	if m == nil {
		return
	}
	m.RuleOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDiagnostic(kind string) {
	if m == nil {
		return
	}
	m.DiagnosticsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveDelete(datastoreType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DeleteDuration.WithLabelValues(datastoreType).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveAdminAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AdminAuthFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) AddRetentionDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RetentionDeleted.Add(float64(n))
}
