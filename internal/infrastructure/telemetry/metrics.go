package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names, without the namespace prefix.
const (
	MetricHTTPRequestsTotal   = "http_requests_total"
	MetricHTTPRequestDuration = "http_request_duration_seconds"
	MetricHTTPActiveRequests  = "http_active_requests"
	MetricLedgerChangesTotal  = "ledger_changes_total"
)

// HTTPDurationBuckets are the request latency buckets in seconds
var HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics owns a private Prometheus registry and the instruments recorded into it.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	namespace string
	registry  *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
	ledgerChanges   *prometheus.CounterVec
}

// NewMetrics creates the registry with Go runtime and process collectors and the HTTP
// and ledger instruments.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricHTTPRequestsTotal,
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      MetricHTTPRequestDuration,
			Help:      "Duration of HTTP requests",
			Buckets:   HTTPDurationBuckets,
		}, []string{"method", "route"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricHTTPActiveRequests,
			Help:      "HTTP requests currently being served",
		}),
		ledgerChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricLedgerChangesTotal,
			Help:      "Persisted ledger mutations",
		}, []string{"ledger"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.activeRequests,
		m.ledgerChanges,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RequestStarted increments the in-flight gauge; the returned func records the
// finished request and decrements it.
func (m *Metrics) RequestStarted() func(method, route string, status int, elapsed time.Duration) {
	m.activeRequests.Inc()
	return func(method, route string, status int, elapsed time.Duration) {
		m.activeRequests.Dec()
		m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	}
}

// LedgerChangeListener returns a change listener counting mutations of the named ledger
func (m *Metrics) LedgerChangeListener(ledger string) shared.ChangeListener {
	counter := m.ledgerChanges.WithLabelValues(ledger)
	return func(context.Context) {
		counter.Inc()
	}
}

// GaugeFunc registers a gauge whose value is read from fn at scrape time
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// RegisterDBStats exports connection pool statistics of db. Registering a second
// pool under the same name is ignored.
func (m *Metrics) RegisterDBStats(db *sql.DB, name string) error {
	err := m.registry.Register(collectors.NewDBStatsCollector(db, name))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
