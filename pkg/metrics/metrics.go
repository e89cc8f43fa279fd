// Package metrics defines the Prometheus collectors of the query service and
// exposes an HTTP handler for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Query outcomes recorded by QueriesTotal.
const (
	OutcomeOK        = "ok"
	OutcomeMalformed = "malformed"
	OutcomeAmbiguous = "ambiguous"
	OutcomeError     = "error"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	CompileDuration      prometheus.Histogram
	QueryLatency         *prometheus.HistogramVec
	RowsReturned         prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocumentEventsTotal  *prometheus.CounterVec
	SourceDocCount       *prometheus.GaugeVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fts_queries_total",
				Help: "Total FTS queries by outcome (ok, malformed, ambiguous, error).",
			},
			[]string{"outcome"},
		),
		CompileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fts_compile_duration_seconds",
				Help:    "Time spent parsing and compiling FTS text.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
			},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fts_query_latency_seconds",
				Help:    "End-to-end query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		RowsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fts_rows_returned",
				Help:    "Number of composed rows returned per query page.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		DocumentEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "document_events_total",
				Help: "Document events applied to the catalog by operation and status.",
			},
			[]string{"op", "status"},
		),
		SourceDocCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "source_document_count",
				Help: "Number of indexed documents per source.",
			},
			[]string{"source"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.CompileDuration,
		m.QueryLatency,
		m.RowsReturned,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocumentEventsTotal,
		m.SourceDocCount,
		m.CircuitBreakerState,
	)

	return m
}
