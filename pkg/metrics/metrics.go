// Package metrics defines the Prometheus metric collectors used across the
// services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	IndexBuildsTotal      *prometheus.CounterVec
	IndexBuildDuration    *prometheus.HistogramVec
	ChangePublishFailures *prometheus.CounterVec
	AnalysisCallsTotal    *prometheus.CounterVec
	AnalysisLatency       *prometheus.HistogramVec
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	RedactionsTotal       prometheus.Counter
	AmbiguousPhrasesTotal prometheus.Counter
	LocalIndexEntries     *prometheus.GaugeVec
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates all collectors and registers them on reg. Pass
// prometheus.DefaultRegisterer in services and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
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
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lemma_index_builds_total",
				Help: "Index maintenance outcomes by entity kind (written, unchanged, deleted, skipped, error).",
			},
			[]string{"kind", "outcome"},
		),
		IndexBuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lemma_index_build_duration_seconds",
				Help:    "Time to rebuild and persist one index entry.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
			[]string{"kind"},
		),
		ChangePublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entity_change_publish_failures_total",
				Help: "Entity writes whose change event could not be published.",
			},
			[]string{"kind"},
		),
		AnalysisCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "text_analysis_calls_total",
				Help: "analyzeText calls by source (local, remote) and result (ok, error).",
			},
			[]string{"source", "result"},
		),
		AnalysisLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "text_analysis_latency_seconds",
				Help:    "analyzeText latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"source"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analysis_cache_hits_total",
				Help: "Total number of analysis cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analysis_cache_misses_total",
				Help: "Total number of analysis cache misses.",
			},
		),
		RedactionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sensitive_words_redacted_total",
				Help: "Total number of words masked by redaction.",
			},
		),
		AmbiguousPhrasesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ambiguous_phrases_total",
				Help: "Highlighted phrases that matched several terms without language context.",
			},
		),
		LocalIndexEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "local_index_entries",
				Help: "Index entries loaded into the local analyzer per language.",
			},
			[]string{"lang"},
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
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.ChangePublishFailures,
		m.AnalysisCallsTotal,
		m.AnalysisLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RedactionsTotal,
		m.AmbiguousPhrasesTotal,
		m.LocalIndexEntries,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
