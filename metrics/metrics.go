// Package metrics provides Prometheus metrics collection for the interactions API.
// It exports HTTP request metrics plus the counters of the interaction pipeline:
//   - http_request_total / http_request_duration_seconds / http_request_in_flight
//   - interaction_cache_lookups_total: Counter with outcome label (hit, miss, shared)
//   - interaction_cache_write_errors_total: Counter of failed durable writes
//   - external_calls_total: Counter with service and outcome labels
//   - external_call_duration_seconds: Histogram with service label
//   - interaction_refresh_runs_total / interaction_refresh_keys_total
//
// All metrics are automatically registered with the Prometheus default registry
// during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Label values for external calls
const (
	ServiceLookup       = "identifier_lookup"
	ServiceInteractions = "interaction_provider"

	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (clients seen since the last cleanup)",
		},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interaction_cache_lookups_total",
			Help: "Interaction cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	CacheWriteErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interaction_cache_write_errors_total",
			Help: "Failed writes of computed interaction results",
		},
	)

	ExternalCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_calls_total",
			Help: "Calls to external collaborators by service and outcome",
		},
		[]string{"service", "outcome"},
	)

	ExternalCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_call_duration_seconds",
			Help:    "External collaborator latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service"},
	)

	RefreshRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interaction_refresh_runs_total",
			Help: "Refresh runs by result (completed, skipped, failed)",
		},
		[]string{"result"},
	)

	RefreshKeysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interaction_refresh_keys_total",
			Help: "Cache keys processed by the refresher by result",
		},
		[]string{"result"},
	)

	RefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interaction_refresh_duration_seconds",
			Help:    "Duration of a full refresh run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(CacheLookupsTotal)
	prometheus.MustRegister(CacheWriteErrorsTotal)
	prometheus.MustRegister(ExternalCallsTotal)
	prometheus.MustRegister(ExternalCallDuration)
	prometheus.MustRegister(RefreshRunsTotal)
	prometheus.MustRegister(RefreshKeysTotal)
	prometheus.MustRegister(RefreshDuration)
}
