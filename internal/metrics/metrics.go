package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSize      *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitExceededTotal *prometheus.CounterVec

	// Redis metrics
	RedisOperationDuration *prometheus.HistogramVec
	RedisOperationsTotal   *prometheus.CounterVec

	// View metrics
	ViewsTotal           *prometheus.CounterVec
	ViewRecordDuration   *prometheus.HistogramVec
	CounterRebuilds      *prometheus.CounterVec
	CounterRebuildRows   prometheus.Gauge
	CounterRebuildLength prometheus.Histogram

	// Clap metrics
	ClapsSetTotal      *prometheus.CounterVec
	ClapsRejectedTotal *prometheus.CounterVec

	// Permalink metrics
	InvalidTokensTotal *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			// HTTP metrics
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			// Rate limiting metrics
			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit violations",
				},
				[]string{"limiter", "method"},
			),

			// Redis metrics
			RedisOperationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "redis_operation_duration_seconds",
					Help:    "Redis operation latency in seconds",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
				},
				[]string{"operation"},
			),
			RedisOperationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "redis_operations_total",
					Help: "Total number of Redis operations",
				},
				[]string{"operation", "status"},
			),

			// View metrics
			ViewsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_views_total",
					Help: "View submissions by target type and outcome (recorded, deduplicated, self)",
				},
				[]string{"target_type", "outcome"},
			),
			ViewRecordDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "engagement_view_record_duration_seconds",
					Help:    "Time to deduplicate and record a view",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
				},
				[]string{"target_type"},
			),
			CounterRebuilds: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_view_count_rebuilds_total",
					Help: "Counter cache rebuilds by status",
				},
				[]string{"status"},
			),
			CounterRebuildRows: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "engagement_view_count_rebuild_rows",
					Help: "Rows written by the last successful counter cache rebuild",
				},
			),
			CounterRebuildLength: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "engagement_view_count_rebuild_duration_seconds",
					Help:    "Counter cache rebuild duration in seconds",
					Buckets: []float64{.01, .1, .5, 1, 5, 15, 60, 300},
				},
			),

			// Clap metrics
			ClapsSetTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_claps_set_total",
					Help: "Accepted clap submissions by target type",
				},
				[]string{"target_type"},
			),
			ClapsRejectedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_claps_rejected_total",
					Help: "Rejected clap submissions by target type and reason",
				},
				[]string{"target_type", "reason"},
			),

			// Permalink metrics
			InvalidTokensTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "permalink_invalid_tokens_total",
					Help: "Permalink tokens that failed to decode",
				},
				[]string{"resource"},
			),

			// Error metrics
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}
