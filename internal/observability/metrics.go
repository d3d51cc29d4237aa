package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts platform API calls by endpoint and outcome.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unscored_api_requests_total",
		Help: "Total number of platform API requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	// APIRequestLatency records the latency of single platform API attempts.
	APIRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unscored_api_request_latency_seconds",
		Help:    "Platform API request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// ResponseCacheLookups counts response cache hits and misses.
	ResponseCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unscored_response_cache_total",
		Help: "Response cache lookups by result",
	}, []string{"result"})

	// ArchivedItems counts archive writes by item kind and result.
	ArchivedItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unscored_archived_items_total",
		Help: "Archive writes by kind (post, comment, modlog) and result (inserted, updated, duplicate, failed)",
	}, []string{"kind", "result"})

	// IngestRuns counts scheduled ingestion steps by outcome.
	IngestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unscored_ingest_runs_total",
		Help: "Scheduled ingestion steps by outcome",
	}, []string{"outcome"})

	// IngestInterval exposes the current polling interval per community.
	IngestInterval = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "unscored_ingest_interval_seconds",
		Help: "Current polling interval of each community in seconds",
	}, []string{"community"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unscored_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unscored_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
