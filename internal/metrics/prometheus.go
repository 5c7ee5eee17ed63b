package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Prometheus metrics for the ingestion service

var (
	// API Call metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_ingest_api_calls_total",
			Help: "Total number of stats API call attempts",
		},
		[]string{"endpoint", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nba_ingest_api_call_duration_seconds",
			Help:    "Duration of API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	FetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_ingest_fetch_retries_total",
			Help: "Total number of retries after a transient fetch failure",
		},
		[]string{"endpoint"},
	)

	FetchBackoffSeconds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_ingest_fetch_backoff_seconds_total",
			Help: "Total time spent waiting between fetch attempts",
		},
		[]string{"endpoint"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_ingest_db_queries_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nba_ingest_db_query_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nba_ingest_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nba_ingest_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nba_ingest_cache_hits_total",
			Help: "Total number of payload cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nba_ingest_cache_misses_total",
			Help: "Total number of payload cache misses",
		},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nba_ingest_cache_operation_duration_seconds",
			Help:    "Duration of cache operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Ingestion metrics
	KindIngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_ingest_kind_total",
			Help: "Per-game kind ingestion outcomes",
		},
		[]string{"kind", "status"},
	)

	RowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_ingest_rows_written_total",
			Help: "Total number of rows written per kind",
		},
		[]string{"kind"},
	)

	GamesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_ingest_games_processed_total",
			Help: "Total number of games processed by outcome",
		},
		[]string{"outcome"},
	)

	GamesMissing = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nba_ingest_games_missing",
			Help: "Games on the schedule not yet ingested at the start of the last run",
		},
		[]string{"season"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_ingest_runs_total",
			Help: "Total number of season runs",
		},
		[]string{"season", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nba_ingest_run_duration_seconds",
			Help:    "Duration of season runs in seconds",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
		},
		[]string{"season"},
	)

	LastSuccessfulRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nba_ingest_last_successful_run_timestamp",
			Help: "Timestamp of the last season run that reached DONE",
		},
		[]string{"season"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nba_ingest_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nba_ingest_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)
)

// RecordAPICall records an API call metric
func RecordAPICall(endpoint, status string, duration float64) {
	APICallsTotal.WithLabelValues(endpoint, status).Inc()
	APICallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordRetry records a retry and the backoff that preceded it
func RecordRetry(endpoint string, backoffSeconds float64) {
	FetchRetriesTotal.WithLabelValues(endpoint).Inc()
	FetchBackoffSeconds.WithLabelValues(endpoint).Add(backoffSeconds)
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordCacheOperation records a cache operation duration
func RecordCacheOperation(operation string, duration float64) {
	CacheOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordKind records the outcome of one kind for one game
func RecordKind(kind, status string, rows int) {
	KindIngestTotal.WithLabelValues(kind, status).Inc()
	if rows > 0 {
		RowsWrittenTotal.WithLabelValues(kind).Add(float64(rows))
	}
}

// RecordGame records a per-game outcome
func RecordGame(outcome string) {
	GamesProcessedTotal.WithLabelValues(outcome).Inc()
}

// SetGamesMissing records how many games a run found missing
func SetGamesMissing(season string, n int) {
	GamesMissing.WithLabelValues(season).Set(float64(n))
}

// RecordRun records a finished season run
func RecordRun(season, status string, duration float64) {
	RunsTotal.WithLabelValues(season, status).Inc()
	RunDuration.WithLabelValues(season).Observe(duration)

	if status == "success" {
		LastSuccessfulRun.WithLabelValues(season).SetToCurrentTime()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}

// Push sends every registered metric to a Pushgateway.
// One-shot runs exit before a scrape, so they push instead.
func Push(gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer).Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
