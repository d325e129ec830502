package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{1, 10, 50, 100, 500, 1000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Scanner metrics
var (
	ScannerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_scanner_runs_total",
			Help: "Total number of full scans started",
		},
	)

	ScannerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_scanner_is_running",
			Help: "Whether a full scan is currently running (1) or not (0)",
		},
	)

	ScannerFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_scanner_files_processed_total",
			Help: "Total number of files processed by the scanner",
		},
	)

	ScannerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_scanner_errors_total",
			Help: "Total number of per-file scanner errors",
		},
	)

	ScannerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_scanner_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed scan",
		},
	)

	ScannerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_scanner_last_run_duration_seconds",
			Help: "Duration of the last completed scan in seconds",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_watcher_events_total",
			Help: "Raw filesystem events received, by operation",
		},
		[]string{"op"},
	)

	WatcherBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_watcher_batches_total",
			Help: "Total number of drain batches processed",
		},
	)

	WatcherPendingEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_index_watcher_pending_events",
			Help: "Events currently queued for processing, by set",
		},
		[]string{"set"},
	)
)

// Geocoding metrics
var (
	GeocodeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_geocode_lookups_total",
			Help: "Geocode cache lookups, by result (hit/miss)",
		},
		[]string{"result"},
	)

	GeocodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_geocode_requests_total",
			Help: "Outbound reverse-geocoding requests, by status",
		},
		[]string{"status"},
	)

	GeocodeRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_index_geocode_request_duration_seconds",
			Help:    "Outbound reverse-geocoding request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
