// Package metrics provides Prometheus instrumentation for the media-index
// application.
//
// This package defines and exposes various metrics that can be scraped by
// Prometheus to monitor the health, performance, and behavior of the
// application. All metrics are prefixed with "media_index_" to avoid naming
// collisions with other applications.
//
// # Metric Categories
//
//   - HTTP: request totals, duration, in-flight gauge
//   - Database: query totals/duration, transaction duration, rows affected
//   - Scanner: run totals, running gauge, files processed, errors
//   - Watcher: raw event totals, drain batches, pending-set gauges
//   - Geocoding: cache hit/miss totals, outbound request totals/duration
package metrics
