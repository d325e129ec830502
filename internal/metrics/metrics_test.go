package metrics

import (
	"testing"
)

func TestHTTPMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"HTTPRequestsInFlight", HTTPRequestsInFlight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestDatabaseMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"DBQueryTotal", DBQueryTotal},
		{"DBQueryDuration", DBQueryDuration},
		{"DBTransactionDuration", DBTransactionDuration},
		{"DBConnectionsOpen", DBConnectionsOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestDomainMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"ScannerRunsTotal", ScannerRunsTotal},
		{"ScannerIsRunning", ScannerIsRunning},
		{"ScannerFilesProcessed", ScannerFilesProcessed},
		{"WatcherEventsTotal", WatcherEventsTotal},
		{"WatcherBatchesTotal", WatcherBatchesTotal},
		{"WatcherPendingEvents", WatcherPendingEvents},
		{"GeocodeLookupsTotal", GeocodeLookupsTotal},
		{"GeocodeRequestsTotal", GeocodeRequestsTotal},
		{"GeocodeRequestDuration", GeocodeRequestDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestLabeledMetricsAcceptValues(t *testing.T) {
	// WithLabelValues panics on label-count mismatch; exercising each vec
	// once catches drift between declarations and call sites.
	HTTPRequestsTotal.WithLabelValues("GET", "/api/files", "200")
	HTTPRequestDuration.WithLabelValues("GET", "/api/files")
	DBQueryTotal.WithLabelValues("upsert_file", "success")
	DBQueryDuration.WithLabelValues("upsert_file")
	WatcherEventsTotal.WithLabelValues("create")
	WatcherPendingEvents.WithLabelValues("created")
	GeocodeLookupsTotal.WithLabelValues("hit")
	GeocodeRequestsTotal.WithLabelValues("200")
}
