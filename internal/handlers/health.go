package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-index/internal/watcher"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	Scanning     bool   `json:"scanning"`
	WatcherState string `json:"watcherState,omitempty"`
	LastScan     string `json:"lastScan,omitempty"`
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck serves GET /healthz.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:       statusHealthy,
		Uptime:       time.Since(h.startedAt).Round(time.Second).String(),
		Scanning:     h.scanner.Running(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if h.watcher != nil {
		state, _ := h.watcher.Status()
		resp.WatcherState = state
	}

	last, err := h.db.LastScan()
	if err != nil {
		resp.Status = statusDegraded
	} else if last != nil {
		resp.LastScan = last.StartTime.Format(time.RFC3339)
	}

	writeJSON(w, resp)
}

// ReadyCheck serves GET /readyz: ready once the catalog answers queries.
func (h *Handlers) ReadyCheck(w http.ResponseWriter, _ *http.Request) {
	if _, err := h.db.LastScan(); err != nil {
		writeJSONError(w, "catalog unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSONStatus(w, "ready")
}

// StatsResponse is the /api/stats payload.
type StatsResponse struct {
	TotalFiles          int     `json:"totalFiles"`
	TotalImages         int     `json:"totalImages"`
	TotalVideos         int     `json:"totalVideos"`
	TotalFolders        int     `json:"totalFolders"`
	TotalFavorites      int     `json:"totalFavorites"`
	FilesWithLocation   int     `json:"filesWithLocation"`
	GeocodeCacheEntries int     `json:"geocodeCacheEntries"`
	GeocodeHits         int64   `json:"geocodeHits"`
	GeocodeMisses       int64   `json:"geocodeMisses"`
	GeocodeHitRate      float64 `json:"geocodeHitRate"`
	LastScanTime        string  `json:"lastScanTime,omitempty"`
	ScanDuration        string  `json:"scanDuration,omitempty"`
	Scanning            bool    `json:"scanning"`
	WatcherState        string  `json:"watcherState,omitempty"`
	WatcherPending      int     `json:"watcherPending"`
	MediaDir            string  `json:"mediaDir"`
}

// Stats serves GET /api/stats.
func (h *Handlers) Stats(w http.ResponseWriter, _ *http.Request) {
	stats, err := h.db.CalculateStats()
	if err != nil {
		writeJSONError(w, "stats query failed", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		TotalFiles:          stats.TotalFiles,
		TotalImages:         stats.TotalImages,
		TotalVideos:         stats.TotalVideos,
		TotalFolders:        stats.TotalFolders,
		TotalFavorites:      stats.TotalFavorites,
		FilesWithLocation:   stats.FilesWithLocation,
		GeocodeCacheEntries: stats.GeocodeCacheEntries,
		GeocodeHits:         stats.GeocodeHits,
		GeocodeMisses:       stats.GeocodeMisses,
		ScanDuration:        stats.ScanDuration,
		Scanning:            h.scanner.Running(),
		MediaDir:            h.mediaDir,
	}
	if total := stats.GeocodeHits + stats.GeocodeMisses; total > 0 {
		resp.GeocodeHitRate = float64(stats.GeocodeHits) / float64(total)
	}
	if !stats.LastScanTime.IsZero() {
		resp.LastScanTime = stats.LastScanTime.Format(time.RFC3339)
	}
	if h.watcher != nil {
		resp.WatcherState, resp.WatcherPending = h.watcher.Status()
	} else {
		resp.WatcherState = watcher.StateIdle
	}

	writeJSON(w, resp)
}
