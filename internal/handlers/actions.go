package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"media-index/internal/logging"
	"media-index/internal/scanner"
)

type pathRequest struct {
	Path string `json:"path"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}

// SetFavorite serves POST /api/favorite: flip the favorite flag directly.
func (h *Handlers) SetFavorite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path     string `json:"path"`
		Favorite bool   `json:"favorite"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSONError(w, "path required", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateFavorite(req.Path, req.Favorite); err != nil {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSONStatus(w, "ok")
}

// SetRating serves POST /api/rating: store a star rating; five stars marks
// the file favorite.
func (h *Handlers) SetRating(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path   string `json:"path"`
		Rating int    `json:"rating"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSONError(w, "path required", http.StatusBadRequest)
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		writeJSONError(w, "rating must be between 0 and 5", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateRating(req.Path, req.Rating); err != nil {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status":        "ok",
		"rating":        req.Rating,
		"favorite":      req.Rating >= 5,
		"writtenToFile": h.scanner.WriteRating(req.Path, req.Rating),
	})
}

// DeleteFile serves POST /api/delete: relocate a file into quarantine.
func (h *Handlers) DeleteFile(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSONError(w, "path required", http.StatusBadRequest)
		return
	}

	dest, err := h.scanner.DeleteFile(req.Path)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "newPath": dest})
}

// MarkForEdit serves POST /api/edit: relocate a file into the edit folder.
func (h *Handlers) MarkForEdit(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSONError(w, "path required", http.StatusBadRequest)
		return
	}

	dest, err := h.scanner.MarkForEdit(req.Path)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "newPath": dest})
}

// RestoreFile serves POST /api/restore: move a relocated file back home.
func (h *Handlers) RestoreFile(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSONError(w, "path required", http.StatusBadRequest)
		return
	}

	original, err := h.scanner.RestoreFile(req.Path)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "restoredPath": original})
}

// UpdateBurst serves POST /api/burst: record curated burst metadata.
func (h *Handlers) UpdateBurst(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path      string   `json:"path"`
		Size      int      `json:"size"`
		Favorites []string `json:"favorites"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSONError(w, "path required", http.StatusBadRequest)
		return
	}
	if req.Size < 0 {
		writeJSONError(w, "size must not be negative", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateBurstMetadata(req.Path, req.Size, req.Favorites); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}

// TriggerScan serves POST /api/scan: kick off a manual walk in the
// background. Responds 409 when one is already running.
func (h *Handlers) TriggerScan(w http.ResponseWriter, _ *http.Request) {
	if h.scanner.Running() {
		writeJSONError(w, "scan already in progress", http.StatusConflict)
		return
	}

	// The walk must outlive this request.
	go func() {
		if _, err := h.scanner.FullScan(context.Background(), "manual"); err != nil && err != scanner.ErrScanInProgress {
			logging.Error("Manual scan failed: %v", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	writeJSONStatus(w, "scan started")
}

// TriggerMaintenance serves POST /api/maintenance: prune history, purge
// orphans and compact the catalog.
func (h *Handlers) TriggerMaintenance(w http.ResponseWriter, _ *http.Request) {
	if err := h.scanner.RunMaintenance(); err != nil {
		if err == scanner.ErrScanInProgress {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}
