package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"media-index/internal/database"
	"media-index/internal/mediatypes"
)

// filterFromQuery builds the filter from request parameters. Invalid values
// are dropped and reported as warnings rather than failing the request.
func filterFromQuery(r *http.Request) (database.QueryFilter, []string) {
	q := r.URL.Query()
	f := database.QueryFilter{
		Folder:        q.Get("folder"),
		FolderExact:   q.Get("recursive") == "false",
		FileType:      q.Get("type"),
		FavoritesOnly: q.Get("favorites") == "true",
	}

	var warnings []string
	if f.FileType != "" &&
		f.FileType != string(mediatypes.FileTypeImage) &&
		f.FileType != string(mediatypes.FileTypeVideo) {
		warnings = append(warnings, fmt.Sprintf("ignoring unknown type %q", f.FileType))
		f.FileType = ""
	}
	if v := q.Get("from"); v != "" {
		if t, err := parseDate(v); err == nil {
			f.DateFrom = t
		} else {
			warnings = append(warnings, fmt.Sprintf("ignoring invalid from date %q", v))
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := parseDate(v); err == nil {
			f.DateTo = t
		} else {
			warnings = append(warnings, fmt.Sprintf("ignoring invalid to date %q", v))
		}
	}
	return f, warnings
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func listResponse(items []*database.Item, warnings []string) map[string]interface{} {
	resp := map[string]interface{}{
		"items": itemsOrEmpty(items),
		"count": len(items),
	}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	return resp
}

func intParam(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func floatParam(r *http.Request, name string, fallback float64) float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

// randomThreshold resolves the recency preference for one random request.
// The configured default applies when the request names no threshold; an
// explicit 0 turns the preference off.
func (h *Handlers) randomThreshold(r *http.Request) time.Duration {
	v := r.URL.Query().Get("new_threshold_hours")
	if v == "" {
		return h.newThreshold
	}
	hours, err := strconv.Atoi(v)
	if err != nil || hours < 0 {
		return h.newThreshold
	}
	return time.Duration(hours) * time.Hour
}

// RandomFiles serves GET /api/random: a random page of the catalog, with
// optional preference for recently indexed files.
func (h *Handlers) RandomFiles(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 10)
	if limit > 500 {
		limit = 500
	}

	threshold := h.randomThreshold(r)

	filter, warnings := filterFromQuery(r)
	items, err := h.db.RandomFiles(limit, filter, threshold)
	if err != nil {
		writeJSONError(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, listResponse(items, warnings))
}

// ListFiles serves GET /api/files: one ordered page with cursor pagination.
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter, warnings := filterFromQuery(r)

	sortKey := q.Get("sort")
	if sortKey == "" {
		sortKey = "capture_time"
	} else if !database.ValidSortKey(sortKey) {
		warnings = append(warnings, fmt.Sprintf("ignoring unknown sort %q", sortKey))
		sortKey = "capture_time"
	}
	direction := q.Get("direction")
	if direction == "" {
		direction = "desc"
	} else if direction != "asc" && direction != "desc" {
		warnings = append(warnings, fmt.Sprintf("ignoring unknown direction %q", direction))
		direction = "desc"
	}
	limit := intParam(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}

	cursor, err := decodeCursor(q.Get("cursor"))
	if err != nil {
		writeJSONError(w, "malformed cursor", http.StatusBadRequest)
		return
	}

	items, next, err := h.db.OrderedFiles(sortKey, direction, limit, filter, cursor)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := listResponse(items, warnings)
	if next != nil {
		resp["nextCursor"] = encodeCursor(next)
	}
	writeJSON(w, resp)
}

// RelatedFiles serves GET /api/related: the burst group of a file. The
// grouping window (seconds), distance tolerance (meters) and sort direction
// are adjustable per request.
func (h *Handlers) RelatedFiles(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSONError(w, "path parameter required", http.StatusBadRequest)
		return
	}

	window := time.Duration(intParam(r, "window", 0)) * time.Second
	tolerance := floatParam(r, "tolerance", 0)
	direction := r.URL.Query().Get("direction")

	items, err := h.db.BurstFiles(path, window, tolerance, direction)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, listResponse(items, nil))
}

// AnniversaryFiles serves GET /api/anniversary: files captured on or around
// a month/day across all years. Defaults to today's date; an explicit 0
// wildcards that component.
func (h *Handlers) AnniversaryFiles(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	month := intParam(r, "month", int(now.Month()))
	day := intParam(r, "day", now.Day())
	window := intParam(r, "window", 0)
	limit := intParam(r, "limit", 50)

	if month < 0 || month > 12 || day < 0 || day > 31 || (month == 0 && day == 0) {
		writeJSONError(w, "invalid month or day", http.StatusBadRequest)
		return
	}

	filter, warnings := filterFromQuery(r)
	items, err := h.db.AnniversaryFiles(time.Month(month), day, window, limit, filter)
	if err != nil {
		writeJSONError(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, listResponse(items, warnings))
}

// FileMetadata serves GET /api/file/metadata: the full catalog entry for
// one path.
func (h *Handlers) FileMetadata(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSONError(w, "path parameter required", http.StatusBadRequest)
		return
	}

	item, err := h.db.GetFileByPath(path)
	if err != nil {
		writeJSONError(w, "query failed", http.StatusInternalServerError)
		return
	}
	if item == nil {
		writeJSONError(w, "file not indexed", http.StatusNotFound)
		return
	}
	writeJSON(w, item)
}

// itemsOrEmpty keeps the JSON array non-null for empty result sets.
func itemsOrEmpty(items []*database.Item) []*database.Item {
	if items == nil {
		return []*database.Item{}
	}
	return items
}
