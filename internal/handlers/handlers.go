package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"media-index/internal/database"
	"media-index/internal/logging"
	"media-index/internal/scanner"
	"media-index/internal/watcher"
)

// Handlers carries the dependencies every endpoint needs.
type Handlers struct {
	db           *database.DB
	scanner      *scanner.Scanner
	watcher      *watcher.Watcher // nil when the watcher is disabled
	mediaDir     string
	newThreshold time.Duration // default recency preference for random picks
	startedAt    time.Time
}

// New wires the HTTP layer to the catalog and scanner. watcher may be nil;
// newThreshold is the configured window within which freshly indexed files
// are preferred by the random endpoint.
func New(db *database.DB, sc *scanner.Scanner, w *watcher.Watcher, mediaDir string, newThreshold time.Duration) *Handlers {
	return &Handlers{
		db:           db,
		scanner:      sc,
		watcher:      w,
		mediaDir:     mediaDir,
		newThreshold: newThreshold,
		startedAt:    time.Now(),
	}
}

// writeJSON encodes v as JSON. Encoding errors are logged; there is nothing
// else to do for a half-written response.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logging.Error("failed to encode JSON error: %v", err)
	}
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	writeJSON(w, map[string]string{"status": status})
}

// encodeCursor renders a pagination cursor as an opaque URL-safe token.
func encodeCursor(c *database.Cursor) string {
	if c == nil {
		return ""
	}
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeCursor parses a token produced by encodeCursor. An empty token is
// a nil cursor, not an error.
func decodeCursor(token string) (*database.Cursor, error) {
	if token == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var c database.Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
