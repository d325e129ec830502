package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// DB wraps the sqlite catalog. All access goes through its methods; callers
// never see raw *sql.DB.
type DB struct {
	conn *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS media_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path TEXT UNIQUE NOT NULL,
	filename TEXT NOT NULL,
	folder TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	modified_time INTEGER NOT NULL,
	created_time INTEGER NOT NULL,
	last_scanned INTEGER NOT NULL,
	width INTEGER,
	height INTEGER,
	orientation TEXT,
	duration REAL,
	is_favorite INTEGER NOT NULL DEFAULT 0,
	rating INTEGER NOT NULL DEFAULT 0,
	rated_at INTEGER
);

CREATE TABLE IF NOT EXISTS exif_data (
	file_id INTEGER PRIMARY KEY,
	capture_time INTEGER,
	latitude REAL,
	longitude REAL,
	altitude REAL,
	location_name TEXT,
	location_city TEXT,
	location_state TEXT,
	location_country TEXT,
	camera_make TEXT,
	camera_model TEXT,
	rating INTEGER,
	is_favorite INTEGER,
	iso INTEGER,
	aperture REAL,
	shutter_speed TEXT,
	focal_length REAL,
	focal_length_35mm INTEGER,
	exposure_compensation TEXT,
	metering_mode TEXT,
	white_balance TEXT,
	flash TEXT,
	burst_size INTEGER NOT NULL DEFAULT 0,
	burst_favorites TEXT,
	FOREIGN KEY (file_id) REFERENCES media_files(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	location_name TEXT,
	location_city TEXT,
	location_state TEXT,
	location_country TEXT,
	precision_level INTEGER NOT NULL DEFAULT 3,
	cached_at INTEGER NOT NULL,
	UNIQUE(latitude, longitude, precision_level)
);

CREATE TABLE IF NOT EXISTS scan_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	folder_path TEXT NOT NULL,
	scan_type TEXT NOT NULL,
	start_time INTEGER NOT NULL,
	end_time INTEGER,
	files_added INTEGER NOT NULL DEFAULT 0,
	files_updated INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS geocode_stats (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	cache_hits INTEGER NOT NULL DEFAULT 0,
	cache_misses INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER
);

CREATE TABLE IF NOT EXISTS move_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	original_path TEXT NOT NULL,
	new_path TEXT NOT NULL,
	moved_at INTEGER NOT NULL,
	reason TEXT,
	restored INTEGER NOT NULL DEFAULT 0,
	restored_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_media_files_path ON media_files(file_path);
CREATE INDEX IF NOT EXISTS idx_media_files_folder ON media_files(folder);
CREATE INDEX IF NOT EXISTS idx_media_files_type ON media_files(file_type);
CREATE INDEX IF NOT EXISTS idx_media_files_modified ON media_files(modified_time);
CREATE INDEX IF NOT EXISTS idx_media_files_favorite ON media_files(is_favorite);
CREATE INDEX IF NOT EXISTS idx_exif_capture_time ON exif_data(capture_time);
CREATE INDEX IF NOT EXISTS idx_exif_coords ON exif_data(latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_geocode_coords ON geocode_cache(latitude, longitude, precision_level);
CREATE INDEX IF NOT EXISTS idx_move_history_new_path ON move_history(new_path);
`

// New opens (creating if necessary) the catalog at path and brings the
// schema up to date.
func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=10000&_foreign_keys=on"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// sqlite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under the watcher and scanner running together.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn, path: path}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	metrics.DBConnectionsOpen.Set(1)
	logging.Info("Database ready at %s", path)
	return db, nil
}

// migration is a column added after the initial schema shipped. Additive
// only; sqlite cannot drop columns in place.
type migration struct {
	table      string
	column     string
	definition string
}

var migrations = []migration{
	{"media_files", "rating", "INTEGER NOT NULL DEFAULT 0"},
	{"media_files", "rated_at", "INTEGER"},
	{"exif_data", "altitude", "REAL"},
	{"exif_data", "exposure_compensation", "TEXT"},
	{"exif_data", "burst_size", "INTEGER NOT NULL DEFAULT 0"},
	{"exif_data", "burst_favorites", "TEXT"},
	{"geocode_cache", "precision_level", "INTEGER NOT NULL DEFAULT 3"},
}

// identPattern limits migration identifiers to plain lowercase names. The
// list above is static, but ALTER TABLE is assembled from strings, so every
// name is checked before it reaches SQL.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func (db *DB) migrate() error {
	for _, m := range migrations {
		if !identPattern.MatchString(m.table) || !identPattern.MatchString(m.column) {
			return fmt.Errorf("refusing migration with identifier %s.%s", m.table, m.column)
		}
		ok, err := db.columnExists(m.table, m.column)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, m.column, m.definition)
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("adding %s.%s: %w", m.table, m.column, err)
		}
		logging.Info("Migrated schema: added %s.%s", m.table, m.column)
	}
	return nil
}

func (db *DB) columnExists(table, column string) (bool, error) {
	rows, err := db.conn.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	metrics.DBConnectionsOpen.Set(0)
	return db.conn.Close()
}

// Path returns the filesystem path of the catalog file.
func (db *DB) Path() string {
	return db.path
}

// Vacuum reclaims free pages. Run it from maintenance, never mid-scan.
func (db *DB) Vacuum() error {
	start := time.Now()
	_, err := db.conn.Exec("VACUUM")
	recordQuery("vacuum", start, err)
	return err
}

// BeginBatch starts a transaction for bulk writes during a scan. The
// returned tx must be finished with EndBatch.
func (db *DB) BeginBatch() (*sql.Tx, error) {
	return db.conn.Begin()
}

// EndBatch commits the batch, rolling back on commit failure.
func (db *DB) EndBatch(tx *sql.Tx) error {
	start := time.Now()
	outcome := "commit"
	err := tx.Commit()
	if err != nil {
		tx.Rollback()
		outcome = "rollback"
	}
	metrics.DBTransactionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return err
}

// recordQuery tracks per-operation counters and latency.
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Unavailable reports whether err means the store itself is gone (closed or
// detached), as opposed to a per-row failure. Scans abort on this.
func Unavailable(err error) bool {
	if err == nil {
		return false
	}
	if err == sql.ErrConnDone {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// timeOrZero converts a nullable unix-seconds column to time.Time.
func timeOrZero(v sql.NullInt64) time.Time {
	if !v.Valid || v.Int64 == 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0)
}

// unixOrNil converts an optional time for storage.
func unixOrNil(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Unix()
}
