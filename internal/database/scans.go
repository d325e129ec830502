package database

import (
	"database/sql"
	"fmt"
	"time"

	"media-index/internal/metrics"
)

// RecordScanStart opens a scan_history row and returns its id for FinishScan.
func (db *DB) RecordScanStart(folder, scanType string) (int64, error) {
	start := time.Now()
	res, err := db.conn.Exec(`
		INSERT INTO scan_history (folder_path, scan_type, start_time, status)
		VALUES (?, ?, ?, ?)`,
		folder, scanType, time.Now().Unix(), ScanStatusRunning)
	recordQuery("scan_start", start, err)
	if err != nil {
		return 0, fmt.Errorf("recording scan start: %w", err)
	}
	return res.LastInsertId()
}

// FinishScan closes a scan_history row with its final counters and status.
func (db *DB) FinishScan(id int64, added, updated int, status string) error {
	start := time.Now()
	_, err := db.conn.Exec(`
		UPDATE scan_history
		SET end_time = ?, files_added = ?, files_updated = ?, status = ?
		WHERE id = ?`,
		time.Now().Unix(), added, updated, status, id)
	recordQuery("scan_finish", start, err)
	if err != nil {
		return fmt.Errorf("finishing scan %d: %w", id, err)
	}
	return nil
}

// LastScan returns the most recent scan record, or nil when none exist.
func (db *DB) LastScan() (*ScanRecord, error) {
	start := time.Now()
	var (
		r   ScanRecord
		st  int64
		end sql.NullInt64
	)
	err := db.conn.QueryRow(`
		SELECT id, folder_path, scan_type, start_time, end_time,
		       files_added, files_updated, status
		FROM scan_history ORDER BY start_time DESC LIMIT 1`).Scan(
		&r.ID, &r.FolderPath, &r.ScanType, &st, &end,
		&r.FilesAdded, &r.FilesUpdated, &r.Status)
	recordQuery("last_scan", start, err)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching last scan: %w", err)
	}
	r.StartTime = time.Unix(st, 0)
	r.EndTime = timeOrZero(end)
	return &r, nil
}

// PruneScanHistory drops completed scan records older than the cutoff,
// keeping the table from growing without bound.
func (db *DB) PruneScanHistory(olderThan time.Duration) (int64, error) {
	start := time.Now()
	cutoff := time.Now().Add(-olderThan).Unix()
	res, err := db.conn.Exec(`
		DELETE FROM scan_history WHERE start_time < ? AND status != ?`,
		cutoff, ScanStatusRunning)
	recordQuery("prune_scans", start, err)
	if err != nil {
		return 0, fmt.Errorf("pruning scan history: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil {
		metrics.DBRowsAffected.WithLabelValues("prune_scans").Observe(float64(n))
	}
	return n, err
}

// RecordMove logs a relocation into a special folder so it can be restored.
func (db *DB) RecordMove(originalPath, newPath, reason string) (int64, error) {
	start := time.Now()
	res, err := db.conn.Exec(`
		INSERT INTO move_history (original_path, new_path, moved_at, reason)
		VALUES (?, ?, ?, ?)`,
		originalPath, newPath, time.Now().Unix(), emptyNil(reason))
	recordQuery("record_move", start, err)
	if err != nil {
		return 0, fmt.Errorf("recording move of %s: %w", originalPath, err)
	}
	return res.LastInsertId()
}

// MoveByNewPath finds the latest unrestored move that placed a file at
// newPath, or nil when the file was never moved there.
func (db *DB) MoveByNewPath(newPath string) (*MoveRecord, error) {
	start := time.Now()
	var (
		r          MoveRecord
		movedAt    int64
		reason     sql.NullString
		restoredAt sql.NullInt64
	)
	err := db.conn.QueryRow(`
		SELECT id, original_path, new_path, moved_at, reason, restored, restored_at
		FROM move_history
		WHERE new_path = ? AND restored = 0
		ORDER BY moved_at DESC LIMIT 1`, newPath).Scan(
		&r.ID, &r.OriginalPath, &r.NewPath, &movedAt, &reason, &r.Restored, &restoredAt)
	recordQuery("move_lookup", start, err)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up move for %s: %w", newPath, err)
	}
	r.MovedAt = time.Unix(movedAt, 0)
	r.Reason = reason.String
	r.RestoredAt = timeOrZero(restoredAt)
	return &r, nil
}

// MarkRestored closes out a move record after the file returned home.
func (db *DB) MarkRestored(id int64) error {
	start := time.Now()
	_, err := db.conn.Exec(`
		UPDATE move_history SET restored = 1, restored_at = ? WHERE id = ?`,
		time.Now().Unix(), id)
	recordQuery("mark_restored", start, err)
	if err != nil {
		return fmt.Errorf("marking move %d restored: %w", id, err)
	}
	return nil
}
