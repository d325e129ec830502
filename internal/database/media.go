package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"media-index/internal/metrics"
)

// execer lets write helpers run inside a batch transaction or directly on
// the connection.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func (db *DB) ex(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return db.conn
}

// UpsertFile inserts or updates a media file row keyed on its path and
// returns the row id plus whether the file was new or its content changed.
// When size and modified time match the stored row, last_scanned is kept so
// a no-op rescan leaves the row byte-identical. Favorite and rating are
// never touched here; they only move through UpdateFavorite and
// UpdateRating.
func (db *DB) UpsertFile(tx *sql.Tx, f *MediaFile) (int64, bool, error) {
	start := time.Now()
	ex := db.ex(tx)

	var prevSize, prevMod sql.NullInt64
	err := ex.QueryRow(
		"SELECT file_size, modified_time FROM media_files WHERE file_path = ?",
		f.Path).Scan(&prevSize, &prevMod)
	known := err == nil
	if err != nil && err != sql.ErrNoRows {
		recordQuery("upsert_file", start, err)
		return 0, false, fmt.Errorf("checking existing file: %w", err)
	}

	_, err = ex.Exec(`
		INSERT INTO media_files (
			file_path, filename, folder, file_type, file_size,
			modified_time, created_time, last_scanned,
			width, height, orientation, duration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			filename = excluded.filename,
			folder = excluded.folder,
			file_type = excluded.file_type,
			file_size = excluded.file_size,
			modified_time = excluded.modified_time,
			created_time = excluded.created_time,
			width = excluded.width,
			height = excluded.height,
			orientation = excluded.orientation,
			duration = excluded.duration,
			last_scanned = CASE
				WHEN media_files.file_size = excluded.file_size
				 AND media_files.modified_time = excluded.modified_time
				THEN media_files.last_scanned
				ELSE excluded.last_scanned
			END`,
		f.Path, f.Filename, f.Folder, string(f.Type), f.Size,
		f.ModifiedTime.Unix(), f.CreatedTime.Unix(), time.Now().Unix(),
		zeroNil(f.Width), zeroNil(f.Height), emptyNil(f.Orientation), floatNil(f.Duration))
	if err != nil {
		recordQuery("upsert_file", start, err)
		return 0, false, fmt.Errorf("upserting file %s: %w", f.Path, err)
	}

	var id int64
	err = ex.QueryRow("SELECT id FROM media_files WHERE file_path = ?", f.Path).Scan(&id)
	recordQuery("upsert_file", start, err)
	if err != nil {
		return 0, false, fmt.Errorf("resolving file id for %s: %w", f.Path, err)
	}

	changed := !known ||
		!prevSize.Valid || prevSize.Int64 != f.Size ||
		!prevMod.Valid || prevMod.Int64 != f.ModifiedTime.Unix()
	return id, changed, nil
}

// UpsertMetadata inserts or updates the metadata row for a file. Resolved
// place fields stick: an update carrying no city never blanks out a
// previously geocoded place, so cache-warm rescans do not strip locations.
func (db *DB) UpsertMetadata(tx *sql.Tx, m *Metadata) error {
	start := time.Now()

	var burstFavs interface{}
	if len(m.BurstFavorites) > 0 {
		b, err := json.Marshal(m.BurstFavorites)
		if err != nil {
			return fmt.Errorf("encoding burst favorites: %w", err)
		}
		burstFavs = string(b)
	}

	_, err := db.ex(tx).Exec(`
		INSERT INTO exif_data (
			file_id, capture_time, latitude, longitude, altitude,
			location_name, location_city, location_state, location_country,
			camera_make, camera_model, rating, is_favorite,
			iso, aperture, shutter_speed, focal_length, focal_length_35mm,
			exposure_compensation, metering_mode, white_balance, flash,
			burst_size, burst_favorites
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			capture_time = excluded.capture_time,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			altitude = excluded.altitude,
			location_name = CASE
				WHEN excluded.location_city IS NOT NULL AND excluded.location_city != ''
				THEN excluded.location_name ELSE exif_data.location_name END,
			location_city = CASE
				WHEN excluded.location_city IS NOT NULL AND excluded.location_city != ''
				THEN excluded.location_city ELSE exif_data.location_city END,
			location_state = CASE
				WHEN excluded.location_city IS NOT NULL AND excluded.location_city != ''
				THEN excluded.location_state ELSE exif_data.location_state END,
			location_country = CASE
				WHEN excluded.location_city IS NOT NULL AND excluded.location_city != ''
				THEN excluded.location_country ELSE exif_data.location_country END,
			camera_make = excluded.camera_make,
			camera_model = excluded.camera_model,
			rating = COALESCE(excluded.rating, exif_data.rating),
			is_favorite = COALESCE(excluded.is_favorite, exif_data.is_favorite),
			iso = excluded.iso,
			aperture = excluded.aperture,
			shutter_speed = excluded.shutter_speed,
			focal_length = excluded.focal_length,
			focal_length_35mm = excluded.focal_length_35mm,
			exposure_compensation = excluded.exposure_compensation,
			metering_mode = excluded.metering_mode,
			white_balance = excluded.white_balance,
			flash = excluded.flash,
			burst_size = excluded.burst_size,
			burst_favorites = COALESCE(excluded.burst_favorites, exif_data.burst_favorites)`,
		m.FileID, unixOrNil(m.CaptureTime), m.Latitude, m.Longitude, m.Altitude,
		emptyNil(m.LocationName), emptyNil(m.LocationCity),
		emptyNil(m.LocationState), emptyNil(m.LocationCountry),
		emptyNil(m.CameraMake), emptyNil(m.CameraModel), m.Rating, boolNil(m.IsFavorite),
		m.ISO, m.Aperture, emptyNil(m.ShutterSpeed), m.FocalLength, m.FocalLength35,
		emptyNil(m.ExposureComp), emptyNil(m.MeteringMode),
		emptyNil(m.WhiteBalance), emptyNil(m.Flash),
		m.BurstSize, burstFavs)
	recordQuery("upsert_metadata", start, err)
	if err != nil {
		return fmt.Errorf("upserting metadata for file %d: %w", m.FileID, err)
	}
	return nil
}

// UpdateFavorite flips the favorite flag on both tables. Call it only when
// an extraction actually resolved a rating; the flag must survive rescans
// of files whose metadata carries none.
func (db *DB) UpdateFavorite(path string, favorite bool) error {
	start := time.Now()
	fav := 0
	if favorite {
		fav = 1
	}
	res, err := db.conn.Exec(
		"UPDATE media_files SET is_favorite = ? WHERE file_path = ?", fav, path)
	if err == nil {
		_, err = db.conn.Exec(`
			UPDATE exif_data SET is_favorite = ?
			WHERE file_id = (SELECT id FROM media_files WHERE file_path = ?)`,
			fav, path)
	}
	recordQuery("update_favorite", start, err)
	if err != nil {
		return fmt.Errorf("updating favorite for %s: %w", path, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no catalog entry for %s", path)
	}
	return nil
}

// UpdateRating stores a user-assigned rating and derives the favorite flag
// from it. A rating of 5 marks the file favorite; anything lower clears it.
func (db *DB) UpdateRating(path string, rating int) error {
	start := time.Now()
	fav := 0
	if rating >= 5 {
		fav = 1
	}
	res, err := db.conn.Exec(`
		UPDATE media_files SET rating = ?, rated_at = ?, is_favorite = ?
		WHERE file_path = ?`,
		rating, time.Now().Unix(), fav, path)
	if err == nil {
		_, err = db.conn.Exec(`
			UPDATE exif_data SET rating = ?, is_favorite = ?
			WHERE file_id = (SELECT id FROM media_files WHERE file_path = ?)`,
			rating, fav, path)
	}
	recordQuery("update_rating", start, err)
	if err != nil {
		return fmt.Errorf("updating rating for %s: %w", path, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no catalog entry for %s", path)
	}
	return nil
}

// UpdateBurstMetadata records sibling count and favorites for a burst group.
func (db *DB) UpdateBurstMetadata(path string, size int, favorites []string) error {
	start := time.Now()
	var favs interface{}
	if len(favorites) > 0 {
		b, err := json.Marshal(favorites)
		if err != nil {
			return fmt.Errorf("encoding burst favorites: %w", err)
		}
		favs = string(b)
	}
	_, err := db.conn.Exec(`
		UPDATE exif_data SET burst_size = ?, burst_favorites = ?
		WHERE file_id = (SELECT id FROM media_files WHERE file_path = ?)`,
		size, favs, path)
	recordQuery("update_burst", start, err)
	if err != nil {
		return fmt.Errorf("updating burst metadata for %s: %w", path, err)
	}
	return nil
}

// RemoveFile deletes a file row (metadata cascades) and reports whether a
// row existed.
func (db *DB) RemoveFile(tx *sql.Tx, path string) (bool, error) {
	start := time.Now()
	res, err := db.ex(tx).Exec("DELETE FROM media_files WHERE file_path = ?", path)
	recordQuery("remove_file", start, err)
	if err != nil {
		return false, fmt.Errorf("removing %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdatePath rewrites the path, filename and folder of a moved file so the
// row (and its metadata) survives relocation.
func (db *DB) UpdatePath(oldPath, newPath, filename, folder string) error {
	start := time.Now()
	_, err := db.conn.Exec(`
		UPDATE media_files SET file_path = ?, filename = ?, folder = ?
		WHERE file_path = ?`,
		newPath, filename, folder, oldPath)
	recordQuery("update_path", start, err)
	if err != nil {
		return fmt.Errorf("repathing %s: %w", oldPath, err)
	}
	return nil
}

// HasGeocodedLocation reports whether the file already carries a resolved
// place. Coordinates alone do not count; only a non-empty city does.
func (db *DB) HasGeocodedLocation(fileID int64) (bool, error) {
	start := time.Now()
	var city sql.NullString
	err := db.conn.QueryRow(
		"SELECT location_city FROM exif_data WHERE file_id = ?", fileID).Scan(&city)
	recordQuery("has_geocoded", start, err)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return city.Valid && city.String != "", nil
}

// UpdateMetadataLocation writes a resolved place onto a metadata row.
func (db *DB) UpdateMetadataLocation(fileID int64, place *Place) error {
	start := time.Now()
	_, err := db.conn.Exec(`
		UPDATE exif_data SET
			location_name = ?, location_city = ?,
			location_state = ?, location_country = ?
		WHERE file_id = ?`,
		emptyNil(place.Name), emptyNil(place.City),
		emptyNil(place.State), emptyNil(place.Country), fileID)
	recordQuery("update_location", start, err)
	if err != nil {
		return fmt.Errorf("updating location for file %d: %w", fileID, err)
	}
	return nil
}

// GetFileByPath returns the joined catalog entry for a path, or nil when
// the path is not indexed.
func (db *DB) GetFileByPath(path string) (*Item, error) {
	start := time.Now()
	row := db.conn.QueryRow(itemSelect+" WHERE m.file_path = ?", path)
	item, err := scanItem(row)
	recordQuery("get_file", start, err)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	return item, nil
}

// GetFileByID returns the joined catalog entry for an id, or nil.
func (db *DB) GetFileByID(id int64) (*Item, error) {
	start := time.Now()
	row := db.conn.QueryRow(itemSelect+" WHERE m.id = ?", id)
	item, err := scanItem(row)
	recordQuery("get_file", start, err)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching file %d: %w", id, err)
	}
	return item, nil
}

// PathsUnder lists every indexed path with the given folder prefix, for the
// stale sweep.
func (db *DB) PathsUnder(prefix string) ([]string, error) {
	start := time.Now()
	rows, err := db.conn.Query(
		"SELECT file_path FROM media_files WHERE file_path LIKE ? || '%'", prefix)
	recordQuery("paths_under", start, err)
	if err != nil {
		return nil, fmt.Errorf("listing paths under %s: %w", prefix, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// PurgeOrphanMetadata deletes metadata rows whose file is gone. Foreign keys
// cascade on delete, but rows written before the pragma was enforced can
// linger.
func (db *DB) PurgeOrphanMetadata() (int64, error) {
	start := time.Now()
	res, err := db.conn.Exec(`
		DELETE FROM exif_data
		WHERE file_id NOT IN (SELECT id FROM media_files)`)
	recordQuery("purge_orphans", start, err)
	if err != nil {
		return 0, fmt.Errorf("purging orphan metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil {
		metrics.DBRowsAffected.WithLabelValues("purge_orphans").Observe(float64(n))
	}
	return n, err
}

func zeroNil(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func floatNil(v float64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func emptyNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolNil(b *bool) interface{} {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}
