package database

import (
	"database/sql"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"media-index/internal/mediatypes"
)

// QueryFilter narrows a query to a slice of the catalog. Zero values mean
// no filtering on that axis. Folder matches the subtree under the given
// path unless FolderExact asks for that directory alone.
type QueryFilter struct {
	Folder        string
	FolderExact   bool
	FileType      string
	FavoritesOnly bool
	DateFrom      time.Time
	DateTo        time.Time
}

// Cursor is an opaque pagination position: the sort value of the last row a
// page returned plus its id as the tiebreaker. Rows with equal sort values
// are ordered by id so every row appears on exactly one page.
type Cursor struct {
	Value string `json:"v"`
	ID    int64  `json:"id"`
}

// sortColumns whitelists the orderable expressions. Requests carrying any
// other key are rejected before SQL assembly.
var sortColumns = map[string]string{
	"capture_time":  "COALESCE(e.capture_time, m.modified_time)",
	"modified_time": "m.modified_time",
	"created_time":  "m.created_time",
	"filename":      "m.filename",
	"path":          "m.file_path",
	"file_size":     "m.file_size",
	"rating":        "m.rating",
}

// numericSorts marks which sort keys compare as integers; cursor values for
// these are parsed back to int64 so "9" sorts before "10".
var numericSorts = map[string]bool{
	"capture_time":  true,
	"modified_time": true,
	"created_time":  true,
	"file_size":     true,
	"rating":        true,
}

const itemSelect = `
	SELECT m.id, m.file_path, m.filename, m.folder, m.file_type, m.file_size,
	       m.modified_time, m.created_time, m.last_scanned,
	       m.width, m.height, m.orientation, m.duration,
	       m.is_favorite, m.rating, m.rated_at,
	       e.capture_time, e.latitude, e.longitude,
	       e.location_name, e.location_city, e.location_state, e.location_country,
	       e.camera_make, e.camera_model
	FROM media_files m
	LEFT JOIN exif_data e ON e.file_id = m.id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		it                                     Item
		fileType                               string
		modified, created, scanned             int64
		width, height                          sql.NullInt64
		orientation                            sql.NullString
		duration                               sql.NullFloat64
		ratedAt, captureTime                   sql.NullInt64
		lat, lng                               sql.NullFloat64
		locName, locCity, locState, locCountry sql.NullString
		camMake, camModel                      sql.NullString
	)
	err := row.Scan(&it.ID, &it.Path, &it.Filename, &it.Folder, &fileType, &it.Size,
		&modified, &created, &scanned,
		&width, &height, &orientation, &duration,
		&it.IsFavorite, &it.Rating, &ratedAt,
		&captureTime, &lat, &lng,
		&locName, &locCity, &locState, &locCountry,
		&camMake, &camModel)
	if err != nil {
		return nil, err
	}

	it.Type = mediatypes.FileType(fileType)
	it.ModifiedTime = time.Unix(modified, 0)
	it.CreatedTime = time.Unix(created, 0)
	it.LastIndexed = time.Unix(scanned, 0)
	it.Width = int(width.Int64)
	it.Height = int(height.Int64)
	it.Orientation = orientation.String
	it.Duration = duration.Float64
	it.RatedAt = timeOrZero(ratedAt)
	if captureTime.Valid {
		t := time.Unix(captureTime.Int64, 0)
		it.CaptureTime = &t
	}
	if lat.Valid && lng.Valid {
		la, ln := lat.Float64, lng.Float64
		it.Latitude = &la
		it.Longitude = &ln
		it.HasCoordinates = true
	}
	it.LocationName = locName.String
	it.LocationCity = locCity.String
	it.LocationState = locState.String
	it.LocationCountry = locCountry.String
	it.IsGeocoded = it.LocationCity != ""
	it.CameraMake = camMake.String
	it.CameraModel = camModel.String
	return &it, nil
}

// specialFolderClause hides rows relocated into the quarantine and edit
// folders. Their catalog entries survive the move so restore can put them
// back, but they must never surface in query results. The underscore in
// the folder names is a LIKE wildcard, hence the escape.
func specialFolderClause() (string, []interface{}) {
	return ` AND m.folder NOT LIKE ? ESCAPE '\' AND m.folder NOT LIKE ? ESCAPE '\'`,
		[]interface{}{
			`%/\` + mediatypes.QuarantineFolder + `%`,
			`%/\` + mediatypes.EditFolder + `%`,
		}
}

func filterClause(f QueryFilter) (string, []interface{}) {
	clause := " WHERE 1=1"
	special, args := specialFolderClause()
	clause += special
	if f.Folder != "" {
		if f.FolderExact {
			clause += " AND LOWER(m.folder) = LOWER(?)"
		} else {
			clause += " AND m.file_path LIKE ? || '%'"
		}
		args = append(args, f.Folder)
	}
	if f.FileType != "" {
		clause += " AND m.file_type = ?"
		args = append(args, f.FileType)
	}
	if f.FavoritesOnly {
		clause += " AND m.is_favorite = 1"
	}
	if !f.DateFrom.IsZero() {
		clause += " AND COALESCE(e.capture_time, m.modified_time) >= ?"
		args = append(args, f.DateFrom.Unix())
	}
	if !f.DateTo.IsZero() {
		clause += " AND COALESCE(e.capture_time, m.modified_time) <= ?"
		args = append(args, f.DateTo.Unix())
	}
	return clause, args
}

// ValidSortKey reports whether OrderedFiles accepts key.
func ValidSortKey(key string) bool {
	_, ok := sortColumns[key]
	return ok
}

// RandomFiles returns up to limit random catalog entries matching the
// filter. When newThreshold is positive, files indexed within that window
// are preferred: a uniform sample over the whole recent set is taken first
// and the remainder is filled from the rest of the catalog. Sampling in Go
// over all recent ids keeps every recent file equally likely regardless of
// insertion order.
func (db *DB) RandomFiles(limit int, f QueryFilter, newThreshold time.Duration) ([]*Item, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 1
	}

	where, args := filterClause(f)

	var items []*Item
	if newThreshold > 0 {
		cutoff := time.Now().Add(-newThreshold).Unix()
		recentQuery := "SELECT m.id FROM media_files m LEFT JOIN exif_data e ON e.file_id = m.id" +
			where + " AND m.last_scanned >= ?"
		recentArgs := append(append([]interface{}{}, args...), cutoff)

		ids, err := db.collectIDs(recentQuery, recentArgs)
		if err != nil {
			recordQuery("random_files", start, err)
			return nil, err
		}
		rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		if len(ids) > limit {
			ids = ids[:limit]
		}
		for _, id := range ids {
			it, err := db.GetFileByID(id)
			if err != nil {
				recordQuery("random_files", start, err)
				return nil, err
			}
			if it != nil {
				items = append(items, it)
			}
		}
	}

	if remaining := limit - len(items); remaining > 0 {
		query := itemSelect + where
		qargs := append([]interface{}{}, args...)
		if len(items) > 0 {
			// Exclude the already picked rows rather than the whole recent
			// set so a sparse catalog can still fill the page.
			query += " AND m.id NOT IN (" + placeholders(len(items)) + ")"
			for _, it := range items {
				qargs = append(qargs, it.ID)
			}
		}
		query += " ORDER BY RANDOM() LIMIT ?"
		qargs = append(qargs, remaining)

		rest, err := db.collectItems(query, qargs)
		if err != nil {
			recordQuery("random_files", start, err)
			return nil, err
		}
		items = append(items, rest...)
	}

	recordQuery("random_files", start, nil)
	return items, nil
}

// OrderedFiles returns one page of the catalog ordered by sortKey. The
// cursor, when non-nil, resumes after the row it names; the returned cursor
// is nil once the last page has been served. Direction is "asc" or "desc".
func (db *DB) OrderedFiles(sortKey, direction string, limit int, f QueryFilter, after *Cursor) ([]*Item, *Cursor, error) {
	start := time.Now()
	expr, ok := sortColumns[sortKey]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported sort key %q", sortKey)
	}
	if direction != "asc" && direction != "desc" {
		return nil, nil, fmt.Errorf("unsupported direction %q", direction)
	}
	if limit <= 0 {
		limit = 50
	}

	cmp := ">"
	if direction == "desc" {
		cmp = "<"
	}

	where, args := filterClause(f)
	if after != nil {
		where += fmt.Sprintf(" AND (%s %s ? OR (%s = ? AND m.id %s ?))", expr, cmp, expr, cmp)
		v, err := cursorValue(sortKey, after.Value)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, v, v, after.ID)
	}

	query := fmt.Sprintf("%s%s ORDER BY %s %s, m.id %s LIMIT ?",
		itemSelect, where, expr, direction, direction)
	args = append(args, limit+1)

	items, err := db.collectItems(query, args)
	recordQuery("ordered_files", start, err)
	if err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		next = &Cursor{Value: sortValueOf(sortKey, last), ID: last.ID}
	}
	return items, next, nil
}

func cursorValue(sortKey, raw string) (interface{}, error) {
	if !numericSorts[sortKey] {
		return raw, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor value %q: %w", raw, err)
	}
	return n, nil
}

func sortValueOf(sortKey string, it *Item) string {
	switch sortKey {
	case "capture_time":
		if it.CaptureTime != nil {
			return strconv.FormatInt(it.CaptureTime.Unix(), 10)
		}
		return strconv.FormatInt(it.ModifiedTime.Unix(), 10)
	case "modified_time":
		return strconv.FormatInt(it.ModifiedTime.Unix(), 10)
	case "created_time":
		return strconv.FormatInt(it.CreatedTime.Unix(), 10)
	case "filename":
		return it.Filename
	case "path":
		return it.Path
	case "file_size":
		return strconv.FormatInt(it.Size, 10)
	case "rating":
		return strconv.Itoa(it.Rating)
	}
	return ""
}

// Default burst grouping tolerances. Shots within the time window taken
// within the distance tolerance of each other count as one burst.
const (
	BurstTimeWindow        = 120 * time.Second
	BurstDistanceTolerance = 50.0 // meters
)

// BurstFiles returns the files that belong to the same burst as the file at
// path, reference included, ordered by capture time ascending or, when
// direction is "desc", descending. Membership is symmetric: capture times
// within window of the reference and, when both carry coordinates,
// positions within tolerance meters. A candidate without coordinates
// matches on time alone. Non-positive window or tolerance fall back to the
// defaults above.
func (db *DB) BurstFiles(path string, window time.Duration, tolerance float64, direction string) ([]*Item, error) {
	start := time.Now()
	if window <= 0 {
		window = BurstTimeWindow
	}
	if tolerance <= 0 {
		tolerance = BurstDistanceTolerance
	}
	order := "ASC"
	if direction == "desc" {
		order = "DESC"
	}

	ref, err := db.GetFileByPath(path)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("no catalog entry for %s", path)
	}
	if ref.CaptureTime == nil {
		recordQuery("burst_files", start, nil)
		return []*Item{ref}, nil
	}

	lo := ref.CaptureTime.Add(-window).Unix()
	hi := ref.CaptureTime.Add(window).Unix()
	special, args := specialFolderClause()
	candidates, err := db.collectItems(
		itemSelect+" WHERE e.capture_time BETWEEN ? AND ?"+special+
			" ORDER BY e.capture_time "+order+", m.id "+order,
		append([]interface{}{lo, hi}, args...))
	recordQuery("burst_files", start, err)
	if err != nil {
		return nil, err
	}

	burst := candidates[:0]
	for _, c := range candidates {
		if c.ID != ref.ID && !sameSpot(ref, c, tolerance) {
			continue
		}
		burst = append(burst, c)
	}
	return burst, nil
}

func sameSpot(a, b *Item, tolerance float64) bool {
	if a.Latitude == nil || a.Longitude == nil || b.Latitude == nil || b.Longitude == nil {
		return true
	}
	return haversineMeters(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude) <= tolerance
}

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371000.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}

// AnniversaryFiles returns files whose capture date falls within windowDays
// of the given month and day in any year, ordered newest first. Capture
// timestamps are interpreted in the server's local time zone, matching how
// users remember the date. A zero month or day acts as a wildcard for that
// component; at least one must be set.
func (db *DB) AnniversaryFiles(month time.Month, day, windowDays, limit int, f QueryFilter) ([]*Item, error) {
	start := time.Now()
	if month == 0 && day == 0 {
		return nil, fmt.Errorf("anniversary filter needs a month or a day")
	}
	if limit <= 0 {
		limit = 50
	}
	if windowDays < 0 {
		windowDays = 0
	}

	where, args := filterClause(f)
	where += " AND e.capture_time IS NOT NULL AND ("

	var keys []interface{}
	var expr string
	switch {
	case day == 0:
		expr = "strftime('%m', e.capture_time, 'unixepoch', 'localtime') = ?"
		keys = append(keys, fmt.Sprintf("%02d", int(month)))
	case month == 0:
		// Month unknown, so the window cannot cross a month boundary.
		// Clamp it to valid days instead.
		expr = "strftime('%d', e.capture_time, 'unixepoch', 'localtime') = ?"
		for d := day - windowDays; d <= day+windowDays; d++ {
			if d >= 1 && d <= 31 {
				keys = append(keys, fmt.Sprintf("%02d", d))
			}
		}
	default:
		// Expand the window into explicit month/day pairs so year
		// boundaries (Dec 30 with a 3 day window reaching Jan 2) match
		// correctly.
		expr = "strftime('%m-%d', e.capture_time, 'unixepoch', 'localtime') = ?"
		anchor := time.Date(2000, month, day, 12, 0, 0, 0, time.UTC)
		seen := make(map[string]bool)
		for off := -windowDays; off <= windowDays; off++ {
			key := anchor.AddDate(0, 0, off).Format("01-02")
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	for i, k := range keys {
		if i > 0 {
			where += " OR "
		}
		where += expr
		args = append(args, k)
	}
	where += ")"

	query := itemSelect + where + " ORDER BY e.capture_time DESC LIMIT ?"
	args = append(args, limit)

	items, err := db.collectItems(query, args)
	recordQuery("anniversary_files", start, err)
	return items, err
}

// CalculateStats aggregates catalog-wide counters for the stats endpoint.
func (db *DB) CalculateStats() (*CatalogStats, error) {
	start := time.Now()
	stats := &CatalogStats{}

	err := db.conn.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN file_type = 'image' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN file_type = 'video' THEN 1 ELSE 0 END), 0),
		       COUNT(DISTINCT folder),
		       COALESCE(SUM(is_favorite), 0)
		FROM media_files`).Scan(
		&stats.TotalFiles, &stats.TotalImages, &stats.TotalVideos,
		&stats.TotalFolders, &stats.TotalFavorites)
	if err != nil {
		recordQuery("calculate_stats", start, err)
		return nil, fmt.Errorf("aggregating file counts: %w", err)
	}

	err = db.conn.QueryRow(`
		SELECT COUNT(*) FROM exif_data
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL`).Scan(&stats.FilesWithLocation)
	if err != nil {
		recordQuery("calculate_stats", start, err)
		return nil, fmt.Errorf("counting located files: %w", err)
	}

	err = db.conn.QueryRow("SELECT COUNT(*) FROM geocode_cache").Scan(&stats.GeocodeCacheEntries)
	if err != nil {
		recordQuery("calculate_stats", start, err)
		return nil, fmt.Errorf("counting geocode cache: %w", err)
	}

	if stats.GeocodeHits, stats.GeocodeMisses, _, err = db.GeocodeStats(); err != nil {
		recordQuery("calculate_stats", start, err)
		return nil, err
	}

	var startTime, endTime sql.NullInt64
	err = db.conn.QueryRow(`
		SELECT start_time, end_time FROM scan_history
		WHERE status = ? ORDER BY start_time DESC LIMIT 1`,
		ScanStatusCompleted).Scan(&startTime, &endTime)
	if err != nil && err != sql.ErrNoRows {
		recordQuery("calculate_stats", start, err)
		return nil, fmt.Errorf("fetching last scan: %w", err)
	}
	if startTime.Valid {
		stats.LastScanTime = time.Unix(startTime.Int64, 0)
		if endTime.Valid {
			stats.ScanDuration = (time.Duration(endTime.Int64-startTime.Int64) * time.Second).String()
		}
	}

	recordQuery("calculate_stats", start, nil)
	return stats, nil
}

func (db *DB) collectItems(query string, args []interface{}) ([]*Item, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (db *DB) collectIDs(query string, args []interface{}) ([]int64, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	s := "?"
	for i := 1; i < n; i++ {
		s += ", ?"
	}
	return s
}
