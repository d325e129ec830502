package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"media-index/internal/mediatypes"
)

// setupTestDB creates a catalog in a temp directory.
func setupTestDB(t testing.TB) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testFile builds a minimal image row rooted under /media.
func testFile(path string, mod time.Time) *MediaFile {
	return &MediaFile{
		Path:         path,
		Filename:     filepath.Base(path),
		Folder:       filepath.Dir(path),
		Type:         mediatypes.FileTypeImage,
		Size:         1024,
		ModifiedTime: mod,
		CreatedTime:  mod,
	}
}

func TestNewCreatesSchema(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"media_files", "exif_data", "geocode_cache", "scan_history", "move_history"} {
		var name string
		err := db.conn.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := setupTestDB(t)

	// Columns already exist after New; a second pass must be a no-op.
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() failed: %v", err)
	}

	for _, m := range migrations {
		ok, err := db.columnExists(m.table, m.column)
		if err != nil {
			t.Fatalf("columnExists(%s, %s): %v", m.table, m.column, err)
		}
		if !ok {
			t.Errorf("column %s.%s missing after migration", m.table, m.column)
		}
	}
}

func TestUpsertFileIdempotent(t *testing.T) {
	db := setupTestDB(t)
	mod := time.Now().Add(-time.Hour).Truncate(time.Second)
	f := testFile("/media/2024/a.jpg", mod)

	id1, changed, err := db.UpsertFile(nil, f)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !changed {
		t.Error("first upsert should report changed")
	}

	var firstScanned int64
	if err := db.conn.QueryRow(
		"SELECT last_scanned FROM media_files WHERE id = ?", id1).Scan(&firstScanned); err != nil {
		t.Fatalf("reading last_scanned: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	id2, changed, err := db.UpsertFile(nil, f)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if changed {
		t.Error("unchanged file should not report changed")
	}
	if id1 != id2 {
		t.Errorf("id changed across upserts: %d != %d", id1, id2)
	}

	var secondScanned int64
	if err := db.conn.QueryRow(
		"SELECT last_scanned FROM media_files WHERE id = ?", id1).Scan(&secondScanned); err != nil {
		t.Fatalf("reading last_scanned: %v", err)
	}
	if secondScanned != firstScanned {
		t.Errorf("last_scanned moved on a no-op rescan: %d -> %d", firstScanned, secondScanned)
	}

	// Content change must bump it.
	f.Size = 2048
	if _, changed, err = db.UpsertFile(nil, f); err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	if !changed {
		t.Error("size change should report changed")
	}
}

func TestFavoriteSurvivesRescan(t *testing.T) {
	db := setupTestDB(t)
	f := testFile("/media/2024/fav.jpg", time.Now().Truncate(time.Second))

	if _, _, err := db.UpsertFile(nil, f); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.UpdateFavorite(f.Path, true); err != nil {
		t.Fatalf("favorite: %v", err)
	}

	// Rescan carrying no rating at all.
	f.Size = 4096
	if _, _, err := db.UpsertFile(nil, f); err != nil {
		t.Fatalf("rescan upsert: %v", err)
	}

	item, err := db.GetFileByPath(f.Path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !item.IsFavorite {
		t.Error("favorite flag lost on rescan without rating")
	}
}

func TestUpdateRatingDerivesFavorite(t *testing.T) {
	db := setupTestDB(t)
	f := testFile("/media/2024/rated.jpg", time.Now().Truncate(time.Second))
	if _, _, err := db.UpsertFile(nil, f); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	tests := []struct {
		rating  int
		wantFav bool
	}{
		{5, true},
		{4, false},
		{5, true},
		{0, false},
	}
	for _, tt := range tests {
		if err := db.UpdateRating(f.Path, tt.rating); err != nil {
			t.Fatalf("UpdateRating(%d): %v", tt.rating, err)
		}
		item, err := db.GetFileByPath(f.Path)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if item.Rating != tt.rating {
			t.Errorf("rating = %d, want %d", item.Rating, tt.rating)
		}
		if item.IsFavorite != tt.wantFav {
			t.Errorf("rating %d: favorite = %v, want %v", tt.rating, item.IsFavorite, tt.wantFav)
		}
	}
}

func TestPlaceSticksAcrossRescan(t *testing.T) {
	db := setupTestDB(t)
	f := testFile("/media/2024/geo.jpg", time.Now().Truncate(time.Second))
	id, _, err := db.UpsertFile(nil, f)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	lat, lng := 40.7128, -74.0060
	meta := &Metadata{FileID: id, Latitude: &lat, Longitude: &lng}
	if err := db.UpsertMetadata(nil, meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if err := db.UpdateMetadataLocation(id, &Place{Name: "Manhattan", City: "New York", State: "NY", Country: "US"}); err != nil {
		t.Fatalf("location: %v", err)
	}

	// Re-extraction yields coordinates but no resolved place.
	if err := db.UpsertMetadata(nil, meta); err != nil {
		t.Fatalf("re-upsert metadata: %v", err)
	}

	item, err := db.GetFileByPath(f.Path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item.LocationCity != "New York" {
		t.Errorf("city = %q, want New York", item.LocationCity)
	}
	if !item.IsGeocoded {
		t.Error("IsGeocoded lost after metadata re-upsert")
	}

	ok, err := db.HasGeocodedLocation(id)
	if err != nil {
		t.Fatalf("HasGeocodedLocation: %v", err)
	}
	if !ok {
		t.Error("HasGeocodedLocation = false after geocoding")
	}
}

func TestRemoveFileCascades(t *testing.T) {
	db := setupTestDB(t)
	f := testFile("/media/2024/gone.jpg", time.Now())
	id, _, err := db.UpsertFile(nil, f)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.UpsertMetadata(nil, &Metadata{FileID: id}); err != nil {
		t.Fatalf("metadata: %v", err)
	}

	removed, err := db.RemoveFile(nil, f.Path)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Error("RemoveFile = false for existing row")
	}

	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM exif_data WHERE file_id = ?", id).Scan(&n); err != nil {
		t.Fatalf("counting metadata: %v", err)
	}
	if n != 0 {
		t.Errorf("metadata row survived cascade, count = %d", n)
	}

	removed, err = db.RemoveFile(nil, f.Path)
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if removed {
		t.Error("RemoveFile = true for missing row")
	}
}

func TestUpdatePath(t *testing.T) {
	db := setupTestDB(t)
	f := testFile("/media/2024/old.jpg", time.Now())
	if _, _, err := db.UpsertFile(nil, f); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := db.UpdatePath("/media/2024/old.jpg", "/media/_Junk/old.jpg", "old.jpg", "/media/_Junk"); err != nil {
		t.Fatalf("UpdatePath: %v", err)
	}

	item, err := db.GetFileByPath("/media/_Junk/old.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item == nil {
		t.Fatal("moved row not found at new path")
	}
	if item.Folder != "/media/_Junk" {
		t.Errorf("folder = %q, want /media/_Junk", item.Folder)
	}

	old, err := db.GetFileByPath("/media/2024/old.jpg")
	if err != nil {
		t.Fatalf("get old: %v", err)
	}
	if old != nil {
		t.Error("row still reachable at old path")
	}
}

func TestGeocodeCacheRounding(t *testing.T) {
	db := setupTestDB(t)
	place := &Place{Name: "SoHo", City: "New York", State: "NY", Country: "US"}

	if err := db.StorePlace(40.71234, -74.00567, place); err != nil {
		t.Fatalf("store: %v", err)
	}

	// Within 3-decimal rounding distance of the stored entry.
	got, ok, err := db.CachedPlace(40.71239, -74.00561)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit for coordinates rounding to the same cell")
	}
	if got.City != "New York" {
		t.Errorf("city = %q, want New York", got.City)
	}

	// A different cell misses.
	if _, ok, err = db.CachedPlace(40.72, -74.0); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ok {
		t.Error("unexpected cache hit for distant coordinates")
	}

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM geocode_cache").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("cache entries = %d, want 1", count)
	}

	// Each entry records the precision its cell key was rounded to, so a
	// future precision change cannot serve stale cells.
	var precision int
	if err := db.conn.QueryRow("SELECT precision_level FROM geocode_cache").Scan(&precision); err != nil {
		t.Fatalf("precision: %v", err)
	}
	if precision != coordPrecision {
		t.Errorf("precision_level = %d, want %d", precision, coordPrecision)
	}
}

func TestBatchCommitAndReuse(t *testing.T) {
	db := setupTestDB(t)

	tx, err := db.BeginBatch()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, _, err := db.UpsertFile(tx, testFile("/media/batch/a.jpg", time.Now())); err != nil {
		t.Fatalf("upsert in batch: %v", err)
	}
	if err := db.EndBatch(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	item, err := db.GetFileByPath("/media/batch/a.jpg")
	if err != nil || item == nil {
		t.Fatalf("batched row not visible: %v", err)
	}

	// Finishing an already finished batch surfaces the error.
	if err := db.EndBatch(tx); err == nil {
		t.Error("expected error ending a finished batch")
	}
}

func TestScanHistoryLifecycle(t *testing.T) {
	db := setupTestDB(t)

	id, err := db.RecordScanStart("/media", "full")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	last, err := db.LastScan()
	if err != nil {
		t.Fatalf("LastScan: %v", err)
	}
	if last == nil || last.Status != ScanStatusRunning {
		t.Fatalf("last scan = %+v, want running", last)
	}

	if err := db.FinishScan(id, 10, 3, ScanStatusCompleted); err != nil {
		t.Fatalf("finish: %v", err)
	}

	last, err = db.LastScan()
	if err != nil {
		t.Fatalf("LastScan: %v", err)
	}
	if last.Status != ScanStatusCompleted {
		t.Errorf("status = %q, want completed", last.Status)
	}
	if last.FilesAdded != 10 || last.FilesUpdated != 3 {
		t.Errorf("counters = %d/%d, want 10/3", last.FilesAdded, last.FilesUpdated)
	}
}

func TestMoveHistoryRestore(t *testing.T) {
	db := setupTestDB(t)

	id, err := db.RecordMove("/media/2024/pic.jpg", "/media/_Edit/pic.jpg", "edit")
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	rec, err := db.MoveByNewPath("/media/_Edit/pic.jpg")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec == nil {
		t.Fatal("move record not found by new path")
	}
	if rec.OriginalPath != "/media/2024/pic.jpg" {
		t.Errorf("original = %q", rec.OriginalPath)
	}

	if err := db.MarkRestored(id); err != nil {
		t.Fatalf("restore: %v", err)
	}

	rec, err = db.MoveByNewPath("/media/_Edit/pic.jpg")
	if err != nil {
		t.Fatalf("lookup after restore: %v", err)
	}
	if rec != nil {
		t.Error("restored move should no longer match")
	}
}

func TestUnavailable(t *testing.T) {
	db := setupTestDB(t)
	db.Close()

	_, _, err := db.UpsertFile(nil, testFile("/media/x.jpg", time.Now()))
	if err == nil {
		t.Fatal("expected error on closed database")
	}
	if !Unavailable(err) {
		t.Errorf("Unavailable(%v) = false, want true", err)
	}
	if Unavailable(nil) {
		t.Error("Unavailable(nil) = true")
	}
	if Unavailable(errors.New("disk I/O error")) {
		t.Error("Unavailable should not match per-row errors")
	}
}

func TestGeocodeStatsAccumulate(t *testing.T) {
	db := setupTestDB(t)

	hits, misses, errs, err := db.GeocodeStats()
	if err != nil {
		t.Fatalf("empty stats: %v", err)
	}
	if hits != 0 || misses != 0 || errs != 0 {
		t.Errorf("fresh catalog stats = %d/%d/%d, want zeros", hits, misses, errs)
	}

	if err := db.AddGeocodeStats(3, 2, 1); err != nil {
		t.Fatalf("first flush: %v", err)
	}
	if err := db.AddGeocodeStats(1, 1, 0); err != nil {
		t.Fatalf("second flush: %v", err)
	}

	hits, misses, errs, err = db.GeocodeStats()
	if err != nil {
		t.Fatalf("GeocodeStats: %v", err)
	}
	if hits != 4 || misses != 3 || errs != 1 {
		t.Errorf("stats = %d/%d/%d, want 4/3/1", hits, misses, errs)
	}
}
