package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-index/internal/database"
	"media-index/internal/extract"
	"media-index/internal/geocode"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/metrics"
	"media-index/internal/workers"
)

// progressInterval is how many ingested files pass between progress log
// lines during a walk.
const progressInterval = 500

// Scanner walks the media root, ingesting files into the catalog. At most
// one walk runs at a time; concurrent requests are refused rather than
// queued.
type Scanner struct {
	db        *database.DB
	extractor extract.Extractor
	geocoder  *geocode.Service // nil when geocoding is disabled
	root      string

	mu      sync.Mutex
	running bool

	stopChan chan struct{}
	stopOnce sync.Once
}

// Result summarizes one completed walk.
type Result struct {
	Added   int           `json:"added"`
	Updated int           `json:"updated"`
	Removed int           `json:"removed"`
	Errors  int           `json:"errors"`
	Elapsed time.Duration `json:"-"`
}

// ErrScanInProgress is returned when a walk is already running.
var ErrScanInProgress = fmt.Errorf("scan already in progress")

// New builds a scanner over the media root. geocoder may be nil.
func New(db *database.DB, extractor extract.Extractor, geocoder *geocode.Service, root string) *Scanner {
	return &Scanner{
		db:        db,
		extractor: extractor,
		geocoder:  geocoder,
		root:      root,
		stopChan:  make(chan struct{}),
	}
}

// tryStart claims the exclusive scan slot.
func (s *Scanner) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	metrics.ScannerIsRunning.Set(1)
	return true
}

func (s *Scanner) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	metrics.ScannerIsRunning.Set(0)
}

// Running reports whether a walk is in progress.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// FullScan walks the whole media root: ingest every media file, then sweep
// catalog rows whose files are gone. scanType labels the scan_history row
// ("startup", "scheduled", "manual").
func (s *Scanner) FullScan(ctx context.Context, scanType string) (*Result, error) {
	if !s.tryStart() {
		return nil, ErrScanInProgress
	}
	defer s.finish()

	metrics.ScannerRunsTotal.Inc()
	start := time.Now()
	logging.Info("Starting %s scan of %s", scanType, s.root)

	scanID, err := s.db.RecordScanStart(s.root, scanType)
	if err != nil {
		return nil, fmt.Errorf("recording scan start: %w", err)
	}
	if s.geocoder != nil {
		s.geocoder.Reset()
	}

	res := &Result{}
	err = s.walk(ctx, res)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		// Stop cuts the walk short without surfacing an error from the
		// pool; record it as an abort, not a clean completion.
		select {
		case <-s.stopChan:
			err = context.Canceled
		default:
		}
	}

	// Shutdown and a vanished store are aborts, not failures: nothing was
	// wrong with the walk itself.
	status := database.ScanStatusCompleted
	switch {
	case err == nil:
	case database.Unavailable(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		status = database.ScanStatusAborted
	default:
		status = database.ScanStatusFailed
	}

	if ferr := s.db.FinishScan(scanID, res.Added, res.Updated, status); ferr != nil && !database.Unavailable(ferr) {
		logging.Error("Failed to finalize scan record: %v", ferr)
	}
	if s.geocoder != nil {
		s.geocoder.LogSummary()
		s.geocoder.Flush()
	}

	res.Elapsed = time.Since(start)
	if err != nil {
		logging.Error("Scan %s after %s: %v", status, res.Elapsed.Round(time.Millisecond), err)
		return res, err
	}

	metrics.ScannerLastRunTimestamp.SetToCurrentTime()
	metrics.ScannerLastRunDuration.Set(res.Elapsed.Seconds())
	logging.Info("Scan completed in %s: %d added, %d updated, %d removed, %d errors",
		res.Elapsed.Round(time.Millisecond), res.Added, res.Updated, res.Removed, res.Errors)
	return res, nil
}

func (s *Scanner) walk(ctx context.Context, res *Result) error {
	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Walk error at %s: %v", path, err)
			res.Errors++
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != s.root && (strings.HasPrefix(name, ".") || mediatypes.IsSpecialFolder(name)) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if mediatypes.IsMediaFile(strings.ToLower(filepath.Ext(path))) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", s.root, err)
	}

	logging.Info("Found %d media files under %s", len(paths), s.root)

	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[p] = true
	}

	if err := s.ingestAll(ctx, paths, res); err != nil {
		return err
	}
	return s.sweepStale(ctx, seen, res)
}

// ingestAll extracts metadata on a worker pool and serializes catalog
// writes on the collecting goroutine.
func (s *Scanner) ingestAll(ctx context.Context, paths []string, res *Result) error {
	type extracted struct {
		path string
		info *extract.Info
		err  error
	}

	jobs := make(chan string)
	out := make(chan extracted)

	var wg sync.WaitGroup
	for i := 0; i < workers.ForIO(16); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				info, err := s.extractor.Extract(path)
				out <- extracted{path: path, info: info, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range paths {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	var firstErr error
	processed := 0
	for ex := range out {
		if firstErr != nil {
			continue // drain
		}
		if err := ctx.Err(); err != nil {
			firstErr = err
			continue
		}
		if ex.err != nil {
			logging.Warn("Extraction failed for %s: %v", ex.path, ex.err)
			metrics.ScannerErrors.Inc()
			res.Errors++
			continue
		}
		added, updated, err := s.store(ctx, ex.path, ex.info)
		if err != nil {
			if database.Unavailable(err) {
				firstErr = err
				continue
			}
			logging.Warn("Indexing failed for %s: %v", ex.path, err)
			metrics.ScannerErrors.Inc()
			res.Errors++
			continue
		}
		if added {
			res.Added++
		} else if updated {
			res.Updated++
		}
		metrics.ScannerFilesProcessed.Inc()
		processed++
		if processed%progressInterval == 0 {
			logging.Info("Scan progress: %d/%d files", processed, len(paths))
		}
	}
	return firstErr
}

// store writes one extracted file into the catalog and reports whether the
// row was new or changed.
func (s *Scanner) store(ctx context.Context, path string, info *extract.Info) (added, updated bool, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, false, fmt.Errorf("stat %s: %w", path, err)
	}

	existing, err := s.db.GetFileByPath(path)
	if err != nil {
		return false, false, err
	}

	f := &database.MediaFile{
		Path:         path,
		Filename:     filepath.Base(path),
		Folder:       filepath.Dir(path),
		Type:         mediatypes.GetFileType(strings.ToLower(filepath.Ext(path))),
		Size:         fi.Size(),
		ModifiedTime: fi.ModTime(),
		CreatedTime:  creationTime(fi),
		Width:        info.Width,
		Height:       info.Height,
		Orientation:  info.Orientation,
		Duration:     info.Duration,
	}

	id, changed, err := s.db.UpsertFile(nil, f)
	if err != nil {
		return false, false, err
	}

	meta := &database.Metadata{
		FileID:        id,
		CaptureTime:   info.CaptureTime,
		Latitude:      info.Latitude,
		Longitude:     info.Longitude,
		Altitude:      info.Altitude,
		CameraMake:    info.CameraMake,
		CameraModel:   info.CameraModel,
		Rating:        info.Rating,
		ISO:           info.ISO,
		Aperture:      info.Aperture,
		ShutterSpeed:  info.ShutterSpeed,
		FocalLength:   info.FocalLength,
		FocalLength35: info.FocalLength35,
		ExposureComp:  info.ExposureComp,
		MeteringMode:  info.MeteringMode,
		WhiteBalance:  info.WhiteBalance,
		Flash:         info.Flash,
	}
	if info.Rating != nil {
		fav := *info.Rating >= 5
		meta.IsFavorite = &fav
	}
	if err := s.db.UpsertMetadata(nil, meta); err != nil {
		return false, false, err
	}

	// The favorite flag only moves when the file actually carries a
	// rating; files without one keep whatever the user set.
	if info.Rating != nil {
		if err := s.db.UpdateFavorite(path, *info.Rating >= 5); err != nil {
			return false, false, err
		}
	}

	if err := s.geocodeFile(ctx, id, info); err != nil {
		logging.Warn("Geocoding failed for %s: %v", path, err)
	}

	return existing == nil, existing != nil && changed, nil
}

func (s *Scanner) geocodeFile(ctx context.Context, fileID int64, info *extract.Info) error {
	if s.geocoder == nil || info.Latitude == nil || info.Longitude == nil {
		return nil
	}
	done, err := s.db.HasGeocodedLocation(fileID)
	if err != nil || done {
		return err
	}
	place, err := s.geocoder.Lookup(ctx, *info.Latitude, *info.Longitude)
	if err != nil {
		return err
	}
	return s.db.UpdateMetadataLocation(fileID, place)
}

// sweepStale removes catalog rows whose files disappeared since the last
// walk. Each path is re-checked on disk before removal so a transient walk
// miss cannot drop a live row.
func (s *Scanner) sweepStale(ctx context.Context, seen map[string]bool, res *Result) error {
	indexed, err := s.db.PathsUnder(s.root)
	if err != nil {
		return err
	}
	for _, p := range indexed {
		if seen[p] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := os.Stat(p); err == nil {
			continue
		}
		removed, err := s.db.RemoveFile(nil, p)
		if err != nil {
			if database.Unavailable(err) {
				return err
			}
			logging.Warn("Failed to remove stale row %s: %v", p, err)
			res.Errors++
			continue
		}
		if removed {
			logging.Debug("Removed stale entry %s", p)
			res.Removed++
		}
	}
	return nil
}

// ScanFile ingests or refreshes a single file, used by the watcher.
func (s *Scanner) ScanFile(ctx context.Context, path string) error {
	if !mediatypes.IsMediaFile(strings.ToLower(filepath.Ext(path))) {
		return nil
	}
	info, err := s.extractor.Extract(path)
	if err != nil {
		return err
	}
	_, _, err = s.store(ctx, path, info)
	return err
}

// RemoveFile drops a single path from the catalog, used by the watcher.
func (s *Scanner) RemoveFile(path string) (bool, error) {
	return s.db.RemoveFile(nil, path)
}

// WriteRating pushes a user rating into the file itself when the extractor
// supports it. False means the rating lives only in the catalog.
func (s *Scanner) WriteRating(path string, rating int) bool {
	w, ok := s.extractor.(extract.RatingWriter)
	if !ok {
		return false
	}
	written, err := w.WriteRating(path, rating)
	if err != nil {
		logging.Warn("Failed to write rating into %s: %v", path, err)
		return false
	}
	return written
}

// RunMaintenance prunes old history, purges orphan metadata rows and
// compacts the catalog file.
func (s *Scanner) RunMaintenance() error {
	if s.Running() {
		return ErrScanInProgress
	}

	if s.geocoder != nil {
		s.geocoder.Flush()
	}
	pruned, err := s.db.PruneScanHistory(90 * 24 * time.Hour)
	if err != nil {
		return err
	}
	orphans, err := s.db.PurgeOrphanMetadata()
	if err != nil {
		return err
	}
	if err := s.db.Vacuum(); err != nil {
		return err
	}
	logging.Info("Maintenance done: pruned %d scan records, purged %d orphan metadata rows", pruned, orphans)
	return nil
}

// Schedule runs a scheduled scan every interval until Stop. A zero interval
// disables scheduling.
func (s *Scanner) Schedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.FullScan(ctx, "scheduled"); err != nil && err != ErrScanInProgress {
					logging.Error("Scheduled scan failed: %v", err)
				}
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts scheduled scans and asks a running walk to wind down.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
