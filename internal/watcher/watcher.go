package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/metrics"
)

// Coalescing parameters. Events settle for a window before processing so
// rapid sequences on one file collapse; a full pending set drains early to
// bound memory during mass copies.
const (
	settleWindow    = 2 * time.Second
	maxPending      = 50
	interBatchDelay = 500 * time.Millisecond
	pollInterval    = 250 * time.Millisecond
)

// Watcher states reported by Status.
const (
	StateIdle       = "idle"
	StateCollecting = "collecting"
	StateDraining   = "draining"
)

// Ingestor receives the drained changes. The scanner implements it.
type Ingestor interface {
	ScanFile(ctx context.Context, path string) error
	RemoveFile(path string) (bool, error)
}

// Watcher follows filesystem changes under the media root and feeds
// coalesced batches to the ingestor.
type Watcher struct {
	root     string
	ingestor Ingestor
	fsw      *fsnotify.Watcher

	mu        sync.Mutex
	pending   *pending
	state     string
	lastDrain time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a watcher over root, feeding the given ingestor.
func New(root string, ingestor Ingestor) *Watcher {
	return &Watcher{
		root:     root,
		ingestor: ingestor,
		pending:  newPending(),
		state:    StateIdle,
		stopChan: make(chan struct{}),
	}
}

// Start registers watches on the root and every subdirectory, then runs the
// collection and drain loops until Stop.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.addRecursive(w.root); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", w.root, err)
	}

	w.wg.Add(2)
	go w.collectLoop()
	go w.drainLoop(ctx)

	logging.Info("Watching %s for changes", w.root)
	return nil
}

// Stop halts both loops and discards anything still pending.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if w.fsw != nil {
			w.fsw.Close()
		}
		w.wg.Wait()

		w.mu.Lock()
		w.pending = newPending()
		w.state = StateIdle
		w.mu.Unlock()
		w.updatePendingGauges()
	})
}

// Status returns the current state and pending counts.
func (w *Watcher) Status() (state string, pendingCount int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.pending.size()
}

// addRecursive watches dir and all non-special subdirectories.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != w.root && (strings.HasPrefix(name, ".") || mediatypes.IsSpecialFolder(name)) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) collectLoop() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("Watcher error: %v", err)
		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if w.ignored(path) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		metrics.WatcherEventsTotal.WithLabelValues("create").Inc()
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			// A new directory needs its own watch, and anything moved in
			// with it needs synthetic create events.
			if err := w.addRecursive(path); err != nil {
				logging.Warn("Failed to watch new directory %s: %v", path, err)
			}
			w.enqueueTree(path)
			return
		}
		if isMediaPath(path) {
			w.enqueue(kindCreated, path)
		}
	case ev.Has(fsnotify.Write):
		metrics.WatcherEventsTotal.WithLabelValues("write").Inc()
		if isMediaPath(path) {
			w.enqueue(kindModified, path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		metrics.WatcherEventsTotal.WithLabelValues("remove").Inc()
		if isMediaPath(path) {
			w.enqueue(kindDeleted, path)
		}
	}
}

// enqueueTree applies create events for every media file under dir.
func (w *Watcher) enqueueTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if isMediaPath(path) && !w.ignored(path) {
			w.enqueue(kindCreated, path)
		}
		return nil
	})
}

func (w *Watcher) enqueue(kind eventKind, path string) {
	w.mu.Lock()
	w.pending.apply(kind, path, time.Now())
	if w.state == StateIdle {
		w.state = StateCollecting
	}
	w.mu.Unlock()
	w.updatePendingGauges()
	logging.Debug("Queued %s event for %s", kind, path)
}

// ignored filters hidden files and the special folders out of the stream.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") || mediatypes.IsSpecialFolder(part) {
			return true
		}
	}
	return false
}

func isMediaPath(path string) bool {
	return mediatypes.IsMediaFile(strings.ToLower(filepath.Ext(path)))
}

func (w *Watcher) drainLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			w.maybeDrain(ctx, now)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// maybeDrain processes the pending sets once they have settled or filled,
// spacing successive batches by interBatchDelay.
func (w *Watcher) maybeDrain(ctx context.Context, now time.Time) {
	w.mu.Lock()
	ready := w.pending.size() >= maxPending ||
		(w.pending.size() > 0 && w.pending.age(now) >= settleWindow)
	if !ready || now.Sub(w.lastDrain) < interBatchDelay {
		w.mu.Unlock()
		return
	}
	deleted, created, modified := w.pending.drain(maxPending)
	w.state = StateDraining
	w.lastDrain = now
	w.mu.Unlock()
	w.updatePendingGauges()

	w.process(ctx, deleted, created, modified)

	w.mu.Lock()
	if w.pending.size() == 0 {
		w.state = StateIdle
	} else {
		w.state = StateCollecting
	}
	w.mu.Unlock()
}

func (w *Watcher) process(ctx context.Context, deleted, created, modified []string) {
	metrics.WatcherBatchesTotal.Inc()
	logging.Info("Processing batch: %d deleted, %d created, %d modified",
		len(deleted), len(created), len(modified))

	for _, path := range deleted {
		if removed, err := w.ingestor.RemoveFile(path); err != nil {
			logging.Warn("Failed to remove %s from catalog: %v", path, err)
		} else if removed {
			logging.Debug("Removed %s from catalog", path)
		}
	}
	for _, path := range append(created, modified...) {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := w.ingestor.ScanFile(ctx, path); err != nil {
			logging.Warn("Failed to ingest %s: %v", path, err)
		}
	}
}

func (w *Watcher) updatePendingGauges() {
	w.mu.Lock()
	created := w.pending.created.len()
	modified := w.pending.modified.len()
	deleted := w.pending.deleted.len()
	w.mu.Unlock()
	metrics.WatcherPendingEvents.WithLabelValues("created").Set(float64(created))
	metrics.WatcherPendingEvents.WithLabelValues("modified").Set(float64(modified))
	metrics.WatcherPendingEvents.WithLabelValues("deleted").Set(float64(deleted))
}
