// Package watch keeps a symbol graph current while manifests change on disk
// and re-runs reachability after each settled batch of changes.
package watch

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/symreach/pkg/config"
)

// DefaultDebounce is how long a manifest must stay quiet before it is reloaded.
const DefaultDebounce = 500 * time.Millisecond

// Event is a settled change to one manifest file.
type Event struct {
	Path    string
	Removed bool
}

// Handler receives each batch of settled events in path order. Batches are
// delivered one at a time.
type Handler func(ctx context.Context, events []Event)

type pendingChange struct {
	at      time.Time
	removed bool
}

// Watcher monitors a directory tree for manifest changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	root      string
	logger    *slog.Logger
	handler   Handler

	mu      sync.Mutex
	pending map[string]pendingChange
}

// NewWatcher creates a watcher rooted at root. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(root string, cfg *config.Config, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  debounce,
		root:      root,
		logger:    logger,
		pending:   make(map[string]pendingChange),
	}, nil
}

// SetHandler sets the function called with each settled batch.
func (w *Watcher) SetHandler(h Handler) {
	w.handler = h
}

// Start watches until ctx is done or the watcher is stopped. It returns
// ctx.Err() on cancellation and nil when stopped.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Info("watching for manifest changes", "root", w.root, "dirs", len(w.fsWatcher.WatchList()))

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-ticker.C:
			w.flush(ctx, time.Now())
		}
	}
}

func (w *Watcher) tick() time.Duration {
	return max(w.debounce/5, 10*time.Millisecond)
}

// addTree registers dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && slices.Contains(w.config.Exclude.Dirs, d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// handleEvent records a change for the debounce window.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.config.ShouldExclude(path) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("cannot watch directory", "dir", path, "error", err)
			}
			w.queueExisting(path)
			return
		}
	}

	if !w.config.IsManifest(path) {
		return
	}

	var removed bool
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		removed = true
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
	default:
		return
	}
	w.queue(path, removed, time.Now())
}

// queueExisting picks up manifests written into a directory before its watch
// was registered.
func (w *Watcher) queueExisting(dir string) {
	now := time.Now()
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.config.IsManifest(path) && !w.config.ShouldExclude(path) {
			w.queue(path, false, now)
		}
		return nil
	})
}

func (w *Watcher) queue(path string, removed bool, at time.Time) {
	w.mu.Lock()
	w.pending[path] = pendingChange{at: at, removed: removed}
	w.mu.Unlock()
}

// ready drains changes that have been quiet for the debounce period. A
// rename away followed by no recreation is a removal; an editor's
// rename-then-create dance ends as a write.
func (w *Watcher) ready(now time.Time) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var events []Event
	for path, p := range w.pending {
		if now.Sub(p.at) < w.debounce {
			continue
		}
		delete(w.pending, path)
		removed := p.removed
		if removed {
			if _, err := os.Stat(path); err == nil {
				removed = false
			}
		}
		events = append(events, Event{Path: path, Removed: removed})
	}
	slices.SortFunc(events, func(a, b Event) int { return cmp.Compare(a.Path, b.Path) })
	return events
}

func (w *Watcher) flush(ctx context.Context, now time.Time) {
	events := w.ready(now)
	if len(events) == 0 || w.handler == nil {
		return
	}
	w.handler(ctx, events)
}

// Stop closes the underlying watcher, which ends Start.
func (w *Watcher) Stop() error {
	err := w.fsWatcher.Close()
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}

// WatchedDirs returns the directories currently being watched.
func (w *Watcher) WatchedDirs() []string {
	dirs := w.fsWatcher.WatchList()
	slices.Sort(dirs)
	return dirs
}
