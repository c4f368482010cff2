package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"github.com/starford/ghostwriter/internal/storage"
)

// Change kinds passed to EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, path string)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long a path must stay quiet before it is re-indexed.
// Editors that save on every keystroke produce one index update per pause.
func WithDebounce(d time.Duration) WatcherOption { return func(w *Watcher) { w.debounce = d } }

// WithCallback sets the function notified after each index change.
func WithCallback(cb EventCallback) WatcherOption { return func(w *Watcher) { w.cb = cb } }

// WithWatchClock sets the clock driving the debounce timer.
func WithWatchClock(c clockwork.Clock) WatcherOption { return func(w *Watcher) { w.clock = c } }

// Watcher keeps the index in step with the vault while serve mode runs.
type Watcher struct {
	db       Writer
	store    storage.Provider
	root     string
	logger   *slog.Logger
	cb       EventCallback
	debounce time.Duration
	clock    clockwork.Clock

	// pending holds vault-relative paths touched since the last flush;
	// reconcile is set by renames, whose target path fsnotify does not report.
	pending   map[string]struct{}
	reconcile bool
}

// NewWatcher creates a watcher for the vault rooted at root.
func NewWatcher(db Writer, store storage.Provider, root string, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		db:       db,
		store:    store,
		root:     root,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		clock:    clockwork.NewRealClock(),
		pending:  map[string]struct{}{},
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run watches the vault until ctx is cancelled. New directories are added
// as they appear; hidden ones such as .obsidian are skipped.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", w.root))

	timer := w.clock.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("watcher: stopped")
			return nil

		case <-timer.Chan():
			w.flush()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.collect(fw, ev) {
				timer.Reset(w.debounce)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// collect records an event for the next flush and reports whether anything
// was recorded.
func (w *Watcher) collect(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if rel, ok := w.rel(ev.Name); !ok || rel == "" {
				return false
			}
			if err := addDirsRecursive(fw, ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			// Files moved in with the directory raise no events of their own.
			w.reconcile = true
			return true
		}
	}
	if !strings.HasSuffix(ev.Name, ".md") {
		return false
	}
	rel, ok := w.rel(ev.Name)
	if !ok {
		return false
	}
	if ev.Op&fsnotify.Rename != 0 {
		w.reconcile = true
	}
	w.pending[rel] = struct{}{}
	return true
}

func (w *Watcher) rel(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || hiddenPath(rel) {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", true
	}
	return rel, true
}

// flush applies every pending change. Paths are re-read from disk rather
// than replaying event ops, so a write followed by a delete inside one
// debounce window ends as a delete.
func (w *Watcher) flush() {
	pending := w.pending
	w.pending = map[string]struct{}{}
	reconcile := w.reconcile
	w.reconcile = false

	for rel := range pending {
		data, err := w.store.Read(rel)
		if err != nil {
			if known, _ := w.db.GetChecksum(rel); known == "" {
				continue
			}
			if err := w.db.DeleteNote(rel); err != nil {
				w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
				continue
			}
			w.logger.Debug("watcher: deleted", slog.String("path", rel))
			w.notify(ChangeDeleted, rel)
			continue
		}
		known, _ := w.db.GetChecksum(rel)
		if err := indexFile(w.db, rel, data); err != nil {
			w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		kind := ChangeUpdated
		if known == "" {
			kind = ChangeCreated
		}
		w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
		w.notify(kind, rel)
	}

	if reconcile {
		w.reconcileAll()
	}
}

func (w *Watcher) notify(kind, rel string) {
	if w.cb != nil {
		w.cb(kind, rel)
	}
}

// reconcileAll rescans the whole vault. Renames and directory moves need
// it because fsnotify does not report the new paths.
func (w *Watcher) reconcileAll() {
	if _, err := reconcile(w.db, w.store, w.logger, w.cb); err != nil {
		w.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher,
// skipping hidden ones such as .obsidian and .git.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// hiddenPath reports whether any element of a vault-relative path is hidden.
func hiddenPath(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
