package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/starford/ghostwriter/internal/storage"
)

// watcherTestEnv sets up a vault dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	db, err := Open(filepath.Join(t.TempDir(), "watcher.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return vaultDir, store, db
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(kind, path string) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// startWatcher runs a watcher with a short debounce until the test ends.
func startWatcher(t *testing.T, vaultDir string, store storage.Provider, db *DB, opts ...WatcherOption) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w := NewWatcher(db, store, vaultDir, logger, append([]WatcherOption{WithDebounce(20 * time.Millisecond)}, opts...)...)
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	rec := &recorder{}
	startWatcher(t, vaultDir, store, db, WithCallback(rec.record))

	_ = os.WriteFile(filepath.Join(vaultDir, "new.md"), []byte("---\nslug: fresh\n---\n# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		ref, ok := db.Lookup("new", "")
		return ok && ref.Slug == "fresh"
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return slices.Contains(rec.snapshot(), "created:new.md")
	}, "expected created:new.md callback")
}

func TestWatcher_RapidWritesCoalesce(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "draft.md"), []byte("v0"), 0o644)
	if err := Sync(db, store, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	startWatcher(t, vaultDir, store, db, WithDebounce(300*time.Millisecond), WithCallback(rec.record))

	for _, v := range []string{"v1", "v2", "v3"} {
		_ = os.WriteFile(filepath.Join(vaultDir, "draft.md"), []byte(v), 0o644)
		time.Sleep(20 * time.Millisecond)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return len(rec.snapshot()) > 0
	}, "no callback after writes")
	time.Sleep(400 * time.Millisecond)

	if got := rec.snapshot(); len(got) != 1 || got[0] != "updated:draft.md" {
		t.Errorf("events = %v, want a single update", got)
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	startWatcher(t, vaultDir, store, db)

	subDir := filepath.Join(vaultDir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("subdir/deep.md")
		return cs != ""
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_HiddenDirIgnored(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	startWatcher(t, vaultDir, store, db)

	hidden := filepath.Join(vaultDir, ".obsidian")
	_ = os.MkdirAll(hidden, 0o755)
	_ = os.WriteFile(filepath.Join(hidden, "workspace.md"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "visible.md"), []byte("y"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("visible.md")
		return cs != ""
	}, "visible note not indexed")
	if cs, _ := db.GetChecksum(".obsidian/workspace.md"); cs != "" {
		t.Error("hidden note was indexed")
	}
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "del.md"), []byte("# Delete Me"), 0o644)
	if err := Sync(db, store, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	startWatcher(t, vaultDir, store, db, WithCallback(rec.record))

	_ = os.Remove(filepath.Join(vaultDir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.md")
		return cs == ""
	}, "deleted file still in index")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return slices.Contains(rec.snapshot(), "deleted:del.md")
	}, "expected deleted:del.md callback")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "old.md"), []byte("# Rename"), 0o644)
	if err := Sync(db, store, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatal(err)
	}
	startWatcher(t, vaultDir, store, db)

	_ = os.Rename(filepath.Join(vaultDir, "old.md"), filepath.Join(vaultDir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.md")
		newCS, _ := db.GetChecksum("renamed.md")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
