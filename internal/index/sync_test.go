package index

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/starford/ghostwriter/internal/models"
)

func TestReconcile_Stats(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(vaultDir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("a.md", "# A")
	write("b.md", "# B")
	stats, err := reconcile(db, store, logger, nil)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats != (SyncStats{Created: 2}) {
		t.Errorf("first pass = %+v", stats)
	}

	stats, _ = reconcile(db, store, logger, nil)
	if stats != (SyncStats{}) {
		t.Errorf("unchanged pass = %+v", stats)
	}

	write("a.md", "# A edited")
	_ = os.Remove(filepath.Join(vaultDir, "b.md"))
	write("c.md", "# C")
	rec := &recorder{}
	stats, _ = reconcile(db, store, logger, rec.record)
	if stats != (SyncStats{Created: 1, Updated: 1, Deleted: 1}) {
		t.Errorf("third pass = %+v", stats)
	}
	got := rec.snapshot()
	slices.Sort(got)
	want := []string{"created:c.md", "deleted:b.md", "updated:a.md"}
	if !slices.Equal(got, want) {
		t.Errorf("callbacks = %v, want %v", got, want)
	}
}

func TestSync_KeepsPublishHistory(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_ = os.WriteFile(filepath.Join(vaultDir, "gone.md"), []byte("x"), 0o644)
	if err := Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}
	seedPublication(t, db, "gone.md")

	_ = os.Remove(filepath.Join(vaultDir, "gone.md"))
	if err := Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}
	if cs, _ := db.GetChecksum("gone.md"); cs != "" {
		t.Error("note still indexed")
	}
	if pubs, _ := db.ListPublications("gone.md", 10); len(pubs) != 1 {
		t.Errorf("history = %+v, want kept", pubs)
	}
}

func seedPublication(t *testing.T, db *DB, path string) {
	t.Helper()
	if err := db.RecordPublication(models.Publication{Path: path, Slug: "s", PublishedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
}
