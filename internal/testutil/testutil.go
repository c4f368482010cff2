// Package testutil holds vault and index fixtures shared by package tests.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ghostwriter/internal/index"
	"github.com/starford/ghostwriter/internal/storage"
)

// TestDB opens an index in the test's temp dir; it is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "ghostwriter-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates an empty vault directory and its storage provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteVault writes files, keyed by slash-separated vault path, under dir.
func WriteVault(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// IndexedVault writes files into a fresh vault and syncs them into a fresh
// index.
func IndexedVault(t *testing.T, files map[string]string) (*storage.FS, *index.DB) {
	t.Helper()
	dir, store := TestVault(t)
	WriteVault(t, dir, files)
	db := TestDB(t)
	if err := index.Sync(db, store, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("index sync: %v", err)
	}
	return store, db
}
