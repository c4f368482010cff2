package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ghostwriter/internal/apperr"
)

func tempVault(t *testing.T, files map[string]string) *FS {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fs, err := NewFS(dir, WithAttachmentDir("attachments"))
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestRead(t *testing.T) {
	s := tempVault(t, map[string]string{"a/b/note.md": "# Hello\nWorld\n"})
	got, err := s.Read("a/b/note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "# Hello\nWorld\n" {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestRead_MissingIsNotFound(t *testing.T) {
	s := tempVault(t, nil)
	_, err := s.Read("missing.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestOpenAndStat(t *testing.T) {
	s := tempVault(t, map[string]string{"img/photo.png": "12345"})

	rc, err := s.Open("img/photo.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "12345" {
		t.Errorf("data = %q", data)
	}

	info, err := s.Stat("img/photo.png")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("size = %d, want 5", info.Size())
	}
}

func TestList(t *testing.T) {
	s := tempVault(t, map[string]string{
		"a.md":               "a",
		"sub/b.md":           "b",
		"readme.txt":         "not md",
		".obsidian/cache.md": "hidden",
	})

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("%s: empty checksum", it.Path)
		}
		if it.Path != "a.md" && it.Path != "sub/b.md" {
			t.Errorf("unexpected path %q", it.Path)
		}
	}
}

func TestFind(t *testing.T) {
	s := tempVault(t, map[string]string{
		"deep/nested/dir/photo.png": "x",
		"other/photo.png":           "x",
		"attachments/logo.svg":      "x",
		"misc/logo.svg":             "x",
		"docs/guide.pdf":            "x",
	})

	tests := []struct {
		name string
		want string
	}{
		{"photo.png", "other/photo.png"},
		{"logo.svg", "attachments/logo.svg"},
		{"docs/guide.pdf", "docs/guide.pdf"},
		{"elsewhere/guide.pdf", "docs/guide.pdf"},
	}
	for _, tt := range tests {
		got, err := s.Find(tt.name)
		if err != nil {
			t.Errorf("Find(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Find(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}

	if _, err := s.Find("nope.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Find(nope.png) err = %v, want ErrNotFound", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t, nil)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if _, err := s.Stat(p); err == nil {
			t.Errorf("expected error for stat of %q", p)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/ghostwriter-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "ghostwriter-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
