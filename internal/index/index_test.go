package index

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/ghostwriter/internal/apperr"
	"github.com/starford/ghostwriter/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "ghostwriter-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM links`).Scan(&count); err != nil {
		t.Fatalf("links table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := NoteRow{
		Path:      "hello.md",
		Title:     "Hello World",
		Checksum:  "abc123",
		Tags:      []string{"go", "test"},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertNote(row, "This is a hello world note.", []string{"other.md"}); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	cs, err := db.GetChecksum("hello.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "1", Tags: []string{}, UpdatedAt: time.Now()}, "body", []string{"b.md"})
	_ = db.UpsertNote(NoteRow{Path: "c.md", Checksum: "2", Tags: []string{}, UpdatedAt: time.Now()}, "body", []string{"b.md"})

	bl, err := db.Backlinks("b.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 {
		t.Fatalf("expected 2 backlinks, got %d", len(bl))
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "del.md", Checksum: "x", Tags: []string{}, UpdatedAt: time.Now()}, "body", []string{"target.md"})

	if err := db.DeleteNote("del.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	cs, _ := db.GetChecksum("del.md")
	if cs != "" {
		t.Errorf("deleted note still has checksum %q", cs)
	}
	bl, _ := db.Backlinks("target.md")
	if len(bl) != 0 {
		t.Errorf("expected 0 backlinks after delete, got %d", len(bl))
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "up.md", Title: "Old", Checksum: "1", Tags: []string{}, UpdatedAt: now}, "old body", []string{"x.md"})
	_ = db.UpsertNote(NoteRow{Path: "up.md", Title: "New", Checksum: "2", Tags: []string{"new"}, UpdatedAt: now}, "new body", []string{"y.md"})

	cs, _ := db.GetChecksum("up.md")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	bl, _ := db.Backlinks("x.md")
	if len(bl) != 0 {
		t.Error("old link should be removed on upsert")
	}
	bl, _ = db.Backlinks("y.md")
	if len(bl) != 1 {
		t.Error("new link should exist")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "s.md", Title: "Search Me", Checksum: "1", Tags: []string{}, UpdatedAt: time.Now()}, "uniqueword appears here", nil)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.md" {
		t.Errorf("search results = %+v, want 1 hit for s.md", results)
	}
}

func seedNotes(t *testing.T, db *DB, rows ...NoteRow) {
	t.Helper()
	for _, r := range rows {
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = time.Now()
		}
		if err := db.UpsertNote(r, "body", nil); err != nil {
			t.Fatalf("UpsertNote(%s): %v", r.Path, err)
		}
	}
}

func TestLookup(t *testing.T) {
	db := testDB(t)
	seedNotes(t, db,
		NoteRow{Path: "Intro.md", Slug: "intro", Title: "Intro"},
		NoteRow{Path: "guides/Setup.md", Slug: "setup-guide", Title: "Setup"},
		NoteRow{Path: "archive/old/Setup.md", Slug: "old-setup", Title: "Old Setup"},
		NoteRow{Path: "blog/Setup.md", Slug: "blog-setup", Title: "Blog Setup"},
		NoteRow{Path: "blog/100%_done.md", Slug: "done", Title: "Done"},
	)

	tests := []struct {
		target, from string
		wantSlug     string
		wantOK       bool
	}{
		{"Intro", "x.md", "intro", true},
		{"intro.md", "x.md", "intro", true},
		{"Setup", "guides/a.md", "setup-guide", true},
		{"Setup", "blog/post.md", "blog-setup", true},
		{"Setup", "root.md", "blog-setup", true},
		{"archive/old/Setup", "x.md", "old-setup", true},
		{"old/Setup", "archive/index.md", "old-setup", true},
		{"../Intro.md", "guides/a.md", "intro", true},
		{"100%_done", "x.md", "done", true},
		{"Missing", "x.md", "", false},
		{"", "x.md", "", false},
	}
	for _, tt := range tests {
		ref, ok := db.Lookup(tt.target, tt.from)
		if ok != tt.wantOK {
			t.Errorf("Lookup(%q, %q) ok = %v, want %v", tt.target, tt.from, ok, tt.wantOK)
			continue
		}
		if ref.Slug != tt.wantSlug {
			t.Errorf("Lookup(%q, %q) slug = %q, want %q", tt.target, tt.from, ref.Slug, tt.wantSlug)
		}
	}
}

func TestGetNote(t *testing.T) {
	db := testDB(t)
	seedNotes(t, db, NoteRow{Path: "n.md", Title: "N", Slug: "n", Checksum: "c", Tags: []string{"x"}})

	n, err := db.GetNote("n.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if n.Slug != "n" || len(n.Tags) != 1 || n.Tags[0] != "x" {
		t.Errorf("note = %+v", n)
	}
	if _, err := db.GetNote("missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListNotes_TagAndPaging(t *testing.T) {
	db := testDB(t)
	seedNotes(t, db,
		NoteRow{Path: "a.md", Title: "Charlie", Tags: []string{"go"}},
		NoteRow{Path: "b.md", Title: "alpha", Tags: []string{"go", "web"}},
		NoteRow{Path: "c.md", Title: "Bravo", Tags: []string{"gopher"}},
	)

	rows, total, err := db.ListNotes(10, 0, "go", "title")
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("total = %d, len = %d, want 2/2", total, len(rows))
	}
	if rows[0].Path != "b.md" || rows[1].Path != "a.md" {
		t.Errorf("order = %s, %s", rows[0].Path, rows[1].Path)
	}

	rows, total, _ = db.ListNotes(1, 1, "", "")
	if total != 3 || len(rows) != 1 || rows[0].Path != "b.md" {
		t.Errorf("page = %+v (total %d)", rows, total)
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	seedNotes(t, db, NoteRow{Path: "a.md", Checksum: "1"}, NoteRow{Path: "b.md", Checksum: "2"})
	cs, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	if len(cs) != 2 || cs["a.md"] != "1" || cs["b.md"] != "2" {
		t.Errorf("checksums = %v", cs)
	}
}

func TestPublications(t *testing.T) {
	db := testDB(t)
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	pubs := []models.Publication{
		{Path: "a.md", Slug: "a", RemoteID: "1", Kind: "post", Status: "draft", Created: true, PublishedAt: base},
		{Path: "b.md", Slug: "b", RemoteID: "2", Kind: "page", Status: "published", Created: true, PublishedAt: base.Add(time.Minute)},
		{Path: "a.md", Slug: "a", RemoteID: "1", Kind: "post", Status: "published", Checksum: "c2", PublishedAt: base.Add(2 * time.Minute)},
	}
	for _, p := range pubs {
		if err := db.RecordPublication(p); err != nil {
			t.Fatalf("RecordPublication: %v", err)
		}
	}

	all, err := db.ListPublications("", 0)
	if err != nil {
		t.Fatalf("ListPublications: %v", err)
	}
	if len(all) != 3 || all[0].Status != "published" || all[0].Path != "a.md" || all[0].Checksum != "c2" {
		t.Errorf("all = %+v", all)
	}

	forA, _ := db.ListPublications("a.md", 10)
	if len(forA) != 2 || forA[1].Status != "draft" || !forA[1].Created {
		t.Errorf("a.md history = %+v", forA)
	}
}

func TestOpen_MigratesPublicationChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(`CREATE TABLE publications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL, slug TEXT NOT NULL,
		remote_id TEXT NOT NULL DEFAULT '', kind TEXT NOT NULL DEFAULT 'post',
		status TEXT NOT NULL DEFAULT '', url TEXT NOT NULL DEFAULT '',
		created INTEGER NOT NULL DEFAULT 0, published_at DATETIME NOT NULL)`); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if err := db.RecordPublication(models.Publication{Path: "a.md", Slug: "a", Checksum: "x", PublishedAt: time.Now()}); err != nil {
		t.Fatalf("RecordPublication after migrate: %v", err)
	}
}
