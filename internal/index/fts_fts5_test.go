//go:build sqlite_fts5

package index

import (
	"testing"
	"time"
)

func upsertBody(t *testing.T, db *DB, path, title, body string) {
	t.Helper()
	row := NoteRow{Path: path, Title: title, Slug: path, Checksum: body, Tags: []string{}, UpdatedAt: time.Now()}
	if err := db.UpsertNote(row, body, nil); err != nil {
		t.Fatalf("UpsertNote(%s): %v", path, err)
	}
}

func TestFTS5_PrefixMatchOnLastTerm(t *testing.T) {
	db := testDB(t)
	upsertBody(t, db, "ghost.md", "Ghost", "publishing through the admin API")

	results, err := db.Search("admin publi", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Slug != "ghost.md" {
		t.Errorf("results = %+v", results)
	}
	if results, _ := db.Search("publi admin", 10); len(results) != 0 {
		t.Errorf("only the last term is a prefix, got %+v", results)
	}
}

func TestFTS5_Diacritics(t *testing.T) {
	db := testDB(t)
	upsertBody(t, db, "cafe.md", "Café notes", "crème brûlée")

	if results, _ := db.Search("creme", 10); len(results) != 1 {
		t.Errorf("results = %+v", results)
	}
}

func TestFTS5_DeleteAndReplace(t *testing.T) {
	db := testDB(t)
	upsertBody(t, db, "evo.md", "Old", "original text")
	upsertBody(t, db, "evo.md", "New", "replacement text")

	if results, _ := db.Search("original", 10); len(results) != 0 {
		t.Errorf("stale FTS row: %+v", results)
	}
	if results, _ := db.Search("replacement", 10); len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}

	if err := db.DeleteNote("evo.md"); err != nil {
		t.Fatal(err)
	}
	if results, _ := db.Search("replacement", 10); len(results) != 0 {
		t.Errorf("deleted note still searchable: %+v", results)
	}
}
