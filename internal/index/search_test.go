package index

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func seedSearch(t *testing.T, db *DB) {
	t.Helper()
	notes := []struct {
		row  NoteRow
		body string
	}{
		{NoteRow{Path: "body.md", Title: "Notes", Slug: "notes", Tags: []string{}}, "a long text about gardening and soil"},
		{NoteRow{Path: "title.md", Title: "Gardening Basics", Slug: "gardening-basics", Tags: []string{"home"}}, "where to start"},
		{NoteRow{Path: "pct.md", Title: "Discounts", Slug: "discounts", Tags: []string{}}, "save 100% today"},
	}
	for _, n := range notes {
		n.row.Checksum = n.row.Path
		n.row.UpdatedAt = time.Now()
		if err := db.UpsertNote(n.row, n.body, nil); err != nil {
			t.Fatalf("UpsertNote(%s): %v", n.row.Path, err)
		}
	}
}

func TestSearch_TitleHitsFirst(t *testing.T) {
	db := testDB(t)
	seedSearch(t, db)

	results, err := db.Search("gardening", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Path != "title.md" || results[0].Slug != "gardening-basics" {
		t.Errorf("first hit = %+v, want title.md", results[0])
	}
}

func TestSearch_RequiresEveryTerm(t *testing.T) {
	db := testDB(t)
	seedSearch(t, db)

	results, _ := db.Search("gardening soil", 10)
	if len(results) != 1 || results[0].Path != "body.md" {
		t.Errorf("results = %+v, want body.md only", results)
	}
}

func TestSearch_PunctuationIsNotSyntax(t *testing.T) {
	db := testDB(t)
	seedSearch(t, db)

	for _, q := range []string{`"gardening`, `gardening) OR (`, `gardening*`, `gardening:`} {
		results, err := db.Search(q, 10)
		if err != nil {
			t.Errorf("Search(%q): %v", q, err)
			continue
		}
		var paths []string
		for _, r := range results {
			paths = append(paths, r.Path)
		}
		if !slices.Contains(paths, "title.md") {
			t.Errorf("Search(%q) = %v", q, paths)
		}
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	db := testDB(t)
	seedSearch(t, db)

	results, err := db.Search("  %%  ", 10)
	if err != nil || len(results) != 0 {
		t.Errorf("results = %+v, err = %v", results, err)
	}
}

func TestSearch_SnippetMarksMatch(t *testing.T) {
	db := testDB(t)
	seedSearch(t, db)

	results, _ := db.Search("soil", 10)
	if len(results) != 1 || !strings.Contains(results[0].Snippet, "<mark>soil</mark>") {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchTerms(t *testing.T) {
	got := searchTerms(`foo-bar "baz" qux_1`)
	want := []string{"foo", "bar", "baz", "qux_1"}
	if !slices.Equal(got, want) {
		t.Errorf("searchTerms = %v, want %v", got, want)
	}
}
