//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"html"
	"strings"
)

// Without FTS5 the notes table is scanned with LIKE; body and tags are
// already stored there.
func initFTS(*sql.DB) error                                     { return nil }
func ftsUpsert(*sql.Tx, string, string, string, []string) error { return nil }
func ftsDelete(*sql.Tx, string) error                           { return nil }

// Search matches notes containing every query term in the title, body or
// tags. Title hits sort first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	for _, t := range terms {
		like := "%" + escapeLike(t) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	first := "%" + escapeLike(terms[0]) + "%"
	args = append(args, first, searchLimit(limit))

	rows, err := db.conn.Query(`
		SELECT path, title, slug, body
		FROM notes
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY CASE WHEN title LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, title COLLATE NOCASE
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			body string
		)
		if err := rows.Scan(&r.Path, &r.Title, &r.Slug, &body); err != nil {
			return nil, err
		}
		r.Snippet = snippet(body, terms[0], 80)
		out = append(out, r)
	}
	return out, rows.Err()
}

// snippet cuts roughly width runes of body around the first case-insensitive
// occurrence of term and marks it.
func snippet(body, term string, width int) string {
	runes := []rune(body)
	lower := []rune(strings.ToLower(body))
	needle := []rune(strings.ToLower(term))

	at := -1
	if len(lower) == len(runes) {
		for i := 0; i+len(needle) <= len(lower); i++ {
			if string(lower[i:i+len(needle)]) == string(needle) {
				at = i
				break
			}
		}
	}
	if at < 0 {
		if len(runes) > width {
			return html.EscapeString(string(runes[:width])) + "…"
		}
		return html.EscapeString(body)
	}

	start := max(at-width/2, 0)
	end := min(at+len(needle)+width/2, len(runes))
	var b strings.Builder
	if start > 0 {
		b.WriteString("…")
	}
	b.WriteString(html.EscapeString(string(runes[start:at])))
	b.WriteString("<mark>")
	b.WriteString(html.EscapeString(string(runes[at : at+len(needle)])))
	b.WriteString("</mark>")
	b.WriteString(html.EscapeString(string(runes[at+len(needle) : end])))
	if end < len(runes) {
		b.WriteString("…")
	}
	return b.String()
}
