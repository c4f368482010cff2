//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, title, body string, tags []string) error {
	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO files_fts (path, title, body, tags) VALUES (?, ?, ?, ?)`,
		path, title, body, strings.Join(tags, " ")); err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) error {
	if _, err := tx.Exec(`DELETE FROM files_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// matchExpr turns free text into an FTS5 expression: every term is quoted
// so user punctuation never reaches the query parser, and the last term
// matches as a prefix for search-as-you-type.
func matchExpr(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	quoted[len(quoted)-1] += "*"
	return strings.Join(quoted, " ")
}

// Search runs a full-text query. Title hits outrank tag hits, which
// outrank body hits.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT files_fts.path,
		       files_fts.title,
		       notes.slug,
		       snippet(files_fts, 2, '<mark>', '</mark>', '…', 24)
		FROM files_fts
		JOIN notes ON notes.path = files_fts.path
		WHERE files_fts MATCH ?
		ORDER BY bm25(files_fts, 0.0, 10.0, 1.0, 4.0)
		LIMIT ?
	`, matchExpr(terms), searchLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Slug, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
