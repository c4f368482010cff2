package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/starford/ghostwriter/internal/apperr"
	"github.com/starford/ghostwriter/internal/models"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult is one search hit. Snippet marks matched terms with <mark>.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Snippet string `json:"snippet"`
}

// UpsertNote inserts or replaces a note, its FTS entry, and links within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if n.Tags == nil {
		n.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(n.Tags)

	_, err = tx.Exec(`
		INSERT INTO notes (path, title, slug, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			slug       = excluded.slug,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.Path, n.Title, n.Slug, n.Checksum, string(tagsJSON), body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.Path, n.Title, body, n.Tags); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, 'inline')`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(n.Path, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note, its FTS entry, and outgoing links. Publish
// history is kept.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// GetNote returns one note row.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT path, title, slug, checksum, tags, updated_at FROM notes WHERE path = ?`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// ListNotes returns a page of notes and the total count. tag filters by an
// exact tag; sortBy is "path" (default), "title" or "updated".
func (db *DB) ListNotes(limit, offset int, tag, sortBy string) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := "", []any{}
	if tag != "" {
		where = `WHERE tags LIKE ? ESCAPE '\'`
		args = append(args, `%"`+escapeLike(tag)+`"%`)
	}
	order := "path"
	switch sortBy {
	case "title":
		order = "title COLLATE NOCASE, path"
	case "updated":
		order = "updated_at DESC, path"
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(`SELECT path, title, slug, checksum, tags, updated_at FROM notes `+where+
		` ORDER BY `+order+` LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	out := []NoteRow{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// Backlinks returns all note paths that link to the given target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ?`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Lookup resolves a link target written in the note at from. Targets are
// matched case-insensitively with or without the .md extension. A target
// containing a slash is tried relative to the linking note and then to the
// vault root; anything else matches by file name, preferring a note in the
// same folder as from, then the shallowest path.
func (db *DB) Lookup(target, from string) (models.NoteRef, bool) {
	name := strings.Trim(strings.TrimSpace(target), "/")
	if name == "" {
		return models.NoteRef{}, false
	}
	if !strings.HasSuffix(strings.ToLower(name), ".md") {
		name += ".md"
	}

	if strings.Contains(name, "/") {
		var exact []string
		if dir := path.Dir(from); dir != "." && dir != "" {
			exact = append(exact, path.Join(dir, name))
		}
		exact = append(exact, path.Clean(name))
		for _, p := range exact {
			refs, err := db.refs(`path = ? COLLATE NOCASE`, p)
			if err == nil && len(refs) > 0 {
				return refs[0], true
			}
		}
	}

	refs, err := db.refs(`path = ? COLLATE NOCASE OR path LIKE ? ESCAPE '\'`, name, "%/"+escapeLike(name))
	if err != nil || len(refs) == 0 {
		return models.NoteRef{}, false
	}
	dir := path.Dir(from)
	sort.SliceStable(refs, func(i, j int) bool {
		si, sj := path.Dir(refs[i].Path) == dir, path.Dir(refs[j].Path) == dir
		if si != sj {
			return si
		}
		di, dj := strings.Count(refs[i].Path, "/"), strings.Count(refs[j].Path, "/")
		if di != dj {
			return di < dj
		}
		return refs[i].Path < refs[j].Path
	})
	return refs[0], true
}

func (db *DB) refs(where string, args ...any) ([]models.NoteRef, error) {
	rows, err := db.conn.Query(`SELECT path, slug, title FROM notes WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("index: lookup: %w", err)
	}
	defer rows.Close()
	var out []models.NoteRef
	for rows.Next() {
		var r models.NoteRef
		if err := rows.Scan(&r.Path, &r.Slug, &r.Title); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordPublication appends a successful publish to the history.
func (db *DB) RecordPublication(p models.Publication) error {
	_, err := db.conn.Exec(`
		INSERT INTO publications (path, slug, remote_id, kind, status, url, created, checksum, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Path, p.Slug, p.RemoteID, p.Kind, p.Status, p.URL, p.Created, p.Checksum, p.PublishedAt)
	if err != nil {
		return fmt.Errorf("index: record publication: %w", err)
	}
	return nil
}

// ListPublications returns the newest publications first, optionally for a
// single note.
func (db *DB) ListPublications(notePath string, limit int) ([]models.Publication, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT path, slug, remote_id, kind, status, url, created, checksum, published_at FROM publications`
	args := []any{}
	if notePath != "" {
		q += ` WHERE path = ?`
		args = append(args, notePath)
	}
	q += ` ORDER BY published_at DESC, id DESC LIMIT ?`
	rows, err := db.conn.Query(q, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("index: list publications: %w", err)
	}
	defer rows.Close()

	out := []models.Publication{}
	for rows.Next() {
		var p models.Publication
		if err := rows.Scan(&p.Path, &p.Slug, &p.RemoteID, &p.Kind, &p.Status, &p.URL, &p.Created, &p.Checksum, &p.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*NoteRow, error) {
	var n NoteRow
	var tags string
	if err := s.Scan(&n.Path, &n.Title, &n.Slug, &n.Checksum, &tags, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil || n.Tags == nil {
		n.Tags = []string{}
	}
	return &n, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
