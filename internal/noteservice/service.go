// Package noteservice answers read-only questions about vault notes for the
// HTTP and MCP surfaces: listing, search, details with backlinks and
// publish history.
package noteservice

import (
	"context"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/starford/ghostwriter/internal/checksum"
	"github.com/starford/ghostwriter/internal/index"
	"github.com/starford/ghostwriter/internal/models"
	"github.com/starford/ghostwriter/internal/parser"
	"github.com/starford/ghostwriter/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path         string               `json:"path"`
	Title        string               `json:"title"`
	Slug         string               `json:"slug"`
	Content      string               `json:"content"`
	Checksum     string               `json:"checksum"`
	Tags         []string             `json:"tags"`
	Frontmatter  map[string]any       `json:"frontmatter,omitempty"`
	Links        []string             `json:"links"`
	Backlinks    []string             `json:"backlinks"`
	Publications []models.Publication `json:"publications"`
	PublishState PublishState         `json:"publish_state"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// PublishState compares a note with its latest publication.
type PublishState string

const (
	StateUnpublished PublishState = "unpublished"
	StateCurrent     PublishState = "current"
	StateModified    PublishState = "modified"
)

// publishState reports whether sum matches the newest publication. Entries
// recorded without a checksum count as modified.
func publishState(sum string, pubs []models.Publication) PublishState {
	switch {
	case len(pubs) == 0:
		return StateUnpublished
	case pubs[0].Checksum == sum:
		return StateCurrent
	default:
		return StateModified
	}
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates storage and index reads.
type Service struct {
	store storage.Provider
	db    index.NoteIndex
}

// NewService creates a new note service.
func NewService(store storage.Provider, db index.NoteIndex) *Service {
	return &Service{store: store, db: db}
}

// GetNote reads a note from the vault and adds backlinks and publish history
// from the index.
func (s *Service) GetNote(_ context.Context, notePath string) (*NoteDetail, error) {
	data, err := s.store.Read(notePath)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(notePath, data)
	if err != nil {
		return nil, err
	}
	bl, err := s.backlinks(notePath)
	if err != nil {
		return nil, err
	}
	pubs, err := s.db.ListPublications(notePath, 10)
	if err != nil {
		return nil, err
	}
	updated := time.Now()
	if info, err := s.store.Stat(notePath); err == nil {
		updated = info.ModTime()
	}
	sum := checksum.Sum(data)
	return &NoteDetail{
		Path:         notePath,
		Title:        res.Title,
		Slug:         res.Slug,
		Content:      string(data),
		Checksum:     sum,
		Tags:         nonNilSlice(res.Tags),
		Frontmatter:  res.Frontmatter,
		Links:        nonNilSlice(res.Links),
		Backlinks:    bl,
		Publications: pubs,
		PublishState: publishState(sum, pubs),
		UpdatedAt:    updated,
	}, nil
}

// ListNotes returns paginated notes with optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:      r.Path,
			Title:     r.Title,
			Slug:      r.Slug,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	res, err := s.db.Search(query, limit)
	return nonNilSlice(res), err
}

// Backlinks returns the notes that link to notePath.
func (s *Service) Backlinks(_ context.Context, notePath string) ([]string, error) {
	return s.backlinks(notePath)
}

// Publications returns the publish history, newest first. An empty
// notePath returns history for every note.
func (s *Service) Publications(_ context.Context, notePath string, limit int) ([]models.Publication, error) {
	return s.db.ListPublications(notePath, limit)
}

// backlinks collects sources linking by bare name or by vault path, with or
// without the extension.
func (s *Service) backlinks(notePath string) ([]string, error) {
	noExt := strings.TrimSuffix(notePath, ".md")
	targets := []string{path.Base(noExt), noExt, notePath, path.Base(notePath)}
	var out []string
	for _, t := range targets {
		src, err := s.db.Backlinks(t)
		if err != nil {
			return nil, err
		}
		for _, p := range src {
			if p != notePath && !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	slices.Sort(out)
	return nonNilSlice(out), nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
