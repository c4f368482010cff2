package index

import "github.com/starford/ghostwriter/internal/models"

// Writer is what Sync and the watcher need to keep the index current.
type Writer interface {
	UpsertNote(n NoteRow, body string, links []string) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
}

// Reader answers note queries and resolves link targets.
type Reader interface {
	GetNote(path string) (*NoteRow, error)
	ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(target string) ([]string, error)
	Lookup(target, from string) (models.NoteRef, bool)
}

// NoteIndex is the full index, including publish history.
type NoteIndex interface {
	Writer
	Reader
	RecordPublication(p models.Publication) error
	ListPublications(notePath string, limit int) ([]models.Publication, error)
	Close() error
}

var _ NoteIndex = (*DB)(nil)
