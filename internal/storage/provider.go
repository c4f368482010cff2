// Package storage defines read access to the vault: notes and the
// attachments they reference.
package storage

import (
	"io"
	"io/fs"

	"github.com/starford/ghostwriter/internal/models"
)

// Provider is the interface for vault file operations. Paths are relative
// to the vault root and use forward slashes.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Open streams the file at path.
	Open(path string) (io.ReadCloser, error)
	// Find locates an attachment by file name anywhere in the vault.
	Find(name string) (string, error)
	// Stat describes the file at path.
	Stat(path string) (fs.FileInfo, error)
}
