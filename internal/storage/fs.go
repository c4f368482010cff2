package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/ghostwriter/internal/apperr"
	"github.com/starford/ghostwriter/internal/checksum"
	"github.com/starford/ghostwriter/internal/models"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root        string // absolute path to vault directory
	attachments string // preferred attachment folder, relative to root
}

// FSOption configures an FS.
type FSOption func(*FS)

// WithAttachmentDir makes Find look in dir before searching the whole vault.
func WithAttachmentDir(dir string) FSOption {
	return func(f *FS) { f.attachments = strings.Trim(filepath.ToSlash(dir), "/") }
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, opts ...FSOption) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	f := &FS{root: abs}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

func hidden(name string) bool { return strings.HasPrefix(name, ".") && name != "." }

// List walks dir (relative to root) and returns metadata for every .md file.
// Hidden directories such as .obsidian and .git are skipped.
func (f *FS) List(dir string) ([]models.NoteMetadata, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.NoteMetadata
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != base && hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		sum, err := checksum.File(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, models.NoteMetadata{
			Path:      filepath.ToSlash(rel),
			Checksum:  sum,
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, notFound(err))
	}
	return data, nil
}

// Open streams a vault file.
func (f *FS) Open(path string) (io.ReadCloser, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, notFound(err))
	}
	return fh, nil
}

// Stat describes a vault file.
func (f *FS) Stat(path string) (fs.FileInfo, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", path, notFound(err))
	}
	return info, nil
}

// Find resolves an attachment name the way wiki embeds do: a path that
// exists as given wins, then the attachment folder, then the shallowest
// file with that base name anywhere in the vault.
func (f *FS) Find(name string) (string, error) {
	name = strings.Trim(filepath.ToSlash(name), "/")
	if name == "" {
		return "", fmt.Errorf("storage: find: empty name: %w", apperr.ErrNotFound)
	}
	if f.isFile(name) {
		return name, nil
	}
	base := path.Base(name)
	if f.attachments != "" {
		if candidate := path.Join(f.attachments, base); f.isFile(candidate) {
			return candidate, nil
		}
	}

	best := ""
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if p != f.root && hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != base {
			return nil
		}
		rel, _ := filepath.Rel(f.root, p)
		rel = filepath.ToSlash(rel)
		if best == "" || strings.Count(rel, "/") < strings.Count(best, "/") {
			best = rel
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("storage: find %s: %w", name, err)
	}
	if best == "" {
		return "", fmt.Errorf("storage: find %s: %w", name, apperr.ErrNotFound)
	}
	return best, nil
}

func (f *FS) isFile(rel string) bool {
	abs, err := f.safePath(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && !info.IsDir()
}

func notFound(err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	}
	return err
}
