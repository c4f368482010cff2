package index

import (
	"log/slog"
	"time"

	"github.com/starford/ghostwriter/internal/checksum"
	"github.com/starford/ghostwriter/internal/parser"
	"github.com/starford/ghostwriter/internal/storage"
)

// SyncStats counts what a reconciliation pass changed.
type SyncStats struct {
	Created int
	Updated int
	Deleted int
	Failed  int
}

// Sync brings the index in line with the vault: changed or new notes are
// parsed and upserted, notes gone from disk are dropped. Unreadable or
// unparsable notes are logged and skipped.
func Sync(db Writer, store storage.Provider, logger *slog.Logger) error {
	stats, err := reconcile(db, store, logger, nil)
	if err != nil {
		return err
	}
	logger.Debug("sync: done",
		slog.Int("created", stats.Created),
		slog.Int("updated", stats.Updated),
		slog.Int("deleted", stats.Deleted),
		slog.Int("failed", stats.Failed))
	return nil
}

// reconcile compares on-disk checksums with the index and applies the
// difference, reporting each change to cb when set.
func reconcile(db Writer, store storage.Provider, logger *slog.Logger, cb EventCallback) (SyncStats, error) {
	var stats SyncStats
	metas, err := store.List("")
	if err != nil {
		return stats, err
	}
	known, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}
	notify := func(kind, p string) {
		if cb != nil {
			cb(kind, p)
		}
	}

	onDisk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = struct{}{}
		prev, indexed := known[m.Path]
		if indexed && prev == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err == nil {
			err = indexFile(db, m.Path, data)
		}
		if err != nil {
			stats.Failed++
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if indexed {
			stats.Updated++
			notify(ChangeUpdated, m.Path)
		} else {
			stats.Created++
			notify(ChangeCreated, m.Path)
		}
	}

	for p := range known {
		if _, ok := onDisk[p]; ok {
			continue
		}
		if err := db.DeleteNote(p); err != nil {
			stats.Failed++
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Deleted++
		notify(ChangeDeleted, p)
	}
	return stats, nil
}

// indexFile parses one note and upserts it with its outgoing links.
func indexFile(db Writer, path string, data []byte) error {
	res, err := parser.Parse(path, data)
	if err != nil {
		return err
	}
	return db.UpsertNote(NoteRow{
		Path:      path,
		Title:     res.Title,
		Slug:      res.Slug,
		Checksum:  checksum.Sum(data),
		Tags:      res.Tags,
		UpdatedAt: time.Now().UTC(),
	}, res.Body, res.Links)
}
