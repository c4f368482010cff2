package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/ghostwriter/internal/ghost"
	"github.com/starford/ghostwriter/internal/index"
	"github.com/starford/ghostwriter/internal/markdown"
	"github.com/starford/ghostwriter/internal/metrics"
	"github.com/starford/ghostwriter/internal/noteservice"
	"github.com/starford/ghostwriter/internal/publish"
	"github.com/starford/ghostwriter/internal/render"
	"github.com/starford/ghostwriter/internal/storage"
	"github.com/starford/ghostwriter/internal/upload"
)

// stackSpec selects which collaborators a command needs.
type stackSpec struct {
	remote  bool
	uploads bool
	metrics metrics.Recorder
	publish []publish.Option
}

// stack is the set of services shared by every command.
type stack struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	db      *index.DB
	client  *ghost.Client
	queue   *upload.Queue
	notes   *noteservice.Service
	publish *publish.Service
}

func newLogger(level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func resolve(app *application, json bool) (*application, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = newLogger(app.config.App.LogLevel, json)
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	return app, nil
}

// newStack opens the vault and index, brings the index up to date and wires
// the render pipeline and publish service on top of them.
func newStack(app *application, spec stackSpec) (*stack, error) {
	cfg, logger := app.config, app.logger

	store, err := storage.NewFS(cfg.Vault.Path, storage.WithAttachmentDir(cfg.Vault.AttachmentDir))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	s := &stack{cfg: cfg, logger: logger, store: store, db: db}
	s.notes = noteservice.NewService(store, db)

	if spec.remote && !app.offline {
		if !cfg.Ghost.Configured() {
			_ = db.Close()
			return nil, errors.New("ghost.url and ghost.admin_key must be set")
		}
		s.client, err = ghost.New(cfg.Ghost.URL, cfg.Ghost.AdminKey, cfg.Ghost.APIVersion, ghost.WithLogger(logger))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init ghost client: %w", err)
		}
	}

	rcfg := render.Config{
		Markdown:          markdown.New(),
		Index:             db,
		Vault:             store,
		SiteURL:           cfg.Ghost.LinkBase(),
		FirstAsFeatured:   cfg.Publish.FirstAsFeatured,
		EnrichConcurrency: cfg.Publish.EnrichConcurrency,
		Logger:            logger,
		Metrics:           spec.metrics,
	}
	var remote publish.Remote
	if s.client != nil {
		remote = s.client
		if cfg.Publish.Enrich {
			rcfg.Embeds = publish.Embeds{Client: s.client, Timeout: cfg.Publish.EnrichTimeout}
		}
		if spec.uploads {
			s.queue = upload.NewQueue(s.client, store, logger,
				upload.WithConcurrency(cfg.Publish.UploadConcurrency),
				upload.WithMetrics(spec.metrics))
			rcfg.Uploader = s.queue
		}
	}

	opts := []publish.Option{
		publish.WithBaseURL(cfg.Ghost.LinkBase()),
		publish.WithUploadAssets(cfg.Publish.UploadAssets),
		publish.WithHistory(db),
		publish.WithMetrics(spec.metrics),
		publish.WithLogger(logger),
	}
	if cfg.Publish.OpenBrowser {
		opts = append(opts, publish.WithOpener(publish.BrowserOpener))
	}
	s.publish = publish.NewService(store, render.NewPipeline(rcfg), remote, append(opts, spec.publish...)...)
	return s, nil
}

// close drains pending uploads, reports the ones that failed and closes the
// index.
func (s *stack) close(w io.Writer) {
	if s.queue != nil {
		s.queue.Wait()
		for _, f := range s.queue.Failures() {
			if w != nil {
				_, _ = fmt.Fprintf(w, "upload of %s failed: %v\n", f.Asset.Source, f.Err)
			}
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("index close failed", slog.String("error", err.Error()))
	}
}
