// Package publish turns a vault note into a Ghost post or page: it reads the
// note, renders it through the pipeline and creates or updates the remote
// resource keyed by slug.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/starford/ghostwriter/internal/apperr"
	"github.com/starford/ghostwriter/internal/checksum"
	"github.com/starford/ghostwriter/internal/frontmatter"
	"github.com/starford/ghostwriter/internal/ghost"
	"github.com/starford/ghostwriter/internal/metrics"
	"github.com/starford/ghostwriter/internal/models"
	"github.com/starford/ghostwriter/internal/render"
	"github.com/starford/ghostwriter/internal/sse"
)

// Remote is the part of the Admin API the publisher needs.
type Remote interface {
	FindBySlug(ctx context.Context, kind ghost.Kind, slug string) (*ghost.Post, error)
	Create(ctx context.Context, kind ghost.Kind, p ghost.Post) (*ghost.Post, error)
	Update(ctx context.Context, kind ghost.Kind, p ghost.Post) (*ghost.Post, error)
	EditorURL(kind ghost.Kind, id string) string
}

// Renderer runs the translation pipeline over a document.
type Renderer interface {
	Run(ctx context.Context, d *render.Document) (string, error)
}

// Reader reads notes from the vault.
type Reader interface {
	Read(path string) ([]byte, error)
}

// History stores successful publishes.
type History interface {
	RecordPublication(p models.Publication) error
}

// Events receives publish lifecycle events.
type Events interface {
	Publish(event sse.Event)
}

// Opener opens a URL for the user, typically in a browser.
type Opener func(url string) error

// Result describes a finished publish.
type Result struct {
	Meta      *frontmatter.Meta
	HTML      string
	Post      *ghost.Post
	Kind      ghost.Kind
	Created   bool
	EditorURL string
	Message   string
	Checksum  string
}

// Rendered is a note run through the pipeline without publishing.
type Rendered struct {
	Meta *frontmatter.Meta
	HTML string
	// Checksum is the digest of the note source.
	Checksum string
}

// Service publishes notes.
type Service struct {
	vault    Reader
	renderer Renderer
	remote   Remote

	baseURL      string
	uploadAssets bool

	notifier Notifier
	opener   Opener
	history  History
	events   Events
	metrics  metrics.Recorder
	clock    clockwork.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithBaseURL sets the public site URL used to resolve relative canonical URLs.
func WithBaseURL(u string) Option { return func(s *Service) { s.baseURL = u } }

// WithUploadAssets sets the default for the per-note upload_assets flag.
func WithUploadAssets(v bool) Option { return func(s *Service) { s.uploadAssets = v } }

// WithNotifier sets where user-facing messages go.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithOpener opens the editor URL after a successful publish.
func WithOpener(o Opener) Option { return func(s *Service) { s.opener = o } }

// WithHistory records successful publishes.
func WithHistory(h History) Option { return func(s *Service) { s.history = h } }

// WithEvents broadcasts publish events.
func WithEvents(e Events) Option { return func(s *Service) { s.events = e } }

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) { s.metrics = metrics.OrNoop(r) }
}

// WithClock sets the clock used for publication timestamps.
func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService creates a publisher. remote may be nil for render-only use.
func NewService(vault Reader, renderer Renderer, remote Remote, opts ...Option) *Service {
	s := &Service{
		vault:    vault,
		renderer: renderer,
		remote:   remote,
		notifier: NopNotifier{},
		metrics:  metrics.NoopRecorder{},
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
		inflight: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Render reads the note at notePath and returns its guarded HTML.
func (s *Service) Render(ctx context.Context, notePath string) (*Rendered, error) {
	return s.render(ctx, notePath)
}

// Publish renders the note at notePath and creates or updates the remote
// resource with the same slug. A second call for the same note while one is
// running fails with apperr.ErrPublishInProgress.
func (s *Service) Publish(ctx context.Context, notePath string) (*Result, error) {
	if s.remote == nil {
		return nil, fmt.Errorf("publish: no remote configured: %w", apperr.ErrInvalidConfig)
	}
	if !s.acquire(notePath) {
		return nil, fmt.Errorf("publish %s: %w", notePath, apperr.ErrPublishInProgress)
	}
	defer s.release(notePath)

	s.emit("publish.started", map[string]string{"path": notePath})
	res, err := s.publish(ctx, notePath)
	if err != nil {
		s.fail(notePath, res, err)
		return nil, err
	}

	s.notifier.Notify(res.Message)
	s.metrics.IncPublish(res.Kind.Singular(), metrics.OutcomeSuccess)
	s.logger.Info("publish: done",
		slog.String("path", notePath),
		slog.String("slug", res.Meta.Slug),
		slog.String("status", res.Post.Status),
		slog.Bool("created", res.Created))

	if s.history != nil {
		pub := models.Publication{
			Path:        notePath,
			Slug:        res.Meta.Slug,
			RemoteID:    res.Post.ID,
			Kind:        res.Kind.Singular(),
			Status:      res.Post.Status,
			URL:         res.Post.URL,
			Created:     res.Created,
			Checksum:    res.Checksum,
			PublishedAt: s.clock.Now().UTC(),
		}
		if err := s.history.RecordPublication(pub); err != nil {
			s.logger.Warn("publish: record history failed",
				slog.String("path", notePath),
				slog.String("error", err.Error()))
		}
	}
	s.emit("publish.succeeded", map[string]any{
		"path":       notePath,
		"slug":       res.Meta.Slug,
		"status":     res.Post.Status,
		"created":    res.Created,
		"editor_url": res.EditorURL,
	})

	if s.opener != nil {
		if err := s.opener(res.EditorURL); err != nil {
			s.logger.Warn("publish: open editor failed",
				slog.String("url", res.EditorURL),
				slog.String("error", err.Error()))
		}
	}
	return res, nil
}

func (s *Service) publish(ctx context.Context, notePath string) (*Result, error) {
	r, err := s.render(ctx, notePath)
	if err != nil {
		return nil, err
	}
	meta, html := r.Meta, r.HTML
	res := &Result{Meta: meta, HTML: html, Kind: ghost.KindFor(meta.Type), Checksum: r.Checksum}

	existing, err := s.remote.FindBySlug(ctx, res.Kind, meta.Slug)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		existing = nil
	case err != nil:
		return res, fmt.Errorf("publish: lookup %s: %w", meta.Slug, err)
	}

	post := PostFromMeta(meta, html)
	if existing != nil {
		meta.UpdatedAt = existing.UpdatedAt
		post.ID = existing.ID
		post.UpdatedAt = existing.UpdatedAt
		res.Post, err = s.remote.Update(ctx, res.Kind, post)
	} else {
		res.Created = true
		res.Post, err = s.remote.Create(ctx, res.Kind, post)
	}
	if err != nil {
		return res, fmt.Errorf("publish: %s: %w", meta.Slug, err)
	}

	status := res.Post.Status
	if status == "" {
		status = meta.Status
		res.Post.Status = status
	}
	res.EditorURL = s.remote.EditorURL(res.Kind, res.Post.ID)
	res.Message = SuccessMessage(meta.Title, status)
	return res, nil
}

func (s *Service) render(ctx context.Context, notePath string) (*Rendered, error) {
	data, err := s.vault.Read(notePath)
	if err != nil {
		return nil, fmt.Errorf("publish: read %s: %w", notePath, err)
	}
	raw, body, err := frontmatter.Split(data)
	if err != nil {
		return nil, &frontmatter.ConfigError{Field: "frontmatter", Message: err.Error()}
	}
	meta, err := frontmatter.Extract(raw, frontmatter.Fallback{
		Basename:     strings.TrimSuffix(path.Base(notePath), path.Ext(notePath)),
		BaseURL:      s.baseURL,
		UploadAssets: s.uploadAssets,
	})
	if err != nil {
		return nil, err
	}
	doc := render.NewDocument(notePath, meta, body)
	html, err := s.renderer.Run(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &Rendered{Meta: meta, HTML: html, Checksum: checksum.Sum(data)}, nil
}

func (s *Service) fail(notePath string, res *Result, err error) {
	resource := ghost.KindPost.Singular()
	if res != nil {
		resource = res.Kind.Singular()
	}
	var cfgErr *frontmatter.ConfigError
	if errors.As(err, &cfgErr) {
		s.metrics.IncPublish(resource, metrics.OutcomeSkipped)
	} else {
		s.metrics.IncPublish(resource, metrics.OutcomeFailure)
	}
	s.notifier.Notify(FailureMessage(err))
	s.logger.Error("publish: failed",
		slog.String("path", notePath),
		slog.String("error", err.Error()))
	s.emit("publish.failed", map[string]string{"path": notePath, "error": FailureMessage(err)})
}

func (s *Service) emit(typ string, data any) {
	if s.events != nil {
		s.events.Publish(sse.Event{Type: typ, Data: data})
	}
}

func (s *Service) acquire(notePath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[notePath]; busy {
		return false
	}
	s.inflight[notePath] = struct{}{}
	return true
}

func (s *Service) release(notePath string) {
	s.mu.Lock()
	delete(s.inflight, notePath)
	s.mu.Unlock()
}

// PostFromMeta builds the API resource for a rendered note.
func PostFromMeta(m *frontmatter.Meta, html string) ghost.Post {
	p := ghost.Post{
		Title:               m.Title,
		Slug:                m.Slug,
		HTML:                html,
		Status:              m.Status,
		Visibility:          m.Visibility,
		Featured:            m.Featured,
		CustomExcerpt:       m.Excerpt,
		CanonicalURL:        m.CanonicalURL,
		MetaTitle:           m.MetaTitle,
		MetaDescription:     m.MetaDescription,
		FeatureImage:        m.FeatureImage,
		FeatureImageAlt:     m.FeatureImageAlt,
		FeatureImageCaption: m.FeatureImageCaption,
		UpdatedAt:           m.UpdatedAt,
	}
	for _, t := range m.Tags {
		p.Tags = append(p.Tags, ghost.Tag{Name: t})
	}
	return p
}

// SuccessMessage is the notice shown after a publish.
func SuccessMessage(title, status string) string {
	return fmt.Sprintf("%q has been %s successfully!", title, status)
}

// FailureMessage is the notice shown when a publish fails. Remote errors and
// frontmatter problems are shown without the wrapping context.
func FailureMessage(err error) string {
	var cfgErr *frontmatter.ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Message
	}
	var apiErr *ghost.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}
