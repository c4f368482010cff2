// Package render turns a note body into Ghost-ready HTML through an ordered
// list of translation stages followed by baseline Markdown rendering and
// the post-processing guard.
package render

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/starford/ghostwriter/internal/guard"
	"github.com/starford/ghostwriter/internal/metrics"
	"github.com/starford/ghostwriter/internal/models"
)

// Markdown is the baseline renderer.
type Markdown interface {
	Render(src string) (string, error)
	RenderInline(src string) (string, error)
}

// MetadataIndex resolves cross-note references.
type MetadataIndex interface {
	// Lookup finds the note a link target points at; from is the path of the
	// linking note and breaks ties between notes sharing a basename.
	Lookup(target, from string) (models.NoteRef, bool)
}

// Vault locates attachments referenced by notes.
type Vault interface {
	Find(name string) (string, error)
	Stat(path string) (fs.FileInfo, error)
}

// AssetUploader accepts fire-and-forget asset uploads.
type AssetUploader interface {
	Enqueue(a models.Asset)
}

// Config wires a Pipeline to its collaborators. Only Markdown is required.
type Config struct {
	Markdown Markdown
	Index    MetadataIndex
	Vault    Vault
	Uploader AssetUploader
	// Embeds enables the enrichment stage when set.
	Embeds EmbedFetcher
	// SiteURL is the public blog URL used for links and asset paths.
	SiteURL           string
	FirstAsFeatured   bool
	EnrichConcurrency int
	Clock             clockwork.Clock
	Logger            *slog.Logger
	Metrics           metrics.Recorder
}

// Stage is one step of the pipeline.
type Stage interface {
	Name() string
	Apply(ctx context.Context, d *Document) error
}

type stageFunc struct {
	name string
	fn   func(ctx context.Context, d *Document) error
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Apply(ctx context.Context, d *Document) error { return s.fn(ctx, d) }

// bodyStage adapts a translator over the working body.
func bodyStage(name string, fn func(d *Document, s string) (string, error)) Stage {
	return stageFunc{name: name, fn: func(_ context.Context, d *Document) error {
		out, err := fn(d, d.Body)
		if err != nil {
			return err
		}
		d.Body = out
		return nil
	}}
}

// Pipeline runs the translation stages in their declared order.
type Pipeline struct {
	md          Markdown
	index       MetadataIndex
	vault       Vault
	uploader    AssetUploader
	embeds      EmbedFetcher
	site        string
	featured    bool
	concurrency int
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     metrics.Recorder
	stages      []Stage
}

// NewPipeline builds a Pipeline from cfg, filling in defaults.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		md:          cfg.Markdown,
		index:       cfg.Index,
		vault:       cfg.Vault,
		uploader:    cfg.Uploader,
		embeds:      cfg.Embeds,
		site:        strings.TrimRight(cfg.SiteURL, "/"),
		featured:    cfg.FirstAsFeatured,
		concurrency: cfg.EnrichConcurrency,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		metrics:     metrics.OrNoop(cfg.Metrics),
	}
	if p.concurrency <= 0 {
		p.concurrency = 4
	}
	if p.clock == nil {
		p.clock = clockwork.NewRealClock()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.stages = p.declare()
	return p
}

// declare lists the stages in order. Fenced cards go before code protection
// because they are fences themselves; embeds and links go before bare-URL
// linkification; checklists go before the renderer sees any list.
func (p *Pipeline) declare() []Stage {
	return []Stage{
		bodyStage("header-cards", p.headerCards),
		bodyStage("product-cards", p.productCards),
		bodyStage("colored-callouts", p.coloredCallouts),
		bodyStage("protect-code", p.protectCode),
		stageFunc{name: "enrichment", fn: p.enrich},
		bodyStage("feature-image", p.featureImage),
		bodyStage("download-cards", p.downloadCards),
		bodyStage("button-cards", p.buttonCards),
		bodyStage("embeds", p.embedLinks),
		bodyStage("wiki-links", p.wikiLinks),
		bodyStage("images", p.images),
		bodyStage("links", p.links),
		bodyStage("youtube-iframes", p.youtubeIframes),
		bodyStage("linkify", p.linkify),
		bodyStage("acronyms", p.acronyms),
		bodyStage("highlights", p.highlights),
		bodyStage("checklists", p.checklists),
		bodyStage("tables", p.tables),
		bodyStage("callouts", p.callouts),
		stageFunc{name: "markdown", fn: p.renderMarkdown},
	}
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run transforms d and returns the guarded HTML.
func (p *Pipeline) Run(ctx context.Context, d *Document) (string, error) {
	start := p.clock.Now()
	for _, s := range p.stages {
		began := p.clock.Now()
		if err := s.Apply(ctx, d); err != nil {
			return "", fmt.Errorf("render: %s: %w", s.Name(), err)
		}
		p.metrics.ObserveStageDuration(s.Name(), p.clock.Since(began))
	}
	out, err := guard.Apply(d.html)
	if err != nil {
		return "", fmt.Errorf("render: guard: %w", err)
	}
	p.metrics.ObservePipelineDuration(p.clock.Since(start))
	return out, nil
}

func (p *Pipeline) renderMarkdown(_ context.Context, d *Document) error {
	out, err := p.md.Render(d.expandSource(d.Body))
	if err != nil {
		return err
	}
	d.html = headingIDs(d.Expand(out))
	return nil
}

// renderBlock renders a nested Markdown fragment such as a callout body.
func (p *Pipeline) renderBlock(d *Document, src string) (string, error) {
	return p.md.Render(d.expandSource(src))
}

func (p *Pipeline) renderInline(d *Document, src string) (string, error) {
	return p.md.RenderInline(d.expandSource(src))
}
