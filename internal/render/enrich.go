package render

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ghostwriter/internal/metrics"
)

// Embed is a ready-made rich embed returned by the oEmbed proxy.
type Embed struct {
	HTML  string
	Title string
}

// Bookmark is link preview metadata returned by the oEmbed proxy.
type Bookmark struct {
	URL         string
	Title       string
	Description string
	Icon        string
	Thumbnail   string
	Author      string
	Publisher   string
}

// EmbedFetcher resolves stand-alone URLs into embeds or bookmarks.
type EmbedFetcher interface {
	FetchEmbed(ctx context.Context, rawURL string) (Embed, error)
	FetchBookmark(ctx context.Context, rawURL string) (Bookmark, error)
}

type enrichKind string

const (
	kindEmbed    enrichKind = "embed"
	kindBookmark enrichKind = "bookmark"
)

var (
	urlLineRe = regexp.MustCompile(`^[ \t]*<?(https?://[^\s<>]+?)>?[ \t]*$`)

	embedHosts = []string{
		"youtube.com", "youtu.be", "vimeo.com", "twitter.com", "x.com",
		"spotify.com", "soundcloud.com", "instagram.com", "tiktok.com",
		"codepen.io", "flickr.com", "giphy.com", "reddit.com",
	}

	embedPolicy    = newEmbedPolicy()
	bookmarkPolicy = bluemonday.StrictPolicy()
)

func newEmbedPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("iframe")
	p.AllowAttrs("src", "width", "height", "frameborder", "allow", "allowfullscreen", "title", "scrolling", "style").OnElements("iframe")
	p.AllowAttrs("class", "data-id", "data-lang", "cite").Globally()
	return p
}

// embedKind classifies a URL by host against the rich-embed allowlist.
func embedKind(raw string) enrichKind {
	u, err := url.Parse(raw)
	if err != nil {
		return kindBookmark
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range embedHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return kindEmbed
		}
	}
	return kindBookmark
}

type enrichTask struct {
	token   string
	url     string
	caption string
	kind    enrichKind
}

type enrichResult struct {
	embed    Embed
	bookmark Bookmark
	err      error
}

// enrich replaces every URL that stands alone in its paragraph with a
// placeholder, fetches all of them concurrently and fills the placeholders
// once every fetch has returned.
func (p *Pipeline) enrich(ctx context.Context, d *Document) error {
	if p.embeds == nil {
		return nil
	}
	tasks, body := p.collectEnrichments(d, d.Body)
	if len(tasks) == 0 {
		return nil
	}

	type key struct {
		url  string
		kind enrichKind
	}
	var (
		mu      sync.Mutex
		results = map[key]*enrichResult{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, t := range tasks {
		k := key{t.url, t.kind}
		mu.Lock()
		_, seen := results[k]
		if !seen {
			results[k] = &enrichResult{}
		}
		mu.Unlock()
		if seen {
			continue
		}
		g.Go(func() error {
			var r enrichResult
			switch k.kind {
			case kindEmbed:
				r.embed, r.err = p.embeds.FetchEmbed(gctx, k.url)
			default:
				r.bookmark, r.err = p.embeds.FetchBookmark(gctx, k.url)
			}
			mu.Lock()
			*results[k] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, t := range tasks {
		r := results[key{t.url, t.kind}]
		caption, err := p.renderInline(d, t.caption)
		if err != nil {
			return err
		}
		outcome := metrics.OutcomeSuccess
		if r.err != nil {
			outcome = metrics.OutcomeFailure
			p.logger.Warn("render: enrichment failed",
				slog.String("path", d.Path),
				slog.String("url", t.url),
				slog.String("kind", string(t.kind)),
				slog.String("error", r.err.Error()),
			)
		}
		p.metrics.IncEnrichment(string(t.kind), outcome)

		switch {
		case t.kind == kindEmbed && r.err != nil:
			d.Fill(t.token, "")
		case t.kind == kindEmbed:
			d.Fill(t.token, embedCard(r.embed, caption))
		case r.err != nil:
			d.Fill(t.token, bookmarkCard(Bookmark{URL: t.url}, caption))
		default:
			b := r.bookmark
			if b.URL == "" {
				b.URL = t.url
			}
			d.Fill(t.token, bookmarkCard(b, caption))
		}
	}
	d.Body = body
	return nil
}

// collectEnrichments finds URL paragraphs: a URL line preceded by a blank
// line (or the start) and followed by a blank line (or the end), with at
// most one plain caption line in between.
func (p *Pipeline) collectEnrichments(d *Document, s string) ([]enrichTask, string) {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	var tasks []enrichTask
	for i := 0; i < len(lines); i++ {
		m := urlLineRe.FindStringSubmatch(lines[i])
		if m == nil || (i > 0 && !isBlank(lines[i-1])) {
			out = append(out, lines[i])
			continue
		}
		caption := ""
		next := i + 1
		if next < len(lines) && !isBlank(lines[next]) {
			if structural(lines[next]) || urlLineRe.MatchString(lines[next]) ||
				(next+1 < len(lines) && !isBlank(lines[next+1])) {
				out = append(out, lines[i])
				continue
			}
			caption = strings.TrimSpace(lines[next])
			next++
		}
		t := enrichTask{url: m[1], caption: caption, kind: embedKind(m[1])}
		t.token = strings.TrimSpace(d.Block(""))
		tasks = append(tasks, t)
		out = append(out, t.token)
		i = next - 1
	}
	return tasks, strings.Join(out, "\n")
}

func embedCard(e Embed, caption string) string {
	class := "kg-card kg-embed-card"
	if caption != "" {
		class += " kg-card-hascaption"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<figure class="%s">%s`, class, embedPolicy.Sanitize(e.HTML))
	if caption != "" {
		fmt.Fprintf(&b, "<figcaption>%s</figcaption>", caption)
	}
	b.WriteString("</figure>")
	return b.String()
}

func bookmarkCard(bm Bookmark, caption string) string {
	clean := bookmarkPolicy.Sanitize
	title := firstNonEmpty(clean(bm.Title), esc(bm.URL))

	class := "kg-card kg-bookmark-card"
	if caption != "" {
		class += " kg-card-hascaption"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<figure class="%s"><a class="kg-bookmark-container" href="%s"><div class="kg-bookmark-content">`, class, esc(bm.URL))
	fmt.Fprintf(&b, `<div class="kg-bookmark-title">%s</div>`, title)
	if bm.Description != "" {
		fmt.Fprintf(&b, `<div class="kg-bookmark-description">%s</div>`, clean(bm.Description))
	}
	b.WriteString(`<div class="kg-bookmark-metadata">`)
	if isRemote(bm.Icon) {
		fmt.Fprintf(&b, `<img class="kg-bookmark-icon" src="%s" alt="">`, esc(bm.Icon))
	}
	if bm.Publisher != "" {
		fmt.Fprintf(&b, `<span class="kg-bookmark-author">%s</span>`, clean(bm.Publisher))
	}
	if bm.Author != "" {
		fmt.Fprintf(&b, `<span class="kg-bookmark-publisher">%s</span>`, clean(bm.Author))
	}
	b.WriteString(`</div></div>`)
	if isRemote(bm.Thumbnail) {
		fmt.Fprintf(&b, `<div class="kg-bookmark-thumbnail"><img src="%s" alt="" onerror="this.style.display = 'none'"></div>`, esc(bm.Thumbnail))
	}
	b.WriteString(`</a>`)
	if caption != "" {
		fmt.Fprintf(&b, "<figcaption>%s</figcaption>", caption)
	}
	b.WriteString("</figure>")
	return b.String()
}
