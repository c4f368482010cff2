// Package markdown wraps goldmark as the baseline Markdown to HTML renderer.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts standard Markdown with footnotes, tables and raw HTML.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a Renderer with raw HTML passthrough enabled. Headings are
// emitted without ids; the caller assigns them once the text is final.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Table,
				extension.Strikethrough,
				extension.Footnote,
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
			),
		),
	}
}

// Render converts a Markdown document to HTML.
func (r *Renderer) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown: render: %w", err)
	}
	return buf.String(), nil
}

// RenderInline converts a single line of Markdown and drops the paragraph
// wrapper, for use inside captions, titles and list items.
func (r *Renderer) RenderInline(src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	out, err := r.Render(src)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") && strings.Count(out, "<p>") == 1 {
		out = out[len("<p>") : len(out)-len("</p>")]
	}
	return out, nil
}
