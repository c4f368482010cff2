package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/ghostwriter/internal/frontmatter"
)

type fragmentKind int

const (
	// fragSource holds protected Markdown put back right before rendering.
	fragSource fragmentKind = iota
	// fragInline holds HTML restored in place after rendering.
	fragInline
	// fragBlock holds HTML that replaces the paragraph its token lands in.
	fragBlock
)

type fragment struct {
	kind fragmentKind
	text string
}

// Document is one note moving through the pipeline. Translators never splice
// generated HTML into Body; they register a fragment and splice its opaque
// token, so identical matches at different positions stay independent.
type Document struct {
	Path string
	Meta *frontmatter.Meta
	Body string

	nonce    string
	frags    []fragment
	tokenRe  *regexp.Regexp
	paraRe   *regexp.Regexp
	uploaded map[string]struct{}
	html     string
}

// NewDocument wraps a note body and its extracted frontmatter.
func NewDocument(path string, meta *frontmatter.Meta, body string) *Document {
	if meta == nil {
		meta = &frontmatter.Meta{}
	}
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return &Document{
		Path:     path,
		Meta:     meta,
		Body:     body,
		nonce:    nonce,
		tokenRe:  regexp.MustCompile(`gw` + nonce + `f(\d{4,})z`),
		paraRe:   regexp.MustCompile(`<p>\s*gw` + nonce + `f(\d{4,})z\s*</p>\n?`),
		uploaded: map[string]struct{}{},
	}
}

// HTML returns the rendered body once the render stage has run.
func (d *Document) HTML() string { return d.html }

func (d *Document) add(kind fragmentKind, text string) string {
	d.frags = append(d.frags, fragment{kind: kind, text: text})
	return fmt.Sprintf("gw%sf%04dz", d.nonce, len(d.frags)-1)
}

// Protect hides raw Markdown from later translators.
func (d *Document) Protect(src string) string { return d.add(fragSource, src) }

// Inline registers an HTML fragment that sits inside running text.
func (d *Document) Inline(html string) string { return d.add(fragInline, html) }

// Block registers a block-level HTML fragment and returns its token padded
// with blank lines so the renderer gives it a paragraph of its own.
func (d *Document) Block(html string) string {
	return "\n\n" + d.add(fragBlock, html) + "\n\n"
}

// Fill replaces the content of an already spliced fragment.
func (d *Document) Fill(token, html string) {
	if i, ok := d.index(strings.TrimSpace(token)); ok {
		d.frags[i].text = html
	}
}

func (d *Document) index(token string) (int, bool) {
	m := d.tokenRe.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}
	i, err := strconv.Atoi(m[1])
	if err != nil || i >= len(d.frags) {
		return 0, false
	}
	return i, true
}

// expandSource puts protected Markdown back into s.
func (d *Document) expandSource(s string) string {
	for range len(d.frags) + 1 {
		replaced := false
		s = d.tokenRe.ReplaceAllStringFunc(s, func(tok string) string {
			i, ok := d.index(tok)
			if !ok || d.frags[i].kind != fragSource {
				return tok
			}
			replaced = true
			return d.frags[i].text
		})
		if !replaced {
			break
		}
	}
	return s
}

// Expand resolves every token in rendered HTML. Block tokens swallow the
// paragraph the renderer wrapped them in. Fragments may nest tokens, so
// expansion repeats until nothing is left, bounded by the fragment count.
func (d *Document) Expand(s string) string {
	for range len(d.frags) + 1 {
		if !d.tokenRe.MatchString(s) {
			break
		}
		s = d.paraRe.ReplaceAllStringFunc(s, func(p string) string {
			i, ok := d.index(p)
			if !ok || d.frags[i].kind != fragBlock {
				return p
			}
			return d.frags[i].text
		})
		s = d.tokenRe.ReplaceAllStringFunc(s, func(tok string) string {
			i, ok := d.index(tok)
			if !ok {
				return tok
			}
			return d.frags[i].text
		})
	}
	return s
}
