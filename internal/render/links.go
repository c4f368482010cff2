package render

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var (
	wikiRe    = regexp.MustCompile(`\[\[([^\[\]\n]+?)\]\]`)
	mdLinkAny = regexp.MustCompile(`\[([^\[\]\n]+)\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)
	bareURLRe = regexp.MustCompile("(^|[\\s(\\[])(?:<(https?://[^\\s<>]+)>|(https?://[^\\s<>\"'`]*[^\\s<>\"'`.,;:!?)\\]]))")
	schemeRe  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
)

// noteLink builds an anchor to another note, or to a heading on this page
// when the target is "#heading". An unresolved target keeps the literal
// syntax it was written with.
func (p *Pipeline) noteLink(d *Document, literal, target, alias string) string {
	name, heading := splitHeading(target)
	if name == "" {
		if heading == "" {
			return d.Inline(esc(literal))
		}
		return d.Inline(fmt.Sprintf(`<a href="#%s">%s</a>`, anchorID(heading), esc(firstNonEmpty(alias, heading))))
	}
	if p.index == nil {
		return d.Inline(esc(literal))
	}
	ref, ok := p.index.Lookup(name, d.Path)
	if !ok || ref.Slug == "" {
		p.logger.Debug("render: unresolved link", slog.String("path", d.Path), slog.String("target", name))
		return d.Inline(esc(literal))
	}
	href := p.site + "/" + ref.Slug + "/"
	if heading != "" {
		href += "#" + anchorID(heading)
	}
	return d.Inline(fmt.Sprintf(`<a href="%s">%s</a>`, esc(href), esc(firstNonEmpty(alias, name))))
}

// wikiLinks handles [[note#heading|alias]]. Embeds have already been
// consumed, so no "![[" is left to confuse the match.
func (p *Pipeline) wikiLinks(d *Document, s string) (string, error) {
	return replaceMatches(s, wikiRe, func(m []string, _ bool) (string, error) {
		target, alias := splitAlias(m[1])
		return p.noteLink(d, m[0], target, alias), nil
	})
}

// links handles [text](target): same-page anchors, links to other notes
// by .md path, and everything else as a plain anchor.
func (p *Pipeline) links(d *Document, s string) (string, error) {
	return replaceMatches(s, mdLinkAny, func(m []string, _ bool) (string, error) {
		text, target := m[1], m[2]
		label, err := p.renderInline(d, text)
		if err != nil {
			return "", err
		}

		if strings.HasPrefix(target, "#") {
			return d.Inline(fmt.Sprintf(`<a href="#%s">%s</a>`, anchorID(unescapePath(target[1:])), label)), nil
		}

		if !schemeRe.MatchString(target) {
			name, heading := splitHeading(unescapePath(target))
			if strings.HasSuffix(strings.ToLower(name), ".md") {
				if p.index == nil {
					return d.Inline(esc(m[0])), nil
				}
				ref, ok := p.index.Lookup(name, d.Path)
				if !ok || ref.Slug == "" {
					p.logger.Debug("render: unresolved link", slog.String("path", d.Path), slog.String("target", name))
					return d.Inline(esc(m[0])), nil
				}
				href := p.site + "/" + ref.Slug + "/"
				if heading != "" {
					href += "#" + anchorID(heading)
				}
				return d.Inline(fmt.Sprintf(`<a href="%s">%s</a>`, esc(href), label)), nil
			}
		}
		return d.Inline(fmt.Sprintf(`<a href="%s">%s</a>`, esc(target), label)), nil
	})
}

// linkify turns remaining bare URLs into anchors. It runs after every
// other link form has been replaced by a token.
func (p *Pipeline) linkify(d *Document, s string) (string, error) {
	return replaceMatches(s, bareURLRe, func(m []string, _ bool) (string, error) {
		u := firstNonEmpty(m[2], m[3])
		return m[1] + d.Inline(fmt.Sprintf(`<a href="%s">%s</a>`, esc(u), esc(u))), nil
	})
}
