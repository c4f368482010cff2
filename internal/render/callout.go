package render

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCalloutIcon is used for callout types without an entry in the table.
const DefaultCalloutIcon = "📌"

var calloutIcons = map[string]string{
	"note":      "📝",
	"abstract":  "📋",
	"summary":   "📋",
	"tldr":      "📋",
	"info":      "ℹ️",
	"todo":      "☑️",
	"tip":       "💡",
	"hint":      "💡",
	"important": "🔥",
	"success":   "✅",
	"check":     "✅",
	"done":      "✅",
	"question":  "❓",
	"help":      "❓",
	"faq":       "❓",
	"warning":   "⚠️",
	"caution":   "⚠️",
	"attention": "⚠️",
	"failure":   "❌",
	"fail":      "❌",
	"missing":   "❌",
	"danger":    "⚡",
	"error":     "⚡",
	"bug":       "🐛",
	"example":   "📖",
}

// CalloutIcon returns the glyph shown in a callout's title bar.
func CalloutIcon(kind string) string {
	if icon, ok := calloutIcons[strings.ToLower(kind)]; ok {
		return icon
	}
	return DefaultCalloutIcon
}

var (
	calloutHeadRe = regexp.MustCompile(`^>[ \t]*\[!([A-Za-z][\w-]*)\]([-+]?)[ \t]*(.*?)[ \t]*$`)
	quotePrefixRe = regexp.MustCompile(`^>[ \t]?`)
	titleCaser    = cases.Title(language.English)

	calloutColors    = `grey|white|blue|green|yellow|red|pink|purple|accent`
	emojiPattern     = `(?:\p{So}|\p{Sk})(?:\x{FE0F}|\x{20E3}|\x{200D}(?:\p{So}|\p{Sk})|[\x{1F3FB}-\x{1F3FF}])*`
	coloredCalloutRe = regexp.MustCompile("(?m)^```[ \\t]*(" + emojiPattern + ")[ \\t]+(" + calloutColors + ")[ \\t]*\\n((?:[^\\n]*\\n)*?)```[ \\t]*$")
)

// callouts handles "> [!type][-+] title" blocks and their ">" continuation
// lines. Nested callouts inside the body are handled recursively.
func (p *Pipeline) callouts(d *Document, s string) (string, error) {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		m := calloutHeadRe.FindStringSubmatch(lines[i])
		if m == nil {
			out = append(out, lines[i])
			continue
		}
		var body []string
		for i+1 < len(lines) && strings.HasPrefix(lines[i+1], ">") {
			i++
			body = append(body, quotePrefixRe.ReplaceAllString(lines[i], ""))
		}
		nested, err := p.calloutBody(d, strings.Join(body, "\n"))
		if err != nil {
			return "", err
		}
		html, err := p.callout(d, strings.ToLower(m[1]), m[2], m[3], nested)
		if err != nil {
			return "", err
		}
		out = append(out, d.Block(html))
	}
	return strings.Join(out, "\n"), nil
}

// calloutBody applies the line-anchored block translators to a callout body
// once its ">" prefixes are gone.
func (p *Pipeline) calloutBody(d *Document, body string) (string, error) {
	var err error
	for _, fn := range []func(*Document, string) (string, error){p.callouts, p.checklists, p.tables} {
		if body, err = fn(d, body); err != nil {
			return "", err
		}
	}
	return body, nil
}

func (p *Pipeline) callout(d *Document, kind, fold, title, body string) (string, error) {
	explicitTitle := title != ""
	if !explicitTitle {
		title = titleCaser.String(kind)
	}
	titleHTML, err := p.renderInline(d, title)
	if err != nil {
		return "", err
	}

	switch kind {
	case "quote", "cite":
		inner, err := p.renderInline(d, body)
		if err != nil {
			return "", err
		}
		if strings.EqualFold(title, "Alternative") {
			return fmt.Sprintf(`<blockquote class="kg-blockquote-alt">%s</blockquote>`, inner), nil
		}
		if explicitTitle {
			return fmt.Sprintf(`<blockquote>%s<cite>%s</cite></blockquote>`, inner, titleHTML), nil
		}
		return fmt.Sprintf(`<blockquote>%s</blockquote>`, inner), nil
	}

	content, err := p.renderBlock(d, body)
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)

	if kind == "toggle" {
		state := "close"
		if fold == "+" {
			state = "open"
		}
		return fmt.Sprintf(`<div class="kg-card kg-toggle-card" data-kg-toggle-state="%s"><div class="kg-toggle-heading">`+
			`<h4 class="kg-toggle-heading-text">%s</h4>`+
			`<button class="kg-toggle-card-icon" aria-label="Expand toggle to read content"><svg id="Regular" xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><path class="cls-1" d="M23.25,7.311,12.53,18.03a.749.749,0,0,1-1.06,0L.75,7.311"></path></svg></button>`+
			`</div><div class="kg-toggle-content">%s</div></div>`, state, titleHTML, content), nil
	}

	head := fmt.Sprintf(`<span class="callout-icon">%s</span><span class="callout-title-inner">%s</span>`, CalloutIcon(kind), titleHTML)
	if fold != "" {
		open := ""
		if fold == "+" {
			open = " open"
		}
		return fmt.Sprintf(`<details class="callout callout-%s"%s><summary class="callout-title">%s</summary><div class="callout-content">%s</div></details>`,
			kind, open, head, content), nil
	}
	return fmt.Sprintf(`<div class="callout callout-%s"><div class="callout-title">%s</div><div class="callout-content">%s</div></div>`,
		kind, head, content), nil
}

// coloredCallouts handles fences whose info string is an emoji and a
// colour name. The body is kept as escaped text, not rendered.
func (p *Pipeline) coloredCallouts(d *Document, s string) (string, error) {
	return replaceMatches(s, coloredCalloutRe, func(m []string, _ bool) (string, error) {
		text := strings.ReplaceAll(esc(strings.TrimRight(m[3], "\n")), "\n", "<br>")
		return d.Block(fmt.Sprintf(`<div class="kg-card kg-callout-card kg-callout-card-%s"><div class="kg-callout-emoji">%s</div><div class="kg-callout-text">%s</div></div>`,
			m[2], m[1], text)), nil
	})
}
