package render

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/starford/ghostwriter/internal/models"
)

var (
	headerCardRe = regexp.MustCompile("(?m)^#{1,6}[ \\t]+([^\\n]+?)[ \\t]*\\n(?:[ \\t]*\\n)?(?:([^\\n#`][^\\n]*)\\n(?:[ \\t]*\\n)?)?```[ \\t]*(header|signup)[ \\t]*\\n((?:[^\\n]*\\n)*?)```[ \\t]*$")
	productRe    = regexp.MustCompile("(?m)^```[ \\t]*product[ \\t]*\\n((?:[^\\n]*\\n)*?)```[ \\t]*$")
	buttonRe     = regexp.MustCompile(`(?m)^[ \t]*Button(?:[ \t]*\(([A-Za-z]+)\))?:[ \t]*\[([^\]\n]+)\]\(\s*<?([^)\s>]+)>?\s*\)[ \t]*$`)
	downloadRe   = regexp.MustCompile(`(?m)^[ \t]*Download:[ \t]*!?\[\[([^\]\n]+)\]\][ \t]*(?:\n([^\n]*))?$`)
)

// Header layouts.
const (
	LayoutRegular = "kg-width-regular"
	LayoutWide    = "kg-width-wide"
	LayoutFull    = "kg-width-full kg-content-wide"
	LayoutSplit   = "kg-width-full kg-layout-split"
)

// LayoutClass maps a header/signup layout value to its card classes.
// Unknown values get the regular layout.
func LayoutClass(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "wide":
		return LayoutWide
	case "full":
		return LayoutFull
	case "split", "split-with-image", "split with image", "split-image":
		return LayoutSplit
	default:
		return LayoutRegular
	}
}

// AlignClass maps an alignment value; anything but "left" centres.
func AlignClass(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), "left") {
		return "kg-align-left"
	}
	return "kg-align-center"
}

type background struct {
	class string
	color string
	image string
}

func (p *Pipeline) background(d *Document, v string) background {
	v = strings.TrimSpace(v)
	switch {
	case isHexColor(v):
		return background{class: "kg-style-custom", color: v}
	case embedRe.MatchString(v), imageRe.MatchString(v):
		return background{class: "kg-style-image", image: p.imageRef(d, v)}
	case isRemote(v) && classify(v) == classImage:
		return background{class: "kg-style-image", image: v}
	default:
		return background{class: "kg-style-accent"}
	}
}

func buttonStyle(color string) (class, style string) {
	if isHexColor(color) {
		return "", fmt.Sprintf(` style="background-color: %s;"`, esc(strings.TrimSpace(color)))
	}
	return " kg-style-accent", ""
}

// headerCards handles a heading, an optional subtitle and a ```header or
// ```signup block of labelled settings.
func (p *Pipeline) headerCards(d *Document, s string) (string, error) {
	return replaceMatches(s, headerCardRe, func(m []string, _ bool) (string, error) {
		f := parseFields(m[4])
		heading := strings.TrimSpace(m[1])
		sub := strings.TrimSpace(m[2])
		if m[3] == "signup" {
			return d.Block(p.signupCard(d, heading, sub, f)), nil
		}
		return d.Block(p.headerCard(d, heading, sub, f)), nil
	})
}

func cardButton(f map[string]string, fallback string) (text, link string) {
	text, link = parseButton(field(f, "button", "button_text"))
	link = firstNonEmpty(link, field(f, "link", "button_link", "url", "button_url"))
	if text == "" {
		text = fallback
	}
	if link == "" {
		link = "#"
	}
	return text, link
}

func (p *Pipeline) headerCard(d *Document, heading, sub string, f map[string]string) string {
	layout := LayoutClass(field(f, "layout"))
	bg := p.background(d, field(f, "background", "bg"))
	text, link := cardButton(f, "")
	btnClass, btnStyle := buttonStyle(field(f, "color", "button_color"))

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="kg-card kg-header-card kg-v2 %s %s"`, layout, bg.class)
	if bg.color != "" {
		fmt.Fprintf(&b, ` style="background-color: %s;" data-background-color="%s"`, esc(bg.color), esc(bg.color))
	}
	b.WriteString(">")
	if bg.image != "" {
		fmt.Fprintf(&b, `<picture><img class="kg-header-card-image" src="%s" loading="lazy" alt=""></picture>`, esc(bg.image))
	}
	fmt.Fprintf(&b, `<div class="kg-header-card-content"><div class="kg-header-card-text %s">`, AlignClass(field(f, "alignment", "align")))
	fmt.Fprintf(&b, `<h2 id="%s" class="kg-header-card-heading">%s</h2>`, anchorID(heading), esc(heading))
	if sub != "" {
		fmt.Fprintf(&b, `<p class="kg-header-card-subheading">%s</p>`, esc(sub))
	}
	if text != "" {
		fmt.Fprintf(&b, `<a href="%s" class="kg-header-card-button%s"%s>%s</a>`, esc(link), btnClass, btnStyle, esc(text))
	}
	b.WriteString("</div></div></div>")
	return b.String()
}

func (p *Pipeline) signupCard(d *Document, heading, sub string, f map[string]string) string {
	layout := LayoutClass(field(f, "layout"))
	bg := p.background(d, field(f, "background", "bg"))
	text, _ := cardButton(f, "Subscribe")
	btnClass, btnStyle := buttonStyle(field(f, "color", "button_color"))

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="kg-card kg-signup-card %s %s" data-lexical-signup-form`, layout, bg.class)
	if bg.color != "" {
		fmt.Fprintf(&b, ` style="background-color: %s;"`, esc(bg.color))
	}
	b.WriteString(">")
	if bg.image != "" {
		fmt.Fprintf(&b, `<picture><img class="kg-signup-card-image" src="%s" loading="lazy" alt=""></picture>`, esc(bg.image))
	}
	fmt.Fprintf(&b, `<div class="kg-signup-card-content"><div class="kg-signup-card-text %s">`, AlignClass(field(f, "alignment", "align")))
	fmt.Fprintf(&b, `<h2 id="%s" class="kg-signup-card-heading">%s</h2>`, anchorID(heading), esc(heading))
	if sub != "" {
		fmt.Fprintf(&b, `<p class="kg-signup-card-subheading">%s</p>`, esc(sub))
	}
	b.WriteString(`<form class="kg-signup-card-form" data-members-form="signup"><div class="kg-signup-card-fields">`)
	b.WriteString(`<input class="kg-signup-card-input" id="email" data-members-email="" type="email" required="true" placeholder="Your email">`)
	fmt.Fprintf(&b, `<button class="kg-signup-card-button%s"%s type="submit"><span class="kg-signup-card-button-default">%s</span></button>`, btnClass, btnStyle, esc(text))
	b.WriteString(`</div><div class="kg-signup-card-success">Email sent! Check your inbox to complete your signup.</div>`)
	b.WriteString(`<div class="kg-signup-card-error" data-members-error=""></div></form></div></div></div>`)
	return b.String()
}

// buttonCards handles "Button: [text](url)" with an optional "(center)".
func (p *Pipeline) buttonCards(d *Document, s string) (string, error) {
	return replaceMatches(s, buttonRe, func(m []string, _ bool) (string, error) {
		align := "kg-align-left"
		switch strings.ToLower(m[1]) {
		case "center", "centre":
			align = "kg-align-center"
		}
		return d.Block(fmt.Sprintf(`<div class="kg-card kg-button-card %s"><a href="%s" class="kg-btn kg-btn-accent">%s</a></div>`,
			align, esc(m[3]), esc(strings.TrimSpace(m[2])))), nil
	})
}

const starSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><path d="M12.729,1.2l3.346,6.629,6.44.638a.805.805,0,0,1,.5,1.374l-5.3,5.253,1.965,7.138a.813.813,0,0,1-1.151.935L12,19.934,5.48,23.163a.813.813,0,0,1-1.151-.935L6.294,15.09.99,9.837a.805.805,0,0,1,.5-1.374l6.44-.638L11.271,1.2A.819.819,0,0,1,12.729,1.2Z"/></svg>`

// productCards handles a ```product block with image, title, description,
// an optional button and an optional 1-5 rating.
func (p *Pipeline) productCards(d *Document, s string) (string, error) {
	return replaceMatches(s, productRe, func(m []string, _ bool) (string, error) {
		f := parseFields(m[1])
		var b strings.Builder
		b.WriteString(`<div class="kg-card kg-product-card"><div class="kg-product-card-container">`)
		if img := field(f, "image"); img != "" {
			fmt.Fprintf(&b, `<img src="%s" class="kg-product-card-image" loading="lazy">`, esc(p.imageRef(d, img)))
		}
		fmt.Fprintf(&b, `<div class="kg-product-card-title-container"><h4 class="kg-product-card-title">%s</h4></div>`, esc(field(f, "title")))
		if n, err := strconv.Atoi(field(f, "rating")); err == nil && n > 0 {
			n = min(n, 5)
			b.WriteString(`<div class="kg-product-card-rating">`)
			for i := 1; i <= 5; i++ {
				active := ""
				if i <= n {
					active = "kg-product-card-rating-active "
				}
				fmt.Fprintf(&b, `<span class="%skg-product-card-rating-star">%s</span>`, active, starSVG)
			}
			b.WriteString(`</div>`)
		}
		fmt.Fprintf(&b, `<div class="kg-product-card-description"><p>%s</p></div>`, esc(field(f, "description")))
		if text, link := parseButton(field(f, "button")); text != "" {
			fmt.Fprintf(&b, `<a href="%s" class="kg-product-card-button kg-product-card-btn-accent" target="_blank" rel="noopener noreferrer"><span>%s</span></a>`,
				esc(firstNonEmpty(link, field(f, "link"), "#")), esc(text))
		}
		b.WriteString(`</div></div>`)
		return d.Block(b.String()), nil
	})
}

const fileIconSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><path fill="none" stroke="currentColor" stroke-linecap="round" stroke-linejoin="round" stroke-width="1.5" d="M12 .75v15M7.5 11.25l4.5 4.5 4.5-4.5M23.25 15.75v1.5a3 3 0 0 1-3 3H3.75a3 3 0 0 1-3-3v-1.5"/></svg>`

// downloadCards handles "Download: [[file]]" and an optional description
// on the following line. A following line that is itself a card is handed
// back and picked up by the next pass.
func (p *Pipeline) downloadCards(d *Document, s string) (string, error) {
	var err error
	for err == nil && downloadRe.MatchString(s) {
		s, err = replaceMatches(s, downloadRe, p.downloadCard(d))
	}
	return s, err
}

func (p *Pipeline) downloadCard(d *Document) func(m []string, _ bool) (string, error) {
	return func(m []string, _ bool) (string, error) {
		target, alias := splitAlias(m[1])
		desc, rest := strings.TrimSpace(m[2]), ""
		if structural(desc) {
			desc, rest = "", "\n"+m[2]
		}
		a := p.asset(d, target, models.AssetFile)
		title := firstNonEmpty(alias, strings.TrimSuffix(path.Base(target), path.Ext(target)))

		var b strings.Builder
		fmt.Fprintf(&b, `<div class="kg-card kg-file-card"><a class="kg-file-card-container" href="%s" title="Download" download>`, esc(a.URL))
		fmt.Fprintf(&b, `<div class="kg-file-card-contents"><div class="kg-file-card-title">%s</div>`, esc(title))
		if desc != "" {
			fmt.Fprintf(&b, `<div class="kg-file-card-caption">%s</div>`, esc(desc))
		}
		fmt.Fprintf(&b, `<div class="kg-file-card-metadata"><div class="kg-file-card-filename">%s</div>`, esc(a.Name))
		if size := p.fileSize(a.Source); size != "" {
			fmt.Fprintf(&b, `<div class="kg-file-card-filesize">%s</div>`, size)
		}
		fmt.Fprintf(&b, `</div></div><div class="kg-file-card-icon">%s</div></a></div>`, fileIconSVG)
		return d.Block(b.String()) + rest, nil
	}
}

func (p *Pipeline) fileSize(source string) string {
	if p.vault == nil {
		return ""
	}
	info, err := p.vault.Stat(source)
	if err != nil || info.IsDir() {
		return ""
	}
	return humanize.Bytes(uint64(info.Size()))
}

// structural reports whether a line starts a Markdown block of its own and
// so cannot be a card description.
func structural(line string) bool {
	if isBlank(line) {
		return true
	}
	for _, prefix := range []string{"#", ">", "-", "*", "+", "|", "```", "~~~", "!", "[", "Download:", "Button"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
