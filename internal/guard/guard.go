// Package guard post-processes rendered HTML so Ghost's editor keeps it
// intact. Shapes the editor is known to drop or rewrite are wrapped in
// raw-HTML card markers.
package guard

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	beginData = "kg-card-begin: html"
	endData   = "kg-card-end: html"

	// BeginMarker and EndMarker delimit a raw HTML card.
	BeginMarker = "<!--" + beginData + "-->"
	EndMarker   = "<!--" + endData + "-->"
)

// GuardedClasses lists class names whose elements must reach Ghost as raw HTML.
var GuardedClasses = []string{
	"callout",
	"kg-toggle-card",
	"kg-blockquote-alt",
	"acronym-dropdown",
	"kg-checklist",
	"kg-header-card",
	"kg-signup-card",
	"kg-product-card",
	"kg-file-card",
	"kg-button-card",
	"kg-table-card",
	"footnotes",
}

var boldRe = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)

// Apply runs the companion passes over src and wraps every top-level node
// that needs protecting. Nodes already inside a marker pair are left alone,
// so Apply(Apply(x)) == Apply(x).
func Apply(src string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return "", fmt.Errorf("guard: parse: %w", err)
	}

	for _, n := range nodes {
		stripCodeLinks(n, false)
		restoreBold(n)
		dropBackrefs(n)
	}

	var b strings.Builder
	inside := false
	for _, n := range nodes {
		if n.Type == html.CommentNode {
			switch strings.TrimSpace(n.Data) {
			case beginData:
				inside = true
			case endData:
				inside = false
			}
		}
		wrap := !inside && needsGuard(n)
		if wrap {
			b.WriteString(BeginMarker)
		}
		if err := html.Render(&b, n); err != nil {
			return "", fmt.Errorf("guard: render: %w", err)
		}
		if wrap {
			b.WriteString(EndMarker)
		}
	}
	return b.String(), nil
}

func needsGuard(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.DataAtom == atom.Ul || n.DataAtom == atom.Ol {
		return true
	}
	return hasGuardedClass(n)
}

func hasGuardedClass(n *html.Node) bool {
	if n.Type == html.ElementNode {
		for _, g := range GuardedClasses {
			if hasClass(n, g) {
				return true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasGuardedClass(c) {
			return true
		}
	}
	return false
}

// stripCodeLinks unwraps anchors that ended up inside code.
func stripCodeLinks(n *html.Node, inCode bool) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			if inCode && c.DataAtom == atom.A {
				unwrap(c)
			} else {
				stripCodeLinks(c, inCode || c.DataAtom == atom.Code || c.DataAtom == atom.Pre)
			}
		}
		c = next
	}
}

// unwrap replaces n with its children.
func unwrap(n *html.Node) {
	parent := n.Parent
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		c = next
	}
	parent.RemoveChild(n)
}

// restoreBold turns **text** left in text nodes into <strong>. Code and
// callout card text are literal.
func restoreBold(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Code, atom.Pre, atom.Script, atom.Style:
			return
		}
		if hasClass(n, "kg-callout-text") {
			return
		}
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode {
			splitBold(c)
		} else {
			restoreBold(c)
		}
		c = next
	}
}

func splitBold(t *html.Node) {
	locs := boldRe.FindAllStringSubmatchIndex(t.Data, -1)
	if locs == nil {
		return
	}
	parent, text, last := t.Parent, t.Data, 0
	for _, loc := range locs {
		if loc[0] > last {
			parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text[last:loc[0]]}, t)
		}
		strong := &html.Node{Type: html.ElementNode, Data: "strong", DataAtom: atom.Strong}
		strong.AppendChild(&html.Node{Type: html.TextNode, Data: text[loc[2]:loc[3]]})
		parent.InsertBefore(strong, t)
		last = loc[1]
	}
	if last < len(text) {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text[last:]}, t)
	}
	parent.RemoveChild(t)
}

// dropBackrefs removes footnote back-reference links, which Ghost renders
// as stray arrows.
func dropBackrefs(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			if c.DataAtom == atom.A && isBackref(c) {
				if prev := c.PrevSibling; prev != nil && prev.Type == html.TextNode {
					prev.Data = strings.TrimRight(prev.Data, "\u00a0 ")
				}
				n.RemoveChild(c)
			} else {
				dropBackrefs(c)
			}
		}
		c = next
	}
}

func isBackref(a *html.Node) bool {
	return hasClass(a, "footnote-backref") || strings.HasPrefix(attr(a, "href"), "#fnref")
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
