package render

import (
	"fmt"
	"regexp"
	"strings"
)

var checkItemRe = regexp.MustCompile(`^((?:\t|    )*)[-*+] \[([ xX])\] ?(.*)$`)

type checkItem struct {
	depth   int
	checked bool
	text    string
}

// checklists turns runs of task-list lines into nested kg-checklist lists.
// A run ends at the first line that is not a task item.
func (p *Pipeline) checklists(d *Document, s string) (string, error) {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		if !checkItemRe.MatchString(lines[i]) {
			out = append(out, lines[i])
			continue
		}
		var items []checkItem
		prev := -1
		for ; i < len(lines); i++ {
			m := checkItemRe.FindStringSubmatch(lines[i])
			if m == nil {
				break
			}
			depth := strings.Count(m[1], "\t") + strings.Count(m[1], "    ")
			if depth > prev+1 {
				depth = prev + 1
			}
			prev = depth
			items = append(items, checkItem{depth: depth, checked: m[2] != " ", text: m[3]})
		}
		i--

		html, err := p.checklist(d, items)
		if err != nil {
			return "", err
		}
		out = append(out, d.Block(html))
	}
	return strings.Join(out, "\n"), nil
}

func (p *Pipeline) checklist(d *Document, items []checkItem) (string, error) {
	var b strings.Builder
	depth := -1
	for idx, it := range items {
		switch {
		case it.depth > depth:
			b.WriteString(`<ul class="kg-checklist">`)
		case it.depth == depth:
			b.WriteString("</li>")
		default:
			for ; depth > it.depth; depth-- {
				b.WriteString("</li></ul>")
			}
			b.WriteString("</li>")
		}
		depth = it.depth

		text, err := p.renderInline(d, it.text)
		if err != nil {
			return "", fmt.Errorf("checklist item %d: %w", idx+1, err)
		}
		checked := ""
		if it.checked {
			checked = " checked"
		}
		fmt.Fprintf(&b, `<li><input type="checkbox"%s disabled> %s`, checked, text)
	}
	for ; depth >= 0; depth-- {
		b.WriteString("</li></ul>")
	}
	return b.String(), nil
}
