package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	fenceOpenRe  = regexp.MustCompile("^[ \t]{0,3}(`{3,}|~{3,})")
	inlineCodeRe = regexp.MustCompile("``[^`\n]+?``|`[^`\n]+`")
	highlightRe  = regexp.MustCompile(`==([^=\n]+?)==`)
	acronymDefRe = regexp.MustCompile(`(?m)^\*\[([^\]\n]+)\]:[ \t]*(.+?)[ \t]*$\n?`)
	youtubeRe    = regexp.MustCompile(`(?is)<iframe\b[^>]*\bsrc=["']https?://(?:www\.)?(?:youtube\.com|youtube-nocookie\.com)/embed/([^"']*)["'][^>]*>\s*</iframe>`)
	tableSepRe   = regexp.MustCompile(`^[ \t]*\|?[ \t]*:?-+:?[ \t]*(?:\|[ \t]*:?-+:?[ \t]*)*\|?[ \t]*$`)
)

// protectCode hides fenced blocks and code spans so no translator rewrites
// their content. An unclosed fence runs to the end of the body.
func (p *Pipeline) protectCode(d *Document, s string) (string, error) {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		m := fenceOpenRe.FindStringSubmatch(lines[i])
		if m == nil {
			out = append(out, protectSpans(d, lines[i]))
			continue
		}
		fence := m[1]
		start := i
		for i+1 < len(lines) {
			i++
			if isFenceClose(lines[i], fence) {
				break
			}
		}
		out = append(out, d.Protect(strings.Join(lines[start:i+1], "\n")))
	}
	return strings.Join(out, "\n"), nil
}

func isFenceClose(line, fence string) bool {
	t := strings.TrimSpace(line)
	if len(t) < len(fence) || t[0] != fence[0] {
		return false
	}
	return strings.Trim(t, string(fence[0])) == ""
}

func protectSpans(d *Document, line string) string {
	return inlineCodeRe.ReplaceAllStringFunc(line, d.Protect)
}

func (p *Pipeline) highlights(d *Document, s string) (string, error) {
	return replaceMatches(s, highlightRe, func(m []string, _ bool) (string, error) {
		inner, err := p.renderInline(d, m[1])
		if err != nil {
			return "", err
		}
		return d.Inline("<mark>" + inner + "</mark>"), nil
	})
}

// acronyms removes "*[ABBR]: Expansion" definitions and marks every use of
// ABBR that is not part of a longer word. Longer abbreviations win over
// their prefixes. Keys may begin or end with punctuation, as in C++ or .NET.
func (p *Pipeline) acronyms(d *Document, s string) (string, error) {
	defs := map[string]string{}
	s = acronymDefRe.ReplaceAllStringFunc(s, func(line string) string {
		m := acronymDefRe.FindStringSubmatch(line)
		defs[strings.TrimSpace(m[1])] = m[2]
		return ""
	})
	if len(defs) == 0 {
		return s, nil
	}

	keys := make([]string, 0, len(defs))
	for k := range defs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for i, k := range keys {
		keys[i] = regexp.QuoteMeta(k)
	}
	re, err := regexp.Compile(`(?:` + strings.Join(keys, "|") + `)`)
	if err != nil {
		return "", fmt.Errorf("acronyms: %w", err)
	}

	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(s, -1) {
		if !standsAlone(s, loc[0], loc[1]) {
			continue
		}
		key := s[loc[0]:loc[1]]
		b.WriteString(s[last:loc[0]])
		b.WriteString(d.Inline(fmt.Sprintf(`<abbr class="acronym-dropdown" title="%s">%s</abbr>`, esc(defs[key]), esc(key))))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// standsAlone reports whether s[start:end] has no letter, digit or
// underscore directly on either side.
func standsAlone(s string, start, end int) bool {
	if before, _ := utf8.DecodeLastRuneInString(s[:start]); start > 0 && isWordRune(before) {
		return false
	}
	if after, _ := utf8.DecodeRuneInString(s[end:]); end < len(s) && isWordRune(after) {
		return false
	}
	return true
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

// youtubeIframes rebuilds pasted YouTube players as an embed card.
func (p *Pipeline) youtubeIframes(d *Document, s string) (string, error) {
	return replaceMatches(s, youtubeRe, func(m []string, own bool) (string, error) {
		return place(d, fmt.Sprintf(`<figure class="kg-card kg-embed-card"><iframe width="560" height="315" src="https://www.youtube.com/embed/%s" frameborder="0" `+
			`allow="accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture; web-share" allowfullscreen></iframe></figure>`, esc(m[1])), own), nil
	})
}

// tables renders pipe tables on their own and wraps them in a table card.
// A table is a header row, a separator row and any following rows that
// contain a pipe.
func (p *Pipeline) tables(d *Document, s string) (string, error) {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		if i+1 >= len(lines) || !strings.Contains(lines[i], "|") || !isTableSep(lines[i+1]) {
			out = append(out, lines[i])
			continue
		}
		start := i
		i += 2
		for i < len(lines) && strings.Contains(lines[i], "|") && !isBlank(lines[i]) {
			i++
		}
		html, err := p.renderBlock(d, strings.Join(lines[start:i], "\n"))
		if err != nil {
			return "", err
		}
		out = append(out, d.Block(`<div class="kg-card kg-table-card">`+strings.TrimSpace(html)+`</div>`))
		i--
	}
	return strings.Join(out, "\n"), nil
}

func isTableSep(line string) bool {
	return strings.Contains(line, "-") && (strings.Contains(line, "|") || strings.Contains(line, ":")) && tableSepRe.MatchString(line)
}
