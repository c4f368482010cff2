package render

import (
	"fmt"
	"html"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// replaceMatches rewrites every match of re in s. fn receives the submatches
// and whether the match is the only content on its line.
func replaceMatches(s string, re *regexp.Regexp, fn func(m []string, ownLine bool) (string, error)) (string, error) {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if locs == nil {
		return s, nil
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(s[last:loc[0]])
		m := make([]string, len(loc)/2)
		for i := range m {
			if loc[2*i] >= 0 {
				m[i] = s[loc[2*i]:loc[2*i+1]]
			}
		}
		out, err := fn(m, ownLine(s, loc[0], loc[1]))
		if err != nil {
			return "", err
		}
		b.WriteString(out)
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

func ownLine(s string, start, end int) bool {
	ls := strings.LastIndexByte(s[:start], '\n') + 1
	le := strings.IndexByte(s[end:], '\n')
	if le < 0 {
		le = len(s)
	} else {
		le += end
	}
	return strings.TrimSpace(s[ls:start]) == "" && strings.TrimSpace(s[end:le]) == ""
}

// place splices html as a block when it stands alone on its line.
func place(d *Document, html string, own bool) string {
	if own {
		return d.Block(html)
	}
	return d.Inline(html)
}

func esc(s string) string { return html.EscapeString(s) }

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func isRemote(u string) bool {
	l := strings.ToLower(u)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// splitAlias splits "target|alias" on the first pipe.
func splitAlias(s string) (string, string) {
	target, alias, _ := strings.Cut(s, "|")
	return strings.TrimSpace(target), strings.TrimSpace(alias)
}

// splitHeading splits "note#heading" on the first hash.
func splitHeading(s string) (string, string) {
	name, heading, _ := strings.Cut(s, "#")
	return strings.TrimSpace(name), strings.TrimSpace(heading)
}

// anchorID derives the fragment id a heading gets once rendered.
func anchorID(heading string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(heading)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
			dash = false
		case unicode.IsSpace(r) || r == '-':
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

var (
	headingRe = regexp.MustCompile(`(?s)<h([1-6])>(.*?)</h([1-6])>`)
	tagRe     = regexp.MustCompile(`<[^>]*>`)
	idAttrRe  = regexp.MustCompile(`\sid="([^"]*)"`)
)

// headingIDs gives every bare heading in rendered HTML the id anchorID
// derives from its visible text, so same-page links resolve. An id already
// present in s is not reused; repeats get a -1, -2 suffix.
func headingIDs(s string) string {
	used := map[string]bool{}
	for _, m := range idAttrRe.FindAllStringSubmatch(s, -1) {
		used[m[1]] = true
	}
	return headingRe.ReplaceAllStringFunc(s, func(h string) string {
		m := headingRe.FindStringSubmatch(h)
		if m[1] != m[3] {
			return h
		}
		base := anchorID(html.UnescapeString(tagRe.ReplaceAllString(m[2], "")))
		if base == "" {
			base = "heading"
		}
		id := base
		for n := 1; used[id]; n++ {
			id = base + "-" + strconv.Itoa(n)
		}
		used[id] = true
		return fmt.Sprintf(`<h%s id="%s">%s</h%s>`, m[1], id, m[2], m[1])
	})
}

func unescapePath(p string) string {
	if u, err := url.PathUnescape(p); err == nil {
		return u
	}
	return p
}

type mediaClass int

const (
	classNote mediaClass = iota
	classImage
	classAudio
	classVideo
)

var (
	imageExts = map[string]struct{}{".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".avif": {}, ".bmp": {}}
	audioExts = map[string]struct{}{".mp3": {}, ".m4a": {}, ".wav": {}, ".ogg": {}, ".flac": {}, ".aac": {}}
	videoExts = map[string]struct{}{".mp4": {}, ".mov": {}, ".webm": {}, ".m4v": {}, ".ogv": {}}
)

// classify decides what an embed target is from its extension.
func classify(target string) mediaClass {
	name, _ := splitHeading(target)
	if i := strings.IndexAny(name, "?"); i >= 0 {
		name = name[:i]
	}
	ext := strings.ToLower(path.Ext(name))
	if _, ok := imageExts[ext]; ok {
		return classImage
	}
	if _, ok := audioExts[ext]; ok {
		return classAudio
	}
	if _, ok := videoExts[ext]; ok {
		return classVideo
	}
	return classNote
}

var fieldRe = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z _-]*?)\s*:\s*(.*?)\s*$`)

// parseFields reads "label: value" lines from a card configuration block.
// Labels are lowercased with spaces and dashes folded to underscores.
func parseFields(block string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(block, "\n") {
		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(m[1]))
		out[key] = m[2]
	}
	return out
}

func field(f map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := f[k]; v != "" {
			return v
		}
	}
	return ""
}

var mdLinkRe = regexp.MustCompile(`^\[([^\]]*)\]\(\s*<?([^)\s>]*)>?\s*\)$`)

// parseButton accepts "[text](url)" or "text | url".
func parseButton(v string) (string, string) {
	if m := mdLinkRe.FindStringSubmatch(strings.TrimSpace(v)); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	text, link, _ := strings.Cut(v, "|")
	return strings.TrimSpace(text), strings.TrimSpace(link)
}

var hexColorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

func isHexColor(s string) bool { return hexColorRe.MatchString(strings.TrimSpace(s)) }
