// Package parser extracts the indexable facts of a note: title, slug,
// wikilinks and tags.
package parser

import (
	"path"
	"regexp"
	"strings"

	"github.com/starford/ghostwriter/internal/frontmatter"
)

var (
	wikilinkRe = regexp.MustCompile(`(!?)\[\[([^\[\]\n]+?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	codeRe     = regexp.MustCompile("(?ms)^[ \t]*```.*?^[ \t]*```|^[ \t]*~~~.*?^[ \t]*~~~|`[^`\n]*`")
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []string
	Tags        []string
	Title       string
	Slug        string
}

// Parse extracts frontmatter, body, wikilinks and tags from a note. name is
// the vault-relative path and supplies the fallback title and slug.
// Invalid frontmatter is not an error: the whole file is treated as body.
func Parse(name string, data []byte) (*Result, error) {
	fm, body, err := frontmatter.Split(data)
	if err != nil {
		fm, body = nil, string(data)
	}
	if len(fm) == 0 {
		fm = nil
	}

	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	prose := codeRe.ReplaceAllString(body, "")

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(prose),
		Tags:        extractTags(prose, fm),
		Title:       deriveTitle(fm, body, base),
		Slug:        frontmatter.DeriveSlug(fm, base),
	}, nil
}

// extractLinks returns deduplicated note link targets. Aliases and heading
// anchors are dropped; embeds of non-note files are skipped.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[2]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		if i := strings.Index(target, "#"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if m[1] == "!" {
			if ext := path.Ext(target); ext != "" && !strings.EqualFold(ext, ".md") {
				continue
			}
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects frontmatter tags followed by inline #tags.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range frontmatter.List(fm, "tags") {
		add(t)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter title, else the first H1 heading,
// else the file's base name.
func deriveTitle(fm map[string]any, body, base string) string {
	if s := frontmatter.String(fm, "title"); s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return base
}
