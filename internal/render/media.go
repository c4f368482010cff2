package render

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/starford/ghostwriter/internal/models"
)

var (
	embedRe   = regexp.MustCompile(`!\[\[([^\]\n]+?)\]\]`)
	imageRe   = regexp.MustCompile(`!\[([^\]\n]*)\]\(\s*<?([^)\s>]+)>?(?:\s+"([^"]*)")?\s*\)`)
	sizeRe    = regexp.MustCompile(`^(\d+)(?:x(\d+))?$`)
	nameClean = strings.NewReplacer("%20", "-", " ", "-")
)

// asset resolves a vault reference to its published name and URL, and
// queues the upload once per document when the note asks for it.
func (p *Pipeline) asset(d *Document, target string, kind models.AssetKind) models.Asset {
	target = strings.ReplaceAll(strings.TrimSpace(target), "\\", "/")
	dir, base := path.Split(target)

	name := nameClean.Replace(base)
	prefix := strings.ReplaceAll(strings.Trim(d.Meta.ImageDirectory, "/"), "/", "")
	if prefix == "" {
		prefix = strings.ReplaceAll(strings.Trim(dir, "/"), "/", "-")
	}
	if prefix != "" {
		name = nameClean.Replace(prefix) + "-" + name
	}

	year, month := d.Meta.ImagesYear, d.Meta.ImagesMonth
	if year == "" || month == "" {
		now := p.clock.Now()
		year, month = now.Format("2006"), now.Format("01")
	}

	a := models.Asset{
		Source: unescapePath(target),
		Name:   name,
		Kind:   kind,
		URL:    fmt.Sprintf("%s/content/%s/%s/%s/%s", p.site, kind, year, month, name),
	}
	if p.vault != nil {
		if found, err := p.vault.Find(unescapePath(base)); err == nil {
			a.Source = found
		} else {
			p.logger.Debug("render: asset not in vault", slog.String("path", d.Path), slog.String("asset", target))
		}
	}

	if d.Meta.UploadAssets && p.uploader != nil {
		if _, done := d.uploaded[a.Name]; !done {
			d.uploaded[a.Name] = struct{}{}
			p.uploader.Enqueue(a)
		}
	}
	return a
}

// imageRef resolves any of the accepted image syntaxes to a URL:
// ![[file]], [[file]], ![alt](src), a remote URL or a vault path.
func (p *Pipeline) imageRef(d *Document, ref string) string {
	ref = strings.TrimSpace(ref)
	if m := embedRe.FindStringSubmatch(ref); m != nil {
		target, _ := splitAlias(m[1])
		return p.asset(d, target, models.AssetImage).URL
	}
	if strings.HasPrefix(ref, "[[") && strings.HasSuffix(ref, "]]") {
		target, _ := splitAlias(ref[2 : len(ref)-2])
		return p.asset(d, target, models.AssetImage).URL
	}
	if m := imageRe.FindStringSubmatch(ref); m != nil {
		ref = m[2]
	}
	if ref == "" || isRemote(ref) {
		return ref
	}
	return p.asset(d, ref, models.AssetImage).URL
}

// featureImage resolves an explicit feature image, or promotes the first
// image embed when configured to and removes it from the body.
func (p *Pipeline) featureImage(d *Document, s string) (string, error) {
	if d.Meta.FeatureImage != "" {
		d.Meta.FeatureImage = p.imageRef(d, d.Meta.FeatureImage)
		return s, nil
	}
	if !p.featured {
		return s, nil
	}
	for _, loc := range embedRe.FindAllStringSubmatchIndex(s, -1) {
		target, alias := splitAlias(s[loc[2]:loc[3]])
		if classify(target) != classImage {
			continue
		}
		d.Meta.FeatureImage = p.asset(d, target, models.AssetImage).URL
		if d.Meta.FeatureImageCaption == "" && !sizeRe.MatchString(alias) {
			d.Meta.FeatureImageCaption = alias
		}
		if d.Meta.FeatureImageAlt == "" && !sizeRe.MatchString(alias) {
			d.Meta.FeatureImageAlt = alias
		}
		return s[:loc[0]] + s[loc[1]:], nil
	}
	return s, nil
}

// embedLinks handles ![[...]]: media becomes a card, anything else is a
// reference to another note.
func (p *Pipeline) embedLinks(d *Document, s string) (string, error) {
	return replaceMatches(s, embedRe, func(m []string, own bool) (string, error) {
		target, alias := splitAlias(m[1])
		switch classify(target) {
		case classImage:
			a := p.asset(d, target, models.AssetImage)
			caption, width, height := alias, "", ""
			if sm := sizeRe.FindStringSubmatch(alias); sm != nil {
				caption, width, height = "", sm[1], sm[2]
			}
			return place(d, imageCard(a.URL, caption, caption, width, height), own), nil
		case classAudio:
			a := p.asset(d, target, models.AssetMedia)
			return place(d, audioCard(a.URL, firstNonEmpty(alias, strings.TrimSuffix(path.Base(target), path.Ext(target)))), own), nil
		case classVideo:
			a := p.asset(d, target, models.AssetMedia)
			return place(d, videoCard(a.URL, alias), own), nil
		}
		return p.noteLink(d, m[0], target, alias), nil
	})
}

// images handles ![alt](src "caption"). Remote sources are used as-is.
func (p *Pipeline) images(d *Document, s string) (string, error) {
	return replaceMatches(s, imageRe, func(m []string, own bool) (string, error) {
		alt, src, caption := m[1], m[2], m[3]
		if isRemote(src) {
			return place(d, imageCard(src, alt, caption, "", ""), own), nil
		}
		switch classify(src) {
		case classImage:
			return place(d, imageCard(p.asset(d, src, models.AssetImage).URL, alt, caption, "", ""), own), nil
		case classAudio:
			return place(d, audioCard(p.asset(d, src, models.AssetMedia).URL, firstNonEmpty(alt, path.Base(src))), own), nil
		case classVideo:
			return place(d, videoCard(p.asset(d, src, models.AssetMedia).URL, firstNonEmpty(caption, alt)), own), nil
		}
		return m[0], nil
	})
}

func imageCard(src, alt, caption, width, height string) string {
	class := "kg-card kg-image-card"
	if caption != "" {
		class += " kg-card-hascaption"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<figure class="%s"><img src="%s" class="kg-image" alt="%s" loading="lazy"`, class, esc(src), esc(alt))
	if width != "" {
		fmt.Fprintf(&b, ` width="%s"`, width)
	}
	if height != "" {
		fmt.Fprintf(&b, ` height="%s"`, height)
	}
	b.WriteString(">")
	if caption != "" {
		fmt.Fprintf(&b, "<figcaption>%s</figcaption>", esc(caption))
	}
	b.WriteString("</figure>")
	return b.String()
}

func audioCard(src, title string) string {
	return fmt.Sprintf(`<div class="kg-card kg-audio-card"><div class="kg-audio-player-container">`+
		`<audio src="%s" preload="metadata" controls></audio>`+
		`<div class="kg-audio-title">%s</div></div></div>`, esc(src), esc(title))
}

func videoCard(src, caption string) string {
	class := "kg-card kg-video-card"
	if caption != "" {
		class += " kg-card-hascaption"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<figure class="%s"><div class="kg-video-container">`+
		`<video src="%s" controls preload="metadata" playsinline></video></div>`, class, esc(src))
	if caption != "" {
		fmt.Fprintf(&b, "<figcaption>%s</figcaption>", esc(caption))
	}
	b.WriteString("</figure>")
	return b.String()
}
