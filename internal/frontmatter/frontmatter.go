// Package frontmatter splits the YAML metadata block off a note and turns it
// into a normalised publishing record.
package frontmatter

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-slug"
	"gopkg.in/yaml.v3"

	"github.com/starford/ghostwriter/internal/apperr"
)

// Resource types accepted by the remote API.
const (
	TypePost = "post"
	TypePage = "page"
)

// Publish states.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusScheduled = "scheduled"
)

// Visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityMembers = "members"
	VisibilityPaid    = "paid"
	VisibilityTiers   = "tiers"
)

// MaxExcerpt is the longest custom excerpt the remote API stores.
const MaxExcerpt = 300

var yamlFormat = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

// Meta is the normalised frontmatter of one note. Every field carries a
// usable value after Extract, so renderers never see missing data.
type Meta struct {
	Title               string   `json:"title"`
	Slug                string   `json:"slug"`
	Type                string   `json:"type"`
	Tags                []string `json:"tags,omitempty"`
	Featured            bool     `json:"featured"`
	Status              string   `json:"status"`
	Visibility          string   `json:"visibility"`
	Excerpt             string   `json:"excerpt,omitempty"`
	CanonicalURL        string   `json:"canonical_url,omitempty"`
	MetaTitle           string   `json:"meta_title,omitempty"`
	MetaDescription     string   `json:"meta_description,omitempty"`
	FeatureImage        string   `json:"feature_image,omitempty"`
	FeatureImageAlt     string   `json:"feature_image_alt,omitempty"`
	FeatureImageCaption string   `json:"feature_image_caption,omitempty"`
	ImageDirectory      string   `json:"image_directory,omitempty"`
	UploadAssets        bool     `json:"upload_assets"`
	ImagesYear          string   `json:"images_year,omitempty"`
	ImagesMonth         string   `json:"images_month,omitempty"`
	UpdatedAt           string   `json:"updated_at,omitempty"`
}

// Fallback carries the values Extract uses when the note does not set them.
type Fallback struct {
	// Basename is the note filename without extension.
	Basename string
	// BaseURL is the public site URL; relative canonical URLs are joined to it.
	BaseURL string
	// UploadAssets is the configured default for the per-note upload flag.
	UploadAssets bool
}

// ConfigError is a user-facing problem with a note's frontmatter. It aborts
// a publish before any network call.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

func (e *ConfigError) Unwrap() error { return apperr.ErrInvalidConfig }

// Split separates the leading YAML block from the Markdown body. A note
// without a block yields an empty map and the whole input as body.
func Split(data []byte) (map[string]any, string, error) {
	raw := map[string]any{}
	body, err := frontmatter.Parse(bytes.NewReader(data), &raw, yamlFormat)
	if err != nil {
		return nil, "", fmt.Errorf("frontmatter: parse: %w", err)
	}
	return raw, string(body), nil
}

// Extract normalises raw frontmatter into a Meta, applying defaults and
// validating the fields the remote API would reject.
func Extract(raw map[string]any, fb Fallback) (*Meta, error) {
	if raw == nil {
		raw = map[string]any{}
	}
	m := &Meta{
		Title:               firstNonEmpty(String(raw, "title"), fb.Basename),
		Type:                strings.ToLower(firstNonEmpty(String(raw, "type"), TypePost)),
		Tags:                List(raw, "tags"),
		Featured:            Bool(raw, "featured"),
		Excerpt:             firstNonEmpty(String(raw, "excerpt"), String(raw, "custom_excerpt")),
		MetaDescription:     String(raw, "meta_description"),
		FeatureImage:        String(raw, "feature_image"),
		FeatureImageAlt:     String(raw, "feature_image_alt"),
		FeatureImageCaption: String(raw, "feature_image_caption"),
		ImageDirectory:      String(raw, "imageDirectory", "image_directory"),
		UploadAssets:        fb.UploadAssets,
		ImagesYear:          String(raw, "ghost-images-year", "images_year"),
		ImagesMonth:         month(raw),
		UpdatedAt:           String(raw, "updated_at"),
	}
	m.Slug = DeriveSlug(raw, fb.Basename)
	m.MetaTitle = firstNonEmpty(String(raw, "meta_title"), m.Title)
	m.Status = status(raw)
	m.Visibility = visibility(String(raw, "visibility"))
	m.CanonicalURL = canonical(String(raw, "canonical_url"), fb.BaseURL)
	if _, ok := raw["upload_assets"]; ok {
		m.UploadAssets = Bool(raw, "upload_assets")
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate reports the first field the remote API would reject.
func (m *Meta) Validate() error {
	if err := validation.Validate(m.Type,
		validation.In(TypePost, TypePage).Error(fmt.Sprintf("Invalid type %q: must be %q or %q.", m.Type, TypePost, TypePage)),
	); err != nil {
		return &ConfigError{Field: "type", Message: err.Error()}
	}
	if err := validation.Validate(m.Excerpt,
		validation.RuneLength(0, MaxExcerpt).Error("Excerpt is too long. Max 300 characters."),
	); err != nil {
		return &ConfigError{Field: "excerpt", Message: err.Error()}
	}
	return nil
}

// DeriveSlug returns the explicit slug, else the title, else the basename,
// normalised to lowercase dash-separated form.
func DeriveSlug(raw map[string]any, basename string) string {
	return Slugify(firstNonEmpty(String(raw, "slug"), String(raw, "title"), basename))
}

var (
	spaceRun = regexp.MustCompile(`\s+`)
	dashRun  = regexp.MustCompile(`-{2,}`)
)

// Slugify lowercases s and joins its words with dashes.
func Slugify(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if normalized, err := slug.Normalize(s); err == nil && normalized != "" {
		return normalized
	}
	s = spaceRun.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(dashRun.ReplaceAllString(s, "-"), "-")
}

// String returns the first present key rendered as a trimmed string.
func String(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case time.Time:
			return t.Format(time.RFC3339)
		default:
			return fmt.Sprint(t)
		}
	}
	return ""
}

// Bool reads a YAML boolean, accepting quoted "true"/"yes" as well.
func Bool(raw map[string]any, key string) bool {
	switch t := raw[key].(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err == nil {
			return b
		}
		return strings.EqualFold(strings.TrimSpace(t), "yes")
	}
	return false
}

// List reads a YAML sequence or a comma separated string.
func List(raw map[string]any, key string) []string {
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "#"))
		if s != "" {
			out = append(out, s)
		}
	}
	switch t := raw[key].(type) {
	case []any:
		for _, item := range t {
			if item != nil {
				add(fmt.Sprint(item))
			}
		}
	case []string:
		for _, item := range t {
			add(item)
		}
	case string:
		for _, item := range strings.Split(t, ",") {
			add(item)
		}
	}
	return out
}

func status(raw map[string]any) string {
	switch s := strings.ToLower(String(raw, "status")); s {
	case StatusDraft, StatusPublished, StatusScheduled:
		return s
	}
	if Bool(raw, "published") {
		return StatusPublished
	}
	return StatusDraft
}

func visibility(v string) string {
	switch v = strings.ToLower(v); v {
	case VisibilityPublic, VisibilityMembers, VisibilityPaid, VisibilityTiers:
		return v
	}
	return VisibilityPublic
}

// month zero-pads the cached month so asset paths match the server layout.
func month(raw map[string]any) string {
	s := String(raw, "ghost-images-month", "images_month")
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 12 {
		return fmt.Sprintf("%02d", n)
	}
	return s
}

func canonical(u, base string) string {
	if u == "" || base == "" || !strings.HasPrefix(u, "/") {
		return u
	}
	return strings.TrimRight(base, "/") + u
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
