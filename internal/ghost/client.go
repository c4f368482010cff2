// Package ghost is a small client for the Ghost Admin API: posts and pages,
// asset uploads and the oEmbed proxy.
package ghost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/starford/ghostwriter/internal/apperr"
	"github.com/starford/ghostwriter/internal/models"
)

// DefaultVersion is the Admin API version used when none is configured.
const DefaultVersion = "v4"

// Kind is the resource a note is published as.
type Kind string

const (
	KindPost Kind = "posts"
	KindPage Kind = "pages"
)

// KindFor maps a frontmatter type ("post" or "page") to its resource.
func KindFor(typ string) Kind {
	if strings.EqualFold(typ, "page") {
		return KindPage
	}
	return KindPost
}

// Singular returns "post" or "page".
func (k Kind) Singular() string { return strings.TrimSuffix(string(k), "s") }

// Tag is a post tag referenced by name.
type Tag struct {
	Name string `json:"name"`
}

// Post is the subset of the post/page resource the publisher reads and writes.
type Post struct {
	ID                  string `json:"id,omitempty"`
	UUID                string `json:"uuid,omitempty"`
	Title               string `json:"title,omitempty"`
	Slug                string `json:"slug,omitempty"`
	HTML                string `json:"html,omitempty"`
	Status              string `json:"status,omitempty"`
	Visibility          string `json:"visibility,omitempty"`
	Featured            bool   `json:"featured"`
	Tags                []Tag  `json:"tags,omitempty"`
	CustomExcerpt       string `json:"custom_excerpt,omitempty"`
	CanonicalURL        string `json:"canonical_url,omitempty"`
	MetaTitle           string `json:"meta_title,omitempty"`
	MetaDescription     string `json:"meta_description,omitempty"`
	FeatureImage        string `json:"feature_image,omitempty"`
	FeatureImageAlt     string `json:"feature_image_alt,omitempty"`
	FeatureImageCaption string `json:"feature_image_caption,omitempty"`
	UpdatedAt           string `json:"updated_at,omitempty"`
	PublishedAt         string `json:"published_at,omitempty"`
	URL                 string `json:"url,omitempty"`
}

// Payload wraps a post in the envelope the API expects: {"posts": [post]}.
func Payload(kind Kind, p Post) map[string][]Post {
	return map[string][]Post{string(kind): {p}}
}

// OEmbed is the oEmbed proxy response. Bookmarks carry Metadata; rich
// embeds carry HTML.
type OEmbed struct {
	Type     string           `json:"type"`
	URL      string           `json:"url"`
	Title    string           `json:"title"`
	HTML     string           `json:"html"`
	Metadata BookmarkMetadata `json:"metadata"`
}

// BookmarkMetadata is the link preview data returned for type=bookmark.
type BookmarkMetadata struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	Thumbnail   string `json:"thumbnail"`
	Icon        string `json:"icon"`
}

// Client talks to one Ghost site.
type Client struct {
	site    string
	key     AdminKey
	version string
	http    *http.Client
	clock   clockwork.Clock
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithClock sets the clock used for token timestamps.
func WithClock(clock clockwork.Clock) Option { return func(c *Client) { c.clock = clock } }

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// New creates a client for siteURL authenticating with an "id:secret" key.
func New(siteURL, adminKey, version string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(siteURL) == "" {
		return nil, fmt.Errorf("%w: ghost url is required", apperr.ErrInvalidConfig)
	}
	key, err := ParseAdminKey(adminKey)
	if err != nil {
		return nil, err
	}
	c := &Client{
		site:    strings.TrimRight(siteURL, "/"),
		key:     key,
		version: version,
		http:    &http.Client{Timeout: 30 * time.Second},
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// SiteURL returns the configured site root without a trailing slash.
func (c *Client) SiteURL() string { return c.site }

// EditorURL is the admin editor page for a published resource.
func (c *Client) EditorURL(kind Kind, id string) string {
	return fmt.Sprintf("%s/ghost/#/editor/%s/%s", c.site, kind.Singular(), id)
}

// Token signs a fresh Admin API token.
func (c *Client) Token() (string, error) {
	return c.key.Sign(c.version, c.clock.Now())
}

// endpoint builds {site}/ghost/api/{version}/admin/{path}/ with query q.
func (c *Client) endpoint(path string, q url.Values) string {
	base := c.site + "/ghost/api/"
	if c.version != "" {
		base += c.version + "/"
	}
	u := base + "admin/" + strings.Trim(path, "/") + "/"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Request, error) {
	token, err := c.Token()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("ghost: build request: %w", err)
	}
	req.Header.Set("Authorization", "Ghost "+token)
	req.Header.Set("Accept", "application/json")
	if c.version != "" {
		req.Header.Set("Accept-Version", c.version+".0")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. Other statuses are
// returned as *APIError.
func (c *Client) do(req *http.Request, out any) error {
	start := c.clock.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ghost: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("ghost: request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", c.clock.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return decodeAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ghost: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader = http.NoBody
	contentType := ""
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ghost: encode body: %w", err)
		}
		body, contentType = bytes.NewReader(buf), "application/json"
	}
	req, err := c.newRequest(ctx, method, endpoint, body, contentType)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// FindBySlug returns the resource with the given slug, or apperr.ErrNotFound
// when the filter matches nothing.
func (c *Client) FindBySlug(ctx context.Context, kind Kind, slug string) (*Post, error) {
	q := url.Values{}
	q.Set("filter", "slug:"+slug)
	q.Set("formats", "html")
	var resp map[string][]Post
	if err := c.sendJSON(ctx, http.MethodGet, c.endpoint(string(kind), q), nil, &resp); err != nil {
		return nil, err
	}
	if found := resp[string(kind)]; len(found) > 0 {
		return &found[0], nil
	}
	return nil, fmt.Errorf("ghost: %s %q: %w", kind.Singular(), slug, apperr.ErrNotFound)
}

// Create publishes a new resource from HTML.
func (c *Client) Create(ctx context.Context, kind Kind, p Post) (*Post, error) {
	q := url.Values{"source": {"html"}}
	return c.write(ctx, http.MethodPost, c.endpoint(string(kind), q), kind, p)
}

// Update replaces an existing resource. p.ID and p.UpdatedAt must come from
// the current remote copy.
func (c *Client) Update(ctx context.Context, kind Kind, p Post) (*Post, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("ghost: update %s: missing id", kind.Singular())
	}
	q := url.Values{"source": {"html"}}
	return c.write(ctx, http.MethodPut, c.endpoint(string(kind)+"/"+p.ID, q), kind, p)
}

func (c *Client) write(ctx context.Context, method, endpoint string, kind Kind, p Post) (*Post, error) {
	var resp map[string][]Post
	if err := c.sendJSON(ctx, method, endpoint, Payload(kind, p), &resp); err != nil {
		return nil, err
	}
	out := resp[string(kind)]
	if len(out) == 0 {
		return nil, fmt.Errorf("ghost: %s response has no %s", method, kind)
	}
	return &out[0], nil
}

// UploadPurpose is the "purpose" form field sent with an upload.
func UploadPurpose(kind models.AssetKind) string {
	switch kind {
	case models.AssetMedia:
		return "media"
	case models.AssetFile:
		return "file"
	default:
		return "image"
	}
}

// Upload posts a file to the images, media or files endpoint and returns
// the public URL Ghost assigned.
func (c *Client) Upload(ctx context.Context, kind models.AssetKind, name, contentType string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, strings.ReplaceAll(name, `"`, "")))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("ghost: upload %s: %w", name, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("ghost: upload %s: read: %w", name, err)
	}
	if err := w.WriteField("purpose", UploadPurpose(kind)); err != nil {
		return "", err
	}
	if err := w.WriteField("ref", name); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(string(kind)+"/upload", nil), &buf, w.FormDataContentType())
	if err != nil {
		return "", err
	}
	var resp map[string][]struct {
		URL string `json:"url"`
		Ref string `json:"ref"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if out := resp[string(kind)]; len(out) > 0 {
		return out[0].URL, nil
	}
	return "", fmt.Errorf("ghost: upload %s: empty response", name)
}

// OEmbedType selects what the proxy returns.
type OEmbedType string

const (
	OEmbedEmbed    OEmbedType = "embed"
	OEmbedBookmark OEmbedType = "bookmark"
)

// FetchOEmbed asks the site's oEmbed proxy about rawURL.
func (c *Client) FetchOEmbed(ctx context.Context, rawURL string, typ OEmbedType) (OEmbed, error) {
	q := url.Values{}
	q.Set("url", rawURL)
	q.Set("type", string(typ))
	var out OEmbed
	if err := c.sendJSON(ctx, http.MethodGet, c.endpoint("oembed", q), nil, &out); err != nil {
		return OEmbed{}, err
	}
	return out, nil
}
