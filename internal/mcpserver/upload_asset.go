package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ghostwriter/internal/frontmatter"
	"github.com/starford/ghostwriter/internal/models"
	"github.com/starford/ghostwriter/internal/upload"
)

const maxAssetSize = 10 << 20

// acceptedTypes are the MIME types upload_asset forwards to Ghost, keyed to
// the extension used when the caller gives no filename.
var acceptedTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"application/pdf": ".pdf",
	"audio/mpeg":      ".mp3",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
}

// Uploader stores a file on the Ghost site and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, kind models.AssetKind, name, contentType string, r io.Reader) (string, error)
}

type uploadResult struct {
	URL      string           `json:"url"`
	Kind     models.AssetKind `json:"kind"`
	Markdown string           `json:"markdown"`
}

// payload is a fetched or decoded file before validation.
type payload struct {
	data []byte
	// declared is the MIME type named by the data URI or response header.
	declared string
	// name is the last path element of the source URL, if any.
	name string
}

func (s *Server) uploadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var p *payload
	if strings.HasPrefix(src, "data:") {
		p, err = decodeDataURI(src)
	} else {
		p, err = s.download(ctx, src)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := req.GetString("filename", p.name)
	ct, err := verifyContent(p, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name = assetFilename(name, ct)

	kind := upload.KindFor(ct)
	hosted, err := s.uploader.Upload(ctx, kind, name, ct, bytes.NewReader(p.data))
	if err != nil {
		s.logger.Warn("mcp: upload failed", slog.String("name", name), slog.String("error", err.Error()))
		return mcp.NewToolResultError(fmt.Sprintf("upload failed: %v", err)), nil
	}
	s.logger.Info("mcp: uploaded", slog.String("name", name), slog.String("url", hosted))

	md := fmt.Sprintf("[%s](%s)", name, hosted)
	if kind == models.AssetImage {
		md = "!" + md
	}
	return jsonResult(uploadResult{URL: hosted, Kind: kind, Markdown: md}), nil
}

// decodeDataURI accepts data:<mime>;base64,<payload> only.
func decodeDataURI(uri string) (*payload, error) {
	header, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errors.New("invalid data URI: missing comma")
	}
	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, errors.New("only base64 data URIs are supported")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > maxAssetSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", len(data), maxAssetSize)
	}
	mt, _, _ := mime.ParseMediaType(mediaType)
	return &payload{data: data, declared: mt}, nil
}

// download fetches an http(s) URL. Hosts resolving to loopback, link-local
// or unspecified addresses are refused, on the first request and on every
// redirect.
func (s *Server) download(ctx context.Context, raw string) (*payload, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q (want http or https)", u.Scheme)
	}
	if err := refuseInternal(ctx, u.Hostname()); err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return refuseInternal(r.Context(), r.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if len(data) > maxAssetSize {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", maxAssetSize)
	}
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	var name string
	if base := path.Base(resp.Request.URL.Path); strings.Contains(base, ".") {
		name = base
	}
	return &payload{data: data, declared: mt, name: name}, nil
}

func refuseInternal(ctx context.Context, host string) error {
	if host == "" || strings.EqualFold(host, "localhost") || host == "metadata.google.internal" {
		return fmt.Errorf("blocked host %q", host)
	}
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			// Resolution errors surface from the request itself.
			return nil
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}
	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("blocked host %q (%s)", host, ip)
		}
	}
	return nil
}

// verifyContent sniffs the payload and checks it against the declared type
// and the filename extension. It returns the MIME type to upload with.
func verifyContent(p *payload, name string) (string, error) {
	byName := ""
	if name != "" {
		byName = upload.ContentType(name, nil)
		if _, ok := acceptedTypes[byName]; !ok {
			return "", fmt.Errorf("unsupported file type %q for %s", byName, name)
		}
	}

	sniffed := sniff(p.data)
	if _, ok := acceptedTypes[sniffed]; !ok {
		return "", fmt.Errorf("unsupported content: detected %s", sniffed)
	}
	for _, claimed := range []string{p.declared, byName} {
		if claimed != "" && claimed != sniffed {
			return "", fmt.Errorf("content is %s but was declared as %s", sniffed, claimed)
		}
	}
	return sniffed, nil
}

// sniff extends http.DetectContentType with SVG, which it reports as text.
func sniff(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "text/") {
		head := data[:min(len(data), 1024)]
		if bytes.Contains(head, []byte("<svg")) {
			return "image/svg+xml"
		}
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	return mt
}

// assetFilename normalises name to a slug plus extension, inventing one
// from a UUID when name is empty.
func assetFilename(name, contentType string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		ext = acceptedTypes[contentType]
	}
	base := frontmatter.Slugify(strings.TrimSuffix(path.Base(name), path.Ext(name)))
	if base == "" {
		base = uuid.NewString()
	}
	return base + ext
}
