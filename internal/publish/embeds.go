package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/ghostwriter/internal/ghost"
	"github.com/starford/ghostwriter/internal/render"
)

// OEmbedClient is the site's oEmbed proxy.
type OEmbedClient interface {
	FetchOEmbed(ctx context.Context, rawURL string, typ ghost.OEmbedType) (ghost.OEmbed, error)
}

// Embeds adapts the oEmbed proxy to the enrichment stage.
type Embeds struct {
	Client OEmbedClient
	// Timeout bounds each fetch when positive.
	Timeout time.Duration
}

func (e Embeds) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Timeout > 0 {
		return context.WithTimeout(ctx, e.Timeout)
	}
	return ctx, func() {}
}

// FetchEmbed returns the rich embed markup for rawURL.
func (e Embeds) FetchEmbed(ctx context.Context, rawURL string) (render.Embed, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	o, err := e.Client.FetchOEmbed(ctx, rawURL, ghost.OEmbedEmbed)
	if err != nil {
		return render.Embed{}, err
	}
	if strings.TrimSpace(o.HTML) == "" {
		return render.Embed{}, fmt.Errorf("oembed %s: no embed html", rawURL)
	}
	return render.Embed{HTML: o.HTML, Title: o.Title}, nil
}

// FetchBookmark returns link preview metadata for rawURL.
func (e Embeds) FetchBookmark(ctx context.Context, rawURL string) (render.Bookmark, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	o, err := e.Client.FetchOEmbed(ctx, rawURL, ghost.OEmbedBookmark)
	if err != nil {
		return render.Bookmark{}, err
	}
	m := o.Metadata
	u := m.URL
	if u == "" {
		u = rawURL
	}
	return render.Bookmark{
		URL:         u,
		Title:       m.Title,
		Description: m.Description,
		Icon:        m.Icon,
		Thumbnail:   m.Thumbnail,
		Author:      m.Author,
		Publisher:   m.Publisher,
	}, nil
}
