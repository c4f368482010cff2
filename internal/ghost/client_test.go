package ghost

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ghostwriter/internal/apperr"
	"github.com/starford/ghostwriter/internal/models"
)

const testKey = "64f0aa:0123456789abcdef0123456789abcdef"

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", testKey, "v5", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, srv
}

func TestParseAdminKey(t *testing.T) {
	k, err := ParseAdminKey(testKey)
	require.NoError(t, err)
	assert.Equal(t, "64f0aa", k.ID)
	assert.Len(t, k.Secret, 16)

	for _, bad := range []string{"", "nocolon", ":abcd", "id:", "id:zz"} {
		_, err := ParseAdminKey(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidConfig, bad)
	}
}

func TestToken_Claims(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	c, err := New("https://blog.test", testKey, "v5", WithClock(clockwork.NewFakeClockAt(now)))
	require.NoError(t, err)

	raw, err := c.Token()
	require.NoError(t, err)

	key, _ := ParseAdminKey(testKey)
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		return key.Secret, nil
	}, jwt.WithAudience("/v5/admin/"), jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)

	assert.Equal(t, "64f0aa", tok.Header["kid"])
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, now.Add(5*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestAudience(t *testing.T) {
	assert.Equal(t, "/v4/admin/", Audience("v4"))
	assert.Equal(t, "/admin/", Audience(""))
}

func TestFindBySlug(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ghost/api/v5/admin/pages/", r.URL.Path)
		assert.Equal(t, "slug:about", r.URL.Query().Get("filter"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Ghost "))
		assert.Equal(t, "v5.0", r.Header.Get("Accept-Version"))
		_, _ = io.WriteString(w, `{"pages":[{"id":"p1","slug":"about","updated_at":"2024-01-02T03:04:05.000Z"}]}`)
	})

	p, err := c.FindBySlug(t.Context(), KindPage, "about")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "2024-01-02T03:04:05.000Z", p.UpdatedAt)
}

func TestFindBySlug_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"posts":[],"meta":{"pagination":{"total":0}}}`)
	})

	_, err := c.FindBySlug(t.Context(), KindPost, "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreate(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ghost/api/v5/admin/posts/", r.URL.Path)
		assert.Equal(t, "html", r.URL.Query().Get("source"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string][]Post
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body["posts"], 1)
		assert.Equal(t, "Hello", body["posts"][0].Title)
		assert.Equal(t, []Tag{{Name: "go"}}, body["posts"][0].Tags)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"posts":[{"id":"n1","title":"Hello","status":"draft"}]}`)
	})

	p, err := c.Create(t.Context(), KindPost, Post{Title: "Hello", HTML: "<p>x</p>", Tags: []Tag{{Name: "go"}}})
	require.NoError(t, err)
	assert.Equal(t, "n1", p.ID)
	assert.Equal(t, "draft", p.Status)
}

func TestUpdate(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/ghost/api/v5/admin/posts/abc/", r.URL.Path)

		var body map[string][]Post
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2024-01-01T00:00:00.000Z", body["posts"][0].UpdatedAt)
		_, _ = io.WriteString(w, `{"posts":[{"id":"abc","status":"published"}]}`)
	})

	p, err := c.Update(t.Context(), KindPost, Post{ID: "abc", UpdatedAt: "2024-01-01T00:00:00.000Z"})
	require.NoError(t, err)
	assert.Equal(t, "published", p.Status)

	_, err = c.Update(t.Context(), KindPost, Post{})
	assert.Error(t, err)
}

func TestAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors":[{"message":"Validation error, cannot save post.","context":"Value in [posts.status] is invalid.","type":"ValidationError",`+
			`"details":[{"message":"must be equal to one of the allowed values","params":{"allowedValues":["published","draft","scheduled","sent"]}}]}]}`)
	})

	_, err := c.Create(t.Context(), KindPost, Post{Title: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "Value in [posts.status] is invalid. (must be equal to one of the allowed values - published, draft, scheduled, sent)", err.Error())
}

func TestAPIError_Sentinels(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, apperr.ErrUnauthorized},
		{http.StatusForbidden, apperr.ErrUnauthorized},
		{http.StatusConflict, apperr.ErrConflict},
		{http.StatusNotFound, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"errors":[{"message":"nope"}]}`)
			})
			_, err := c.Create(t.Context(), KindPost, Post{})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, "nope", err.Error())
		})
	}
}

func TestAPIError_NonJSONBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down\n")
	})
	_, err := c.FindBySlug(t.Context(), KindPost, "x")
	assert.EqualError(t, err, "upstream down")
}

func TestUpload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ghost/api/v5/admin/media/upload/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "media", r.FormValue("purpose"))
		assert.Equal(t, "trips-song.mp3", r.FormValue("ref"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "ID3", string(data))
		assert.Equal(t, "trips-song.mp3", hdr.Filename)
		assert.Equal(t, "audio/mpeg", hdr.Header.Get("Content-Type"))

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"media":[{"url":"https://blog.test/content/media/2024/03/trips-song.mp3","ref":"trips-song.mp3"}]}`)
	})

	u, err := c.Upload(t.Context(), models.AssetMedia, "trips-song.mp3", "audio/mpeg", strings.NewReader("ID3"))
	require.NoError(t, err)
	assert.Equal(t, "https://blog.test/content/media/2024/03/trips-song.mp3", u)
}

func TestFetchOEmbed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ghost/api/v5/admin/oembed/", r.URL.Path)
		assert.Equal(t, "https://example.com/a", r.URL.Query().Get("url"))
		assert.Equal(t, "bookmark", r.URL.Query().Get("type"))
		_, _ = io.WriteString(w, `{"type":"bookmark","url":"https://example.com/a","metadata":{"title":"A","publisher":"Ex"}}`)
	})

	o, err := c.FetchOEmbed(t.Context(), "https://example.com/a", OEmbedBookmark)
	require.NoError(t, err)
	assert.Equal(t, "A", o.Metadata.Title)
	assert.Equal(t, "Ex", o.Metadata.Publisher)
}

func TestEditorURLAndKind(t *testing.T) {
	c, err := New("https://blog.test/", testKey, "")
	require.NoError(t, err)

	assert.Equal(t, "https://blog.test/ghost/#/editor/page/42", c.EditorURL(KindPage, "42"))
	assert.Equal(t, "https://blog.test/ghost/api/admin/posts/", c.endpoint("posts", nil))
	assert.Equal(t, KindPage, KindFor("Page"))
	assert.Equal(t, KindPost, KindFor("post"))
	assert.Equal(t, KindPost, KindFor(""))
}
