package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ghostwriter/internal/index"
	"github.com/starford/ghostwriter/internal/models"
	"github.com/starford/ghostwriter/internal/noteservice"
	"github.com/starford/ghostwriter/internal/publish"
)

// Notes answers note queries.
type Notes interface {
	GetNote(ctx context.Context, path string) (*noteservice.NoteDetail, error)
	ListNotes(ctx context.Context, limit, offset int, tag, sort string) ([]noteservice.NoteListItem, int, error)
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
	Publications(ctx context.Context, path string, limit int) ([]models.Publication, error)
}

// Publisher renders and publishes notes.
type Publisher interface {
	Render(ctx context.Context, path string) (*publish.Rendered, error)
	Publish(ctx context.Context, path string) (*publish.Result, error)
}

// Handler holds API route handlers.
type Handler struct {
	notes Notes
	pub   Publisher
}

// NewHandler creates a new Handler.
func NewHandler(notes Notes, pub Publisher) *Handler {
	return &Handler{notes: notes, pub: pub}
}

// notePath extracts the note path from the wildcard segment.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List indexed notes with optional pagination and filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated, title, path)
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.notes.ListNotes(r.Context(), limit, offset, q.Get("tag"), q.Get("sort"))
	if err != nil {
		writeError(w, "list notes", "", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note with backlinks and publish history
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeFail(w, http.StatusBadRequest, CodeBadRequest, "path is required")
		return
	}
	note, err := h.notes.GetNote(r.Context(), path)
	if err != nil {
		writeError(w, "get note", path, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			notes
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeFail(w, http.StatusBadRequest, CodeBadRequest, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.notes.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", "", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Render handles GET /api/render/*.
//
//	@Summary		Render a note to Ghost HTML without publishing
//	@Tags			publish
//	@Produce		json,html
//	@Param			path	path		string	true	"Note path"
//	@Param			format	query		string	false	"html for the bare document"
//	@Success		200		{object}	RenderResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render/{path} [get]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeFail(w, http.StatusBadRequest, CodeBadRequest, "path is required")
		return
	}
	out, err := h.pub.Render(r.Context(), path)
	if err != nil {
		writeError(w, "render", path, err)
		return
	}
	if r.URL.Query().Get("format") == "html" {
		writeHTML(w, out.HTML)
		return
	}
	writeJSON(w, http.StatusOK, RenderResponse{Path: path, Meta: out.Meta, HTML: out.HTML})
}

// Publish handles POST /api/publish/*.
//
//	@Summary		Publish a note as a Ghost post or page
//	@Tags			publish
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	PublishResponse
//	@Success		201		{object}	PublishResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/publish/{path} [post]
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeFail(w, http.StatusBadRequest, CodeBadRequest, "path is required")
		return
	}
	res, err := h.pub.Publish(r.Context(), path)
	if err != nil {
		writeError(w, "publish", path, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, PublishResponse{
		Path:      path,
		Slug:      res.Meta.Slug,
		ID:        res.Post.ID,
		Kind:      res.Kind.Singular(),
		Status:    res.Post.Status,
		Created:   res.Created,
		EditorURL: res.EditorURL,
		Message:   res.Message,
	})
}

// Publications handles GET /api/publications.
//
//	@Summary		Publish history, newest first
//	@Tags			publish
//	@Produce		json
//	@Param			path	query		string	false	"Restrict to one note"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	PublicationsResponse
//	@Security		BearerAuth
//	@Router			/publications [get]
func (h *Handler) Publications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	pubs, err := h.notes.Publications(r.Context(), q.Get("path"), limit)
	if err != nil {
		writeError(w, "publications", q.Get("path"), err)
		return
	}
	writeJSON(w, http.StatusOK, PublicationsResponse{Publications: pubs})
}
