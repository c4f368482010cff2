package api

import (
	"github.com/starford/ghostwriter/internal/frontmatter"
	"github.com/starford/ghostwriter/internal/index"
	"github.com/starford/ghostwriter/internal/models"
	"github.com/starford/ghostwriter/internal/noteservice"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// RenderResponse is a rendered note.
type RenderResponse struct {
	Path string            `json:"path" example:"notes/hello.md" validate:"required"`
	Meta *frontmatter.Meta `json:"meta" validate:"required"`
	HTML string            `json:"html" example:"<p>Hello</p>" validate:"required"`
}

// PublishResponse describes a finished publish.
type PublishResponse struct {
	Path      string `json:"path" example:"notes/hello.md" validate:"required"`
	Slug      string `json:"slug" example:"hello" validate:"required"`
	ID        string `json:"id" example:"65f0c2a1e4b0" validate:"required"`
	Kind      string `json:"kind" example:"post" validate:"required"`
	Status    string `json:"status" example:"draft" validate:"required"`
	Created   bool   `json:"created"`
	EditorURL string `json:"editor_url" example:"https://blog.example.com/ghost/#/editor/post/65f0c2a1e4b0"`
	Message   string `json:"message" example:"\"Hello\" has been draft successfully!"`
}

// PublicationsResponse wraps publish history.
type PublicationsResponse struct {
	Publications []models.Publication `json:"publications" validate:"required"`
}
