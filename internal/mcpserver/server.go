// Package mcpserver provides an MCP (Model Context Protocol) server
// that lets assistants browse the vault and render or publish notes to
// Ghost over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ghostwriter/internal/index"
	"github.com/starford/ghostwriter/internal/noteservice"
	"github.com/starford/ghostwriter/internal/publish"
)

// SyntaxURI is the resource URI of the syntax guide.
const SyntaxURI = "ghostwriter://syntax"

// Notes answers note queries.
type Notes interface {
	GetNote(ctx context.Context, path string) (*noteservice.NoteDetail, error)
	ListNotes(ctx context.Context, limit, offset int, tag, sort string) ([]noteservice.NoteListItem, int, error)
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
	Backlinks(ctx context.Context, path string) ([]string, error)
}

// Publisher renders and publishes notes.
type Publisher interface {
	Render(ctx context.Context, path string) (*publish.Rendered, error)
	Publish(ctx context.Context, path string) (*publish.Result, error)
}

// Server wraps the MCP server with the ghostwriter tools.
type Server struct {
	mcp      *server.MCPServer
	notes    Notes
	pub      Publisher
	uploader Uploader
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithUploader enables the upload_asset tool.
func WithUploader(u Uploader) Option { return func(s *Server) { s.uploader = u } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New creates a new MCP server with all tools registered.
func New(notes Notes, pub Publisher, opts ...Option) *Server {
	s := &Server{notes: notes, pub: pub, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}

	s.mcp = server.NewMCPServer(
		"Ghostwriter",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the raw Markdown of a note, including its frontmatter."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List indexed notes with their slugs, optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Only notes carrying this tag")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes (default 50)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("render_note",
		mcp.WithDescription("Render a note to the Ghost HTML that publishing would send, without contacting Ghost. "+
			"Use it to check cards, callouts and links before publishing."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
	), s.renderNote)

	s.mcp.AddTool(mcp.NewTool("publish_note",
		mcp.WithDescription("Publish a note to Ghost. Creates the post or page when no entry with its slug exists, "+
			"updates it otherwise. Status and visibility come from the note's frontmatter."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
	), s.publishNote)

	s.mcp.AddTool(mcp.NewTool("get_syntax_guide",
		mcp.WithDescription("Returns the note syntax guide: frontmatter fields, links, embeds, callouts and cards. "+
			"Read it before drafting a note meant for publishing."),
	), s.getSyntaxGuide)

	if s.uploader != nil {
		s.mcp.AddTool(mcp.NewTool("upload_asset",
			mcp.WithDescription("Upload an image, PDF, MP3, MP4 or WebM file to Ghost from an http(s) URL "+
				"or a base64 data URI. Returns the hosted URL and a Markdown snippet to paste into a note."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data>")),
			mcp.WithString("filename", mcp.Description("Name to store the file under")),
		), s.uploadAsset)
	}

	s.mcp.AddResource(
		mcp.NewResource(SyntaxURI, "Note Syntax Guide",
			mcp.WithResourceDescription("Markdown syntax understood by the Ghost publisher."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.notes.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.GetNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)
	items, _, err := s.notes.ListNotes(ctx, limit, 0, req.GetString("tag", ""), "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, len(items))
	for i, n := range items {
		lines[i] = n.Path + "\t" + n.Slug
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.notes.Backlinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) renderNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.pub.Render(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(publish.FailureMessage(err)), nil
	}
	return mcp.NewToolResultText(out.HTML), nil
}

type publishResult struct {
	Slug      string `json:"slug"`
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Created   bool   `json:"created"`
	EditorURL string `json:"editorUrl"`
	Message   string `json:"message"`
}

func (s *Server) publishNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.pub.Publish(ctx, path)
	if err != nil {
		s.logger.Warn("mcp: publish failed", slog.String("path", path), slog.String("error", err.Error()))
		return mcp.NewToolResultError(publish.FailureMessage(err)), nil
	}
	return jsonResult(publishResult{
		Slug:      res.Meta.Slug,
		ID:        res.Post.ID,
		Kind:      res.Kind.Singular(),
		Status:    res.Post.Status,
		Created:   res.Created,
		EditorURL: res.EditorURL,
		Message:   res.Message,
	}), nil
}

func (s *Server) getSyntaxGuide(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SyntaxGuide), nil
}

func (s *Server) readSyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SyntaxURI,
			MIMEType: "text/markdown",
			Text:     SyntaxGuide,
		},
	}, nil
}
