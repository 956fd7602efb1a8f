// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes NeuralOS tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/neuralos/internal/apperr"
	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/noteservice"
	"github.com/starford/neuralos/internal/search"
	"github.com/starford/neuralos/internal/stats"
)

const formatURI = "neuralos://note-format"

// Server wraps the MCP server with NeuralOS tools.
type Server struct {
	mcp    *server.MCPServer
	notes  *noteservice.Service
	search *search.Service
	stats  *stats.Service
}

// New creates a new MCP server with all NeuralOS tools registered.
func New(notes *noteservice.Service, srch *search.Service, st *stats.Service, version string) *Server {
	s := &Server{notes: notes, search: srch, stats: st}

	s.mcp = server.NewMCPServer(
		"NeuralOS",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Semantic search over a user's notes. Returns an AI-written answer and the matching notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language question")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the notes")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes to retrieve (default 5)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note for a user. Read neuralos://note-format for the field conventions."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the note")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note body")),
		mcp.WithString("title", mcp.Description("Note title (default \"Untitled Note\")")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Read one note by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the note")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List a user's notes, newest first."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the notes")),
		mcp.WithString("filter_type", mcp.Description("all, favorites, archived or trash (default all)")),
		mcp.WithString("search", mcp.Description("Case-insensitive substring of title or content")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Dashboard summary for a user: note counts, weekly searches and the writing streak."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User to summarize")),
	), s.getStats)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Note Format",
			mcp.WithResourceDescription("What a note holds and how inbox Markdown files are read."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormat,
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
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := s.search.Search(ctx, query, userID, req.GetInt("limit", search.DefaultLimit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(answer), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.Create(ctx, noteservice.CreateInput{
		UserID:  userID,
		Title:   req.GetString("title", models.DefaultNoteTitle),
		Content: content,
		Tags:    req.GetStringSlice("tags", nil),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note), nil
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.Get(ctx, id, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found: " + id), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.notes.List(ctx, models.ListQuery{
		UserID:     userID,
		FilterType: req.GetString("filter_type", models.FilterAll),
		Search:     req.GetString("search", ""),
		Limit:      req.GetInt("limit", 50),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(notes), nil
}

func (s *Server) getStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.stats.Get(ctx, userID)), nil
}

func (s *Server) readNoteFormat(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatGuide,
		},
	}, nil
}
