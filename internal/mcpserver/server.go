// Package mcpserver exposes the character catalog as MCP (Model Context
// Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/roster/internal/apperr"
	"github.com/starford/roster/internal/catalog"
	"github.com/starford/roster/internal/models"
	"github.com/starford/roster/internal/thumbnail"
)

// FormatResourceURI is the resource holding CharacterFormatContract.
const FormatResourceURI = "roster://character-format"

// Server wraps the MCP server with catalog tools.
type Server struct {
	mcp    *server.MCPServer
	engine *catalog.Engine
	thumbs thumbnail.Resolver
}

// New creates an MCP server with all catalog tools registered.
func New(engine *catalog.Engine, thumbs thumbnail.Resolver, version string) *Server {
	s := &Server{engine: engine, thumbs: thumbs}

	s.mcp = server.NewMCPServer(
		"Roster",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_characters",
		mcp.WithDescription("List one page of characters. Locally created or edited characters come first, "+
			"followed by characters from the remote catalog."),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		mcp.WithNumber("limit", mcp.Description("Page size (default from configuration)")),
	), s.listCharacters)

	s.mcp.AddTool(mcp.NewTool("search_characters",
		mcp.WithDescription("Search characters by name. Remote results match the name prefix; "+
			"local results match anywhere in the name."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Name to search for")),
		mcp.WithNumber("limit", mcp.Description("Maximum results")),
	), s.searchCharacters)

	s.mcp.AddTool(mcp.NewTool("get_character",
		mcp.WithDescription("Get one character by id, including its image URL."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Character id (local ids are negative)")),
	), s.getCharacter)

	s.mcp.AddTool(mcp.NewTool("create_character",
		mcp.WithDescription("Create a local character. Read the format first via get_character_format "+
			"or the "+FormatResourceURI+" resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name, at most 200 characters")),
		mcp.WithString("description", mcp.Description("Free text, at most 5000 characters")),
		mcp.WithString("thumbnail_path", mcp.Description("Image URL without extension")),
		mcp.WithString("thumbnail_extension", mcp.Description("Image extension: jpg, jpeg, png, gif or webp")),
	), s.createCharacter)

	s.mcp.AddTool(mcp.NewTool("delete_character",
		mcp.WithDescription("Delete a character. Remote characters are hidden locally; the remote catalog is never changed."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Character id")),
	), s.deleteCharacter)

	s.mcp.AddTool(mcp.NewTool("export_local_characters",
		mcp.WithDescription("Export every locally stored character as a JSON array."),
	), s.exportLocal)

	s.mcp.AddTool(mcp.NewTool("get_character_format",
		mcp.WithDescription("Returns the character format contract. Call this before creating characters."),
	), s.getFormat)

	s.mcp.AddResource(
		mcp.NewResource(FormatResourceURI, "Character Format Contract",
			mcp.WithResourceDescription("Fields, limits and id rules for catalog characters."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

type characterView struct {
	models.Character
	ThumbnailURL string `json:"thumbnailUrl"`
}

type pageView struct {
	Characters []characterView `json:"characters"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	TotalPages int             `json:"totalPages"`
	HasMore    bool            `json:"hasMore"`
	Notice     string          `json:"notice,omitempty"`
}

func (s *Server) view(c models.Character) characterView {
	return characterView{Character: c, ThumbnailURL: s.thumbs.URL(c.Thumbnail)}
}

func (s *Server) pageResult(st catalog.State) (*mcp.CallToolResult, error) {
	out := pageView{
		Characters: make([]characterView, 0, len(st.Records)),
		Total:      st.Pagination.Total,
		Page:       st.Pagination.CurrentPage(),
		TotalPages: st.Pagination.TotalPages(),
		HasMore:    st.Pagination.HasMore(),
		Notice:     st.Error,
	}
	for _, c := range st.Records {
		out.Characters = append(out.Characters, s.view(c))
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrRemoteUnavailable):
		return mcp.NewToolResultError("remote catalog unavailable, try again later")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listCharacters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.engine.ClearSearch()
	s.engine.SetLimit(req.GetInt("limit", 0))
	s.engine.GoToPage(req.GetInt("page", 1))
	return s.pageResult(s.engine.LoadPage(ctx))
}

func (s *Server) searchCharacters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.engine.SetLimit(req.GetInt("limit", 0))
	s.engine.SetSearchTerm(query)
	return s.pageResult(s.engine.LoadPage(ctx))
}

func (s *Server) getCharacter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.engine.Get(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(s.view(c))
}

func (s *Server) createCharacter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	draft := models.Character{
		Name:        name,
		Description: req.GetString("description", ""),
	}
	if p := req.GetString("thumbnail_path", ""); p != "" {
		draft.Thumbnail = &models.Thumbnail{Path: p, Extension: req.GetString("thumbnail_extension", "")}
	}

	c, out, err := s.engine.Create(ctx, draft)
	if err != nil {
		return errorResult(err), nil
	}
	if out.Warning != "" {
		return mcp.NewToolResultText(fmt.Sprintf("created %d (not saved: %s)", c.ID, out.Warning)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %d", c.ID)), nil
}

func (s *Server) deleteCharacter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.engine.Delete(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	if out.Warning != "" {
		return mcp.NewToolResultText(fmt.Sprintf("deleted %d (not saved: %s)", id, out.Warning)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
}

func (s *Server) exportLocal(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.engine.Export()
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CharacterFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatResourceURI,
			MIMEType: "text/markdown",
			Text:     CharacterFormatContract,
		},
	}, nil
}
