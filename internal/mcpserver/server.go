// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the Weft link index for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/weft/internal/docservice"
	"github.com/starford/weft/internal/index"
	"github.com/starford/weft/internal/models"
)

const linkFormatURI = "weft://link-format"

// Server wraps the MCP server with Weft tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *docservice.Service
	linker *index.Linker
}

// New creates a new MCP server with all Weft tools registered.
func New(svc *docservice.Service, linker *index.Linker) *Server {
	s := &Server{svc: svc, linker: linker}

	s.mcp = server.NewMCPServer(
		"Weft",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("links_of",
		mcp.WithDescription("List the documents a document links to and the documents that reference it, grouped by kind."),
		mcp.WithString("uuid", mcp.Required(), mcp.Description("Document UUID")),
	), s.linksOf)

	s.mcp.AddTool(mcp.NewTool("resolve_document",
		mcp.WithDescription("Resolve a document UUID to its current location, title, breadcrumb and href."),
		mcp.WithString("uuid", mcp.Required(), mcp.Description("Document UUID")),
	), s.resolveDocument)

	s.mcp.AddTool(mcp.NewTool("is_linked",
		mcp.WithDescription("Report whether two documents are linked in either direction."),
		mcp.WithString("a", mcp.Required(), mcp.Description("First document UUID")),
		mcp.WithString("b", mcp.Required(), mcp.Description("Second document UUID")),
	), s.isLinked)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Recompute the link index from the corpus and return the rebuild stats."),
		mcp.WithString("owner", mcp.Description("Optional owner to restrict the rebuild to")),
	), s.rebuildIndex)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full content of a note or checklist by UUID."),
		mcp.WithString("uuid", mcp.Required(), mcp.Description("Document UUID")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a note or checklist. Link to other documents with stable markers; "+
			"read the "+linkFormatURI+" resource first."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("note or checklist")),
		mcp.WithString("owner", mcp.Required(), mcp.Description("Owning user")),
		mcp.WithString("category", mcp.Description("Category path, e.g. work/notes")),
		mcp.WithString("slug", mcp.Required(), mcp.Description("File name without extension")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
	), s.createDocument)

	// Resource: link format contract.
	s.mcp.AddResource(
		mcp.NewResource(linkFormatURI, "Link Format",
			mcp.WithResourceDescription("How documents reference each other by UUID or legacy path."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkFormatResource,
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

func requireUUID(req mcp.CallToolRequest, key string) (uuid.UUID, error) {
	raw, err := req.RequireString(key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) linksOf(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireUUID(req, "uuid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.linker.LinksOf(id)), nil
}

func (s *Server) resolveDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireUUID(req, "uuid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, ok := s.linker.Resolve(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(res), nil
}

func (s *Server) isLinked(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := requireUUID(req, "a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := requireUUID(req, "b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]bool{"linked": s.linker.IsLinked(a, b)}), nil
}

func (s *Server) rebuildIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var scope models.Scope
	if owner, err := req.RequireString("owner"); err == nil {
		scope.Owner = strings.TrimSpace(owner)
	}
	st, err := s.linker.Rebuild(ctx, scope)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireUUID(req, "uuid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(doc.Content), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawKind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := models.ParseKind(rawKind)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var loc models.Location
	if loc.Owner, err = req.RequireString("owner"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if loc.Slug, err = req.RequireString("slug"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if c, cErr := req.RequireString("category"); cErr == nil {
		loc.Category = c
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.svc.Create(ctx, kind, loc, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s %s at %s", doc.Kind, doc.UUID, doc.Location)), nil
}

func (s *Server) readLinkFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      linkFormatURI,
			MIMEType: "text/markdown",
			Text:     LinkFormatContract(s.linker.Scheme()),
		},
	}, nil
}
