// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the block session as tools over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/float/internal/apperr"
	"github.com/starford/float/internal/blockservice"
	"github.com/starford/float/internal/models"
	"github.com/starford/float/internal/termview"
)

// QueryGuideURI addresses the block guide resource.
const QueryGuideURI = "float://query-guide"

// Server wraps the MCP server with block tools.
type Server struct {
	mcp *server.MCPServer
	svc *blockservice.Service
}

// New creates a new MCP server with all block tools registered.
func New(svc *blockservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Float",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List every block in the session in creation order."),
	), s.listBlocks)

	s.mcp.AddTool(mcp.NewTool("read_tree",
		mcp.WithDescription("Render the block tree as an indented outline."),
		mcp.WithString("from", mcp.Description("Block id to start from (default root)")),
	), s.readTree)

	s.mcp.AddTool(mcp.NewTool("create_block",
		mcp.WithDescription("Append a new block under a parent. Query and dispatch blocks start from a template. "+
			"Read the float://query-guide resource for block types and limits."),
		mcp.WithString("type", mcp.Required(), mcp.Enum("text", "query", "dispatch"), mcp.Description("Block type")),
		mcp.WithString("parent_id", mcp.Description("Parent block id (default root)")),
	), s.createBlock)

	s.mcp.AddTool(mcp.NewTool("update_block",
		mcp.WithDescription("Replace the content of a block. Content over the block's limit is rejected."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Block id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New content")),
		mcp.WithString("version", mcp.Description("Expected current version; the update fails if it changed")),
	), s.updateBlock)

	s.mcp.AddTool(mcp.NewTool("inject_node",
		mcp.WithDescription("Add a context block for a reference node at the top of the root block."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Reference node id")),
	), s.injectNode)

	s.mcp.AddTool(mcp.NewTool("execute_block",
		mcp.WithDescription("Run a query or dispatch block against the provider and return the block with its result."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Block id")),
	), s.executeBlock)

	s.mcp.AddTool(mcp.NewTool("search_blocks",
		mcp.WithDescription("Find blocks whose content or id contains the query (case-insensitive)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), s.searchBlocks)

	s.mcp.AddTool(mcp.NewTool("list_nodes",
		mcp.WithDescription("List the read-only reference nodes that can be injected."),
	), s.listNodes)

	s.mcp.AddResource(
		mcp.NewResource(QueryGuideURI, "Block Guide",
			mcp.WithResourceDescription("Block types, inline markup and execution results."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readQueryGuide,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns a domain error into a tool-level error message.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrContentTooLong),
		errors.Is(err, apperr.ErrInvalidType),
		errors.Is(err, apperr.ErrNotExecutable),
		errors.Is(err, apperr.ErrInFlight),
		errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("rejected: " + err.Error())
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

type blockSummary struct {
	ID       string           `json:"id"`
	Type     models.BlockType `json:"type"`
	ParentID string           `json:"parentId,omitempty"`
	Content  string           `json:"content"`
	Version  string           `json:"version"`
}

func (s *Server) listBlocks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := s.svc.List(ctx)
	out := make([]blockSummary, len(all))
	for i, b := range all {
		out[i] = blockSummary{ID: b.ID, Type: b.Type, ParentID: b.ParentID, Content: b.Content, Version: b.Version}
	}
	return jsonResult(out)
}

func (s *Server) readTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from := req.GetString("from", models.RootID)
	if _, err := s.svc.Get(ctx, from); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(termview.Render(s.svc.Entries(from))), nil
}

func (s *Server) createBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent := req.GetString("parent_id", models.RootID)
	d, err := s.svc.Create(ctx, parent, models.BlockType(typ))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(d)
}

func (s *Server) updateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Update(ctx, id, content, req.GetString("version", ""))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (version %s)", d.ID, d.Version)), nil
}

func (s *Server) injectNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Inject(ctx, nodeID)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(d)
}

func (s *Server) executeBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Execute(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"id":      d.ID,
		"result":  d.Result,
		"error":   d.Error,
		"lastRun": d.LastRun,
	})
}

func (s *Server) searchBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits := s.svc.Search(ctx, query)
	out := make([]blockSummary, len(hits))
	for i, b := range hits {
		out[i] = blockSummary{ID: b.ID, Type: b.Type, ParentID: b.ParentID, Content: b.Content, Version: b.Version}
	}
	return jsonResult(out)
}

func (s *Server) listNodes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Nodes(ctx))
}

func (s *Server) readQueryGuide(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      QueryGuideURI,
			MIMEType: "text/markdown",
			Text:     QueryGuide,
		},
	}, nil
}
