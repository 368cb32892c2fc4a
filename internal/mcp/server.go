// Package mcp exposes the memory store and the orchestrator over the
// Model Context Protocol so external assistants can search seller memory
// and run analytics queries.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/venikman/sellerpilot/internal/agent"
	"github.com/venikman/sellerpilot/internal/memory"
)

// Server wires sellerpilot tools into an MCP stdio server.
type Server struct {
	store  *memory.Store
	orch   *agent.Orchestrator
	userID string
}

// NewServer creates the MCP surface over an open store and orchestrator.
func NewServer(store *memory.Store, orch *agent.Orchestrator, userID string) *Server {
	return &Server{store: store, orch: orch, userID: userID}
}

// Serve runs the stdio MCP server until the client disconnects.
func (s *Server) Serve(version string) error {
	srv := server.NewMCPServer("sellerpilot", version)

	srv.AddTool(mcp.NewTool("memory_search",
		mcp.WithDescription("Full-text search over stored seller-analytics memory."),
		mcp.WithString("query", mcp.Required(), mcp.Description("FTS query text")),
		mcp.WithString("kind", mcp.Description("Optional memory kind filter")),
	), s.handleMemorySearch)

	srv.AddTool(mcp.NewTool("memory_stats",
		mcp.WithDescription("Memory item counts grouped by scope and kind."),
	), s.handleMemoryStats)

	srv.AddTool(mcp.NewTool("run_query",
		mcp.WithDescription("Run one analytics question through the orchestrator."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language analytics question")),
		mcp.WithString("mode", mcp.Description("Memory mode: baseline, read, readwrite, readwrite_cache")),
	), s.handleRunQuery)

	return server.ServeStdio(srv)
}

func (s *Server) handleMemorySearch(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	var kinds []memory.Kind
	if k := req.GetString("kind", ""); k != "" {
		kind := memory.Kind(k)
		if !memory.ValidKind(kind) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid kind %q", k)), nil
		}
		kinds = append(kinds, kind)
	}

	hits, err := s.store.SearchMemory(memory.SearchParams{
		Query:  query,
		Scopes: []string{memory.GlobalScope, memory.UserScope(s.userID)},
		Kinds:  kinds,
		Limit:  10,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	var sb strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&sb, "[%s] (%s) %s\n", h.Kind, h.Scope, h.Text)
	}
	if sb.Len() == 0 {
		sb.WriteString("no matching memory items")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleMemoryStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.GetMemoryStats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleRunQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	mode := agent.MemoryMode(req.GetString("mode", string(agent.ModeRead)))
	if !agent.ValidMemoryMode(mode) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid mode %q", mode)), nil
	}

	run, _, err := s.orch.HandleQuery(ctx, query, s.userID, agent.RunConfig{MemoryMode: mode}, agent.Session{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", err)), nil
	}
	return mcp.NewToolResultText(run.Response), nil
}
