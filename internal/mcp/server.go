package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/codeindex/internal/indexer"
	"github.com/dshills/codeindex/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "codeindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Indexer starts runs and reports their progress
type Indexer interface {
	Start(ctx context.Context) (string, error)
	Progress() indexer.State
}

// Searcher answers similarity queries
type Searcher interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	indexer  Indexer
	searcher Searcher
}

// NewServer creates a new MCP server backed by idx and srch. The caller owns
// both and any store behind them.
func NewServer(idx Indexer, srch Searcher) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		indexer:  idx,
		searcher: srch,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio and blocks until stdin closes
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexWorkspaceTool(), s.handleIndexWorkspace)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
}
