// Package mcpserver exposes reachability analysis as Model Context Protocol
// tools over stdio.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/symreach/internal/service/analysis"
	"github.com/panbanda/symreach/pkg/config"
)

// Server wraps the MCP server and the analysis service its tools call.
type Server struct {
	server  *mcp.Server
	service *analysis.Service
}

// NewServer creates an MCP server with every symreach tool registered. A nil
// service uses the config found in the working directory.
func NewServer(version string, svc *analysis.Service) *Server {
	if version == "" {
		version = "dev"
	}
	if svc == nil {
		svc = analysis.New(analysis.WithConfig(config.LoadOrDefault()))
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "symreach",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, service: svc}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_dead_code",
		Description: describeFindDeadCode(),
	}, s.handleFindDeadCode)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "explain_symbol",
		Description: describeExplainSymbol(),
	}, s.handleExplainSymbol)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "unresolved_references",
		Description: describeUnresolvedReferences(),
	}, s.handleUnresolvedReferences)
}
