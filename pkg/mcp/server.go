package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

// Endpoint is the path the streamable HTTP transport is served on.
const Endpoint = "/mcp"

// Server wraps the mcp-go MCPServer with the report tools.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance.
func NewServer(name, version string, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger.Named("mcp"),
	}
}

// NewReportServer creates a server exposing the health and report tools.
func NewReportServer(version string, reportService services.ReportService, logger *zap.Logger) *Server {
	s := NewServer("ekaya-reports", version, logger)
	tools.RegisterHealthTool(s.mcp, version, reportService)
	tools.RegisterReportTools(s.mcp, &tools.ReportToolDeps{
		ReportService: reportService,
		Logger:        s.logger,
	})
	return s
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterRoutes mounts the transport at Endpoint behind authMiddleware.
func (s *Server) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle(Endpoint, authMiddleware(s.NewStreamableHTTPServer()))
	s.logger.Info("MCP endpoint registered", zap.String("path", Endpoint))
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
