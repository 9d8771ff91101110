package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

type healthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Reports int    `json:"reports"`
	Error   string `json:"error,omitempty"`
}

// RegisterHealthTool adds the health tool. It reports "degraded" when the
// report catalog cannot be listed.
func RegisterHealthTool(s *server.MCPServer, version string, reports services.ReportService) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns report engine status, version and the number of published reports"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Version: version}
		defs, err := reports.List(ctx)
		if err != nil {
			result.Status = "degraded"
			result.Error = logging.SanitizeError(err)
		}
		result.Reports = len(defs)
		return jsonResult(result)
	})
}
