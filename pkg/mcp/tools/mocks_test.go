package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

// mockReportService is a configurable ReportService for tool tests.
type mockReportService struct {
	defs    []*models.ReportDefinition
	def     *models.ReportDefinition
	columns []models.ColumnDescriptor
	grid    *models.GridResponse
	err     error

	lastID   string
	lastGrid *models.GridRequest
}

func (m *mockReportService) List(ctx context.Context) ([]*models.ReportDefinition, error) {
	return m.defs, m.err
}

func (m *mockReportService) Columns(ctx context.Context, reportID string) (*models.ReportDefinition, []models.ColumnDescriptor, error) {
	m.lastID = reportID
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.def, m.columns, nil
}

func (m *mockReportService) Grid(ctx context.Context, reportID string, req *models.GridRequest) (*models.GridResponse, error) {
	m.lastID = reportID
	m.lastGrid = req
	return m.grid, m.err
}

func (m *mockReportService) Export(ctx context.Context, reportID string, req *models.GridRequest, open services.WriterOpener) (int64, error) {
	return 0, m.err
}

// getTextContent extracts the text string from the first text content item.
func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if text, ok := result.Content[0].(mcp.TextContent); ok {
		return text.Text
	}
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}

// callTool executes an MCP tool via the server's HandleMessage method.
// It returns the tool result, or the JSON-RPC error message.
func callTool(t *testing.T, s *server.MCPServer, name string, arguments map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()

	reqBytes, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"id":      1,
		"params": map[string]any{
			"name":      name,
			"arguments": arguments,
		},
	})
	require.NoError(t, err)

	resultBytes, err := json.Marshal(s.HandleMessage(context.Background(), reqBytes))
	require.NoError(t, err)

	var response struct {
		Result *struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result,omitempty"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))

	if response.Error != nil {
		return nil, response.Error.Message
	}
	require.NotNil(t, response.Result)

	result := &mcp.CallToolResult{IsError: response.Result.IsError}
	for _, c := range response.Result.Content {
		result.Content = append(result.Content, mcp.NewTextContent(c.Text))
	}
	return result, ""
}
