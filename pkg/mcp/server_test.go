package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

// stubReportService satisfies services.ReportService with empty results.
type stubReportService struct{}

func (stubReportService) List(ctx context.Context) ([]*models.ReportDefinition, error) {
	return []*models.ReportDefinition{{ID: "r1", Title: "One"}}, nil
}

func (stubReportService) Columns(ctx context.Context, reportID string) (*models.ReportDefinition, []models.ColumnDescriptor, error) {
	return &models.ReportDefinition{ID: reportID}, nil, nil
}

func (stubReportService) Grid(ctx context.Context, reportID string, req *models.GridRequest) (*models.GridResponse, error) {
	return models.NewEmptyGridResponse(req.Draw, ""), nil
}

func (stubReportService) Export(ctx context.Context, reportID string, req *models.GridRequest, open services.WriterOpener) (int64, error) {
	return 0, nil
}

func TestNewServer(t *testing.T) {
	s := NewServer("test-server", "1.0.0", zap.NewNop())

	if s == nil {
		t.Fatal("expected non-nil server")
	}
	if s.mcp == nil {
		t.Fatal("expected non-nil mcp server")
	}
	if s.logger == nil {
		t.Error("expected logger to be set")
	}
}

func TestServer_MCP(t *testing.T) {
	s := NewServer("test-server", "1.0.0", zap.NewNop())

	mcpServer := s.MCP()
	if mcpServer == nil {
		t.Fatal("expected non-nil mcp server from MCP()")
	}
	if mcpServer != s.mcp {
		t.Error("expected MCP() to return the internal mcp server")
	}
}

func TestServer_RegisterTool(t *testing.T) {
	s := NewServer("test-server", "1.0.0", zap.NewNop())

	tool := mcp.NewTool("test-tool", mcp.WithDescription("A test tool"))
	handlerCalled := false

	s.RegisterTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handlerCalled = true
		return mcp.NewToolResultText("success"), nil
	})

	if handlerCalled {
		t.Error("handler should not be called during registration")
	}

	result := s.MCP().HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","method":"tools/call","id":1,"params":{"name":"test-tool","arguments":{}}}`))
	if result == nil {
		t.Fatal("expected a response")
	}
	if !handlerCalled {
		t.Error("handler should be called by tools/call")
	}
}

func TestNewReportServer_ListsTools(t *testing.T) {
	s := NewReportServer("1.2.3", stubReportService{}, zap.NewNop())

	result := s.MCP().HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		t.Fatalf("failed to decode tools/list: %v", err)
	}

	found := map[string]bool{}
	for _, tool := range response.Result.Tools {
		found[tool.Name] = true
	}
	for _, name := range []string{"health", "list_reports", "list_report_columns", "query_report"} {
		if !found[name] {
			t.Errorf("expected tool %s to be registered", name)
		}
	}
}

func TestServer_RegisterRoutes(t *testing.T) {
	s := NewReportServer("1.2.3", stubReportService{}, zap.NewNop())

	mux := http.NewServeMux()
	guarded := false
	s.RegisterRoutes(mux, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guarded = true
			next.ServeHTTP(w, r)
		})
	})

	body := `{"jsonrpc":"2.0","method":"tools/list","id":1}`
	req := httptest.NewRequest(http.MethodPost, Endpoint, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if !guarded {
		t.Error("expected the auth middleware to wrap the endpoint")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "query_report") {
		t.Errorf("expected tools/list response, got %s", rec.Body.String())
	}
}
