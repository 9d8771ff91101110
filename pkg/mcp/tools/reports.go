package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

// ReportToolDeps contains dependencies for the report tools.
type ReportToolDeps struct {
	ReportService services.ReportService
	Logger        *zap.Logger
}

// RegisterReportTools registers list_reports, list_report_columns and query_report.
func RegisterReportTools(s *server.MCPServer, deps *ReportToolDeps) {
	registerListReportsTool(s, deps)
	registerListReportColumnsTool(s, deps)
	registerQueryReportTool(s, deps)
}

type reportSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ShortCode   string `json:"short_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func registerListReportsTool(s *server.MCPServer, deps *ReportToolDeps) {
	tool := mcp.NewTool(
		"list_reports",
		mcp.WithDescription("List the stored reports that can be queried, with their ids and titles."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		defs, err := deps.ReportService.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list reports: %w", err)
		}

		reports := make([]reportSummary, len(defs))
		for i, def := range defs {
			reports[i] = reportSummary{
				ID:          def.ID,
				Title:       def.Title,
				ShortCode:   def.ShortCode,
				Description: def.Description,
			}
		}
		return jsonResult(struct {
			Reports []reportSummary `json:"reports"`
		}{reports})
	})
}

func registerListReportColumnsTool(s *server.MCPServer, deps *ReportToolDeps) {
	tool := mcp.NewTool(
		"list_report_columns",
		mcp.WithDescription(
			"List the output columns of a report in order. "+
				"Column positions are the indexes query_report uses for order_column. "+
				"Only columns marked searchable take part in text search.",
		),
		mcp.WithString(
			"report_id",
			mcp.Required(),
			mcp.Description("Report id or short code (from list_reports)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reportID, err := req.RequireString("report_id")
		if err != nil {
			return nil, err
		}
		reportID = strings.TrimSpace(reportID)
		if reportID == "" {
			return NewErrorResult("invalid_parameters", "report_id cannot be empty"), nil
		}

		def, cols, err := deps.ReportService.Columns(ctx, reportID)
		if err != nil {
			return deps.toolError("list_report_columns", reportID, err)
		}

		type column struct {
			Index      int    `json:"index"`
			Name       string `json:"name"`
			Type       string `json:"type,omitempty"`
			Searchable bool   `json:"searchable"`
		}
		columns := make([]column, len(cols))
		for i, c := range cols {
			columns[i] = column{Index: i, Name: c.Name, Type: c.Type, Searchable: c.IsSearchableText}
		}

		return jsonResult(struct {
			ReportID string   `json:"report_id"`
			Title    string   `json:"title"`
			Columns  []column `json:"columns"`
		}{def.ID, def.Title, columns})
	})
}

func registerQueryReportTool(s *server.MCPServer, deps *ReportToolDeps) {
	tool := mcp.NewTool(
		"query_report",
		mcp.WithDescription(
			"Fetch one page of a report's rows. "+
				"search matches as a literal substring in any searchable column. "+
				"length is clamped to 10..100.",
		),
		mcp.WithString(
			"report_id",
			mcp.Required(),
			mcp.Description("Report id or short code (from list_reports)"),
		),
		mcp.WithString(
			"search",
			mcp.Description("Optional text to match in any searchable column"),
		),
		mcp.WithNumber(
			"start",
			mcp.Description("Row offset (default: 0)"),
		),
		mcp.WithNumber(
			"length",
			mcp.Description("Rows per page (default: 10, max: 100)"),
		),
		mcp.WithNumber(
			"order_column",
			mcp.Description("Index of the column to sort by (from list_report_columns, default: 0)"),
		),
		mcp.WithString(
			"order_dir",
			mcp.Description("Sort direction"),
			mcp.Enum("asc", "desc"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reportID, err := req.RequireString("report_id")
		if err != nil {
			return nil, err
		}
		reportID = strings.TrimSpace(reportID)
		if reportID == "" {
			return NewErrorResult("invalid_parameters", "report_id cannot be empty"), nil
		}

		gridReq := &models.GridRequest{
			Draw:          1,
			Length:        models.DefaultPageLength,
			GlobalSearch:  optionalString(req, "search"),
			SortDirection: models.SortAsc,
		}
		if v, ok := optionalNumber(req, "start"); ok && v > 0 {
			gridReq.Start = int64(v)
		}
		if v, ok := optionalNumber(req, "length"); ok {
			gridReq.Length = int64(v)
		}
		if v, ok := optionalNumber(req, "order_column"); ok {
			gridReq.SortColumn = int(v)
		}
		if dir := optionalString(req, "order_dir"); dir == "desc" {
			gridReq.SortDirection = models.SortDesc
		}

		resp, err := deps.ReportService.Grid(ctx, reportID, gridReq)
		if err != nil {
			return deps.toolError("query_report", reportID, err)
		}

		return jsonResult(struct {
			ReportID        string       `json:"report_id"`
			Title           string       `json:"title"`
			Columns         []string     `json:"columns"`
			RecordsTotal    int64        `json:"records_total"`
			RecordsFiltered int64        `json:"records_filtered"`
			Start           int64        `json:"start"`
			Rows            []models.Row `json:"rows"`
		}{reportID, resp.Meta.Title, resp.Meta.Columns, resp.RecordsTotal, resp.RecordsFiltered, gridReq.Start, resp.Data})
	})
}

// toolError turns actionable service errors into tool results and everything
// else into a Go error.
func (d *ReportToolDeps) toolError(toolName, reportID string, err error) (*mcp.CallToolResult, error) {
	if result := reportErrorResult(reportID, err); result != nil {
		d.Logger.Debug("Report tool returned error result",
			zap.String("tool", toolName),
			zap.String("report_id", reportID),
			zap.Error(err))
		return result, nil
	}
	d.Logger.Error("Report tool failed",
		zap.String("tool", toolName),
		zap.String("report_id", reportID),
		zap.Error(err))
	return nil, fmt.Errorf("%s failed for report %s: %w", toolName, reportID, err)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
