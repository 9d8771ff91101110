package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/config"
	"github.com/ekaya-inc/ekaya-reports/pkg/export"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

// exportTimestampLayout is the timestamp suffix of POST export filenames.
const exportTimestampLayout = "20060102_150405"

// ReportSummary is one entry of the report list.
type ReportSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ShortCode   string `json:"short_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// ListReportsResponse wraps the report list.
type ListReportsResponse struct {
	Reports []ReportSummary `json:"reports"`
}

// ColumnsResponse lists a report's probed column names.
type ColumnsResponse struct {
	Columns []string `json:"columns"`
}

// ReportsHandler serves the DataTables grid, column and export endpoints.
type ReportsHandler struct {
	reportService services.ReportService
	exportCfg     config.ExportConfig
	logger        *zap.Logger
	now           func() time.Time
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(reportService services.ReportService, exportCfg config.ExportConfig, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{
		reportService: reportService,
		exportCfg:     exportCfg,
		logger:        logger,
		now:           time.Now,
	}
}

// RegisterRoutes registers the reports handler's routes on the given mux,
// each wrapped by guard (auth.Middleware.RequireAuth or RequireTenant).
func (h *ReportsHandler) RegisterRoutes(mux *http.ServeMux, guard func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/reports", guard(h.List))
	mux.HandleFunc("GET /api/report/{id}/columns", guard(h.Columns))
	mux.HandleFunc("GET /api/report/{id}", guard(h.Grid))
	mux.HandleFunc("POST /api/report/{id}/export", guard(h.Export))
}

// List handles GET /api/reports
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	defs, err := h.reportService.List(r.Context())
	if err != nil {
		h.writeServiceError(w, "", err)
		return
	}

	resp := ListReportsResponse{Reports: make([]ReportSummary, len(defs))}
	for i, def := range defs {
		resp.Reports[i] = ReportSummary{
			ID:          def.ID,
			Title:       def.Title,
			ShortCode:   def.ShortCode,
			Description: def.Description,
		}
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Columns handles GET /api/report/{id}/columns
func (h *ReportsHandler) Columns(w http.ResponseWriter, r *http.Request) {
	reportID, ok := ParseReportID(w, r, h.logger)
	if !ok {
		return
	}

	_, cols, err := h.reportService.Columns(r.Context(), reportID)
	if err != nil {
		h.writeServiceError(w, reportID, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ColumnsResponse{Columns: models.ColumnNames(cols)}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Grid handles GET /api/report/{id}, the DataTables server-side endpoint.
// format=csv switches to a streamed download of every filtered row.
func (h *ReportsHandler) Grid(w http.ResponseWriter, r *http.Request) {
	reportID, ok := ParseReportID(w, r, h.logger)
	if !ok {
		return
	}

	req := ParseGridRequest(r.URL.Query())
	if req.Format == models.ExportFormatCSV {
		h.stream(w, r, reportID, req, 0, func(def *models.ReportDefinition) string {
			return def.FileBaseName() + "." + req.Format.Extension()
		})
		return
	}

	resp, err := h.reportService.Grid(r.Context(), reportID, req)
	switch {
	case err == nil:
		if err := WriteJSON(w, http.StatusOK, resp); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
	case errors.Is(err, apperrors.ErrProbeFailed) && resp != nil:
		// DataTables shows the envelope's error field; the request itself succeeded.
		h.logger.Warn("Report probe failed",
			zap.String("report_id", reportID),
			zap.Error(err))
		if err := WriteJSON(w, http.StatusOK, resp); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
	case errors.Is(err, apperrors.ErrExecutionFailed) && resp != nil:
		if err := WriteJSON(w, http.StatusInternalServerError, resp); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
	default:
		h.writeServiceError(w, reportID, err)
	}
}

// Export handles POST /api/report/{id}/export
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	reportID, ok := ParseReportID(w, r, h.logger)
	if !ok {
		return
	}

	body, err := ParseExportRequest(r.Body)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	stamp := h.now().Format(exportTimestampLayout)
	h.stream(w, r, reportID, body.Grid, body.Delimiter, func(def *models.ReportDefinition) string {
		return fmt.Sprintf("%s_%s.%s", def.FileBaseName(), stamp, body.Grid.Format.Extension())
	})
}

// stream runs an export straight into the response. Headers are set only once
// the data query is running; a failure after that point aborts the transfer so
// the client sees a truncated download instead of a well-formed file.
func (h *ReportsHandler) stream(w http.ResponseWriter, r *http.Request, reportID string, req *models.GridRequest, delimiter rune, filename func(*models.ReportDefinition) string) {
	started := false
	open := func(def *models.ReportDefinition, columns []string) (export.RowWriter, error) {
		started = true
		w.Header().Set("Content-Type", req.Format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename(def)))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")

		switch req.Format {
		case models.ExportFormatXLSX:
			return export.NewXLSXWriter(w, def.Title)
		default:
			if delimiter == 0 {
				delimiter = h.exportCfg.CSVDelimiterRune()
			}
			return export.NewCSVWriter(w, export.CSVOptions{
				Delimiter: delimiter,
				CRLF:      h.exportCfg.CSVCRLF,
				BOM:       h.exportCfg.CSVBOM,
			}), nil
		}
	}

	n, err := h.reportService.Export(r.Context(), reportID, req, open)
	if err == nil {
		return
	}
	if !started {
		h.writeServiceError(w, reportID, err)
		return
	}

	if errors.Is(err, apperrors.ErrExportAborted) {
		h.logger.Debug("Export aborted by client",
			zap.String("report_id", reportID),
			zap.Int64("rows", n))
		return
	}
	h.logger.Error("Export failed mid-stream",
		zap.String("report_id", reportID),
		zap.Int64("rows", n),
		zap.Error(err))
	panic(http.ErrAbortHandler)
}

// writeServiceError maps service sentinels to HTTP responses.
func (h *ReportsHandler) writeServiceError(w http.ResponseWriter, reportID string, err error) {
	status, code, message := http.StatusInternalServerError, "internal_error", "The report could not be loaded."
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, "report_not_found", "Report not found"
	case errors.Is(err, apperrors.ErrDefinitionRejected):
		status, code, message = http.StatusUnprocessableEntity, "definition_rejected", "The report definition is invalid."
	case errors.Is(err, apperrors.ErrProbeFailed):
		status, code, message = http.StatusUnprocessableEntity, "probe_failed", "The report query could not be executed; check its SQL and parameters."
	default:
		h.logger.Error("Report request failed",
			zap.String("report_id", reportID),
			zap.Error(err))
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
