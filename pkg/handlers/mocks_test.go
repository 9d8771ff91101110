package handlers

import (
	"context"
	"net/http"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/auth"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

// mockReportService is a configurable ReportService for handler tests.
type mockReportService struct {
	defs    []*models.ReportDefinition
	def     *models.ReportDefinition
	columns []models.ColumnDescriptor
	grid    *models.GridResponse
	err     error

	// exportRows is written through the opener when err is nil or exportErr is set.
	exportRows [][]any
	exportErr  error

	lastGrid *models.GridRequest
}

func (m *mockReportService) List(ctx context.Context) ([]*models.ReportDefinition, error) {
	return m.defs, m.err
}

func (m *mockReportService) Columns(ctx context.Context, reportID string) (*models.ReportDefinition, []models.ColumnDescriptor, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.def, m.columns, nil
}

func (m *mockReportService) Grid(ctx context.Context, reportID string, req *models.GridRequest) (*models.GridResponse, error) {
	m.lastGrid = req
	return m.grid, m.err
}

func (m *mockReportService) Export(ctx context.Context, reportID string, req *models.GridRequest, open services.WriterOpener) (int64, error) {
	m.lastGrid = req
	if m.err != nil {
		return 0, m.err
	}

	w, err := open(m.def, models.ColumnNames(m.columns))
	if err != nil {
		return 0, err
	}
	if err := w.WriteHeader(models.ColumnNames(m.columns)); err != nil {
		return 0, err
	}
	var n int64
	for _, row := range m.exportRows {
		if err := w.WriteRow(row); err != nil {
			return n, err
		}
		n++
	}
	if err := w.Flush(); err != nil {
		return n, err
	}
	if m.exportErr != nil {
		return n, m.exportErr
	}
	return n, w.Close()
}

// mockAuthService authenticates every request as claims.
type mockAuthService struct {
	claims *auth.Claims
	err    error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.claims, "test-token", nil
}

// mockExecutor answers TestConnection for health checks.
type mockExecutor struct {
	datasource.QueryExecutor
	err error
}

func (m *mockExecutor) TestConnection(ctx context.Context) error {
	return m.err
}
