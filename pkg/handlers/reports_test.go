package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/audit"
	"github.com/ekaya-inc/ekaya-reports/pkg/auth"
	"github.com/ekaya-inc/ekaya-reports/pkg/config"
	"github.com/ekaya-inc/ekaya-reports/pkg/export"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/repositories"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
	"github.com/ekaya-inc/ekaya-reports/pkg/testhelpers"
)

var testExportConfig = config.ExportConfig{
	ChunkSize:    1000,
	CSVDelimiter: ",",
	CSVCRLF:      false,
	CSVBOM:       true,
}

func testClaims(tenant string) *auth.Claims {
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		TenantID:         tenant,
		Email:            "ann@example.com",
	}
}

func newTestRouter(svc services.ReportService, authSvc auth.AuthService) (*http.ServeMux, *ReportsHandler) {
	h := NewReportsHandler(svc, testExportConfig, zap.NewNop())
	h.now = func() time.Time { return time.Date(2026, 3, 9, 14, 5, 7, 0, time.UTC) }
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, auth.NewMiddleware(authSvc, zap.NewNop()).RequireAuth)
	return mux, h
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

var mockDef = &models.ReportDefinition{ID: "monthly-sales", Title: "Monthly sales", ShortCode: "MS"}

func TestReportsHandler_RequiresAuth(t *testing.T) {
	mux, _ := newTestRouter(&mockReportService{}, &mockAuthService{err: auth.ErrMissingAuthorization})

	for _, target := range []string{"/api/reports", "/api/report/x", "/api/report/x/columns"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestReportsHandler_List(t *testing.T) {
	svc := &mockReportService{defs: []*models.ReportDefinition{mockDef}}
	mux, _ := newTestRouter(svc, &mockAuthService{claims: testClaims("acme")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListReportsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "MS", resp.Reports[0].ShortCode)
}

func TestReportsHandler_Columns(t *testing.T) {
	svc := &mockReportService{
		def:     mockDef,
		columns: []models.ColumnDescriptor{{Name: "region"}, {Name: "total"}},
	}
	mux, _ := newTestRouter(svc, &mockAuthService{claims: testClaims("acme")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/monthly-sales/columns", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"columns": ["region", "total"]}`, rec.Body.String())
}

func TestReportsHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		grid       *models.GridResponse
		wantStatus int
		wantCode   string
	}{
		{"grid not found", "/api/report/x", apperrors.ErrNotFound, nil, http.StatusNotFound, "report_not_found"},
		{"grid rejected", "/api/report/x", fmt.Errorf("report x: %w: has ;", apperrors.ErrDefinitionRejected), nil, http.StatusUnprocessableEntity, "definition_rejected"},
		{"columns probe failed", "/api/report/x/columns", apperrors.ErrProbeFailed, nil, http.StatusUnprocessableEntity, "probe_failed"},
		{"columns unexpected", "/api/report/x/columns", errors.New("boom"), nil, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _ := newTestRouter(&mockReportService{err: tt.err, grid: tt.grid}, &mockAuthService{claims: testClaims("acme")})

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
		})
	}
}

func TestReportsHandler_GridProbeFailedIsEnvelope(t *testing.T) {
	envelope := models.NewEmptyGridResponse(9, "Broken")
	envelope.Error = "The report query could not be executed; check its SQL and parameters."
	svc := &mockReportService{err: apperrors.ErrProbeFailed, grid: envelope}
	mux, _ := newTestRouter(svc, &mockAuthService{claims: testClaims("acme")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/broken?draw=9", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"draw": 9, "recordsTotal": 0, "recordsFiltered": 0, "data": [],
		"meta": {"columns": [], "title": "Broken"},
		"error": "The report query could not be executed; check its SQL and parameters."
	}`, rec.Body.String())
}

func TestReportsHandler_GridExecutionFailedIs500Envelope(t *testing.T) {
	envelope := models.NewEmptyGridResponse(2, "Orders")
	envelope.Error = "The report could not be loaded."
	svc := &mockReportService{err: apperrors.ErrExecutionFailed, grid: envelope}
	mux, _ := newTestRouter(svc, &mockAuthService{claims: testClaims("acme")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/orders?draw=2", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp models.GridResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Draw)
	assert.Equal(t, "The report could not be loaded.", resp.Error)
}

func TestReportsHandler_GridPassesProtocolState(t *testing.T) {
	svc := &mockReportService{grid: models.NewEmptyGridResponse(3, "t")}
	mux, _ := newTestRouter(svc, &mockAuthService{claims: testClaims("acme")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/report/t?draw=3&start=10&length=50&search%5Bvalue%5D=x&order%5B0%5D%5Bcolumn%5D=1&order%5B0%5D%5Bdir%5D=asc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastGrid)
	assert.Equal(t, int64(10), svc.lastGrid.Start)
	assert.Equal(t, int64(50), svc.lastGrid.Length)
	assert.Equal(t, "x", svc.lastGrid.GlobalSearch)
	assert.Equal(t, 1, svc.lastGrid.SortColumn)
	assert.Equal(t, models.SortAsc, svc.lastGrid.SortDirection)
}

func TestReportsHandler_ExportFilenameAndHeaders(t *testing.T) {
	svc := &mockReportService{
		def:        mockDef,
		columns:    []models.ColumnDescriptor{{Name: "region"}, {Name: "total"}},
		exportRows: [][]any{{"north", int64(3)}, {"south", int64(4)}},
	}
	mux, _ := newTestRouter(svc, &mockAuthService{claims: testClaims("acme")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/report/monthly-sales/export",
		strings.NewReader(`{"format": "csv", "delimiter": ";"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=UTF-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="MS_20260309_140507.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "\ufeffregion;total\nnorth;3\nsouth;4\n", rec.Body.String())
	assert.Equal(t, models.ExportFormatCSV, svc.lastGrid.Format)
}

func TestReportsHandler_ExportXLSX(t *testing.T) {
	svc := &mockReportService{
		def:        mockDef,
		columns:    []models.ColumnDescriptor{{Name: "region"}, {Name: "total"}},
		exportRows: [][]any{{"north", int64(3)}},
	}
	mux, _ := newTestRouter(svc, &mockAuthService{claims: testClaims("acme")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/report/monthly-sales/export",
		strings.NewReader(`{"format": "xlsx"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ExportFormatXLSX.ContentType(), rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="MS_20260309_140507.xlsx"`, rec.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"region", "total"}, {"north", "3"}}, rows)
}

func TestReportsHandler_ExportInvalidBody(t *testing.T) {
	mux, _ := newTestRouter(&mockReportService{def: mockDef}, &mockAuthService{claims: testClaims("acme")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/report/monthly-sales/export",
		strings.NewReader(`{"format": "pdf"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Error)
}

func TestReportsHandler_ExportFailsBeforeStreaming(t *testing.T) {
	mux, _ := newTestRouter(&mockReportService{err: apperrors.ErrNotFound}, &mockAuthService{claims: testClaims("acme")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/report/nope/export",
		strings.NewReader(`{"format": "csv"}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestReportsHandler_ExportMidStreamFailureAbortsTransfer(t *testing.T) {
	svc := &mockReportService{
		def:        mockDef,
		columns:    []models.ColumnDescriptor{{Name: "region"}},
		exportRows: [][]any{{"north"}},
		exportErr:  fmt.Errorf("%w: cursor lost", apperrors.ErrExecutionFailed),
	}
	_, h := newTestRouter(svc, &mockAuthService{claims: testClaims("acme")})

	req := httptest.NewRequest(http.MethodPost, "/api/report/monthly-sales/export", strings.NewReader(`{"format": "csv"}`))
	req.SetPathValue("id", "monthly-sales")
	rec := httptest.NewRecorder()

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.Export(rec, req)
	})
}

func TestReportsHandler_ExportClientGoneIsQuiet(t *testing.T) {
	svc := &mockReportService{
		def:        mockDef,
		columns:    []models.ColumnDescriptor{{Name: "region"}},
		exportRows: [][]any{{"north"}},
		exportErr:  fmt.Errorf("%w: context canceled", apperrors.ErrExportAborted),
	}
	_, h := newTestRouter(svc, &mockAuthService{claims: testClaims("acme")})

	req := httptest.NewRequest(http.MethodPost, "/api/report/monthly-sales/export", strings.NewReader(`{"format": "csv"}`))
	req.SetPathValue("id", "monthly-sales")
	rec := httptest.NewRecorder()

	assert.NotPanics(t, func() { h.Export(rec, req) })
}

const handlerReportsYAML = `
reports:
  - id: tenant-orders
    title: Orders
    short_code: ORD
    base_sql: SELECT id, customer, region, amount, note FROM orders WHERE tenant_id = {{tenant_id}}
    parameter_map:
      tenant_id: "@tenant"
`

// newSQLiteService wires the real service over the SQLite sales fixture.
func newSQLiteService(t *testing.T) services.ReportService {
	t.Helper()

	path := filepath.Join(t.TempDir(), "reports.yaml")
	require.NoError(t, os.WriteFile(path, []byte(handlerReportsYAML), 0o600))
	store, err := repositories.NewFileReportStore(path, "", zap.NewNop())
	require.NoError(t, err)

	executor := sqlite.NewQueryExecutorFromDB(testhelpers.NewSQLiteSalesDB(t))
	svc := services.NewReportService(store, executor,
		export.NewExporter(testExportConfig.ChunkSize, zap.NewNop()),
		audit.NewSecurityAuditor(zap.NewNop()), zap.NewNop())
	return svc
}

func newSQLiteRouter(t *testing.T, tenant string) *http.ServeMux {
	t.Helper()
	mux, _ := newTestRouter(newSQLiteService(t), &mockAuthService{claims: testClaims(tenant)})
	return mux
}

func TestReportsHandler_SQLiteTenantFromToken(t *testing.T) {
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{EnableVerification: false})
	require.NoError(t, err)
	mux, _ := newTestRouter(newSQLiteService(t), auth.NewAuthService(jwksClient, zap.NewNop()))

	ids := func(tenant string, want int) map[float64]bool {
		req := httptest.NewRequest(http.MethodGet, "/api/report/ORD?length=100", nil)
		req.Header.Set("Authorization", testhelpers.GenerateTestJWTWithBearer("user-1", tenant, "ann@example.com"))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			RecordsTotal int64            `json:"recordsTotal"`
			Data         []map[string]any `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, int64(want), resp.RecordsTotal)

		out := make(map[float64]bool, len(resp.Data))
		for _, row := range resp.Data {
			out[row["id"].(float64)] = true
		}
		return out
	}

	acme := ids(testhelpers.TenantAcme, testhelpers.AcmeOrderCount)
	globex := ids(testhelpers.TenantGlobex, testhelpers.GlobexOrderCount)
	for id := range acme {
		assert.False(t, globex[id], "row %v visible to both tenants", id)
	}
}

func TestReportsHandler_SQLiteGrid(t *testing.T) {
	mux := newSQLiteRouter(t, testhelpers.TenantGlobex)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/ORD?draw=5&length=1&order%5B0%5D%5Bcolumn%5D=0&order%5B0%5D%5Bdir%5D=desc", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Draw            int              `json:"draw"`
		RecordsTotal    int64            `json:"recordsTotal"`
		RecordsFiltered int64            `json:"recordsFiltered"`
		Data            []map[string]any `json:"data"`
		Meta            models.GridMeta  `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, 5, resp.Draw)
	assert.Equal(t, int64(testhelpers.GlobexOrderCount), resp.RecordsTotal)
	assert.Equal(t, resp.RecordsTotal, resp.RecordsFiltered)
	assert.Len(t, resp.Data, models.MinPageLength, "length=1 clamps up to 10")
	assert.Equal(t, float64(25), resp.Data[0]["id"])
	assert.Equal(t, []string{"id", "customer", "region", "amount", "note"}, resp.Meta.Columns)
	assert.Equal(t, "Orders", resp.Meta.Title)
}

func TestReportsHandler_SQLiteCSV(t *testing.T) {
	mux := newSQLiteRouter(t, testhelpers.TenantAcme)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/report/tenant-orders?format=csv&length=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=UTF-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ORD.csv"`, rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "\ufeffid,customer,region,amount,note\n"))
	lines := strings.Split(strings.TrimSuffix(body, "\n"), "\n")
	assert.Len(t, lines, testhelpers.AcmeOrderCount+1, "CSV ignores the page size")
	assert.Equal(t, `3,Customer 03,north,30.5,50% off`, lines[3])
}
