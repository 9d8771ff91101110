package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/audit"
	"github.com/ekaya-inc/ekaya-reports/pkg/export"
	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/repositories"
	sqlpkg "github.com/ekaya-inc/ekaya-reports/pkg/sql"
)

// WriterOpener creates the export encoder once the data query is running.
// Handlers set response headers here, so nothing is written for requests that
// fail earlier.
type WriterOpener func(def *models.ReportDefinition, columns []string) (export.RowWriter, error)

// ReportService serves stored reports through the grid protocol.
type ReportService interface {
	List(ctx context.Context) ([]*models.ReportDefinition, error)

	// Columns probes the report's columns for the current principal.
	Columns(ctx context.Context, reportID string) (*models.ReportDefinition, []models.ColumnDescriptor, error)

	// Grid returns one page. For apperrors.ErrProbeFailed and
	// apperrors.ErrExecutionFailed the returned envelope is still usable: zero
	// totals, no data, and an explanatory Error.
	Grid(ctx context.Context, reportID string, req *models.GridRequest) (*models.GridResponse, error)

	// Export streams every filtered row in sort order and returns the row count.
	Export(ctx context.Context, reportID string, req *models.GridRequest, open WriterOpener) (int64, error)
}

type reportService struct {
	store    repositories.ReportDefinitionStore
	executor datasource.QueryExecutor
	resolver *ParameterResolver
	prober   *SchemaProber
	compiler *QueryCompiler
	exporter *export.Exporter
	auditor  *audit.SecurityAuditor
	logger   *zap.Logger
}

// NewReportService creates a report service running every report against executor.
func NewReportService(
	store repositories.ReportDefinitionStore,
	executor datasource.QueryExecutor,
	exporter *export.Exporter,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) ReportService {
	return &reportService{
		store:    store,
		executor: executor,
		resolver: NewParameterResolver(logger),
		prober:   NewSchemaProber(executor, logger),
		compiler: NewQueryCompiler(executor.Dialect(), logger),
		exporter: exporter,
		auditor:  auditor,
		logger:   logger.Named("reports"),
	}
}

var _ ReportService = (*reportService)(nil)

// preparedReport is a definition bound for the current request.
type preparedReport struct {
	def     *models.ReportDefinition
	base    string
	args    []any
	columns []models.ColumnDescriptor
}

func (p *preparedReport) columnNames() []string {
	return models.ColumnNames(p.columns)
}

func (s *reportService) List(ctx context.Context) ([]*models.ReportDefinition, error) {
	return s.store.List(ctx)
}

func (s *reportService) Columns(ctx context.Context, reportID string) (*models.ReportDefinition, []models.ColumnDescriptor, error) {
	p, err := s.prepare(ctx, reportID)
	if err != nil {
		if p != nil {
			return p.def, nil, err
		}
		return nil, nil, err
	}
	return p.def, p.columns, nil
}

func (s *reportService) Grid(ctx context.Context, reportID string, req *models.GridRequest) (*models.GridResponse, error) {
	p, err := s.prepare(ctx, reportID)
	if err != nil {
		if errors.Is(err, apperrors.ErrProbeFailed) {
			resp := models.NewEmptyGridResponse(req.Draw, p.def.Title)
			resp.Error = "The report query could not be executed; check its SQL and parameters."
			return resp, err
		}
		return nil, err
	}

	resp := models.NewEmptyGridResponse(req.Draw, p.def.Title)
	if len(p.columns) == 0 {
		return resp, nil
	}
	resp.Meta.Columns = p.columnNames()

	s.auditSearch(ctx, p.def, req)

	compiled, err := s.compiler.Compile(p.base, p.args, p.columns, req)
	if err != nil {
		return nil, fmt.Errorf("compile report %s: %w", p.def.ID, err)
	}

	fail := func(stage string, err error) (*models.GridResponse, error) {
		s.logger.Error("Report query failed",
			zap.String("report_id", p.def.ID),
			zap.String("stage", stage),
			zap.String("error", logging.SanitizeError(err)))
		resp.Error = "The report could not be loaded."
		return resp, fmt.Errorf("%w: %s: %v", apperrors.ErrExecutionFailed, stage, err)
	}

	total, err := s.executor.QueryCount(ctx, compiled.CountSQL, compiled.CountArgs)
	if err != nil {
		return fail("count", err)
	}

	filtered := total
	if compiled.Filtered {
		if filtered, err = s.executor.QueryCount(ctx, compiled.FilteredCountSQL, compiled.FilteredCountArgs); err != nil {
			return fail("filtered count", err)
		}
	}

	rows, err := s.executor.Query(ctx, compiled.PagedSQL, compiled.PagedArgs)
	if err != nil {
		return fail("data", err)
	}
	data, err := readRows(rows, resp.Meta.Columns)
	if err != nil {
		return fail("data", err)
	}

	resp.RecordsTotal = total
	resp.RecordsFiltered = filtered
	resp.Data = data
	return resp, nil
}

func (s *reportService) Export(ctx context.Context, reportID string, req *models.GridRequest, open WriterOpener) (int64, error) {
	p, err := s.prepare(ctx, reportID)
	if err != nil {
		return 0, err
	}
	if len(p.columns) == 0 {
		return 0, fmt.Errorf("%w: report has no columns", apperrors.ErrProbeFailed)
	}

	s.auditSearch(ctx, p.def, req)

	compiled, err := s.compiler.Compile(p.base, p.args, p.columns, req)
	if err != nil {
		return 0, fmt.Errorf("compile report %s: %w", p.def.ID, err)
	}

	rows, err := s.executor.Query(ctx, compiled.DataSQL, compiled.DataArgs)
	if err != nil {
		s.logger.Error("Report export query failed",
			zap.String("report_id", p.def.ID),
			zap.String("error", logging.SanitizeError(err)))
		return 0, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailed, err)
	}

	names := p.columnNames()
	w, err := open(p.def, names)
	if err != nil {
		rows.Close()
		return 0, fmt.Errorf("open %s writer: %w", req.Format, err)
	}

	n, err := s.exporter.Export(ctx, rows, names, w)
	s.auditor.LogExport(ctx, p.def.ID, audit.ExportDetails{
		Format:   string(req.Format),
		Rows:     n,
		Filtered: compiled.Filtered,
		Aborted:  err != nil,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrExecutionFailed) {
			s.logger.Error("Report export failed mid-stream",
				zap.String("report_id", p.def.ID),
				zap.Int64("rows", n),
				zap.String("error", logging.SanitizeError(err)))
		}
		return n, err
	}

	s.logger.Info("Report exported",
		zap.String("report_id", p.def.ID),
		zap.String("format", string(req.Format)),
		zap.Int64("rows", n))
	return n, nil
}

// prepare loads, validates, binds and probes a report for the current request.
// When only the probe fails, the returned report carries the definition.
func (s *reportService) prepare(ctx context.Context, reportID string) (*preparedReport, error) {
	def, err := s.store.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}

	validation := sqlpkg.ValidateReportSQL(def.BaseSQL)
	if validation.Error != nil {
		return nil, s.reject(ctx, def, validation.Error)
	}
	if err := sqlpkg.ValidateParameterDefinitions(validation.NormalizedSQL, def.Parameters); err != nil {
		return nil, s.reject(ctx, def, err)
	}

	resolved := s.resolver.Resolve(ctx, def.Parameters)
	for _, hit := range sqlpkg.CheckAllParameters(resolved) {
		s.auditor.LogInjectionAttempt(ctx, def.ID, audit.SQLInjectionDetails{
			ParamName:   hit.ParamName,
			ParamValue:  fmt.Sprint(hit.ParamValue),
			Fingerprint: hit.Fingerprint,
			ReportTitle: def.Title,
		})
	}

	base, args, err := sqlpkg.BindParameters(validation.NormalizedSQL, resolved)
	if err != nil {
		return nil, s.reject(ctx, def, err)
	}

	s.logger.Debug("Probing report",
		zap.String("report_id", def.ID),
		zap.String("sql", logging.SanitizeQuery(base)),
		zap.String("params", logging.DescribeParams(resolved)))

	p := &preparedReport{def: def, base: base, args: args}
	if p.columns, err = s.prober.Probe(ctx, base, args); err != nil {
		return p, fmt.Errorf("report %s: %w", def.ID, err)
	}
	return p, nil
}

func (s *reportService) reject(ctx context.Context, def *models.ReportDefinition, cause error) error {
	s.auditor.LogDefinitionRejected(ctx, def.ID, cause.Error())
	return fmt.Errorf("report %s: %w: %v", def.ID, apperrors.ErrDefinitionRejected, cause)
}

// auditSearch records search terms that look like SQL injection. Terms are
// bound, so the request proceeds.
func (s *reportService) auditSearch(ctx context.Context, def *models.ReportDefinition, req *models.GridRequest) {
	for _, hit := range sqlpkg.CheckGridSearch(req) {
		s.auditor.LogInjectionAttempt(ctx, def.ID, audit.SQLInjectionDetails{
			ParamName:   hit.ParamName,
			ParamValue:  fmt.Sprint(hit.ParamValue),
			Fingerprint: hit.Fingerprint,
			ReportTitle: def.Title,
		})
	}
}

// readRows drains rows into ordered records and closes the cursor.
func readRows(rows datasource.Rows, columns []string) ([]models.Row, error) {
	defer rows.Close()

	data := make([]models.Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		data = append(data, models.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return data, nil
}
