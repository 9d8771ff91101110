package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// memReportStore is an in-memory ReportDefinitionStore.
type memReportStore struct {
	reports map[string]*models.ReportDefinition
}

func newMemReportStore(defs ...*models.ReportDefinition) *memReportStore {
	s := &memReportStore{reports: make(map[string]*models.ReportDefinition)}
	for _, d := range defs {
		s.reports[d.ID] = d
	}
	return s
}

func (s *memReportStore) Get(_ context.Context, key string) (*models.ReportDefinition, error) {
	if d, ok := s.reports[key]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("report %q: %w", key, apperrors.ErrNotFound)
}

func (s *memReportStore) List(_ context.Context) ([]*models.ReportDefinition, error) {
	out := make([]*models.ReportDefinition, 0, len(s.reports))
	for _, d := range s.reports {
		out = append(out, d)
	}
	return out, nil
}

// failingCountExecutor delegates to a real executor but fails every count.
type failingCountExecutor struct {
	datasource.QueryExecutor
}

func (e *failingCountExecutor) QueryCount(ctx context.Context, sqlQuery string, params []any) (int64, error) {
	return 0, errors.New("connection reset by peer")
}

// stubExecutor answers Query with canned column metadata and rows, recording
// the statements it receives.
type stubExecutor struct {
	dialect datasource.Dialect
	columns []datasource.ColumnInfo
	data    [][]any
	err     error
	queries []string
}

func (e *stubExecutor) TestConnection(ctx context.Context) error { return nil }
func (e *stubExecutor) Close() error                             { return nil }
func (e *stubExecutor) Dialect() datasource.Dialect              { return e.dialect }

func (e *stubExecutor) Query(ctx context.Context, sqlQuery string, params []any) (datasource.Rows, error) {
	e.queries = append(e.queries, sqlQuery)
	if e.err != nil {
		return nil, e.err
	}
	return &stubRows{columns: e.columns, data: e.data, pos: -1}, nil
}

func (e *stubExecutor) QueryCount(ctx context.Context, sqlQuery string, params []any) (int64, error) {
	return int64(len(e.data)), nil
}

type stubRows struct {
	columns []datasource.ColumnInfo
	data    [][]any
	pos     int
}

func (r *stubRows) Columns() []datasource.ColumnInfo { return r.columns }
func (r *stubRows) Next() bool {
	if r.pos+1 >= len(r.data) {
		return false
	}
	r.pos++
	return true
}
func (r *stubRows) Values() ([]any, error) { return r.data[r.pos], nil }
func (r *stubRows) Err() error             { return nil }
func (r *stubRows) Close() error           { return nil }
