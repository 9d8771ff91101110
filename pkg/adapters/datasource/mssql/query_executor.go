package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
)

// QueryExecutor provides SQL Server query execution.
type QueryExecutor struct {
	db       *sql.DB
	database string
	dialect  Dialect
	ownedDB  bool
}

// NewQueryExecutor opens a connection pool for cfg. The executor owns it.
func NewQueryExecutor(ctx context.Context, cfg *Config) (*QueryExecutor, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := testConnection(ctx, db, cfg.Database); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to SQL Server: %w", err)
	}
	return &QueryExecutor{db: db, database: cfg.Database, ownedDB: true}, nil
}

// NewQueryExecutorFromDB wraps an existing *sql.DB. Close does not close it.
func NewQueryExecutorFromDB(db *sql.DB) *QueryExecutor {
	return &QueryExecutor{db: db}
}

func (e *QueryExecutor) Dialect() datasource.Dialect {
	return e.dialect
}

func (e *QueryExecutor) TestConnection(ctx context.Context) error {
	return testConnection(ctx, e.db, e.database)
}

// Query opens a cursor over the result set. Rows are read from the TDS stream
// as Next is called.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, params []any) (datasource.Rows, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return datasource.NewSQLRows(rows, mapSQLServerType, normalizeValue)
}

func (e *QueryExecutor) QueryCount(ctx context.Context, sqlQuery string, params []any) (int64, error) {
	var n int64
	if err := e.db.QueryRowContext(ctx, sqlQuery, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to execute count query: %w", err)
	}
	return n, nil
}

func (e *QueryExecutor) Close() error {
	if e.ownedDB && e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
