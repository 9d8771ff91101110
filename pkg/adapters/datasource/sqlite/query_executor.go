package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
)

// QueryExecutor provides SQLite query execution.
type QueryExecutor struct {
	db      *sql.DB
	dialect Dialect
	ownedDB bool
}

// buildDSN appends driver pragmas to the file path. Read-only mode needs the
// file: URI form because the driver drops query parameters from plain paths.
func buildDSN(cfg *Config) string {
	dsn := cfg.Path
	query := url.Values{}
	if cfg.ReadOnly && cfg.Path != ":memory:" {
		dsn = "file:" + cfg.Path
		query.Add("mode", "ro")
	}
	if cfg.BusyTimeoutMs > 0 {
		query.Add("_pragma", "busy_timeout("+strconv.Itoa(cfg.BusyTimeoutMs)+")")
	}
	if len(query) == 0 {
		return dsn
	}
	return dsn + "?" + query.Encode()
}

// NewQueryExecutor opens the database file described by cfg. The executor owns it.
func NewQueryExecutor(ctx context.Context, cfg *Config) (*QueryExecutor, error) {
	db, err := sql.Open("sqlite", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	e := &QueryExecutor{db: db, ownedDB: true}
	if err := e.TestConnection(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

// NewQueryExecutorFromDB wraps an existing *sql.DB opened with the "sqlite"
// driver. Close does not close it.
func NewQueryExecutorFromDB(db *sql.DB) *QueryExecutor {
	return &QueryExecutor{db: db}
}

func (e *QueryExecutor) Dialect() datasource.Dialect {
	return e.dialect
}

func (e *QueryExecutor) TestConnection(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var result int
	if err := e.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, params []any) (datasource.Rows, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return datasource.NewSQLRows(rows, datasource.BaseTypeName, normalizeValue)
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

// normalizeValue turns []byte values of TEXT-affinity columns into strings.
func normalizeValue(typeName string, v any) any {
	if b, ok := v.([]byte); ok && hasTextAffinity(typeName) {
		return string(b)
	}
	return v
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
