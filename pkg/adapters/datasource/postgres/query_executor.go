package postgres

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
)

// QueryExecutor provides PostgreSQL query execution.
type QueryExecutor struct {
	pool      *pgxpool.Pool
	database  string
	dialect   Dialect
	ownedPool bool // true if we created the pool
}

// NewQueryExecutor opens a pool for cfg. The executor owns the pool.
func NewQueryExecutor(ctx context.Context, cfg *Config) (*QueryExecutor, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &QueryExecutor{pool: pool, database: cfg.Database, ownedPool: true}, nil
}

// NewQueryExecutorFromPool wraps an existing pool. Close does not close it.
func NewQueryExecutorFromPool(pool *pgxpool.Pool) *QueryExecutor {
	return &QueryExecutor{pool: pool}
}

func (e *QueryExecutor) Dialect() datasource.Dialect {
	return e.dialect
}

func (e *QueryExecutor) TestConnection(ctx context.Context) error {
	return testConnection(ctx, e.pool, e.database)
}

// Query opens a cursor. pgx reads rows from the wire as Next is called, so the
// result set is never buffered whole.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, params []any) (datasource.Rows, error) {
	rows, err := e.pool.Query(ctx, sqlQuery, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: fd.Name,
			Type: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}

	return &pgRows{rows: rows, columns: columns}, nil
}

func (e *QueryExecutor) QueryCount(ctx context.Context, sqlQuery string, params []any) (int64, error) {
	var n int64
	if err := e.pool.QueryRow(ctx, sqlQuery, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to execute count query: %w", err)
	}
	return n, nil
}

// Close releases the pool when the executor created it.
func (e *QueryExecutor) Close() error {
	if e.ownedPool && e.pool != nil {
		e.pool.Close()
	}
	return nil
}

type pgRows struct {
	rows    pgx.Rows
	columns []datasource.ColumnInfo
}

func (r *pgRows) Columns() []datasource.ColumnInfo {
	return r.columns
}

func (r *pgRows) Next() bool {
	return r.rows.Next()
}

func (r *pgRows) Values() ([]any, error) {
	values, err := r.rows.Values()
	if err != nil {
		return nil, fmt.Errorf("failed to read row values: %w", err)
	}
	for i, v := range values {
		values[i] = normalizeValue(v)
	}
	return values, nil
}

func (r *pgRows) Err() error {
	return r.rows.Err()
}

func (r *pgRows) Close() error {
	r.rows.Close()
	return nil
}

// normalizeValue converts pgx-specific values into plain Go values that encode
// cleanly to JSON, CSV and spreadsheet cells.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int16, int32, int64, float32, float64:
		return v
	case [16]byte:
		return uuid.UUID(val).String()
	case driver.Valuer:
		// pgtype.Numeric, pgtype.Interval, pgtype.Time and friends
		out, err := val.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		return out
	}
	return v
}

// pgTypeNameFromOID maps PostgreSQL type OIDs to human-readable type names.
// This covers the most common types; unknown types return "UNKNOWN".
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 17:
		return "BYTEA"
	case 18:
		return "CHAR"
	case 19:
		return "NAME"
	case 20:
		return "INT8"
	case 21:
		return "INT2"
	case 23:
		return "INT4"
	case 25:
		return "TEXT"
	case 26:
		return "OID"
	case 114:
		return "JSON"
	case 142:
		return "XML"
	case 700:
		return "FLOAT4"
	case 701:
		return "FLOAT8"
	case 790:
		return "MONEY"
	case 1042:
		return "BPCHAR"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1083:
		return "TIME"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1186:
		return "INTERVAL"
	case 1266:
		return "TIMETZ"
	case 1700:
		return "NUMERIC"
	case 2950:
		return "UUID"
	case 3802:
		return "JSONB"
	// Array types
	case 1000:
		return "BOOL[]"
	case 1005:
		return "INT2[]"
	case 1007:
		return "INT4[]"
	case 1016:
		return "INT8[]"
	case 1009:
		return "TEXT[]"
	case 1015:
		return "VARCHAR[]"
	case 1021:
		return "FLOAT4[]"
	case 1022:
		return "FLOAT8[]"
	case 2951:
		return "UUID[]"
	case 3807:
		return "JSONB[]"
	default:
		return "UNKNOWN"
	}
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
