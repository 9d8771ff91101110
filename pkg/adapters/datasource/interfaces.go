package datasource

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR"); empty when the driver cannot report it
}

// Rows is a forward-only result cursor. Values are read one row at a time so
// callers can stream arbitrarily large results.
//
// Close must be called when done; it is safe to call more than once.
type Rows interface {
	// Columns returns the result columns in select order.
	Columns() []ColumnInfo

	// Next advances to the next row. It returns false when the result is exhausted
	// or an error occurred; check Err afterwards.
	Next() bool

	// Values returns the current row. Driver-specific values are normalized to
	// plain Go types (string, int64, float64, bool, time.Time, []byte, nil).
	Values() ([]any, error)

	Err() error
	Close() error
}

// Dialect renders the dialect-specific parts of derived report statements.
type Dialect interface {
	// Name is the registered datasource type ("postgres", "mssql", "sqlite").
	Name() string

	// PlaceholderFormat converts `?` markers (and `??` escapes) to the driver's
	// bind syntax.
	PlaceholderFormat() sq.PlaceholderFormat

	// QuoteIdentifier safely quotes a column name.
	QuoteIdentifier(name string) string

	// Paginate returns the clause that follows ORDER BY to select one page,
	// with its bind values as int64.
	Paginate(start, length int64) (string, []any)

	// LimitOne wraps query so that at most one row is returned.
	LimitOne(query string) string

	// IsTextType reports whether a column of the given type name supports
	// pattern (LIKE) matching: the character and binary families.
	IsTextType(typeName string) bool

	// LikeOperand returns the expression placed left of LIKE for an already
	// quoted column of the given type.
	LikeOperand(quotedColumn, typeName string) string
}

// ConnectionTester tests database connectivity.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	Close() error
}

// QueryExecutor runs report statements against a datasource.
// Statements use `?` placeholders already rendered through Dialect().PlaceholderFormat().
//
// Each implementation owns its connection pool and must be closed when done.
type QueryExecutor interface {
	ConnectionTester

	Dialect() Dialect

	// Query opens a forward-only cursor over a SELECT.
	// The cursor holds a pooled connection until closed.
	Query(ctx context.Context, sqlQuery string, params []any) (Rows, error)

	// QueryCount runs a statement that returns a single integer.
	QueryCount(ctx context.Context, sqlQuery string, params []any) (int64, error)
}
