package mssql

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
)

// Dialect renders statements for SQL Server: @pN placeholders, bracketed
// identifiers, OFFSET/FETCH paging.
type Dialect struct{}

func (Dialect) Name() string {
	return "mssql"
}

func (Dialect) PlaceholderFormat() sq.PlaceholderFormat {
	return sq.AtP
}

func (Dialect) QuoteIdentifier(name string) string {
	return quoteName(name)
}

// Paginate uses OFFSET/FETCH, which requires an ORDER BY on the statement.
func (Dialect) Paginate(start, length int64) (string, []any) {
	return "OFFSET ? ROWS FETCH NEXT ? ROWS ONLY", []any{start, length}
}

func (Dialect) LimitOne(query string) string {
	return "SELECT TOP (1) * FROM (" + query + ") AS probe"
}

func (Dialect) IsTextType(typeName string) bool {
	return datasource.IsTextFamily(typeName)
}

// LikeOperand renders binary columns as hex text; SQL Server rejects LIKE on
// VARBINARY and IMAGE operands (error 8116).
func (Dialect) LikeOperand(quotedColumn, typeName string) string {
	if datasource.IsBinaryType(typeName) {
		return "CONVERT(VARCHAR(MAX), " + quotedColumn + ", 2)"
	}
	return quotedColumn
}

var _ datasource.Dialect = Dialect{}
