package postgres

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
)

// Dialect renders statements for PostgreSQL: $n placeholders, double-quoted
// identifiers, LIMIT/OFFSET paging.
type Dialect struct{}

func (Dialect) Name() string {
	return "postgres"
}

func (Dialect) PlaceholderFormat() sq.PlaceholderFormat {
	return sq.Dollar
}

// QuoteIdentifier uses PostgreSQL's standard double-quote quoting.
func (Dialect) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (Dialect) Paginate(start, length int64) (string, []any) {
	return "LIMIT ? OFFSET ?", []any{length, start}
}

func (Dialect) LimitOne(query string) string {
	return "SELECT * FROM (" + query + ") AS probe LIMIT 1"
}

// IsTextType accepts TEXT, VARCHAR, BPCHAR, CHAR, NAME and BYTEA. Array, JSON
// and UNKNOWN (enums, domains, extension types) are excluded because LIKE is not
// defined for them.
func (Dialect) IsTextType(typeName string) bool {
	return datasource.IsTextFamily(typeName)
}

func (Dialect) LikeOperand(quotedColumn, _ string) string {
	return quotedColumn
}

var _ datasource.Dialect = Dialect{}
