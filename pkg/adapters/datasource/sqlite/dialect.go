package sqlite

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
)

// questionFormat keeps `?` markers and collapses `??` escapes back to a literal `?`.
type questionFormat struct{}

func (questionFormat) ReplacePlaceholders(sql string) (string, error) {
	return strings.ReplaceAll(sql, "??", "?"), nil
}

// Dialect renders statements for SQLite: `?` placeholders, double-quoted
// identifiers, LIMIT/OFFSET paging.
type Dialect struct{}

func (Dialect) Name() string {
	return "sqlite"
}

func (Dialect) PlaceholderFormat() sq.PlaceholderFormat {
	return questionFormat{}
}

func (Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) Paginate(start, length int64) (string, []any) {
	return "LIMIT ? OFFSET ?", []any{length, start}
}

func (Dialect) LimitOne(query string) string {
	return "SELECT * FROM (" + query + ") AS probe LIMIT 1"
}

// IsTextType follows SQLite's column affinity rules: declared types containing
// CHAR, CLOB or TEXT have TEXT affinity, and BLOB columns hold raw bytes.
func (Dialect) IsTextType(typeName string) bool {
	return hasTextAffinity(typeName) || strings.Contains(strings.ToUpper(typeName), "BLOB")
}

func hasTextAffinity(typeName string) bool {
	t := strings.ToUpper(typeName)
	if strings.Contains(t, "INT") {
		return false
	}
	return strings.Contains(t, "CHAR") || strings.Contains(t, "CLOB") || strings.Contains(t, "TEXT")
}

func (Dialect) LikeOperand(quotedColumn, _ string) string {
	return quotedColumn
}

var _ datasource.Dialect = Dialect{}
