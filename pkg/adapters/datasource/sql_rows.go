package datasource

import (
	"database/sql"
	"fmt"
	"strings"
)

// binaryTypes are the canonical binary type names. They are text-searchable but
// their values stay []byte.
var binaryTypes = map[string]bool{
	"BYTEA":     true,
	"BLOB":      true,
	"BINARY":    true,
	"VARBINARY": true,
	"IMAGE":     true,
}

var characterTypes = map[string]bool{
	"CHAR":     true,
	"VARCHAR":  true,
	"TEXT":     true,
	"BPCHAR":   true,
	"NAME":     true,
	"CITEXT":   true,
	"NCHAR":    true,
	"NVARCHAR": true,
	"NTEXT":    true,
	"CLOB":     true,
}

// BaseTypeName upper-cases a type name and strips any length or precision suffix,
// so "varchar(255)" becomes "VARCHAR".
func BaseTypeName(typeName string) string {
	name := strings.ToUpper(strings.TrimSpace(typeName))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return name
}

// IsCharacterType reports whether typeName is in the character family.
func IsCharacterType(typeName string) bool {
	return characterTypes[BaseTypeName(typeName)]
}

// IsBinaryType reports whether typeName is in the binary family.
func IsBinaryType(typeName string) bool {
	return binaryTypes[BaseTypeName(typeName)]
}

// IsTextFamily reports whether typeName is a character or binary type.
func IsTextFamily(typeName string) bool {
	return IsCharacterType(typeName) || IsBinaryType(typeName)
}

// ValueNormalizer converts a driver value of the given column type to a plain Go value.
type ValueNormalizer func(typeName string, v any) any

// DefaultNormalizer turns []byte of character columns into strings.
func DefaultNormalizer(typeName string, v any) any {
	if b, ok := v.([]byte); ok && IsCharacterType(typeName) {
		return string(b)
	}
	return v
}

// sqlRows adapts *sql.Rows to Rows for database/sql based adapters.
type sqlRows struct {
	rows      *sql.Rows
	columns   []ColumnInfo
	normalize ValueNormalizer
	closed    bool
}

// NewSQLRows wraps rows. mapType converts driver type names to canonical names;
// when the driver cannot report column types, Type is left empty.
func NewSQLRows(rows *sql.Rows, mapType func(string) string, normalize ValueNormalizer) (Rows, error) {
	names, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	columns := make([]ColumnInfo, len(names))
	for i, name := range names {
		columns[i] = ColumnInfo{Name: name}
	}

	if types, err := rows.ColumnTypes(); err == nil && len(types) == len(names) {
		for i, ct := range types {
			dbType := ct.DatabaseTypeName()
			if dbType != "" && mapType != nil {
				dbType = mapType(dbType)
			}
			columns[i].Type = dbType
		}
	}

	if normalize == nil {
		normalize = DefaultNormalizer
	}

	return &sqlRows{rows: rows, columns: columns, normalize: normalize}, nil
}

func (r *sqlRows) Columns() []ColumnInfo {
	return r.columns
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

func (r *sqlRows) Values() ([]any, error) {
	values := make([]any, len(r.columns))
	ptrs := make([]any, len(r.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	for i, v := range values {
		if v != nil {
			values[i] = r.normalize(r.columns[i].Type, v)
		}
	}
	return values, nil
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

func (r *sqlRows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rows.Close()
}
