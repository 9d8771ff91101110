// Package sql provides validation and parameter binding for report base queries.
package sql

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrEmptyStatement indicates the report has no SQL.
	ErrEmptyStatement = errors.New("report SQL is empty")

	// ErrMultipleStatements indicates the query contains a statement separator.
	ErrMultipleStatements = errors.New("statement separator not allowed; only a single SELECT is permitted")

	// ErrNotSelect indicates the query does not start with SELECT.
	ErrNotSelect = errors.New("report SQL must begin with SELECT")
)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateReportSQL checks that a stored base query is a single SELECT statement.
//
// The rules are strict: after trimming whitespace the text must start with the
// SELECT keyword (any case) and must not contain a semicolon anywhere, including
// inside string literals. Base queries are wrapped as subqueries, so even a trailing
// separator would break every derived statement.
func ValidateReportSQL(sqlQuery string) ValidationResult {
	normalized := strings.TrimSpace(sqlQuery)

	if normalized == "" {
		return ValidationResult{Error: ErrEmptyStatement}
	}

	if strings.ContainsRune(normalized, ';') {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	if !startsWithSelect(normalized) {
		return ValidationResult{Error: ErrNotSelect}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// startsWithSelect reports whether the first token of s is SELECT.
// The keyword must be followed by whitespace, '(' , '*' or end of input so that
// identifiers such as "selection" are not accepted.
func startsWithSelect(s string) bool {
	const keyword = "SELECT"
	if len(s) < len(keyword) || !strings.EqualFold(s[:len(keyword)], keyword) {
		return false
	}
	if len(s) == len(keyword) {
		return true
	}
	next := rune(s[len(keyword)])
	return unicode.IsSpace(next) || next == '(' || next == '*'
}
