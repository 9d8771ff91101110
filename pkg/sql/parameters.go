package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// parameterRegex matches {{parameter_name}} placeholders in report SQL.
// Parameter names must start with a letter or underscore, followed by any
// number of alphanumeric characters or underscores.
var parameterRegex = regexp.MustCompile(`\{\{([a-zA-Z_]\w*)\}\}`)

// ErrUndeclaredParameter indicates a placeholder with no entry in the parameter map.
var ErrUndeclaredParameter = errors.New("parameter used in SQL but not declared")

// ExtractParameters finds all {{param}} placeholders in SQL and returns
// a deduplicated list of parameter names in order of first appearance.
//
// Example:
//
//	sql := "SELECT * FROM orders WHERE tenant_id = {{tenant_id}} AND status = {{status}}"
//	params := ExtractParameters(sql)
//	// params == []string{"tenant_id", "status"}
func ExtractParameters(sqlQuery string) []string {
	matches := parameterRegex.FindAllStringSubmatch(sqlQuery, -1)
	seen := make(map[string]bool)
	var params []string

	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			params = append(params, name)
		}
	}

	return params
}

// ValidateParameterDefinitions checks that every {{param}} used in SQL is declared
// in the report's parameter map and that no placeholder sits inside a string literal.
// Declared parameters that the SQL never references are allowed.
func ValidateParameterDefinitions(sqlQuery string, params models.ParameterMap) error {
	for _, name := range ExtractParameters(sqlQuery) {
		if _, ok := params.Lookup(name); !ok {
			return fmt.Errorf("%w: {{%s}}", ErrUndeclaredParameter, name)
		}
	}

	if inStrings := FindParametersInStringLiterals(sqlQuery); len(inStrings) > 0 {
		return fmt.Errorf("parameter {{%s}} is inside a string literal", inStrings[0])
	}

	return nil
}

// FindParametersInStringLiterals checks for {{param}} placeholders that appear
// inside SQL string literals (single quotes). A bind marker inside a literal is
// plain text to the database, so the parameter would silently never apply.
//
// Example:
//
//	sql := "SELECT 'Hello {{name}}' FROM users"
//	problems := FindParametersInStringLiterals(sql)
//	// problems == []string{"name"}
func FindParametersInStringLiterals(sqlQuery string) []string {
	var problems []string
	seen := make(map[string]bool)

	inString := false
	stringStart := 0
	i := 0

	for i < len(sqlQuery) {
		ch := sqlQuery[i]

		if ch == '\'' {
			if inString {
				// Escaped quote ('')
				if i+1 < len(sqlQuery) && sqlQuery[i+1] == '\'' {
					i += 2
					continue
				}
				stringContent := sqlQuery[stringStart+1 : i]
				for _, match := range parameterRegex.FindAllStringSubmatch(stringContent, -1) {
					name := match[1]
					if !seen[name] {
						seen[name] = true
						problems = append(problems, name)
					}
				}
				inString = false
			} else {
				inString = true
				stringStart = i
			}
		}
		i++
	}

	return problems
}

// BindParameters replaces {{param}} placeholders with positional `?` markers and
// returns the rewritten SQL with the ordered bind values.
//
// Literal question marks already present in the SQL (PostgreSQL JSON operators,
// text inside literals) are escaped as `??` first, so the result can be rendered
// to any dialect's placeholder format without confusing them with bind markers.
// A placeholder used several times contributes one value per occurrence.
//
// Example:
//
//	sql := "SELECT * FROM orders WHERE tenant_id = {{tenant}} AND note ? 'x'"
//	bound, args, err := BindParameters(sql, map[string]any{"tenant": 7})
//	// bound == "SELECT * FROM orders WHERE tenant_id = ? AND note ?? 'x'"
//	// args  == []any{7}
func BindParameters(sqlQuery string, resolved map[string]any) (string, []any, error) {
	escaped := strings.ReplaceAll(sqlQuery, "?", "??")

	var (
		args       []any
		missing    string
		hasMissing bool
	)

	bound := parameterRegex.ReplaceAllStringFunc(escaped, func(match string) string {
		name := parameterRegex.FindStringSubmatch(match)[1]
		value, ok := resolved[name]
		if !ok {
			if !hasMissing {
				missing, hasMissing = name, true
			}
			return match
		}
		args = append(args, value)
		return "?"
	})

	if hasMissing {
		return "", nil, fmt.Errorf("%w: {{%s}}", ErrUndeclaredParameter, missing)
	}

	return bound, args, nil
}
