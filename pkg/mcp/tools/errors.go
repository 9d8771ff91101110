package tools

import (
	"encoding/json"
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Returning it as a successful tool result keeps the error visible to the
// agent instead of being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the caller can act on (unknown report, broken definition).
// System failures still return Go errors.
//
// Example:
//
//	if def == nil {
//	    return NewErrorResult("report_not_found", "no report with id 'monthly-sales'"), nil
//	}
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// reportErrorResult maps report service errors to tool results. It returns
// nil for failures the agent cannot fix, which the caller returns as Go errors.
func reportErrorResult(reportID string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("report_not_found", "no report with id '"+reportID+"'; call list_reports for valid ids")
	case errors.Is(err, apperrors.ErrDefinitionRejected):
		return NewErrorResult("definition_rejected", "the stored report definition is invalid and cannot be run")
	case errors.Is(err, apperrors.ErrProbeFailed):
		if code := SQLUserErrorCode(err); code != "" {
			return NewErrorResultWithDetails("probe_failed",
				"the report query could not be executed", map[string]string{"sql_error": code})
		}
		return NewErrorResult("probe_failed", "the report query could not be executed")
	}
	return nil
}

// sqlStateRegex matches PostgreSQL SQLSTATE codes in error messages like "(SQLSTATE 42601)"
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

// IsSQLUserError returns true if the error is a SQL user error (bad SQL, missing
// table, revoked grant) rather than a server error.
//
// PostgreSQL SQLSTATE class codes that indicate user errors:
//   - 22xxx: Data Exception (invalid input, division by zero)
//   - 23xxx: Integrity Constraint Violation (unique, FK, check)
//   - 42xxx: Syntax Error or Access Rule Violation
//   - 44xxx: WITH CHECK OPTION Violation
func IsSQLUserError(err error) bool {
	state := sqlState(err)
	if len(state) < 2 {
		return false
	}
	switch state[:2] {
	case "22", "23", "42", "44":
		return true
	}
	return false
}

// SQLUserErrorCode returns an error code for a SQL user error, or "" when
// err is not one.
func SQLUserErrorCode(err error) string {
	if !IsSQLUserError(err) {
		return ""
	}
	return mapSQLStateToCode(sqlState(err))
}

// sqlState finds the SQLSTATE of err, either structured or embedded in a
// wrapped message.
func sqlState(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	if matches := sqlStateRegex.FindStringSubmatch(err.Error()); len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// mapSQLStateToCode maps a SQLSTATE code to a human-readable error code.
func mapSQLStateToCode(sqlState string) string {
	switch sqlState {
	case "42601":
		return "syntax_error"
	case "42703":
		return "undefined_column"
	case "42P01":
		return "undefined_table"
	case "42501":
		return "insufficient_privilege"
	case "42883":
		return "undefined_function"
	case "22012":
		return "division_by_zero"
	case "22P02":
		return "invalid_input"
	}

	switch sqlState[:2] {
	case "22":
		return "data_exception"
	case "23":
		return "constraint_violation"
	case "44":
		return "check_option_violation"
	}
	return "sql_error"
}
