package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrDefinitionRejected marks a stored report that fails the single-SELECT check.
	// Permanent; never retried.
	ErrDefinitionRejected = errors.New("report definition rejected")

	// ErrProbeFailed marks a base query that cannot be executed for column discovery.
	ErrProbeFailed = errors.New("report schema probe failed")

	ErrExecutionFailed = errors.New("report query execution failed")

	// ErrExportAborted is returned when the client goes away mid-stream.
	// It is not an application error.
	ErrExportAborted = errors.New("export aborted")
)
