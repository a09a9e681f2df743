// Package errors provides structured error types for fleet.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Code identifies an error class. Components match on codes, not messages.
type Code string

// Error codes for fleet.
const (
	// Registry errors — fatal, the process exits with a config error.
	CodeRegistryNotFound  Code = "REGISTRY_NOT_FOUND"
	CodeRegistryMalformed Code = "REGISTRY_MALFORMED"

	// Task file errors — non-fatal, the offending file or task is skipped.
	CodeParseError  Code = "PARSE_ERROR"
	CodeSchemaError Code = "SCHEMA_ERROR"

	// Task lookup and lifecycle errors.
	CodeTaskNotFound       Code = "TASK_NOT_FOUND"
	CodeTaskAlreadyRunning Code = "TASK_ALREADY_RUNNING"
	CodeInvalidStatus      Code = "INVALID_STATUS"

	// Executor errors.
	CodeSpawnError      Code = "SPAWN_ERROR"
	CodeExecutorFailure Code = "EXECUTOR_FAILURE"

	// Bridge errors — accumulated per operation, never abort a batch.
	CodeTrackerError Code = "TRACKER_ERROR"

	// Scanner strict mode.
	CodeScanFailed Code = "SCAN_FAILED"
)

// FleetError is the structured error type for fleet.
type FleetError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *FleetError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *FleetError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a FleetError with the same code.
func (e *FleetError) Is(target error) bool {
	t, ok := target.(*FleetError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// UserMessage returns a message suitable for CLI output.
func (e *FleetError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// HasCode reports whether err (or anything it wraps) is a FleetError with
// the given code.
func HasCode(err error, code Code) bool {
	var fe *FleetError
	if stderrors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// --- Error constructors ---

// ErrRegistryNotFound indicates the projects registry file is missing.
func ErrRegistryNotFound(path string) *FleetError {
	return &FleetError{
		Code: CodeRegistryNotFound,
		What: fmt.Sprintf("project registry not found at %s", path),
		Why:  "The workspace has no projects.json",
		Fix:  "Create projects.json in the workspace root, or pass --workspace",
	}
}

// ErrRegistryMalformed indicates the registry file could not be parsed or
// failed validation.
func ErrRegistryMalformed(path string, cause error) *FleetError {
	return &FleetError{
		Code:  CodeRegistryMalformed,
		What:  fmt.Sprintf("project registry %s is malformed", path),
		Why:   "The registry must be valid JSON with unique project names and known statuses",
		Fix:   "Fix the reported field and re-run",
		Cause: cause,
	}
}

// ErrParse indicates a task file that is not valid JSON.
func ErrParse(path string, cause error) *FleetError {
	return &FleetError{
		Code:  CodeParseError,
		What:  fmt.Sprintf("cannot parse task file %s", path),
		Cause: cause,
	}
}

// ErrSchema indicates a task file whose outer shape is invalid.
func ErrSchema(path, field string, cause error) *FleetError {
	return &FleetError{
		Code:  CodeSchemaError,
		What:  fmt.Sprintf("task file %s has an invalid %s", path, field),
		Cause: cause,
	}
}

// ErrTaskNotFound indicates a task id that resolves to nothing.
func ErrTaskNotFound(id string) *FleetError {
	return &FleetError{
		Code: CodeTaskNotFound,
		What: fmt.Sprintf("task %s not found", id),
		Why:  "No task with this id exists in any registered project",
		Fix:  "Run 'fleet scan' to list known tasks",
	}
}

// ErrTaskAlreadyRunning indicates an in_progress task was asked to start
// again. Exactly one worker may run per task id.
func ErrTaskAlreadyRunning(id string) *FleetError {
	return &FleetError{
		Code: CodeTaskAlreadyRunning,
		What: fmt.Sprintf("task %s is already in progress", id),
		Why:  "A worker is (or was) running this task and its terminal status has not been recorded",
		Fix:  "Wait for the running worker, or reset the task status manually",
	}
}

// ErrInvalidStatus indicates a status value outside the closed enumeration.
func ErrInvalidStatus(status string) *FleetError {
	return &FleetError{
		Code: CodeInvalidStatus,
		What: fmt.Sprintf("invalid task status %q", status),
		Why:  "Status must be one of pending, in_progress, completed, failed, blocked",
	}
}

// ErrSpawn indicates the worker subprocess could not be started.
func ErrSpawn(cmd string, cause error) *FleetError {
	return &FleetError{
		Code:  CodeSpawnError,
		What:  fmt.Sprintf("cannot spawn worker %q", cmd),
		Fix:   "Check that the worker command is installed and on PATH",
		Cause: cause,
	}
}

// ErrTracker wraps a remote issue-tracker failure for a single operation.
func ErrTracker(op string, cause error) *FleetError {
	return &FleetError{
		Code:  CodeTrackerError,
		What:  fmt.Sprintf("tracker %s failed", op),
		Cause: cause,
	}
}

// ErrScanFailed aggregates scanner diagnostics in strict mode.
func ErrScanFailed(errs, warnings int) *FleetError {
	return &FleetError{
		Code: CodeScanFailed,
		What: fmt.Sprintf("scan failed in strict mode: %d error(s), %d warning(s)", errs, warnings),
		Fix:  "Fix the reported task files, or scan without --strict",
	}
}
