package models

import "fmt"

// ErrorKind identifies the category of a task failure.
type ErrorKind string

const (
	// Malformed style, script or template source
	ErrSyntax ErrorKind = "syntax"

	// Template rule violations
	ErrLint ErrorKind = "lint"

	// Missing sources, permission denied, failed writes
	ErrFilesystem ErrorKind = "filesystem"

	// Catch-all
	ErrInternal ErrorKind = "internal"
)

// TaskError is returned by a task that failed. Err carries the underlying
// tool or filesystem message unchanged.
type TaskError struct {
	Task string
	Kind ErrorKind
	Err  error
}

// NewTaskError wraps err for the named task.
func NewTaskError(task string, kind ErrorKind, err error) *TaskError {
	return &TaskError{Task: task, Kind: kind, Err: err}
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Task, e.Kind, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
