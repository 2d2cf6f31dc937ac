package errors

import (
	"errors"
	"fmt"
)

// Class buckets an error into the orchestrator's taxonomy. The class
// decides how far an error propagates: everything except Structural is
// caught at the per-resource boundary and converted into a decision.
type Class string

const (
	// ClassTransient covers management-API errors worth retrying
	// (catalog queries, tag updates). Exhausted retries degrade to a
	// skip, never an abort.
	ClassTransient Class = "TRANSIENT"

	// ClassBackup covers failed backup attempts. Blocks deletion of the
	// affected resource when data preservation is active.
	ClassBackup Class = "BACKUP"

	// ClassDeletionRejected covers rejected deletion requests
	// (permission denied, invalid state). Recorded as a failed decision.
	ClassDeletionRejected Class = "DELETION_REJECTED"

	// ClassStructural covers failures that make the run itself
	// impossible: unreachable catalog, failed authentication, report
	// write failure. Fatal, non-zero exit.
	ClassStructural Class = "STRUCTURAL"
)

// AppError carries the taxonomy class alongside the underlying error.
type AppError struct {
	Class    Class
	Message  string
	Internal error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Transient wraps a retryable management-API error.
func Transient(message string, err error) *AppError {
	return &AppError{Class: ClassTransient, Message: message, Internal: err}
}

// Backup wraps a failed backup attempt.
func Backup(message string, err error) *AppError {
	return &AppError{Class: ClassBackup, Message: message, Internal: err}
}

// DeletionRejected wraps a rejected deletion request.
func DeletionRejected(message string, err error) *AppError {
	return &AppError{Class: ClassDeletionRejected, Message: message, Internal: err}
}

// Structural wraps a run-fatal failure.
func Structural(message string, err error) *AppError {
	return &AppError{Class: ClassStructural, Message: message, Internal: err}
}

// ClassOf returns the class of err, or empty when err carries none.
func ClassOf(err error) Class {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Class
	}
	return ""
}

// IsStructural reports whether err is fatal to the whole run.
func IsStructural(err error) bool {
	return ClassOf(err) == ClassStructural
}
