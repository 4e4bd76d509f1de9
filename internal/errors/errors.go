package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a leetsync error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrNotReady          ErrorCode = "NOT_READY"          // 404 (detail never materialized)
	ErrRepoNotFound      ErrorCode = "REPO_NOT_FOUND"     // 404 on write
	ErrMalformedResponse ErrorCode = "MALFORMED_RESPONSE" // 502
	ErrUpstream          ErrorCode = "UPSTREAM"           // 502
	ErrInternal          ErrorCode = "INTERNAL"           // 500
)

// SyncError represents a structured error with code, status, and details.
type SyncError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid parameters or configuration.
func NewInvalidRequest(msg string) *SyncError {
	return &SyncError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a resource that does not exist.
func NewNotFound(kind, identifier string) *SyncError {
	return &SyncError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewNotReady creates a 404 error for a submission detail that never materialized.
func NewNotReady(submissionID string, attempts int) *SyncError {
	return &SyncError{
		Code:    ErrNotReady,
		Status:  404,
		Message: fmt.Sprintf("submission %s not available after %d attempts", submissionID, attempts),
		Details: map[string]any{"submission_id": submissionID, "attempts": attempts},
	}
}

// NewRepoNotFound creates a 404 error for a write against a missing repository.
func NewRepoNotFound(repo string) *SyncError {
	return &SyncError{
		Code:    ErrRepoNotFound,
		Status:  404,
		Message: fmt.Sprintf("repository not found: %s", repo),
		Details: map[string]any{"repo": repo},
	}
}

// NewMalformedResponse creates a 502 error for an unexpected response shape.
func NewMalformedResponse(operation string, cause error) *SyncError {
	msg := fmt.Sprintf("unexpected response format from %s", operation)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &SyncError{
		Code:    ErrMalformedResponse,
		Status:  502,
		Message: msg,
		Details: map[string]any{"operation": operation},
		Err:     cause,
	}
}

// NewUpstream creates a 502 error for a non-success status from a remote API.
func NewUpstream(operation string, status int, body string) *SyncError {
	return &SyncError{
		Code:    ErrUpstream,
		Status:  502,
		Message: fmt.Sprintf("%s failed with status %d: %s", operation, status, body),
		Details: map[string]any{"operation": operation, "upstream_status": status},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *SyncError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &SyncError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err (or anything it wraps) is a SyncError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *SyncError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// IsNotFound reports whether err means the item is absent for this run:
// not found, never materialized, or answered with an unexpected shape.
func IsNotFound(err error) bool {
	return Is(err, ErrNotFound) || Is(err, ErrNotReady) || Is(err, ErrMalformedResponse)
}
