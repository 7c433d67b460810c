package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
)

// Pipeline errors. Document-scoped errors abort a run; unit and provider
// scoped ones are absorbed by the pipeline and the comparator.
var (
	ErrMalformedDocument = errors.New("malformed document")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrIndexOutOfRange   = errors.New("unit index out of range")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrCatalogLookup     = errors.New("catalog lookup failed")
	ErrNoPending         = errors.New("no pending medications for session")
)

// Admission queue errors.
var (
	ErrQueueFull   = errors.New("extraction queue is full")
	ErrQueueClosed = errors.New("extraction queue is shut down")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
