// Package errors defines the coded error taxonomy shared by the query,
// indexing and transport layers.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// NotFound indicates the target entity is absent, or a query found no impact
	NotFound ErrorCode = "NOT_FOUND"
	// Conflict indicates a rescan was requested while one is running
	Conflict ErrorCode = "CONFLICT"
	// IngestionFailure indicates a background rebuild failed
	IngestionFailure ErrorCode = "INGESTION_FAILURE"
	// InvalidParameter indicates a blank or malformed required parameter
	InvalidParameter ErrorCode = "INVALID_PARAMETER"
	// Internal indicates an unexpected error
	Internal ErrorCode = "INTERNAL_ERROR"
)

// Error is an error carrying a stable code and a user-facing message.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	cause   error
}

// New creates a coded error without a cause.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error around an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// NotFoundf returns a NOT_FOUND error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// InvalidParameterf returns an INVALID_PARAMETER error with a formatted message.
func InvalidParameterf(format string, args ...any) *Error {
	return New(InvalidParameter, fmt.Sprintf(format, args...))
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is a coded error with the same code, so that
// errors.Is(err, errors.New(NotFound, "")) matches any NOT_FOUND error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first coded error in err's chain, or
// Internal when err carries no code. A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return Internal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
