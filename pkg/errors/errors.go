// Package errors provides structured error types for the viewgraph service.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the HTTP server
//   - Machine-readable error codes for programmatic handling
//   - Mapping of failures onto HTTP status classes
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Client-caused failures (a bad request body or a graph the layout engine
// rejects) map to 400. Contract breaches inside the pipeline map to 500.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDuplicateIdentity, "duplicate input %q", name)
//	if errors.Is(err, errors.ErrCodeDuplicateIdentity) {
//	    // Handle duplicate
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeLayoutFailure, origErr, "dot layout")
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Request body errors
	ErrCodeParseFailure        Code = "PARSE_FAILURE"
	ErrCodeMalformedInput      Code = "MALFORMED_INPUT"
	ErrCodeDuplicateIdentity   Code = "DUPLICATE_IDENTITY"
	ErrCodeUnresolvedReference Code = "UNRESOLVED_REFERENCE"

	// Layout engine errors
	ErrCodeLayoutFailure Code = "LAYOUT_FAILURE"

	// Configuration errors
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Internal errors
	ErrCodeSchemaViolation Code = "SCHEMA_VIOLATION"
	ErrCodeInternal        Code = "INTERNAL_ERROR"
	ErrCodeUnsupported     Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message (and cause) without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// IsClientError reports whether err was caused by the request rather than by
// the service.
func IsClientError(err error) bool {
	switch GetCode(err) {
	case ErrCodeParseFailure,
		ErrCodeMalformedInput,
		ErrCodeDuplicateIdentity,
		ErrCodeUnresolvedReference,
		ErrCodeLayoutFailure:
		return true
	}
	return false
}

// HTTPStatus maps an error onto the status code returned to HTTP clients.
// Errors without a code are treated as internal.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsClientError(err) {
		return http.StatusBadRequest
	}
	if Is(err, ErrCodeNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
