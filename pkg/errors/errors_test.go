package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeMalformedInput, "test message: %s", "value")

	if err.Code != ErrCodeMalformedInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeMalformedInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "MALFORMED_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeLayoutFailure, cause, "dot layout")

	if err.Code != ErrCodeLayoutFailure {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeLayoutFailure)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeDuplicateIdentity, "test"),
			code:     ErrCodeDuplicateIdentity,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeDuplicateIdentity, "test"),
			code:     ErrCodeUnresolvedReference,
			expected: false,
		},
		{
			name:     "wrapped with fmt",
			err:      fmt.Errorf("build: %w", New(ErrCodeUnresolvedReference, "inner")),
			code:     ErrCodeUnresolvedReference,
			expected: true,
		},
		{
			name:     "outer code wins",
			err:      Wrap(ErrCodeLayoutFailure, New(ErrCodeMalformedInput, "inner"), "outer"),
			code:     ErrCodeLayoutFailure,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeMalformedInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeMalformedInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeSchemaViolation, "x")); got != ErrCodeSchemaViolation {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeSchemaViolation)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode() = %v, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"structured", New(ErrCodeMalformedInput, "missing nodes"), "missing nodes"},
		{"structured with cause", Wrap(ErrCodeLayoutFailure, errors.New("cycle"), "layered layout"), "layered layout: cycle"},
		{"plain", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"parse", New(ErrCodeParseFailure, "x"), http.StatusBadRequest},
		{"malformed", New(ErrCodeMalformedInput, "x"), http.StatusBadRequest},
		{"duplicate", New(ErrCodeDuplicateIdentity, "x"), http.StatusBadRequest},
		{"unresolved", New(ErrCodeUnresolvedReference, "x"), http.StatusBadRequest},
		{"layout", New(ErrCodeLayoutFailure, "x"), http.StatusBadRequest},
		{"not found", New(ErrCodeNotFound, "x"), http.StatusNotFound},
		{"schema", New(ErrCodeSchemaViolation, "x"), http.StatusInternalServerError},
		{"plain", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
