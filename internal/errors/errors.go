// Package errors provides the coded error type used across the service.
// Handlers map codes to HTTP statuses; services never inspect message text.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInvalidState = "INVALID_STATE"
	ErrCodeValidation   = "VALIDATION"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeOverrun      = "OVERRUN"
	ErrCodeInternal     = "INTERNAL"
)

// Error is a coded error. Field is set for validation failures so the
// caller can identify the offending payload field.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound reports that a resource does not exist.
func NotFound(resource, id string) *Error {
	return Newf(ErrCodeNotFound, "%s %q not found", resource, id)
}

// InvalidInput reports a malformed or missing payload field.
func InvalidInput(field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Message: message, Field: field}
}

// InvalidState reports a transition attempted from a state that does
// not permit it.
func InvalidState(transition, current string) *Error {
	return Newf(ErrCodeInvalidState, "cannot %s from status %q", transition, current)
}

// Forbidden reports that the caller does not satisfy a role or
// department guard.
func Forbidden(message string) *Error {
	return New(ErrCodeForbidden, message)
}

// Overrun reports a disbursement that would exceed the sanctioned amount.
func Overrun(requested, remaining int64) *Error {
	return Newf(ErrCodeOverrun, "installment of %d exceeds remaining balance %d", requested, remaining)
}

// CodeOf returns the code of err, or ErrCodeInternal when err carries none.
func CodeOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps an error code to an HTTP status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeInvalidState, ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeOverrun:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
