package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

const (
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrValidation    ErrorCode = "VALIDATION"
	ErrTimeout       ErrorCode = "TIMEOUT"
	ErrRateLimit     ErrorCode = "RATE_LIMIT"
	ErrUnavailable   ErrorCode = "UNAVAILABLE"
	ErrInvocation    ErrorCode = "INVOCATION"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// NewNotFoundError creates a terminal resolution error.
func NewNotFoundError(entity, id string) *Error {
	return NewError(ErrNotFound, fmt.Sprintf("%s %q not found", entity, id))
}

// NewValidationError creates a non-retryable caller error.
func NewValidationError(message string) *Error {
	return NewError(ErrValidation, message)
}

// NewTimeoutError creates a retryable timeout error.
func NewTimeoutError(message string) *Error {
	return NewError(ErrTimeout, message).WithRetryable(true)
}

// NewRateLimitError creates a retryable rate-limit error.
func NewRateLimitError(message string) *Error {
	return NewError(ErrRateLimit, message).WithRetryable(true)
}

// NewUnavailableError creates a retryable infrastructure error.
func NewUnavailableError(message string) *Error {
	return NewError(ErrUnavailable, message).WithRetryable(true)
}

// WrapError wraps err in an *Error with the given code.
func WrapError(code ErrorCode, message string, err error) *Error {
	return NewError(code, message).WithCause(err)
}

// AsError extracts an *Error from err's chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	if e := AsError(err); e != nil {
		return e.Code == code
	}
	return false
}

// IsRetryable checks if an error is marked transient. Errors outside the
// structured taxonomy are conservatively treated as non-retryable here;
// retry policies that want to retry everything use their own predicate.
func IsRetryable(err error) bool {
	if e := AsError(err); e != nil {
		return e.Retryable
	}
	return false
}

// IsNotFound reports whether err is a resolution error.
func IsNotFound(err error) bool {
	return IsErrorCode(err, ErrNotFound)
}
