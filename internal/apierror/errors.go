// Package apierror classifies REST API failures and connectivity errors.
package apierror

import (
	"errors"
	"fmt"
)

// Error codes for structured errors.
const (
	CodeAuth    = "auth_required"
	CodeNetwork = "network"
	CodeAPI     = "api_error"
	CodeIO      = "io_error"
)

// Error is a structured error carrying everything a caller needs to react to
// a failed API call: a human-readable message, the backend error code, and
// whether the failure means the session must be refreshed.
type Error struct {
	Code              string
	Message           string
	ActionDescription string
	AuthFailure       bool
	FailureReason     string
	HTTPStatus        int
	Retryable         bool
	Cause             error
}

func (e *Error) Error() string {
	if e.ActionDescription != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.ActionDescription)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error constructors for common cases.

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:      CodeNetwork,
		Message:   "Network error",
		Retryable: true,
		Cause:     cause,
	}
}

func ErrIO(msg string, cause error) *Error {
	return &Error{
		Code:    CodeIO,
		Message: msg,
		Cause:   cause,
	}
}

func ErrAuth(msg string) *Error {
	return &Error{
		Code:        CodeAuth,
		Message:     msg,
		AuthFailure: true,
	}
}

// AsError attempts to convert an error to an *Error, wrapping unknown errors
// as generic API errors.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Code:    CodeAPI,
		Message: err.Error(),
		Cause:   err,
	}
}
