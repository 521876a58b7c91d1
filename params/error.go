// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package params

// ErrorCode holds the class of an error in machine-readable format.
// An ErrorCode can be used directly as an error cause.
type ErrorCode string

func (code ErrorCode) Error() string {
	return string(code)
}

// ErrorCode implements the errorCoder interface used by the server to
// choose a response status.
func (code ErrorCode) ErrorCode() ErrorCode {
	return code
}

const (
	ErrBadRequest          ErrorCode = "bad request"
	ErrUnauthorized        ErrorCode = "unauthorized"
	ErrForbidden           ErrorCode = "forbidden"
	ErrNotFound            ErrorCode = "not found"
	ErrMethodNotAllowed    ErrorCode = "method not allowed"
	ErrInternalServerError ErrorCode = "internal server error"
	ErrBadGateway          ErrorCode = "bad gateway"
	ErrServiceUnavailable  ErrorCode = "service unavailable"
)

// Error represents an error returned from the API. Message is
// rendered verbatim from the condition that caused the failure.
type Error struct {
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message"`
}

// Error implements error.Error.
func (e *Error) Error() string {
	return e.Message
}

// ErrorCode returns the error's code.
func (e *Error) ErrorCode() ErrorCode {
	return e.Code
}
