package protocol

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeTooLarge        = "REQUEST_TOO_LARGE"
	CodeRateLimited     = "TOO_MANY_REQUESTS"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
	CodeGatewayTimeout  = "GATEWAY_TIMEOUT"
	CodeInvalidEnvelope = "INVALID_ENVELOPE"
)

// ErrorBody is the JSON document written for a failed request.
type ErrorBody struct {
	Error *Error `json:"error"`
}

// Error is a failure that knows which HTTP status it should be reported with.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("caffe: %s (status: %d)", e.Message, e.Status)
}

// Is implements errors.Is comparison by status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == t.Status
}

// WithData returns a copy of the error with additional data attached.
func (e *Error) WithData(data any) *Error {
	return &Error{
		Status:  e.Status,
		Code:    e.Code,
		Message: e.Message,
		Data:    data,
	}
}

// NewError creates an error reported with status.
func NewError(status int, code, msg string) *Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Status: status, Code: code, Message: msg}
}

// NewBadRequest creates a 400 error.
func NewBadRequest(msg string) *Error {
	return NewError(http.StatusBadRequest, CodeBadRequest, msg)
}

// NewUnauthorized creates a 401 error.
func NewUnauthorized(msg string) *Error {
	return NewError(http.StatusUnauthorized, CodeUnauthorized, msg)
}

// NewForbidden creates a 403 error.
func NewForbidden(msg string) *Error {
	return NewError(http.StatusForbidden, CodeForbidden, msg)
}

// NewNotFound creates a 404 error.
func NewNotFound(msg string) *Error {
	return NewError(http.StatusNotFound, CodeNotFound, msg)
}

// NewRequestTooLarge creates a 413 error.
func NewRequestTooLarge(msg string) *Error {
	return NewError(http.StatusRequestEntityTooLarge, CodeTooLarge, msg)
}

// NewTooManyRequests creates a 429 error.
func NewTooManyRequests(msg string) *Error {
	return NewError(http.StatusTooManyRequests, CodeRateLimited, msg)
}

// NewInternalError creates a 500 error.
func NewInternalError(msg string) *Error {
	return NewError(http.StatusInternalServerError, CodeInternalError, msg)
}

// NewUnavailable creates a 503 error.
func NewUnavailable(msg string) *Error {
	return NewError(http.StatusServiceUnavailable, CodeUnavailable, msg)
}

// NewGatewayTimeout creates a 504 error.
func NewGatewayTimeout(msg string) *Error {
	return NewError(http.StatusGatewayTimeout, CodeGatewayTimeout, msg)
}

// NewInvalidEnvelope creates a 400 error for a malformed envelope.
func NewInvalidEnvelope(msg string) *Error {
	return NewError(http.StatusBadRequest, CodeInvalidEnvelope, msg)
}

// StatusOf returns the status err should be reported with: the status of
// the first *Error in its chain, or 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// AsError returns the *Error in err's chain, or a 500 error that hides the
// original message.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewInternalError("")
}
