// Package errs provides types and support related to web error functionality.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an API error for transport mapping.
type Code int

const (
	OK Code = iota
	Internal
	InvalidArgument
	NotFound
	FailedPrecondition
	Conflict
)

// Error is the form used by the API layer to surface failures to clients.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// New constructs an error based on an app error.
func New(code Code, err error) *Error {
	return &Error{Code: code, Message: err.Error()}
}

// Newf constructs an error based on an error format string.
func Newf(code Code, format string, v ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, v...)}
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// HTTPStatus maps the error code onto an HTTP status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case FailedPrecondition, Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsError tests whether err is (or wraps) an *Error.
func IsError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// GetError extracts the *Error from err, or wraps it as Internal.
func GetError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(Internal, err)
}
