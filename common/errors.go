package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the service-wide error type. Every failure that can surface
// to a client carries an HTTP-compatible code, a human-readable message,
// and optional structured details. The HTTP layer renders these as the
// uniform error body; the realtime layer forwards the message field.
type AppError struct {
	Code    int                    `json:"code"`
	Message string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// WithDetails attaches a structured detail field and returns the error for
// chaining.
func (e *AppError) WithDetails(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Constructors for the error taxonomy. Codes double as HTTP status codes.

func BadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func Forbidden(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Message: msg}
}

func NotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func Conflict(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg}
}

func Validation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg}
}

func TooManyRequests(msg string) *AppError {
	return &AppError{Code: http.StatusTooManyRequests, Message: msg}
}

func Internal(msg string) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg}
}

func Unavailable(msg string) *AppError {
	return &AppError{Code: http.StatusServiceUnavailable, Message: msg}
}

// AsAppError unwraps err into an *AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code for err, defaulting to 500 for errors
// that did not originate in the service.
func CodeOf(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
