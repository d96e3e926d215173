package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Codes rendered in the error envelope. One per failure kind.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeValidation   = "VALIDATION_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInternal     = "INTERNAL_ERROR"
	CodeTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeUnsupported  = "UNSUPPORTED_MEDIA_TYPE"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Wrap attaches the underlying cause so errors.Is keeps working across the
// translation into an API error.
func Wrap(err error, code string, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: status, cause: err}
}

func Unauthorized(message string) *APIError {
	return New(CodeUnauthorized, message, "", http.StatusUnauthorized)
}

func Forbidden(message string) *APIError {
	return New(CodeForbidden, message, "", http.StatusForbidden)
}

func NotFound(resource string) *APIError {
	return New(CodeNotFound, resource+" not found", "", http.StatusNotFound)
}

func Conflict(field string) *APIError {
	return New(CodeConflict, field+" already exists", field, http.StatusConflict)
}

func Validation(message string, details string) *APIError {
	return New(CodeValidation, message, details, http.StatusBadRequest)
}

func BadRequest(message string, details string) *APIError {
	return New(CodeBadRequest, message, details, http.StatusBadRequest)
}

func TooLarge(message string, details string) *APIError {
	return New(CodeTooLarge, message, details, http.StatusRequestEntityTooLarge)
}

func Unsupported(message string, details string) *APIError {
	return New(CodeUnsupported, message, details, http.StatusUnsupportedMediaType)
}

func Unavailable(service string) *APIError {
	return New(CodeUnavailable, service+" is currently unavailable", "", http.StatusServiceUnavailable)
}

func Internal(operation string) *APIError {
	return New(CodeInternal, operation+": operation failed", "", http.StatusInternalServerError)
}

// CodeOf reports the API code carried by err, or CodeInternal for anything
// that was never classified.
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return CodeInternal
}
