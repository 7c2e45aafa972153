package models

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error codes used across the dashboard API. They appear in the "code" field of
// error payloads and are what errors.Is compares on.
const (
	CodeAuthentication  = "authentication_error"
	CodeUpstream        = "upstream_error"
	CodeUpstreamTimeout = "upstream_timeout"
	CodeValidation      = "validation_error"
	CodeNotFound        = "not_found"
	CodeInternal        = "internal_error"
)

// APIError is the error taxonomy shared by the upstream clients, the metrics
// service and the HTTP handlers. StatusCode decides how the error is surfaced.
type APIError struct {
	// Code is one of the Code* constants.
	Code string `json:"code"`
	// Description is a human-readable explanation. For upstream errors it carries
	// the vendor message when one was returned.
	Description string `json:"error"`
	// Fields holds per-parameter problems for validation errors.
	Fields ValidationErrors `json:"fields,omitempty"`
	// StatusCode is the HTTP status code to return (excluded from JSON).
	StatusCode int `json:"-"`
}

// NewAuthenticationError reports a failed upstream login or SSO ticket validation.
// Returns HTTP 401 Unauthorized.
func NewAuthenticationError(description string) *APIError {
	return &APIError{
		Code:        CodeAuthentication,
		Description: description,
		StatusCode:  http.StatusUnauthorized,
	}
}

// NewUpstreamError reports a non-success response or a malformed payload from a
// vendor API. Returns HTTP 500 Internal Server Error.
func NewUpstreamError(description string) *APIError {
	return &APIError{
		Code:        CodeUpstream,
		Description: description,
		StatusCode:  http.StatusInternalServerError,
	}
}

// NewUpstreamTimeout reports an upstream call that exceeded its deadline.
// Returns HTTP 504 Gateway Timeout.
func NewUpstreamTimeout(description string) *APIError {
	return &APIError{
		Code:        CodeUpstreamTimeout,
		Description: description,
		StatusCode:  http.StatusGatewayTimeout,
	}
}

// NewValidationError reports a single missing or malformed request parameter.
// Returns HTTP 400 Bad Request.
func NewValidationError(field, message string) *APIError {
	return NewValidationFailure(ValidationErrors{{Field: field, Message: message}})
}

// NewValidationFailure wraps a collection of field errors.
func NewValidationFailure(errs ValidationErrors) *APIError {
	return &APIError{
		Code:        CodeValidation,
		Description: errs.Error(),
		Fields:      errs,
		StatusCode:  http.StatusBadRequest,
	}
}

// NewNotFoundError reports a job or entity the upstream system does not know.
// Returns HTTP 404 Not Found.
func NewNotFoundError(description string) *APIError {
	return &APIError{
		Code:        CodeNotFound,
		Description: description,
		StatusCode:  http.StatusNotFound,
	}
}

// Error returns a string representation of the error.
func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// Is reports whether target is an APIError with the same code, so that
// errors.Is(err, ErrNotFound) matches any not-found error.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDescription replaces the description and returns the same instance.
func (e *APIError) WithDescription(description string) *APIError {
	e.Description = description
	return e
}

var (
	// ErrAuthenticationFailed matches any authentication error.
	ErrAuthenticationFailed = &APIError{Code: CodeAuthentication, StatusCode: http.StatusUnauthorized}

	// ErrUpstream matches any upstream error.
	ErrUpstream = &APIError{Code: CodeUpstream, StatusCode: http.StatusInternalServerError}

	// ErrUpstreamTimeout matches any upstream timeout.
	ErrUpstreamTimeout = &APIError{Code: CodeUpstreamTimeout, StatusCode: http.StatusGatewayTimeout}

	// ErrValidation matches any validation error.
	ErrValidation = &APIError{Code: CodeValidation, StatusCode: http.StatusBadRequest}

	// ErrNotFound matches any not-found error.
	ErrNotFound = &APIError{Code: CodeNotFound, StatusCode: http.StatusNotFound}
)

// StatusCode maps any error to the HTTP status it should be surfaced with.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	if IsTimeout(err) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message that is safe to show to callers.
// Authentication failures never echo upstream detail.
func PublicMessage(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if IsTimeout(err) {
			return "Upstream request timed out"
		}
		return "Internal server error"
	}
	switch apiErr.Code {
	case CodeAuthentication:
		return "Authentication failed"
	case CodeUpstreamTimeout:
		return "Upstream request timed out"
	}
	if apiErr.Description == "" {
		return apiErr.Code
	}
	return apiErr.Description
}

// IsTimeout reports whether err is a context deadline or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error returns a string representation of the validation error in the format
// "field: message".
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of field validation errors.
type ValidationErrors []ValidationError

// Error returns a string representation of the validation errors.
// If there are no errors, it returns "validation failed".
// If there is one error, it returns that error's message.
// If there are multiple errors, it returns a summary with the count.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("validation failed with %d errors", len(e))
}

// HasErrors returns true if there are one or more validation errors in the collection.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Add appends a field error.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}
