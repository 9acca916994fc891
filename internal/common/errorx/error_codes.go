package errorx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryPersistence    ErrorCategory = "persistence"
	CategoryInternal       ErrorCategory = "internal"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// APIError represents a structured API error
type APIError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"category"`
	Severity   Severity       `json:"severity"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// JSON returns the error as a JSON string
func (e *APIError) JSON() string {
	out, _ := json.Marshal(e)
	return string(out)
}

// clone copies the template so per-request details never leak into the shared values
func (e *APIError) clone() *APIError {
	c := *e
	c.Details = make(map[string]any, len(e.Details))
	for k, v := range e.Details {
		c.Details[k] = v
	}
	return &c
}

// WithDetail returns a copy of the error carrying an extra detail
func (e *APIError) WithDetail(key string, value any) *APIError {
	c := e.clone()
	c.Details[key] = value
	return c
}

// WithMessage returns a copy of the error with a different message
func (e *APIError) WithMessage(msg string) *APIError {
	c := e.clone()
	c.Message = msg
	return c
}

var (
	ErrInvalidInput = &APIError{
		Code:       "E4001",
		Message:    "Invalid input provided",
		Category:   CategoryValidation,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnauthorized = &APIError{
		Code:       "E4010",
		Message:    "Authentication required",
		Category:   CategoryAuthentication,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrResourceNotFound = &APIError{
		Code:       "E4040",
		Message:    "Requested resource not found",
		Category:   CategoryNotFound,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	}

	ErrInternalServer = &APIError{
		Code:       "E5001",
		Message:    "Internal server error occurred",
		Category:   CategoryInternal,
		Severity:   SeverityCritical,
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrPersistence = &APIError{
		Code:       "E5002",
		Message:    "Storage operation failed",
		Category:   CategoryPersistence,
		Severity:   SeverityError,
		HTTPStatus: http.StatusInternalServerError,
	}
)

// ValidationError creates a validation error for a field
func ValidationError(field string, reason string) *APIError {
	return ErrInvalidInput.WithDetail("field", field).WithDetail("reason", reason)
}

// NotFoundError creates a not found error for a specific resource
func NotFoundError(resourceType string, identifier string) *APIError {
	return ErrResourceNotFound.WithDetail("resource_type", resourceType).
		WithDetail("identifier", identifier)
}
