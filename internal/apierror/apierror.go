// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package so that internal
// details (stack traces, SQL errors) never reach them.
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// Code is a stable, machine readable reason such as "order_not_open".
type APIError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func New(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Code: "invalid_input", Detail: "validation failed", Fields: fields}
}
