// Structured API error types and constructors shared across all API versions.
package dto

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Standard error codes.
const (
	CodeBadRequest      ErrorCode = "BAD_REQUEST"
	CodeValidation      ErrorCode = "VALIDATION_FAILED"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeGatewayTimeout  ErrorCode = "EXECUTION_TIMEOUT"
	CodeInternalError   ErrorCode = "INTERNAL_ERROR"
)

// ErrorWithStatus is an error that carries an HTTP status code, error code,
// and optional details map.
type ErrorWithStatus interface {
	error
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is a concrete error type with status code, error code, optional
// details, and optional wrapped error.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the machine-readable error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns the optional details map.
func (e *APIError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// WithDetail adds a single key/value to the error details.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Constructors.

// BadRequest creates a 400 error.
func BadRequest(msg string) *APIError {
	return &APIError{statusCode: http.StatusBadRequest, code: CodeBadRequest, message: msg}
}

// NotFound creates a 404 error.
func NotFound(resource string) *APIError {
	return &APIError{statusCode: http.StatusNotFound, code: CodeNotFound, message: resource + " not found"}
}

// PayloadTooLarge creates a 413 error carrying the limit as "limitBytes".
func PayloadTooLarge(limit int64) *APIError {
	e := &APIError{
		statusCode: http.StatusRequestEntityTooLarge,
		code:       CodePayloadTooLarge,
		message:    fmt.Sprintf("request body exceeds %d bytes", limit),
	}
	return e.WithDetail("limitBytes", limit)
}

// GatewayTimeout creates a 504 error for executions that ran past their
// deadline.
func GatewayTimeout(msg string) *APIError {
	return &APIError{statusCode: http.StatusGatewayTimeout, code: CodeGatewayTimeout, message: msg}
}

// InternalError creates a 500 error.
func InternalError(msg string) *APIError {
	return &APIError{statusCode: http.StatusInternalServerError, code: CodeInternalError, message: msg}
}

// FieldError is a single offending location in a request payload.
type FieldError struct {
	// Path locates the value, e.g. "code" or "code[2]". Empty means the
	// payload root.
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	if f.Path == "" {
		return f.Message
	}
	return f.Path + ": " + f.Message
}

// ValidationError reports every field of a payload that does not match the
// declared shape. It is returned as a 422 response.
type ValidationError struct {
	// Kind names the request type that failed, e.g. "CodeExecutionRequest".
	Kind   string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	msg := strings.Join(parts, "; ")
	if e.Kind == "" {
		return msg
	}
	return "invalid " + e.Kind + ": " + msg
}

// StatusCode returns 422.
func (e *ValidationError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

// Code returns CodeValidation.
func (e *ValidationError) Code() ErrorCode {
	return CodeValidation
}

// Details exposes the field errors to the response envelope.
func (e *ValidationError) Details() map[string]any {
	return map[string]any{"fields": e.Fields}
}

// Add records one more offending field.
func (e *ValidationError) Add(path, msg string) {
	e.Fields = append(e.Fields, FieldError{Path: path, Message: msg})
}

// OrNil returns e when at least one field error was recorded, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ErrorResponse is the JSON envelope for error responses.
//
// Message repeats Error.Message at the top level for clients that only read a
// flat "message" field.
type ErrorResponse struct {
	Error     ErrorDetails   `json:"error"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

// ErrorDetails holds the code and message within an error response.
type ErrorDetails struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
