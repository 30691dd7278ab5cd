package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Startup errors. These never reach a serving state.
	ErrorTypeConnectivity  ErrorType = "connectivity"
	ErrorTypeQuery         ErrorType = "query"
	ErrorTypeConfiguration ErrorType = "configuration"

	// Shutdown errors are logged and swallowed.
	ErrorTypeTeardown ErrorType = "teardown"

	// Request errors are converted to a response at the request boundary.
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"

	ErrorTypeExternal ErrorType = "external"
	ErrorTypeInternal ErrorType = "internal"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	InnerError error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.InnerError != nil {
		return fmt.Sprintf("%s: %v", msg, e.InnerError)
	}
	return msg
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// Is reports whether target is an AppError of the same type.
func (e *AppError) Is(target error) bool {
	if targetApp, ok := target.(*AppError); ok {
		return e.Type == targetApp.Type
	}
	return false
}

// WithMessage adds a message to the error
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithHTTPStatus sets the HTTP status code
func (e *AppError) WithHTTPStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// Fatal reports whether an error of this type must abort startup.
func (e *AppError) Fatal() bool {
	switch e.Type {
	case ErrorTypeConnectivity, ErrorTypeQuery, ErrorTypeConfiguration:
		return true
	}
	return false
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		Code:       string(errType),
		HTTPStatus: statusFor(errType),
	}
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return New(errType, message).WithInnerError(err)
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Code:       string(ErrorTypeUnknown),
		Message:    err.Error(),
		InnerError: err,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// TypeOf returns the ErrorType carried anywhere in err's chain.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	return errors.Is(err, &AppError{Type: errType})
}

func NewConnectivity(resource string, err error) *AppError {
	return WrapWithType(err, ErrorTypeConnectivity, fmt.Sprintf("%s is unreachable", resource)).
		WithDetail("resource", resource)
}

func NewQuery(query string, err error) *AppError {
	return WrapWithType(err, ErrorTypeQuery, "query failed").WithDetail("query", query)
}

func NewConfiguration(message string) *AppError {
	return New(ErrorTypeConfiguration, message)
}

func NewRequired(field string) *AppError {
	return NewConfiguration(fmt.Sprintf("%s is required", field)).WithDetail("field", field)
}

func NewTeardown(hook string, err error) *AppError {
	return WrapWithType(err, ErrorTypeTeardown, fmt.Sprintf("teardown of %s failed", hook)).
		WithDetail("hook", hook)
}

func NewUnauthorized(message string) *AppError {
	return New(ErrorTypeUnauthorized, message)
}

func NewForbidden(message string) *AppError {
	return New(ErrorTypeForbidden, message)
}

func NewValidation(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

func NewNotFound(resource string, id interface{}) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewConflict(resource string, id interface{}) *AppError {
	return New(ErrorTypeConflict, fmt.Sprintf("%s already exists", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewExternal(service string, err error) *AppError {
	return WrapWithType(err, ErrorTypeExternal, fmt.Sprintf("%s request failed", service)).
		WithDetail("service", service)
}

func NewInternal(message string) *AppError {
	return New(ErrorTypeInternal, message)
}

func statusFor(errType ErrorType) int {
	switch errType {
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
