package responder

import (
	"net/http"

	apperrors "github.com/leeforge/moneykeeper/errors"
)

const (
	// 4xxx client errors
	ErrCodeBadRequest       = 4000
	ErrCodeBindFailed       = 4001
	ErrCodeValidationFailed = 4002
	ErrCodeNotFound         = 4003
	ErrCodeRouteNotFound    = 4004
	ErrCodeForbidden        = 4005
	ErrCodeUnauthorized     = 4006
	ErrCodeConflict         = 4008
	ErrCodeTooManyRequests  = 4029

	// 5xxx server errors
	ErrCodeInternalServer  = 5000
	ErrCodeDatabase        = 5001
	ErrCodeUnavailable     = 5003
	ErrCodeExternalService = 5005
)

var errorMessages = map[int]string{
	ErrCodeBadRequest:       "Bad Request",
	ErrCodeBindFailed:       "Invalid Request Body",
	ErrCodeValidationFailed: "Validation Failed",
	ErrCodeNotFound:         "Resource Not Found",
	ErrCodeRouteNotFound:    "Route Not Found",
	ErrCodeForbidden:        "Forbidden",
	ErrCodeUnauthorized:     "Unauthorized",
	ErrCodeConflict:         "Data Conflict",
	ErrCodeTooManyRequests:  "Too Many Requests",
	ErrCodeInternalServer:   "Internal Server Error",
	ErrCodeDatabase:         "Database Error",
	ErrCodeUnavailable:      "Service Unavailable",
	ErrCodeExternalService:  "External Service Error",
}

// GetErrorMessage returns the default message for an error code
func GetErrorMessage(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Unknown Error"
}

func NewError(code int, message string) Error {
	return NewErrorWithDetails(code, message, nil)
}

func NewErrorWithDetails(code int, message string, details any) Error {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return Error{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// codeFor maps an error type to its response code and HTTP status.
func codeFor(t apperrors.ErrorType) (code, status int) {
	switch t {
	case apperrors.ErrorTypeValidation:
		return ErrCodeValidationFailed, http.StatusBadRequest
	case apperrors.ErrorTypeUnauthorized:
		return ErrCodeUnauthorized, http.StatusUnauthorized
	case apperrors.ErrorTypeForbidden:
		return ErrCodeForbidden, http.StatusForbidden
	case apperrors.ErrorTypeNotFound:
		return ErrCodeNotFound, http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		return ErrCodeConflict, http.StatusConflict
	case apperrors.ErrorTypeQuery:
		return ErrCodeDatabase, http.StatusInternalServerError
	case apperrors.ErrorTypeConnectivity:
		return ErrCodeUnavailable, http.StatusServiceUnavailable
	case apperrors.ErrorTypeExternal:
		return ErrCodeExternalService, http.StatusBadGateway
	default:
		return ErrCodeInternalServer, http.StatusInternalServerError
	}
}
