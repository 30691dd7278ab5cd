package responder

import (
	"net/http"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/http/middleware"
	"github.com/leeforge/moneykeeper/json"
	"github.com/leeforge/moneykeeper/logging"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		fallback := []byte("{\"error\":{\"code\":5000,\"message\":\"encode failed\"}}")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(fallback)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// newMeta fills trace id and elapsed time from the request, then applies opts.
func newMeta(r *http.Request, opts ...Option) Meta {
	var meta Meta
	if r != nil {
		meta.TraceId = middleware.GetTraceIDFromRequest(r)
		meta.Took = middleware.GetRequestDurationFromRequest(r)
	}
	for _, opt := range opts {
		opt(&meta)
	}
	return meta
}

// Write sends a success response with data
func Write(w http.ResponseWriter, r *http.Request, status int, data any, opts ...Option) {
	writeJSON(w, status, &Response{Data: data, Meta: newMeta(r, opts...)})
}

// WriteList sends a success response with data and pagination
func WriteList(w http.ResponseWriter, r *http.Request, data any, pager *PaginationMeta, opts ...Option) {
	opts = append(opts, WithPagination(pager))
	Write(w, r, http.StatusOK, data, opts...)
}

// WriteError sends an error response
func WriteError(w http.ResponseWriter, r *http.Request, status int, err Error, opts ...Option) {
	writeJSON(w, status, &Response{Error: &err, Meta: newMeta(r, opts...)})
}

// Fail writes err as an error response. AppErrors keep their message; any other
// error, and every 5xx, is reported generically and logged.
func Fail(w http.ResponseWriter, r *http.Request, err error, opts ...Option) {
	if err == nil {
		err = apperrors.NewInternal("unknown failure")
	}
	appErr := apperrors.FromError(err)
	code, status := codeFor(appErr.Type)

	message := appErr.Message
	if status >= http.StatusInternalServerError {
		logging.WithContext(logging.FromContext(r.Context()), r.Context()).Error("http.request.failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		message = ""
	}
	WriteError(w, r, status, NewError(code, message), opts...)
}

func OK(w http.ResponseWriter, r *http.Request, data any, opts ...Option) {
	Write(w, r, http.StatusOK, data, opts...)
}

func Created(w http.ResponseWriter, r *http.Request, data any, opts ...Option) {
	Write(w, r, http.StatusCreated, data, opts...)
}

func BadRequest(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusBadRequest, NewError(ErrCodeBadRequest, message), opts...)
}

// BindError responds with 400 for bodies that cannot be decoded.
func BindError(w http.ResponseWriter, r *http.Request, details any, opts ...Option) {
	WriteError(w, r, http.StatusBadRequest, NewErrorWithDetails(ErrCodeBindFailed, "", details), opts...)
}

// ValidationError responds with 400 and per-field details.
func ValidationError(w http.ResponseWriter, r *http.Request, details any, opts ...Option) {
	WriteError(w, r, http.StatusBadRequest, NewErrorWithDetails(ErrCodeValidationFailed, "", details), opts...)
}

func Unauthorized(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusUnauthorized, NewError(ErrCodeUnauthorized, message), opts...)
}

func Forbidden(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusForbidden, NewError(ErrCodeForbidden, message), opts...)
}

func NotFound(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusNotFound, NewError(ErrCodeRouteNotFound, message), opts...)
}

func TooManyRequests(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusTooManyRequests, NewError(ErrCodeTooManyRequests, message), opts...)
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusServiceUnavailable, NewError(ErrCodeUnavailable, message), opts...)
}
