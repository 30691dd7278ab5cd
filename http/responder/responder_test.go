package responder

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/http/middleware"
	"github.com/leeforge/moneykeeper/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, httptest.NewRequest(http.MethodPost, "/user/signup", nil), map[string]int{"id": 7}, WithTraceID("trace"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode(t, rec)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "trace", resp.Meta.TraceId)
	assert.Equal(t, map[string]any{"id": float64(7)}, resp.Data)
}

func TestWrite_TraceIDFromRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	h := middleware.TraceIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		OK(w, r, "pong")
	}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(middleware.TraceIDHeader, "abc")
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc", decode(t, rec).Meta.TraceId)
}

func TestWriteList(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteList(rec, httptest.NewRequest(http.MethodGet, "/", nil), []int{1, 2}, &PaginationMeta{Limit: 2, Count: 2, More: true})

	resp := decode(t, rec)
	require.NotNil(t, resp.Meta.Pagination)
	assert.True(t, resp.Meta.Pagination.More)
}

func TestShortcuts(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request)
		status int
		code   int
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { Unauthorized(w, r, "") }, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { Forbidden(w, r, "") }, http.StatusForbidden, ErrCodeForbidden},
		{"bad request", func(w http.ResponseWriter, r *http.Request) { BadRequest(w, r, "") }, http.StatusBadRequest, ErrCodeBadRequest},
		{"bind", func(w http.ResponseWriter, r *http.Request) { BindError(w, r, "eof") }, http.StatusBadRequest, ErrCodeBindFailed},
		{"not found", func(w http.ResponseWriter, r *http.Request) { NotFound(w, r, "") }, http.StatusNotFound, ErrCodeRouteNotFound},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { ServiceUnavailable(w, r, "") }, http.StatusServiceUnavailable, ErrCodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, GetErrorMessage(tt.code), resp.Error.Message)
		})
	}
}

func TestFail(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    int
		message string
	}{
		{"validation", apperrors.NewValidation("invalid email"), http.StatusBadRequest, ErrCodeValidationFailed, "invalid email"},
		{"conflict", apperrors.NewConflict("user", "a@b.c"), http.StatusConflict, ErrCodeConflict, "user already exists"},
		{"unauthorized", apperrors.NewUnauthorized("invalid credentials"), http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials"},
		{"query hides details", apperrors.NewQuery("SELECT 1", errors.New("syntax")), http.StatusInternalServerError, ErrCodeDatabase, "Database Error"},
		{"external", apperrors.NewExternal("monobank", errors.New("429")), http.StatusBadGateway, ErrCodeExternalService, "External Service Error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalServer, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}
