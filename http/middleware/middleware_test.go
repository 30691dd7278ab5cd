package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTraceIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	h := TraceIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceIDFromRequest(r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(TraceIDHeader))
}

func TestTraceIDMiddleware_KeepsIncomingID(t *testing.T) {
	var seen string
	h := TraceIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceIDFromRequest(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(TraceIDHeader, "upstream-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-id", seen)
	assert.Equal(t, "upstream-id", rec.Header().Get(TraceIDHeader))
}

func TestTimingMiddleware(t *testing.T) {
	var took int64
	h := TimingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		took = GetRequestDurationFromRequest(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.GreaterOrEqual(t, took, int64(5))
	assert.Equal(t, int64(0), GetRequestDuration(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
