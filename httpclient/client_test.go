package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhook struct {
	URL string `json:"webHookUrl"`
}

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "token", r.Header.Get("X-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"webHookUrl":"https://a/monobank/1"}`, string(body))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := New("monobank", Config{})
	defer c.Close()

	var out struct {
		Status string `json:"status"`
	}
	err := c.PostJSON(context.Background(), srv.URL+"/personal/webhook",
		http.Header{"X-Token": []string{"token"}}, webhook{URL: "https://a/monobank/1"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Status)
}

func TestClient_NonSuccessIsExternalError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New("monobank", Config{})
	err := c.GetJSON(context.Background(), srv.URL, nil, &struct{}{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.Contains(t, err.Error(), "status 429")
	assert.Equal(t, int32(1), calls.Load(), "requests are never retried")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := New("ngrok", Config{Timeout: 50 * time.Millisecond})
	err := c.GetJSON(context.Background(), srv.URL, nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestClient_DefaultsAndClose(t *testing.T) {
	c := New("ngrok", Config{})
	assert.Equal(t, DefaultTimeout, c.HTTP().Timeout)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
