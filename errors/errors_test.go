package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_TypeMatchesThroughWrapping(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := fmt.Errorf("hook postgres: %w", NewConnectivity("postgres", cause))

	assert.True(t, IsType(err, ErrorTypeConnectivity))
	assert.False(t, IsType(err, ErrorTypeQuery))
	assert.Equal(t, ErrorTypeConnectivity, TypeOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestAppError_Fatal(t *testing.T) {
	tests := []struct {
		err   *AppError
		fatal bool
	}{
		{NewConnectivity("redis", nil), true},
		{NewQuery("SELECT 1", nil), true},
		{NewConfiguration("bad"), true},
		{NewTeardown("clients", nil), false},
		{NewUnauthorized("no token"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.fatal, tt.err.Fatal())
		})
	}
}

func TestAppError_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, NewUnauthorized("x").HTTPStatus)
	assert.Equal(t, http.StatusForbidden, NewForbidden("x").HTTPStatus)
	assert.Equal(t, http.StatusNotFound, NewNotFound("user", 1).HTTPStatus)
	assert.Equal(t, http.StatusBadGateway, NewExternal("monobank", nil).HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, FromError(stderrors.New("boom")).HTTPStatus)
}

func TestAppError_ErrorMessage(t *testing.T) {
	err := NewRequired("SECRET_KEY")
	assert.Equal(t, "SECRET_KEY is required", err.Error())
	assert.Equal(t, "SECRET_KEY", err.Details["field"])

	wrapped := NewTeardown("clients", stderrors.New("close failed"))
	assert.Equal(t, "teardown of clients failed: close failed", wrapped.Error())
}

func TestFromError_Nil(t *testing.T) {
	assert.Nil(t, FromError(nil))
}
