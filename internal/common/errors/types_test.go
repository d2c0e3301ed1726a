package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	t.Run("type and message", func(t *testing.T) {
		err := ValidationError("fact_type is required")
		assert.Equal(t, "validation: fact_type is required", err.Error())
	})

	t.Run("includes cause", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := UpstreamError("hume token request failed", cause)
		assert.Contains(t, err.Error(), "cause=connection refused")
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{AuthError("no user"), http.StatusUnauthorized},
		{NotFoundError("confirmation"), http.StatusNotFound},
		{RateLimitError("chat"), http.StatusTooManyRequests},
		{UpstreamError("hume", nil), http.StatusBadGateway},
		{InternalError("boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.HTTPStatus(), string(tt.err.Type))
	}
}

func TestIsType(t *testing.T) {
	err := RateLimitError("voice")

	assert.True(t, IsType(err, ErrTypeRateLimit))
	assert.False(t, IsType(err, ErrTypeAuth))
	assert.False(t, IsType(nil, ErrTypeRateLimit))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrTypeRateLimit))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeNotFound, GetType(NotFoundError("confirmation")))
	assert.Equal(t, ErrTypeInternal, GetType(fmt.Errorf("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}
