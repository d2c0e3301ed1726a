package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, subject string, secret string) string {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestUserID_Header(t *testing.T) {
	a := New("")

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-User-Id", "u1")

	userID, err := a.UserID(req)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestUserID_Missing(t *testing.T) {
	a := New("")

	_, err := a.UserID(httptest.NewRequest("GET", "/", nil))
	assert.Error(t, err)
}

func TestUserID_BearerToken(t *testing.T) {
	a := New(testSecret)

	t.Run("valid token wins over header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "jwt-user", testSecret))
		req.Header.Set("X-User-Id", "header-user")

		userID, err := a.UserID(req)
		require.NoError(t, err)
		assert.Equal(t, "jwt-user", userID)
	})

	t.Run("bad signature rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "jwt-user", "wrong-secret-wrong-secret-wrong!"))

		_, err := a.UserID(req)
		assert.Error(t, err)
	})

	t.Run("header still works without token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-User-Id", "u2")

		userID, err := a.UserID(req)
		require.NoError(t, err)
		assert.Equal(t, "u2", userID)
	})
}

func TestIsTrial(t *testing.T) {
	assert.True(t, IsTrial("trial-1759240000"))
	assert.False(t, IsTrial("user-123"))
	assert.False(t, IsTrial(""))
}

func TestRequireUser(t *testing.T) {
	a := New("")

	var seenUserID string
	handler := a.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = r.Header.Get("X-User-Id")
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing identity rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/confirmations", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error": "User ID required"}`, rec.Body.String())
	})

	t.Run("identity passes through", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/confirmations", nil)
		req.Header.Set("X-User-Id", "u1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", seenUserID)
	})
}
