// Package auth resolves caller identity for the gateway's endpoints.
//
// Identity is established upstream (Stack Auth on the dashboard); the gateway
// trusts the X-User-Id header set by the fronting proxy, or, when a JWT
// secret is configured, verifies a bearer token and uses its subject claim.
// Trial callers self-identify with "trial-" prefixed identifiers and get the
// stricter rate-limit tier.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"quest-gateway/internal/common/errors"
)

// TrialPrefix marks caller-supplied trial identifiers. These are not
// session-bound; see the rate limiter's trial tier note.
const TrialPrefix = "trial-"

type Auth struct {
	jwtSecret []byte
}

// New creates an identity resolver. An empty jwtSecret disables bearer token
// verification, leaving only the header path.
func New(jwtSecret string) *Auth {
	var secret []byte
	if jwtSecret != "" {
		secret = []byte(jwtSecret)
	}
	return &Auth{jwtSecret: secret}
}

// UserID resolves the caller's user identifier from the request, preferring a
// verified bearer token over the plain header. Returns an authentication
// error when no identity is present.
func (a *Auth) UserID(r *http.Request) (string, error) {
	if a.jwtSecret != nil {
		if token := bearerToken(r); token != "" {
			subject, err := a.verifyToken(token)
			if err != nil {
				return "", errors.AuthError("invalid bearer token")
			}
			return subject, nil
		}
	}

	if userID := r.Header.Get("X-User-Id"); userID != "" {
		return userID, nil
	}

	return "", errors.AuthError("User ID required")
}

// IsTrial reports whether userID identifies a trial caller.
func IsTrial(userID string) bool {
	return strings.HasPrefix(userID, TrialPrefix)
}

// RequireUser wraps a handler, rejecting requests with no resolvable
// identity. The resolved identifier is stamped onto X-User-Id so downstream
// handlers and the request logger see one canonical source.
func (a *Auth) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.UserID(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "User ID required"}`))
			return
		}

		r.Header.Set("X-User-Id", userID)
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return header[len(prefix):]
}

func (a *Auth) verifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.jwtSecret, nil
		})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}
