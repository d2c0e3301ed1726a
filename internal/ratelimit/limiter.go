// Package ratelimit bounds the rate of expensive operations per caller key
// using a fixed-window counter.
//
// The default store is process-local memory, which is an explicit scalability
// ceiling: each gateway instance tracks its own windows. The Redis store
// shares windows across instances behind the same Limiter API.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"quest-gateway/internal/common/errors"
	"quest-gateway/internal/common/logging"
)

// Config describes one fixed window: at most MaxRequests attempts per Window.
type Config struct {
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
}

// Result is the limiter's advice for one attempt. The attempt has already
// been counted against the key, including when Allowed is false - callers
// must check Allowed before performing the expensive operation and must not
// re-check without an intervening caller attempt.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// RetryAfter returns the whole seconds until the window resets, for the
// Retry-After header and the retryAfter field of 429 bodies.
func (r *Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// Store records attempts per key. Incr counts one attempt against key,
// starting a fresh window of the given length when none is active, and
// returns the attempt count within the current window plus the window's
// expiry.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
	// Sweep deletes every entry whose window has already expired and returns
	// how many were removed. It bounds memory growth from one-off callers and
	// has no effect on Incr correctness, which self-heals stale entries.
	Sweep(ctx context.Context) (removed int, err error)
}

// Limiter answers whether a caller may proceed and how many attempts remain.
type Limiter struct {
	store   Store
	enabled bool
}

// NewLimiter creates a limiter over the given store. A disabled limiter
// always allows and never touches the store.
func NewLimiter(store Store, enabled bool) *Limiter {
	return &Limiter{
		store:   store,
		enabled: enabled,
	}
}

// Check counts the current attempt for key and reports whether it is within
// config's window. The limiter purely advises: turning a denial into a 429 is
// the calling endpoint's job.
func (l *Limiter) Check(ctx context.Context, key string, config Config) *Result {
	if !l.enabled {
		return &Result{
			Allowed:   true,
			Remaining: config.MaxRequests,
			ResetAt:   time.Now().Add(config.Window),
		}
	}

	count, resetAt, err := l.store.Incr(ctx, key, config.Window)
	if err != nil {
		// A broken store must not take the endpoint down with it.
		logging.Warn("rate limit store unavailable, allowing request",
			logging.String("key", key), logging.Err(err))
		return &Result{
			Allowed:   true,
			Remaining: config.MaxRequests,
			ResetAt:   time.Now().Add(config.Window),
		}
	}

	remaining := config.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= config.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Sweep runs one garbage-collection pass over the store. Wired to a
// once-a-minute cron job in main.
func (l *Limiter) Sweep(ctx context.Context) {
	if !l.enabled {
		return
	}
	removed, err := l.store.Sweep(ctx)
	if err != nil {
		logging.Warn("rate limit sweep failed", logging.Err(err))
		return
	}
	if removed > 0 {
		logging.Debug("rate limit sweep", logging.Int("removed", removed))
	}
}

// HTTPMiddleware applies config per keyFunc-derived key to every request.
// Requests with no derivable key are allowed through.
func (l *Limiter) HTTPMiddleware(keyFunc func(*http.Request) string, config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.enabled {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result := l.Check(r.Context(), key, config)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", config.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))

			if !result.Allowed {
				appErr := errors.RateLimitError(r.URL.Path)
				w.Header().Set("Retry-After", fmt.Sprintf("%d", result.RetryAfter(time.Now())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(appErr.HTTPStatus())
				fmt.Fprintf(w, `{"error": %q}`, appErr.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Common key generation functions

// ClientKey identifies the caller by forwarded IP, falling back to a
// user-agent-derived token for callers with no usable address.
func ClientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if r.RemoteAddr != "" {
		// RemoteAddr carries an ephemeral port; keying on it would hand out
		// a fresh window per TCP connection.
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		ua = "unknown"
	}
	if len(ua) > 50 {
		ua = ua[:50]
	}
	return "ua-" + ua
}

// UserKey identifies the caller by the authenticated user header, or empty
// when absent.
func UserKey(r *http.Request) string {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		return ""
	}
	return "user:" + userID
}
