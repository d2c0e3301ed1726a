package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"quest-gateway/internal/ai"
	"quest-gateway/internal/auth"
	"quest-gateway/internal/common/errors"
	"quest-gateway/internal/common/logging"
	"quest-gateway/internal/config"
	"quest-gateway/internal/ratelimit"
	"quest-gateway/internal/sse"
	"quest-gateway/internal/storage"
	"quest-gateway/internal/voice"
)

// Handlers bundles the HTTP endpoints with their dependencies.
type Handlers struct {
	storage     storage.Storage
	broadcaster *sse.Broadcaster
	limiter     *ratelimit.Limiter
	auth        *auth.Auth
	voice       *voice.Client
	chat        ai.Client
	config      *config.Config
	logger      logging.Logger
}

func New(store storage.Storage, broadcaster *sse.Broadcaster, limiter *ratelimit.Limiter, authn *auth.Auth, voiceClient *voice.Client, chatClient ai.Client, cfg *config.Config) *Handlers {
	return &Handlers{
		storage:     store,
		broadcaster: broadcaster,
		limiter:     limiter,
		auth:        authn,
		voice:       voiceClient,
		chat:        chatClient,
		config:      cfg,
		logger:      logging.GetGlobalLogger().WithFields(logging.String("component", "handlers")),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		writeJSON(w, appErr.HTTPStatus(), map[string]string{"error": appErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

// writeRateLimited emits the 429 payload with a Retry-After hint and the
// same X-RateLimit-* header set the limiter middleware uses.
func writeRateLimited(w http.ResponseWriter, result *ratelimit.Result, tier ratelimit.Config, message string) {
	retryAfter := result.RetryAfter(time.Now())
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(tier.MaxRequests))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error":      "Rate limit exceeded",
		"message":    message,
		"retryAfter": retryAfter,
	})
}
