package handlers

import (
	"encoding/json"
	"net/http"

	"quest-gateway/internal/auth"
	"quest-gateway/internal/common/errors"
	"quest-gateway/internal/common/logging"
	"quest-gateway/internal/ratelimit"
)

type voiceTokenRequest struct {
	UserID string `json:"user_id"`
}

// VoiceToken mints a short-lived Hume access token for the caller. Tokens are
// metered per user; trial callers get the stricter daily quota.
func (h *Handlers) VoiceToken(w http.ResponseWriter, r *http.Request) {
	var req voiceTokenRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	userID := req.UserID
	if userID == "" {
		if headerID, err := h.auth.UserID(r); err == nil {
			userID = headerID
		}
	}
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "User ID required for voice chat",
		})
		return
	}

	tier := ratelimit.Expensive
	if auth.IsTrial(userID) {
		tier = ratelimit.Trial
	}
	result := h.limiter.Check(r.Context(), "voice:"+userID, tier)
	if !result.Allowed {
		writeRateLimited(w, result, tier, "Too many voice sessions. Please wait before starting another.")
		return
	}

	if !h.voice.Configured() {
		writeError(w, errors.InternalError("Voice service not configured", nil))
		return
	}

	token, err := h.voice.FetchAccessToken(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch voice access token", err, logging.String("user_id", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accessToken": token.AccessToken,
		"expiresIn":   token.ExpiresIn,
		"configId":    token.ConfigID,
		"userId":      userID,
	})
}
