package handlers

import (
	"net/http"

	"quest-gateway/internal/common/logging"
)

// UserFacts returns every confirmed profile fact for the caller.
func (h *Handlers) UserFacts(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.UserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	facts, err := h.storage.GetUserFacts(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load user facts", err, logging.String("user_id", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"facts": facts,
	})
}
