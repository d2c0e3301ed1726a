package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"quest-gateway/internal/common/errors"
	"quest-gateway/internal/common/logging"
	"quest-gateway/internal/models"
)

const defaultListLimit = 50

type createConfirmationRequest struct {
	FactType string  `json:"fact_type"`
	OldValue *string `json:"old_value"`
	NewValue string  `json:"new_value"`
	Context  *string `json:"context"`
}

type resolveConfirmationRequest struct {
	Action string `json:"action"`
}

// ListConfirmations returns the caller's confirmations, defaulting to the
// pending ones, newest first.
func (h *Handlers) ListConfirmations(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.UserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.StatusPending
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil || parsed < 1 || parsed > defaultListLimit {
			writeError(w, errors.ValidationError("limit must be between 1 and 50"))
			return
		}
		limit = parsed
	}

	confirmations, err := h.storage.ListConfirmations(r.Context(), userID, status, limit)
	if err != nil {
		h.logger.Error("failed to list confirmations", err, logging.String("user_id", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"confirmations": confirmations,
	})
}

// CreateConfirmation inserts a pending confirmation and fans a
// new_confirmation event to the user's open streams.
func (h *Handlers) CreateConfirmation(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.UserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createConfirmationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid JSON body"))
		return
	}
	if req.FactType == "" || req.NewValue == "" {
		writeError(w, errors.ValidationError("fact_type and new_value are required"))
		return
	}

	confirmation := &models.Confirmation{
		UserID:   userID,
		FactType: req.FactType,
		OldValue: req.OldValue,
		NewValue: req.NewValue,
		Context:  req.Context,
	}
	if err := h.storage.CreateConfirmation(r.Context(), confirmation); err != nil {
		h.logger.Error("failed to create confirmation", err, logging.String("user_id", userID))
		writeError(w, err)
		return
	}

	h.broadcaster.PublishCreated(userID, confirmation)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"confirmation": confirmation,
	})
}

// ResolveConfirmation accepts or rejects a pending confirmation. Accepting
// writes the fact to the user's profile before the resolved event goes out.
func (h *Handlers) ResolveConfirmation(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.UserID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id := mux.Vars(r)["id"]

	var req resolveConfirmationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid JSON body"))
		return
	}
	if req.Action != "accept" && req.Action != "reject" {
		writeError(w, errors.ValidationError("action must be 'accept' or 'reject'"))
		return
	}

	confirmation, err := h.storage.GetPendingConfirmation(r.Context(), id, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	status := models.StatusRejected
	if req.Action == "accept" {
		status = models.StatusAccepted
	}
	if err := h.storage.ResolveConfirmation(r.Context(), id, status); err != nil {
		h.logger.Error("failed to resolve confirmation", err,
			logging.String("user_id", userID),
			logging.String("confirmation_id", id))
		writeError(w, err)
		return
	}

	if req.Action == "accept" {
		if err := h.storage.UpsertUserFact(r.Context(), userID, confirmation.FactType, confirmation.NewValue); err != nil {
			h.logger.Error("failed to upsert user fact", err,
				logging.String("user_id", userID),
				logging.String("fact_type", confirmation.FactType))
			writeError(w, err)
			return
		}
	}

	h.broadcaster.PublishResolved(userID, id)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"action":  req.Action,
		"id":      id,
	})
}
