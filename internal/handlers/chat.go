package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"quest-gateway/internal/ai"
	"quest-gateway/internal/common/errors"
	"quest-gateway/internal/common/logging"
	"quest-gateway/internal/ratelimit"
)

type chatRequest struct {
	Messages []ai.Message `json:"messages"`
	User     string       `json:"user"`
}

type chatChoice struct {
	Index        int        `json:"index"`
	Message      ai.Message `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// ChatCompletions proxies a chat request to the model provider. Authenticated
// callers get the standard per-user quota; anonymous callers share the
// expensive per-client quota.
func (h *Handlers) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid JSON body"))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, errors.ValidationError("Messages array required"))
		return
	}

	userID, authErr := h.auth.UserID(r)
	authenticated := authErr == nil && userID != ""

	key := "chat:"
	tier := ratelimit.Expensive
	message := "Too many requests. Please sign in for higher limits."
	if authenticated {
		key += userID
		tier = ratelimit.Standard
		message = "Too many requests. Please slow down."
	} else {
		key += ratelimit.ClientKey(r)
	}

	result := h.limiter.Check(r.Context(), key, tier)
	if !result.Allowed {
		writeRateLimited(w, result, tier, message)
		return
	}

	completion, err := h.chat.Complete(r.Context(), req.Messages)
	if err != nil {
		h.logger.Error("chat completion failed", err, logging.Bool("authenticated", authenticated))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ID:      completion.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   completion.Model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      ai.Message{Role: "assistant", Content: completion.Text},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     completion.InputTokens,
			CompletionTokens: completion.OutputTokens,
			TotalTokens:      completion.InputTokens + completion.OutputTokens,
		},
	})
}
