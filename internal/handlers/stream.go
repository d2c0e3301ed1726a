package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"quest-gateway/internal/common/logging"
	"quest-gateway/internal/sse"
)

// heartbeatInterval is the period between keep-alive comment frames. Proxies
// that idle-close streams typically do so after 60s of silence.
var heartbeatInterval = 30 * time.Second

// StreamConfirmations opens a server-sent-events stream scoped to one user.
// The identity comes from the user_id query parameter because EventSource
// cannot set request headers.
func (h *Handlers) StreamConfirmations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "User ID required", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Writes come from the broadcaster's goroutines and the heartbeat loop,
	// so every write-and-flush pair is serialized through one mutex.
	var writeMu sync.Mutex
	writeFrame := func(frame string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := io.WriteString(w, frame); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	connected, _ := json.Marshal(map[string]string{"userId": userID})
	if err := writeFrame(sse.FormatEvent(sse.EventConnected, connected)); err != nil {
		return
	}

	unsubscribe := h.broadcaster.Subscribe(userID, sse.SinkFunc(writeFrame))
	defer unsubscribe()

	h.logger.Info("sse stream opened", logging.String("user_id", userID))
	defer h.logger.Info("sse stream closed", logging.String("user_id", userID))

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := writeFrame(sse.HeartbeatFrame); err != nil {
				return
			}
		}
	}
}
