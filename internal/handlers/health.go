package handlers

import (
	"net/http"
	"time"
)

// Health reports liveness plus the state of the storage backend.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]string{}

	if err := h.storage.Health(); err != nil {
		status = "degraded"
		checks["database"] = err.Error()
	} else {
		checks["database"] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
