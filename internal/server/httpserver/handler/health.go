package handler

import (
	"net/http"
	"time"
)

// handleHealth handles GET /health. The process is alive if it answers.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthStatus{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready. The server stops being ready once
// shutdown has begun.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.registry.Stats().ShuttingDown {
		h.writeError(w, r, http.StatusServiceUnavailable, "KG-SYS-5030", "shutting down")
		return
	}
	h.writeJSON(w, r, http.StatusOK, HealthStatus{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
