package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/kernelgate/internal/infra/buildinfo"
)

// handleAdminStatus handles GET /admin/v1/status/summary.
func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	st := h.registry.Stats()
	status := "running"
	if st.ShuttingDown {
		status = "draining"
	}

	info := buildinfo.Get()
	h.writeJSON(w, r, http.StatusOK, StatusSummary{
		Status:              status,
		Version:             info.Version,
		Commit:              info.Commit,
		UptimeSeconds:       int64(time.Since(h.startedAt).Seconds()),
		Backend:             st.Backend,
		ActiveSessions:      st.ActiveSessions,
		InFlightEvaluations: st.InFlightEvaluations,
		SessionsCreated:     st.SessionsCreated,
		SessionsClosed:      st.SessionsClosed,
	})
}

// handleListSessions handles GET /admin/v1/sessions. Tokens are masked.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.List()
	h.writeJSON(w, r, http.StatusOK, SessionList{
		Sessions: sessions,
		Total:    len(sessions),
	})
}
