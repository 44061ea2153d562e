package handler

import (
	"net/http"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/events"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	natsPublisher *events.NATSPublisher
}

// NewHealthHandler creates a new health handler. The NATS publisher may be
// nil when the event mirror is disabled.
func NewHealthHandler(natsPublisher *events.NATSPublisher) *HealthHandler {
	return &HealthHandler{
		natsPublisher: natsPublisher,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.natsPublisher != nil && !h.natsPublisher.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
