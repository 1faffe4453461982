package handlers

import (
	"net/http"

	"github.com/klaxon/klaxon/pkg/api/response"
	"github.com/klaxon/klaxon/pkg/op"
	"github.com/klaxon/klaxon/pkg/relay"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	rel      relay.Relay
	registry *op.Registry
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(rel relay.Relay, registry *op.Registry) *HealthHandler {
	return &HealthHandler{
		rel:      rel,
		registry: registry,
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe). The service is
// ready when its cancellation relay can deliver requests.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.rel.Healthy() {
		response.JSON(w, http.StatusOK, map[string]bool{
			"ready": true,
		})
	} else {
		response.JSON(w, http.StatusServiceUnavailable, map[string]bool{
			"ready": false,
		})
	}
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	var running, terminal int
	for _, rec := range h.registry.List() {
		if rec.Status.Terminal() {
			terminal++
		} else if rec.Status == op.StatusRunning {
			running++
		}
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"relay_healthy":       h.rel.Healthy(),
		"operations_total":    h.registry.Len(),
		"operations_running":  running,
		"operations_finished": terminal,
	})
}
