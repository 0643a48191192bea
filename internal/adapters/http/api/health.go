package api

import (
	"net/http"
)

// HealthDependencies reports whether the service is serving.
type HealthDependencies interface {
	Started() bool
}

// HealthHandler handles liveness requests.
type HealthHandler struct {
	deps HealthDependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

type healthResponse struct {
	Status string `json:"status"`
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	if !h.deps.Started() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
