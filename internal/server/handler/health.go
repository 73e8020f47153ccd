package handler

import (
	"net/http"
	"time"
)

// TickState reports the engine's progress for liveness checks.
type TickState interface {
	Running() bool
	LastTickAt() (time.Time, bool)
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	state     TickState
	startedAt time.Time
	now       func() time.Time
}

// NewHealthHandler creates a HealthHandler. state may be nil.
func NewHealthHandler(state TickState) *HealthHandler {
	return &HealthHandler{state: state, startedAt: time.Now(), now: time.Now}
}

// HealthCheck reports that the process is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	body := map[string]any{
		"status":         "ok",
		"timestamp":      now.Format(time.RFC3339),
		"uptime_seconds": int64(now.Sub(h.startedAt).Seconds()),
	}
	if h.state != nil {
		body["tick_running"] = h.state.Running()
		if at, ok := h.state.LastTickAt(); ok {
			body["last_tick_at"] = at.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, body)
}
