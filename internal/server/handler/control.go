package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/marketwatch/internal/control"
	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/engine"
)

// ControlService is the control surface the API exposes. Declared here so
// handlers can be tested against fakes.
type ControlService interface {
	TickNow(ctx context.Context) (engine.TickReport, error)
	Summary() control.Summary
	SetDestination(ctx context.Context, id string) error
	SkipSeed(ctx context.Context) error
}

// ControlHandler serves the operator endpoints.
type ControlHandler struct {
	svc    ControlService
	logger *slog.Logger
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(svc ControlService, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{svc: svc, logger: logger.With(slog.String("handler", "control"))}
}

// Status returns the ledger summary.
// GET /api/status
func (h *ControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Summary())
}

// Tick runs one tick and returns its report. An overlapping tick is 409.
// POST /api/tick
func (h *ControlHandler) Tick(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.TickNow(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrTickInProgress) {
			writeError(w, http.StatusConflict, "tick already in progress")
			return
		}
		h.logger.ErrorContext(r.Context(), "manual tick failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type destinationRequest struct {
	ChatID string `json:"chat_id"`
}

// SetDestination overrides the announcement destination. An empty chat_id
// restores the default.
// PUT /api/destination
func (h *ControlHandler) SetDestination(w http.ResponseWriter, r *http.Request) {
	var req destinationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.SetDestination(r.Context(), req.ChatID); err != nil {
		if errors.Is(err, domain.ErrInvalidDestination) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "set destination failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"target_chat_id": h.svc.Summary().TargetChatID})
}

// SkipSeed marks the ledger seeded.
// POST /api/seed/skip
func (h *ControlHandler) SkipSeed(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SkipSeed(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "skip seed failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"seeded": true})
}
