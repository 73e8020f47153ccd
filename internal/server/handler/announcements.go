package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// StreamReader reads the durable announcement stream.
type StreamReader interface {
	StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error)
}

// AnnouncementHandler replays delivered announcements from the stream.
type AnnouncementHandler struct {
	streams StreamReader
	stream  string
	logger  *slog.Logger
}

// NewAnnouncementHandler creates an AnnouncementHandler over stream.
func NewAnnouncementHandler(streams StreamReader, stream string, logger *slog.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{
		streams: streams,
		stream:  stream,
		logger:  logger.With(slog.String("handler", "announcements")),
	}
}

type streamEntry struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event"`
}

type listAnnouncementsResponse struct {
	Entries []streamEntry `json:"entries"`
	Next    string        `json:"next,omitempty"`
}

// ListAnnouncements returns stream entries after the given cursor.
// GET /api/announcements?after=0&limit=50
func (h *AnnouncementHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	limit, _ := pagination(r)

	msgs, err := h.streams.StreamRead(r.Context(), h.stream, after, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "stream read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read announcements")
		return
	}

	resp := listAnnouncementsResponse{Entries: make([]streamEntry, 0, len(msgs))}
	for _, m := range msgs {
		if !json.Valid(m.Payload) {
			continue
		}
		resp.Entries = append(resp.Entries, streamEntry{ID: m.ID, Event: m.Payload})
	}
	if len(msgs) > 0 {
		resp.Next = msgs[len(msgs)-1].ID
	}
	writeJSON(w, http.StatusOK, resp)
}
