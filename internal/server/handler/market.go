package handler

import (
	"net/http"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// MarketReader is the read side of the ledger.
type MarketReader interface {
	All() []domain.Record
	Get(id string) (domain.Record, bool)
}

// MarketHandler serves ledger browsing endpoints.
type MarketHandler struct {
	markets MarketReader
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketReader) *MarketHandler {
	return &MarketHandler{markets: markets}
}

type listMarketsResponse struct {
	Markets []domain.Record `json:"markets"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns ledger records ordered by id. Optional filters:
// status=open|closed|resolved, retired=true|false.
// GET /api/markets?status=open&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && !domain.MarketStatus(status).Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	retired := q.Get("retired")
	if retired != "" && retired != "true" && retired != "false" {
		writeError(w, http.StatusBadRequest, "invalid retired filter")
		return
	}

	var matched []domain.Record
	for _, rec := range h.markets.All() {
		if status != "" && string(rec.Status) != status {
			continue
		}
		if retired != "" && rec.Retired != (retired == "true") {
			continue
		}
		matched = append(matched, rec)
	}

	limit, offset := pagination(r)
	page := []domain.Record{}
	if offset < len(matched) {
		page = matched[offset:min(offset+limit, len(matched))]
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: page,
		Total:   len(matched),
		Limit:   limit,
		Offset:  offset,
	})
}

// GetMarket returns one record.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}
	rec, ok := h.markets.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
