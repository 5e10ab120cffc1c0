package handler

import (
	"net/http"

	"grandexchange-api/internal/service"
	"grandexchange-api/pkg/response"
)

// HistoryHandler serves the history tab over plain HTTP for clients without
// the WebSocket feed.
type HistoryHandler struct {
	history *service.HistoryService
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// GetSnapshot handles GET /api/v1/players/{player_id}/history
func (h *HistoryHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, h.history.Snapshot(player.ID))
}

// GetBadge handles GET /api/v1/players/{player_id}/history/badge
func (h *HistoryHandler) GetBadge(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, h.history.Badge(player.ID))
}

// Acknowledge handles POST /api/v1/players/{player_id}/history/ack
func (h *HistoryHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := decodeJSON(r, ackSchema, &req); err != nil {
		writeError(w, err)
		return
	}

	badge, err := h.history.Acknowledge(r.Context(), player.ID, req.Timestamp)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, badge)
}
