package handler

import (
	"context"
	"net/http"
	"strconv"

	"grandexchange-api/internal/model"
	"grandexchange-api/internal/service"
	"grandexchange-api/pkg/apierror"
	"grandexchange-api/pkg/response"
)

// CollectionHandler handles collection box requests.
type CollectionHandler struct {
	collection *service.CollectionService
}

// NewCollectionHandler creates a new collection handler.
func NewCollectionHandler(collection *service.CollectionService) *CollectionHandler {
	return &CollectionHandler{collection: collection}
}

// responseDeliverer hands claimed items to the caller in the response body.
// A request abandoned before the claim completes fails delivery, which puts
// the item back.
var responseDeliverer = service.DelivererFunc(func(ctx context.Context, playerID int64, item model.CollectionItem) error {
	return ctx.Err()
})

// GetPage handles GET /api/v1/players/{player_id}/collection?page=N
// Without page the last viewed page is returned.
func (h *CollectionHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	requested := -1
	if raw := r.URL.Query().Get("page"); raw != "" {
		requested, err = strconv.Atoi(raw)
		if err != nil {
			response.Error(w, apierror.BadRequest("page must be an integer"))
			return
		}
	}

	page := h.collection.Page(player.ID, requested)
	response.Page(w, page)
}

// claimsToBank reports whether a claim asks for ?to=bank instead of delivery
// in the response.
func claimsToBank(r *http.Request) bool {
	return r.URL.Query().Get("to") == "bank"
}

// Claim handles POST /api/v1/players/{player_id}/collection/claim[?to=bank]
func (h *CollectionHandler) Claim(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if err := decodeJSON(r, claimSchema, &req); err != nil {
		writeError(w, err)
		return
	}

	var item model.CollectionItem
	if claimsToBank(r) {
		item, err = h.collection.ClaimToBank(r.Context(), player.ID, req.Index)
	} else {
		item, err = h.collection.Claim(r.Context(), player.ID, req.Index, responseDeliverer)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, item)
}

// ClaimAll handles POST /api/v1/players/{player_id}/collection/claim-all[?to=bank]
func (h *CollectionHandler) ClaimAll(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var items []model.CollectionItem
	if claimsToBank(r) {
		items, err = h.collection.ClaimAllToBank(r.Context(), player.ID)
	} else {
		items, err = h.collection.ClaimAll(r.Context(), player.ID, responseDeliverer)
	}
	if err != nil && len(items) == 0 {
		writeError(w, err)
		return
	}
	response.OK(w, nonNil(items))
}

// Add handles POST /api/v1/players/{player_id}/collection
// Only game servers may put items into a collection box.
func (h *CollectionHandler) Add(w http.ResponseWriter, r *http.Request) {
	if err := requireServer(r); err != nil {
		writeError(w, err)
		return
	}
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		ItemStringID string `json:"item_string_id"`
		Quantity     int    `json:"quantity"`
		Source       string `json:"source"`
	}
	if err := decodeJSON(r, collectionAddSchema, &req); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.collection.Add(r.Context(), player, req.ItemStringID, req.Quantity, req.Source)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, item)
}
