package handler

import (
	"net/http"

	"grandexchange-api/internal/model"
	"grandexchange-api/internal/service"
	"grandexchange-api/pkg/apierror"
	"grandexchange-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// MarketHandler handles sell offer, buy order and order book requests.
type MarketHandler struct {
	market *service.MarketService
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(market *service.MarketService) *MarketHandler {
	return &MarketHandler{market: market}
}

// TradeResult is the response of an enable call: the record and the fills it caused.
type TradeResult[T any] struct {
	Record T             `json:"record"`
	Trades []model.Trade `json:"trades"`
}

func tradeResult[T any](record T, trades []model.Trade) TradeResult[T] {
	if trades == nil {
		trades = []model.Trade{}
	}
	return TradeResult[T]{Record: record, Trades: trades}
}

// PlayerOffers lists a player's sell offers and buy orders.
type PlayerOffers struct {
	SellOffers []model.SellOffer `json:"sell_offers"`
	BuyOrders  []model.BuyOrder  `json:"buy_orders"`
}

// GetListings handles GET /api/v1/market/items/{item_id}/listings
func (h *MarketHandler) GetListings(w http.ResponseWriter, r *http.Request) {
	item := chi.URLParam(r, "item_id")
	if item == "" {
		response.Error(w, apierror.BadRequest("item_id is required"))
		return
	}
	response.OK(w, h.market.Listings(item))
}

// GetDepth handles GET /api/v1/market/items/{item_id}/depth
func (h *MarketHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	item := chi.URLParam(r, "item_id")
	if item == "" {
		response.Error(w, apierror.BadRequest("item_id is required"))
		return
	}
	depth, err := h.market.Depth(r.Context(), item)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, depth)
}

// GetSummary handles GET /api/v1/market/items/{item_id}/summary
func (h *MarketHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	item := chi.URLParam(r, "item_id")
	if item == "" {
		response.Error(w, apierror.BadRequest("item_id is required"))
		return
	}
	response.OK(w, h.market.Summary(item))
}

// GetPlayerOffers handles GET /api/v1/players/{player_id}/offers
func (h *MarketHandler) GetPlayerOffers(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, PlayerOffers{
		SellOffers: nonNil(h.market.PlayerSellOffers(player.ID)),
		BuyOrders:  nonNil(h.market.PlayerBuyOrders(player.ID)),
	})
}

// CreateSellOffer handles POST /api/v1/players/{player_id}/sell-offers
func (h *MarketHandler) CreateSellOffer(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req service.SellOfferRequest
	if err := decodeJSON(r, sellOfferSchema, &req); err != nil {
		writeError(w, err)
		return
	}

	offer, err := h.market.CreateSellOffer(r.Context(), player, req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, offer)
}

// SellOfferAction handles POST /api/v1/players/{player_id}/sell-offers/{offer_id}/{action}
// where action is enable, disable or cancel.
func (h *MarketHandler) SellOfferAction(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	offerID, err := int64Param(r, "offer_id")
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	switch chi.URLParam(r, "action") {
	case "enable":
		offer, trades, err := h.market.EnableSellOffer(ctx, player, offerID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.OK(w, tradeResult(offer, trades))
	case "disable":
		offer, err := h.market.DisableSellOffer(ctx, player, offerID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.OK(w, offer)
	case "cancel":
		offer, err := h.market.CancelSellOffer(ctx, player, offerID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.OK(w, offer)
	default:
		response.Error(w, apierror.NotFound("unknown action"))
	}
}

// CreateBuyOrder handles POST /api/v1/players/{player_id}/buy-orders
func (h *MarketHandler) CreateBuyOrder(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		SlotIndex int `json:"slot_index"`
	}
	if err := decodeJSON(r, buyOrderSchema, &req); err != nil {
		writeError(w, err)
		return
	}

	order, err := h.market.CreateBuyOrder(r.Context(), player, req.SlotIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, order)
}

// ConfigureBuyOrder handles PUT /api/v1/players/{player_id}/buy-orders/{order_id}
func (h *MarketHandler) ConfigureBuyOrder(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	orderID, err := int64Param(r, "order_id")
	if err != nil {
		writeError(w, err)
		return
	}
	var terms service.BuyOrderTerms
	if err := decodeJSON(r, buyTermsSchema, &terms); err != nil {
		writeError(w, err)
		return
	}

	order, err := h.market.ConfigureBuyOrder(r.Context(), player, orderID, terms)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, order)
}

// BuyOrderAction handles POST /api/v1/players/{player_id}/buy-orders/{order_id}/{action}
// where action is enable, disable or cancel.
func (h *MarketHandler) BuyOrderAction(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	orderID, err := int64Param(r, "order_id")
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	switch chi.URLParam(r, "action") {
	case "enable":
		order, trades, err := h.market.EnableBuyOrder(ctx, player, orderID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.OK(w, tradeResult(order, trades))
	case "disable":
		order, err := h.market.DisableBuyOrder(ctx, player, orderID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.OK(w, order)
	case "cancel":
		order, err := h.market.CancelBuyOrder(ctx, player, orderID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.OK(w, order)
	default:
		response.Error(w, apierror.NotFound("unknown action"))
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
