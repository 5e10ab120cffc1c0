package service

import (
	"context"
	"fmt"
	"log"

	"grandexchange-api/internal/cache"
	"grandexchange-api/internal/inventory"
	"grandexchange-api/internal/model"
	"grandexchange-api/internal/repository"
)

// Persistence writes market changes to the store. Offers and orders are
// written through; player states go through the write-behind buffer when one
// is configured.
type Persistence struct {
	store  repository.MarketStore
	buffer cache.StateBuffer
}

// NewPersistence creates a persistence layer.
// Returns nil if store is nil (in-memory only mode).
func NewPersistence(store repository.MarketStore) *Persistence {
	if store == nil {
		return nil
	}
	return &Persistence{store: store}
}

// SetBuffer sets the write-behind buffer for player states.
func (p *Persistence) SetBuffer(buffer cache.StateBuffer) {
	p.buffer = buffer
}

// SaveSellOffer writes an offer. A nil Persistence is a no-op.
func (p *Persistence) SaveSellOffer(ctx context.Context, offer model.SellOffer) error {
	if p == nil {
		return nil
	}
	return p.store.SaveSellOffer(ctx, offer)
}

// SaveBuyOrder writes an order. A nil Persistence is a no-op.
func (p *Persistence) SaveBuyOrder(ctx context.Context, order model.BuyOrder) error {
	if p == nil {
		return nil
	}
	return p.store.SaveBuyOrder(ctx, order)
}

// DeleteSellOffer removes an offer. A nil Persistence is a no-op.
func (p *Persistence) DeleteSellOffer(ctx context.Context, offerID int64) error {
	if p == nil {
		return nil
	}
	return p.store.DeleteSellOffer(ctx, offerID)
}

// DeleteBuyOrder removes an order. A nil Persistence is a no-op.
func (p *Persistence) DeleteBuyOrder(ctx context.Context, orderID int64) error {
	if p == nil {
		return nil
	}
	return p.store.DeleteBuyOrder(ctx, orderID)
}

// SavePlayer buffers the player's state, or writes it directly without a buffer.
func (p *Persistence) SavePlayer(ctx context.Context, inv *inventory.PlayerGEInventory) error {
	if p == nil || inv == nil {
		return nil
	}
	state := inv.State()
	if p.buffer != nil {
		return p.buffer.Add(ctx, state)
	}
	return p.store.SavePlayerStates(ctx, []model.PlayerState{state})
}

// Flush writes every registered player's state straight to the store.
func (p *Persistence) Flush(ctx context.Context, registry *inventory.Registry) error {
	if p == nil {
		return nil
	}
	all := registry.All()
	states := make([]model.PlayerState, len(all))
	for i, inv := range all {
		states[i] = inv.State()
	}
	return p.store.SavePlayerStates(ctx, states)
}

// CreateFlushFunc creates a flush function for the state buffer.
func CreateFlushFunc(store repository.MarketStore) cache.FlushFunc {
	return func(ctx context.Context, states []model.PlayerState) error {
		return store.SavePlayerStates(ctx, states)
	}
}

// BootstrapResult summarizes a restore.
type BootstrapResult struct {
	SellOffers int
	BuyOrders  int
	Players    int
	MaxID      int64
}

// Bootstrap restores persisted offers, orders and player states into memory.
func Bootstrap(ctx context.Context, store repository.MarketStore, repo repository.OfferRepository, registry *inventory.Registry) (BootstrapResult, error) {
	var res BootstrapResult

	snap, err := store.LoadAll(ctx)
	if err != nil {
		return res, fmt.Errorf("bootstrap: %w", err)
	}

	for _, offer := range snap.SellOffers {
		repo.SaveSellOffer(offer)
		res.MaxID = max(res.MaxID, offer.OfferID)
	}
	for _, order := range snap.BuyOrders {
		repo.SaveBuyOrder(order)
		res.MaxID = max(res.MaxID, order.OrderID)
	}
	for _, state := range snap.Players {
		registry.Restore(state)
	}

	res.SellOffers = len(snap.SellOffers)
	res.BuyOrders = len(snap.BuyOrders)
	res.Players = len(snap.Players)

	log.Printf("[Bootstrap] Restored %d sell offers, %d buy orders, %d players",
		res.SellOffers, res.BuyOrders, res.Players)
	return res, nil
}
