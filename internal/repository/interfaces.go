package repository

import (
	"context"

	"grandexchange-api/internal/model"
)

// OfferRepository is the single source of truth for sell offers and buy orders.
// Lookups report absence with a false second return value, never an error.
type OfferRepository interface {
	// SaveSellOffer upserts an offer by id and reindexes its listing.
	SaveSellOffer(offer model.SellOffer)

	// SaveBuyOrder upserts an order by id and reindexes its listing.
	SaveBuyOrder(order model.BuyOrder)

	FindSellOfferByID(offerID int64) (model.SellOffer, bool)
	FindBuyOrderByID(orderID int64) (model.BuyOrder, bool)

	// FindActiveSellOffersByItem returns listed offers, cheapest first.
	FindActiveSellOffersByItem(itemStringID string) []model.SellOffer

	// FindActiveBuyOrdersByItem returns listed orders, highest bid first.
	FindActiveBuyOrdersByItem(itemStringID string) []model.BuyOrder

	FindSellOffersByPlayer(playerID int64) []model.SellOffer
	FindBuyOrdersByPlayer(playerID int64) []model.BuyOrder
	FindAllSellOffers() []model.SellOffer
	FindAllBuyOrders() []model.BuyOrder

	// DeleteSellOffer removes an offer from every index. Returns false if it did not exist.
	DeleteSellOffer(offerID int64) bool

	// DeleteBuyOrder removes an order from every index. Returns false if it did not exist.
	DeleteBuyOrder(orderID int64) bool

	CountActiveSellOffersForItem(itemStringID string) int
	CountActiveBuyOrdersForItem(itemStringID string) int
	CountTotalActiveOffers() int
	FindAllActiveItems() []string
	ClearAll()
	Stats() model.RepositoryStats
}

// MarketStore persists offers, orders and player states.
type MarketStore interface {
	SaveSellOffer(ctx context.Context, offer model.SellOffer) error
	SaveBuyOrder(ctx context.Context, order model.BuyOrder) error
	DeleteSellOffer(ctx context.Context, offerID int64) error
	DeleteBuyOrder(ctx context.Context, orderID int64) error

	// SavePlayerStates upserts player states in one transaction.
	SavePlayerStates(ctx context.Context, states []model.PlayerState) error

	// LoadAll reads every persisted record.
	LoadAll(ctx context.Context) (*Snapshot, error)

	// GetStats returns statistics about the store.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the store connection.
	Close() error
}

// Snapshot is the full persisted market.
type Snapshot struct {
	SellOffers []model.SellOffer
	BuyOrders  []model.BuyOrder
	Players    []model.PlayerState
}
