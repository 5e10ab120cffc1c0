package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"grandexchange-api/internal/cache"
	"grandexchange-api/internal/config"
	"grandexchange-api/internal/inventory"
	"grandexchange-api/internal/model"
	"grandexchange-api/internal/repository"
	"grandexchange-api/pkg/uid"
)

// DefaultTerminalRetention is how long completed, cancelled and expired
// records stay visible before ExpireStale purges them.
const DefaultTerminalRetention = 24 * time.Hour

// SellOfferRequest describes a new sell offer.
type SellOfferRequest struct {
	SlotIndex     int    `json:"slot_index"`
	ItemStringID  string `json:"item_string_id"`
	Quantity      int    `json:"quantity"`
	PricePerItem  int    `json:"price_per_item"`
	DurationHours int    `json:"duration_hours"`
}

// BuyOrderTerms configures a draft buy order.
type BuyOrderTerms struct {
	ItemStringID string `json:"item_string_id"`
	Quantity     int    `json:"quantity"`
	PricePerItem int    `json:"price_per_item"`
	DurationDays int    `json:"duration_days"`
}

// ExpireResult summarizes one ExpireStale run.
type ExpireResult struct {
	SellOffersExpired int `json:"sell_offers_expired"`
	BuyOrdersExpired  int `json:"buy_orders_expired"`
	Purged            int `json:"purged"`
}

// Listings is the active side of one item's order book.
type Listings struct {
	ItemStringID string            `json:"item_string_id"`
	SellOffers   []model.SellOffer `json:"sell_offers"`
	BuyOrders    []model.BuyOrder  `json:"buy_orders"`
}

// MarketService runs the Grand Exchange: offer and order lifecycles, matching,
// expiry and the order book views. Mutations and matching are serialized.
//
// The market only pays out what it took. Items of a sell offer are taken from
// the seller's bank at creation; coins of a buy order are taken from the
// buyer's bank when it is enabled, covering its remaining quantity at its bid.
// Both amounts are recorded on the record, fills are paid from them, and what
// is left goes back through the collection box when the record leaves the
// market unfilled.
type MarketService struct {
	mu sync.Mutex

	repo      repository.OfferRepository
	registry  *inventory.Registry
	history   *HistoryService
	persist   *Persistence
	escrow    Escrow
	cache     cache.Cache
	cfg       config.MarketConfig
	limiter   *RateLimiter
	analytics *MarketAnalytics
	audit     *AuditLog

	depthTTL  time.Duration
	retention time.Duration
	nextID    int64
	now       func() int64
}

// NewMarketService creates a new market service. depthCache may be nil.
func NewMarketService(
	repo repository.OfferRepository,
	registry *inventory.Registry,
	history *HistoryService,
	persist *Persistence,
	escrow Escrow,
	depthCache cache.Cache,
	cfg config.MarketConfig,
	depthTTL time.Duration,
) *MarketService {
	return &MarketService{
		repo:      repo,
		registry:  registry,
		history:   history,
		persist:   persist,
		escrow:    escrow,
		cache:     depthCache,
		cfg:       cfg,
		depthTTL:  depthTTL,
		retention: DefaultTerminalRetention,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// SeedIDs makes new ids start after maxID. Call after Bootstrap.
func (s *MarketService) SeedIDs(maxID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = max(s.nextID, maxID)
}

// SetRetention sets how long terminal records are kept.
func (s *MarketService) SetRetention(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retention = d
}

// SetRateLimiter enforces a creation cooldown. nil disables it.
func (s *MarketService) SetRateLimiter(l *RateLimiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = l
}

// SetInsights feeds every trade to the analytics and the audit log. Either may be nil.
func (s *MarketService) SetInsights(analytics *MarketAnalytics, audit *AuditLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analytics = analytics
	s.audit = audit
}

func (s *MarketService) newID() int64 {
	s.nextID++
	return s.nextID
}

// ===== Sell offers =====

// CreateSellOffer creates a DRAFT sell offer in a free slot, taking the
// offered items from the seller's bank.
func (s *MarketService) CreateSellOffer(ctx context.Context, player model.Player, req SellOfferRequest) (model.SellOffer, error) {
	if req.ItemStringID == "" || req.ItemStringID == model.CoinItemID {
		return model.SellOffer{}, fmt.Errorf("item %q cannot be sold: %w", req.ItemStringID, model.ErrValidation)
	}
	if !s.cfg.ValidQuantity(req.Quantity) {
		return model.SellOffer{}, fmt.Errorf("quantity %d: %w", req.Quantity, model.ErrValidation)
	}
	if !s.cfg.ValidPrice(req.PricePerItem) {
		return model.SellOffer{}, fmt.Errorf("price %d outside %d..%d: %w",
			req.PricePerItem, s.cfg.MinPrice, s.cfg.MaxPrice, model.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.limiter.Check(ctx, player.ID, CooldownSellOffer); err != nil {
		return model.SellOffer{}, err
	}
	if err := s.checkSellSlot(player.ID, req.SlotIndex); err != nil {
		return model.SellOffer{}, err
	}
	if err := s.escrow.Hold(ctx, player, req.ItemStringID, int64(req.Quantity)); err != nil {
		return model.SellOffer{}, fmt.Errorf("sell %d %s: %w", req.Quantity, req.ItemStringID, err)
	}

	now := s.now()
	offer := model.NewSellOffer(s.newID(), player.ID, player.Name, req.SlotIndex, req.ItemStringID,
		req.Quantity, req.PricePerItem, s.cfg.NormalizeSellDuration(req.DurationHours), now)
	s.repo.SaveSellOffer(offer)
	s.saveSell(ctx, offer)
	s.limiter.Record(ctx, player.ID, CooldownSellOffer)

	inv := s.registry.GetOrCreate(player.ID, player.Name)
	inv.RecordSellOfferCreated()
	s.savePlayer(ctx, inv)

	uid.Logf(ctx, "[MarketService] Sell offer %d created: player=%d item=%s qty=%d price=%d",
		offer.OfferID, player.ID, offer.ItemStringID, offer.Quantity, offer.PricePerItem)
	return offer, nil
}

func (s *MarketService) checkSellSlot(playerID int64, slot int) error {
	if slot < 0 || slot >= s.cfg.SellSlots {
		return fmt.Errorf("sell slot %d of %d: %w", slot, s.cfg.SellSlots, model.ErrSlotUnavailable)
	}
	for _, o := range s.repo.FindSellOffersByPlayer(playerID) {
		if o.SlotIndex == slot && !o.State.IsTerminal() {
			return fmt.Errorf("sell slot %d holds offer %d: %w", slot, o.OfferID, model.ErrSlotUnavailable)
		}
	}
	return nil
}

// EnableSellOffer lists an offer and matches it against waiting buy orders.
func (s *MarketService) EnableSellOffer(ctx context.Context, player model.Player, offerID int64) (model.SellOffer, []model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.ownedSellOffer(player.ID, offerID)
	if err != nil {
		return model.SellOffer{}, nil, err
	}
	if !offer.Enable(s.now()) {
		return offer, nil, fmt.Errorf("enable offer %d in %s: %w", offerID, offer.State, model.ErrInvalidState)
	}
	s.repo.SaveSellOffer(offer)
	s.saveSell(ctx, offer)

	trades := s.matchSellOffer(ctx, &offer)
	s.invalidateDepth(ctx, offer.ItemStringID)
	return offer, trades, nil
}

// DisableSellOffer takes an offer off the market. Its items stay held.
func (s *MarketService) DisableSellOffer(ctx context.Context, player model.Player, offerID int64) (model.SellOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.ownedSellOffer(player.ID, offerID)
	if err != nil {
		return model.SellOffer{}, err
	}
	if !offer.Disable(s.now()) {
		return offer, fmt.Errorf("disable offer %d in %s: %w", offerID, offer.State, model.ErrInvalidState)
	}
	s.repo.SaveSellOffer(offer)
	s.saveSell(ctx, offer)
	s.invalidateDepth(ctx, offer.ItemStringID)
	return offer, nil
}

// CancelSellOffer cancels an offer and returns the unsold items to the
// seller's collection box.
func (s *MarketService) CancelSellOffer(ctx context.Context, player model.Player, offerID int64) (model.SellOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.ownedSellOffer(player.ID, offerID)
	if err != nil {
		return model.SellOffer{}, err
	}
	if !offer.Cancel(s.now()) {
		return offer, fmt.Errorf("cancel offer %d in %s: %w", offerID, offer.State, model.ErrInvalidState)
	}
	returned := offer.ReleaseItems()
	s.repo.SaveSellOffer(offer)
	s.saveSell(ctx, offer)
	s.returnItems(ctx, offer, returned, model.SourceCancelledOffer)
	s.invalidateDepth(ctx, offer.ItemStringID)

	uid.Logf(ctx, "[MarketService] Sell offer %d cancelled, %d items returned", offerID, returned)
	return offer, nil
}

func (s *MarketService) ownedSellOffer(playerID, offerID int64) (model.SellOffer, error) {
	offer, ok := s.repo.FindSellOfferByID(offerID)
	if !ok {
		return model.SellOffer{}, fmt.Errorf("sell offer %d: %w", offerID, model.ErrNotFound)
	}
	if offer.SellerID != playerID {
		return model.SellOffer{}, fmt.Errorf("sell offer %d: %w", offerID, model.ErrForbidden)
	}
	return offer, nil
}

// returnItems credits items released from an offer's escrow.
func (s *MarketService) returnItems(ctx context.Context, offer model.SellOffer, quantity int, source string) {
	if quantity <= 0 {
		return
	}
	s.credit(ctx, model.Player{ID: offer.SellerID, Name: offer.SellerName},
		offer.ItemStringID, quantity, source)
}

// ===== Buy orders =====

// CreateBuyOrder creates an unconfigured DRAFT buy order in a free slot.
func (s *MarketService) CreateBuyOrder(ctx context.Context, player model.Player, slot int) (model.BuyOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.limiter.Check(ctx, player.ID, CooldownBuyOrder); err != nil {
		return model.BuyOrder{}, err
	}
	if slot < 0 || slot >= s.cfg.BuySlots {
		return model.BuyOrder{}, fmt.Errorf("buy slot %d of %d: %w", slot, s.cfg.BuySlots, model.ErrSlotUnavailable)
	}
	for _, o := range s.repo.FindBuyOrdersByPlayer(player.ID) {
		if o.SlotIndex == slot && !o.State.IsTerminal() {
			return model.BuyOrder{}, fmt.Errorf("buy slot %d holds order %d: %w", slot, o.OrderID, model.ErrSlotUnavailable)
		}
	}

	order := model.NewBuyOrder(s.newID(), player.ID, player.Name, slot, s.now())
	s.repo.SaveBuyOrder(order)
	s.saveBuy(ctx, order)
	s.limiter.Record(ctx, player.ID, CooldownBuyOrder)

	inv := s.registry.GetOrCreate(player.ID, player.Name)
	inv.RecordBuyOrderCreated()
	s.savePlayer(ctx, inv)
	return order, nil
}

// ConfigureBuyOrder sets the terms of a DRAFT order.
func (s *MarketService) ConfigureBuyOrder(ctx context.Context, player model.Player, orderID int64, terms BuyOrderTerms) (model.BuyOrder, error) {
	if terms.ItemStringID == model.CoinItemID {
		return model.BuyOrder{}, fmt.Errorf("coins cannot be bought: %w", model.ErrValidation)
	}
	if !s.cfg.ValidQuantity(terms.Quantity) {
		return model.BuyOrder{}, fmt.Errorf("quantity %d: %w", terms.Quantity, model.ErrValidation)
	}
	if !s.cfg.ValidPrice(terms.PricePerItem) {
		return model.BuyOrder{}, fmt.Errorf("price %d outside %d..%d: %w",
			terms.PricePerItem, s.cfg.MinPrice, s.cfg.MaxPrice, model.ErrValidation)
	}
	if s.cfg.MaxBuyDurationDays > 0 && terms.DurationDays > s.cfg.MaxBuyDurationDays {
		return model.BuyOrder{}, fmt.Errorf("duration %dd exceeds %dd: %w",
			terms.DurationDays, s.cfg.MaxBuyDurationDays, model.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.ownedBuyOrder(player.ID, orderID)
	if err != nil {
		return model.BuyOrder{}, err
	}
	if err := order.Configure(terms.ItemStringID, terms.Quantity, terms.PricePerItem, terms.DurationDays, s.now()); err != nil {
		return order, err
	}
	s.repo.SaveBuyOrder(order)
	s.saveBuy(ctx, order)
	return order, nil
}

// EnableBuyOrder takes the order's coins from the buyer's bank, lists it and
// matches it against the cheapest sell offers. A short bank leaves the order
// as it was.
func (s *MarketService) EnableBuyOrder(ctx context.Context, player model.Player, orderID int64) (model.BuyOrder, []model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.ownedBuyOrder(player.ID, orderID)
	if err != nil {
		return model.BuyOrder{}, nil, err
	}
	enabled := order
	if !enabled.Enable(s.now()) {
		return order, nil, fmt.Errorf("enable order %d in %s: %w", orderID, order.State, model.ErrInvalidState)
	}
	coins := enabled.CoinsToHold()
	if err := s.escrow.Hold(ctx, player, model.CoinItemID, coins); err != nil {
		return order, nil, fmt.Errorf("enable order %d needs %d coins: %w", orderID, coins, err)
	}
	enabled.HoldCoins(coins)
	order = enabled
	s.repo.SaveBuyOrder(order)
	s.saveBuy(ctx, order)

	trades := s.matchBuyOrder(ctx, &order)
	s.invalidateDepth(ctx, order.ItemStringID)
	return order, trades, nil
}

// DisableBuyOrder takes an order off the market and refunds its held coins.
func (s *MarketService) DisableBuyOrder(ctx context.Context, player model.Player, orderID int64) (model.BuyOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.ownedBuyOrder(player.ID, orderID)
	if err != nil {
		return model.BuyOrder{}, err
	}
	if !order.Disable(s.now()) {
		return order, fmt.Errorf("disable order %d in %s: %w", orderID, order.State, model.ErrInvalidState)
	}
	refund := order.ReleaseCoins()
	s.repo.SaveBuyOrder(order)
	s.saveBuy(ctx, order)
	s.refundCoins(ctx, order, refund)
	s.invalidateDepth(ctx, order.ItemStringID)
	return order, nil
}

// CancelBuyOrder cancels an order, refunding whatever coins it holds.
func (s *MarketService) CancelBuyOrder(ctx context.Context, player model.Player, orderID int64) (model.BuyOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.ownedBuyOrder(player.ID, orderID)
	if err != nil {
		return model.BuyOrder{}, err
	}
	if !order.Cancel(s.now()) {
		return order, fmt.Errorf("cancel order %d in %s: %w", orderID, order.State, model.ErrInvalidState)
	}
	refund := order.ReleaseCoins()
	s.repo.SaveBuyOrder(order)
	s.saveBuy(ctx, order)
	s.refundCoins(ctx, order, refund)
	s.invalidateDepth(ctx, order.ItemStringID)
	return order, nil
}

func (s *MarketService) ownedBuyOrder(playerID, orderID int64) (model.BuyOrder, error) {
	order, ok := s.repo.FindBuyOrderByID(orderID)
	if !ok {
		return model.BuyOrder{}, fmt.Errorf("buy order %d: %w", orderID, model.ErrNotFound)
	}
	if order.BuyerID != playerID {
		return model.BuyOrder{}, fmt.Errorf("buy order %d: %w", orderID, model.ErrForbidden)
	}
	return order, nil
}

// refundCoins credits coins released from an order's escrow.
func (s *MarketService) refundCoins(ctx context.Context, order model.BuyOrder, coins int64) {
	if coins <= 0 {
		return
	}
	s.credit(ctx, model.Player{ID: order.BuyerID, Name: order.BuyerName},
		model.CoinItemID, int(coins), model.SourceRefund)
}

// ===== Matching =====

func (s *MarketService) matchSellOffer(ctx context.Context, offer *model.SellOffer) []model.Trade {
	var trades []model.Trade
	for offer.IsListed() {
		var bid *model.BuyOrder
		bids := s.repo.FindActiveBuyOrdersByItem(offer.ItemStringID)
		for i := range bids {
			if bids[i].PricePerItem < offer.PricePerItem {
				break
			}
			if bids[i].CanMatchSellOffer(offer) {
				bid = &bids[i]
				break
			}
		}
		if bid == nil {
			break
		}
		trade, err := s.fill(ctx, bid, offer)
		if err != nil {
			uid.Logf(ctx, "[MarketService] Fill of offer %d against order %d failed: %v", offer.OfferID, bid.OrderID, err)
			break
		}
		trades = append(trades, trade)
	}
	return trades
}

func (s *MarketService) matchBuyOrder(ctx context.Context, order *model.BuyOrder) []model.Trade {
	var trades []model.Trade
	for order.IsListed() {
		var ask *model.SellOffer
		asks := s.repo.FindActiveSellOffersByItem(order.ItemStringID)
		for i := range asks {
			if asks[i].PricePerItem > order.PricePerItem {
				break
			}
			if order.CanMatchSellOffer(&asks[i]) {
				ask = &asks[i]
				break
			}
		}
		if ask == nil {
			break
		}
		trade, err := s.fill(ctx, order, ask)
		if err != nil {
			uid.Logf(ctx, "[MarketService] Fill of order %d against offer %d failed: %v", order.OrderID, ask.OfferID, err)
			break
		}
		trades = append(trades, trade)
	}
	return trades
}

// fill trades as much as both sides allow at the ask price. The seller's
// items and the buyer's coins come out of the two escrows; the buyer gets the
// difference to their bid back. Neither record changes if either side
// cannot cover the fill.
func (s *MarketService) fill(ctx context.Context, order *model.BuyOrder, offer *model.SellOffer) (model.Trade, error) {
	now := s.now()
	qty := min(order.QuantityRemaining, offer.QuantityRemaining)
	price := offer.PricePerItem
	coins := int64(qty) * int64(price)

	filledOffer, filledOrder := *offer, *order
	if err := filledOffer.RecordTrade(qty, coins, now); err != nil {
		return model.Trade{}, err
	}
	improvement, err := filledOrder.RecordPurchase(qty, price, now)
	if err != nil {
		return model.Trade{}, err
	}
	*offer, *order = filledOffer, filledOrder
	s.repo.SaveSellOffer(*offer)
	s.repo.SaveBuyOrder(*order)
	s.saveSell(ctx, *offer)
	s.saveBuy(ctx, *order)

	buyer := model.Player{ID: order.BuyerID, Name: order.BuyerName}
	seller := model.Player{ID: offer.SellerID, Name: offer.SellerName}

	buyerInv := s.registry.GetOrCreate(buyer.ID, buyer.Name)
	buyerInv.AddToCollectionBox(offer.ItemStringID, qty, model.SourcePurchase)
	if improvement > 0 {
		buyerInv.AddToCollectionBox(model.CoinItemID, int(improvement), model.SourceRefund)
	}
	if order.State == model.OrderCompleted {
		buyerInv.RecordBuyOrderCompleted()
	}

	sellerInv := s.registry.GetOrCreate(seller.ID, seller.Name)
	sellerInv.AddToCollectionBox(model.CoinItemID, int(coins), model.SourceSaleProceeds)
	if offer.State == model.OfferCompleted {
		sellerInv.RecordSellOfferCompleted()
	}

	// RecordEntry persists both inventories after the collection box updates.
	s.history.RecordEntry(ctx, seller, model.HistoryEntry{
		ItemStringID:     offer.ItemStringID,
		Quantity:         qty,
		PricePerItem:     price,
		TotalCoins:       coins,
		Partial:          offer.State != model.OfferCompleted,
		CounterpartyName: buyer.Name,
		Timestamp:        now,
		IsSale:           true,
	})
	s.history.RecordEntry(ctx, buyer, model.HistoryEntry{
		ItemStringID:     offer.ItemStringID,
		Quantity:         qty,
		PricePerItem:     price,
		TotalCoins:       coins,
		Partial:          order.State != model.OrderCompleted,
		CounterpartyName: seller.Name,
		Timestamp:        now,
		IsSale:           false,
	})

	uid.Logf(ctx, "[MarketService] Trade: offer=%d order=%d item=%s qty=%d price=%d",
		offer.OfferID, order.OrderID, offer.ItemStringID, qty, price)

	trade := model.Trade{
		SellOfferID:  offer.OfferID,
		BuyOrderID:   order.OrderID,
		SellerID:     seller.ID,
		BuyerID:      buyer.ID,
		ItemStringID: offer.ItemStringID,
		Quantity:     qty,
		PricePerItem: price,
		TotalCoins:   coins,
		Timestamp:    now,
	}
	s.analytics.RecordTrade(trade)
	s.audit.RecordTrade(trade)
	return trade, nil
}

// ===== Expiry =====

// ExpireStale expires offers and orders past their duration, returning what
// their escrows held, and purges terminal records older than the retention.
func (s *MarketService) ExpireStale(ctx context.Context) ExpireResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now - s.retention.Milliseconds()
	var res ExpireResult
	touched := make(map[string]struct{})

	for _, offer := range s.repo.FindAllSellOffers() {
		switch {
		case !offer.State.IsTerminal() && offer.IsExpiredAt(now):
			offer.Expire(now)
			returned := offer.ReleaseItems()
			s.repo.SaveSellOffer(offer)
			s.saveSell(ctx, offer)
			s.returnItems(ctx, offer, returned, model.SourceExpiredOffer)
			touched[offer.ItemStringID] = struct{}{}
			res.SellOffersExpired++
		case offer.State.IsTerminal() && offer.UpdatedAt <= cutoff:
			s.repo.DeleteSellOffer(offer.OfferID)
			if err := s.persist.DeleteSellOffer(ctx, offer.OfferID); err != nil {
				log.Printf("[MarketService] Failed to delete offer %d: %v", offer.OfferID, err)
			}
			res.Purged++
		}
	}

	for _, order := range s.repo.FindAllBuyOrders() {
		switch {
		case !order.State.IsTerminal() && order.IsExpiredAt(now):
			order.Expire(now)
			refund := order.ReleaseCoins()
			s.repo.SaveBuyOrder(order)
			s.saveBuy(ctx, order)
			s.refundCoins(ctx, order, refund)
			touched[order.ItemStringID] = struct{}{}
			res.BuyOrdersExpired++
		case order.State.IsTerminal() && order.UpdatedAt <= cutoff:
			s.repo.DeleteBuyOrder(order.OrderID)
			if err := s.persist.DeleteBuyOrder(ctx, order.OrderID); err != nil {
				log.Printf("[MarketService] Failed to delete order %d: %v", order.OrderID, err)
			}
			res.Purged++
		}
	}

	for item := range touched {
		s.invalidateDepth(ctx, item)
	}
	s.analytics.Cleanup()
	return res
}

// ===== Queries =====

// Listings returns the listed offers (cheapest first) and orders (highest first) of an item.
func (s *MarketService) Listings(itemStringID string) Listings {
	return Listings{
		ItemStringID: itemStringID,
		SellOffers:   s.repo.FindActiveSellOffersByItem(itemStringID),
		BuyOrders:    s.repo.FindActiveBuyOrdersByItem(itemStringID),
	}
}

// Depth returns the aggregated order book of an item, served from the cache when fresh.
func (s *MarketService) Depth(ctx context.Context, itemStringID string) (model.MarketDepth, error) {
	if s.cache == nil {
		return s.buildDepth(itemStringID), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.cache.GetOrSet(ctx, depthKey(itemStringID), s.depthTTL, func() ([]byte, error) {
		return json.Marshal(s.buildDepth(itemStringID))
	})
	if err != nil {
		return model.MarketDepth{}, err
	}
	var depth model.MarketDepth
	if err := json.Unmarshal(data, &depth); err != nil {
		return model.MarketDepth{}, err
	}
	return depth, nil
}

func (s *MarketService) buildDepth(itemStringID string) model.MarketDepth {
	depth := model.MarketDepth{
		ItemStringID: itemStringID,
		Asks:         []model.PriceLevel{},
		Bids:         []model.PriceLevel{},
		GeneratedAt:  s.now(),
	}
	for _, o := range s.repo.FindActiveSellOffersByItem(itemStringID) {
		depth.Asks = addLevel(depth.Asks, o.PricePerItem, o.QuantityRemaining)
	}
	for _, o := range s.repo.FindActiveBuyOrdersByItem(itemStringID) {
		depth.Bids = addLevel(depth.Bids, o.PricePerItem, o.QuantityRemaining)
	}
	if len(depth.Asks) > 0 {
		depth.BestAsk = depth.Asks[0].PricePerItem
	}
	if len(depth.Bids) > 0 {
		depth.BestBid = depth.Bids[0].PricePerItem
	}
	return depth
}

// addLevel folds one record into levels. Records arrive in book order, so
// equal prices are adjacent.
func addLevel(levels []model.PriceLevel, price, quantity int) []model.PriceLevel {
	if n := len(levels); n > 0 && levels[n-1].PricePerItem == price {
		levels[n-1].Quantity += quantity
		levels[n-1].Orders++
		return levels
	}
	return append(levels, model.PriceLevel{PricePerItem: price, Quantity: quantity, Orders: 1})
}

// OrderBook returns the depth of every item with listings.
func (s *MarketService) OrderBook(ctx context.Context) ([]model.MarketDepth, error) {
	items := s.repo.FindAllActiveItems()
	book := make([]model.MarketDepth, 0, len(items))
	for _, item := range items {
		depth, err := s.Depth(ctx, item)
		if err != nil {
			return nil, err
		}
		book = append(book, depth)
	}
	return book, nil
}

// SellOffer returns one offer by id.
func (s *MarketService) SellOffer(offerID int64) (model.SellOffer, error) {
	offer, ok := s.repo.FindSellOfferByID(offerID)
	if !ok {
		return model.SellOffer{}, fmt.Errorf("sell offer %d: %w", offerID, model.ErrNotFound)
	}
	return offer, nil
}

// BuyOrder returns one order by id.
func (s *MarketService) BuyOrder(orderID int64) (model.BuyOrder, error) {
	order, ok := s.repo.FindBuyOrderByID(orderID)
	if !ok {
		return model.BuyOrder{}, fmt.Errorf("buy order %d: %w", orderID, model.ErrNotFound)
	}
	return order, nil
}

// PlayerSellOffers returns a player's offers ordered by slot.
func (s *MarketService) PlayerSellOffers(playerID int64) []model.SellOffer {
	return s.repo.FindSellOffersByPlayer(playerID)
}

// PlayerBuyOrders returns a player's orders ordered by slot.
func (s *MarketService) PlayerBuyOrders(playerID int64) []model.BuyOrder {
	return s.repo.FindBuyOrdersByPlayer(playerID)
}

// Summary returns the price statistics of an item's recent trades.
func (s *MarketService) Summary(itemStringID string) model.MarketSummary {
	s.mu.Lock()
	analytics := s.analytics
	s.mu.Unlock()
	return analytics.Summary(itemStringID)
}

// Stats returns repository statistics.
func (s *MarketService) Stats() model.RepositoryStats {
	return s.repo.Stats()
}

// ===== Helpers =====

func depthKey(itemStringID string) string {
	return "depth:" + itemStringID
}

func (s *MarketService) invalidateDepth(ctx context.Context, itemStringID string) {
	if s.cache == nil || itemStringID == "" {
		return
	}
	if err := s.cache.Delete(ctx, depthKey(itemStringID)); err != nil {
		log.Printf("[MarketService] Failed to invalidate depth of %s: %v", itemStringID, err)
	}
}

func (s *MarketService) credit(ctx context.Context, player model.Player, itemStringID string, quantity int, source string) {
	inv := s.registry.GetOrCreate(player.ID, player.Name)
	inv.AddToCollectionBox(itemStringID, quantity, source)
	s.savePlayer(ctx, inv)
}

func (s *MarketService) saveSell(ctx context.Context, offer model.SellOffer) {
	if err := s.persist.SaveSellOffer(ctx, offer); err != nil {
		log.Printf("[MarketService] Failed to persist offer %d: %v", offer.OfferID, err)
	}
}

func (s *MarketService) saveBuy(ctx context.Context, order model.BuyOrder) {
	if err := s.persist.SaveBuyOrder(ctx, order); err != nil {
		log.Printf("[MarketService] Failed to persist order %d: %v", order.OrderID, err)
	}
}

func (s *MarketService) savePlayer(ctx context.Context, inv *inventory.PlayerGEInventory) {
	if err := s.persist.SavePlayer(ctx, inv); err != nil {
		log.Printf("[MarketService] Failed to persist player %d: %v", inv.PlayerID(), err)
	}
}
