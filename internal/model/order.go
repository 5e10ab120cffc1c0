package model

import "fmt"

// OrderState is the lifecycle state of a buy order.
type OrderState string

const (
	OrderDraft     OrderState = "DRAFT"
	OrderActive    OrderState = "ACTIVE"
	OrderDisabled  OrderState = "DISABLED"
	OrderCompleted OrderState = "COMPLETED"
	OrderExpired   OrderState = "EXPIRED"
	OrderCancelled OrderState = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible from s.
func (s OrderState) IsTerminal() bool {
	return s == OrderCompleted || s == OrderExpired || s == OrderCancelled
}

// BuyOrder is a standing intent to buy a quantity of an item up to a price.
// CoinsHeld is what the market took from the buyer's bank while the order is
// listed; fills and refunds are paid out of it and never exceed it.
type BuyOrder struct {
	OrderID           int64      `json:"order_id"`
	BuyerID           int64      `json:"buyer_id"`
	BuyerName         string     `json:"buyer_name"`
	SlotIndex         int        `json:"slot_index"`
	ItemStringID      string     `json:"item_string_id"`
	Quantity          int        `json:"quantity"`
	QuantityRemaining int        `json:"quantity_remaining"`
	PricePerItem      int        `json:"price_per_item"`
	Enabled           bool       `json:"enabled"`
	State             OrderState `json:"state"`
	DurationDays      int        `json:"duration_days"`
	CreatedAt         int64      `json:"created_at"`
	UpdatedAt         int64      `json:"updated_at"`
	ExpiresAt         int64      `json:"expires_at"`
	TotalCoinsSpent   int64      `json:"total_coins_spent"`
	CoinsHeld         int64      `json:"coins_held"`
}

// NewBuyOrder creates an unconfigured DRAFT buy order in the given slot.
func NewBuyOrder(orderID, buyerID int64, buyerName string, slot int, now int64) BuyOrder {
	return BuyOrder{
		OrderID:   orderID,
		BuyerID:   buyerID,
		BuyerName: buyerName,
		SlotIndex: slot,
		State:     OrderDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsConfigured reports whether the order names an item, a quantity and a price.
func (o *BuyOrder) IsConfigured() bool {
	return o.ItemStringID != "" && o.Quantity > 0 && o.PricePerItem > 0
}

// IsListed reports whether the order belongs in the active listings.
func (o *BuyOrder) IsListed() bool {
	return o.Enabled && o.State == OrderActive && o.QuantityRemaining > 0
}

// QuantityFilled returns how many items have been bought so far.
func (o *BuyOrder) QuantityFilled() int {
	return o.Quantity - o.QuantityRemaining
}

// IsExpiredAt reports whether the order's duration has elapsed at now.
func (o *BuyOrder) IsExpiredAt(now int64) bool {
	return o.ExpiresAt > 0 && now >= o.ExpiresAt
}

// CoinsToHold returns the coins the order still needs to cover its remaining
// quantity at its bid.
func (o *BuyOrder) CoinsToHold() int64 {
	return max(0, int64(o.QuantityRemaining)*int64(o.PricePerItem)-o.CoinsHeld)
}

// HoldCoins records coins taken into escrow.
func (o *BuyOrder) HoldCoins(coins int64) {
	o.CoinsHeld += coins
}

// ReleaseCoins empties the escrow and returns what it held.
func (o *BuyOrder) ReleaseCoins() int64 {
	coins := o.CoinsHeld
	o.CoinsHeld = 0
	return coins
}

// Configure sets the order's terms. Only DRAFT orders can be configured.
func (o *BuyOrder) Configure(itemStringID string, quantity, pricePerItem, durationDays int, now int64) error {
	if o.State != OrderDraft {
		return fmt.Errorf("order %d is %s: %w", o.OrderID, o.State, ErrInvalidState)
	}
	if itemStringID == "" || quantity <= 0 || pricePerItem <= 0 || durationDays < 0 {
		return fmt.Errorf("order %d: bad terms: %w", o.OrderID, ErrValidation)
	}
	o.ItemStringID = itemStringID
	o.Quantity = quantity
	o.QuantityRemaining = quantity
	o.PricePerItem = pricePerItem
	o.DurationDays = durationDays
	o.ExpiresAt = 0
	if durationDays > 0 {
		o.ExpiresAt = now + int64(durationDays)*24*3600*1000
	}
	o.UpdatedAt = now
	return nil
}

// CanMatchSellOffer reports whether this order may buy from the offer:
// same item, bid at or above the ask, and never from its own buyer.
func (o *BuyOrder) CanMatchSellOffer(offer *SellOffer) bool {
	if offer == nil || !o.IsListed() || !offer.IsListed() {
		return false
	}
	return o.ItemStringID == offer.ItemStringID &&
		o.PricePerItem >= offer.PricePerItem &&
		o.BuyerID != offer.SellerID
}

// Enable lists a configured DRAFT or DISABLED order.
func (o *BuyOrder) Enable(now int64) bool {
	if o.State != OrderDraft && o.State != OrderDisabled {
		return false
	}
	if !o.IsConfigured() || o.QuantityRemaining <= 0 {
		return false
	}
	o.Enabled = true
	o.State = OrderActive
	o.UpdatedAt = now
	return true
}

// Disable takes an ACTIVE order off the market.
func (o *BuyOrder) Disable(now int64) bool {
	if o.State != OrderActive {
		return false
	}
	o.Enabled = false
	o.State = OrderDisabled
	o.UpdatedAt = now
	return true
}

// Cancel moves a non-terminal order to CANCELLED.
func (o *BuyOrder) Cancel(now int64) bool {
	if o.State.IsTerminal() {
		return false
	}
	o.Enabled = false
	o.State = OrderCancelled
	o.UpdatedAt = now
	return true
}

// Expire moves a non-terminal order to EXPIRED.
func (o *BuyOrder) Expire(now int64) bool {
	if o.State.IsTerminal() {
		return false
	}
	o.Enabled = false
	o.State = OrderExpired
	o.UpdatedAt = now
	return true
}

// RecordPurchase applies a fill of quantity items at pricePerItem. The fill
// consumes quantity times the bid from the escrow; the part above the trade
// price is returned as the refund.
func (o *BuyOrder) RecordPurchase(quantity, pricePerItem int, now int64) (refund int64, err error) {
	if !o.IsListed() {
		return 0, fmt.Errorf("order %d is %s: %w", o.OrderID, o.State, ErrInvalidState)
	}
	if quantity <= 0 || quantity > o.QuantityRemaining {
		return 0, fmt.Errorf("order %d: purchase quantity %d exceeds remaining %d: %w",
			o.OrderID, quantity, o.QuantityRemaining, ErrValidation)
	}
	if pricePerItem > o.PricePerItem {
		return 0, fmt.Errorf("order %d: price %d above bid %d: %w",
			o.OrderID, pricePerItem, o.PricePerItem, ErrValidation)
	}
	consumed := int64(quantity) * int64(o.PricePerItem)
	if consumed > o.CoinsHeld {
		return 0, fmt.Errorf("order %d: fill needs %d coins, %d held: %w",
			o.OrderID, consumed, o.CoinsHeld, ErrInsufficientFunds)
	}
	spent := int64(quantity) * int64(pricePerItem)
	o.CoinsHeld -= consumed
	o.QuantityRemaining -= quantity
	o.TotalCoinsSpent += spent
	o.UpdatedAt = now
	if o.QuantityRemaining == 0 {
		o.State = OrderCompleted
		o.Enabled = false
	}
	return consumed - spent, nil
}
