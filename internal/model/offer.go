package model

import "fmt"

// OfferState is the lifecycle state of a sell offer.
type OfferState string

const (
	OfferDraft     OfferState = "DRAFT"
	OfferActive    OfferState = "ACTIVE"
	OfferDisabled  OfferState = "DISABLED"
	OfferCompleted OfferState = "COMPLETED"
	OfferExpired   OfferState = "EXPIRED"
	OfferCancelled OfferState = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible from s.
func (s OfferState) IsTerminal() bool {
	return s == OfferCompleted || s == OfferExpired || s == OfferCancelled
}

// SellOffer is a standing intent to sell a quantity of an item at a fixed price.
// ItemsHeld is what the market took from the seller's bank at creation and
// has not yet traded or returned. Timestamps are unix milliseconds.
type SellOffer struct {
	OfferID            int64      `json:"offer_id"`
	SellerID           int64      `json:"seller_id"`
	SellerName         string     `json:"seller_name"`
	SlotIndex          int        `json:"slot_index"`
	ItemStringID       string     `json:"item_string_id"`
	Quantity           int        `json:"quantity"`
	QuantityRemaining  int        `json:"quantity_remaining"`
	PricePerItem       int        `json:"price_per_item"`
	State              OfferState `json:"state"`
	DurationHours      int        `json:"duration_hours"`
	CreatedAt          int64      `json:"created_at"`
	UpdatedAt          int64      `json:"updated_at"`
	ExpiresAt          int64      `json:"expires_at"`
	TotalCoinsReceived int64      `json:"total_coins_received"`
	TransactionCount   int        `json:"transaction_count"`
	ItemsHeld          int        `json:"items_held"`
}

// NewSellOffer creates a DRAFT sell offer. A positive durationHours sets the expiry.
func NewSellOffer(offerID, sellerID int64, sellerName string, slot int, itemStringID string, quantity, pricePerItem, durationHours int, now int64) SellOffer {
	o := SellOffer{
		OfferID:           offerID,
		SellerID:          sellerID,
		SellerName:        sellerName,
		SlotIndex:         slot,
		ItemStringID:      itemStringID,
		Quantity:          quantity,
		QuantityRemaining: quantity,
		PricePerItem:      pricePerItem,
		State:             OfferDraft,
		ItemsHeld:         quantity,
		DurationHours:     durationHours,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if durationHours > 0 {
		o.ExpiresAt = now + int64(durationHours)*3600*1000
	}
	return o
}

// IsListed reports whether the offer belongs in the active listings.
func (o *SellOffer) IsListed() bool {
	return o.State == OfferActive
}

// QuantityTraded returns how many items have been sold so far.
func (o *SellOffer) QuantityTraded() int {
	return o.Quantity - o.QuantityRemaining
}

// IsExpiredAt reports whether the offer's duration has elapsed at now.
func (o *SellOffer) IsExpiredAt(now int64) bool {
	return o.ExpiresAt > 0 && now >= o.ExpiresAt
}

// Enable lists the offer. Only DRAFT and DISABLED offers with stock can be enabled.
func (o *SellOffer) Enable(now int64) bool {
	if o.State != OfferDraft && o.State != OfferDisabled {
		return false
	}
	if o.QuantityRemaining <= 0 {
		return false
	}
	o.State = OfferActive
	o.UpdatedAt = now
	return true
}

// Disable takes an ACTIVE offer off the market, keeping its remaining quantity.
func (o *SellOffer) Disable(now int64) bool {
	if o.State != OfferActive {
		return false
	}
	o.State = OfferDisabled
	o.UpdatedAt = now
	return true
}

// Cancel moves a non-terminal offer to CANCELLED.
func (o *SellOffer) Cancel(now int64) bool {
	if o.State.IsTerminal() {
		return false
	}
	o.State = OfferCancelled
	o.UpdatedAt = now
	return true
}

// Expire moves a non-terminal offer to EXPIRED.
func (o *SellOffer) Expire(now int64) bool {
	if o.State.IsTerminal() {
		return false
	}
	o.State = OfferExpired
	o.UpdatedAt = now
	return true
}

// RecordTrade applies a fill of quantity items worth coins. The offer stays
// ACTIVE while stock remains and becomes COMPLETED at zero.
func (o *SellOffer) RecordTrade(quantity int, coins int64, now int64) error {
	if o.State != OfferActive {
		return fmt.Errorf("offer %d is %s: %w", o.OfferID, o.State, ErrInvalidState)
	}
	if quantity <= 0 || quantity > o.QuantityRemaining || quantity > o.ItemsHeld {
		return fmt.Errorf("offer %d: trade quantity %d exceeds remaining %d (held %d): %w",
			o.OfferID, quantity, o.QuantityRemaining, o.ItemsHeld, ErrValidation)
	}
	o.ItemsHeld -= quantity
	o.QuantityRemaining -= quantity
	o.TotalCoinsReceived += coins
	o.TransactionCount++
	o.UpdatedAt = now
	if o.QuantityRemaining == 0 {
		o.State = OfferCompleted
	}
	return nil
}

// ReleaseItems empties the escrow and returns how many items it held.
func (o *SellOffer) ReleaseItems() int {
	n := o.ItemsHeld
	o.ItemsHeld = 0
	return n
}
