package model

import "fmt"

// Collection box sources.
const (
	SourcePurchase       = "purchase"
	SourceSaleProceeds   = "sale_proceeds"
	SourceExpiredOffer   = "expired_offer"
	SourceCancelledOffer = "cancelled_offer"
	SourceRefund         = "refund"
	SourceUnknown        = "unknown"
)

// CoinItemID is the item id used for coin proceeds placed in a collection box.
const CoinItemID = "coin"

// CollectionItem is one claimable stack in a player's collection box.
type CollectionItem struct {
	ItemStringID string `json:"item_string_id"`
	Quantity     int    `json:"quantity"`
	Source       string `json:"source"`
	AddedAt      int64  `json:"added_at"`
}

// NewCollectionItem creates a collection item stamped with addedAt (unix ms).
func NewCollectionItem(itemStringID string, quantity int, source string, addedAt int64) CollectionItem {
	if source == "" {
		source = SourceUnknown
	}
	return CollectionItem{
		ItemStringID: itemStringID,
		Quantity:     quantity,
		Source:       source,
		AddedAt:      addedAt,
	}
}

// SourceDescription returns a human readable description of where the item came from.
func (c CollectionItem) SourceDescription() string {
	switch c.Source {
	case SourcePurchase:
		return "Purchased from market"
	case SourceSaleProceeds:
		return "Coins from a completed sale"
	case SourceExpiredOffer:
		return "Returned from expired offer"
	case SourceCancelledOffer:
		return "Returned from cancelled offer"
	case SourceRefund:
		return "Refunded from buy order"
	default:
		return "Unknown source"
	}
}

func (c CollectionItem) String() string {
	return fmt.Sprintf("%s x%d (%s)", c.ItemStringID, c.Quantity, c.Source)
}
