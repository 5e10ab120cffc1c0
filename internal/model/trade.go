package model

// Player identifies the player an action is performed for.
type Player struct {
	ID   int64  `json:"player_id"`
	Name string `json:"player_name"`
}

// Trade is one fill between a buy order and a sell offer.
type Trade struct {
	SellOfferID  int64  `json:"sell_offer_id"`
	BuyOrderID   int64  `json:"buy_order_id"`
	SellerID     int64  `json:"seller_id"`
	BuyerID      int64  `json:"buyer_id"`
	ItemStringID string `json:"item_string_id"`
	Quantity     int    `json:"quantity"`
	PricePerItem int    `json:"price_per_item"`
	TotalCoins   int64  `json:"total_coins"`
	Timestamp    int64  `json:"timestamp"`
}

// PriceLevel aggregates the listed quantity at one price.
type PriceLevel struct {
	PricePerItem int `json:"price_per_item"`
	Quantity     int `json:"quantity"`
	Orders       int `json:"orders"`
}

// MarketDepth is the aggregated order book of one item.
type MarketDepth struct {
	ItemStringID string       `json:"item_string_id"`
	Asks         []PriceLevel `json:"asks"` // cheapest first
	Bids         []PriceLevel `json:"bids"` // highest first
	BestAsk      int          `json:"best_ask"`
	BestBid      int          `json:"best_bid"`
	GeneratedAt  int64        `json:"generated_at"`
}
