package model

// MarketSummary describes recent trading in one item. Prices are per item.
type MarketSummary struct {
	ItemStringID string  `json:"item_string_id"`
	GuidePrice   int     `json:"guide_price"` // median of recent trade prices
	VWAP         int     `json:"vwap"`
	AveragePrice int     `json:"average_price"`
	High24h      int     `json:"high_24h"`
	Low24h       int     `json:"low_24h"`
	TradeVolume  int     `json:"trade_volume"`
	TradeCount   int     `json:"trade_count"`
	Volatility   float64 `json:"volatility"`
}

// Spread24h returns the 24 hour high minus low.
func (s MarketSummary) Spread24h() int {
	return s.High24h - s.Low24h
}

// AuditEntry is one trade as kept by the audit log.
type AuditEntry struct {
	BuyOrderID   int64  `json:"buy_order_id"`
	SellOfferID  int64  `json:"sell_offer_id"`
	BuyerID      int64  `json:"buyer_id"`
	SellerID     int64  `json:"seller_id"`
	ItemStringID string `json:"item_string_id"`
	Quantity     int    `json:"quantity"`
	PricePerItem int    `json:"price_per_item"`
	TotalCoins   int64  `json:"total_coins"`
	Timestamp    int64  `json:"timestamp"`
}

// IsSelfTrade reports whether one player was on both sides.
func (e AuditEntry) IsSelfTrade() bool {
	return e.BuyerID == e.SellerID
}

// SuspiciousTrade is an audit entry flagged by fraud detection.
type SuspiciousTrade struct {
	AuditEntry
	Reason string `json:"reason"`
}

// PlayerTradeStats totals a player's audited trades.
type PlayerTradeStats struct {
	PlayerID      int64 `json:"player_id"`
	BuyCount      int   `json:"buy_count"`
	SellCount     int   `json:"sell_count"`
	CoinsSpent    int64 `json:"coins_spent"`
	CoinsReceived int64 `json:"coins_received"`
	ItemsBought   int64 `json:"items_bought"`
	ItemsSold     int64 `json:"items_sold"`
}

// AuditStats summarizes the retained audit log.
type AuditStats struct {
	TotalTrades      int64  `json:"total_trades"`
	TotalCoins       int64  `json:"total_coins"`
	RetainedTrades   int    `json:"retained_trades"`
	UniqueItems      int    `json:"unique_items"`
	UniquePlayers    int    `json:"unique_players"`
	MostTradedItem   string `json:"most_traded_item,omitempty"`
	MostActivePlayer int64  `json:"most_active_player,omitempty"`
	FraudDetection   bool   `json:"fraud_detection"`
}
