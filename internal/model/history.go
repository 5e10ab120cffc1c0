package model

// HistoryEntry is one completed trade as seen by one of its parties.
type HistoryEntry struct {
	ItemStringID     string `json:"item_string_id"`
	Quantity         int    `json:"quantity"`
	PricePerItem     int    `json:"price_per_item"`
	TotalCoins       int64  `json:"total_coins"`
	Partial          bool   `json:"partial"`
	CounterpartyName string `json:"counterparty_name"`
	Timestamp        int64  `json:"timestamp"`
	IsSale           bool   `json:"is_sale"`
}

// HistoryStats are the lifetime trading counters of a player.
type HistoryStats struct {
	TotalItemsPurchased int `json:"total_items_purchased"`
	TotalItemsSold      int `json:"total_items_sold"`
	SellOffersCreated   int `json:"sell_offers_created"`
	SellOffersCompleted int `json:"sell_offers_completed"`
	BuyOrdersCreated    int `json:"buy_orders_created"`
	BuyOrdersCompleted  int `json:"buy_orders_completed"`
}

// HistoryTabSnapshot is the full authoritative history state sent on subscribe.
// Entries are newest first.
type HistoryTabSnapshot struct {
	PlayerID                int64          `json:"player_id"`
	Entries                 []HistoryEntry `json:"entries"`
	Stats                   HistoryStats   `json:"stats"`
	LatestEntryTimestamp    int64          `json:"latest_entry_timestamp"`
	ServerBaselineTimestamp int64          `json:"server_baseline_timestamp"`
}

// HistoryDelta carries entries recorded since the previous update.
type HistoryDelta struct {
	Sequence             int64          `json:"sequence"`
	PlayerID             int64          `json:"player_id"`
	NewEntries           []HistoryEntry `json:"new_entries"`
	Stats                HistoryStats   `json:"stats"`
	LatestEntryTimestamp int64          `json:"latest_entry_timestamp"`
	ServerAckTimestamp   int64          `json:"server_ack_timestamp"`
}

// HistoryBadge is the server's authoritative unseen count.
type HistoryBadge struct {
	PlayerID             int64 `json:"player_id"`
	UnseenCount          int   `json:"unseen_count"`
	LatestEntryTimestamp int64 `json:"latest_entry_timestamp"`
	ServerAckTimestamp   int64 `json:"server_ack_timestamp"`
}

// PlayerState is the persisted form of a player's market inventory.
type PlayerState struct {
	PlayerID            int64            `json:"player_id"`
	PlayerName          string           `json:"player_name"`
	CollectionBox       []CollectionItem `json:"collection_box"`
	History             []HistoryEntry   `json:"history"`
	LastHistoryViewed   int64            `json:"last_history_viewed"`
	Stats               HistoryStats     `json:"stats"`
	CollectionPageIndex int              `json:"collection_page_index"`
	Bank                map[string]int64 `json:"bank,omitempty"`
	UpdatedAt           int64            `json:"updated_at"`
}

// RepositoryStats summarizes the offer repository.
type RepositoryStats struct {
	SellOffers       int `json:"sell_offers"`
	BuyOrders        int `json:"buy_orders"`
	ActiveSellOffers int `json:"active_sell_offers"`
	ActiveBuyOrders  int `json:"active_buy_orders"`
	ActiveItems      int `json:"active_items"`
}
