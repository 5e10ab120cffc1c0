package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"grandexchange-api/internal/cache"
	"grandexchange-api/internal/model"
)

// DefaultAuditLogSize bounds each audit ring when no size is configured.
const DefaultAuditLogSize = 1000

// auditSnapshotKey is the cache key the global audit log is saved under.
const auditSnapshotKey = "audit:global"

// Suspicious trade rules.
const (
	outlierMinTrades = 5
	outlierFactor    = 10
)

// AuditLog keeps recent trades globally, per item and per player, and flags
// self trades and price outliers. Every ring holds at most size entries,
// oldest first.
type AuditLog struct {
	mu     sync.RWMutex
	size   int
	fraud  bool
	global []model.AuditEntry
	items  map[string][]model.AuditEntry
	player map[int64][]model.AuditEntry

	totalTrades int64
	totalCoins  int64
}

// NewAuditLog creates an audit log. fraudDetection enables SuspiciousTrades.
func NewAuditLog(size int, fraudDetection bool) *AuditLog {
	if size <= 0 {
		size = DefaultAuditLogSize
	}
	return &AuditLog{
		size:   size,
		fraud:  fraudDetection,
		items:  make(map[string][]model.AuditEntry),
		player: make(map[int64][]model.AuditEntry),
	}
}

func auditEntry(t model.Trade) model.AuditEntry {
	return model.AuditEntry{
		BuyOrderID:   t.BuyOrderID,
		SellOfferID:  t.SellOfferID,
		BuyerID:      t.BuyerID,
		SellerID:     t.SellerID,
		ItemStringID: t.ItemStringID,
		Quantity:     t.Quantity,
		PricePerItem: t.PricePerItem,
		TotalCoins:   t.TotalCoins,
		Timestamp:    t.Timestamp,
	}
}

func (l *AuditLog) push(ring []model.AuditEntry, e model.AuditEntry) []model.AuditEntry {
	ring = append(ring, e)
	if len(ring) > l.size {
		ring = slices.Delete(ring, 0, len(ring)-l.size)
	}
	return ring
}

// RecordTrade logs a fill. A nil receiver ignores it.
func (l *AuditLog) RecordTrade(trade model.Trade) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addLocked(auditEntry(trade))
}

func (l *AuditLog) addLocked(e model.AuditEntry) {
	l.global = l.push(l.global, e)
	l.items[e.ItemStringID] = l.push(l.items[e.ItemStringID], e)
	l.player[e.BuyerID] = l.push(l.player[e.BuyerID], e)
	if e.SellerID != e.BuyerID {
		l.player[e.SellerID] = l.push(l.player[e.SellerID], e)
	}
	l.totalTrades++
	l.totalCoins += e.TotalCoins
}

func tail(ring []model.AuditEntry, limit int) []model.AuditEntry {
	if limit <= 0 || limit > len(ring) {
		limit = len(ring)
	}
	return slices.Clone(ring[len(ring)-limit:])
}

// Recent returns up to limit of the latest trades, oldest first.
func (l *AuditLog) Recent(limit int) []model.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return tail(l.global, limit)
}

// RecentForItem returns up to limit of the latest trades of an item.
func (l *AuditLog) RecentForItem(itemStringID string, limit int) []model.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return tail(l.items[itemStringID], limit)
}

// RecentForPlayer returns up to limit of the latest trades a player bought or sold in.
func (l *AuditLog) RecentForPlayer(playerID int64, limit int) []model.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return tail(l.player[playerID], limit)
}

// SuspiciousTrades flags self trades, and trades priced above ten times the
// item's average once the item has at least five retained trades. Returns
// nothing when fraud detection is off.
func (l *AuditLog) SuspiciousTrades() []model.SuspiciousTrade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []model.SuspiciousTrade{}
	if !l.fraud {
		return out
	}
	for _, e := range l.global {
		if e.IsSelfTrade() {
			out = append(out, model.SuspiciousTrade{AuditEntry: e, Reason: "self_trade"})
		}
	}

	byItem := make(map[string][]model.AuditEntry)
	var order []string
	for _, e := range l.global {
		if _, ok := byItem[e.ItemStringID]; !ok {
			order = append(order, e.ItemStringID)
		}
		byItem[e.ItemStringID] = append(byItem[e.ItemStringID], e)
	}
	for _, item := range order {
		trades := byItem[item]
		if len(trades) < outlierMinTrades {
			continue
		}
		var sum int64
		for _, e := range trades {
			sum += int64(e.PricePerItem)
		}
		avg := float64(sum) / float64(len(trades))
		for _, e := range trades {
			if float64(e.PricePerItem) > avg*outlierFactor {
				out = append(out, model.SuspiciousTrade{AuditEntry: e, Reason: "price_outlier"})
			}
		}
	}
	return out
}

// PlayerStats totals a player's retained trades.
func (l *AuditLog) PlayerStats(playerID int64) model.PlayerTradeStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := model.PlayerTradeStats{PlayerID: playerID}
	for _, e := range l.player[playerID] {
		if e.BuyerID == playerID {
			st.BuyCount++
			st.CoinsSpent += e.TotalCoins
			st.ItemsBought += int64(e.Quantity)
		}
		if e.SellerID == playerID {
			st.SellCount++
			st.CoinsReceived += e.TotalCoins
			st.ItemsSold += int64(e.Quantity)
		}
	}
	return st
}

// Stats summarizes the log. Ties for most traded item and most active player
// go to the first seen.
func (l *AuditLog) Stats() model.AuditStats {
	if l == nil {
		return model.AuditStats{}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := model.AuditStats{
		TotalTrades:    l.totalTrades,
		TotalCoins:     l.totalCoins,
		RetainedTrades: len(l.global),
		FraudDetection: l.fraud,
	}
	byItem := make(map[string]int)
	byPlayer := make(map[int64]int)
	best, bestPlayer := 0, 0
	for _, e := range l.global {
		byItem[e.ItemStringID]++
		if n := byItem[e.ItemStringID]; n > best {
			best, st.MostTradedItem = n, e.ItemStringID
		}
		for _, p := range []int64{e.BuyerID, e.SellerID} {
			byPlayer[p]++
			if n := byPlayer[p]; n > bestPlayer {
				bestPlayer, st.MostActivePlayer = n, p
			}
		}
	}
	st.UniqueItems = len(byItem)
	st.UniquePlayers = len(byPlayer)
	return st
}

// Clear empties every ring. Totals are kept.
func (l *AuditLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.global = nil
	l.items = make(map[string][]model.AuditEntry)
	l.player = make(map[int64][]model.AuditEntry)
}

// Save writes the global ring to c so a restart sharing the cache can reload it.
func (l *AuditLog) Save(ctx context.Context, c cache.Cache) error {
	l.mu.RLock()
	data, err := cache.EncodeJSON(l.global)
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("audit snapshot: %w", err)
	}
	return c.Set(ctx, auditSnapshotKey, data, 0)
}

// Load replays a saved global ring, rebuilding the item and player rings. A
// missing snapshot is not an error.
func (l *AuditLog) Load(ctx context.Context, c cache.Cache) (int, error) {
	data, err := c.Get(ctx, auditSnapshotKey)
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var entries []model.AuditEntry
	if err := cache.DecodeJSON(data, &entries); err != nil {
		return 0, fmt.Errorf("audit snapshot: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		l.addLocked(e)
	}
	return len(entries), nil
}
