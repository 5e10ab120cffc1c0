// Package inventory holds per-player Grand Exchange state: the bank the market
// escrows from, the collection box of claimable items, the trade history with
// its acknowledgement baseline, and lifetime statistics.
package inventory

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"grandexchange-api/internal/model"
)

// DefaultMaxHistoryEntries bounds the retained trade history per player.
const DefaultMaxHistoryEntries = 50

// PlayerGEInventory is one player's market inventory. All methods are safe for
// concurrent use; operations on one inventory are serialized.
type PlayerGEInventory struct {
	mu sync.Mutex

	playerID   int64
	playerName string
	maxHistory int

	bank                map[string]int64
	collectionBox       []model.CollectionItem
	history             []model.HistoryEntry // newest first
	lastHistoryViewed   int64
	stats               model.HistoryStats
	collectionPageIndex int
	updatedAt           int64
}

// NewPlayerGEInventory creates an empty inventory. maxHistory <= 0 uses DefaultMaxHistoryEntries.
func NewPlayerGEInventory(playerID int64, playerName string, maxHistory int) *PlayerGEInventory {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistoryEntries
	}
	return &PlayerGEInventory{
		playerID:   playerID,
		playerName: playerName,
		maxHistory: maxHistory,
	}
}

// PlayerID returns the owning player's id.
func (inv *PlayerGEInventory) PlayerID() int64 {
	return inv.playerID
}

// PlayerName returns the last known name of the owning player.
func (inv *PlayerGEInventory) PlayerName() string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.playerName
}

// SetPlayerName records a new display name.
func (inv *PlayerGEInventory) SetPlayerName(name string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if name != "" {
		inv.playerName = name
	}
}

func (inv *PlayerGEInventory) touch() {
	inv.updatedAt = time.Now().UnixMilli()
}

// ===== Bank =====

// Deposit adds quantity of an item to the bank and returns the new balance.
func (inv *PlayerGEInventory) Deposit(itemStringID string, quantity int64) (int64, error) {
	if itemStringID == "" || quantity <= 0 {
		return 0, fmt.Errorf("deposit %d %q: %w", quantity, itemStringID, model.ErrValidation)
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if inv.bank == nil {
		inv.bank = make(map[string]int64)
	}
	inv.bank[itemStringID] += quantity
	inv.touch()
	return inv.bank[itemStringID], nil
}

// Withdraw takes quantity of an item out of the bank and returns the new
// balance. Nothing is taken when the balance is short.
func (inv *PlayerGEInventory) Withdraw(itemStringID string, quantity int64) (int64, error) {
	if itemStringID == "" || quantity <= 0 {
		return 0, fmt.Errorf("withdraw %d %q: %w", quantity, itemStringID, model.ErrValidation)
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()

	balance := inv.bank[itemStringID]
	if balance < quantity {
		return balance, fmt.Errorf("withdraw %d %s, balance %d: %w", quantity, itemStringID, balance, model.ErrInsufficientFunds)
	}
	if balance == quantity {
		delete(inv.bank, itemStringID)
	} else {
		inv.bank[itemStringID] = balance - quantity
	}
	inv.touch()
	return balance - quantity, nil
}

// Balance returns how much of an item the bank holds.
func (inv *PlayerGEInventory) Balance(itemStringID string) int64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.bank[itemStringID]
}

// Bank returns a copy of every non-zero balance.
func (inv *PlayerGEInventory) Bank() map[string]int64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := maps.Clone(inv.bank)
	if out == nil {
		out = map[string]int64{}
	}
	return out
}

// ===== Collection box =====

// AddToCollectionBox appends a new item to the end of the box.
func (inv *PlayerGEInventory) AddToCollectionBox(itemStringID string, quantity int, source string) model.CollectionItem {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	item := model.NewCollectionItem(itemStringID, quantity, source, time.Now().UnixMilli())
	inv.collectionBox = append(inv.collectionBox, item)
	inv.touch()
	return item
}

// RemoveFromCollectionBox removes and returns the item at index.
// Items after it shift down by one. Returns false if index is out of range.
func (inv *PlayerGEInventory) RemoveFromCollectionBox(index int) (model.CollectionItem, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.removeLocked(index)
}

func (inv *PlayerGEInventory) removeLocked(index int) (model.CollectionItem, bool) {
	if index < 0 || index >= len(inv.collectionBox) {
		return model.CollectionItem{}, false
	}
	item := inv.collectionBox[index]
	inv.collectionBox = slices.Delete(inv.collectionBox, index, index+1)
	inv.touch()
	return item, true
}

// InsertIntoCollectionBox inserts item at index, shifting later items up.
// An out-of-range index appends the item instead so a rollback never loses it.
func (inv *PlayerGEInventory) InsertIntoCollectionBox(index int, item model.CollectionItem) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.insertLocked(index, item)
}

func (inv *PlayerGEInventory) insertLocked(index int, item model.CollectionItem) {
	if index < 0 || index > len(inv.collectionBox) {
		inv.collectionBox = append(inv.collectionBox, item)
	} else {
		inv.collectionBox = slices.Insert(inv.collectionBox, index, item)
	}
	inv.touch()
}

// ClaimAt removes the item at index and hands it to deliver while holding the
// inventory lock. If deliver fails the item is put back at the same index.
func (inv *PlayerGEInventory) ClaimAt(index int, deliver func(model.CollectionItem) error) (model.CollectionItem, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	item, ok := inv.removeLocked(index)
	if !ok {
		return model.CollectionItem{}, fmt.Errorf("index %d of %d: %w", index, len(inv.collectionBox), model.ErrInvalidIndex)
	}
	if err := deliver(item); err != nil {
		inv.insertLocked(index, item)
		return item, err
	}
	return item, nil
}

// MoveToBank removes the item at index and deposits it into the bank under
// one lock, so the item is never in both places or neither.
func (inv *PlayerGEInventory) MoveToBank(index int) (model.CollectionItem, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	item, ok := inv.removeLocked(index)
	if !ok {
		return model.CollectionItem{}, fmt.Errorf("index %d of %d: %w", index, len(inv.collectionBox), model.ErrInvalidIndex)
	}
	if inv.bank == nil {
		inv.bank = make(map[string]int64)
	}
	inv.bank[item.ItemStringID] += int64(item.Quantity)
	inv.touch()
	return item, nil
}

// CollectionBox returns a copy of the box in order.
func (inv *PlayerGEInventory) CollectionBox() []model.CollectionItem {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return slices.Clone(inv.collectionBox)
}

// CollectionBoxSize returns the number of items in the box.
func (inv *PlayerGEInventory) CollectionBoxSize() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.collectionBox)
}

// ClearCollectionBox empties the box and returns what it held.
func (inv *PlayerGEInventory) ClearCollectionBox() []model.CollectionItem {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	items := inv.collectionBox
	inv.collectionBox = nil
	inv.touch()
	return items
}

// CollectionPageIndex returns the last page the player viewed.
func (inv *PlayerGEInventory) CollectionPageIndex() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.collectionPageIndex
}

// SetCollectionPageIndex remembers the page the player viewed.
func (inv *PlayerGEInventory) SetCollectionPageIndex(page int) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.collectionPageIndex = max(0, page)
}

// ===== History =====

// AddHistoryEntry records a trade, newest first, trimming to the history cap.
func (inv *PlayerGEInventory) AddHistoryEntry(entry model.HistoryEntry) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	inv.history = slices.Insert(inv.history, 0, entry)
	if len(inv.history) > inv.maxHistory {
		inv.history = inv.history[:inv.maxHistory]
	}
	if entry.IsSale {
		inv.stats.TotalItemsSold += entry.Quantity
	} else {
		inv.stats.TotalItemsPurchased += entry.Quantity
	}
	inv.touch()
}

// History returns a copy of the retained entries, newest first.
func (inv *PlayerGEInventory) History() []model.HistoryEntry {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return slices.Clone(inv.history)
}

// LatestHistoryTimestamp returns the newest entry's timestamp, or 0.
func (inv *PlayerGEInventory) LatestHistoryTimestamp() int64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.latestLocked()
}

func (inv *PlayerGEInventory) latestLocked() int64 {
	var latest int64
	for _, e := range inv.history {
		latest = max(latest, e.Timestamp)
	}
	return latest
}

// MarkHistoryViewed raises the acknowledgement baseline. The baseline never
// moves backwards; the return value reports whether it changed.
func (inv *PlayerGEInventory) MarkHistoryViewed(timestamp int64) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if timestamp <= inv.lastHistoryViewed {
		return false
	}
	inv.lastHistoryViewed = timestamp
	inv.touch()
	return true
}

// LastHistoryViewed returns the acknowledgement baseline.
func (inv *PlayerGEInventory) LastHistoryViewed() int64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.lastHistoryViewed
}

// UnseenHistoryCount counts retained entries newer than the baseline.
func (inv *PlayerGEInventory) UnseenHistoryCount() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.unseenLocked()
}

func (inv *PlayerGEInventory) unseenLocked() int {
	n := 0
	for _, e := range inv.history {
		if e.Timestamp > inv.lastHistoryViewed {
			n++
		}
	}
	return n
}

// HistoryView returns entries, baseline, latest timestamp and unseen count
// read under one lock.
func (inv *PlayerGEInventory) HistoryView() (entries []model.HistoryEntry, baseline, latest int64, unseen int, stats model.HistoryStats) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return slices.Clone(inv.history), inv.lastHistoryViewed, inv.latestLocked(), inv.unseenLocked(), inv.stats
}

// ===== Statistics =====

// Stats returns the lifetime counters.
func (inv *PlayerGEInventory) Stats() model.HistoryStats {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.stats
}

// RecordSellOfferCreated increments the created sell offer counter.
func (inv *PlayerGEInventory) RecordSellOfferCreated() {
	inv.updateStats(func(s *model.HistoryStats) { s.SellOffersCreated++ })
}

// RecordSellOfferCompleted increments the completed sell offer counter.
func (inv *PlayerGEInventory) RecordSellOfferCompleted() {
	inv.updateStats(func(s *model.HistoryStats) { s.SellOffersCompleted++ })
}

// RecordBuyOrderCreated increments the created buy order counter.
func (inv *PlayerGEInventory) RecordBuyOrderCreated() {
	inv.updateStats(func(s *model.HistoryStats) { s.BuyOrdersCreated++ })
}

// RecordBuyOrderCompleted increments the completed buy order counter.
func (inv *PlayerGEInventory) RecordBuyOrderCompleted() {
	inv.updateStats(func(s *model.HistoryStats) { s.BuyOrdersCompleted++ })
}

func (inv *PlayerGEInventory) updateStats(fn func(*model.HistoryStats)) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	fn(&inv.stats)
	inv.touch()
}

// ===== Persistence =====

// State exports the inventory for persistence.
func (inv *PlayerGEInventory) State() model.PlayerState {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	return model.PlayerState{
		PlayerID:            inv.playerID,
		PlayerName:          inv.playerName,
		CollectionBox:       slices.Clone(inv.collectionBox),
		History:             slices.Clone(inv.history),
		LastHistoryViewed:   inv.lastHistoryViewed,
		Stats:               inv.stats,
		CollectionPageIndex: inv.collectionPageIndex,
		Bank:                maps.Clone(inv.bank),
		UpdatedAt:           inv.updatedAt,
	}
}

// Restore replaces the inventory's contents with a persisted state.
func (inv *PlayerGEInventory) Restore(state model.PlayerState) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if state.PlayerName != "" {
		inv.playerName = state.PlayerName
	}
	inv.collectionBox = slices.Clone(state.CollectionBox)
	inv.history = slices.Clone(state.History)
	if len(inv.history) > inv.maxHistory {
		inv.history = inv.history[:inv.maxHistory]
	}
	inv.lastHistoryViewed = state.LastHistoryViewed
	inv.stats = state.Stats
	inv.collectionPageIndex = max(0, state.CollectionPageIndex)
	inv.bank = maps.Clone(state.Bank)
	inv.updatedAt = state.UpdatedAt
}
