package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"grandexchange-api/internal/inventory"
	"grandexchange-api/internal/model"
)

// Publisher pushes history updates to connected clients.
type Publisher interface {
	PublishDelta(playerID int64, delta model.HistoryDelta)
	PublishBadge(playerID int64, badge model.HistoryBadge)
}

// HistoryService is the server side of the history tab sync protocol.
type HistoryService struct {
	registry *inventory.Registry
	persist  *Persistence

	mu        sync.Mutex
	sequences map[int64]int64
	publisher Publisher

	now func() int64
}

// NewHistoryService creates a new history service.
func NewHistoryService(registry *inventory.Registry, persist *Persistence) *HistoryService {
	return &HistoryService{
		registry:  registry,
		persist:   persist,
		sequences: make(map[int64]int64),
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// SetPublisher sets where deltas and badges are pushed. A nil publisher disables pushing.
func (s *HistoryService) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// Snapshot returns the full history state of a player. Unknown players get an empty snapshot.
func (s *HistoryService) Snapshot(playerID int64) model.HistoryTabSnapshot {
	inv, ok := s.registry.Get(playerID)
	if !ok {
		return model.HistoryTabSnapshot{PlayerID: playerID, Entries: []model.HistoryEntry{}}
	}

	entries, baseline, latest, _, stats := inv.HistoryView()
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	return model.HistoryTabSnapshot{
		PlayerID:                playerID,
		Entries:                 entries,
		Stats:                   stats,
		LatestEntryTimestamp:    latest,
		ServerBaselineTimestamp: baseline,
	}
}

// RecordEntry adds a trade to a player's history and pushes a delta.
// Timestamps are strictly increasing per player so clients that dedupe by
// timestamp never drop an entry.
func (s *HistoryService) RecordEntry(ctx context.Context, player model.Player, entry model.HistoryEntry) model.HistoryEntry {
	inv := s.registry.GetOrCreate(player.ID, player.Name)

	s.mu.Lock()
	ts := entry.Timestamp
	if ts <= 0 {
		ts = s.now()
	}
	entry.Timestamp = max(ts, inv.LatestHistoryTimestamp()+1)
	inv.AddHistoryEntry(entry)

	s.sequences[player.ID]++
	if s.publisher != nil {
		_, baseline, latest, _, stats := inv.HistoryView()
		s.publisher.PublishDelta(player.ID, model.HistoryDelta{
			Sequence:             s.sequences[player.ID],
			PlayerID:             player.ID,
			NewEntries:           []model.HistoryEntry{entry},
			Stats:                stats,
			LatestEntryTimestamp: latest,
			ServerAckTimestamp:   baseline,
		})
	}
	s.mu.Unlock()

	if err := s.persist.SavePlayer(ctx, inv); err != nil {
		log.Printf("[HistoryService] Failed to persist player %d: %v", player.ID, err)
	}
	return entry
}

// Acknowledge raises a player's viewed baseline to timestamp, clamped to the
// newest entry. The baseline never moves backwards. The resulting badge is
// pushed and returned.
func (s *HistoryService) Acknowledge(ctx context.Context, playerID, timestamp int64) (model.HistoryBadge, error) {
	inv, ok := s.registry.Get(playerID)
	if !ok {
		return model.HistoryBadge{}, fmt.Errorf("player %d: %w", playerID, model.ErrNotFound)
	}

	s.mu.Lock()
	changed := inv.MarkHistoryViewed(min(timestamp, inv.LatestHistoryTimestamp()))
	badge := badgeOf(playerID, inv)
	if s.publisher != nil {
		s.publisher.PublishBadge(playerID, badge)
	}
	s.mu.Unlock()

	if changed {
		if err := s.persist.SavePlayer(ctx, inv); err != nil {
			log.Printf("[HistoryService] Failed to persist player %d: %v", playerID, err)
		}
	}
	return badge, nil
}

// Badge returns the authoritative unseen count of a player.
func (s *HistoryService) Badge(playerID int64) model.HistoryBadge {
	inv, ok := s.registry.Get(playerID)
	if !ok {
		return model.HistoryBadge{PlayerID: playerID}
	}
	return badgeOf(playerID, inv)
}

// Sequence returns the last delta sequence number sent to a player.
func (s *HistoryService) Sequence(playerID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequences[playerID]
}

func badgeOf(playerID int64, inv *inventory.PlayerGEInventory) model.HistoryBadge {
	_, baseline, latest, unseen, _ := inv.HistoryView()
	return model.HistoryBadge{
		PlayerID:             playerID,
		UnseenCount:          unseen,
		LatestEntryTimestamp: latest,
		ServerAckTimestamp:   baseline,
	}
}
