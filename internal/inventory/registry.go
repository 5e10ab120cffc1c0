package inventory

import (
	"cmp"
	"slices"
	"sync"

	"grandexchange-api/internal/model"
)

// Registry hands out one inventory per player. Inventories of different
// players never share a lock.
type Registry struct {
	mu          sync.RWMutex
	inventories map[int64]*PlayerGEInventory
	maxHistory  int
}

// NewRegistry creates an empty registry whose inventories retain maxHistory entries.
func NewRegistry(maxHistory int) *Registry {
	return &Registry{
		inventories: make(map[int64]*PlayerGEInventory),
		maxHistory:  maxHistory,
	}
}

// Get returns the inventory of a player if one exists.
func (r *Registry) Get(playerID int64) (*PlayerGEInventory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.inventories[playerID]
	return inv, ok
}

// GetOrCreate returns the player's inventory, creating it on first use.
func (r *Registry) GetOrCreate(playerID int64, playerName string) *PlayerGEInventory {
	if inv, ok := r.Get(playerID); ok {
		inv.SetPlayerName(playerName)
		return inv
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if inv, ok := r.inventories[playerID]; ok {
		return inv
	}
	inv := NewPlayerGEInventory(playerID, playerName, r.maxHistory)
	r.inventories[playerID] = inv
	return inv
}

// Restore loads a persisted player state, creating the inventory if needed.
func (r *Registry) Restore(state model.PlayerState) *PlayerGEInventory {
	inv := r.GetOrCreate(state.PlayerID, state.PlayerName)
	inv.Restore(state)
	return inv
}

// All returns every inventory ordered by player id.
func (r *Registry) All() []*PlayerGEInventory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*PlayerGEInventory, 0, len(r.inventories))
	for _, inv := range r.inventories {
		out = append(out, inv)
	}
	slices.SortFunc(out, func(a, b *PlayerGEInventory) int { return cmp.Compare(a.playerID, b.playerID) })
	return out
}

// Len returns the number of known players.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.inventories)
}
