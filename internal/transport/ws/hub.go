// Package ws pushes history updates to subscribed players over WebSocket.
package ws

import (
	"encoding/json"
	"log"
	"sync"

	"grandexchange-api/internal/model"
	"grandexchange-api/internal/protocol"
	"grandexchange-api/internal/service"
)

// DefaultQueueSize is the outbound buffer of one subscriber.
const DefaultQueueSize = 16

type subscriber struct {
	playerID int64
	out      chan []byte
	gone     chan struct{}
	dropOnce sync.Once
}

// send queues b without blocking. It reports false when the queue is full.
func (c *subscriber) send(b []byte) bool {
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}

func (c *subscriber) drop() {
	c.dropOnce.Do(func() { close(c.gone) })
}

// Hub fans history messages out to every connection of a player. A subscriber
// whose queue is full is dropped rather than blocking the publisher.
type Hub struct {
	mu        sync.RWMutex
	subs      map[int64]map[*subscriber]struct{}
	queueSize int
}

var _ service.Publisher = (*Hub)(nil)

// NewHub creates a hub. queueSize <= 0 uses DefaultQueueSize.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		subs:      make(map[int64]map[*subscriber]struct{}),
		queueSize: queueSize,
	}
}

// subscribe registers a connection and queues first as its first message.
// first runs under the hub lock, so no publish can slip in ahead of it.
func (h *Hub) subscribe(playerID int64, first func() ([]byte, error)) (*subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &subscriber{
		playerID: playerID,
		out:      make(chan []byte, h.queueSize),
		gone:     make(chan struct{}),
	}
	if first != nil {
		b, err := first()
		if err != nil {
			return nil, err
		}
		c.out <- b
	}

	set, ok := h.subs[playerID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[playerID] = set
	}
	set[c] = struct{}{}
	return c, nil
}

func (h *Hub) unsubscribe(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[c.playerID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, c.playerID)
		}
	}
	c.drop()
}

// PublishDelta sends a HISTORY_DELTA to the player's connections.
func (h *Hub) PublishDelta(playerID int64, delta model.HistoryDelta) {
	h.broadcast(playerID, protocol.NewDelta(delta))
}

// PublishBadge sends a HISTORY_BADGE to the player's connections.
func (h *Hub) PublishBadge(playerID int64, badge model.HistoryBadge) {
	h.broadcast(playerID, protocol.NewBadge(badge))
}

func (h *Hub) broadcast(playerID int64, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] Failed to encode message: %v", err)
		return
	}

	var slow []*subscriber
	h.mu.RLock()
	for c := range h.subs[playerID] {
		if !c.send(b) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("[Hub] Dropping slow subscriber of player %d", playerID)
		h.unsubscribe(c)
	}
}

// SubscriberCount returns the number of live connections of a player.
func (h *Hub) SubscriberCount(playerID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[playerID])
}

// Len returns the number of connected players.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
