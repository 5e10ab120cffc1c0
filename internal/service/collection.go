package service

import (
	"context"
	"fmt"
	"log"

	"grandexchange-api/internal/inventory"
	"grandexchange-api/internal/model"
	"grandexchange-api/pkg/paginate"
)

// Deliverer hands a claimed item to the player outside the market.
type Deliverer interface {
	Deliver(ctx context.Context, playerID int64, item model.CollectionItem) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, playerID int64, item model.CollectionItem) error

// Deliver calls f.
func (f DelivererFunc) Deliver(ctx context.Context, playerID int64, item model.CollectionItem) error {
	return f(ctx, playerID, item)
}

// CollectionPage is one page of a player's collection box.
type CollectionPage = paginate.Page[model.CollectionItem]

// CollectionService exposes collection boxes page by page and claims items out of them.
type CollectionService struct {
	registry *inventory.Registry
	persist  *Persistence
	pageSize int
}

// NewCollectionService creates a new collection service.
func NewCollectionService(registry *inventory.Registry, persist *Persistence, pageSize int) *CollectionService {
	return &CollectionService{
		registry: registry,
		persist:  persist,
		pageSize: paginate.NormalizePageSize(pageSize),
	}
}

// PageSize returns the number of items per page.
func (s *CollectionService) PageSize() int {
	return s.pageSize
}

// Page returns a page of the player's collection box. A negative page reopens
// the page the player last viewed. The clamped page is remembered.
func (s *CollectionService) Page(playerID int64, requestedPage int) CollectionPage {
	inv, ok := s.registry.Get(playerID)
	if !ok {
		return paginate.Paginate[model.CollectionItem](nil, 0, s.pageSize)
	}
	if requestedPage < 0 {
		requestedPage = inv.CollectionPageIndex()
	}
	page := paginate.Paginate(inv.CollectionBox(), requestedPage, s.pageSize)
	inv.SetCollectionPageIndex(page.PageIndex)
	return page
}

// Claim removes the item at globalIndex and delivers it. If delivery fails the
// item is put back at the same index and the delivery error is returned.
func (s *CollectionService) Claim(ctx context.Context, playerID int64, globalIndex int, d Deliverer) (model.CollectionItem, error) {
	inv, ok := s.registry.Get(playerID)
	if !ok {
		return model.CollectionItem{}, fmt.Errorf("player %d: %w", playerID, model.ErrNotFound)
	}

	item, err := inv.ClaimAt(globalIndex, func(item model.CollectionItem) error {
		return d.Deliver(ctx, playerID, item)
	})
	if err != nil {
		return item, err
	}

	s.save(ctx, inv)
	return item, nil
}

// ClaimAll delivers items from the front of the box until it is empty or a
// delivery fails. The failed item stays in the box.
func (s *CollectionService) ClaimAll(ctx context.Context, playerID int64, d Deliverer) ([]model.CollectionItem, error) {
	inv, ok := s.registry.Get(playerID)
	if !ok {
		return nil, fmt.Errorf("player %d: %w", playerID, model.ErrNotFound)
	}

	var claimed []model.CollectionItem
	var claimErr error
	for inv.CollectionBoxSize() > 0 {
		item, err := inv.ClaimAt(0, func(item model.CollectionItem) error {
			return d.Deliver(ctx, playerID, item)
		})
		if err != nil {
			claimErr = err
			break
		}
		claimed = append(claimed, item)
	}

	if len(claimed) > 0 {
		s.save(ctx, inv)
	}
	return claimed, claimErr
}

// ClaimToBank moves the item at globalIndex into the player's bank.
func (s *CollectionService) ClaimToBank(ctx context.Context, playerID int64, globalIndex int) (model.CollectionItem, error) {
	inv, ok := s.registry.Get(playerID)
	if !ok {
		return model.CollectionItem{}, fmt.Errorf("player %d: %w", playerID, model.ErrNotFound)
	}
	item, err := inv.MoveToBank(globalIndex)
	if err != nil {
		return item, err
	}
	s.save(ctx, inv)
	return item, nil
}

// ClaimAllToBank empties the box into the player's bank.
func (s *CollectionService) ClaimAllToBank(ctx context.Context, playerID int64) ([]model.CollectionItem, error) {
	inv, ok := s.registry.Get(playerID)
	if !ok {
		return nil, fmt.Errorf("player %d: %w", playerID, model.ErrNotFound)
	}
	var moved []model.CollectionItem
	for {
		item, err := inv.MoveToBank(0)
		if err != nil {
			break
		}
		moved = append(moved, item)
	}
	if len(moved) > 0 {
		s.save(ctx, inv)
	}
	return moved, nil
}

// Add puts an item into a player's collection box.
func (s *CollectionService) Add(ctx context.Context, player model.Player, itemStringID string, quantity int, source string) (model.CollectionItem, error) {
	if itemStringID == "" || quantity <= 0 {
		return model.CollectionItem{}, fmt.Errorf("item %q x%d: %w", itemStringID, quantity, model.ErrValidation)
	}
	inv := s.registry.GetOrCreate(player.ID, player.Name)
	item := inv.AddToCollectionBox(itemStringID, quantity, source)
	s.save(ctx, inv)
	return item, nil
}

func (s *CollectionService) save(ctx context.Context, inv *inventory.PlayerGEInventory) {
	if err := s.persist.SavePlayer(ctx, inv); err != nil {
		log.Printf("[CollectionService] Failed to persist player %d: %v", inv.PlayerID(), err)
	}
}
