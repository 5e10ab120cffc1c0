package repository

import (
	"cmp"
	"slices"
	"sync"

	"grandexchange-api/internal/model"
)

type sellRecord struct {
	offer model.SellOffer
	seq   int64
}

type buyRecord struct {
	order model.BuyOrder
	seq   int64
}

// InMemoryOfferRepository implements OfferRepository.
// Records are stored by value keyed by id; the item and player indexes hold ids only.
// Every save and delete updates the record and its indexes under one lock.
type InMemoryOfferRepository struct {
	mu      sync.RWMutex
	nextSeq int64

	sellOffers map[int64]sellRecord
	buyOrders  map[int64]buyRecord

	activeSellByItem map[string][]int64
	activeBuyByItem  map[string][]int64

	sellByPlayer map[int64]map[int64]struct{}
	buyByPlayer  map[int64]map[int64]struct{}
}

var _ OfferRepository = (*InMemoryOfferRepository)(nil)

// NewInMemoryOfferRepository creates an empty repository.
func NewInMemoryOfferRepository() *InMemoryOfferRepository {
	r := &InMemoryOfferRepository{}
	r.reset()
	return r
}

func (r *InMemoryOfferRepository) reset() {
	r.sellOffers = make(map[int64]sellRecord)
	r.buyOrders = make(map[int64]buyRecord)
	r.activeSellByItem = make(map[string][]int64)
	r.activeBuyByItem = make(map[string][]int64)
	r.sellByPlayer = make(map[int64]map[int64]struct{})
	r.buyByPlayer = make(map[int64]map[int64]struct{})
}

// sellBefore orders sell listings by ascending price, then first insertion.
func (r *InMemoryOfferRepository) sellBefore(a, b sellRecord) int {
	if c := cmp.Compare(a.offer.PricePerItem, b.offer.PricePerItem); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// buyBefore orders buy listings by descending price, then first insertion.
func (r *InMemoryOfferRepository) buyBefore(a, b buyRecord) int {
	if c := cmp.Compare(b.order.PricePerItem, a.order.PricePerItem); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// SaveSellOffer upserts an offer by id and reindexes its listing.
func (r *InMemoryOfferRepository) SaveSellOffer(offer model.SellOffer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := sellRecord{offer: offer}
	if old, ok := r.sellOffers[offer.OfferID]; ok {
		rec.seq = old.seq
		r.unindexSell(old)
	} else {
		r.nextSeq++
		rec.seq = r.nextSeq
	}

	r.sellOffers[offer.OfferID] = rec
	r.indexSell(rec)
}

func (r *InMemoryOfferRepository) indexSell(rec sellRecord) {
	addPlayerIndex(r.sellByPlayer, rec.offer.SellerID, rec.offer.OfferID)
	if !rec.offer.IsListed() {
		return
	}
	ids := r.activeSellByItem[rec.offer.ItemStringID]
	pos, _ := slices.BinarySearchFunc(ids, rec, func(id int64, target sellRecord) int {
		return r.sellBefore(r.sellOffers[id], target)
	})
	r.activeSellByItem[rec.offer.ItemStringID] = slices.Insert(ids, pos, rec.offer.OfferID)
}

func (r *InMemoryOfferRepository) unindexSell(rec sellRecord) {
	removePlayerIndex(r.sellByPlayer, rec.offer.SellerID, rec.offer.OfferID)
	removeItemIndex(r.activeSellByItem, rec.offer.ItemStringID, rec.offer.OfferID)
}

// SaveBuyOrder upserts an order by id and reindexes its listing.
func (r *InMemoryOfferRepository) SaveBuyOrder(order model.BuyOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := buyRecord{order: order}
	if old, ok := r.buyOrders[order.OrderID]; ok {
		rec.seq = old.seq
		r.unindexBuy(old)
	} else {
		r.nextSeq++
		rec.seq = r.nextSeq
	}

	r.buyOrders[order.OrderID] = rec
	r.indexBuy(rec)
}

func (r *InMemoryOfferRepository) indexBuy(rec buyRecord) {
	addPlayerIndex(r.buyByPlayer, rec.order.BuyerID, rec.order.OrderID)
	if !rec.order.IsListed() {
		return
	}
	ids := r.activeBuyByItem[rec.order.ItemStringID]
	pos, _ := slices.BinarySearchFunc(ids, rec, func(id int64, target buyRecord) int {
		return r.buyBefore(r.buyOrders[id], target)
	})
	r.activeBuyByItem[rec.order.ItemStringID] = slices.Insert(ids, pos, rec.order.OrderID)
}

func (r *InMemoryOfferRepository) unindexBuy(rec buyRecord) {
	removePlayerIndex(r.buyByPlayer, rec.order.BuyerID, rec.order.OrderID)
	removeItemIndex(r.activeBuyByItem, rec.order.ItemStringID, rec.order.OrderID)
}

// FindSellOfferByID returns the offer with the given id.
func (r *InMemoryOfferRepository) FindSellOfferByID(offerID int64) (model.SellOffer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sellOffers[offerID]
	return rec.offer, ok
}

// FindBuyOrderByID returns the order with the given id.
func (r *InMemoryOfferRepository) FindBuyOrderByID(orderID int64) (model.BuyOrder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.buyOrders[orderID]
	return rec.order, ok
}

// FindActiveSellOffersByItem returns listed offers for the item, cheapest first.
func (r *InMemoryOfferRepository) FindActiveSellOffersByItem(itemStringID string) []model.SellOffer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.activeSellByItem[itemStringID]
	out := make([]model.SellOffer, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.sellOffers[id].offer)
	}
	return out
}

// FindActiveBuyOrdersByItem returns listed orders for the item, highest bid first.
func (r *InMemoryOfferRepository) FindActiveBuyOrdersByItem(itemStringID string) []model.BuyOrder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.activeBuyByItem[itemStringID]
	out := make([]model.BuyOrder, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.buyOrders[id].order)
	}
	return out
}

// FindSellOffersByPlayer returns every offer of a player ordered by slot.
func (r *InMemoryOfferRepository) FindSellOffersByPlayer(playerID int64) []model.SellOffer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.SellOffer, 0, len(r.sellByPlayer[playerID]))
	for id := range r.sellByPlayer[playerID] {
		out = append(out, r.sellOffers[id].offer)
	}
	slices.SortFunc(out, func(a, b model.SellOffer) int {
		if c := cmp.Compare(a.SlotIndex, b.SlotIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.OfferID, b.OfferID)
	})
	return out
}

// FindBuyOrdersByPlayer returns every order of a player ordered by slot.
func (r *InMemoryOfferRepository) FindBuyOrdersByPlayer(playerID int64) []model.BuyOrder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.BuyOrder, 0, len(r.buyByPlayer[playerID]))
	for id := range r.buyByPlayer[playerID] {
		out = append(out, r.buyOrders[id].order)
	}
	slices.SortFunc(out, func(a, b model.BuyOrder) int {
		if c := cmp.Compare(a.SlotIndex, b.SlotIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.OrderID, b.OrderID)
	})
	return out
}

// FindAllSellOffers returns every stored offer ordered by id.
func (r *InMemoryOfferRepository) FindAllSellOffers() []model.SellOffer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.SellOffer, 0, len(r.sellOffers))
	for _, rec := range r.sellOffers {
		out = append(out, rec.offer)
	}
	slices.SortFunc(out, func(a, b model.SellOffer) int { return cmp.Compare(a.OfferID, b.OfferID) })
	return out
}

// FindAllBuyOrders returns every stored order ordered by id.
func (r *InMemoryOfferRepository) FindAllBuyOrders() []model.BuyOrder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.BuyOrder, 0, len(r.buyOrders))
	for _, rec := range r.buyOrders {
		out = append(out, rec.order)
	}
	slices.SortFunc(out, func(a, b model.BuyOrder) int { return cmp.Compare(a.OrderID, b.OrderID) })
	return out
}

// DeleteSellOffer removes an offer from the store and every index.
func (r *InMemoryOfferRepository) DeleteSellOffer(offerID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sellOffers[offerID]
	if !ok {
		return false
	}
	r.unindexSell(rec)
	delete(r.sellOffers, offerID)
	return true
}

// DeleteBuyOrder removes an order from the store and every index.
func (r *InMemoryOfferRepository) DeleteBuyOrder(orderID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.buyOrders[orderID]
	if !ok {
		return false
	}
	r.unindexBuy(rec)
	delete(r.buyOrders, orderID)
	return true
}

// CountActiveSellOffersForItem returns the number of listed offers for the item.
func (r *InMemoryOfferRepository) CountActiveSellOffersForItem(itemStringID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeSellByItem[itemStringID])
}

// CountActiveBuyOrdersForItem returns the number of listed orders for the item.
func (r *InMemoryOfferRepository) CountActiveBuyOrdersForItem(itemStringID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeBuyByItem[itemStringID])
}

// CountTotalActiveOffers returns the number of listed offers and orders across all items.
func (r *InMemoryOfferRepository) CountTotalActiveOffers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countActiveLocked()
}

func (r *InMemoryOfferRepository) countActiveLocked() int {
	total := 0
	for _, ids := range r.activeSellByItem {
		total += len(ids)
	}
	for _, ids := range r.activeBuyByItem {
		total += len(ids)
	}
	return total
}

// FindAllActiveItems returns the sorted ids of items with at least one listing.
func (r *InMemoryOfferRepository) FindAllActiveItems() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeItemsLocked()
}

func (r *InMemoryOfferRepository) activeItemsLocked() []string {
	items := make([]string, 0, len(r.activeSellByItem)+len(r.activeBuyByItem))
	for item := range r.activeSellByItem {
		items = append(items, item)
	}
	for item := range r.activeBuyByItem {
		if _, dup := r.activeSellByItem[item]; !dup {
			items = append(items, item)
		}
	}
	slices.Sort(items)
	return items
}

// ClearAll drops every record and index.
func (r *InMemoryOfferRepository) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

// Stats returns a summary of stored and listed records.
func (r *InMemoryOfferRepository) Stats() model.RepositoryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := model.RepositoryStats{
		SellOffers:  len(r.sellOffers),
		BuyOrders:   len(r.buyOrders),
		ActiveItems: len(r.activeItemsLocked()),
	}
	for _, ids := range r.activeSellByItem {
		stats.ActiveSellOffers += len(ids)
	}
	for _, ids := range r.activeBuyByItem {
		stats.ActiveBuyOrders += len(ids)
	}
	return stats
}

func addPlayerIndex(index map[int64]map[int64]struct{}, playerID, id int64) {
	ids, ok := index[playerID]
	if !ok {
		ids = make(map[int64]struct{})
		index[playerID] = ids
	}
	ids[id] = struct{}{}
}

func removePlayerIndex(index map[int64]map[int64]struct{}, playerID, id int64) {
	ids, ok := index[playerID]
	if !ok {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(index, playerID)
	}
}

// removeItemIndex drops id from the item's listing; empty listings are removed.
func removeItemIndex(index map[string][]int64, item string, id int64) {
	ids, ok := index[item]
	if !ok {
		return
	}
	if i := slices.Index(ids, id); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
	}
	if len(ids) == 0 {
		delete(index, item)
		return
	}
	index[item] = ids
}
