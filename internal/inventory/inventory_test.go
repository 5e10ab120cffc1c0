package inventory

import (
	"errors"
	"testing"

	"grandexchange-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFilledInventory(t *testing.T) *PlayerGEInventory {
	t.Helper()
	inv := NewPlayerGEInventory(1, "alice", 0)
	inv.AddToCollectionBox("item_one", 1, model.SourcePurchase)
	inv.AddToCollectionBox("item_two", 2, model.SourcePurchase)
	inv.AddToCollectionBox("item_three", 3, model.SourceSaleProceeds)
	return inv
}

func itemIDs(items []model.CollectionItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ItemStringID
	}
	return ids
}

func TestRemoveFromCollectionBox_ReturnsItemAndShifts(t *testing.T) {
	inv := newFilledInventory(t)

	removed, ok := inv.RemoveFromCollectionBox(1)
	require.True(t, ok)
	assert.Equal(t, "item_two", removed.ItemStringID)
	assert.Equal(t, []string{"item_one", "item_three"}, itemIDs(inv.CollectionBox()))
}

func TestRemoveFromCollectionBox_InvalidIndex(t *testing.T) {
	inv := newFilledInventory(t)

	for _, idx := range []int{-1, 3, 100} {
		_, ok := inv.RemoveFromCollectionBox(idx)
		assert.False(t, ok, "index %d", idx)
	}
	assert.Equal(t, 3, inv.CollectionBoxSize())
}

func TestRemoveThenInsertRestoresOrder(t *testing.T) {
	for i := 0; i < 3; i++ {
		inv := newFilledInventory(t)
		before := inv.CollectionBox()

		removed, ok := inv.RemoveFromCollectionBox(i)
		require.True(t, ok)
		inv.InsertIntoCollectionBox(i, removed)

		assert.Equal(t, before, inv.CollectionBox(), "index %d", i)
	}
}

func TestInsertIntoCollectionBox_OutOfRangeAppends(t *testing.T) {
	for _, idx := range []int{99, -1} {
		inv := newFilledInventory(t)
		extra := model.NewCollectionItem("extra", 1, model.SourceRefund, 0)

		inv.InsertIntoCollectionBox(idx, extra)

		box := inv.CollectionBox()
		require.Len(t, box, 4)
		assert.Equal(t, "extra", box[3].ItemStringID, "index %d", idx)
	}
}

func TestCollectionBox_ReturnsCopy(t *testing.T) {
	inv := newFilledInventory(t)

	box := inv.CollectionBox()
	box[0].Quantity = 999

	assert.Equal(t, 1, inv.CollectionBox()[0].Quantity)
}

func TestClaimAt_RollsBackOnDeliveryFailure(t *testing.T) {
	inv := newFilledInventory(t)
	before := inv.CollectionBox()

	_, err := inv.ClaimAt(1, func(model.CollectionItem) error { return errors.New("inventory full") })
	require.Error(t, err)
	assert.Equal(t, before, inv.CollectionBox())

	claimed, err := inv.ClaimAt(1, func(model.CollectionItem) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "item_two", claimed.ItemStringID)
	assert.Equal(t, 2, inv.CollectionBoxSize())

	_, err = inv.ClaimAt(5, func(model.CollectionItem) error { return nil })
	assert.ErrorIs(t, err, model.ErrInvalidIndex)
}

func TestHistory_NewestFirstAndCapped(t *testing.T) {
	inv := NewPlayerGEInventory(1, "alice", 3)

	for ts := int64(1); ts <= 5; ts++ {
		inv.AddHistoryEntry(model.HistoryEntry{ItemStringID: "wood", Quantity: 1, Timestamp: ts * 10, IsSale: ts%2 == 0})
	}

	history := inv.History()
	require.Len(t, history, 3)
	assert.Equal(t, int64(50), history[0].Timestamp)
	assert.Equal(t, int64(30), history[2].Timestamp)
	assert.Equal(t, int64(50), inv.LatestHistoryTimestamp())

	stats := inv.Stats()
	assert.Equal(t, 2, stats.TotalItemsSold)
	assert.Equal(t, 3, stats.TotalItemsPurchased)
}

func TestUnseenHistoryCount_UsesBaseline(t *testing.T) {
	inv := NewPlayerGEInventory(1, "alice", 0)
	inv.AddHistoryEntry(model.HistoryEntry{Timestamp: 100})
	inv.AddHistoryEntry(model.HistoryEntry{Timestamp: 200})
	inv.AddHistoryEntry(model.HistoryEntry{Timestamp: 300})

	assert.Equal(t, 3, inv.UnseenHistoryCount())

	assert.True(t, inv.MarkHistoryViewed(200))
	assert.Equal(t, 1, inv.UnseenHistoryCount())

	assert.False(t, inv.MarkHistoryViewed(150))
	assert.Equal(t, int64(200), inv.LastHistoryViewed())

	assert.True(t, inv.MarkHistoryViewed(inv.LatestHistoryTimestamp()))
	assert.Equal(t, 0, inv.UnseenHistoryCount())
}

func TestStateRoundTrip(t *testing.T) {
	inv := newFilledInventory(t)
	inv.AddHistoryEntry(model.HistoryEntry{ItemStringID: "wood", Quantity: 2, Timestamp: 500, IsSale: true})
	inv.MarkHistoryViewed(400)
	inv.RecordSellOfferCreated()
	inv.RecordBuyOrderCompleted()
	inv.SetCollectionPageIndex(2)
	_, err := inv.Deposit(model.CoinItemID, 300)
	require.NoError(t, err)

	state := inv.State()

	restored := NewPlayerGEInventory(1, "", 0)
	restored.Restore(state)

	assert.Equal(t, state, restored.State())
	assert.Equal(t, "alice", restored.PlayerName())
	assert.Equal(t, 1, restored.UnseenHistoryCount())
	assert.Equal(t, int64(300), restored.Balance(model.CoinItemID))
}

func TestBank_DepositAndWithdraw(t *testing.T) {
	inv := NewPlayerGEInventory(1, "alice", 0)

	balance, err := inv.Deposit(model.CoinItemID, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	balance, err = inv.Withdraw(model.CoinItemID, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance)

	// a short balance takes nothing
	_, err = inv.Withdraw(model.CoinItemID, 61)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	assert.Equal(t, int64(60), inv.Balance(model.CoinItemID))

	_, err = inv.Withdraw(model.CoinItemID, 60)
	require.NoError(t, err)
	assert.Empty(t, inv.Bank())

	_, err = inv.Deposit("wood", 0)
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = inv.Withdraw("wood", -5)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, inv.Bank())
}

func TestRegistry_GetOrCreate(t *testing.T) {
	reg := NewRegistry(10)

	_, ok := reg.Get(7)
	assert.False(t, ok)

	a := reg.GetOrCreate(7, "bob")
	b := reg.GetOrCreate(7, "bobby")
	assert.Same(t, a, b)
	assert.Equal(t, "bobby", a.PlayerName())

	reg.GetOrCreate(3, "carol")
	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, int64(3), all[0].PlayerID())
	assert.Equal(t, 2, reg.Len())
}
