package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"grandexchange-api/internal/inventory"
	"grandexchange-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInventoryFull = errors.New("inventory full")

// fakeDeliverer accepts items until it has room for no more.
type fakeDeliverer struct {
	room      int
	delivered []model.CollectionItem
}

func (d *fakeDeliverer) Deliver(ctx context.Context, playerID int64, item model.CollectionItem) error {
	if len(d.delivered) >= d.room {
		return errInventoryFull
	}
	d.delivered = append(d.delivered, item)
	return nil
}

func newCollectionFixture(t *testing.T, items int) *CollectionService {
	t.Helper()
	registry := inventory.NewRegistry(50)
	svc := NewCollectionService(registry, nil, 10)
	for i := range items {
		_, err := svc.Add(context.Background(), alice, fmt.Sprintf("item%d", i), i+1, model.SourcePurchase)
		require.NoError(t, err)
	}
	return svc
}

func boxIDs(page CollectionPage) []string {
	ids := make([]string, len(page.Entries))
	for i, e := range page.Entries {
		ids[i] = e.Item.ItemStringID
	}
	return ids
}

func TestCollection_PageClampsAndRemembersIndex(t *testing.T) {
	svc := newCollectionFixture(t, 25)

	page := svc.Page(alice.ID, 7)
	assert.Equal(t, 2, page.PageIndex)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 25, page.TotalItems)
	require.Len(t, page.Entries, 5)
	assert.Equal(t, 20, page.Entries[0].GlobalIndex)
	assert.False(t, page.HasNext())

	again := svc.Page(alice.ID, -1)
	assert.Equal(t, 2, again.PageIndex, "negative page reopens the last viewed page")

	first := svc.Page(alice.ID, 0)
	assert.Equal(t, []string{"item0", "item1", "item2", "item3", "item4", "item5", "item6", "item7", "item8", "item9"}, boxIDs(first))
}

func TestCollection_PageOfUnknownPlayer(t *testing.T) {
	svc := newCollectionFixture(t, 0)

	page := svc.Page(bob.ID, 3)
	assert.Equal(t, 0, page.PageIndex)
	assert.Equal(t, 1, page.TotalPages)
	assert.Empty(t, page.Entries)
}

func TestCollection_ClaimRemovesDeliveredItem(t *testing.T) {
	svc := newCollectionFixture(t, 3)
	d := &fakeDeliverer{room: 5}

	item, err := svc.Claim(context.Background(), alice.ID, 1, d)
	require.NoError(t, err)
	assert.Equal(t, "item1", item.ItemStringID)
	assert.Equal(t, []model.CollectionItem{item}, d.delivered)
	assert.Equal(t, []string{"item0", "item2"}, boxIDs(svc.Page(alice.ID, 0)))
}

func TestCollection_ClaimRollsBackOnDeliveryFailure(t *testing.T) {
	svc := newCollectionFixture(t, 3)
	d := &fakeDeliverer{room: 0}

	_, err := svc.Claim(context.Background(), alice.ID, 1, d)
	assert.ErrorIs(t, err, errInventoryFull)
	assert.Equal(t, []string{"item0", "item1", "item2"}, boxIDs(svc.Page(alice.ID, 0)))
}

func TestCollection_ClaimErrors(t *testing.T) {
	svc := newCollectionFixture(t, 2)
	d := &fakeDeliverer{room: 5}

	_, err := svc.Claim(context.Background(), bob.ID, 0, d)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.Claim(context.Background(), alice.ID, 2, d)
	assert.ErrorIs(t, err, model.ErrInvalidIndex)

	_, err = svc.Claim(context.Background(), alice.ID, -1, d)
	assert.ErrorIs(t, err, model.ErrInvalidIndex)
	assert.Empty(t, d.delivered)
}

func TestCollection_ClaimAllStopsAtFirstFailure(t *testing.T) {
	svc := newCollectionFixture(t, 4)
	d := &fakeDeliverer{room: 3}

	claimed, err := svc.ClaimAll(context.Background(), alice.ID, d)
	assert.ErrorIs(t, err, errInventoryFull)
	require.Len(t, claimed, 3)
	assert.Equal(t, []string{"item3"}, boxIDs(svc.Page(alice.ID, 0)))

	d.room = 10
	claimed, err = svc.ClaimAll(context.Background(), alice.ID, d)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Empty(t, svc.Page(alice.ID, 0).Entries)
}

func TestCollection_AddValidates(t *testing.T) {
	svc := newCollectionFixture(t, 0)

	_, err := svc.Add(context.Background(), alice, "", 1, model.SourceRefund)
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = svc.Add(context.Background(), alice, "ironbar", 0, model.SourceRefund)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCollection_ClaimToBank(t *testing.T) {
	svc := newCollectionFixture(t, 3)
	ctx := context.Background()
	bank := NewBankService(svc.registry, nil)

	item, err := svc.ClaimToBank(ctx, alice.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "item1", item.ItemStringID)
	assert.Equal(t, int64(2), bank.Balance(alice.ID).Balances["item1"])

	_, err = svc.ClaimToBank(ctx, alice.ID, 5)
	assert.ErrorIs(t, err, model.ErrInvalidIndex)
	_, err = svc.ClaimToBank(ctx, bob.ID, 0)
	assert.ErrorIs(t, err, model.ErrNotFound)

	moved, err := svc.ClaimAllToBank(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, moved, 2)
	assert.Zero(t, svc.Page(alice.ID, 0).TotalItems)
	assert.Equal(t, map[string]int64{"item0": 1, "item1": 2, "item2": 3}, bank.Balance(alice.ID).Balances)
}
