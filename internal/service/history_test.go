package service

import (
	"context"
	"testing"

	"grandexchange-api/internal/historytab"
	"grandexchange-api/internal/inventory"
	"grandexchange-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistoryFixture(t *testing.T) (*HistoryService, *recordingPublisher, *testClock) {
	t.Helper()
	clock := &testClock{now: 5000}
	svc := NewHistoryService(inventory.NewRegistry(50), nil)
	svc.now = clock.Now
	pub := &recordingPublisher{}
	svc.SetPublisher(pub)
	return svc, pub, clock
}

func TestHistory_SnapshotOfUnknownPlayerIsEmpty(t *testing.T) {
	svc, _, _ := newHistoryFixture(t)

	snap := svc.Snapshot(99)
	assert.Equal(t, int64(99), snap.PlayerID)
	assert.NotNil(t, snap.Entries)
	assert.Empty(t, snap.Entries)
	assert.Zero(t, snap.LatestEntryTimestamp)
	assert.Zero(t, svc.Badge(99).UnseenCount)
}

func TestHistory_RecordEntryAssignsIncreasingTimestampsAndSequences(t *testing.T) {
	svc, pub, _ := newHistoryFixture(t)
	ctx := context.Background()

	first := svc.RecordEntry(ctx, alice, model.HistoryEntry{ItemStringID: "ironbar", Quantity: 1, IsSale: true})
	second := svc.RecordEntry(ctx, alice, model.HistoryEntry{ItemStringID: "ironbar", Quantity: 2, IsSale: true})
	third := svc.RecordEntry(ctx, alice, model.HistoryEntry{ItemStringID: "ironbar", Quantity: 3, Timestamp: 100})

	assert.Equal(t, int64(5000), first.Timestamp)
	assert.Equal(t, int64(5001), second.Timestamp)
	assert.Equal(t, int64(5002), third.Timestamp, "older timestamps are moved past the latest entry")

	deltas := pub.deltasFor(alice.ID)
	require.Len(t, deltas, 3)
	for i, d := range deltas {
		assert.Equal(t, int64(i+1), d.Sequence)
		require.Len(t, d.NewEntries, 1)
		assert.Equal(t, d.NewEntries[0].Timestamp, d.LatestEntryTimestamp)
	}
	assert.Equal(t, 3, deltas[2].Stats.TotalItemsSold)
	assert.Equal(t, int64(3), svc.Sequence(alice.ID))
	assert.Zero(t, svc.Sequence(bob.ID))

	snap := svc.Snapshot(alice.ID)
	require.Len(t, snap.Entries, 3)
	assert.Equal(t, third.Timestamp, snap.Entries[0].Timestamp)
}

func TestHistory_AcknowledgeIsMonotoneAndClamped(t *testing.T) {
	svc, pub, _ := newHistoryFixture(t)
	ctx := context.Background()

	_, err := svc.Acknowledge(ctx, alice.ID, 10)
	assert.ErrorIs(t, err, model.ErrNotFound)

	e1 := svc.RecordEntry(ctx, alice, model.HistoryEntry{ItemStringID: "ironbar", Quantity: 1})
	e2 := svc.RecordEntry(ctx, alice, model.HistoryEntry{ItemStringID: "ironbar", Quantity: 1})

	badge, err := svc.Acknowledge(ctx, alice.ID, e1.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, 1, badge.UnseenCount)
	assert.Equal(t, e1.Timestamp, badge.ServerAckTimestamp)

	badge, err = svc.Acknowledge(ctx, alice.ID, e1.Timestamp-1)
	require.NoError(t, err)
	assert.Equal(t, e1.Timestamp, badge.ServerAckTimestamp, "baseline never moves backwards")

	badge, err = svc.Acknowledge(ctx, alice.ID, e2.Timestamp+1_000_000)
	require.NoError(t, err)
	assert.Equal(t, e2.Timestamp, badge.ServerAckTimestamp)
	assert.Zero(t, badge.UnseenCount)

	// an entry recorded after a future ack is still unseen
	svc.RecordEntry(ctx, alice, model.HistoryEntry{ItemStringID: "ironbar", Quantity: 1})
	assert.Equal(t, 1, svc.Badge(alice.ID).UnseenCount)

	require.Len(t, pub.badges, 3)
}

func TestHistory_ClientFoldsServerMessages(t *testing.T) {
	svc, pub, _ := newHistoryFixture(t)
	ctx := context.Background()

	svc.RecordEntry(ctx, alice, model.HistoryEntry{ItemStringID: "ironbar", Quantity: 1, IsSale: true})

	client := historytab.New()
	client.ApplySnapshot(svc.Snapshot(alice.ID))
	assert.Zero(t, client.UnseenCount(), "first sync without a baseline shows no badge")

	svc.RecordEntry(ctx, alice, model.HistoryEntry{ItemStringID: "gold", Quantity: 2})
	deltas := pub.deltasFor(alice.ID)
	client.ApplyDelta(deltas[len(deltas)-1])
	assert.Len(t, client.Entries(), 2)
	assert.Equal(t, 1, client.UnseenCount())

	badge, err := svc.Acknowledge(ctx, alice.ID, client.LatestEntryTimestamp())
	require.NoError(t, err)
	client.ApplyBadge(badge)
	assert.Zero(t, client.UnseenCount())
	assert.Equal(t, svc.Badge(alice.ID).UnseenCount, client.UnseenCount())
}
