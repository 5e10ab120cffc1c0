package historytab

import (
	"testing"

	"grandexchange-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries(timestamps ...int64) []model.HistoryEntry {
	out := make([]model.HistoryEntry, len(timestamps))
	for i, ts := range timestamps {
		out[i] = model.HistoryEntry{ItemStringID: "wood", Quantity: 1, Timestamp: ts, IsSale: i%2 == 0}
	}
	return out
}

func snapshot(baseline int64, timestamps ...int64) model.HistoryTabSnapshot {
	return model.HistoryTabSnapshot{PlayerID: 1, Entries: entries(timestamps...), ServerBaselineTimestamp: baseline}
}

func TestApplySnapshot_FirstSyncShowsNoBadge(t *testing.T) {
	s := New()

	s.ApplySnapshot(snapshot(0, 120, 90))

	assert.Equal(t, int64(120), s.LatestEntryTimestamp())
	assert.Equal(t, int64(120), s.LastViewedTimestamp())
	assert.False(t, s.HasUnseenEntries())
}

func TestApplyDelta_WithServerBaseline(t *testing.T) {
	s := New()
	s.ApplySnapshot(snapshot(50, 70, 60, 40))
	require.Equal(t, 2, s.UnseenCount())

	s.ApplyDelta(model.HistoryDelta{
		Sequence:             1,
		NewEntries:           entries(120, 90),
		LatestEntryTimestamp: 120,
		ServerAckTimestamp:   70,
	})

	assert.Equal(t, int64(70), s.LastViewedTimestamp())
	assert.Equal(t, int64(120), s.LatestEntryTimestamp())
	assert.Equal(t, 2, s.UnseenCount())
	assert.True(t, s.IsEntryUnseen(90))
	assert.False(t, s.IsEntryUnseen(70))
}

func TestApplyDelta_DuplicateTimestampsCountedOnce(t *testing.T) {
	s := New()
	s.ApplySnapshot(snapshot(200, 200, 150))

	s.ApplyDelta(model.HistoryDelta{NewEntries: entries(250, 200), LatestEntryTimestamp: 250})

	assert.Equal(t, int64(250), s.LatestEntryTimestamp())
	assert.Equal(t, int64(200), s.LastViewedTimestamp())
	assert.Equal(t, 1, s.UnseenCount())
	assert.Len(t, s.Entries(), 3)

	// redelivery of the same delta changes nothing
	s.ApplyDelta(model.HistoryDelta{NewEntries: entries(250, 200), LatestEntryTimestamp: 250})
	assert.Equal(t, 1, s.UnseenCount())
	assert.Len(t, s.Entries(), 3)
}

func TestApplyDelta_StaleAckDoesNotRegress(t *testing.T) {
	s := New()
	s.ApplySnapshot(snapshot(300, 300))

	s.ApplyDelta(model.HistoryDelta{NewEntries: entries(400), LatestEntryTimestamp: 400, ServerAckTimestamp: 100})
	s.ApplyDelta(model.HistoryDelta{LatestEntryTimestamp: 50, ServerAckTimestamp: 10})

	assert.Equal(t, int64(300), s.LastViewedTimestamp())
	assert.Equal(t, int64(400), s.LatestEntryTimestamp())
	assert.Equal(t, 1, s.UnseenCount())
}

func TestSynchronizeBadge_NeverRegresses(t *testing.T) {
	s := New()
	s.ApplySnapshot(snapshot(500, 500))

	s.SynchronizeBadge(5, 300, 250)

	assert.Equal(t, int64(500), s.LatestEntryTimestamp())
	assert.Equal(t, int64(500), s.LastViewedTimestamp())
	assert.Equal(t, 5, s.UnseenCount())
}

func TestMarkEntriesSeen_AfterDelta(t *testing.T) {
	s := New()
	s.ApplyDelta(model.HistoryDelta{NewEntries: entries(125), LatestEntryTimestamp: 125, ServerAckTimestamp: 75})
	require.True(t, s.HasUnseenEntries())

	s.MarkEntriesSeen()

	assert.Equal(t, int64(125), s.LastViewedTimestamp())
	assert.False(t, s.HasUnseenEntries())
}

func TestBadgeAfterEmptySnapshot(t *testing.T) {
	s := New()
	s.ApplySnapshot(model.HistoryTabSnapshot{PlayerID: 1})

	s.ApplyBadge(model.HistoryBadge{UnseenCount: 3, LatestEntryTimestamp: 200, ServerAckTimestamp: 150})

	assert.Equal(t, 3, s.UnseenCount())
	assert.Equal(t, int64(150), s.LastViewedTimestamp())
	assert.Equal(t, int64(200), s.LatestEntryTimestamp())

	s.MarkEntriesSeen()
	assert.Equal(t, int64(200), s.LastViewedTimestamp())
	assert.False(t, s.HasUnseenEntries())
}

func TestEntriesAreCapped(t *testing.T) {
	s := New()
	s.ApplySnapshot(snapshot(1, 1))

	for ts := int64(2); ts < 80; ts++ {
		s.ApplyDelta(model.HistoryDelta{NewEntries: entries(ts), LatestEntryTimestamp: ts})
	}

	got := s.Entries()
	require.Len(t, got, MaxEntries)
	assert.Equal(t, int64(79), got[0].Timestamp)
	assert.Equal(t, MaxEntries, s.UnseenCount())
}

func TestFilterAndPaging(t *testing.T) {
	s := New()
	ts := make([]int64, 0, 25)
	for i := int64(25); i >= 1; i-- {
		ts = append(ts, i*10)
	}
	s.ApplySnapshot(snapshot(1, ts...))

	page := s.Page()
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Entries, PageSize)

	s.NextPage()
	s.NextPage()
	s.NextPage()
	page = s.Page()
	assert.Equal(t, 2, page.PageIndex)
	assert.Len(t, page.Entries, 5)

	s.SetFilter(FilterSales)
	page = s.Page()
	assert.Equal(t, 0, page.PageIndex)
	assert.Equal(t, 13, page.TotalItems)
	for _, e := range page.Entries {
		assert.True(t, e.Item.IsSale)
	}

	s.SetFilter(FilterPurchases)
	assert.Len(t, s.FilteredEntries(), 12)

	s.PreviousPage()
	assert.Equal(t, 0, s.Page().PageIndex)
}
