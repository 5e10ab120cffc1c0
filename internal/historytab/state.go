// Package historytab folds the server's history feed (snapshots, deltas and
// badge pushes) into the client's view of the trade history tab.
//
// Messages may arrive reordered or duplicated. Every timestamp field is merged
// monotonically so no message can roll back what the player has already seen.
package historytab

import (
	"slices"

	"grandexchange-api/internal/model"
	"grandexchange-api/pkg/paginate"
)

const (
	// MaxEntries bounds the retained entries.
	MaxEntries = 50

	// PageSize is the number of entries shown per page.
	PageSize = 10
)

// Filter selects which entries are shown.
type Filter string

const (
	FilterAll       Filter = "ALL"
	FilterSales     Filter = "SALES"
	FilterPurchases Filter = "PURCHASES"
)

// State is one client session's history tab. It is not safe for concurrent use;
// apply messages one at a time in delivery order.
type State struct {
	entries []model.HistoryEntry // newest first, distinct timestamps
	stats   model.HistoryStats

	latestEntryTimestamp int64
	lastViewedTimestamp  int64
	unseenCount          int

	filter    Filter
	pageIndex int
}

// New returns an empty state showing all entries.
func New() *State {
	return &State{filter: FilterAll}
}

// LatestEntryTimestamp returns the newest entry timestamp known to the client.
func (s *State) LatestEntryTimestamp() int64 { return s.latestEntryTimestamp }

// LastViewedTimestamp returns the acknowledgement baseline.
func (s *State) LastViewedTimestamp() int64 { return s.lastViewedTimestamp }

// UnseenCount returns the badge count.
func (s *State) UnseenCount() int { return s.unseenCount }

// Stats returns the latest lifetime counters.
func (s *State) Stats() model.HistoryStats { return s.stats }

// HasUnseenEntries reports whether the badge should be shown.
func (s *State) HasUnseenEntries() bool {
	return s.unseenCount > 0
}

// IsEntryUnseen reports whether an entry with the given timestamp is newer than the baseline.
func (s *State) IsEntryUnseen(timestamp int64) bool {
	return timestamp > s.lastViewedTimestamp
}

// Entries returns a copy of the retained entries, newest first.
func (s *State) Entries() []model.HistoryEntry {
	return slices.Clone(s.entries)
}

// ApplySnapshot replaces the entry list with an authoritative snapshot.
//
// The baseline moves to the snapshot's baseline if that is newer. When no
// baseline is known at all, the entries are treated as seen so a first
// subscription never shows a false badge.
func (s *State) ApplySnapshot(snapshot model.HistoryTabSnapshot) {
	s.entries = dedupe(snapshot.Entries)
	s.stats = snapshot.Stats

	s.latestEntryTimestamp = max(s.latestEntryTimestamp, maxTimestamp(s.entries), snapshot.LatestEntryTimestamp)
	s.lastViewedTimestamp = max(s.lastViewedTimestamp, snapshot.ServerBaselineTimestamp)

	if s.lastViewedTimestamp == 0 && s.latestEntryTimestamp > 0 {
		s.lastViewedTimestamp = s.latestEntryTimestamp
		s.unseenCount = 0
	} else {
		s.refreshUnseenCount()
	}
	s.clampPage()
}

// ApplyDelta merges new entries and raises both timestamps monotonically.
func (s *State) ApplyDelta(delta model.HistoryDelta) {
	s.stats = delta.Stats
	s.mergeEntries(delta.NewEntries)

	s.latestEntryTimestamp = max(s.latestEntryTimestamp, delta.LatestEntryTimestamp, maxTimestamp(delta.NewEntries))
	s.lastViewedTimestamp = max(s.lastViewedTimestamp, delta.ServerAckTimestamp)

	s.refreshUnseenCount()
	s.clampPage()
}

// SynchronizeBadge applies the server's authoritative unseen count.
// Timestamps only move forward; the count is taken as given.
func (s *State) SynchronizeBadge(unseenCount int, latestEntryTimestamp, serverAckTimestamp int64) {
	s.latestEntryTimestamp = max(s.latestEntryTimestamp, latestEntryTimestamp)
	s.lastViewedTimestamp = max(s.lastViewedTimestamp, serverAckTimestamp)
	s.unseenCount = max(0, unseenCount)
}

// ApplyBadge is SynchronizeBadge for a badge message.
func (s *State) ApplyBadge(badge model.HistoryBadge) {
	s.SynchronizeBadge(badge.UnseenCount, badge.LatestEntryTimestamp, badge.ServerAckTimestamp)
}

// MarkEntriesSeen acknowledges everything up to the latest entry.
func (s *State) MarkEntriesSeen() {
	s.lastViewedTimestamp = max(s.lastViewedTimestamp, s.latestEntryTimestamp)
	s.unseenCount = 0
}

// mergeEntries puts unknown additions in front of the retained entries.
// Entries whose timestamp is already known are dropped.
func (s *State) mergeEntries(additions []model.HistoryEntry) {
	if len(additions) == 0 {
		return
	}
	known := make(map[int64]struct{}, len(s.entries)+len(additions))
	for _, e := range s.entries {
		known[e.Timestamp] = struct{}{}
	}

	merged := make([]model.HistoryEntry, 0, min(MaxEntries, len(s.entries)+len(additions)))
	for _, e := range additions {
		if _, dup := known[e.Timestamp]; dup {
			continue
		}
		known[e.Timestamp] = struct{}{}
		merged = append(merged, e)
	}
	merged = append(merged, s.entries...)
	if len(merged) > MaxEntries {
		merged = merged[:MaxEntries]
	}
	s.entries = merged
}

func (s *State) refreshUnseenCount() {
	n := 0
	for _, e := range s.entries {
		if e.Timestamp > s.lastViewedTimestamp {
			n++
		}
	}
	s.unseenCount = n
}

// ===== Filter and paging =====

// Filter returns the active filter.
func (s *State) Filter() Filter {
	return s.filter
}

// SetFilter changes the filter and returns to the first page when it changes.
func (s *State) SetFilter(f Filter) {
	switch f {
	case FilterAll, FilterSales, FilterPurchases:
	default:
		return
	}
	if s.filter != f {
		s.filter = f
		s.pageIndex = 0
	}
}

// FilteredEntries returns the entries matching the active filter, newest first.
func (s *State) FilteredEntries() []model.HistoryEntry {
	if s.filter == FilterAll {
		return slices.Clone(s.entries)
	}
	out := make([]model.HistoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.IsSale == (s.filter == FilterSales) {
			out = append(out, e)
		}
	}
	return out
}

// Page returns the current page of filtered entries.
func (s *State) Page() paginate.Page[model.HistoryEntry] {
	page := paginate.Paginate(s.FilteredEntries(), s.pageIndex, PageSize)
	s.pageIndex = page.PageIndex
	return page
}

// NextPage advances one page if there is one.
func (s *State) NextPage() {
	if s.pageIndex < paginate.TotalPages(len(s.FilteredEntries()), PageSize)-1 {
		s.pageIndex++
	}
}

// PreviousPage goes back one page if there is one.
func (s *State) PreviousPage() {
	if s.pageIndex > 0 {
		s.pageIndex--
	}
}

func (s *State) clampPage() {
	total := paginate.TotalPages(len(s.FilteredEntries()), PageSize)
	s.pageIndex = paginate.ClampPageIndex(s.pageIndex, total)
}

func dedupe(entries []model.HistoryEntry) []model.HistoryEntry {
	out := make([]model.HistoryEntry, 0, min(len(entries), MaxEntries))
	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Timestamp]; dup {
			continue
		}
		seen[e.Timestamp] = struct{}{}
		out = append(out, e)
		if len(out) == MaxEntries {
			break
		}
	}
	return out
}

func maxTimestamp(entries []model.HistoryEntry) int64 {
	var latest int64
	for _, e := range entries {
		latest = max(latest, e.Timestamp)
	}
	return latest
}
