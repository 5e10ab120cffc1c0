package service

import (
	"context"
	"testing"

	"grandexchange-api/internal/cache"
	"grandexchange-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditTrade(buyer, seller model.Player, item string, qty, price int) model.Trade {
	t := fillOf(item, qty, price)
	t.BuyerID, t.SellerID = buyer.ID, seller.ID
	return t
}

func TestAuditLog_RingsKeepTheLatestTrades(t *testing.T) {
	l := NewAuditLog(3, true)

	l.RecordTrade(auditTrade(bob, alice, "ironbar", 1, 10))
	l.RecordTrade(auditTrade(bob, alice, "diamond", 1, 500))
	l.RecordTrade(auditTrade(carol, alice, "ironbar", 2, 11))
	l.RecordTrade(auditTrade(carol, bob, "ironbar", 3, 12))

	recent := l.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "diamond", recent[0].ItemStringID)
	assert.Equal(t, 12, recent[2].PricePerItem)

	last := l.Recent(1)
	require.Len(t, last, 1)
	assert.Equal(t, carol.ID, last[0].BuyerID)

	assert.Len(t, l.RecentForItem("ironbar", 10), 3)
	assert.Len(t, l.RecentForPlayer(bob.ID, 10), 3)
	assert.Len(t, l.RecentForPlayer(alice.ID, 2), 2)
	assert.Empty(t, l.RecentForPlayer(99, 10))

	st := l.PlayerStats(bob.ID)
	assert.Equal(t, 2, st.BuyCount)
	assert.Equal(t, int64(510), st.CoinsSpent)
	assert.Equal(t, 1, st.SellCount)
	assert.Equal(t, int64(36), st.CoinsReceived)
	assert.Equal(t, int64(3), st.ItemsSold)

	stats := l.Stats()
	assert.Equal(t, int64(4), stats.TotalTrades)
	assert.Equal(t, int64(10+500+22+36), stats.TotalCoins)
	assert.Equal(t, 3, stats.RetainedTrades)
	assert.Equal(t, "ironbar", stats.MostTradedItem)
	assert.Equal(t, 2, stats.UniqueItems)
	assert.Equal(t, 3, stats.UniquePlayers)
	assert.True(t, stats.FraudDetection)

	l.Clear()
	assert.Empty(t, l.Recent(0))
	assert.Equal(t, int64(4), l.Stats().TotalTrades)
}

func TestAuditLog_SuspiciousTrades(t *testing.T) {
	l := NewAuditLog(0, true)

	l.RecordTrade(auditTrade(alice, alice, "ironbar", 1, 10))
	for range 20 {
		l.RecordTrade(auditTrade(bob, carol, "diamond", 1, 10))
	}
	l.RecordTrade(auditTrade(bob, carol, "diamond", 1, 1000))

	suspicious := l.SuspiciousTrades()
	require.Len(t, suspicious, 2)
	assert.Equal(t, "self_trade", suspicious[0].Reason)
	assert.Equal(t, alice.ID, suspicious[0].SellerID)
	assert.Equal(t, "price_outlier", suspicious[1].Reason)
	assert.Equal(t, 1000, suspicious[1].PricePerItem)

	// a self trade is kept once in the player's ring
	assert.Len(t, l.RecentForPlayer(alice.ID, 0), 1)

	off := NewAuditLog(0, false)
	off.RecordTrade(auditTrade(alice, alice, "ironbar", 1, 10))
	assert.NotNil(t, off.SuspiciousTrades())
	assert.Empty(t, off.SuspiciousTrades())
}

func TestAuditLog_SaveAndLoad(t *testing.T) {
	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	empty := NewAuditLog(10, true)
	n, err := empty.Load(ctx, c)
	require.NoError(t, err)
	assert.Zero(t, n)

	l := NewAuditLog(10, true)
	l.RecordTrade(auditTrade(bob, alice, "ironbar", 2, 10))
	l.RecordTrade(auditTrade(carol, bob, "diamond", 1, 300))
	require.NoError(t, l.Save(ctx, c))

	restored := NewAuditLog(10, true)
	n, err = restored.Load(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, l.Recent(0), restored.Recent(0))
	assert.Equal(t, l.PlayerStats(bob.ID), restored.PlayerStats(bob.ID))
	assert.Len(t, restored.RecentForItem("diamond", 0), 1)
}

func TestAuditLog_NilStatsIsZero(t *testing.T) {
	var l *AuditLog
	l.RecordTrade(auditTrade(bob, alice, "ironbar", 1, 10))
	assert.Equal(t, model.AuditStats{}, l.Stats())
}
