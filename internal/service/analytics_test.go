package service

import (
	"testing"
	"time"

	"grandexchange-api/internal/model"

	"github.com/stretchr/testify/assert"
)

func newTestAnalytics(maxTrades int) (*MarketAnalytics, *testClock) {
	clock := &testClock{now: 1_700_000_000_000}
	a := NewMarketAnalytics(maxTrades)
	a.now = clock.Now
	return a, clock
}

func fillOf(item string, qty, price int) model.Trade {
	return model.Trade{
		ItemStringID: item,
		Quantity:     qty,
		PricePerItem: price,
		TotalCoins:   int64(qty) * int64(price),
	}
}

func TestAnalytics_Summary(t *testing.T) {
	a, _ := newTestAnalytics(0)

	a.RecordTrade(fillOf("ironbar", 1, 10))
	a.RecordTrade(fillOf("ironbar", 3, 20))
	a.RecordTrade(fillOf("ironbar", 1, 40))

	s := a.Summary("ironbar")
	assert.Equal(t, 20, s.GuidePrice)
	assert.Equal(t, (10+60+40)/5, s.VWAP)
	assert.Equal(t, 23, s.AveragePrice)
	assert.Equal(t, 5, s.TradeVolume)
	assert.Equal(t, 3, s.TradeCount)
	assert.Equal(t, 40, s.High24h)
	assert.Equal(t, 10, s.Low24h)
	assert.Equal(t, 30, s.Spread24h())
	assert.InDelta(t, 12.47, s.Volatility, 0.01)

	a.RecordTrade(fillOf("ironbar", 1, 30))
	assert.Equal(t, 25, a.GuidePrice("ironbar"), "an even count averages the middle two")

	assert.Equal(t, model.MarketSummary{ItemStringID: "diamond"}, a.Summary("diamond"))
}

func TestAnalytics_SingleTradeHasNoVolatility(t *testing.T) {
	a, _ := newTestAnalytics(0)
	a.RecordTrade(fillOf("ironbar", 2, 10))
	assert.Zero(t, a.Summary("ironbar").Volatility)
}

func TestAnalytics_KeepsRecentTrades(t *testing.T) {
	a, _ := newTestAnalytics(3)

	for _, price := range []int{100, 1, 2, 3} {
		a.RecordTrade(fillOf("ironbar", 1, price))
	}
	s := a.Summary("ironbar")
	assert.Equal(t, 3, s.TradeCount)
	assert.Equal(t, 2, s.GuidePrice)
	assert.Equal(t, 100, s.High24h, "the daily range outlives the price window")

	st := a.Stats()
	assert.Equal(t, 1, st.TrackedItems)
	assert.Equal(t, int64(4), st.TotalTrades)
	assert.Equal(t, int64(106), st.TotalCoins)
}

func TestAnalytics_DailyRangeRestartsAfterADay(t *testing.T) {
	a, clock := newTestAnalytics(0)

	a.RecordTrade(fillOf("ironbar", 1, 50))
	a.RecordTrade(fillOf("ironbar", 1, 10))
	clock.Advance(25 * time.Hour)
	a.RecordTrade(fillOf("ironbar", 1, 30))

	s := a.Summary("ironbar")
	assert.Equal(t, 30, s.High24h)
	assert.Equal(t, 30, s.Low24h)

	a.RecordTrade(fillOf("diamond", 1, 5))
	clock.Advance(25 * time.Hour)
	assert.Equal(t, 2, a.Cleanup())
	assert.Zero(t, a.Summary("ironbar").High24h)
	assert.Equal(t, 3, a.Summary("ironbar").TradeCount)
}

func TestAnalytics_NilIsInert(t *testing.T) {
	var a *MarketAnalytics
	a.RecordTrade(fillOf("ironbar", 1, 10))
	assert.Equal(t, model.MarketSummary{ItemStringID: "ironbar"}, a.Summary("ironbar"))
	assert.Zero(t, a.Cleanup())
	assert.Equal(t, AnalyticsStats{}, a.Stats())
}
