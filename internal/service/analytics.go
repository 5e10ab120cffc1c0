package service

import (
	"math"
	"slices"
	"sync"
	"time"

	"grandexchange-api/internal/model"
)

// DefaultPriceHistorySize is how many recent trades per item feed the price
// statistics when no size is configured.
const DefaultPriceHistorySize = 50

const dayMillis = int64(24 * time.Hour / time.Millisecond)

type pricePoint struct {
	price     int
	quantity  int
	timestamp int64
}

// dailyRange tracks the high and low of an item. It restarts from the next
// trade once a day passes without one.
type dailyRange struct {
	high, low  int
	lastUpdate int64
}

func (r *dailyRange) update(price int, now int64) {
	if r.lastUpdate == 0 || now-r.lastUpdate > dayMillis {
		r.high, r.low = price, price
	} else {
		r.high = max(r.high, price)
		r.low = min(r.low, price)
	}
	r.lastUpdate = now
}

// AnalyticsStats totals what the analytics have seen since startup.
type AnalyticsStats struct {
	TrackedItems int   `json:"tracked_items"`
	TotalTrades  int64 `json:"total_trades"`
	TotalCoins   int64 `json:"total_coins"`
}

// MarketAnalytics derives price statistics from the trades the market makes:
// guide price (median), volume weighted average, 24 hour range, volatility.
type MarketAnalytics struct {
	mu        sync.RWMutex
	maxTrades int
	trades    map[string][]pricePoint // oldest first
	ranges    map[string]*dailyRange

	totalTrades int64
	totalCoins  int64
	now         func() int64
}

// NewMarketAnalytics creates analytics keeping maxTrades trades per item.
func NewMarketAnalytics(maxTrades int) *MarketAnalytics {
	if maxTrades <= 0 {
		maxTrades = DefaultPriceHistorySize
	}
	return &MarketAnalytics{
		maxTrades: maxTrades,
		trades:    make(map[string][]pricePoint),
		ranges:    make(map[string]*dailyRange),
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// RecordTrade adds a fill to the item's history. A nil receiver ignores it.
func (a *MarketAnalytics) RecordTrade(trade model.Trade) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	history := append(a.trades[trade.ItemStringID], pricePoint{
		price:     trade.PricePerItem,
		quantity:  trade.Quantity,
		timestamp: trade.Timestamp,
	})
	if len(history) > a.maxTrades {
		history = slices.Delete(history, 0, len(history)-a.maxTrades)
	}
	a.trades[trade.ItemStringID] = history

	r, ok := a.ranges[trade.ItemStringID]
	if !ok {
		r = &dailyRange{}
		a.ranges[trade.ItemStringID] = r
	}
	r.update(trade.PricePerItem, a.now())

	a.totalTrades++
	a.totalCoins += trade.TotalCoins
}

// Summary returns the price statistics of an item. An item never traded
// yields a zero summary.
func (a *MarketAnalytics) Summary(itemStringID string) model.MarketSummary {
	summary := model.MarketSummary{ItemStringID: itemStringID}
	if a == nil {
		return summary
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	history := a.trades[itemStringID]
	if r, ok := a.ranges[itemStringID]; ok {
		summary.High24h, summary.Low24h = r.high, r.low
	}
	if len(history) == 0 {
		return summary
	}

	prices := make([]int, len(history))
	var priceSum, value, volume int64
	for i, p := range history {
		prices[i] = p.price
		priceSum += int64(p.price)
		value += int64(p.price) * int64(p.quantity)
		volume += int64(p.quantity)
	}
	slices.Sort(prices)

	n := len(prices)
	if n%2 == 0 {
		summary.GuidePrice = (prices[n/2-1] + prices[n/2]) / 2
	} else {
		summary.GuidePrice = prices[n/2]
	}
	if volume > 0 {
		summary.VWAP = int(value / volume)
	}
	summary.AveragePrice = int(priceSum / int64(n))
	summary.TradeVolume = int(volume)
	summary.TradeCount = n
	summary.Volatility = volatility(prices, float64(priceSum)/float64(n))
	return summary
}

// volatility is the population standard deviation of prices.
func volatility(prices []int, mean float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	var variance float64
	for _, p := range prices {
		d := float64(p) - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(prices)))
}

// GuidePrice returns the median recent trade price of an item, or 0.
func (a *MarketAnalytics) GuidePrice(itemStringID string) int {
	return a.Summary(itemStringID).GuidePrice
}

// Cleanup drops 24 hour ranges that saw no trade for a day.
func (a *MarketAnalytics) Cleanup() int {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now() - dayMillis
	removed := 0
	for item, r := range a.ranges {
		if r.lastUpdate < cutoff {
			delete(a.ranges, item)
			removed++
		}
	}
	return removed
}

// Stats returns the totals since startup.
func (a *MarketAnalytics) Stats() AnalyticsStats {
	if a == nil {
		return AnalyticsStats{}
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return AnalyticsStats{
		TrackedItems: len(a.trades),
		TotalTrades:  a.totalTrades,
		TotalCoins:   a.totalCoins,
	}
}
