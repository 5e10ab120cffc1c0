package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"grandexchange-api/internal/cache"
	"grandexchange-api/internal/model"
)

// Cooldown kinds. Sell offers and buy orders cool down independently.
const (
	CooldownSellOffer = "sell_offer"
	CooldownBuyOrder  = "buy_order"
)

// CooldownError refuses a creation made before the player's cooldown ended.
// It matches model.ErrRateLimited.
type CooldownError struct {
	Kind      string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s creation on cooldown for %s", e.Kind, e.Remaining.Round(time.Millisecond))
}

func (e *CooldownError) Unwrap() error {
	return model.ErrRateLimited
}

// RateLimitStats summarizes cooldown checks since startup.
type RateLimitStats struct {
	Cooldown    string  `json:"cooldown"`
	TotalChecks int64   `json:"total_checks"`
	TotalDenied int64   `json:"total_denied"`
	DenialRate  float64 `json:"denial_rate"`
}

// RateLimiter enforces a cooldown between creations per player. The last
// creation time is kept in the cache with the cooldown as TTL, so instances
// sharing a Redis cache share cooldowns and stale entries expire by themselves.
// A nil limiter or a zero cooldown allows everything.
type RateLimiter struct {
	cache    cache.Cache
	cooldown time.Duration
	now      func() int64

	checks atomic.Int64
	denied atomic.Int64
}

// NewRateLimiter creates a limiter over c.
func NewRateLimiter(c cache.Cache, cooldown time.Duration) *RateLimiter {
	return &RateLimiter{
		cache:    c,
		cooldown: cooldown,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

func (l *RateLimiter) enabled() bool {
	return l != nil && l.cache != nil && l.cooldown > 0
}

func cooldownKey(kind string, playerID int64) string {
	return "cooldown:" + kind + ":" + strconv.FormatInt(playerID, 10)
}

// Check returns a *CooldownError when the player created kind less than the
// cooldown ago.
func (l *RateLimiter) Check(ctx context.Context, playerID int64, kind string) error {
	if !l.enabled() {
		return nil
	}
	l.checks.Add(1)
	if remaining := l.Remaining(ctx, playerID, kind); remaining > 0 {
		l.denied.Add(1)
		return &CooldownError{Kind: kind, Remaining: remaining}
	}
	return nil
}

// Record starts the player's cooldown for kind.
func (l *RateLimiter) Record(ctx context.Context, playerID int64, kind string) {
	if !l.enabled() {
		return
	}
	stamp := []byte(strconv.FormatInt(l.now(), 10))
	if err := l.cache.Set(ctx, cooldownKey(kind, playerID), stamp, l.cooldown); err != nil {
		log.Printf("[RateLimiter] Failed to record %s for player %d: %v", kind, playerID, err)
	}
}

// Remaining returns how long until the player may create kind again.
func (l *RateLimiter) Remaining(ctx context.Context, playerID int64, kind string) time.Duration {
	if !l.enabled() {
		return 0
	}
	data, err := l.cache.Get(ctx, cooldownKey(kind, playerID))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("[RateLimiter] Failed to read %s for player %d: %v", kind, playerID, err)
		}
		return 0
	}
	last, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0
	}
	elapsed := time.Duration(l.now()-last) * time.Millisecond
	return max(0, l.cooldown-elapsed)
}

// Clear lifts both cooldowns of a player.
func (l *RateLimiter) Clear(ctx context.Context, playerID int64) {
	if !l.enabled() {
		return
	}
	for _, kind := range []string{CooldownSellOffer, CooldownBuyOrder} {
		if err := l.cache.Delete(ctx, cooldownKey(kind, playerID)); err != nil {
			log.Printf("[RateLimiter] Failed to clear %s for player %d: %v", kind, playerID, err)
		}
	}
}

// Stats returns the check counters.
func (l *RateLimiter) Stats() RateLimitStats {
	if l == nil {
		return RateLimitStats{Cooldown: "0s"}
	}
	st := RateLimitStats{
		Cooldown:    l.cooldown.String(),
		TotalChecks: l.checks.Load(),
		TotalDenied: l.denied.Load(),
	}
	if st.TotalChecks > 0 {
		st.DenialRate = float64(st.TotalDenied) / float64(st.TotalChecks)
	}
	return st
}
