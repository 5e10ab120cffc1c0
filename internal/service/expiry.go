package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// ExpiryConfig holds configuration for the expiry scheduler.
type ExpiryConfig struct {
	// Interval is how often stale offers and orders are expired.
	// Default: 1 minute
	Interval time.Duration

	// Timeout bounds one run.
	// Default: 1 minute
	Timeout time.Duration
}

// Expirer is the work the scheduler runs on every tick.
type Expirer interface {
	ExpireStale(ctx context.Context) ExpireResult
}

// ExpiryScheduler periodically expires offers and orders past their duration.
type ExpiryScheduler struct {
	market    Expirer
	config    ExpiryConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewExpiryScheduler creates a new expiry scheduler.
func NewExpiryScheduler(market Expirer, config ExpiryConfig) *ExpiryScheduler {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}

	return &ExpiryScheduler{
		market: market,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins the expiry loop.
func (s *ExpiryScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[ExpiryScheduler] Started - Interval: %v", s.config.Interval)

	go s.run()
}

func (s *ExpiryScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.stopCh:
			log.Printf("[ExpiryScheduler] Stopped")
			return
		}
	}
}

// Stop stops the expiry scheduler.
func (s *ExpiryScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow triggers an immediate expiry run.
func (s *ExpiryScheduler) RunNow() ExpireResult {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	res := s.market.ExpireStale(ctx)
	if res.SellOffersExpired > 0 || res.BuyOrdersExpired > 0 || res.Purged > 0 {
		log.Printf("[ExpiryScheduler] Expired %d sell offers, %d buy orders, purged %d",
			res.SellOffersExpired, res.BuyOrdersExpired, res.Purged)
	}
	return res
}
