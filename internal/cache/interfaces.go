package cache

import (
	"context"
	"time"

	"grandexchange-api/internal/model"
)

// Cache defines the interface for caching operations.
// Market depth views and session tokens go through it, backed by memory in
// single-instance deployments and by Redis otherwise.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. A zero TTL never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// GetOrSet retrieves a value or computes and stores it if missing.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)

	// Clear removes all entries from the cache.
	Clear(ctx context.Context) error

	Close() error
}

// StateBuffer holds player states between periodic flushes to the store.
type StateBuffer interface {
	// Add buffers the latest state of a player, replacing any pending one.
	Add(ctx context.Context, state model.PlayerState) error

	// Get returns the pending state of a player, or nil if none is buffered.
	Get(ctx context.Context, playerID int64) (*model.PlayerState, error)

	// Count returns the number of pending players.
	Count(ctx context.Context) (int64, error)

	// FlushBatch persists up to MaxBatchSize pending states.
	FlushBatch(ctx context.Context) (int, error)

	// Close stops background work after a final flush.
	Close() error
}

// FlushFunc is called to persist buffered player states.
type FlushFunc func(ctx context.Context, states []model.PlayerState) error

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)
