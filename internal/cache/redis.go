package cache

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"grandexchange-api/internal/model"

	"github.com/redis/go-redis/v9"
)

// Buffer configuration
const (
	MaxBatchSize       = 50
	FlushTimeout       = 60 * time.Second
	StaleDataThreshold = 24 * time.Hour
	CleanupInterval    = 5 * time.Minute
)

var deleteIfUnchangedScript = redis.NewScript(`
	if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
		redis.call("HDEL", KEYS[1], ARGV[1])
		redis.call("SREM", KEYS[2], ARGV[1])
		return 1
	else
		return 0
	end
`)

// RedisStateBuffer is a write-behind buffer for player states. Pending states
// live zstd-compressed in a Redis hash and are flushed to the store in batches.
type RedisStateBuffer struct {
	client        *redis.Client
	flushFunc     FlushFunc
	flushTicker   *time.Ticker
	cleanupTicker *time.Ticker
	stopFlush     chan struct{}
	done          sync.WaitGroup
	stopOnce      sync.Once
	keyPrefix     string
}

var _ StateBuffer = (*RedisStateBuffer)(nil)

// RedisBufferConfig holds configuration for the Redis buffer.
type RedisBufferConfig struct {
	FlushInterval time.Duration
	KeyPrefix     string
}

// NewRedisStateBuffer starts a buffer on a connected client.
func NewRedisStateBuffer(client *redis.Client, cfg RedisBufferConfig, flushFunc FlushFunc) *RedisStateBuffer {
	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "ge"
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	b := &RedisStateBuffer{
		client:        client,
		flushFunc:     flushFunc,
		flushTicker:   time.NewTicker(interval),
		cleanupTicker: time.NewTicker(CleanupInterval),
		stopFlush:     make(chan struct{}),
		keyPrefix:     keyPrefix + ":players",
	}

	b.done.Add(2)
	go b.backgroundFlush()
	go b.backgroundCleanup()

	log.Printf("[RedisStateBuffer] Started - prefix:%s, flush:%v, batch:%d",
		b.keyPrefix, interval, MaxBatchSize)
	return b
}

func (b *RedisStateBuffer) bufferKey() string {
	return b.keyPrefix + ":buffer"
}

func (b *RedisStateBuffer) pendingKey() string {
	return b.keyPrefix + ":pending"
}

// Add buffers the latest state of a player.
func (b *RedisStateBuffer) Add(ctx context.Context, state model.PlayerState) error {
	data, err := encodeState(bufferedState{State: state, BufferedAt: time.Now().UnixMilli()})
	if err != nil {
		return err
	}

	field := strconv.FormatInt(state.PlayerID, 10)
	pipe := b.client.Pipeline()
	pipe.HSet(ctx, b.bufferKey(), field, data)
	pipe.SAdd(ctx, b.pendingKey(), field)
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the pending state of a player, or nil if none is buffered.
func (b *RedisStateBuffer) Get(ctx context.Context, playerID int64) (*model.PlayerState, error) {
	data, err := b.client.HGet(ctx, b.bufferKey(), strconv.FormatInt(playerID, 10)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s, err := decodeState(data)
	if err != nil {
		return nil, err
	}
	return &s.State, nil
}

// Count returns the number of pending players.
func (b *RedisStateBuffer) Count(ctx context.Context) (int64, error) {
	return b.client.SCard(ctx, b.pendingKey()).Result()
}

// FlushBatch writes up to MaxBatchSize pending states to the store. A state
// replaced while the flush ran stays pending for the next batch.
func (b *RedisStateBuffer) FlushBatch(ctx context.Context) (int, error) {
	fields, err := b.client.SRandMemberN(ctx, b.pendingKey(), MaxBatchSize).Result()
	if err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, nil
	}

	totalPending, _ := b.Count(ctx)
	log.Printf("[RedisStateBuffer] Flushing %d/%d players", len(fields), totalPending)

	states := make([]model.PlayerState, 0, len(fields))
	originalData := make(map[string]string, len(fields))

	for _, field := range fields {
		data, err := b.client.HGet(ctx, b.bufferKey(), field).Bytes()
		if errors.Is(err, redis.Nil) {
			b.client.SRem(ctx, b.pendingKey(), field)
			continue
		}
		if err != nil {
			log.Printf("[RedisStateBuffer] Error getting %s: %v", field, err)
			continue
		}

		s, err := decodeState(data)
		if err != nil {
			log.Printf("[RedisStateBuffer] Dropping undecodable state %s: %v", field, err)
			b.client.HDel(ctx, b.bufferKey(), field)
			b.client.SRem(ctx, b.pendingKey(), field)
			continue
		}
		originalData[field] = string(data)
		states = append(states, s.State)
	}

	if len(states) == 0 {
		return 0, nil
	}

	if err := b.flushFunc(ctx, states); err != nil {
		log.Printf("[RedisStateBuffer] Flush error: %v", err)
		return 0, err
	}

	pipe := b.client.Pipeline()
	for field, data := range originalData {
		deleteIfUnchangedScript.Run(ctx, pipe, []string{b.bufferKey(), b.pendingKey()}, field, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[RedisStateBuffer] Error clearing Redis: %v", err)
	}

	log.Printf("[RedisStateBuffer] Flushed %d players", len(states))
	return len(states), nil
}

// CleanupStale drops pending states older than StaleDataThreshold.
func (b *RedisStateBuffer) CleanupStale(ctx context.Context) (int, error) {
	fields, err := b.client.SMembers(ctx, b.pendingKey()).Result()
	if err != nil || len(fields) == 0 {
		return 0, err
	}

	threshold := time.Now().Add(-StaleDataThreshold).UnixMilli()
	staleCount := 0
	pipe := b.client.Pipeline()

	for _, field := range fields {
		data, err := b.client.HGet(ctx, b.bufferKey(), field).Bytes()
		if errors.Is(err, redis.Nil) {
			pipe.SRem(ctx, b.pendingKey(), field)
			continue
		}
		if err != nil {
			continue
		}

		s, err := decodeState(data)
		if err != nil || s.BufferedAt < threshold {
			pipe.HDel(ctx, b.bufferKey(), field)
			pipe.SRem(ctx, b.pendingKey(), field)
			staleCount++
		}
	}

	if _, err := pipe.Exec(ctx); err != nil && staleCount > 0 {
		log.Printf("[RedisStateBuffer] Cleanup exec error: %v", err)
		return 0, err
	}
	if staleCount > 0 {
		log.Printf("[RedisStateBuffer] Cleaned up %d stale states", staleCount)
	}
	return staleCount, nil
}

func (b *RedisStateBuffer) backgroundFlush() {
	defer b.done.Done()
	for {
		select {
		case <-b.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if _, err := b.FlushBatch(ctx); err != nil {
				log.Printf("[RedisStateBuffer] Background flush error: %v", err)
			}
			cancel()
		case <-b.stopFlush:
			log.Printf("[RedisStateBuffer] Shutdown: flushing remaining states...")
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			for {
				flushed, err := b.FlushBatch(ctx)
				if err != nil {
					log.Printf("[RedisStateBuffer] Shutdown flush error: %v", err)
					break
				}
				if flushed == 0 {
					break
				}
			}
			cancel()
			log.Printf("[RedisStateBuffer] Shutdown flush complete")
			return
		}
	}
}

func (b *RedisStateBuffer) backgroundCleanup() {
	defer b.done.Done()
	for {
		select {
		case <-b.cleanupTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			b.CleanupStale(ctx)
			cancel()
		case <-b.stopFlush:
			return
		}
	}
}

// Close stops the buffer after a final flush. The client is left open for its owner.
func (b *RedisStateBuffer) Close() error {
	b.stopOnce.Do(func() {
		b.flushTicker.Stop()
		b.cleanupTicker.Stop()
		close(b.stopFlush)
		b.done.Wait()
	})
	return nil
}
