package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	got[0] = 'x'
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("v"), again)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Millisecond))
	require.NoError(t, c.Set(ctx, "forever", []byte("2"), 0))
	time.Sleep(5 * time.Millisecond)

	ok, _ := c.Exists(ctx, "short")
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, "forever")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_DeletePrefix(t *testing.T) {
	c := NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	c.Set(ctx, "depth:wood", []byte("1"), 0)
	c.Set(ctx, "depth:stone", []byte("2"), 0)
	c.Set(ctx, "token:abc", []byte("3"), 0)

	require.NoError(t, c.DeletePrefix(ctx, "depth:"))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_GetOrSet(t *testing.T) {
	c := NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	calls := 0
	fn := func() ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrSet(ctx, "k", time.Minute, fn)
		require.NoError(t, err)
		assert.Equal(t, []byte("computed"), v)
	}
	assert.Equal(t, 1, calls)

	_, err := c.GetOrSet(ctx, "fail", time.Minute, func() ([]byte, error) { return nil, errors.New("boom") })
	assert.Error(t, err)
	ok, _ := c.Exists(ctx, "fail")
	assert.False(t, ok)
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	c := NewMemoryCache()
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
