package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"c5isr-identity/internal/pkg/clock"
)

type kvHarness struct {
	kv      KV
	advance func(time.Duration)
}

func memoryHarness(t *testing.T) kvHarness {
	clk := clock.NewFake(time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC))
	return kvHarness{kv: NewMemoryKV(clk), advance: clk.Advance}
}

func redisHarness(t *testing.T) kvHarness {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return kvHarness{kv: NewRedisKV(client, "test:"), advance: mr.FastForward}
}

func forEachKV(t *testing.T, fn func(t *testing.T, h kvHarness)) {
	t.Run("memory", func(t *testing.T) { fn(t, memoryHarness(t)) })
	t.Run("redis", func(t *testing.T) { fn(t, redisHarness(t)) })
}

func TestKVGetPutDelete(t *testing.T) {
	forEachKV(t, func(t *testing.T, h kvHarness) {
		ctx := context.Background()

		_, err := h.kv.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, h.kv.Put(ctx, "a", []byte("1"), 0))
		v, err := h.kv.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "1", string(v))

		require.NoError(t, h.kv.Delete(ctx, "a"))
		_, err = h.kv.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestKVExpiry(t *testing.T) {
	forEachKV(t, func(t *testing.T, h kvHarness) {
		ctx := context.Background()
		require.NoError(t, h.kv.Put(ctx, "ttl", []byte("x"), 2*time.Second))

		h.advance(time.Second)
		_, err := h.kv.Get(ctx, "ttl")
		require.NoError(t, err)

		h.advance(2 * time.Second)
		_, err = h.kv.Get(ctx, "ttl")
		assert.ErrorIs(t, err, ErrNotFound)

		ok, err := h.kv.CompareAndSwap(ctx, "ttl", nil, []byte("y"), 0)
		require.NoError(t, err)
		assert.True(t, ok, "expired key counts as absent")
	})
}

func TestKVCompareAndSwap(t *testing.T) {
	forEachKV(t, func(t *testing.T, h kvHarness) {
		ctx := context.Background()

		ok, err := h.kv.CompareAndSwap(ctx, "k", nil, []byte("v1"), 0)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.kv.CompareAndSwap(ctx, "k", nil, []byte("v2"), 0)
		require.NoError(t, err)
		assert.False(t, ok, "absent precondition fails when key exists")

		ok, err = h.kv.CompareAndSwap(ctx, "k", []byte("stale"), []byte("v2"), 0)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = h.kv.CompareAndSwap(ctx, "k", []byte("v1"), []byte("v2"), 0)
		require.NoError(t, err)
		assert.True(t, ok)

		v, err := h.kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(v))

		ok, err = h.kv.CompareAndSwap(ctx, "gone", []byte("v1"), []byte("v2"), 0)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestKVCompareAndDelete(t *testing.T) {
	forEachKV(t, func(t *testing.T, h kvHarness) {
		ctx := context.Background()
		require.NoError(t, h.kv.Put(ctx, "k", []byte("v1"), 0))

		ok, err := h.kv.CompareAndDelete(ctx, "k", []byte("other"))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = h.kv.CompareAndDelete(ctx, "k", []byte("v1"))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.kv.CompareAndDelete(ctx, "k", []byte("v1"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestKVScan(t *testing.T) {
	forEachKV(t, func(t *testing.T, h kvHarness) {
		ctx := context.Background()
		require.NoError(t, h.kv.Put(ctx, "session:analyst", []byte("a"), 0))
		require.NoError(t, h.kv.Put(ctx, "session:commander", []byte("c"), 0))
		require.NoError(t, h.kv.Put(ctx, "lockout:1.2.3.4:analyst", []byte("l"), 0))

		got, err := h.kv.Scan(ctx, "session:")
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{
			"session:analyst":   []byte("a"),
			"session:commander": []byte("c"),
		}, got)
	})
}

func TestKVConcurrentCASIncrements(t *testing.T) {
	forEachKV(t, func(t *testing.T, h kvHarness) {
		ctx := context.Background()
		const workers = 20

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					cur, err := h.kv.Get(ctx, "counter")
					var n int
					if err == nil {
						_, _ = fmt.Sscanf(string(cur), "%d", &n)
					} else {
						cur = nil
					}
					ok, err := h.kv.CompareAndSwap(ctx, "counter", cur, []byte(fmt.Sprint(n+1)), 0)
					if err != nil {
						t.Error(err)
						return
					}
					if ok {
						return
					}
				}
			}()
		}
		wg.Wait()

		v, err := h.kv.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(workers), string(v))
	})
}

func TestMemoryKVSweep(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC))
	kv := NewMemoryKV(clk)
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "short", []byte("x"), time.Second))
	require.NoError(t, kv.Put(ctx, "forever", []byte("y"), 0))

	clk.Advance(5 * time.Second)
	assert.Equal(t, 1, kv.Sweep(ctx))
	assert.Equal(t, 1, kv.Len())
}
