package service

import (
	"context"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/wallet2fa/adapters/store"
	"github.com/layer-3/wallet2fa/internal/logging"
	"github.com/layer-3/wallet2fa/ports"
)

const testAddress = "0xAbC0000000000000000000000000000000000001"

func newRegistry(t *testing.T, s ports.NonceStore) (*NonceRegistry, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewNonceRegistry(s, clk, DefaultNonceTTL, logging.Discard()), clk
}

func stores(t *testing.T) map[string]ports.NonceStore {
	_, client := miniredisClient(t)

	return map[string]ports.NonceStore{
		"memory": store.NewMemoryStore(),
		"redis":  store.NewRedisStore(client),
	}
}

func TestNonceIssueThenConsumeOnce(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, _ := newRegistry(t, s)

			nonce, err := r.Issue(ctx, testAddress)
			require.NoError(t, err)
			raw, err := hex.DecodeString(nonce)
			require.NoError(t, err)
			assert.Len(t, raw, 16)

			ok, err := r.Consume(ctx, testAddress, nonce)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = r.Consume(ctx, testAddress, nonce)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestNonceAddressIsCaseFolded(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, store.NewMemoryStore())

	nonce, err := r.Issue(ctx, testAddress)
	require.NoError(t, err)

	ok, err := r.Consume(ctx, "0xabc0000000000000000000000000000000000001", nonce)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNonceReissueInvalidatesPrevious(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, _ := newRegistry(t, s)

			first, err := r.Issue(ctx, testAddress)
			require.NoError(t, err)
			second, err := r.Issue(ctx, testAddress)
			require.NoError(t, err)
			require.NotEqual(t, first, second)

			ok, err := r.Consume(ctx, testAddress, first)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = r.Consume(ctx, testAddress, second)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestNonceMismatchLeavesRecordLive(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t, store.NewMemoryStore())

	nonce, err := r.Issue(ctx, testAddress)
	require.NoError(t, err)

	ok, err := r.Consume(ctx, testAddress, "deadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Consume(ctx, testAddress, nonce)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNonceExpiresWithoutSweep(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, clk := newRegistry(t, s)

			nonce, err := r.Issue(ctx, testAddress)
			require.NoError(t, err)

			clk.Add(DefaultNonceTTL - time.Second)
			other, err := r.Issue(ctx, "0x02")
			require.NoError(t, err)
			ok, err := r.Consume(ctx, "0x02", other)
			require.NoError(t, err)
			assert.True(t, ok)

			clk.Add(time.Second)
			ok, err = r.Consume(ctx, testAddress, nonce)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestNonceUnknownAddress(t *testing.T) {
	r, _ := newRegistry(t, store.NewMemoryStore())
	ok, err := r.Consume(context.Background(), "0xnobody", "00")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNonceConcurrentConsumeHasOneWinner(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, _ := newRegistry(t, s)

			nonce, err := r.Issue(ctx, testAddress)
			require.NoError(t, err)

			var (
				wg   sync.WaitGroup
				wins atomic.Int32
			)
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := r.Consume(ctx, testAddress, nonce)
					if err == nil && ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestNonceSweep(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	r, clk := newRegistry(t, mem)

	_, err := r.Issue(ctx, "0x01")
	require.NoError(t, err)
	clk.Add(3 * time.Minute)
	_, err = r.Issue(ctx, "0x02")
	require.NoError(t, err)
	clk.Add(3 * time.Minute)

	removed, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, mem.Len())
}

func TestNonceRunSweepsOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mem := store.NewMemoryStore()
	r, clk := newRegistry(t, mem)

	_, err := r.Issue(ctx, "0x01")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Minute)
		close(done)
	}()

	// let Run register its ticker before moving the clock
	require.Eventually(t, func() bool {
		clk.Add(time.Minute)
		return mem.Len() == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestNonceRunRejectsNonPositiveInterval(t *testing.T) {
	r, _ := newRegistry(t, store.NewMemoryStore())

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return for a zero interval")
	}
}

func TestNonceSweepUnsupportedStore(t *testing.T) {
	_, client := miniredisClient(t)
	r, _ := newRegistry(t, store.NewRedisStore(client))

	removed, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func miniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}
