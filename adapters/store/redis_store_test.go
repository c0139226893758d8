package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/wallet2fa/core"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client)

	record := core.NonceRecord{
		Address:  "0xabc",
		Nonce:    "0123456789abcdef0123456789abcdef",
		IssuedAt: time.Unix(0, 1700000000123456789),
	}
	require.NoError(t, s.Put(ctx, record, 5*time.Minute))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"0xabc"))
	assert.Equal(t, 5*time.Minute, mr.TTL(DefaultRedisPrefix+"0xabc"))

	got, ok, err := s.Get(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record.Nonce, got.Nonce)
	assert.True(t, record.IssuedAt.Equal(got.IssuedAt))

	deleted, err := s.CompareAndDelete(ctx, got)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists(DefaultRedisPrefix+"0xabc"))

	deleted, err = s.CompareAndDelete(ctx, got)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRedisStoreCompareAndDeleteKeepsReplacement(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	s := NewRedisStore(client)

	old := core.NonceRecord{Address: "0xabc", Nonce: "aa", IssuedAt: time.Unix(100, 0)}
	fresh := core.NonceRecord{Address: "0xabc", Nonce: "bb", IssuedAt: time.Unix(200, 0)}
	require.NoError(t, s.Put(ctx, old, time.Minute))
	require.NoError(t, s.Put(ctx, fresh, time.Minute))

	deleted, err := s.CompareAndDelete(ctx, old)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, ok, err := s.Get(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bb", got.Nonce)
}

func TestRedisStoreKeyExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client)

	require.NoError(t, s.Put(ctx, core.NonceRecord{Address: "0xabc", Nonce: "aa", IssuedAt: time.Unix(100, 0)}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Get(ctx, "0xabc")
	require.NoError(t, err)
	assert.False(t, ok)
}
