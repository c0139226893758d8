package store

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/wallet2fa/core"
)

const DefaultRedisPrefix = "wallet2fa:nonce:"

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1]
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisNonce struct {
	Nonce    string `json:"nonce"`
	IssuedAt int64  `json:"issued_at"` // unix nanoseconds
}

// RedisStore is a Redis implementation of the nonce store, shared by every
// instance of the service
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis nonce store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: DefaultRedisPrefix,
	}
}

// Put stores the record with a key expiry matching the nonce TTL
func (s *RedisStore) Put(ctx context.Context, record core.NonceRecord, ttl time.Duration) error {
	payload, err := encodeNonce(record)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.prefix+record.Address, payload, ttl).Err(); err != nil {
		return errors.Wrap(err, "storing nonce")
	}

	return nil
}

// Get loads the record for the address
func (s *RedisStore) Get(ctx context.Context, address string) (core.NonceRecord, bool, error) {
	payload, err := s.client.Get(ctx, s.prefix+address).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.NonceRecord{}, false, nil
	}
	if err != nil {
		return core.NonceRecord{}, false, errors.Wrap(err, "loading nonce")
	}

	var stored redisNonce
	if err := json.Unmarshal(payload, &stored); err != nil {
		return core.NonceRecord{}, false, errors.Wrap(err, "decoding nonce")
	}

	return core.NonceRecord{
		Address:  address,
		Nonce:    stored.Nonce,
		IssuedAt: time.Unix(0, stored.IssuedAt),
	}, true, nil
}

// CompareAndDelete atomically deletes the key if it still holds the given record
func (s *RedisStore) CompareAndDelete(ctx context.Context, record core.NonceRecord) (bool, error) {
	payload, err := encodeNonce(record)
	if err != nil {
		return false, err
	}

	deleted, err := compareAndDelete.Run(ctx, s.client, []string{s.prefix + record.Address}, payload).Int()
	if err != nil {
		return false, errors.Wrap(err, "consuming nonce")
	}

	return deleted == 1, nil
}

func encodeNonce(record core.NonceRecord) (string, error) {
	payload, err := json.Marshal(redisNonce{
		Nonce:    record.Nonce,
		IssuedAt: record.IssuedAt.UnixNano(),
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding nonce")
	}
	return string(payload), nil
}
