package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/wallet2fa/core"
)

// MemoryStore is an in-process nonce store.
// Each address maps to a core.NonceRecord value, so compare-and-delete
// only contends on the one key being consumed.
type MemoryStore struct {
	records sync.Map
}

// NewMemoryStore creates a new in-memory nonce store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Put replaces the record for record.Address. Expiry is checked by the registry.
func (s *MemoryStore) Put(ctx context.Context, record core.NonceRecord, ttl time.Duration) error {
	s.records.Store(record.Address, record)
	return nil
}

// Get returns the record for the address
func (s *MemoryStore) Get(ctx context.Context, address string) (core.NonceRecord, bool, error) {
	v, ok := s.records.Load(address)
	if !ok {
		return core.NonceRecord{}, false, nil
	}
	return v.(core.NonceRecord), true, nil
}

// CompareAndDelete deletes the record only if it has not been replaced since it was read
func (s *MemoryStore) CompareAndDelete(ctx context.Context, record core.NonceRecord) (bool, error) {
	return s.records.CompareAndDelete(record.Address, record), nil
}

// DeleteExpired removes every record issued at or before the cutoff
func (s *MemoryStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	removed := 0
	s.records.Range(func(key, value any) bool {
		record := value.(core.NonceRecord)
		if !record.IssuedAt.After(before) && s.records.CompareAndDelete(key, value) {
			removed++
		}
		return true
	})
	return removed, nil
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	n := 0
	s.records.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
