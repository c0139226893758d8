package ports

import (
	"context"
	"time"

	"github.com/layer-3/wallet2fa/core"
)

// NonceStore holds at most one nonce record per address
type NonceStore interface {
	// Put stores the record, replacing any previous one for the same address
	Put(ctx context.Context, record core.NonceRecord, ttl time.Duration) error

	// Get returns the current record for the address, if any
	Get(ctx context.Context, address string) (core.NonceRecord, bool, error)

	// CompareAndDelete removes the record for its address only if the stored
	// record still equals the given one. It reports whether a deletion happened.
	CompareAndDelete(ctx context.Context, record core.NonceRecord) (bool, error)
}

// NonceSweeper is implemented by stores that can drop expired records in bulk
type NonceSweeper interface {
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
