package ports

import (
	"context"

	"github.com/layer-3/wallet2fa/core"
)

// Ledger is the append-only history of successful authentications
type Ledger interface {
	Append(ctx context.Context, record *core.AuthenticationRecord) error

	// QueryRecent returns up to limit records for the address, newest first
	QueryRecent(ctx context.Context, address string, limit int) ([]*core.AuthenticationRecord, error)

	// Count returns the number of records ever appended for the address
	Count(ctx context.Context, address string) (int, error)
}
