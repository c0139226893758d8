package ledger

import (
	"context"
	"sync"

	"github.com/layer-3/wallet2fa/core"
)

// MemoryLedger keeps authentication records in process memory
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string][]*core.AuthenticationRecord
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string][]*core.AuthenticationRecord)}
}

func (l *MemoryLedger) Append(ctx context.Context, record *core.AuthenticationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records[record.Address] = append(l.records[record.Address], record)
	return nil
}

// QueryRecent returns up to limit records for address, newest first
func (l *MemoryLedger) QueryRecent(ctx context.Context, address string, limit int) ([]*core.AuthenticationRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.records[address]
	out := make([]*core.AuthenticationRecord, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
	}
	sortNewestFirst(out)

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *MemoryLedger) Count(ctx context.Context, address string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.records[address]), nil
}
