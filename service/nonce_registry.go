package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/wallet2fa/core"
	"github.com/layer-3/wallet2fa/ports"
)

const (
	DefaultNonceTTL = 5 * time.Minute
	nonceBytes      = 16
)

// NonceRegistry issues single-use challenge nonces, one live nonce per address
type NonceRegistry struct {
	store ports.NonceStore
	clock clock.Clock
	ttl   time.Duration
	log   logrus.FieldLogger
}

// NewNonceRegistry creates a registry over the given store.
// A zero ttl means DefaultNonceTTL.
func NewNonceRegistry(store ports.NonceStore, clk clock.Clock, ttl time.Duration, log logrus.FieldLogger) *NonceRegistry {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &NonceRegistry{
		store: store,
		clock: clk,
		ttl:   ttl,
		log:   log,
	}
}

// TTL returns how long an issued nonce stays valid
func (r *NonceRegistry) TTL() time.Duration {
	return r.ttl
}

// Issue generates a fresh nonce for the address, replacing any previous one
func (r *NonceRegistry) Issue(ctx context.Context, address string) (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	record := core.NonceRecord{
		Address:  NormalizeAddress(address),
		Nonce:    hex.EncodeToString(buf),
		IssuedAt: r.clock.Now(),
	}

	if err := r.store.Put(ctx, record, r.ttl); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}

	return record.Nonce, nil
}

// Consume spends the nonce for the address. It returns true for exactly one
// caller presenting the live, unexpired nonce; a missing, expired or different
// nonce yields false.
func (r *NonceRegistry) Consume(ctx context.Context, address, nonce string) (bool, error) {
	address = NormalizeAddress(address)

	record, ok, err := r.store.Get(ctx, address)
	if err != nil {
		return false, fmt.Errorf("failed to load nonce: %w", err)
	}
	if !ok {
		return false, nil
	}

	if record.ExpiredAt(r.clock.Now(), r.ttl) {
		if _, err := r.store.CompareAndDelete(ctx, record); err != nil {
			r.log.WithError(err).WithField("address", address).Warn("failed to drop expired nonce")
		}
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(record.Nonce), []byte(nonce)) != 1 {
		return false, nil
	}

	deleted, err := r.store.CompareAndDelete(ctx, record)
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}

	return deleted, nil
}

// Sweep drops expired records when the store supports it
func (r *NonceRegistry) Sweep(ctx context.Context) (int, error) {
	sweeper, ok := r.store.(ports.NonceSweeper)
	if !ok {
		return 0, nil
	}
	return sweeper.DeleteExpired(ctx, r.clock.Now().Add(-r.ttl))
}

// Run sweeps expired nonces every interval until ctx is done
func (r *NonceRegistry) Run(ctx context.Context, interval time.Duration) {
	if _, ok := r.store.(ports.NonceSweeper); !ok {
		return
	}
	if interval <= 0 {
		r.log.WithField("interval", interval).Warn("nonce sweeper disabled, interval must be positive")
		return
	}

	ticker := r.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				r.log.WithError(err).Warn("nonce sweep failed")
				continue
			}
			if n > 0 {
				r.log.WithField("removed", n).Debug("swept expired nonces")
			}
		}
	}
}

// NormalizeAddress case-folds a wallet address for use as a key
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
