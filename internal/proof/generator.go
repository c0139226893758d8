// Package proof builds commitment/nullifier artifacts shaped like Groth16 output.
//
// There is no proving system behind the artifact: the proof points are random
// and Verify only checks structure and freshness. It never recomputes the
// hash chain and carries no soundness guarantee.
package proof

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goccy/go-json"

	"github.com/layer-3/wallet2fa/core"
)

const (
	DefaultServiceID = "wallet2fa"
	FreshnessWindow  = time.Hour

	ReasonIncomplete = "incomplete structure"
	ReasonExpired    = "expired"
	ReasonVerified   = "verified"

	artifactNote = "Commitment/nullifier artifact with a random proof blob; verification checks structure and freshness only."
	pointSize    = 32
	signalPrefix = 16
)

// Result is the outcome of a structural proof check
type Result struct {
	Valid                bool   `json:"valid"`
	Reason               string `json:"reason"`
	Timestamp            int64  `json:"timestamp"` // unix milliseconds of the check
	PrivateDataProtected bool   `json:"privateDataProtected"`
}

// Generator produces proof artifacts. Nullifiers are derived from a strictly
// increasing nanosecond stamp, so two calls never share one even when the
// clock does not move between them.
type Generator struct {
	clock     clock.Clock
	lastStamp atomic.Int64
}

// NewGenerator creates a generator reading time from clk
func NewGenerator(clk clock.Clock) *Generator {
	if clk == nil {
		clk = clock.New()
	}
	return &Generator{clock: clk}
}

// Generate binds (address, timestamp, serviceID) into a new artifact.
// timestamp is the authentication time in unix milliseconds.
func (g *Generator) Generate(address string, timestamp int64, serviceID string) (*core.ProofArtifact, error) {
	now := g.clock.Now()

	commitment := hashHex(fmt.Sprintf("%s:%d:%s", address, timestamp, serviceID))
	nullifier := hashHex(fmt.Sprintf("%s:%d", commitment, g.nextStamp(now)))

	inputs, err := json.Marshal(struct {
		Address   string `json:"address"`
		Timestamp int64  `json:"timestamp"`
	}{address, timestamp})
	if err != nil {
		return nil, fmt.Errorf("failed to encode private inputs: %w", err)
	}

	blob, err := randomProof()
	if err != nil {
		return nil, err
	}

	return &core.ProofArtifact{
		Type:          core.ProofType,
		Commitment:    commitment,
		Nullifier:     nullifier,
		PrivateInputs: hashHex(string(inputs)),
		PublicSignals: []string{commitment[:signalPrefix], serviceID},
		Proof:         blob,
		Verified:      true,
		Timestamp:     now.UnixMilli(),
		Note:          artifactNote,
	}, nil
}

// Verify checks that the artifact is complete and younger than FreshnessWindow
func (g *Generator) Verify(artifact *core.ProofArtifact) Result {
	now := g.clock.Now()
	result := Result{Timestamp: now.UnixMilli()}

	if artifact == nil || artifact.Commitment == "" || artifact.Nullifier == "" || artifact.Proof == nil {
		result.Reason = ReasonIncomplete
		return result
	}

	result.PrivateDataProtected = true
	if now.UnixMilli()-artifact.Timestamp > FreshnessWindow.Milliseconds() {
		result.Reason = ReasonExpired
		return result
	}

	result.Valid = true
	result.Reason = ReasonVerified
	return result
}

func (g *Generator) nextStamp(now time.Time) int64 {
	stamp := now.UnixNano()
	for {
		last := g.lastStamp.Load()
		next := stamp
		if next <= last {
			next = last + 1
		}
		if g.lastStamp.CompareAndSwap(last, next) {
			return next
		}
	}
}

func randomProof() (*core.Groth16Proof, error) {
	points := make([]string, 8)
	for i := range points {
		buf := make([]byte, pointSize)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate proof blob: %w", err)
		}
		points[i] = hexutil.Encode(buf)
	}

	return &core.Groth16Proof{
		PiA: points[0:2],
		PiB: [][]string{points[2:4], points[4:6]},
		PiC: points[6:8],
	}, nil
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
