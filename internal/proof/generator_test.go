package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/wallet2fa/core"
)

const addr = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"

func newGenerator() (*Generator, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC))
	return NewGenerator(clk), clk
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestGenerateArtifactShape(t *testing.T) {
	g, clk := newGenerator()
	ts := int64(1709289000000)

	a, err := g.Generate(addr, ts, DefaultServiceID)
	require.NoError(t, err)

	assert.Equal(t, core.ProofType, a.Type)
	assert.Equal(t, sha(addr+":1709289000000:wallet2fa"), a.Commitment)
	assert.Len(t, a.Nullifier, 64)
	assert.Equal(t, sha(`{"address":"`+addr+`","timestamp":1709289000000}`), a.PrivateInputs)
	assert.Equal(t, []string{a.Commitment[:16], DefaultServiceID}, a.PublicSignals)
	assert.True(t, a.Verified)
	assert.Equal(t, clk.Now().UnixMilli(), a.Timestamp)

	require.NotNil(t, a.Proof)
	assert.Len(t, a.Proof.PiA, 2)
	require.Len(t, a.Proof.PiB, 2)
	assert.Len(t, a.Proof.PiB[0], 2)
	assert.Len(t, a.Proof.PiB[1], 2)
	assert.Len(t, a.Proof.PiC, 2)
	for _, p := range a.Proof.PiA {
		assert.Len(t, p, 66)
		assert.Equal(t, "0x", p[:2])
	}
}

func TestGenerateSameInputsDistinctNullifiers(t *testing.T) {
	g, _ := newGenerator()

	a, err := g.Generate(addr, 1000, DefaultServiceID)
	require.NoError(t, err)
	b, err := g.Generate(addr, 1000, DefaultServiceID)
	require.NoError(t, err)

	assert.Equal(t, a.Commitment, b.Commitment)
	assert.NotEqual(t, a.Nullifier, b.Nullifier)
}

func TestGenerateConcurrentNullifiersUnique(t *testing.T) {
	g, _ := newGenerator()

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := g.Generate(addr, 1000, DefaultServiceID)
			if err != nil {
				return
			}
			mu.Lock()
			seen[a.Nullifier] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 64)
}

func TestVerify(t *testing.T) {
	g, clk := newGenerator()

	a, err := g.Generate(addr, 1000, DefaultServiceID)
	require.NoError(t, err)

	res := g.Verify(a)
	assert.True(t, res.Valid)
	assert.Equal(t, ReasonVerified, res.Reason)
	assert.True(t, res.PrivateDataProtected)

	clk.Add(FreshnessWindow)
	assert.True(t, g.Verify(a).Valid, "exactly one hour old is still fresh")

	clk.Add(time.Millisecond)
	res = g.Verify(a)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonExpired, res.Reason)
	assert.Equal(t, clk.Now().UnixMilli(), res.Timestamp)
}

func TestVerifyIncomplete(t *testing.T) {
	g, _ := newGenerator()

	a, err := g.Generate(addr, 1000, DefaultServiceID)
	require.NoError(t, err)

	noNullifier := *a
	noNullifier.Nullifier = ""
	noCommitment := *a
	noCommitment.Commitment = ""
	noProof := *a
	noProof.Proof = nil

	for name, artifact := range map[string]*core.ProofArtifact{
		"nil":          nil,
		"no nullifier": &noNullifier,
		"no commit":    &noCommitment,
		"no proof":     &noProof,
	} {
		t.Run(name, func(t *testing.T) {
			res := g.Verify(artifact)
			assert.False(t, res.Valid)
			assert.Equal(t, ReasonIncomplete, res.Reason)
			assert.False(t, res.PrivateDataProtected)
		})
	}
}

func TestMilestone(t *testing.T) {
	m := Milestone(5, addr)

	assert.Equal(t, "Wallet2FA Login #5", m.Name)
	assert.Contains(t, m.Image, "seed="+addr)
	assert.Equal(t, "https://wallet2fa.app/user/"+addr, m.ExternalURL)
	require.Len(t, m.Attributes, 4)
	assert.Equal(t, Attribute{TraitType: "Total Logins", Value: 5}, m.Attributes[0])
	assert.Equal(t, "5 Logins", m.Attributes[1].Value)
}
