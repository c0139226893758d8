package tokenizer

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/wallet2fa/core"
)

const addr = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"

func newTokenizer(t *testing.T) (*JWTTokenizer, *clock.Mock) {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	return NewJWTTokenizer(key, "wallet2fa", clk), clk
}

func session(clk clock.Clock) *core.Session {
	now := clk.Now()
	return &core.Session{
		ID:        "session-1",
		Address:   addr,
		Verified:  true,
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	tk, clk := newTokenizer(t)
	s := session(clk)

	token, err := tk.SessionToToken(s)
	require.NoError(t, err)

	got, err := tk.TokenToSession(token)
	require.NoError(t, err)
	assert.Equal(t, addr, got.Address)
	assert.True(t, got.Verified)
	assert.Equal(t, "session-1", got.ID)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))
}

func TestClaimsCarryAddressAndVerified(t *testing.T) {
	tk, clk := newTokenizer(t)

	token, err := tk.SessionToToken(session(clk))
	require.NoError(t, err)

	claims := &SessionClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, addr, claims.Address)
	assert.True(t, claims.Verified)
	assert.Equal(t, jwt.ClaimStrings{AudienceAccess}, claims.Audience)
}

func TestExpiredTokenRejected(t *testing.T) {
	tk, clk := newTokenizer(t)

	token, err := tk.SessionToToken(session(clk))
	require.NoError(t, err)

	clk.Add(24*time.Hour + time.Second)
	_, err = tk.TokenToSession(token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestForeignKeyRejected(t *testing.T) {
	tk, clk := newTokenizer(t)
	other, _ := newTokenizer(t)

	token, err := other.SessionToToken(session(clk))
	require.NoError(t, err)

	_, err = tk.TokenToSession(token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestTamperedAndGarbageRejected(t *testing.T) {
	tk, clk := newTokenizer(t)

	token, err := tk.SessionToToken(session(clk))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":  "not-a-token",
		"empty":    "",
		"tampered": token[:len(token)-4] + "AAAA",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tk.TokenToSession(tok)
			assert.ErrorIs(t, err, core.ErrUnauthorized)
		})
	}
}

func TestHMACTokenRejected(t *testing.T) {
	tk, clk := newTokenizer(t)
	s := session(clk)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "wallet2fa",
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		Address:  addr,
		Verified: true,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = tk.TokenToSession(token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestUnverifiedSessionRejected(t *testing.T) {
	tk, clk := newTokenizer(t)
	s := session(clk)
	s.Verified = false

	token, err := tk.SessionToToken(s)
	require.NoError(t, err)

	_, err = tk.TokenToSession(token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestLoadKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "session.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), 0o600))

	loaded, err := LoadKey(path)
	require.NoError(t, err)
	assert.True(t, key.Equal(loaded))

	_, err = LoadKey(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}
