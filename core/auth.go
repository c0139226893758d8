package core

import "time"

// NonceRecord is a live challenge nonce held for a wallet address
type NonceRecord struct {
	Address  string    // Lowercased wallet address the nonce was issued to
	Nonce    string    // Random hex token the wallet must sign
	IssuedAt time.Time // When the nonce was issued
}

// ExpiredAt reports whether the record is no longer valid at now for the given TTL
func (r NonceRecord) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return !now.Before(r.IssuedAt.Add(ttl))
}

// Session represents an authenticated wallet session carried by a bearer token
type Session struct {
	ID        string    // Unique session identifier (token jti)
	Address   string    // Lowercased wallet address
	Verified  bool      // Always true for tokens minted after signature verification
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the token stops being accepted
}

// AuthenticationRecord is one successful sign-in as persisted by the ledger
type AuthenticationRecord struct {
	ID        string         `json:"id"`
	Address   string         `json:"address"`
	Timestamp time.Time      `json:"timestamp"`
	Proof     *ProofArtifact `json:"proof"`
	Verified  bool           `json:"verified"`
}

// ProofSummary is the part of a proof artifact returned to the client after sign-in
type ProofSummary struct {
	Commitment string `json:"commitment"`
	Nullifier  string `json:"nullifier"`
	Type       string `json:"type"`
}
