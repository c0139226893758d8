package wallet2fa

import (
	"context"
	"crypto/ecdsa"
)

// Authenticator is the client side of the wallet sign-in flow
type Authenticator interface {
	// RequestNonce asks the server for a challenge nonce bound to address
	RequestNonce(ctx context.Context, address string) (string, error)

	// Verify submits a signed challenge message and returns the session
	Verify(ctx context.Context, message, signature, address string) (*SignInResult, error)

	// SignIn runs the whole flow with a local wallet key
	SignIn(ctx context.Context, key *ecdsa.PrivateKey) (*SignInResult, error)

	// Profile fetches the sign-in history of the token's owner
	Profile(ctx context.Context, token string) (*Profile, error)
}

var _ Authenticator = (*Client)(nil)
