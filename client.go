// Package wallet2fa is a Go client for the Wallet2FA sign-in service.
//
// A typical sign-in with a local key:
//
//	c := wallet2fa.NewClient("https://auth.example.com")
//	res, err := c.SignIn(ctx, key)
//	...
//	profile, err := c.Profile(ctx, res.Token)
package wallet2fa

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/layer-3/wallet2fa/core"
	"github.com/layer-3/wallet2fa/internal/eth"
	"github.com/layer-3/wallet2fa/internal/siwe"
)

const (
	DefaultStatement = "Sign in with Ethereum to Wallet2FA"
	DefaultChainID   = 1
	defaultTimeout   = 10 * time.Second
)

// SignInResult is the server's answer to a verified challenge
type SignInResult struct {
	Success      bool              `json:"success"`
	Token        string            `json:"token"`
	Address      string            `json:"address"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	ProofSummary core.ProofSummary `json:"proofSummary"`
	Message      string            `json:"message"`
	Degraded     bool              `json:"degraded"`
}

// Profile is a wallet's recent sign-in history
type Profile struct {
	Address       string                       `json:"address"`
	Authenticated bool                         `json:"authenticated"`
	TotalLogins   int                          `json:"totalLogins"`
	LastLogin     *time.Time                   `json:"lastLogin"`
	RecentLogins  []*core.AuthenticationRecord `json:"recentLogins"`
}

// Client talks to a Wallet2FA server over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	clock      clock.Clock

	domain    string
	uri       string
	statement string
	chainID   int64
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock sets the clock used for the challenge issued-at time
func WithClock(clk clock.Clock) ClientOption {
	return func(c *Client) { c.clock = clk }
}

// WithDomain sets the domain and URI the challenge is bound to.
// Both default to the server's base URL.
func WithDomain(domain, uri string) ClientOption {
	return func(c *Client) {
		c.domain = domain
		c.uri = uri
	}
}

func WithStatement(statement string) ClientOption {
	return func(c *Client) { c.statement = statement }
}

func WithChainID(chainID int64) ClientOption {
	return func(c *Client) { c.chainID = chainID }
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		clock:      clock.New(),
		uri:        baseURL,
		statement:  DefaultStatement,
		chainID:    DefaultChainID,
	}
	if u, err := url.Parse(baseURL); err == nil {
		c.domain = u.Host
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestNonce asks the server for a challenge nonce bound to address
func (c *Client) RequestNonce(ctx context.Context, address string) (string, error) {
	var out struct {
		Nonce string `json:"nonce"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/nonce", "", map[string]string{"address": address}, &out); err != nil {
		return "", err
	}
	return out.Nonce, nil
}

// Verify submits a signed challenge message
func (c *Client) Verify(ctx context.Context, message, signature, address string) (*SignInResult, error) {
	req := map[string]string{
		"message":   message,
		"signature": signature,
		"address":   address,
	}
	var out SignInResult
	if err := c.do(ctx, http.MethodPost, "/auth/verify", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignIn requests a nonce for the key's address, signs the challenge and verifies it
func (c *Client) SignIn(ctx context.Context, key *ecdsa.PrivateKey) (*SignInResult, error) {
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	nonce, err := c.RequestNonce(ctx, address)
	if err != nil {
		return nil, err
	}

	msg := siwe.New(c.domain, address, c.statement, c.uri, c.chainID, nonce, c.clock.Now())
	signature, err := eth.SignMessage(key, msg.String())
	if err != nil {
		return nil, errors.Wrap(err, "signing challenge")
	}

	return c.Verify(ctx, msg.String(), signature, address)
}

// Profile fetches the sign-in history of the token's owner
func (c *Client) Profile(ctx context.Context, token string) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, "/user/profile", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}

	if resp.StatusCode/100 != 2 {
		return apiError(resp.StatusCode, raw)
	}

	return errors.Wrap(json.Unmarshal(raw, out), "decoding response")
}

func apiError(status int, raw []byte) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)

	e := &APIError{StatusCode: status, Message: body.Error}
	if e.Message == "" {
		e.Message = body.Message
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	switch status {
	case http.StatusUnauthorized:
		e.err = ErrUnauthorized
	case http.StatusTooManyRequests:
		e.err = ErrRateLimited
	case http.StatusServiceUnavailable:
		e.err = ErrUnavailable
	}
	return e
}
