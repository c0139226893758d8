// Package siwe encodes and decodes EIP-4361 "Sign-In with Ethereum" messages.
package siwe

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/layer-3/wallet2fa/core"
)

const (
	Version = "1"

	headerSuffix  = " wants you to sign in with your Ethereum account:"
	uriTag        = "URI: "
	versionTag    = "Version: "
	chainIDTag    = "Chain ID: "
	nonceTag      = "Nonce: "
	issuedAtTag   = "Issued At: "
	expirationTag = "Expiration Time: "
	notBeforeTag  = "Not Before: "
	requestIDTag  = "Request ID: "
	resourcesTag  = "Resources:"
	resourceItem  = "- "

	minNonceLength = 8
)

// Message is a parsed sign-in challenge
type Message struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
	RequestID      string
	Resources      []string

	// text the message was decoded from, if any
	raw string
}

// New builds a version 1 message with the required fields set
func New(domain, address, statement, uri string, chainID int64, nonce string, issuedAt time.Time) *Message {
	return &Message{
		Domain:    domain,
		Address:   address,
		Statement: statement,
		URI:       uri,
		Version:   Version,
		ChainID:   chainID,
		Nonce:     nonce,
		IssuedAt:  issuedAt,
	}
}

// String returns the text a wallet signs. For a decoded message this is the
// text it was decoded from, byte for byte.
func (m *Message) String() string {
	if m.raw != "" {
		return m.raw
	}
	return Encode(m)
}

// Encode serializes the message in canonical EIP-4361 form
func Encode(m *Message) string {
	var b strings.Builder

	b.WriteString(m.Domain + headerSuffix + "\n")
	b.WriteString(m.Address + "\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement + "\n")
	}
	b.WriteString("\n")

	b.WriteString(uriTag + m.URI + "\n")
	b.WriteString(versionTag + m.Version + "\n")
	b.WriteString(chainIDTag + strconv.FormatInt(m.ChainID, 10) + "\n")
	b.WriteString(nonceTag + m.Nonce + "\n")
	b.WriteString(issuedAtTag + formatTime(m.IssuedAt))

	if m.ExpirationTime != nil {
		b.WriteString("\n" + expirationTag + formatTime(*m.ExpirationTime))
	}
	if m.NotBefore != nil {
		b.WriteString("\n" + notBeforeTag + formatTime(*m.NotBefore))
	}
	if m.RequestID != "" {
		b.WriteString("\n" + requestIDTag + m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\n" + resourcesTag)
		for _, r := range m.Resources {
			b.WriteString("\n" + resourceItem + r)
		}
	}

	return b.String()
}

// Decode parses raw into a Message. Every failure wraps core.ErrMalformedChallenge.
func Decode(raw string) (*Message, error) {
	p := &parser{lines: strings.Split(raw, "\n")}
	m := &Message{raw: raw}

	header := p.next()
	if !strings.HasSuffix(header, headerSuffix) {
		return nil, malformed("missing header")
	}
	m.Domain = strings.TrimSuffix(header, headerSuffix)
	if m.Domain == "" || strings.ContainsAny(m.Domain, " \t") {
		return nil, malformed("invalid domain")
	}

	m.Address = p.next()
	if err := checkAddress(m.Address); err != nil {
		return nil, err
	}

	if p.next() != "" {
		return nil, malformed("expected blank line after address")
	}
	if line := p.peek(); line != "" && !strings.HasPrefix(line, uriTag) {
		m.Statement = p.next()
	}
	if p.next() != "" {
		return nil, malformed("expected blank line after statement")
	}

	var err error
	if m.URI, err = p.field(uriTag); err != nil {
		return nil, err
	}
	if u, perr := url.Parse(m.URI); perr != nil || u.Scheme == "" {
		return nil, malformed("invalid uri")
	}

	if m.Version, err = p.field(versionTag); err != nil {
		return nil, err
	}
	if m.Version != Version {
		return nil, malformed("unsupported version " + m.Version)
	}

	chainID, err := p.field(chainIDTag)
	if err != nil {
		return nil, err
	}
	if m.ChainID, err = strconv.ParseInt(chainID, 10, 64); err != nil || m.ChainID <= 0 {
		return nil, malformed("invalid chain id")
	}

	if m.Nonce, err = p.field(nonceTag); err != nil {
		return nil, err
	}
	if err := checkNonce(m.Nonce); err != nil {
		return nil, err
	}

	issuedAt, err := p.field(issuedAtTag)
	if err != nil {
		return nil, err
	}
	if m.IssuedAt, err = parseTime(issuedAt); err != nil {
		return nil, malformed("invalid issued at")
	}

	if v, ok := p.optional(expirationTag); ok {
		t, err := parseTime(v)
		if err != nil {
			return nil, malformed("invalid expiration time")
		}
		m.ExpirationTime = &t
	}
	if v, ok := p.optional(notBeforeTag); ok {
		t, err := parseTime(v)
		if err != nil {
			return nil, malformed("invalid not before")
		}
		m.NotBefore = &t
	}
	if v, ok := p.optional(requestIDTag); ok {
		m.RequestID = v
	}
	if p.peek() == resourcesTag {
		p.next()
		for strings.HasPrefix(p.peek(), resourceItem) {
			m.Resources = append(m.Resources, strings.TrimPrefix(p.next(), resourceItem))
		}
		if len(m.Resources) == 0 {
			return nil, malformed("empty resources")
		}
	}

	// a single trailing newline is tolerated
	if p.remaining() == 1 && p.peek() == "" {
		p.next()
	}
	if p.remaining() > 0 {
		return nil, malformed("unexpected trailing content")
	}

	return m, nil
}

// Validate checks the message against the verifier's clock and expected domain.
// An empty domain skips the domain check.
func (m *Message) Validate(now time.Time, domain string) error {
	if m.ExpirationTime != nil && !now.Before(*m.ExpirationTime) {
		return fmt.Errorf("%w: message expired", core.ErrInvalidChallenge)
	}
	if m.NotBefore != nil && now.Before(*m.NotBefore) {
		return fmt.Errorf("%w: message not yet valid", core.ErrInvalidChallenge)
	}
	if domain != "" && !strings.EqualFold(m.Domain, domain) {
		return fmt.Errorf("%w: domain %q not accepted", core.ErrInvalidChallenge, m.Domain)
	}
	return nil
}

type parser struct {
	lines []string
	pos   int
}

func (p *parser) remaining() int {
	return len(p.lines) - p.pos
}

func (p *parser) peek() string {
	if p.pos >= len(p.lines) {
		return ""
	}
	return p.lines[p.pos]
}

func (p *parser) next() string {
	line := p.peek()
	p.pos++
	return line
}

func (p *parser) field(tag string) (string, error) {
	if p.remaining() <= 0 || !strings.HasPrefix(p.peek(), tag) {
		return "", malformed("missing " + strings.TrimSuffix(tag, ": "))
	}
	v := strings.TrimPrefix(p.next(), tag)
	if v == "" {
		return "", malformed("empty " + strings.TrimSuffix(tag, ": "))
	}
	return v, nil
}

func (p *parser) optional(tag string) (string, bool) {
	if p.remaining() <= 0 || !strings.HasPrefix(p.peek(), tag) {
		return "", false
	}
	return strings.TrimPrefix(p.next(), tag), true
}

func checkAddress(address string) error {
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return malformed("invalid address")
	}
	// mixed case must be a valid EIP-55 checksum
	body := address[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) &&
		common.HexToAddress(address).Hex() != address {
		return malformed("address checksum mismatch")
	}
	return nil
}

func checkNonce(nonce string) error {
	if len(nonce) < minNonceLength {
		return malformed("nonce too short")
	}
	if _, err := hex.DecodeString(nonce); err != nil {
		return malformed("nonce is not hex")
	}
	return nil
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", core.ErrMalformedChallenge, reason)
}
