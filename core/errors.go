package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedChallenge    = errors.New("malformed challenge")
	ErrInvalidChallenge      = errors.New("invalid challenge")
	ErrInvalidSignature      = errors.New("invalid signature")
	ErrAddressMismatch       = fmt.Errorf("%w: address mismatch", ErrInvalidSignature)
	ErrInvalidOrExpiredNonce = errors.New("invalid or expired nonce")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrLedgerUnavailable     = errors.New("ledger unavailable")
)

// ValidationError reports required request fields that were missing
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field(s): %s", strings.Join(e.Fields, ", "))
}
