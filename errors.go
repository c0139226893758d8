package wallet2fa

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the server rejects a signature, nonce or session token
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited is returned when the server throttles the caller
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable is returned when the server cannot read its ledger
	ErrUnavailable = errors.New("service unavailable")
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
	err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wallet2fa: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}
