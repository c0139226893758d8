// Package eth verifies wallet signatures over personal_sign (EIP-191) messages.
package eth

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/layer-3/wallet2fa/core"
	"github.com/layer-3/wallet2fa/internal/siwe"
)

// RecoverAddress returns the address whose key produced signature over message.
// The signature is 0x-prefixed hex of 65 bytes with V in {0, 1, 27, 28}.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes: %w", core.ErrInvalidSignature)
	}

	switch sig[crypto.RecoveryIDOffset] {
	case 0, 1:
	case 27, 28:
		sig[crypto.RecoveryIDOffset] -= 27
	default:
		return common.Address{}, fmt.Errorf("invalid recovery id: %w", core.ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", core.ErrInvalidSignature)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// Verify recovers the signer of msg and checks it against the address the
// message claims. The recovered address is authoritative.
func Verify(msg *siwe.Message, signature string) (common.Address, error) {
	signer, err := RecoverAddress(msg.String(), signature)
	if err != nil {
		return common.Address{}, err
	}

	if !SameAddress(signer.Hex(), msg.Address) {
		return common.Address{}, core.ErrAddressMismatch
	}

	return signer, nil
}

// SignMessage signs message the way a wallet's personal_sign does, with V of 27 or 28
func SignMessage(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// SameAddress compares two hex addresses ignoring case
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
