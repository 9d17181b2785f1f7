// Package signer provides ECDSA identity providers for batch signing.
// This package defines the ISigner capability interface and implementations
// backed by raw private keys, go-ethereum keystores and AWS KMS. Every
// implementation signs a 32-byte digest as an Ethereum personal message,
// producing signatures that Solidity's ecrecover accepts.
package signer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
)

// DigestLength is the only digest size accepted by the signers.
const DigestLength = common.HashLength

var (
	// ErrSigningFailed is returned when an identity cannot produce a signature
	ErrSigningFailed = errors.New("signing failed")
	// ErrInvalidInput is returned when a digest or signature blob is malformed
	ErrInvalidInput = errors.New("invalid input")
)

// ISigner defines the interface for an identity that can sign digests.
// Implementations resolve their Ethereum address and produce 65-byte
// [R || S || V] signatures over the EIP-191 personal message hash of the data.
type ISigner interface {
	// GetAddress returns the Ethereum address associated with this signer.
	//
	// Returns:
	//   - common.Address: The Ethereum address of the signer
	//   - error: An error wrapping ErrSigningFailed if the address cannot be determined
	GetAddress() (common.Address, error)

	// SignMessage signs data as an Ethereum personal message.
	//
	// Parameters:
	//   - ctx: Context for the signing operation
	//   - data: The 32-byte digest to sign
	//
	// Returns:
	//   - []byte: The 65-byte signature with V in {27, 28}
	//   - error: ErrInvalidInput for a malformed digest, ErrSigningFailed otherwise
	SignMessage(ctx context.Context, data []byte) ([]byte, error)
}

// personalMessageHash validates the digest length and returns the EIP-191 hash
// keccak256("\x19Ethereum Signed Message:\n32" || digest).
func personalMessageHash(data []byte) ([]byte, error) {
	if err := ValidateDigest(data); err != nil {
		return nil, err
	}
	return accounts.TextHash(data), nil
}

// ValidateDigest reports ErrInvalidInput unless data is exactly DigestLength bytes
func ValidateDigest(data []byte) error {
	if len(data) != DigestLength {
		return fmt.Errorf("%w: digest must be %d bytes, got %d", ErrInvalidInput, DigestLength, len(data))
	}
	return nil
}

// toEthereumV lifts a raw recovery id (0 or 1) to the 27/28 form returned by wallets.
func toEthereumV(signature []byte) []byte {
	if signature[64] < 27 {
		signature[64] += 27
	}
	return signature
}
