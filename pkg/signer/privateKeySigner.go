package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKeySigner implements ISigner using a raw private key
type PrivateKeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewPrivateKeySigner creates a new PrivateKeySigner from a hex-encoded private key
func NewPrivateKeySigner(privateKeyHex string) (*PrivateKeySigner, error) {
	// Remove 0x prefix if present
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewPrivateKeySignerFromKey(privateKey)
}

// NewPrivateKeySignerFromKey wraps an already parsed secp256k1 private key
func NewPrivateKeySignerFromKey(privateKey *ecdsa.PrivateKey) (*PrivateKeySigner, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	return &PrivateKeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// GeneratePrivateKeySigner creates a PrivateKeySigner with a fresh random key
func GeneratePrivateKeySigner() (*PrivateKeySigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return NewPrivateKeySignerFromKey(privateKey)
}

// GetAddress returns the address associated with this private key
func (p *PrivateKeySigner) GetAddress() (common.Address, error) {
	return p.address, nil
}

// SignMessage signs the digest as a personal message with the private key
func (p *PrivateKeySigner) SignMessage(_ context.Context, data []byte) ([]byte, error) {
	hash, err := personalMessageHash(data)
	if err != nil {
		return nil, err
	}
	signature, err := crypto.Sign(hash, p.privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return toEthereumV(signature), nil
}
