// Package verifier checks personal-message signatures against signer addresses,
// either locally with ecrecover or through a deployed verification contract.
package verifier

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/batchSigner"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signature"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signer"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrSignatureMismatch is returned when a signature does not recover to the expected address
	ErrSignatureMismatch = errors.New("signature does not match")
)

// RecoverAddress recovers the address that signed digest as a personal message.
func RecoverAddress(digest []byte, sig *signature.Signature) (common.Address, error) {
	if err := signer.ValidateDigest(digest); err != nil {
		return common.Address{}, err
	}
	if sig.V != 27 && sig.V != 28 {
		return common.Address{}, fmt.Errorf("%w: invalid signature v byte %d", signer.ErrInvalidInput, sig.V)
	}

	raw := sig.Bytes()
	raw[64] = sig.RecoveryID()
	pubKey, err := crypto.SigToPub(accounts.TextHash(digest), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: failed to recover public key: %v", signer.ErrInvalidInput, err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// VerifySignature returns nil when sig over digest recovers to address.
func VerifySignature(address common.Address, digest []byte, sig *signature.Signature) error {
	recovered, err := RecoverAddress(digest, sig)
	if err != nil {
		return err
	}
	if recovered != address {
		return fmt.Errorf("%w: expected %s, recovered %s", ErrSignatureMismatch, address.Hex(), recovered.Hex())
	}
	return nil
}

// VerifyBatch checks every entry of the batch against its signer address.
func VerifyBatch(batch *batchSigner.SignatureBatch) error {
	for i := 0; i < batch.Len(); i++ {
		if err := VerifySignature(batch.Signers[i], batch.Digest, batch.Signature(i)); err != nil {
			return fmt.Errorf("signature %d: %w", i, err)
		}
	}
	return nil
}
