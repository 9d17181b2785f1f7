package signer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// KeystoreSignerConfig holds the configuration for a keystore backed signer.
type KeystoreSignerConfig struct {
	// Directory containing go-ethereum V3 keystore files
	Directory string
	// Address selects the account inside the keystore
	Address common.Address
	// Passphrase unlocks the account for each signature
	Passphrase string
}

// KeystoreSigner implements ISigner using an encrypted go-ethereum keystore.
// The key is decrypted for every signature and never held unlocked.
type KeystoreSigner struct {
	keyStore   *keystore.KeyStore
	account    accounts.Account
	passphrase string
	logger     *zap.Logger
}

// NewKeystoreSigner opens the keystore directory and resolves the configured account.
//
// Parameters:
//   - cfg: The keystore directory, account address and passphrase
//   - l: A zap logger
//
// Returns:
//   - *KeystoreSigner: A signer bound to the account
//   - error: An error if the account is not present in the keystore
func NewKeystoreSigner(cfg *KeystoreSignerConfig, l *zap.Logger) (*KeystoreSigner, error) {
	ks := keystore.NewKeyStore(cfg.Directory, keystore.StandardScryptN, keystore.StandardScryptP)
	return NewKeystoreSignerWithKeyStore(ks, cfg.Address, cfg.Passphrase, l)
}

// NewKeystoreSignerWithKeyStore binds a signer to an account of an existing keystore.
func NewKeystoreSignerWithKeyStore(ks *keystore.KeyStore, address common.Address, passphrase string, l *zap.Logger) (*KeystoreSigner, error) {
	account, err := ks.Find(accounts.Account{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to find account %s in keystore: %w", address.Hex(), err)
	}
	l.Sugar().Debugw("Resolved keystore account",
		zap.String("address", account.Address.Hex()),
		zap.String("url", account.URL.String()),
	)
	return &KeystoreSigner{
		keyStore:   ks,
		account:    account,
		passphrase: passphrase,
		logger:     l,
	}, nil
}

// GetAddress returns the keystore account address
func (k *KeystoreSigner) GetAddress() (common.Address, error) {
	return k.account.Address, nil
}

// SignMessage decrypts the account key and signs the digest as a personal message
func (k *KeystoreSigner) SignMessage(_ context.Context, data []byte) ([]byte, error) {
	hash, err := personalMessageHash(data)
	if err != nil {
		return nil, err
	}
	signature, err := k.keyStore.SignHashWithPassphrase(k.account, k.passphrase, hash)
	if err != nil {
		k.logger.Sugar().Errorw("Failed to sign with keystore account",
			zap.String("address", k.account.Address.Hex()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: keystore account %s: %v", ErrSigningFailed, k.account.Address.Hex(), err)
	}
	return toEthereumV(signature), nil
}
