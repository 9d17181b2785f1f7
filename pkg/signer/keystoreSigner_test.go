package signer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestKeystore(t *testing.T, passphrase string) (*keystore.KeyStore, common.Address) {
	t.Helper()
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	pk, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	account, err := ks.ImportECDSA(pk, passphrase)
	require.NoError(t, err)
	return ks, account.Address
}

func TestKeystoreSigner_SignMessage(t *testing.T) {
	ks, addr := setupTestKeystore(t, "secret")
	logger, _ := zap.NewDevelopment()

	s, err := NewKeystoreSignerWithKeyStore(ks, addr, "secret", logger)
	require.NoError(t, err)

	got, err := s.GetAddress()
	require.NoError(t, err)
	assert.Equal(t, testAddress, got)

	digest := crypto.Keccak256([]byte("hello"))
	sig, err := s.SignMessage(context.Background(), digest)
	require.NoError(t, err)
	assert.Equal(t, testAddress, recoverSigner(t, digest, sig))
}

func TestKeystoreSigner_WrongPassphrase(t *testing.T) {
	ks, addr := setupTestKeystore(t, "secret")
	logger, _ := zap.NewDevelopment()

	s, err := NewKeystoreSignerWithKeyStore(ks, addr, "wrong", logger)
	require.NoError(t, err)

	sig, err := s.SignMessage(context.Background(), crypto.Keccak256([]byte("hello")))
	assert.ErrorIs(t, err, ErrSigningFailed)
	assert.Nil(t, sig)
}

func TestKeystoreSigner_InvalidDigest(t *testing.T) {
	ks, addr := setupTestKeystore(t, "secret")
	logger, _ := zap.NewDevelopment()

	s, err := NewKeystoreSignerWithKeyStore(ks, addr, "secret", logger)
	require.NoError(t, err)

	_, err = s.SignMessage(context.Background(), []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewKeystoreSigner_UnknownAccount(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	_, err := NewKeystoreSigner(&KeystoreSignerConfig{
		Directory: t.TempDir(),
		Address:   testAddress,
	}, logger)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find account")
}
