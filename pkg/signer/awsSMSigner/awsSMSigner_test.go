package awsSMSigner

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signer"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	otherKey       = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

var testAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type fakeSecretsManager struct {
	secretsmanageriface.SecretsManagerAPI
	secret *string
	err    error
	calls  int
}

func (f *fakeSecretsManager) GetSecretValueWithContext(_ aws.Context, in *secretsmanager.GetSecretValueInput, _ ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         in.SecretId,
		SecretString: f.secret,
	}, nil
}

func testConfig() *AWSSMSignerConfig {
	return &AWSSMSignerConfig{
		Region:           "us-east-1",
		SecretName:       "signers/alice",
		KeystorePassword: "secret",
	}
}

func recoverSigner(t *testing.T, digest, sig []byte) common.Address {
	t.Helper()
	require.Len(t, sig, 65)
	raw := append([]byte{}, sig...)
	raw[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash(digest), raw)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(*pub)
}

func keystoreJSON(t *testing.T, hexKey, password string) string {
	t.Helper()
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	pk, err := crypto.HexToECDSA(hexKey)
	require.NoError(t, err)
	account, err := ks.ImportECDSA(pk, password)
	require.NoError(t, err)
	raw, err := os.ReadFile(account.URL.Path)
	require.NoError(t, err)
	return string(raw)
}

func TestAWSSMSigner_HexSecret(t *testing.T) {
	fake := &fakeSecretsManager{secret: aws.String(testPrivateKey + "\n")}
	logger, _ := zap.NewDevelopment()

	s, err := NewAWSSMSignerWithClient(context.Background(), testConfig(), fake, logger)
	require.NoError(t, err)

	addr, err := s.GetAddress()
	require.NoError(t, err)
	assert.Equal(t, testAddress, addr)

	digest := crypto.Keccak256([]byte("hello"))
	sig, err := s.SignMessage(context.Background(), digest)
	require.NoError(t, err)
	assert.Equal(t, testAddress, recoverSigner(t, digest, sig))
}

func TestAWSSMSigner_KeystoreSecret(t *testing.T) {
	fake := &fakeSecretsManager{secret: aws.String(keystoreJSON(t, testPrivateKey[2:], "secret"))}
	logger, _ := zap.NewDevelopment()

	s, err := NewAWSSMSignerWithClient(context.Background(), testConfig(), fake, logger)
	require.NoError(t, err)

	addr, _ := s.GetAddress()
	assert.Equal(t, testAddress, addr)

	digest := crypto.Keccak256([]byte("hello"))
	sig, err := s.SignMessage(context.Background(), digest)
	require.NoError(t, err)
	assert.Equal(t, testAddress, recoverSigner(t, digest, sig))
}

func TestAWSSMSigner_KeystoreSecretWrongPassword(t *testing.T) {
	fake := &fakeSecretsManager{secret: aws.String(keystoreJSON(t, otherKey, "other"))}
	logger, _ := zap.NewDevelopment()

	_, err := NewAWSSMSignerWithClient(context.Background(), testConfig(), fake, logger)
	assert.ErrorIs(t, err, signer.ErrSigningFailed)
}

func TestAWSSMSigner_FetchesSecretForEverySignature(t *testing.T) {
	fake := &fakeSecretsManager{secret: aws.String(testPrivateKey)}
	logger, _ := zap.NewDevelopment()

	s, err := NewAWSSMSignerWithClient(context.Background(), testConfig(), fake, logger)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	digest := crypto.Keccak256([]byte("hello"))
	for i := 0; i < 3; i++ {
		_, err := s.SignMessage(context.Background(), digest)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, fake.calls)
}

func TestAWSSMSigner_InvalidDigestSkipsFetch(t *testing.T) {
	fake := &fakeSecretsManager{secret: aws.String(testPrivateKey)}
	logger, _ := zap.NewDevelopment()

	s, err := NewAWSSMSignerWithClient(context.Background(), testConfig(), fake, logger)
	require.NoError(t, err)

	_, err = s.SignMessage(context.Background(), []byte("short"))
	assert.ErrorIs(t, err, signer.ErrInvalidInput)
	assert.Equal(t, 1, fake.calls)
}

func TestAWSSMSigner_SigningErrors(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	digest := crypto.Keccak256([]byte("hello"))

	t.Run("secret unavailable", func(t *testing.T) {
		fake := &fakeSecretsManager{secret: aws.String(testPrivateKey)}
		s, err := NewAWSSMSignerWithClient(context.Background(), testConfig(), fake, logger)
		require.NoError(t, err)

		fake.err = errors.New("access denied")
		_, err = s.SignMessage(context.Background(), digest)
		assert.ErrorIs(t, err, signer.ErrSigningFailed)
		assert.Contains(t, err.Error(), "access denied")
	})

	t.Run("secret rotated to another key", func(t *testing.T) {
		fake := &fakeSecretsManager{secret: aws.String(testPrivateKey)}
		s, err := NewAWSSMSignerWithClient(context.Background(), testConfig(), fake, logger)
		require.NoError(t, err)

		fake.secret = aws.String(otherKey)
		_, err = s.SignMessage(context.Background(), digest)
		assert.ErrorIs(t, err, signer.ErrSigningFailed)
	})

	t.Run("nil secret string", func(t *testing.T) {
		fake := &fakeSecretsManager{}
		_, err := NewAWSSMSignerWithClient(context.Background(), testConfig(), fake, logger)
		assert.ErrorIs(t, err, signer.ErrSigningFailed)
	})

	t.Run("garbage secret", func(t *testing.T) {
		fake := &fakeSecretsManager{secret: aws.String("not a key")}
		_, err := NewAWSSMSignerWithClient(context.Background(), testConfig(), fake, logger)
		assert.ErrorIs(t, err, signer.ErrSigningFailed)
	})
}
