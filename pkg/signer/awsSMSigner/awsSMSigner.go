// Package awsSMSigner provides AWS Secrets Manager-based ECDSA signature functionality.
// This package implements the ISigner interface using secp256k1 private keys stored
// in AWS Secrets Manager, either as a hex string or as a go-ethereum V3 keystore JSON.
package awsSMSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signer"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// AWSSMSignerConfig holds the configuration for AWS Secrets Manager ECDSA signer.
// This configuration specifies the AWS region and secret name containing the private key.
type AWSSMSignerConfig struct {
	// Region specifies the AWS region where the secret is stored
	Region string
	// SecretName is the name of the secret in AWS Secrets Manager containing the key
	SecretName string
	// KeystorePassword decrypts the secret when it holds a V3 keystore JSON
	KeystorePassword string
}

// AWSSMSigner implements signer.ISigner using AWS Secrets Manager for key storage.
// The private key is retrieved from AWS Secrets Manager for each signature
// and is never kept in memory between operations.
type AWSSMSigner struct {
	logger  *zap.Logger
	config  *AWSSMSignerConfig
	client  secretsmanageriface.SecretsManagerAPI
	address common.Address
}

// NewAWSSMSigner creates a new AWSSMSigner instance for the configured region.
//
// Parameters:
//   - ctx: Context for the initial secret lookup
//   - cfg: The region, secret name and optional keystore password
//   - logger: A zap logger for logging operations and errors
//
// Returns:
//   - *AWSSMSigner: A new AWS Secrets Manager signer instance
//   - error: An error if the session cannot be created or the secret is unusable
func NewAWSSMSigner(ctx context.Context, cfg *AWSSMSignerConfig, logger *zap.Logger) (*AWSSMSigner, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewAWSSMSignerWithClient(ctx, cfg, secretsmanager.New(sess), logger)
}

// NewAWSSMSignerWithClient creates an AWSSMSigner over an existing Secrets Manager client.
// The secret is read once to resolve the signer address.
func NewAWSSMSignerWithClient(ctx context.Context, cfg *AWSSMSignerConfig, client secretsmanageriface.SecretsManagerAPI, logger *zap.Logger) (*AWSSMSigner, error) {
	a := &AWSSMSigner{
		logger: logger,
		config: cfg,
		client: client,
	}
	pk, err := a.getSecret(ctx)
	if err != nil {
		return nil, err
	}
	a.address = crypto.PubkeyToAddress(pk.PublicKey)

	logger.Sugar().Infow("Resolved Secrets Manager signer address",
		zap.String("secretName", cfg.SecretName),
		zap.String("address", a.address.Hex()),
	)
	return a, nil
}

// getSecret retrieves and parses the private key from AWS Secrets Manager.
func (a *AWSSMSigner) getSecret(ctx context.Context) (*ecdsa.PrivateKey, error) {
	result, err := a.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(a.config.SecretName),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get secret %s: %v", signer.ErrSigningFailed, a.config.SecretName, err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("%w: secret string is nil", signer.ErrSigningFailed)
	}

	secret := strings.TrimSpace(*result.SecretString)
	if strings.HasPrefix(secret, "{") {
		key, err := keystore.DecryptKey([]byte(secret), a.config.KeystorePassword)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decrypt keystore JSON: %v", signer.ErrSigningFailed, err)
		}
		return key.PrivateKey, nil
	}

	pk, err := crypto.HexToECDSA(strings.TrimPrefix(secret, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse private key: %v", signer.ErrSigningFailed, err)
	}
	return pk, nil
}

// GetAddress returns the address of the key held in the secret.
func (a *AWSSMSigner) GetAddress() (common.Address, error) {
	return a.address, nil
}

// SignMessage fetches the private key from AWS Secrets Manager and signs the
// digest as a personal message.
func (a *AWSSMSigner) SignMessage(ctx context.Context, data []byte) ([]byte, error) {
	if err := signer.ValidateDigest(data); err != nil {
		return nil, err
	}

	pk, err := a.getSecret(ctx)
	if err != nil {
		a.logger.Sugar().Errorw("Failed to load signing key from Secrets Manager",
			zap.String("secretName", a.config.SecretName),
			zap.Error(err),
		)
		return nil, err
	}
	if crypto.PubkeyToAddress(pk.PublicKey) != a.address {
		return nil, fmt.Errorf("%w: secret %s no longer holds key for %s", signer.ErrSigningFailed, a.config.SecretName, a.address.Hex())
	}

	pkSigner, err := signer.NewPrivateKeySignerFromKey(pk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", signer.ErrSigningFailed, err)
	}
	return pkSigner.SignMessage(ctx, data)
}
