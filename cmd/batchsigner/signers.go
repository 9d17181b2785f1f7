package main

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signer"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signer/awsSMSigner"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func signerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "private-key",
			Usage:   "Private key of a signer (hex format, with or without 0x prefix); repeatable",
			EnvVars: []string{"PRIVATE_KEYS"},
		},
		&cli.StringFlag{
			Name:    "keystore-dir",
			Usage:   "Directory of go-ethereum V3 keystore files",
			EnvVars: []string{"KEYSTORE_DIR"},
		},
		&cli.StringSliceFlag{
			Name:    "keystore-address",
			Usage:   "Address of a keystore account to sign with; repeatable",
			EnvVars: []string{"KEYSTORE_ADDRESSES"},
		},
		&cli.StringFlag{
			Name:    "keystore-password",
			Usage:   "Passphrase for the keystore accounts",
			EnvVars: []string{"KEYSTORE_PASSWORD"},
		},
		&cli.StringSliceFlag{
			Name:    "aws-kms-key-id",
			Usage:   "AWS KMS ECC_SECG_P256K1 key ID of a signer; repeatable",
			EnvVars: []string{"AWS_KMS_KEY_IDS"},
		},
		&cli.StringSliceFlag{
			Name:    "aws-secret-name",
			Usage:   "AWS Secrets Manager secret holding a signer key; repeatable",
			EnvVars: []string{"AWS_SECRET_NAMES"},
		},
		&cli.StringFlag{
			Name:    "aws-secret-password",
			Usage:   "Password for secrets that hold a V3 keystore JSON",
			EnvVars: []string{"AWS_SECRET_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region for KMS keys and secrets",
			Value:   "us-east-1",
			EnvVars: []string{"AWS_REGION"},
		},
	}
}

func validateSignFlags(c *cli.Context) error {
	if c.String("digest") == "" && c.String("message") == "" {
		return fmt.Errorf("must specify either --digest or --message")
	}
	if c.String("digest") != "" && c.String("message") != "" {
		return fmt.Errorf("cannot specify both --digest and --message")
	}
	if len(c.StringSlice("keystore-address")) > 0 && c.String("keystore-dir") == "" {
		return fmt.Errorf("--keystore-address requires --keystore-dir")
	}
	if c.Int("concurrency") < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}

	total := len(c.StringSlice("private-key")) +
		len(c.StringSlice("keystore-address")) +
		len(c.StringSlice("aws-kms-key-id")) +
		len(c.StringSlice("aws-secret-name"))
	if total == 0 {
		return fmt.Errorf("must specify at least one signer via --private-key, --keystore-address, --aws-kms-key-id or --aws-secret-name")
	}
	return nil
}

// setupSigners builds the signers in a fixed order: private keys, keystore
// accounts, KMS keys, then secrets, each in flag order.
func setupSigners(ctx context.Context, c *cli.Context, l *zap.Logger) ([]signer.ISigner, error) {
	var signers []signer.ISigner

	pkSigners, err := util.MapErr(c.StringSlice("private-key"), func(key string, i uint64) (signer.ISigner, error) {
		s, err := signer.NewPrivateKeySigner(key)
		if err != nil {
			return nil, fmt.Errorf("private key %d: %w", i, err)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	signers = append(signers, pkSigners...)

	for _, addr := range c.StringSlice("keystore-address") {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid keystore address: %s", addr)
		}
		s, err := signer.NewKeystoreSigner(&signer.KeystoreSignerConfig{
			Directory:  c.String("keystore-dir"),
			Address:    common.HexToAddress(addr),
			Passphrase: c.String("keystore-password"),
		}, l)
		if err != nil {
			return nil, err
		}
		signers = append(signers, s)
	}

	region := c.String("aws-region")
	for _, keyID := range c.StringSlice("aws-kms-key-id") {
		s, err := signer.NewAWSKMSSigner(ctx, keyID, region, l)
		if err != nil {
			return nil, fmt.Errorf("KMS key %s: %w", keyID, err)
		}
		signers = append(signers, s)
	}

	for _, secretName := range c.StringSlice("aws-secret-name") {
		s, err := awsSMSigner.NewAWSSMSigner(ctx, &awsSMSigner.AWSSMSignerConfig{
			Region:           region,
			SecretName:       secretName,
			KeystorePassword: c.String("aws-secret-password"),
		}, l)
		if err != nil {
			return nil, fmt.Errorf("secret %s: %w", secretName, err)
		}
		signers = append(signers, s)
	}

	return signers, nil
}
