package signer

import (
	"context"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

var (
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// subjectPublicKeyInfo is the DER structure returned by kms:GetPublicKey
type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// ecdsaSignature is the DER structure returned by kms:Sign
type ecdsaSignature struct {
	R, S *big.Int
}

// AWSKMSSigner implements ISigner using an AWS KMS ECC_SECG_P256K1 key
type AWSKMSSigner struct {
	kmsClient kmsiface.KMSAPI
	keyID     string
	address   common.Address
	logger    *zap.Logger
}

// NewAWSKMSSigner creates a new AWSKMSSigner with the specified KMS key ID and AWS region.
// This constructor establishes a connection to AWS KMS and derives the Ethereum address
// from the public key associated with the specified KMS key.
//
// Parameters:
//   - ctx: Context for the public key lookup
//   - keyID: The AWS KMS key ID or ARN for signing operations
//   - region: The AWS region where the KMS key is located
//   - l: A zap logger
//
// Returns:
//   - *AWSKMSSigner: A new AWS KMS signer instance
//   - error: An error if the AWS session cannot be created or the key is invalid
func NewAWSKMSSigner(ctx context.Context, keyID, region string, l *zap.Logger) (*AWSKMSSigner, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewAWSKMSSignerWithClient(ctx, kms.New(sess), keyID, l)
}

// NewAWSKMSSignerWithClient creates an AWSKMSSigner over an existing KMS client.
func NewAWSKMSSignerWithClient(ctx context.Context, client kmsiface.KMSAPI, keyID string, l *zap.Logger) (*AWSKMSSigner, error) {
	address, err := getAddressFromKMSKey(ctx, client, keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive address from KMS key: %w", err)
	}
	l.Sugar().Infow("Resolved KMS signer address",
		zap.String("keyId", keyID),
		zap.String("address", address.Hex()),
	)
	return &AWSKMSSigner{
		kmsClient: client,
		keyID:     keyID,
		address:   address,
		logger:    l,
	}, nil
}

// GetAddress returns the Ethereum address associated with this KMS key.
func (a *AWSKMSSigner) GetAddress() (common.Address, error) {
	return a.address, nil
}

// SignMessage signs the personal message hash of the digest with KMS.
// KMS returns a DER encoded (r, s) pair without a recovery id, so s is
// normalized to the lower half order and the recovery id is found by
// recovering both candidates against the key address.
func (a *AWSKMSSigner) SignMessage(ctx context.Context, data []byte) ([]byte, error) {
	hash, err := personalMessageHash(data)
	if err != nil {
		return nil, err
	}

	result, err := a.kmsClient.SignWithContext(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyID),
		Message:          hash,
		MessageType:      aws.String(kms.MessageTypeDigest),
		SigningAlgorithm: aws.String(kms.SigningAlgorithmSpecEcdsaSha256),
	})
	if err != nil {
		a.logger.Sugar().Errorw("KMS signing failed",
			zap.String("keyId", a.keyID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: KMS signing failed: %v", ErrSigningFailed, err)
	}

	r, s, err := parseASN1Signature(result.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse KMS signature: %v", ErrSigningFailed, err)
	}
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	signature := make([]byte, 65)
	r.FillBytes(signature[0:32])
	s.FillBytes(signature[32:64])

	for v := 0; v < 2; v++ {
		signature[64] = byte(v)
		recovered, err := crypto.SigToPub(hash, signature)
		if err != nil {
			continue
		}
		if crypto.PubkeyToAddress(*recovered) == a.address {
			return toEthereumV(signature), nil
		}
	}

	return nil, fmt.Errorf("%w: failed to determine recovery id for KMS key %s", ErrSigningFailed, a.keyID)
}

// getAddressFromKMSKey derives the Ethereum address from a KMS public key
func getAddressFromKMSKey(ctx context.Context, client kmsiface.KMSAPI, keyID string) (common.Address, error) {
	result, err := client.GetPublicKeyWithContext(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyID),
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: failed to get public key from KMS: %v", ErrSigningFailed, err)
	}

	var spki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(result.PublicKey, &spki); err != nil {
		return common.Address{}, fmt.Errorf("%w: failed to decode public key: %v", ErrSigningFailed, err)
	}
	if !spki.Algorithm.Algorithm.Equal(oidPublicKeyECDSA) {
		return common.Address{}, fmt.Errorf("%w: KMS key %s is not an EC key", ErrSigningFailed, keyID)
	}

	pubKey, err := crypto.UnmarshalPubkey(spki.PublicKey.Bytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: failed to parse public key: %v", ErrSigningFailed, err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// parseASN1Signature parses an ASN.1 DER encoded ECDSA signature into r and s values
func parseASN1Signature(signature []byte) (*big.Int, *big.Int, error) {
	var sig ecdsaSignature
	rest, err := asn1.Unmarshal(signature, &sig)
	if err != nil {
		return nil, nil, err
	}
	if len(rest) != 0 {
		return nil, nil, fmt.Errorf("trailing data after signature")
	}
	if sig.R == nil || sig.S == nil || sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return nil, nil, fmt.Errorf("signature values must be positive")
	}
	if sig.R.Cmp(secp256k1N) >= 0 || sig.S.Cmp(secp256k1N) >= 0 {
		return nil, nil, fmt.Errorf("signature values out of range")
	}
	return sig.R, sig.S, nil
}
