package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"math/big"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var oidNamedCurveSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}

// fakeKMS serves GetPublicKey and Sign for a local secp256k1 key in the
// DER formats AWS KMS uses.
type fakeKMS struct {
	kmsiface.KMSAPI
	key     *ecdsa.PrivateKey
	highS   bool
	signErr error

	lastSignInput *kms.SignInput
}

func (f *fakeKMS) GetPublicKeyWithContext(_ aws.Context, _ *kms.GetPublicKeyInput, _ ...request.Option) (*kms.GetPublicKeyOutput, error) {
	params, err := asn1.Marshal(oidNamedCurveSecp256k1)
	if err != nil {
		return nil, err
	}
	pub := crypto.FromECDSAPub(&f.key.PublicKey)
	der, err := asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		PublicKey: asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	})
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{PublicKey: der}, nil
}

func (f *fakeKMS) SignWithContext(_ aws.Context, in *kms.SignInput, _ ...request.Option) (*kms.SignOutput, error) {
	f.lastSignInput = in
	if f.signErr != nil {
		return nil, f.signErr
	}
	sig, err := crypto.Sign(in.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.highS {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	der, err := asn1.Marshal(ecdsaSignature{R: r, S: s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: der}, nil
}

func setupTestKMSSigner(t *testing.T, highS bool) (*AWSKMSSigner, *fakeKMS) {
	t.Helper()
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	fake := &fakeKMS{key: key, highS: highS}
	logger, _ := zap.NewDevelopment()

	s, err := NewAWSKMSSignerWithClient(context.Background(), fake, "alias/test", logger)
	require.NoError(t, err)
	return s, fake
}

func TestAWSKMSSigner_GetAddress(t *testing.T) {
	s, _ := setupTestKMSSigner(t, false)

	addr, err := s.GetAddress()
	require.NoError(t, err)
	assert.Equal(t, testAddress, addr)
}

func TestAWSKMSSigner_SignMessage(t *testing.T) {
	tests := []struct {
		name  string
		highS bool
	}{
		{name: "low s from KMS", highS: false},
		{name: "high s normalized", highS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fake := setupTestKMSSigner(t, tt.highS)
			digest := crypto.Keccak256([]byte("hello"))

			sig, err := s.SignMessage(context.Background(), digest)
			require.NoError(t, err)

			assert.Equal(t, testAddress, recoverSigner(t, digest, sig))
			assert.LessOrEqual(t, new(big.Int).SetBytes(sig[32:64]).Cmp(secp256k1HalfN), 0)

			require.NotNil(t, fake.lastSignInput)
			assert.Equal(t, kms.MessageTypeDigest, aws.StringValue(fake.lastSignInput.MessageType))
			assert.Equal(t, kms.SigningAlgorithmSpecEcdsaSha256, aws.StringValue(fake.lastSignInput.SigningAlgorithm))
			assert.Equal(t, "alias/test", aws.StringValue(fake.lastSignInput.KeyId))
		})
	}
}

func TestAWSKMSSigner_SignMessage_KMSError(t *testing.T) {
	s, fake := setupTestKMSSigner(t, false)
	fake.signErr = errors.New("throttled")

	_, err := s.SignMessage(context.Background(), crypto.Keccak256([]byte("hello")))
	assert.ErrorIs(t, err, ErrSigningFailed)
	assert.Contains(t, err.Error(), "throttled")
}

func TestAWSKMSSigner_SignMessage_InvalidDigest(t *testing.T) {
	s, fake := setupTestKMSSigner(t, false)

	_, err := s.SignMessage(context.Background(), []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, fake.lastSignInput)
}

func TestParseASN1Signature(t *testing.T) {
	valid, err := asn1.Marshal(ecdsaSignature{R: big.NewInt(1), S: big.NewInt(2)})
	require.NoError(t, err)
	zero, err := asn1.Marshal(ecdsaSignature{R: big.NewInt(0), S: big.NewInt(2)})
	require.NoError(t, err)
	outOfRange, err := asn1.Marshal(ecdsaSignature{R: secp256k1N, S: big.NewInt(2)})
	require.NoError(t, err)

	r, s, err := parseASN1Signature(valid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Int64())
	assert.Equal(t, int64(2), s.Int64())

	_, _, err = parseASN1Signature(zero)
	assert.Error(t, err)
	_, _, err = parseASN1Signature(outOfRange)
	assert.Error(t, err)
	_, _, err = parseASN1Signature(append(valid, 0x00))
	assert.Error(t, err)
	_, _, err = parseASN1Signature([]byte{0x30, 0x01})
	assert.Error(t, err)
}
