// Package signature splits raw ECDSA signature blobs into the (v, r, s)
// components consumed by Solidity's ecrecover, and joins them back.
package signature

import (
	"fmt"

	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signer"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// Length is the size of an [R || S || V] signature
	Length = 65
	// CompactLength is the size of an EIP-2098 [R || yParityAndS] signature
	CompactLength = 64
)

// Signature is an ECDSA signature split into its recovery id and scalars.
type Signature struct {
	V uint8
	R [32]byte
	S [32]byte
}

// ISignatureCodec decomposes raw signature blobs.
type ISignatureCodec interface {
	Split(blob []byte) (*Signature, error)
}

// Codec is the default ISignatureCodec.
type Codec struct{}

// NewCodec returns the default codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Split implements ISignatureCodec.
func (c *Codec) Split(blob []byte) (*Signature, error) {
	return Split(blob)
}

// Split decomposes a 65-byte or 64-byte (EIP-2098) signature blob.
// A V of 0 or 1 is lifted to 27 or 28; any other V outside {27, 28} is rejected.
func Split(blob []byte) (*Signature, error) {
	sig := &Signature{}
	switch len(blob) {
	case Length:
		copy(sig.R[:], blob[0:32])
		copy(sig.S[:], blob[32:64])
		v := blob[64]
		if v < 27 {
			if v != 0 && v != 1 {
				return nil, fmt.Errorf("%w: invalid signature v byte %d", signer.ErrInvalidInput, v)
			}
			v += 27
		}
		if v != 27 && v != 28 {
			return nil, fmt.Errorf("%w: invalid signature v byte %d", signer.ErrInvalidInput, v)
		}
		sig.V = v
	case CompactLength:
		copy(sig.R[:], blob[0:32])
		copy(sig.S[:], blob[32:64])
		sig.V = 27 + (sig.S[0] >> 7)
		sig.S[0] &= 0x7f
	default:
		return nil, fmt.Errorf("%w: signature must be %d or %d bytes, got %d", signer.ErrInvalidInput, Length, CompactLength, len(blob))
	}
	return sig, nil
}

// RecoveryID returns V as the 0/1 recovery id expected by go-ethereum's crypto package.
func (s *Signature) RecoveryID() byte {
	return s.V - 27
}

// Bytes returns the 65-byte [R || S || V] encoding.
func (s *Signature) Bytes() []byte {
	out := make([]byte, Length)
	copy(out[0:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// Compact returns the 64-byte EIP-2098 encoding.
func (s *Signature) Compact() []byte {
	out := make([]byte, CompactLength)
	copy(out[0:32], s.R[:])
	copy(out[32:64], s.S[:])
	if s.RecoveryID() == 1 {
		out[32] |= 0x80
	}
	return out
}

// String returns the hex encoding of Bytes.
func (s *Signature) String() string {
	return hexutil.Encode(s.Bytes())
}
