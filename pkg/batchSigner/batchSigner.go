// Package batchSigner collects ECDSA signatures from an ordered list of signers
// over a shared digest. The resulting SignatureBatch exposes index-aligned
// v, r and s sequences in the shape expected by multi-signature contracts.
package batchSigner

import (
	"context"

	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signature"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the configuration for the BatchSigner.
type Config struct {
	// Concurrency is the number of signers asked in parallel. Values
	// below 2 sign strictly one signer after another.
	Concurrency int
}

// BatchSigner signs a digest with many signers.
type BatchSigner struct {
	config *Config
	codec  signature.ISignatureCodec
	logger *zap.Logger
}

// NewBatchSigner creates a new BatchSigner.
//
// Parameters:
//   - cfg: The batch configuration, nil for sequential signing
//   - codec: The codec used to split raw signatures
//   - l: A zap logger
//
// Returns:
//   - *BatchSigner: A new batch signer
func NewBatchSigner(cfg *Config, codec signature.ISignatureCodec, l *zap.Logger) *BatchSigner {
	if cfg == nil {
		cfg = &Config{}
	}
	return &BatchSigner{
		config: cfg,
		codec:  codec,
		logger: l,
	}
}

type batchEntry struct {
	address common.Address
	sig     *signature.Signature
}

// SignBatch asks every signer, in order, to sign digest and splits each
// signature into the batch. The digest is not validated here; signers
// report malformed digests with signer.ErrInvalidInput.
//
// The first error from a signer or the codec is returned unchanged and no
// batch is produced. Signers after the failing one are not asked.
func (b *BatchSigner) SignBatch(ctx context.Context, signers []signer.ISigner, digest []byte) (*SignatureBatch, error) {
	b.logger.Sugar().Debugw("Signing batch",
		zap.Int("signers", len(signers)),
		zap.String("digest", hexutil.Encode(digest)),
		zap.Int("concurrency", b.config.Concurrency),
	)

	if b.config.Concurrency > 1 && len(signers) > 1 {
		return b.signConcurrently(ctx, signers, digest)
	}

	batch := newSignatureBatch(digest, len(signers))
	for i, s := range signers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := b.signOne(ctx, i, s, digest)
		if err != nil {
			return nil, err
		}
		batch.append(entry.address, entry.sig)
	}

	b.logger.Sugar().Infow("Signed batch",
		zap.Int("signatures", batch.Len()),
		zap.String("digest", hexutil.Encode(digest)),
	)
	return batch, nil
}

// signConcurrently fans signers out and writes results by index so the
// batch keeps input order.
func (b *BatchSigner) signConcurrently(ctx context.Context, signers []signer.ISigner, digest []byte) (*SignatureBatch, error) {
	entries := make([]batchEntry, len(signers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Concurrency)
	for i, s := range signers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := b.signOne(gctx, i, s, digest)
			if err != nil {
				return err
			}
			entries[i] = *entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := newSignatureBatch(digest, len(signers))
	for _, entry := range entries {
		batch.append(entry.address, entry.sig)
	}

	b.logger.Sugar().Infow("Signed batch concurrently",
		zap.Int("signatures", batch.Len()),
		zap.String("digest", hexutil.Encode(digest)),
	)
	return batch, nil
}

func (b *BatchSigner) signOne(ctx context.Context, index int, s signer.ISigner, digest []byte) (*batchEntry, error) {
	address, err := s.GetAddress()
	if err != nil {
		b.logger.Sugar().Errorw("Failed to get signer address",
			zap.Int("index", index),
			zap.Error(err),
		)
		return nil, err
	}

	blob, err := s.SignMessage(ctx, digest)
	if err != nil {
		b.logger.Sugar().Errorw("Failed to sign digest",
			zap.Int("index", index),
			zap.String("signer", address.Hex()),
			zap.Error(err),
		)
		return nil, err
	}

	sig, err := b.codec.Split(blob)
	if err != nil {
		b.logger.Sugar().Errorw("Failed to split signature",
			zap.Int("index", index),
			zap.String("signer", address.Hex()),
			zap.Error(err),
		)
		return nil, err
	}

	b.logger.Sugar().Debugw("Collected signature",
		zap.Int("index", index),
		zap.String("signer", address.Hex()),
		zap.Uint8("v", sig.V),
	)
	return &batchEntry{address: address, sig: sig}, nil
}
