package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/batchSigner"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/chainManager"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/logger"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signature"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/verifier"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// batchOutput is the document written by sign and read by verify
type batchOutput struct {
	Batch *batchSigner.SignatureBatch `json:"batch"`
	Root  hexutil.Bytes               `json:"root,omitempty"`
}

func setupLogger(c *cli.Context) (*zap.Logger, error) {
	return logger.NewLogger(&logger.LoggerConfig{
		Debug: c.Bool("debug"),
	})
}

func parseDigest(c *cli.Context) ([]byte, error) {
	if digestHex := c.String("digest"); digestHex != "" {
		digest, err := hexutil.Decode(digestHex)
		if err != nil {
			return nil, fmt.Errorf("invalid digest %q: %w", digestHex, err)
		}
		return digest, nil
	}
	return crypto.Keccak256([]byte(c.String("message"))), nil
}

func signAction(c *cli.Context) error {
	l, err := setupLogger(c)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer l.Sync() //nolint:errcheck

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	digest, err := parseDigest(c)
	if err != nil {
		return err
	}

	signers, err := setupSigners(ctx, c, l)
	if err != nil {
		return fmt.Errorf("failed to setup signers: %w", err)
	}

	bs := batchSigner.NewBatchSigner(&batchSigner.Config{
		Concurrency: c.Int("concurrency"),
	}, signature.NewCodec(), l)

	batch, err := bs.SignBatch(ctx, signers, digest)
	if err != nil {
		return fmt.Errorf("failed to sign batch: %w", err)
	}

	tree, err := batch.CommitmentTree()
	if err != nil {
		return err
	}
	out := &batchOutput{
		Batch: batch,
		Root:  tree.Root(),
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	encoded = append(encoded, '\n')

	if path := c.String("output"); path != "" {
		if err := os.WriteFile(path, encoded, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		l.Sugar().Infow("Wrote signature batch",
			zap.String("path", path),
			zap.Int("signatures", batch.Len()),
		)
		return nil
	}
	_, err = os.Stdout.Write(encoded)
	return err
}

func validateVerifyFlags(c *cli.Context) error {
	set := 0
	for _, name := range []string{"rpc-url", "chain-id", "contract"} {
		if c.IsSet(name) {
			set++
		}
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("--rpc-url, --chain-id and --contract must be specified together")
	}
	if c.IsSet("contract") && !common.IsHexAddress(c.String("contract")) {
		return fmt.Errorf("invalid contract address: %s", c.String("contract"))
	}
	return nil
}

func verifyAction(c *cli.Context) error {
	l, err := setupLogger(c)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer l.Sync() //nolint:errcheck

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	path := c.String("batch-file")
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var in batchOutput
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if in.Batch == nil {
		return fmt.Errorf("%s does not contain a batch", path)
	}

	if err := verifier.VerifyBatch(in.Batch); err != nil {
		return fmt.Errorf("local verification failed: %w", err)
	}
	l.Sugar().Infow("Verified batch locally", zap.Int("signatures", in.Batch.Len()))

	if len(in.Root) > 0 {
		tree, err := in.Batch.CommitmentTree()
		if err != nil {
			return err
		}
		if !bytes.Equal(tree.Root(), in.Root) {
			return fmt.Errorf("commitment root mismatch: file has %s, batch hashes to %s", in.Root, hexutil.Encode(tree.Root()))
		}
	}

	if !c.IsSet("rpc-url") {
		return nil
	}

	cm := chainManager.NewChainManager()
	chainCfg := &chainManager.ChainConfig{
		ChainID: c.Uint64("chain-id"),
		RPCUrl:  c.String("rpc-url"),
	}
	if err := cm.AddChain(ctx, chainCfg); err != nil {
		return fmt.Errorf("failed to add chain: %w", err)
	}
	chain, err := cm.GetChainForId(chainCfg.ChainID)
	if err != nil {
		return fmt.Errorf("failed to get chain for ID %d: %w", chainCfg.ChainID, err)
	}

	cv, err := verifier.NewChainVerifier(common.HexToAddress(c.String("contract")), chain.RPCClient, l)
	if err != nil {
		return err
	}
	if err := cv.CheckBatch(ctx, in.Batch); err != nil {
		return fmt.Errorf("on-chain verification failed: %w", err)
	}
	return nil
}
