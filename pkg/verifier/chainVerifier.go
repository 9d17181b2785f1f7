package verifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/batchSigner"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signature"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signer"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// CheckSignatureMethod is the contract method called by ChainVerifier.
const CheckSignatureMethod = "checkSignature"

// SigningTestABI describes a contract that reverts unless
// ecrecover(personalHash(_theHash), _v, _r, _s) == _signer.
const SigningTestABI = `[{"inputs":[{"internalType":"address","name":"_signer","type":"address"},{"internalType":"bytes32","name":"_theHash","type":"bytes32"},{"internalType":"uint8","name":"_v","type":"uint8"},{"internalType":"bytes32","name":"_r","type":"bytes32"},{"internalType":"bytes32","name":"_s","type":"bytes32"}],"name":"checkSignature","outputs":[],"stateMutability":"view","type":"function"}]`

// ChainVerifier verifies signatures through a deployed checkSignature contract.
type ChainVerifier struct {
	contractAddress common.Address
	contract        *bind.BoundContract
	logger          *zap.Logger
}

// NewChainVerifier binds a verifier to the contract at address.
//
// Parameters:
//   - address: The address of the verification contract
//   - caller: The backend used for eth_call, typically an ethclient.Client
//   - l: A zap logger
//
// Returns:
//   - *ChainVerifier: A new chain verifier
//   - error: An error if the contract ABI cannot be parsed
func NewChainVerifier(address common.Address, caller bind.ContractCaller, l *zap.Logger) (*ChainVerifier, error) {
	parsed, err := abi.JSON(strings.NewReader(SigningTestABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse verification contract ABI: %w", err)
	}
	return &ChainVerifier{
		contractAddress: address,
		contract:        bind.NewBoundContract(address, parsed, caller, nil, nil),
		logger:          l,
	}, nil
}

// CheckSignature calls checkSignature on chain. A revert is reported as ErrSignatureMismatch.
func (c *ChainVerifier) CheckSignature(ctx context.Context, address common.Address, digest []byte, sig *signature.Signature) error {
	if err := signer.ValidateDigest(digest); err != nil {
		return err
	}

	out := []interface{}{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, CheckSignatureMethod,
		address,
		[32]byte(digest),
		sig.V,
		sig.R,
		sig.S,
	)
	if err != nil {
		if isRevert(err) {
			c.logger.Sugar().Debugw("Verification contract rejected signature",
				zap.String("contract", c.contractAddress.Hex()),
				zap.String("signer", address.Hex()),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
		}
		return fmt.Errorf("failed to call %s on %s: %w", CheckSignatureMethod, c.contractAddress.Hex(), err)
	}
	return nil
}

// CheckBatch verifies every batch entry on chain, in order.
func (c *ChainVerifier) CheckBatch(ctx context.Context, batch *batchSigner.SignatureBatch) error {
	for i := 0; i < batch.Len(); i++ {
		if err := c.CheckSignature(ctx, batch.Signers[i], batch.Digest, batch.Signature(i)); err != nil {
			return fmt.Errorf("signature %d: %w", i, err)
		}
	}
	c.logger.Sugar().Infow("Verified batch on chain",
		zap.String("contract", c.contractAddress.Hex()),
		zap.Int("signatures", batch.Len()),
	)
	return nil
}

func isRevert(err error) bool {
	return strings.Contains(err.Error(), "execution reverted")
}
