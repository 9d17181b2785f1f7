package chainManager

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// EthClientInterface defines the methods needed to verify signatures on chain.
// ethclient.Client satisfies it; tests substitute lightweight fakes.
type EthClientInterface interface {
	ChainID(ctx context.Context) (*big.Int, error)

	// Contract call support (required for go-ethereum's bind package)
	bind.ContractCaller
}
