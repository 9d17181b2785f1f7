// Package chainManager provides blockchain connection management for signature verification.
// Connections are registered per chain ID and shared by the verifiers that
// call verification contracts on those chains.
package chainManager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrChainNotFound is returned when a requested chain ID is not found in the manager
	ErrChainNotFound = errors.New("chain not found")
	// ErrChainIDMismatch is returned when an RPC endpoint reports a different chain ID than configured
	ErrChainIDMismatch = errors.New("chain ID mismatch")
)

// IChainManager defines the interface for managing blockchain connections.
type IChainManager interface {
	// AddChain adds a new blockchain connection to the manager
	AddChain(ctx context.Context, cfg *ChainConfig) error
	// GetChainForId retrieves a chain connection by its chain ID
	GetChainForId(chainId uint64) (*Chain, error)
}

// ChainConfig holds the configuration for connecting to a blockchain.
type ChainConfig struct {
	// ChainID is the unique identifier for the blockchain network
	ChainID uint64
	// RPCUrl is the URL endpoint for connecting to the blockchain RPC
	RPCUrl string
}

// Chain represents an active connection to a blockchain.
type Chain struct {
	config *ChainConfig
	// RPCClient is the active client connection for this chain
	RPCClient EthClientInterface
}

// Config returns the configuration the chain was registered with.
func (c *Chain) Config() *ChainConfig {
	return c.config
}

// ChainManager implements IChainManager using a sync.Map keyed by chain ID.
type ChainManager struct {
	Chains sync.Map // map[uint64]*Chain
}

// NewChainManager creates a new ChainManager instance.
func NewChainManager() *ChainManager {
	return &ChainManager{}
}

// AddChain dials the RPC URL, checks that the endpoint serves the configured
// chain ID and registers the connection.
//
// Parameters:
//   - ctx: Context for the chain ID lookup
//   - cfg: The chain configuration containing chain ID and RPC URL
//
// Returns:
//   - error: An error if the chain already exists, the connection fails or the chain ID differs
func (cm *ChainManager) AddChain(ctx context.Context, cfg *ChainConfig) error {
	if _, exists := cm.Chains.Load(cfg.ChainID); exists {
		return fmt.Errorf("chain with ID %d already exists", cfg.ChainID)
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCUrl)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC URL %s: %w", cfg.RPCUrl, err)
	}
	if err := cm.AddChainWithClient(ctx, cfg, client); err != nil {
		client.Close()
		return err
	}
	return nil
}

// AddChainWithClient registers an existing client after checking its chain ID.
func (cm *ChainManager) AddChainWithClient(ctx context.Context, cfg *ChainConfig, client EthClientInterface) error {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID from %s: %w", cfg.RPCUrl, err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != cfg.ChainID {
		return fmt.Errorf("%w: configured %d, endpoint reports %s", ErrChainIDMismatch, cfg.ChainID, chainID.String())
	}
	if _, loaded := cm.Chains.LoadOrStore(cfg.ChainID, &Chain{
		config:    cfg,
		RPCClient: client,
	}); loaded {
		return fmt.Errorf("chain with ID %d already exists", cfg.ChainID)
	}
	return nil
}

// GetChainForId retrieves a chain connection by its chain ID.
//
// Returns:
//   - *Chain: The chain connection if found
//   - error: ErrChainNotFound if the chain ID is not registered
func (cm *ChainManager) GetChainForId(chainId uint64) (*Chain, error) {
	value, exists := cm.Chains.Load(chainId)
	if !exists {
		return nil, ErrChainNotFound
	}
	chain, ok := value.(*Chain)
	if !ok {
		return nil, fmt.Errorf("invalid chain type stored for ID %d", chainId)
	}
	return chain, nil
}
