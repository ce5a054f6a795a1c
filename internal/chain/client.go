package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// MismatchError reports an RPC endpoint serving a different chain than configured.
type MismatchError struct {
	Chain    string
	Expected *big.Int
	Actual   *big.Int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("chain ID mismatch on %s: expected %s, got %s", e.Chain, e.Expected, e.Actual)
}

// Client manages connections to multiple EVM chains
type Client struct {
	registry *Registry
	clients  map[string]*ethclient.Client
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewClient creates a new multi-chain client over registry
func NewClient(registry *Registry, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		registry: registry,
		clients:  make(map[string]*ethclient.Client),
		logger:   logger.Named("chain"),
	}
}

// Registry returns the chain registry backing the client
func (c *Client) Registry() *Registry {
	return c.registry
}

// getClient returns a verified ethclient for the given chain, creating one if needed.
// Acquires the lock upfront to prevent duplicate connection creation under
// contention; connection creation is not a hot path.
func (c *Client) getClient(ctx context.Context, chainName string) (*ethclient.Client, *ChainConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	config, err := c.registry.Get(chainName)
	if err != nil {
		return nil, nil, err
	}

	if client, exists := c.clients[chainName]; exists {
		return client, config, nil
	}

	var lastErr error
	for _, rpcURL := range config.RPCURLs {
		client, chainID, err := dial(ctx, rpcURL)
		if err != nil {
			c.logger.Debug("rpc dial failed", zap.String("chain", chainName), zap.String("url", rpcURL), zap.Error(err))
			lastErr = err
			continue
		}

		if chainID.Cmp(config.ChainID) != 0 {
			client.Close()
			lastErr = &MismatchError{Chain: chainName, Expected: config.ChainID, Actual: chainID}
			c.logger.Warn("rpc serves unexpected chain", zap.String("chain", chainName), zap.String("url", rpcURL), zap.Stringer("actual", chainID))
			continue
		}

		c.clients[chainName] = client
		return client, config, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no rpc urls configured")
	}
	return nil, nil, fmt.Errorf("failed to connect to %s: %w", chainName, lastErr)
}

func dial(ctx context.Context, rpcURL string) (*ethclient.Client, *big.Int, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := ethclient.DialContext(dialCtx, rpcURL)
	cancel()
	if err != nil {
		return nil, nil, err
	}

	idCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	chainID, err := client.ChainID(idCtx)
	cancel()
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, chainID, nil
}

// DialUnverified connects to the first reachable RPC of chainName without
// checking which chain it serves. The caller owns the returned client.
func (c *Client) DialUnverified(ctx context.Context, chainName string) (*ethclient.Client, *big.Int, error) {
	config, err := c.registry.Get(chainName)
	if err != nil {
		return nil, nil, err
	}
	var lastErr error
	for _, rpcURL := range config.RPCURLs {
		client, chainID, err := dial(ctx, rpcURL)
		if err != nil {
			lastErr = err
			continue
		}
		return client, chainID, nil
	}
	return nil, nil, fmt.Errorf("failed to connect to %s: %w", chainName, lastErr)
}

// GetBalance returns the native token balance for an address on a chain
func (c *Client) GetBalance(ctx context.Context, chainName string, address common.Address) (*big.Int, error) {
	client, _, err := c.getClient(ctx, chainName)
	if err != nil {
		return nil, err
	}

	return client.BalanceAt(ctx, address, nil)
}

// Backend returns the verified connection for chainName with its config.
// The connection is shared; callers must not close it.
func (c *Client) Backend(ctx context.Context, chainName string) (*ethclient.Client, *ChainConfig, error) {
	return c.getClient(ctx, chainName)
}

// WaitMined polls until the transaction receipt is available or ctx ends
func (c *Client) WaitMined(ctx context.Context, chainName string, txHash common.Hash) (*types.Receipt, error) {
	client, _, err := c.getClient(ctx, chainName)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := client.TransactionReceipt(ctx, txHash)
			if err == nil {
				return receipt, nil
			}
		}
	}
}

// Close closes all client connections
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		client.Close()
	}
	c.clients = make(map[string]*ethclient.Client)
}
