package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned by Client methods called before Connect.
var ErrNotConnected = errors.New("chain: client not connected")

// Backend is the subset of ethclient the wallet and client depend on.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client wraps an RPC connection to the chain the game lives on.
type Client struct {
	rpcURL   string
	backend  Backend
	closer   func()
	chainID  *big.Int
	pollFreq time.Duration
}

// NewClient creates an unconnected client for rpcURL.
func NewClient(rpcURL string) *Client {
	return &Client{rpcURL: rpcURL, pollFreq: 2 * time.Second}
}

// NewClientWithBackend wires an already-connected backend (simulated chains,
// tests).
func NewClientWithBackend(b Backend, chainID *big.Int) *Client {
	return &Client{backend: b, chainID: chainID, pollFreq: 2 * time.Second}
}

// Connect dials the RPC endpoint and caches the chain id.
func (c *Client) Connect(ctx context.Context) error {
	ec, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return fmt.Errorf("failed to connect to EVM RPC: %w", err)
	}
	chainID, err := ec.ChainID(ctx)
	if err != nil {
		ec.Close()
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	c.backend = ec
	c.closer = ec.Close
	c.chainID = chainID
	return nil
}

// Backend exposes the underlying RPC backend for signing wallets.
func (c *Client) Backend() Backend { return c.backend }

// ChainID returns the cached chain id, querying it once if needed.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	if c.chainID != nil {
		return c.chainID, nil
	}
	if c.backend == nil {
		return nil, ErrNotConnected
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	c.chainID = id
	return id, nil
}

// TransactionReceipt fetches the receipt for hash. It returns
// ethereum.NotFound while the transaction is not yet mined.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if c.backend == nil {
		return nil, ErrNotConnected
	}
	return c.backend.TransactionReceipt(ctx, hash)
}

// WaitMined polls for the receipt of hash until it appears, ctx is done or
// timeout elapses.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if c.backend == nil {
		return nil, ErrNotConnected
	}
	ticker := time.NewTicker(c.pollFreq)
	defer ticker.Stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			log.Debug().Err(err).Str("tx", hash.Hex()).Msg("receipt poll failed; retrying")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("timeout waiting for transaction %s", hash.Hex())
		case <-ticker.C:
		}
	}
}

// Uint256 calls a zero-argument view method returning uint256.
func (c *Client) Uint256(ctx context.Context, contract common.Address, method string) (*big.Int, error) {
	if c.backend == nil {
		return nil, ErrNotConnected
	}
	data, err := GameABI.Pack(method)
	if err != nil {
		return nil, err
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	vals, err := GameABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, vals[0])
	}
	return v, nil
}

// Close releases the RPC connection.
func (c *Client) Close() error {
	if c.closer != nil {
		c.closer()
		c.closer = nil
	}
	c.backend = nil
	return nil
}
