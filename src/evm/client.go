// Package evm wraps go-ethereum for balance reads, call simulation and
// signature recovery.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ErrNoEndpoint is returned when none of the configured RPC URLs answer.
var ErrNoEndpoint = errors.New("no reachable evm endpoint")

// Client is an EVM JSON-RPC client bound to one chain.
type Client struct {
	eth     *ethclient.Client
	url     string
	chainID *big.Int
}

// Dial connects to the first URL that answers eth_chainId with the expected id.
func Dial(ctx context.Context, network string, chainID int64, urls []string, lg *zap.Logger) (*Client, error) {
	lg = lg.With(zap.String("network", network))

	var lastErr error = ErrNoEndpoint
	for _, url := range urls {
		c, err := retry.DoWithData(func() (*Client, error) {
			eth, err := ethclient.DialContext(ctx, url)
			if err != nil {
				return nil, err
			}
			id, err := eth.ChainID(ctx)
			if err != nil {
				eth.Close()
				return nil, err
			}
			return &Client{eth: eth, url: url, chainID: id}, nil
		},
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(time.Second),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			lg.Warn("evm dial failed", zap.String("url", url), zap.Error(err))
			lastErr = err
			continue
		}
		if chainID != 0 && c.chainID.Int64() != chainID {
			c.Close()
			lastErr = fmt.Errorf("%s reports chain id %s, want %d", url, c.chainID, chainID)
			lg.Warn("evm chain id mismatch", zap.String("url", url), zap.Error(lastErr))
			continue
		}
		lg.Info("evm connected", zap.String("url", url))
		return c, nil
	}
	return nil, fmt.Errorf("%w for %s: %v", ErrNoEndpoint, network, lastErr)
}

// ChainID returns the chain id reported at dial time.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Close closes the connection
func (c *Client) Close() {
	c.eth.Close()
}

// Balance returns the native balance of addr at the latest block.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, addr, nil)
}

// EstimateGas simulates a call from the Safe itself and returns the gas used.
// A revert surfaces as an error.
func (c *Client) EstimateGas(ctx context.Context, from, to common.Address, value *big.Int, data []byte) (uint64, error) {
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return gas, nil
}
