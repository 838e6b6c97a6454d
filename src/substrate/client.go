package substrate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"go.uber.org/zap"
)

// ErrNoEndpoint is returned when none of the configured RPC URLs answer.
var ErrNoEndpoint = errors.New("no reachable substrate endpoint")

// Client is a Substrate RPC client bound to one network.
type Client struct {
	api      *gsrpc.SubstrateAPI
	url      string
	resolver CallResolver
	lg       *zap.Logger
}

// DialOptions tunes the start-up dial.
type DialOptions struct {
	Attempts uint
	Delay    time.Duration
}

// Dial connects to the first reachable URL and loads runtime metadata. When
// the metadata cannot be indexed the built-in table for network is used.
func Dial(ctx context.Context, network string, urls []string, opts DialOptions, lg *zap.Logger) (*Client, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoEndpoint, network)
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.Delay == 0 {
		opts.Delay = 2 * time.Second
	}
	lg = lg.With(zap.String("network", network))

	var lastErr error
	for _, url := range urls {
		api, err := retry.DoWithData(func() (*gsrpc.SubstrateAPI, error) {
			return gsrpc.NewSubstrateAPI(url)
		},
			retry.Context(ctx),
			retry.Attempts(opts.Attempts),
			retry.Delay(opts.Delay),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			lg.Warn("substrate dial failed", zap.String("url", url), zap.Error(err))
			lastErr = err
			continue
		}

		c := &Client{api: api, url: url, lg: lg}
		c.resolver = c.loadResolver(network)
		lg.Info("substrate connected", zap.String("url", url))
		return c, nil
	}
	return nil, fmt.Errorf("%w for %s: %v", ErrNoEndpoint, network, lastErr)
}

func (c *Client) loadResolver(network string) CallResolver {
	meta, err := c.api.RPC.State.GetMetadataLatest()
	if err == nil {
		r, rerr := NewMetadataResolver(meta)
		if rerr == nil {
			return r
		}
		err = rerr
	}
	c.lg.Warn("runtime metadata unavailable, using built-in call table", zap.Error(err))
	if r, ok := DefaultResolver(network); ok {
		return r
	}
	return NewStaticResolver(nil)
}

// URL returns the endpoint in use.
func (c *Client) URL() string {
	return c.url
}

// Resolver returns the call table of the connected runtime.
func (c *Client) Resolver() CallResolver {
	return c.resolver
}

// Close closes the connection
func (c *Client) Close() {
	c.api.Client.Close()
}

// Storage reads a raw storage value. The bool is false when the key is empty.
func (c *Client) Storage(ctx context.Context, key []byte) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var raw types.StorageDataRaw
	ok, err := c.api.RPC.State.GetStorageLatest(types.NewStorageKey(key), &raw)
	if err != nil {
		return nil, false, fmt.Errorf("get storage: %w", err)
	}
	if !ok || len(raw) == 0 {
		return nil, false, nil
	}
	return raw, true, nil
}

// MultisigEntry returns the open operation for callHash on a multisig account.
func (c *Client) MultisigEntry(ctx context.Context, account, callHash []byte) (*MultisigEntry, bool, error) {
	raw, ok, err := c.Storage(ctx, MultisigsKey(account, callHash))
	if err != nil || !ok {
		return nil, false, err
	}
	e, err := DecodeMultisigEntry(raw)
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// FreeBalance returns the free balance of an account, zero when it does not exist.
func (c *Client) FreeBalance(ctx context.Context, account []byte) (*big.Int, error) {
	raw, ok, err := c.Storage(ctx, SystemAccountKey(account))
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	info, err := DecodeAccountInfo(raw)
	if err != nil {
		return nil, fmt.Errorf("decode account info: %w", err)
	}
	return info.Free, nil
}

// SubmitExtrinsic relays a signed extrinsic and returns its hash.
func (c *Client) SubmitExtrinsic(ctx context.Context, extrinsic string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	extrinsic = strings.TrimSpace(extrinsic)
	if !strings.HasPrefix(extrinsic, "0x") {
		extrinsic = "0x" + extrinsic
	}
	var hash string
	if err := c.api.Client.Call(&hash, "author_submitExtrinsic", extrinsic); err != nil {
		return "", fmt.Errorf("author_submitExtrinsic: %w", err)
	}
	return hash, nil
}
