package app

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/chain"
	"github.com/stake-plus/multisig-relay/src/evm"
	"github.com/stake-plus/multisig-relay/src/proposal"
	"github.com/stake-plus/multisig-relay/src/safe"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Chains lazily dials and caches one client per network. Concurrent first
// requests for the same network share a single dial.
type Chains struct {
	mu        sync.RWMutex
	substrate map[uint16]*substrate.Client
	evm       map[uint16]*evm.Client
	safes     map[uint16]*safe.ServiceClient

	dials   singleflight.Group
	safeURL func(network string) string
	opts    substrate.DialOptions
	lg      *zap.Logger
}

// NewChains returns an empty cache. safeURL may override the Safe
// Transaction Service base URL of a network; an empty answer keeps the URL
// stored on the network row.
func NewChains(safeURL func(network string) string, opts substrate.DialOptions, lg *zap.Logger) *Chains {
	if safeURL == nil {
		safeURL = func(string) string { return "" }
	}
	return &Chains{
		substrate: make(map[uint16]*substrate.Client),
		evm:       make(map[uint16]*evm.Client),
		safes:     make(map[uint16]*safe.ServiceClient),
		safeURL:   safeURL,
		opts:      opts,
		lg:        lg.Named("chains"),
	}
}

func dialKey(family string, id uint16) string {
	return family + ":" + strconv.Itoa(int(id))
}

func (c *Chains) substrateClient(ctx context.Context, n types.Network) (*substrate.Client, error) {
	if n.Family != types.FamilySubstrate {
		return nil, fmt.Errorf("%w: %s is not a substrate network", proposal.ErrUnsupportedNetwork, n.Name)
	}
	c.mu.RLock()
	cl, ok := c.substrate[n.ID]
	c.mu.RUnlock()
	if ok {
		return cl, nil
	}

	v, err, _ := c.dials.Do(dialKey(n.Family, n.ID), func() (interface{}, error) {
		c.mu.RLock()
		cl, ok := c.substrate[n.ID]
		c.mu.RUnlock()
		if ok {
			return cl, nil
		}
		cl, err := substrate.Dial(ctx, n.Name, chain.RPCURLs(n), c.opts, c.lg)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.substrate[n.ID] = cl
		c.mu.Unlock()
		c.lg.Info("substrate client ready", zap.String("network", n.Name), zap.String("url", cl.URL()))
		return cl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*substrate.Client), nil
}

func (c *Chains) evmClient(ctx context.Context, n types.Network) (*evm.Client, error) {
	if n.Family != types.FamilyEVM {
		return nil, fmt.Errorf("%w: %s is not an evm network", proposal.ErrUnsupportedNetwork, n.Name)
	}
	c.mu.RLock()
	cl, ok := c.evm[n.ID]
	c.mu.RUnlock()
	if ok {
		return cl, nil
	}

	v, err, _ := c.dials.Do(dialKey(n.Family, n.ID), func() (interface{}, error) {
		c.mu.RLock()
		cl, ok := c.evm[n.ID]
		c.mu.RUnlock()
		if ok {
			return cl, nil
		}
		cl, err := evm.Dial(ctx, n.Name, n.ChainID, chain.RPCURLs(n), c.lg)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.evm[n.ID] = cl
		c.mu.Unlock()
		return cl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*evm.Client), nil
}

func (c *Chains) safeClient(n types.Network) (*safe.ServiceClient, error) {
	if n.Family != types.FamilyEVM {
		return nil, fmt.Errorf("%w: %s has no Safe service", proposal.ErrUnsupportedNetwork, n.Name)
	}
	c.mu.RLock()
	cl, ok := c.safes[n.ID]
	c.mu.RUnlock()
	if ok {
		return cl, nil
	}

	url := c.safeURL(n.Name)
	if url == "" {
		url = n.SafeServiceURL
	}
	if url == "" {
		return nil, fmt.Errorf("%w: no Safe service url for %s", proposal.ErrUnsupportedNetwork, n.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.safes[n.ID]; ok {
		return cl, nil
	}
	cl = safe.NewServiceClient(url, 0)
	c.safes[n.ID] = cl
	return cl, nil
}

func (c *Chains) Resolver(ctx context.Context, n types.Network) (substrate.CallResolver, error) {
	cl, err := c.substrateClient(ctx, n)
	if err != nil {
		return nil, err
	}
	return cl.Resolver(), nil
}

func (c *Chains) SubstrateRelay(ctx context.Context, n types.Network) (proposal.SubstrateRelay, error) {
	cl, err := c.substrateClient(ctx, n)
	if err != nil {
		return nil, err
	}
	return cl, nil
}

func (c *Chains) SafeRelay(n types.Network) (proposal.SafeRelay, error) {
	cl, err := c.safeClient(n)
	if err != nil {
		return nil, err
	}
	return cl, nil
}

// Simulator returns nil without error when the network has no RPC, which
// makes the builder skip simulation.
func (c *Chains) Simulator(ctx context.Context, n types.Network) (proposal.Simulator, error) {
	if len(chain.RPCURLs(n)) == 0 {
		return nil, nil
	}
	cl, err := c.evmClient(ctx, n)
	if err != nil {
		return nil, err
	}
	return cl, nil
}

// SafeInfo reads owners and threshold of a Safe from the service.
func (c *Chains) SafeInfo(ctx context.Context, n types.Network, addr string) (*safe.SafeInfo, error) {
	cl, err := c.safeClient(n)
	if err != nil {
		return nil, err
	}
	return cl.GetSafe(ctx, common.HexToAddress(addr))
}

// Balance returns the free native balance of addr in smallest units.
func (c *Chains) Balance(ctx context.Context, n types.Network, addr string) (*big.Int, error) {
	if n.Family == types.FamilyEVM {
		cl, err := c.evmClient(ctx, n)
		if err != nil {
			return nil, err
		}
		return cl.Balance(ctx, common.HexToAddress(addr))
	}
	pub, err := address.Decode(addr)
	if err != nil {
		return nil, err
	}
	cl, err := c.substrateClient(ctx, n)
	if err != nil {
		return nil, err
	}
	return cl.FreeBalance(ctx, pub)
}

func (c *Chains) multisigReader(ctx context.Context, n types.Network) (multisigReader, error) {
	cl, err := c.substrateClient(ctx, n)
	if err != nil {
		return nil, err
	}
	return cl, nil
}

func (c *Chains) safeTxReader(n types.Network) (safeTxReader, error) {
	cl, err := c.safeClient(n)
	if err != nil {
		return nil, err
	}
	return cl, nil
}

// Close drops every cached client.
func (c *Chains) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cl := range c.substrate {
		cl.Close()
		delete(c.substrate, id)
	}
	for id, cl := range c.evm {
		cl.Close()
		delete(c.evm, id)
	}
	c.safes = make(map[uint16]*safe.ServiceClient)
}
