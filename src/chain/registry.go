package chain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/stake-plus/multisig-relay/src/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownNetwork is returned for names or IDs not present in the registry.
var ErrUnknownNetwork = errors.New("unknown network")

// Registry manages network lookups with caching.
type Registry struct {
	db     *gorm.DB
	byID   map[uint16]*types.Network
	byName map[string]*types.Network
	mu     sync.RWMutex
}

// NewStaticRegistry builds a registry from a fixed list, without a DB.
func NewStaticRegistry(networks []types.Network) *Registry {
	r := &Registry{}
	r.index(networks)
	return r
}

// NewRegistry seeds missing default networks and loads every network from DB.
func NewRegistry(db *gorm.DB) (*Registry, error) {
	r := &Registry{db: db}
	if err := r.seed(); err != nil {
		return nil, err
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) seed() error {
	for _, n := range Defaults {
		rpcs := n.RPCs
		n.RPCs = nil
		if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&n).Error; err != nil {
			return fmt.Errorf("seed network %s: %w", n.Name, err)
		}
		var count int64
		if err := r.db.Model(&types.NetworkRPC{}).Where("network_id = ?", n.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		for _, rpc := range rpcs {
			rpc.NetworkID = n.ID
			if err := r.db.Create(&rpc).Error; err != nil {
				return fmt.Errorf("seed rpc %s: %w", rpc.URL, err)
			}
		}
	}
	return nil
}

// Reload refreshes the cache from DB.
func (r *Registry) Reload() error {
	if r.db == nil {
		return nil
	}
	var networks []types.Network
	if err := r.db.Preload("RPCs", "active = ?", true).Find(&networks).Error; err != nil {
		return err
	}
	r.index(networks)
	return nil
}

func (r *Registry) index(networks []types.Network) {
	byID := make(map[uint16]*types.Network, len(networks))
	byName := make(map[string]*types.Network, len(networks))
	for i := range networks {
		n := networks[i]
		byID[n.ID] = &n
		byName[strings.ToLower(n.Name)] = &n
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = byID
	r.byName = byName
}

// ByName returns network by name (case-insensitive).
func (r *Registry) ByName(name string) (types.Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return types.Network{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
	return *n, nil
}

// ByID returns network by ID.
func (r *Registry) ByID(id uint16) (types.Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byID[id]
	if !ok {
		return types.Network{}, fmt.Errorf("%w: id %d", ErrUnknownNetwork, id)
	}
	return *n, nil
}

// All returns every active network ordered by ID.
func (r *Registry) All() []types.Network {
	r.mu.RLock()
	out := make([]types.Network, 0, len(r.byID))
	for _, n := range r.byID {
		if n.Active {
			out = append(out, *n)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RPCURLs returns the active RPC endpoints of a network.
func RPCURLs(n types.Network) []string {
	out := make([]string, 0, len(n.RPCs))
	for _, rpc := range n.RPCs {
		if rpc.Active {
			out = append(out, rpc.URL)
		}
	}
	return out
}

// ExplorerTxURL links a transaction (EVM) or extrinsic (Substrate) on the explorer.
func ExplorerTxURL(n types.Network, hash string) string {
	if n.ExplorerURL == "" || hash == "" {
		return ""
	}
	base := strings.TrimRight(n.ExplorerURL, "/")
	if n.Family == types.FamilyEVM {
		return base + "/tx/" + hash
	}
	return base + "/extrinsic/" + hash
}

// ExplorerAddressURL links an account on the explorer.
func ExplorerAddressURL(n types.Network, addr string) string {
	if n.ExplorerURL == "" || addr == "" {
		return ""
	}
	base := strings.TrimRight(n.ExplorerURL, "/")
	if n.Family == types.FamilyEVM {
		return base + "/address/" + addr
	}
	return base + "/account/" + addr
}
