package substrate

import (
	"fmt"
	"math/big"
	"strings"
)

// CallIndex identifies a runtime call by pallet and variant index.
type CallIndex struct {
	Pallet uint8
	Call   uint8
}

// CallName identifies a runtime call by pallet and call name.
type CallName struct {
	Pallet string
	Call   string
}

func (n CallName) String() string {
	return n.Pallet + "." + n.Call
}

// CallResolver maps between call indices and names for one runtime.
type CallResolver interface {
	Lookup(idx CallIndex) (CallName, bool)
	Index(pallet, call string) (CallIndex, bool)
}

// StaticResolver is a fixed call table.
type StaticResolver struct {
	byIdx  map[CallIndex]CallName
	byName map[string]CallIndex
}

// NewStaticResolver builds a resolver from name to index entries.
func NewStaticResolver(entries map[CallName]CallIndex) *StaticResolver {
	r := &StaticResolver{
		byIdx:  make(map[CallIndex]CallName, len(entries)),
		byName: make(map[string]CallIndex, len(entries)),
	}
	for name, idx := range entries {
		r.byIdx[idx] = name
		r.byName[nameKey(name.Pallet, name.Call)] = idx
	}
	return r
}

func (r *StaticResolver) Lookup(idx CallIndex) (CallName, bool) {
	n, ok := r.byIdx[idx]
	return n, ok
}

func (r *StaticResolver) Index(pallet, call string) (CallIndex, bool) {
	idx, ok := r.byName[nameKey(pallet, call)]
	return idx, ok
}

func nameKey(pallet, call string) string {
	return strings.ToLower(pallet) + "." + strings.ToLower(call)
}

// Pallet indices of the relay chains, used when live metadata is unavailable.
type palletLayout struct {
	balances, utility, proxy, multisig uint8
}

var layouts = map[string]palletLayout{
	"polkadot": {balances: 5, utility: 26, proxy: 29, multisig: 30},
	"kusama":   {balances: 4, utility: 24, proxy: 30, multisig: 31},
	"westend":  {balances: 4, utility: 16, proxy: 22, multisig: 23},
	"rococo":   {balances: 4, utility: 24, proxy: 30, multisig: 31},
	"astar":    {balances: 31, utility: 11, proxy: 15, multisig: 14},
}

// DefaultResolver returns the built-in call table of a known network.
func DefaultResolver(network string) (*StaticResolver, bool) {
	l, ok := layouts[strings.ToLower(network)]
	if !ok {
		return nil, false
	}
	return NewStaticResolver(map[CallName]CallIndex{
		{"Balances", "transfer_allow_death"}: {l.balances, 0},
		{"Balances", "force_transfer"}:       {l.balances, 2},
		{"Balances", "transfer_keep_alive"}:  {l.balances, 3},
		{"Balances", "transfer_all"}:         {l.balances, 4},
		{"Utility", "batch"}:                 {l.utility, 0},
		{"Utility", "batch_all"}:             {l.utility, 2},
		{"Utility", "force_batch"}:           {l.utility, 4},
		{"Proxy", "proxy"}:                   {l.proxy, 0},
		{"Multisig", "as_multi_threshold_1"}: {l.multisig, 0},
		{"Multisig", "as_multi"}:             {l.multisig, 1},
		{"Multisig", "approve_as_multi"}:     {l.multisig, 2},
		{"Multisig", "cancel_as_multi"}:      {l.multisig, 3},
	}), true
}

// MultiAddress variants
const (
	MultiAddressID        = 0
	MultiAddressIndex     = 1
	MultiAddressRaw       = 2
	MultiAddressAddress32 = 3
	MultiAddressAddress20 = 4
)

// CallBuilder encodes calls for one runtime.
type CallBuilder struct {
	resolver CallResolver
}

// NewCallBuilder returns a builder bound to a resolver.
func NewCallBuilder(r CallResolver) *CallBuilder {
	return &CallBuilder{resolver: r}
}

func (b *CallBuilder) header(pallet, call string) ([]byte, error) {
	idx, ok := b.resolver.Index(pallet, call)
	if !ok {
		return nil, fmt.Errorf("call %s.%s not in runtime", pallet, call)
	}
	return []byte{idx.Pallet, idx.Call}, nil
}

// TransferKeepAlive encodes Balances.transfer_keep_alive(dest, value).
func (b *CallBuilder) TransferKeepAlive(dest []byte, value *big.Int) ([]byte, error) {
	if len(dest) != 32 {
		return nil, fmt.Errorf("dest must be a 32-byte account id, got %d bytes", len(dest))
	}
	call, err := b.header("Balances", "transfer_keep_alive")
	if err != nil {
		return nil, err
	}
	amount, err := EncodeCompact(value)
	if err != nil {
		return nil, err
	}
	call = append(call, MultiAddressID)
	call = append(call, dest...)
	return append(call, amount...), nil
}

// BatchAll encodes Utility.batch_all(calls).
func (b *CallBuilder) BatchAll(calls [][]byte) ([]byte, error) {
	out, err := b.header("Utility", "batch_all")
	if err != nil {
		return nil, err
	}
	n, err := EncodeCompact(big.NewInt(int64(len(calls))))
	if err != nil {
		return nil, err
	}
	out = append(out, n...)
	for _, c := range calls {
		out = append(out, c...)
	}
	return out, nil
}

// CallHash is the blake2-256 hash identifying a call in the Multisig pallet.
func CallHash(call []byte) []byte {
	return Blake2_256(call)
}
