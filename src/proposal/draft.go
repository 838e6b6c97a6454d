package proposal

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/amount"
	"github.com/stake-plus/multisig-relay/src/decoder"
	"github.com/stake-plus/multisig-relay/src/evm"
	"github.com/stake-plus/multisig-relay/src/safe"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
)

const defaultTokenDecimals = 18

// TransferRequest is one recipient as entered by the user. Token selects an
// ERC-20 contract on EVM networks.
type TransferRequest struct {
	To       string `json:"to"`
	Amount   string `json:"amount"`
	Token    string `json:"token,omitempty"`
	Decimals *int32 `json:"decimals,omitempty"`
}

type DraftRequest struct {
	Network   string            `json:"network"`
	Multisig  string            `json:"multisig"`
	Proposer  string            `json:"proposer"`
	Transfers []TransferRequest `json:"transfers"`
	Note      string            `json:"note,omitempty"`
	Category  string            `json:"category,omitempty"`
	Fields    map[string]string `json:"transactionFields,omitempty"`
}

// SafeTx holds the Safe transaction fields of an EVM draft.
type SafeTx struct {
	To        string `json:"to"`
	Value     string `json:"value"`
	Data      string `json:"data,omitempty"`
	Operation uint8  `json:"operation"`
	Nonce     uint64 `json:"nonce"`
}

// Draft is an assembled, unsigned proposal. CallHash is what the proposer
// signs: the blake2-256 call hash on Substrate, the safeTxHash on EVM.
type Draft struct {
	ID          string             `json:"id"`
	State       State              `json:"state"`
	Network     string             `json:"network"`
	NetworkID   uint16             `json:"networkId"`
	Family      string             `json:"family"`
	Multisig    string             `json:"multisig"`
	MultisigID  uint64             `json:"multisigId"`
	Threshold   int                `json:"threshold"`
	Signatories []string           `json:"signatories"`
	Proposer    string             `json:"proposer"`
	Recipients  []decoder.Transfer `json:"recipients"`
	Total       string             `json:"total"`
	CallData    string             `json:"callData"`
	CallHash    string             `json:"callHash"`
	Safe        *SafeTx            `json:"safe,omitempty"`
	Note        string             `json:"note,omitempty"`
	Category    string             `json:"category,omitempty"`
	Fields      map[string]string  `json:"transactionFields,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// Payload returns the bytes the proposer signs.
func (d *Draft) Payload() ([]byte, error) {
	return hexutil.Decode(d.CallHash)
}

func (d *Draft) safeTransaction() (safe.Transaction, error) {
	if d.Safe == nil {
		return safe.Transaction{}, fmt.Errorf("%w: draft has no safe transaction", ErrInvalidState)
	}
	value, ok := new(big.Int).SetString(d.Safe.Value, 10)
	if !ok {
		return safe.Transaction{}, fmt.Errorf("%w: bad safe value %q", ErrInvalidState, d.Safe.Value)
	}
	var data []byte
	if d.Safe.Data != "" {
		b, err := hexutil.Decode(d.Safe.Data)
		if err != nil {
			return safe.Transaction{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		data = b
	}
	return safe.Transaction{
		To:        common.HexToAddress(d.Safe.To),
		Value:     value,
		Data:      data,
		Operation: safe.Operation(d.Safe.Operation),
		Nonce:     d.Safe.Nonce,
	}, nil
}

// Builder drafts and submits proposals.
type Builder struct {
	networks Networks
	store    Store
	chains   Chains
	hook     Hook
	lg       *zap.Logger
	now      func() time.Time
}

// NewBuilder returns a builder. hook may be nil.
func NewBuilder(networks Networks, st Store, chains Chains, hook Hook, lg *zap.Logger) *Builder {
	return &Builder{
		networks: networks,
		store:    st,
		chains:   chains,
		hook:     hook,
		lg:       lg.Named("proposal"),
		now:      time.Now,
	}
}

type transfer struct {
	to     string
	token  string
	amount *big.Int
}

// Draft validates req and assembles the chain payload.
func (b *Builder) Draft(ctx context.Context, req DraftRequest) (*Draft, error) {
	n, err := b.networks.ByName(req.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	ms, err := b.store.MultisigByAddress(ctx, n.ID, req.Multisig)
	if err != nil {
		return nil, fmt.Errorf("multisig %s: %w", req.Multisig, err)
	}
	if ms.Disabled {
		return nil, fmt.Errorf("%w: multisig %s is disabled", ErrInvalidRequest, ms.Address)
	}
	if !store.IsSignatory(ms, req.Proposer) {
		return nil, fmt.Errorf("%w: %s", ErrNotSignatory, req.Proposer)
	}
	if len(req.Transfers) == 0 {
		return nil, fmt.Errorf("%w: no transfers", ErrInvalidRequest)
	}

	transfers, total, err := parseTransfers(req.Transfers, n)
	if err != nil {
		return nil, err
	}

	d := &Draft{
		ID:          uuid.NewString(),
		State:       StateDraft,
		Network:     n.Name,
		NetworkID:   n.ID,
		Family:      n.Family,
		Multisig:    ms.Address,
		MultisigID:  ms.ID,
		Threshold:   ms.Threshold,
		Signatories: ms.SignatoryAddresses(),
		Proposer:    req.Proposer,
		Total:       total.String(),
		Note:        req.Note,
		Category:    req.Category,
		Fields:      req.Fields,
		CreatedAt:   b.now().UTC(),
	}
	for _, t := range transfers {
		d.Recipients = append(d.Recipients, decoder.Transfer{To: t.to, Value: t.amount.String(), Token: t.token})
	}

	switch n.Family {
	case types.FamilySubstrate:
		err = b.draftSubstrate(ctx, n, d, transfers)
	case types.FamilyEVM:
		err = b.draftEVM(ctx, n, ms, d, transfers)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedNetwork, n.Name)
	}
	if err != nil {
		return nil, err
	}

	b.lg.Debug("draft built",
		zap.String("draft_id", d.ID),
		zap.String("network", n.Name),
		zap.String("call_hash", d.CallHash),
		zap.Int("recipients", len(d.Recipients)))
	return d, nil
}

func parseTransfers(reqs []TransferRequest, n types.Network) ([]transfer, *big.Int, error) {
	out := make([]transfer, 0, len(reqs))
	total := new(big.Int)
	for i, r := range reqs {
		if err := address.Validate(r.To, n); err != nil {
			return nil, nil, fmt.Errorf("%w: transfer %d: %w", ErrInvalidRequest, i, err)
		}
		decimals := n.Decimals
		token := strings.TrimSpace(r.Token)
		if token != "" {
			if n.Family != types.FamilyEVM || !common.IsHexAddress(token) {
				return nil, nil, fmt.Errorf("%w: transfer %d: bad token %q", ErrInvalidRequest, i, token)
			}
			token = common.HexToAddress(token).Hex()
			decimals = defaultTokenDecimals
		}
		if r.Decimals != nil {
			decimals = *r.Decimals
		}
		v, err := amount.ToSmallestUnit(r.Amount, decimals)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: transfer %d: %w", ErrInvalidRequest, i, err)
		}
		to := address.Encode(r.To, n)
		if n.Family == types.FamilyEVM {
			to = address.Checksum(to)
		}
		out = append(out, transfer{to: to, token: token, amount: v})
		if token == "" {
			total.Add(total, v)
		}
	}
	return out, total, nil
}

func (b *Builder) draftSubstrate(ctx context.Context, n types.Network, d *Draft, transfers []transfer) error {
	resolver, err := b.resolver(ctx, n)
	if err != nil {
		return err
	}
	cb := substrate.NewCallBuilder(resolver)

	calls := make([][]byte, 0, len(transfers))
	for _, t := range transfers {
		dest, err := address.Decode(t.to)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		call, err := cb.TransferKeepAlive(dest, t.amount)
		if err != nil {
			return fmt.Errorf("build transfer: %w", err)
		}
		calls = append(calls, call)
	}

	call := calls[0]
	if len(calls) > 1 {
		if call, err = cb.BatchAll(calls); err != nil {
			return fmt.Errorf("build batch: %w", err)
		}
	}
	d.CallData = substrate.HexEncode(call)
	d.CallHash = substrate.HexEncode(substrate.CallHash(call))
	return nil
}

func (b *Builder) resolver(ctx context.Context, n types.Network) (substrate.CallResolver, error) {
	if b.chains != nil {
		r, err := b.chains.Resolver(ctx, n)
		if err == nil && r != nil {
			return r, nil
		}
		if err != nil {
			b.lg.Debug("live call table unavailable", zap.String("network", n.Name), zap.Error(err))
		}
	}
	if r, ok := substrate.DefaultResolver(n.Name); ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: no call table for %s", ErrUnsupportedNetwork, n.Name)
}

func (b *Builder) draftEVM(ctx context.Context, n types.Network, ms *types.Multisig, d *Draft, transfers []transfer) error {
	relay, err := b.chains.SafeRelay(n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedNetwork, err)
	}
	safeAddr := common.HexToAddress(ms.Address)
	nonce, err := relay.Nonce(ctx, safeAddr)
	if err != nil {
		return fmt.Errorf("%w: nonce: %v", ErrRelay, err)
	}

	metas := make([]safe.MetaTx, 0, len(transfers))
	for _, t := range transfers {
		meta, err := metaTx(t)
		if err != nil {
			return err
		}
		metas = append(metas, meta)
	}

	tx := safe.Transaction{To: metas[0].To, Value: metas[0].Value, Data: metas[0].Data, Operation: safe.Call, Nonce: nonce}
	if len(metas) > 1 {
		data, err := safe.EncodeMultiSend(metas)
		if err != nil {
			return fmt.Errorf("build multisend: %w", err)
		}
		tx = safe.Transaction{To: safe.MultiSendCallOnly, Value: new(big.Int), Data: data, Operation: safe.DelegateCall, Nonce: nonce}
	}

	d.Safe = &SafeTx{
		To:        tx.To.Hex(),
		Value:     tx.Value.String(),
		Operation: uint8(tx.Operation),
		Nonce:     nonce,
	}
	if len(tx.Data) > 0 {
		d.Safe.Data = hexutil.Encode(tx.Data)
	}
	d.CallData = d.Safe.Data
	d.CallHash = tx.Hash(safeAddr, n.ChainID).Hex()
	return nil
}

func metaTx(t transfer) (safe.MetaTx, error) {
	to := common.HexToAddress(t.to)
	if t.token == "" {
		return safe.MetaTx{Operation: safe.Call, To: to, Value: t.amount}, nil
	}
	data, err := evm.EncodeERC20Transfer(to, t.amount)
	if err != nil {
		return safe.MetaTx{}, fmt.Errorf("encode erc20 transfer: %w", err)
	}
	return safe.MetaTx{Operation: safe.Call, To: common.HexToAddress(t.token), Value: new(big.Int), Data: data}, nil
}
