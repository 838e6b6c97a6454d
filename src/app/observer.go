package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/safe"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/types"
)

// inclusionGrace is how long a fresh proposal may be missing on chain before
// its absence is read as closed.
const inclusionGrace = 2 * time.Minute

type multisigReader interface {
	MultisigEntry(ctx context.Context, account, callHash []byte) (*substrate.MultisigEntry, bool, error)
}

type safeTxReader interface {
	GetTransaction(ctx context.Context, safeTxHash string) (*safe.MultisigTx, error)
	Nonce(ctx context.Context, safe common.Address) (uint64, error)
}

// Observer reads the relay state of pending proposals for the reconciler.
type Observer struct {
	substrate func(ctx context.Context, n types.Network) (multisigReader, error)
	safes     func(n types.Network) (safeTxReader, error)
	grace     time.Duration
	now       func() time.Time
}

var _ store.Observer = (*Observer)(nil)

// NewObserver observes through the clients cached in c.
func NewObserver(c *Chains) *Observer {
	return &Observer{
		substrate: c.multisigReader,
		safes:     c.safeTxReader,
		grace:     inclusionGrace,
		now:       time.Now,
	}
}

func (o *Observer) Observe(ctx context.Context, n types.Network, ms *types.Multisig, tx *types.PendingTransaction) (store.Observation, error) {
	switch n.Family {
	case types.FamilySubstrate:
		return o.observeSubstrate(ctx, n, ms, tx)
	case types.FamilyEVM:
		return o.observeSafe(ctx, n, ms, tx)
	default:
		return store.Observation{}, fmt.Errorf("unknown family %q", n.Family)
	}
}

func (o *Observer) fresh(tx *types.PendingTransaction) bool {
	return o.now().Sub(tx.CreatedAt) < o.grace
}

// observeSubstrate looks up Multisig.Multisigs. A missing entry means the
// operation closed: executed when the last approval could have been the
// final one, cancelled otherwise.
func (o *Observer) observeSubstrate(ctx context.Context, n types.Network, ms *types.Multisig, tx *types.PendingTransaction) (store.Observation, error) {
	reader, err := o.substrate(ctx, n)
	if err != nil {
		return store.Observation{}, err
	}
	account, err := address.Decode(ms.Address)
	if err != nil {
		return store.Observation{}, fmt.Errorf("multisig address: %w", err)
	}
	hash, err := hexutil.Decode(tx.CallHash)
	if err != nil {
		return store.Observation{}, fmt.Errorf("call hash: %w", err)
	}

	entry, ok, err := reader.MultisigEntry(ctx, account, hash)
	if err != nil {
		return store.Observation{}, err
	}
	if ok {
		approvals := make([]string, 0, len(entry.Approvals))
		for _, pub := range entry.Approvals {
			a, err := address.EncodeSS58(pub, n.SS58Prefix)
			if err != nil {
				return store.Observation{}, err
			}
			approvals = append(approvals, a)
		}
		return store.Observation{Approvals: approvals}, nil
	}
	if o.fresh(tx) {
		return store.Observation{}, nil
	}
	if len(tx.Approvals) >= tx.Threshold-1 {
		return store.Observation{Executed: true}, nil
	}
	return store.Observation{Cancelled: true}, nil
}

// observeSafe asks the Safe service. A tx the service does not know, or
// one whose nonce was consumed by another tx, is cancelled.
func (o *Observer) observeSafe(ctx context.Context, n types.Network, ms *types.Multisig, tx *types.PendingTransaction) (store.Observation, error) {
	reader, err := o.safes(n)
	if err != nil {
		return store.Observation{}, err
	}
	st, err := reader.GetTransaction(ctx, tx.CallHash)
	if errors.Is(err, safe.ErrNotFound) {
		if o.fresh(tx) {
			return store.Observation{}, nil
		}
		return store.Observation{Cancelled: true}, nil
	}
	if err != nil {
		return store.Observation{}, err
	}

	obs := store.Observation{}
	for _, c := range st.Confirmations {
		obs.Approvals = append(obs.Approvals, address.Checksum(c.Owner))
	}
	if st.IsExecuted {
		obs.Executed = true
		if st.ExecutionDate != nil {
			obs.ExecutedAt = *st.ExecutionDate
		}
		return obs, nil
	}

	nonce, err := strconv.ParseUint(st.Nonce.String(), 10, 64)
	if err != nil {
		return obs, nil
	}
	current, err := reader.Nonce(ctx, common.HexToAddress(ms.Address))
	if err != nil {
		return obs, nil
	}
	if current > nonce {
		obs.Cancelled = true
	}
	return obs, nil
}
