// Package proposal builds, signs and relays multisig transfer proposals.
//
// A proposal moves Draft -> SignedByProposer -> Submitted. Signing,
// simulation and relay failures move it to Failed and nothing is stored.
// Executed is only ever set by the reconciler from relay reports.
package proposal

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stake-plus/multisig-relay/src/notify"
	"github.com/stake-plus/multisig-relay/src/safe"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/types"
)

// State of a proposal
type State string

const (
	StateDraft     State = "draft"
	StateSigned    State = "signedByProposer"
	StateSubmitted State = "submitted"
	StateExecuted  State = "executed"
	StateFailed    State = "failed"
)

var (
	ErrInvalidRequest     = errors.New("proposal: invalid request")
	ErrNotSignatory       = errors.New("proposal: not a signatory of the multisig")
	ErrDuplicateProposal  = errors.New("proposal: call hash already pending for multisig")
	ErrSigning            = errors.New("proposal: signing failed")
	ErrSignatureMismatch  = errors.New("proposal: signature does not match signer")
	ErrSimulation         = errors.New("proposal: simulation failed")
	ErrRelay              = errors.New("proposal: relay rejected submission")
	ErrInvalidState       = errors.New("proposal: invalid state")
	ErrDraftNotFound      = errors.New("proposal: draft not found or expired")
	ErrAlreadyApproved    = errors.New("proposal: already approved by signer")
	ErrUnsupportedNetwork = errors.New("proposal: network has no relay")
)

// Networks resolves network metadata.
type Networks interface {
	ByName(name string) (types.Network, error)
}

// Store is the persistence the proposal flow needs.
type Store interface {
	MultisigByAddress(ctx context.Context, networkID uint16, addr string) (*types.Multisig, error)
	PendingByHash(ctx context.Context, networkID uint16, multisigID uint64, callHash string) (*types.PendingTransaction, error)
	RecordTransaction(ctx context.Context, tx *types.PendingTransaction) error
	AddApproval(ctx context.Context, networkID uint16, multisigID uint64, callHash, signer string) ([]string, error)
}

// SubstrateRelay accepts signed extrinsics.
type SubstrateRelay interface {
	SubmitExtrinsic(ctx context.Context, extrinsic string) (string, error)
}

// SafeRelay is the Safe Transaction Service.
type SafeRelay interface {
	Nonce(ctx context.Context, safe common.Address) (uint64, error)
	Propose(ctx context.Context, req safe.ProposeRequest) error
	Confirm(ctx context.Context, safeTxHash string, sig []byte) error
}

// Simulator dry-runs EVM calls.
type Simulator interface {
	EstimateGas(ctx context.Context, from, to common.Address, value *big.Int, data []byte) (uint64, error)
}

// Chains hands out per-network chain access. Simulator may return nil when no
// RPC is configured; simulation is then skipped.
type Chains interface {
	Resolver(ctx context.Context, n types.Network) (substrate.CallResolver, error)
	SubstrateRelay(ctx context.Context, n types.Network) (SubstrateRelay, error)
	SafeRelay(n types.Network) (SafeRelay, error)
	Simulator(ctx context.Context, n types.Network) (Simulator, error)
}

// Hook receives notification events.
type Hook interface {
	Dispatch(ctx context.Context, ev notify.Event)
}
