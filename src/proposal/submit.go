package proposal

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/chain"
	"github.com/stake-plus/multisig-relay/src/notify"
	"github.com/stake-plus/multisig-relay/src/safe"
	"github.com/stake-plus/multisig-relay/src/store"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/types"
	"go.uber.org/zap"
)

const relayOrigin = "multisig-relay"

// Result of a successful submission.
type Result struct {
	CallHash    string                    `json:"callHash"`
	RelayHash   string                    `json:"relayHash,omitempty"`
	State       State                     `json:"state"`
	Transaction *types.PendingTransaction `json:"transaction"`
}

// Submit signs d, verifies the signature against the proposer, relays it
// once and records the pending transaction. Nothing is stored unless the
// relay accepted the submission.
func (b *Builder) Submit(ctx context.Context, d *Draft, signer Signer) (*Result, error) {
	if d.State != StateDraft {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, d.State)
	}
	n, err := b.networks.ByName(d.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	lg := b.lg.With(zap.String("network", n.Name), zap.String("call_hash", d.CallHash))

	if _, err := b.store.PendingByHash(ctx, n.ID, d.MultisigID, d.CallHash); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateProposal, d.CallHash)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	payload, err := d.Payload()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	sig, err := signer.Sign(ctx, d)
	if err != nil {
		d.State = StateFailed
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	if sig.Signer != "" && !address.Equal(sig.Signer, d.Proposer) {
		d.State = StateFailed
		return nil, fmt.Errorf("%w: signed by %s, proposer is %s", ErrSignatureMismatch, sig.Signer, d.Proposer)
	}
	if err := verify(n.Family, d.Proposer, payload, sig.Bytes); err != nil {
		d.State = StateFailed
		return nil, fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	d.State = StateSigned

	var relayHash string
	switch n.Family {
	case types.FamilySubstrate:
		err = b.checkExtrinsic(ctx, n, sig.Extrinsic, d.Proposer, d.Threshold, d.Signatories, d.CallHash, d.CallData)
		if err == nil {
			relayHash, err = b.relaySubstrate(ctx, n, sig.Extrinsic)
		}
	case types.FamilyEVM:
		err = b.relayEVM(ctx, n, d, sig)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedNetwork, n.Name)
	}
	if err != nil {
		d.State = StateFailed
		lg.Warn("proposal failed", zap.Error(err))
		return nil, err
	}
	d.State = StateSubmitted

	tx := &types.PendingTransaction{
		NetworkID:         n.ID,
		CallHash:          d.CallHash,
		CallData:          d.CallData,
		MultisigID:        d.MultisigID,
		Value:             d.Total,
		Proposer:          d.Proposer,
		Approvals:         []string{d.Proposer},
		Threshold:         d.Threshold,
		Status:            types.StatusPending,
		Note:              d.Note,
		Category:          d.Category,
		TransactionFields: d.Fields,
		CreatedAt:         b.now().UTC(),
	}
	if len(d.Recipients) == 1 {
		tx.To = d.Recipients[0].To
	}
	if d.Safe != nil {
		nonce := d.Safe.Nonce
		tx.Nonce = &nonce
	}
	if err := b.store.RecordTransaction(ctx, tx); err != nil {
		// the relay has the proposal; the reconciler cannot recover it without a row
		lg.Error("relay accepted but record failed", zap.Error(err))
		return nil, fmt.Errorf("record proposal: %w", err)
	}
	lg.Info("proposal submitted", zap.String("relay_hash", relayHash))

	b.notify(ctx, n, notify.TriggerInitiated, d.Multisig, d.CallHash, d.Proposer, d.Signatories)
	return &Result{CallHash: d.CallHash, RelayHash: relayHash, State: d.State, Transaction: tx}, nil
}

// checkExtrinsic makes sure a Substrate extrinsic is signer's as_multi or
// approve_as_multi for this multisig and call before it is relayed.
func (b *Builder) checkExtrinsic(ctx context.Context, n types.Network, extrinsic, signer string,
	threshold int, signatories []string, callHash, callData string) error {
	if extrinsic == "" {
		return fmt.Errorf("%w: signed extrinsic required on %s", ErrSigning, n.Name)
	}
	raw, err := substrate.DecodeHex(extrinsic)
	if err != nil {
		return fmt.Errorf("%w: extrinsic: %v", ErrInvalidRequest, err)
	}
	hash, err := substrate.DecodeHex(callHash)
	if err != nil {
		return fmt.Errorf("%w: call hash: %v", ErrInvalidState, err)
	}
	var call []byte
	if callData != "" {
		if call, err = substrate.DecodeHex(callData); err != nil {
			return fmt.Errorf("%w: call data: %v", ErrInvalidState, err)
		}
	}
	resolver, err := b.resolver(ctx, n)
	if err != nil {
		return err
	}

	mx, err := substrate.DecodeMultisigExtrinsic(raw, resolver, hash, call)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	pub, err := address.Decode(signer)
	if err != nil {
		return fmt.Errorf("%w: signer: %v", ErrInvalidRequest, err)
	}
	if !bytes.Equal(mx.Signer, pub) {
		return fmt.Errorf("%w: extrinsic signed by %s, expected %s", ErrSignatureMismatch, substrate.HexEncode(mx.Signer), signer)
	}
	if int(mx.Threshold) != threshold {
		return fmt.Errorf("%w: extrinsic threshold %d, multisig has %d", ErrInvalidRequest, mx.Threshold, threshold)
	}
	others := make([][]byte, 0, len(signatories))
	for _, s := range signatories {
		acc, err := address.Decode(s)
		if err != nil {
			return fmt.Errorf("%w: signatory %s: %v", ErrInvalidState, s, err)
		}
		if !bytes.Equal(acc, pub) {
			others = append(others, acc)
		}
	}
	others = substrate.SortAccounts(others)
	if len(others) != len(mx.OtherSignatories) {
		return fmt.Errorf("%w: extrinsic names %d other signatories, multisig has %d", ErrInvalidRequest, len(mx.OtherSignatories), len(others))
	}
	for i := range others {
		if !bytes.Equal(others[i], mx.OtherSignatories[i]) {
			return fmt.Errorf("%w: other_signatories do not match the multisig", ErrInvalidRequest)
		}
	}
	return nil
}

func (b *Builder) relaySubstrate(ctx context.Context, n types.Network, extrinsic string) (string, error) {
	relay, err := b.chains.SubstrateRelay(ctx, n)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRelay, err)
	}
	hash, err := relay.SubmitExtrinsic(ctx, extrinsic)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRelay, err)
	}
	return hash, nil
}

func (b *Builder) relayEVM(ctx context.Context, n types.Network, d *Draft, sig Signature) error {
	tx, err := d.safeTransaction()
	if err != nil {
		return err
	}
	safeAddr := common.HexToAddress(d.Multisig)

	sim, err := b.chains.Simulator(ctx, n)
	if err != nil {
		b.lg.Debug("simulation skipped", zap.String("network", n.Name), zap.Error(err))
	} else if sim != nil {
		if _, err := sim.EstimateGas(ctx, safeAddr, tx.To, tx.Value, tx.Data); err != nil {
			return fmt.Errorf("%w: %v", ErrSimulation, err)
		}
	}

	relay, err := b.chains.SafeRelay(n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRelay, err)
	}
	req := safe.NewProposeRequest(safeAddr, tx, common.HexToHash(d.CallHash),
		common.HexToAddress(d.Proposer), sig.Bytes, relayOrigin)
	if err := relay.Propose(ctx, req); err != nil {
		return fmt.Errorf("%w: %v", ErrRelay, err)
	}
	return nil
}

// ApproveRequest adds a signatory's approval to a pending proposal.
type ApproveRequest struct {
	Network   string `json:"network"`
	Multisig  string `json:"multisig"`
	CallHash  string `json:"callHash"`
	Signer    string `json:"signer"`
	Signature []byte `json:"signature"`
	// Extrinsic is the signed approve_as_multi or as_multi extrinsic on Substrate.
	Extrinsic string `json:"extrinsic,omitempty"`
}

// Approve verifies the signer's signature over the call hash, relays it once
// and records the approval.
func (b *Builder) Approve(ctx context.Context, req ApproveRequest) ([]string, error) {
	n, err := b.networks.ByName(req.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	ms, err := b.store.MultisigByAddress(ctx, n.ID, req.Multisig)
	if err != nil {
		return nil, fmt.Errorf("multisig %s: %w", req.Multisig, err)
	}
	tx, err := b.store.PendingByHash(ctx, n.ID, ms.ID, req.CallHash)
	if err != nil {
		return nil, err
	}
	if !store.IsSignatory(ms, req.Signer) {
		return nil, fmt.Errorf("%w: %s", ErrNotSignatory, req.Signer)
	}
	for _, a := range tx.Approvals {
		if address.Equal(a, req.Signer) {
			return nil, ErrAlreadyApproved
		}
	}

	payload, err := (&Draft{CallHash: tx.CallHash}).Payload()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := verify(n.Family, req.Signer, payload, req.Signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}

	switch n.Family {
	case types.FamilySubstrate:
		err = b.checkExtrinsic(ctx, n, req.Extrinsic, req.Signer, ms.Threshold, ms.SignatoryAddresses(), tx.CallHash, tx.CallData)
		if err == nil {
			_, err = b.relaySubstrate(ctx, n, req.Extrinsic)
		}
	case types.FamilyEVM:
		var relay SafeRelay
		if relay, err = b.chains.SafeRelay(n); err == nil {
			if err = relay.Confirm(ctx, tx.CallHash, req.Signature); err != nil {
				err = fmt.Errorf("%w: %v", ErrRelay, err)
			}
		} else {
			err = fmt.Errorf("%w: %v", ErrRelay, err)
		}
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedNetwork, n.Name)
	}
	if err != nil {
		return nil, err
	}

	approvals, err := b.store.AddApproval(ctx, n.ID, ms.ID, tx.CallHash, req.Signer)
	if err != nil {
		return nil, err
	}
	b.notify(ctx, n, notify.TriggerApproved, ms.Address, tx.CallHash, req.Signer, ms.SignatoryAddresses())
	return approvals, nil
}

func (b *Builder) notify(ctx context.Context, n types.Network, trigger, multisig, callHash, actor string, signatories []string) {
	if b.hook == nil {
		return
	}
	ev := notify.NewEvent(trigger, n.Name, multisig, callHash, actor, signatories)
	ev.Link = chain.ExplorerAddressURL(n, multisig)
	b.hook.Dispatch(ctx, ev)
}

func verify(family, signer string, payload, sig []byte) error {
	if len(sig) == 0 {
		return errors.New("empty signature")
	}
	if family == types.FamilyEVM {
		return safe.VerifyOwnerSignature(signer, payload, sig)
	}
	pub, err := address.Decode(signer)
	if err != nil {
		return err
	}
	return substrate.VerifySr25519(pub, payload, sig)
}
