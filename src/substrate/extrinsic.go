package substrate

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
)

// ErrNotMultisigExtrinsic is returned for extrinsics that are not a signed
// as_multi or approve_as_multi over the expected call.
var ErrNotMultisigExtrinsic = errors.New("not a multisig extrinsic for this call")

// Signed extensions after era, nonce and tip that gsrpc's v4 layout does not
// decode: the CheckMetadataHash mode byte and an empty asset id for
// ChargeAssetTxPayment. The call is searched for at up to this many bytes
// past where gsrpc expects it.
const maxExtensionTail = 2

// MultisigExtrinsic is a signed Multisig.as_multi or approve_as_multi.
type MultisigExtrinsic struct {
	Signer           []byte
	Call             CallName
	Threshold        uint16
	OtherSignatories [][]byte
	Timepoint        *Timepoint
	CallHash         []byte
}

// DecodeMultisigExtrinsic decodes a signed extrinsic and checks that it is
// as_multi carrying call, or approve_as_multi carrying callHash. call may be
// nil, in which case only approve_as_multi is accepted.
func DecodeMultisigExtrinsic(raw []byte, r CallResolver, callHash, call []byte) (*MultisigExtrinsic, error) {
	var ext types.Extrinsic
	if err := codec.Decode(raw, &ext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMultisigExtrinsic, err)
	}
	if !ext.IsSigned() {
		return nil, fmt.Errorf("%w: extrinsic is unsigned", ErrNotMultisigExtrinsic)
	}
	signer, err := signerAccount(ext.Signature.Signer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMultisigExtrinsic, err)
	}
	method, err := codec.Encode(ext.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMultisigExtrinsic, err)
	}

	var firstErr error
	for skip := 0; skip <= maxExtensionTail && skip < len(method); skip++ {
		mx, err := parseMultisigCall(method[skip:], r, callHash, call)
		if err == nil {
			mx.Signer = signer
			return mx, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrNotMultisigExtrinsic, firstErr)
}

func signerAccount(a types.MultiAddress) ([]byte, error) {
	switch {
	case a.IsID:
		return a.AsID.ToBytes(), nil
	case a.IsAddress32:
		return append([]byte{}, a.AsAddress32[:]...), nil
	}
	return nil, errors.New("signer is not a 32-byte account")
}

func parseMultisigCall(data []byte, r CallResolver, callHash, call []byte) (*MultisigExtrinsic, error) {
	rd := NewReader(data)
	pallet, err := rd.Byte()
	if err != nil {
		return nil, err
	}
	idx, err := rd.Byte()
	if err != nil {
		return nil, err
	}
	name, ok := r.Lookup(CallIndex{Pallet: pallet, Call: idx})
	if !ok {
		return nil, fmt.Errorf("unknown call index %d.%d", pallet, idx)
	}
	asMulti := isCall(name, "Multisig", "as_multi")
	if !asMulti && !isCall(name, "Multisig", "approve_as_multi") {
		return nil, fmt.Errorf("%s is not as_multi or approve_as_multi", name)
	}

	mx := &MultisigExtrinsic{Call: name}
	if mx.Threshold, err = rd.U16(); err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	n, err := rd.Len()
	if err != nil {
		return nil, fmt.Errorf("other_signatories: %w", err)
	}
	for i := 0; i < n; i++ {
		acc, err := rd.AccountID()
		if err != nil {
			return nil, fmt.Errorf("other_signatories: %w", err)
		}
		mx.OtherSignatories = append(mx.OtherSignatories, acc)
	}
	some, err := rd.Bool()
	if err != nil {
		return nil, fmt.Errorf("maybe_timepoint: %w", err)
	}
	if some {
		var tp Timepoint
		if tp.Height, err = rd.U32(); err != nil {
			return nil, fmt.Errorf("maybe_timepoint: %w", err)
		}
		if tp.Index, err = rd.U32(); err != nil {
			return nil, fmt.Errorf("maybe_timepoint: %w", err)
		}
		mx.Timepoint = &tp
	}

	if asMulti {
		if len(call) == 0 {
			return nil, errors.New("as_multi needs the call data to check against")
		}
		inner, err := rd.Bytes(len(call))
		if err != nil || !bytes.Equal(inner, call) {
			return nil, errors.New("as_multi carries a different call")
		}
		mx.CallHash = CallHash(call)
	} else {
		h, err := rd.Bytes(32)
		if err != nil {
			return nil, fmt.Errorf("call_hash: %w", err)
		}
		mx.CallHash = h
	}
	if !bytes.Equal(mx.CallHash, callHash) {
		return nil, fmt.Errorf("call hash %s, expected %s", HexEncode(mx.CallHash), HexEncode(callHash))
	}

	// max_weight: ref_time, proof_size
	if _, err := rd.Compact(); err != nil {
		return nil, fmt.Errorf("max_weight: %w", err)
	}
	if _, err := rd.Compact(); err != nil {
		return nil, fmt.Errorf("max_weight: %w", err)
	}
	if rd.Remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %s", rd.Remaining(), name)
	}
	return mx, nil
}

func isCall(n CallName, pallet, call string) bool {
	return strings.EqualFold(n.Pallet, pallet) && strings.EqualFold(n.Call, call)
}
