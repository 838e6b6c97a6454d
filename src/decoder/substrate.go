package decoder

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/stake-plus/multisig-relay/src/address"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stake-plus/multisig-relay/src/types"
)

const maxDepth = 8

// Substrate decodes SCALE call data with a runtime call table.
type Substrate struct {
	resolver substrate.CallResolver
	prefix   uint16
}

// NewSubstrate returns a decoder rendering accounts with the network prefix.
func NewSubstrate(r substrate.CallResolver, n types.Network) *Substrate {
	return &Substrate{resolver: r, prefix: n.SS58Prefix}
}

// Decode describes callData. On any failure the result degrades to the raw
// call hash and the error is returned for logging only.
func (s *Substrate) Decode(callData []byte) (Decoded, error) {
	callHash := substrate.HexEncode(substrate.CallHash(callData))
	if len(callData) < 2 {
		return raw(types.FamilySubstrate, callHash), fmt.Errorf("call data too short")
	}

	r := substrate.NewReader(callData)
	d, err := s.call(r, 0)
	if err != nil {
		return raw(types.FamilySubstrate, callHash), err
	}
	if r.Remaining() != 0 {
		return raw(types.FamilySubstrate, callHash), fmt.Errorf("%d trailing bytes after %s", r.Remaining(), d.Method)
	}
	d.CallHash = callHash
	return d, nil
}

func (s *Substrate) call(r *substrate.Reader, depth int) (Decoded, error) {
	if depth > maxDepth {
		return Decoded{}, fmt.Errorf("call nesting deeper than %d", maxDepth)
	}
	pallet, err := r.Byte()
	if err != nil {
		return Decoded{}, err
	}
	idx, err := r.Byte()
	if err != nil {
		return Decoded{}, err
	}
	name, ok := s.resolver.Lookup(substrate.CallIndex{Pallet: pallet, Call: idx})
	if !ok {
		return Decoded{}, fmt.Errorf("unknown call index %d.%d", pallet, idx)
	}

	d := Decoded{Family: types.FamilySubstrate, Method: name.String()}
	switch strings.ToLower(name.String()) {
	case "balances.transfer", "balances.transfer_allow_death", "balances.transfer_keep_alive":
		err = s.transfer(r, &d)
	case "balances.force_transfer":
		if _, err = s.multiAddress(r); err == nil {
			err = s.transfer(r, &d)
		}
	case "balances.transfer_all":
		err = s.transferAll(r, &d)
	case "utility.batch", "utility.batch_all", "utility.force_batch":
		err = s.batch(r, &d, depth)
	case "proxy.proxy":
		err = s.proxy(r, &d, depth)
	case "multisig.as_multi":
		err = s.asMulti(r, &d, depth)
	case "multisig.as_multi_threshold_1":
		err = s.asMultiThreshold1(r, &d, depth)
	case "multisig.approve_as_multi", "multisig.cancel_as_multi":
		if depth > 0 {
			return Decoded{}, fmt.Errorf("%s cannot be nested", d.Method)
		}
		d.Kind = KindApproval
		_, err = r.Bytes(r.Remaining())
	default:
		if depth > 0 {
			// argument layout unknown, the rest of an enclosing batch cannot be read
			return Decoded{}, fmt.Errorf("unsupported nested call %s", d.Method)
		}
		d.Kind = KindCustom
		d.CustomTx = true
		_, err = r.Bytes(r.Remaining())
	}
	if err != nil {
		return Decoded{}, fmt.Errorf("%s: %w", d.Method, err)
	}
	return d, nil
}

func (s *Substrate) transfer(r *substrate.Reader, d *Decoded) error {
	dest, err := s.multiAddress(r)
	if err != nil {
		return err
	}
	value, err := r.Compact()
	if err != nil {
		return err
	}
	d.Kind = KindTransfer
	d.Recipients = []Transfer{{To: dest, Value: value.String()}}
	return nil
}

func (s *Substrate) transferAll(r *substrate.Reader, d *Decoded) error {
	dest, err := s.multiAddress(r)
	if err != nil {
		return err
	}
	if _, err := r.Bool(); err != nil {
		return err
	}
	d.Kind = KindTransfer
	d.Recipients = []Transfer{{To: dest, Value: ""}}
	return nil
}

func (s *Substrate) batch(r *substrate.Reader, d *Decoded, depth int) error {
	n, err := r.Len()
	if err != nil {
		return err
	}
	d.Kind = KindBatch
	for i := 0; i < n; i++ {
		in, err := s.call(r, depth+1)
		if err != nil {
			return fmt.Errorf("inner call %d: %w", i, err)
		}
		d.Inner = append(d.Inner, in)
	}
	d.collect()
	return nil
}

func (s *Substrate) proxy(r *substrate.Reader, d *Decoded, depth int) error {
	if _, err := s.multiAddress(r); err != nil {
		return err
	}
	some, err := r.Byte()
	if err != nil {
		return err
	}
	if some == 1 {
		if _, err := r.Byte(); err != nil {
			return err
		}
	}
	return s.wrap(r, d, depth)
}

func (s *Substrate) asMulti(r *substrate.Reader, d *Decoded, depth int) error {
	if _, err := r.U16(); err != nil {
		return err
	}
	if err := s.skipAccounts(r); err != nil {
		return err
	}
	some, err := r.Byte()
	if err != nil {
		return err
	}
	if some == 1 {
		if _, err := r.Bytes(8); err != nil {
			return err
		}
	}
	if err := s.wrap(r, d, depth); err != nil {
		return err
	}
	// max_weight: ref_time, proof_size
	if _, err := r.Compact(); err != nil {
		return err
	}
	_, err = r.Compact()
	return err
}

func (s *Substrate) asMultiThreshold1(r *substrate.Reader, d *Decoded, depth int) error {
	if err := s.skipAccounts(r); err != nil {
		return err
	}
	return s.wrap(r, d, depth)
}

func (s *Substrate) wrap(r *substrate.Reader, d *Decoded, depth int) error {
	in, err := s.call(r, depth+1)
	if err != nil {
		return err
	}
	d.Kind = KindWrapper
	d.Inner = []Decoded{in}
	d.collect()
	return nil
}

func (s *Substrate) skipAccounts(r *substrate.Reader) error {
	n, err := r.Len()
	if err != nil {
		return err
	}
	_, err = r.Bytes(32 * n)
	return err
}

func (s *Substrate) multiAddress(r *substrate.Reader) (string, error) {
	variant, err := r.Byte()
	if err != nil {
		return "", err
	}
	switch variant {
	case substrate.MultiAddressID, substrate.MultiAddressAddress32:
		pub, err := r.AccountID()
		if err != nil {
			return "", err
		}
		return address.EncodeSS58(pub, s.prefix)
	case substrate.MultiAddressIndex:
		idx, err := r.Compact()
		if err != nil {
			return "", err
		}
		return "index:" + idx.String(), nil
	case substrate.MultiAddressRaw:
		n, err := r.Len()
		if err != nil {
			return "", err
		}
		b, err := r.Bytes(n)
		if err != nil {
			return "", err
		}
		return "0x" + hex.EncodeToString(b), nil
	case substrate.MultiAddressAddress20:
		b, err := r.Bytes(20)
		if err != nil {
			return "", err
		}
		return "0x" + hex.EncodeToString(b), nil
	}
	return "", fmt.Errorf("unknown MultiAddress variant %d", variant)
}
