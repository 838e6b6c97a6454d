package substrate

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sort"
)

var multisigSalt = []byte("modlpy/utilisuba")

// ErrInvalidMultisig is returned for signatory sets that cannot form a multisig.
var ErrInvalidMultisig = errors.New("invalid multisig configuration")

// DeriveMultisigAccount computes the Multisig pallet account id for a set of
// 32-byte public keys and a threshold.
func DeriveMultisigAccount(signatories [][]byte, threshold uint16) ([]byte, error) {
	if threshold < 1 || int(threshold) > len(signatories) {
		return nil, fmt.Errorf("%w: threshold %d with %d signatories", ErrInvalidMultisig, threshold, len(signatories))
	}
	sorted := SortAccounts(signatories)
	for i, s := range sorted {
		if len(s) != 32 {
			return nil, fmt.Errorf("%w: signatory %d is %d bytes", ErrInvalidMultisig, i, len(s))
		}
		if i > 0 && bytes.Equal(s, sorted[i-1]) {
			return nil, fmt.Errorf("%w: duplicate signatory", ErrInvalidMultisig)
		}
	}

	n, err := EncodeCompact(big.NewInt(int64(len(sorted))))
	if err != nil {
		return nil, err
	}
	payload := append([]byte{}, multisigSalt...)
	payload = append(payload, n...)
	for _, s := range sorted {
		payload = append(payload, s...)
	}
	th := make([]byte, 2)
	binary.LittleEndian.PutUint16(th, threshold)
	payload = append(payload, th...)
	return Blake2_256(payload), nil
}

// SortAccounts returns a copy of accounts in ascending byte order, the order
// the Multisig pallet expects for other_signatories.
func SortAccounts(accounts [][]byte) [][]byte {
	out := make([][]byte, len(accounts))
	copy(out, accounts)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i], out[j]) < 0 })
	return out
}

// MultisigsKey is the storage key of Multisig.Multisigs(account, callHash).
func MultisigsKey(account, callHash []byte) []byte {
	return StorageKey("Multisig", "Multisigs", Twox64Concat(account), Blake2_128Concat(callHash))
}

// Timepoint locates the extrinsic that opened a multisig operation.
type Timepoint struct {
	Height uint32
	Index  uint32
}

// MultisigEntry is an open operation in Multisig.Multisigs.
type MultisigEntry struct {
	When      Timepoint
	Deposit   *big.Int
	Depositor []byte
	Approvals [][]byte
}

// DecodeMultisigEntry decodes the SCALE value of a Multisig.Multisigs entry.
func DecodeMultisigEntry(raw []byte) (*MultisigEntry, error) {
	r := NewReader(raw)
	var (
		e   MultisigEntry
		err error
	)
	if e.When.Height, err = r.U32(); err != nil {
		return nil, fmt.Errorf("multisig when.height: %w", err)
	}
	if e.When.Index, err = r.U32(); err != nil {
		return nil, fmt.Errorf("multisig when.index: %w", err)
	}
	if e.Deposit, err = r.U128(); err != nil {
		return nil, fmt.Errorf("multisig deposit: %w", err)
	}
	if e.Depositor, err = r.AccountID(); err != nil {
		return nil, fmt.Errorf("multisig depositor: %w", err)
	}
	n, err := r.Len()
	if err != nil {
		return nil, fmt.Errorf("multisig approvals: %w", err)
	}
	for i := 0; i < n; i++ {
		acc, err := r.AccountID()
		if err != nil {
			return nil, fmt.Errorf("multisig approval %d: %w", i, err)
		}
		e.Approvals = append(e.Approvals, acc)
	}
	return &e, nil
}

// AccountInfo is the subset of System.Account used for balances.
type AccountInfo struct {
	Nonce    uint32
	Free     *big.Int
	Reserved *big.Int
	Frozen   *big.Int
}

// SystemAccountKey is the storage key of System.Account(account).
func SystemAccountKey(account []byte) []byte {
	return StorageKey("System", "Account", Blake2_128Concat(account))
}

// DecodeAccountInfo decodes nonce, consumers, providers, sufficients and the
// free, reserved and frozen balances.
func DecodeAccountInfo(raw []byte) (*AccountInfo, error) {
	r := NewReader(raw)
	var info AccountInfo
	var err error
	if info.Nonce, err = r.U32(); err != nil {
		return nil, err
	}
	// consumers, providers, sufficients
	if _, err = r.Bytes(12); err != nil {
		return nil, err
	}
	if info.Free, err = r.U128(); err != nil {
		return nil, err
	}
	if info.Reserved, err = r.U128(); err != nil {
		return nil, err
	}
	if info.Frozen, err = r.U128(); err != nil {
		return nil, err
	}
	return &info, nil
}
