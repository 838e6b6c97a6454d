// Package substratetest encodes signed multisig extrinsics for tests.
package substratetest

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/stake-plus/multisig-relay/src/substrate"
	"github.com/stretchr/testify/require"
)

// max_weight used for every encoded call.
const (
	refTime   = 1_000_000_000
	proofSize = 65_536
)

// AsMulti encodes Multisig.as_multi(threshold, others, None, call, max_weight).
func AsMulti(t testing.TB, r substrate.CallResolver, threshold uint16, others [][]byte, call []byte) []byte {
	t.Helper()
	out := multisigHeader(t, r, "as_multi", threshold, others)
	out = append(out, call...)
	return append(out, weight(t)...)
}

// ApproveAsMulti encodes Multisig.approve_as_multi(threshold, others, None, callHash, max_weight).
func ApproveAsMulti(t testing.TB, r substrate.CallResolver, threshold uint16, others [][]byte, callHash []byte) []byte {
	t.Helper()
	out := multisigHeader(t, r, "approve_as_multi", threshold, others)
	out = append(out, callHash...)
	return append(out, weight(t)...)
}

// Others returns signatories without self in the order other_signatories
// must be given in.
func Others(self []byte, signatories ...[]byte) [][]byte {
	out := make([][]byte, 0, len(signatories))
	for _, s := range signatories {
		if string(s) != string(self) {
			out = append(out, s)
		}
	}
	return substrate.SortAccounts(out)
}

// Signed wraps call in a signed v4 extrinsic from signer with an immortal
// era and a zero signature. extensions are extra signed-extension bytes
// placed between the tip and the call.
func Signed(t testing.TB, signer, call []byte, extensions ...byte) string {
	t.Helper()
	addr, err := types.NewMultiAddressFromAccountID(signer)
	require.NoError(t, err)

	body := append(append([]byte{}, extensions...), call...)
	require.GreaterOrEqual(t, len(body), 2, "call too short")

	ext := types.Extrinsic{
		Version: types.ExtrinsicVersion4 | types.ExtrinsicBitSigned,
		Signature: types.ExtrinsicSignatureV4{
			Signer:    addr,
			Signature: types.MultiSignature{IsSr25519: true, AsSr25519: types.NewSignature(make([]byte, 64))},
			Era:       types.ExtrinsicEra{IsImmortalEra: true},
			Nonce:     types.NewUCompactFromUInt(0),
			Tip:       types.NewUCompactFromUInt(0),
		},
		Method: types.Call{
			CallIndex: types.CallIndex{SectionIndex: body[0], MethodIndex: body[1]},
			Args:      body[2:],
		},
	}
	enc, err := codec.EncodeToHex(ext)
	require.NoError(t, err)
	return enc
}

func multisigHeader(t testing.TB, r substrate.CallResolver, call string, threshold uint16, others [][]byte) []byte {
	idx, ok := r.Index("Multisig", call)
	require.True(t, ok, "Multisig.%s not in call table", call)

	out := []byte{idx.Pallet, idx.Call}
	out = binary.LittleEndian.AppendUint16(out, threshold)
	n, err := substrate.EncodeCompact(big.NewInt(int64(len(others))))
	require.NoError(t, err)
	out = append(out, n...)
	for _, o := range others {
		out = append(out, o...)
	}
	return append(out, 0) // maybe_timepoint: None
}

func weight(t testing.TB) []byte {
	a, err := substrate.EncodeCompact(big.NewInt(refTime))
	require.NoError(t, err)
	b, err := substrate.EncodeCompact(big.NewInt(proofSize))
	require.NoError(t, err)
	return append(a, b...)
}
