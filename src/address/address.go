// Package address encodes, decodes and compares account addresses of
// Substrate and EVM networks.
package address

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stake-plus/multisig-relay/src/types"
)

// Ellipsis joins the two halves of a shortened address.
const Ellipsis = "…"

// IsEVM reports whether addr is a 20-byte hex address.
func IsEVM(addr string) bool {
	return common.IsHexAddress(strings.TrimSpace(addr)) && has0x(strings.TrimSpace(addr))
}

// Decode returns the raw account bytes: 20 bytes for EVM addresses, the
// 32-byte public key for SS58 or 0x-prefixed hex keys.
func Decode(addr string) ([]byte, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrInvalidAddress
	}
	if has0x(addr) {
		raw, err := hex.DecodeString(addr[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if len(raw) != 20 && len(raw) != 32 {
			return nil, fmt.Errorf("%w: hex length %d", ErrInvalidAddress, len(raw))
		}
		return raw, nil
	}
	pub, _, err := DecodeSS58(addr)
	return pub, err
}

// Encode renders raw in the network's native form. Substrate addresses are
// re-encoded with the network prefix, EVM addresses are validated and passed
// through. Invalid input yields an empty string.
func Encode(raw string, n types.Network) string {
	raw = strings.TrimSpace(raw)
	if n.Family == types.FamilyEVM {
		if !IsEVM(raw) {
			return ""
		}
		return raw
	}

	pub, err := Decode(raw)
	if err != nil || len(pub) != 32 {
		return ""
	}
	out, err := EncodeSS58(pub, n.SS58Prefix)
	if err != nil {
		return ""
	}
	return out
}

// Checksum returns the EIP-55 form of an EVM address, or "" when invalid.
func Checksum(addr string) string {
	if !IsEVM(addr) {
		return ""
	}
	return common.HexToAddress(strings.TrimSpace(addr)).Hex()
}

// Canonical returns a chain-agnostic lowercase hex form used for uniqueness
// and equality, or "" when addr is invalid.
func Canonical(addr string) string {
	raw, err := Decode(addr)
	if err != nil {
		return ""
	}
	return "0x" + hex.EncodeToString(raw)
}

// Equal reports whether two addresses refer to the same account.
func Equal(a, b string) bool {
	ca := Canonical(a)
	return ca != "" && ca == Canonical(b)
}

// Validate checks that addr belongs to the family of network n.
func Validate(addr string, n types.Network) error {
	if Encode(addr, n) == "" {
		return fmt.Errorf("%w for %s: %q", ErrInvalidAddress, n.Name, addr)
	}
	return nil
}

// Shorten returns prefix…suffix. Strings not longer than prefix+suffix are
// returned unchanged.
func Shorten(addr string, prefix, suffix int) string {
	if prefix < 0 {
		prefix = 0
	}
	if suffix < 0 {
		suffix = 0
	}
	if len(addr) <= prefix+suffix {
		return addr
	}
	return addr[:prefix] + Ellipsis + addr[len(addr)-suffix:]
}

// Display shortens the network encoding of addr, falling back to the raw
// string when it cannot be encoded.
func Display(addr string, n types.Network, prefix, suffix int) string {
	if enc := Encode(addr, n); enc != "" {
		return Shorten(enc, prefix, suffix)
	}
	return addr
}

func has0x(s string) bool {
	return len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X")
}
