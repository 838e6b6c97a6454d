package evm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrSignerMismatch is returned when a signature recovers to another address.
var ErrSignerMismatch = errors.New("signature does not match signer")

// Recover returns the address that produced sig over a 32-byte hash. v may be
// 0/1 or 27/28.
func Recover(hash, sig []byte) (common.Address, error) {
	if len(hash) != 32 {
		return common.Address{}, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	s := make([]byte, len(sig))
	copy(s, sig)
	if s[64] >= 27 {
		s[64] -= 27
	}
	if s[64] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", sig[64])
	}
	pub, err := crypto.SigToPub(hash, s)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyHash checks that sig over hash was produced by expected.
func VerifyHash(expected string, hash, sig []byte) error {
	got, err := Recover(hash, sig)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got.Hex(), expected) {
		return fmt.Errorf("%w: recovered %s", ErrSignerMismatch, got.Hex())
	}
	return nil
}

// VerifyPersonalSign checks an EIP-191 personal_sign signature over msg.
func VerifyPersonalSign(expected string, msg []byte, sigHex string) error {
	sig, err := hexutil.Decode(withPrefix(sigHex))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	return VerifyHash(expected, accounts.TextHash(msg), sig)
}

func withPrefix(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
