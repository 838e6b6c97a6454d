package substrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/cosmos/go-bip39"
)

var signingContext = []byte("substrate")

// ErrBadSignature is returned when an sr25519 signature does not verify.
var ErrBadSignature = errors.New("sr25519 signature verification failed")

// VerifySr25519 checks sig over msg for the 32-byte public key pub. Messages
// wrapped as <Bytes>…</Bytes> by browser extensions are also accepted.
func VerifySr25519(pub, msg, sig []byte) error {
	if len(pub) != 32 {
		return fmt.Errorf("invalid public key length: %d", len(pub))
	}
	if len(sig) != 64 {
		return fmt.Errorf("invalid signature length: %d", len(sig))
	}

	var pkRaw [32]byte
	copy(pkRaw[:], pub)
	var sigRaw [64]byte
	copy(sigRaw[:], sig)

	var pk schnorrkel.PublicKey
	if err := pk.Decode(pkRaw); err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	var s schnorrkel.Signature
	if err := s.Decode(sigRaw); err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	for _, m := range [][]byte{msg, wrapBytes(msg)} {
		ok, err := pk.Verify(&s, schnorrkel.NewSigningContext(signingContext, m))
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if ok {
			return nil
		}
	}
	return ErrBadSignature
}

func wrapBytes(msg []byte) []byte {
	out := append([]byte("<Bytes>"), msg...)
	return append(out, []byte("</Bytes>")...)
}

// Keypair is an sr25519 key used for signing from the command line.
type Keypair struct {
	secret *schnorrkel.SecretKey
	public [32]byte
}

// KeypairFromSeed accepts a bip39 mnemonic or a 0x-prefixed 32-byte mini secret.
func KeypairFromSeed(seed string) (*Keypair, error) {
	seed = strings.TrimSpace(seed)
	var mini [32]byte

	if strings.HasPrefix(seed, "0x") {
		raw, err := DecodeHex(seed)
		if err != nil {
			return nil, fmt.Errorf("decode hex key: %w", err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("invalid key length: expected 32 bytes, got %d", len(raw))
		}
		copy(mini[:], raw)
	} else {
		entropy, err := bip39.NewSeedWithErrorChecking(seed, "")
		if err != nil {
			return nil, fmt.Errorf("invalid seed phrase: %w", err)
		}
		copy(mini[:], entropy[:32])
	}

	miniSecret, err := schnorrkel.NewMiniSecretKeyFromRaw(mini)
	if err != nil {
		return nil, fmt.Errorf("create mini secret key: %w", err)
	}
	secret := miniSecret.ExpandEd25519()
	pub, err := secret.Public()
	if err != nil {
		return nil, fmt.Errorf("get public key: %w", err)
	}
	return &Keypair{secret: secret, public: pub.Encode()}, nil
}

// PublicKey returns the 32-byte public key.
func (k *Keypair) PublicKey() []byte {
	out := make([]byte, 32)
	copy(out, k.public[:])
	return out
}

// Sign signs msg in the substrate signing context.
func (k *Keypair) Sign(msg []byte) ([]byte, error) {
	sig, err := k.secret.Sign(schnorrkel.NewSigningContext(signingContext, msg))
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	encoded := sig.Encode()
	return encoded[:], nil
}
