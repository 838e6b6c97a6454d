package proposal

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stake-plus/multisig-relay/src/substrate"
)

// Signature is a signer's output. Extrinsic carries the signed Substrate
// extrinsic that the relay submits.
type Signature struct {
	Signer    string `json:"signer"`
	Bytes     []byte `json:"signature"`
	Extrinsic string `json:"extrinsic,omitempty"`
}

// Signer signs a draft's payload.
type Signer interface {
	Sign(ctx context.Context, d *Draft) (Signature, error)
}

// StaticSigner returns a signature produced elsewhere, e.g. by a browser wallet.
type StaticSigner Signature

func (s StaticSigner) Sign(context.Context, *Draft) (Signature, error) {
	if len(s.Bytes) == 0 {
		return Signature{}, fmt.Errorf("no signature provided")
	}
	return Signature(s), nil
}

// Sr25519Signer signs with a local sr25519 key.
type Sr25519Signer struct {
	kp        *substrate.Keypair
	extrinsic string
}

// NewSr25519Signer accepts a mnemonic or 0x mini secret. extrinsic is passed
// through to the relay unchanged.
func NewSr25519Signer(seed, extrinsic string) (*Sr25519Signer, error) {
	kp, err := substrate.KeypairFromSeed(seed)
	if err != nil {
		return nil, err
	}
	return &Sr25519Signer{kp: kp, extrinsic: extrinsic}, nil
}

// Address returns the hex public key.
func (s *Sr25519Signer) Address() string {
	return substrate.HexEncode(s.kp.PublicKey())
}

func (s *Sr25519Signer) Sign(_ context.Context, d *Draft) (Signature, error) {
	payload, err := d.Payload()
	if err != nil {
		return Signature{}, err
	}
	sig, err := s.kp.Sign(payload)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Signer: s.Address(), Bytes: sig, Extrinsic: s.extrinsic}, nil
}

// EcdsaSigner signs safeTxHashes with a local secp256k1 key.
type EcdsaSigner struct {
	key *ecdsa.PrivateKey
}

// NewEcdsaSigner parses a hex private key, with or without 0x.
func NewEcdsaSigner(hexKey string) (*EcdsaSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &EcdsaSigner{key: key}, nil
}

func (s *EcdsaSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *EcdsaSigner) Sign(_ context.Context, d *Draft) (Signature, error) {
	payload, err := d.Payload()
	if err != nil {
		return Signature{}, err
	}
	sig, err := SignHash(s.key, payload)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Signer: s.Address().Hex(), Bytes: sig}, nil
}

// SignHash signs a 32-byte hash and returns r||s||v with v in {27, 28}.
func SignHash(key *ecdsa.PrivateKey, hash []byte) ([]byte, error) {
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("sign hash: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
