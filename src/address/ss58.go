package address

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidAddress is returned when an address cannot be decoded.
var ErrInvalidAddress = errors.New("invalid address")

var ss58Pre = []byte("SS58PRE")

// EncodeSS58 encodes a 32-byte public key with the given network prefix.
func EncodeSS58(pub []byte, prefix uint16) (string, error) {
	if len(pub) != 32 {
		return "", fmt.Errorf("%w: public key length %d", ErrInvalidAddress, len(pub))
	}
	if prefix > 16383 {
		return "", fmt.Errorf("%w: prefix %d out of range", ErrInvalidAddress, prefix)
	}

	payload := append(prefixBytes(prefix), pub...)
	sum := checksum(payload)
	return base58.Encode(append(payload, sum[:2]...)), nil
}

// DecodeSS58 returns the public key and network prefix of an SS58 address.
func DecodeSS58(addr string) ([]byte, uint16, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) < 1 {
		return nil, 0, ErrInvalidAddress
	}

	var prefix uint16
	prefixLen := 1
	switch {
	case raw[0] < 64:
		prefix = uint16(raw[0])
	case raw[0] < 128:
		if len(raw) < 2 {
			return nil, 0, ErrInvalidAddress
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0x3f
		prefix = uint16(lower) | uint16(upper)<<8
		prefixLen = 2
	default:
		return nil, 0, fmt.Errorf("%w: reserved prefix byte %d", ErrInvalidAddress, raw[0])
	}

	if len(raw) != prefixLen+32+2 {
		return nil, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(raw))
	}
	body := raw[:prefixLen+32]
	sum := checksum(body)
	if !bytes.Equal(sum[:2], raw[prefixLen+32:]) {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	pub := make([]byte, 32)
	copy(pub, raw[prefixLen:prefixLen+32])
	return pub, prefix, nil
}

func prefixBytes(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	first := byte((prefix&0x00fc)>>2) | 0x40
	second := byte(prefix>>8) | byte(prefix&0x0003)<<6
	return []byte{first, second}
}

func checksum(payload []byte) [64]byte {
	return blake2b.Sum512(append(append([]byte{}, ss58Pre...), payload...))
}
