package substrate

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
)

// EncodeCompact returns the SCALE compact encoding of v.
func EncodeCompact(v *big.Int) ([]byte, error) {
	if v == nil || v.Sign() < 0 {
		return nil, fmt.Errorf("compact: value must be non-negative")
	}
	return codec.Encode(types.NewUCompact(v))
}

// DecodeHex decodes a hex string, handling 0x prefix
func DecodeHex(s string) ([]byte, error) {
	return codec.HexDecodeString(strings.TrimSpace(s))
}

// HexEncode encodes bytes with a 0x prefix.
func HexEncode(b []byte) string {
	return codec.HexEncodeToString(b)
}

// Reader is a SCALE decoder that tracks how many bytes remain.
type Reader struct {
	buf *bytes.Reader
	dec *scale.Decoder
}

// NewReader wraps raw SCALE bytes.
func NewReader(data []byte) *Reader {
	buf := bytes.NewReader(data)
	return &Reader{buf: buf, dec: scale.NewDecoder(buf)}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return r.buf.Len()
}

// Byte reads one byte.
func (r *Reader) Byte() (byte, error) {
	return r.dec.ReadOneByte()
}

// Bytes reads exactly n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n > r.Remaining() {
		return nil, fmt.Errorf("scale: need %d bytes, have %d", n, r.Remaining())
	}
	out := make([]byte, n)
	if err := r.dec.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Compact reads a compact-encoded unsigned integer.
func (r *Reader) Compact() (*big.Int, error) {
	var c types.UCompact
	if err := r.dec.Decode(&c); err != nil {
		return nil, err
	}
	return new(big.Int).Set((*big.Int)(&c)), nil
}

// Len reads a compact length prefix bounded by the unread bytes.
func (r *Reader) Len() (int, error) {
	n, err := r.Compact()
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() || n.Int64() > int64(r.Remaining()) {
		return 0, fmt.Errorf("scale: length %s exceeds input", n)
	}
	return int(n.Int64()), nil
}

// U16 reads a little-endian u16.
func (r *Reader) U16() (uint16, error) {
	var v types.U16
	err := r.dec.Decode(&v)
	return uint16(v), err
}

// U32 reads a little-endian u32.
func (r *Reader) U32() (uint32, error) {
	var v types.U32
	err := r.dec.Decode(&v)
	return uint32(v), err
}

// U128 reads a little-endian u128.
func (r *Reader) U128() (*big.Int, error) {
	raw, err := r.Bytes(16)
	if err != nil {
		return nil, err
	}
	be := make([]byte, 16)
	for i := range raw {
		be[15-i] = raw[i]
	}
	return new(big.Int).SetBytes(be), nil
}

// Bool reads a SCALE bool.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Byte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("scale: invalid bool byte %d", b)
}

// AccountID reads a 32-byte account id.
func (r *Reader) AccountID() ([]byte, error) {
	return r.Bytes(32)
}
