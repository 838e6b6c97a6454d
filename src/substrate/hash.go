package substrate

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/crypto/blake2b"
)

// Twox128 implements the TwoX 128-bit hash
func Twox128(data []byte) []byte {
	hash1 := xxhash.NewS64(0)
	hash1.Write(data)
	hash2 := xxhash.NewS64(1)
	hash2.Write(data)

	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[0:], hash1.Sum64())
	binary.LittleEndian.PutUint64(out[8:], hash2.Sum64())
	return out
}

// Twox64 implements the TwoX 64-bit hash
func Twox64(data []byte) []byte {
	hash := xxhash.NewS64(0)
	hash.Write(data)
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, hash.Sum64())
	return out
}

// Twox64Concat is the Twox64Concat storage hasher.
func Twox64Concat(data []byte) []byte {
	return append(Twox64(data), data...)
}

// Blake2_128 implements Blake2b 128-bit hash
func Blake2_128(data []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	return h.Sum(nil)
}

// Blake2_128Concat is the Blake2_128Concat storage hasher.
func Blake2_128Concat(data []byte) []byte {
	return append(Blake2_128(data), data...)
}

// Blake2_256 implements Blake2b 256-bit hash
func Blake2_256(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// StorageKey builds the key of a storage item. Each entry of hashedKeys must
// already be hashed with the item's hasher.
func StorageKey(pallet, item string, hashedKeys ...[]byte) []byte {
	key := append(Twox128([]byte(pallet)), Twox128([]byte(item))...)
	for _, k := range hashedKeys {
		key = append(key, k...)
	}
	return key
}
