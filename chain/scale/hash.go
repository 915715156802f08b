package scale

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Twox128 is the 128-bit xxHash used for storage prefixes: xxh64 with
// seeds 0 and 1, each written little-endian.
func Twox128(data []byte) []byte {
	out := make([]byte, 16)
	for seed := uint64(0); seed < 2; seed++ {
		h := xxhash.NewWithSeed(seed)
		_, _ = h.Write(data)
		binary.LittleEndian.PutUint64(out[seed*8:], h.Sum64())
	}
	return out
}

// StorageKey is the key of a plain storage item.
func StorageKey(prefix, item string) []byte {
	return append(Twox128([]byte(prefix)), Twox128([]byte(item))...)
}

// Blake2b256 hashes an encoded extrinsic.
func Blake2b256(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}
