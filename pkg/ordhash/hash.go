package ordhash

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HashAlg selects the key hash used for bucket placement.
//
// The algorithm is recorded in the region header at Format time so that every
// process attaching to the region places keys in the same buckets.
type HashAlg uint32

const (
	// HashFNV1a is FNV-1a 64-bit. It is the default.
	HashFNV1a HashAlg = 1

	// HashXXH64 is xxHash64 with seed 0. Faster for long keys.
	HashXXH64 HashAlg = 2
)

// String returns the config spelling of the algorithm.
func (h HashAlg) String() string {
	switch h {
	case HashFNV1a:
		return "fnv1a"
	case HashXXH64:
		return "xxh64"
	default:
		return fmt.Sprintf("hash(%d)", uint32(h))
	}
}

// ParseHashAlg parses the config spelling returned by [HashAlg.String].
// The empty string selects [HashFNV1a].
func ParseHashAlg(s string) (HashAlg, error) {
	switch s {
	case "", "fnv1a":
		return HashFNV1a, nil
	case "xxh64":
		return HashXXH64, nil
	default:
		return 0, fmt.Errorf("unknown hash %q (want fnv1a or xxh64): %w", s, ErrInvalidInput)
	}
}

// FNV-1a 64-bit hash constants.
const (
	fnv1aOffsetBasis uint64 = 14695981039346656037
	fnv1aPrime       uint64 = 1099511628211
)

// fnv1a64 computes the FNV-1a 64-bit hash over key bytes.
func fnv1a64(key []byte) uint64 {
	hash := fnv1aOffsetBasis
	for _, b := range key {
		hash ^= uint64(b)
		hash *= fnv1aPrime
	}

	return hash
}

func hashFunc(alg HashAlg) (func([]byte) uint64, error) {
	switch alg {
	case HashFNV1a:
		return fnv1a64, nil
	case HashXXH64:
		return xxhash.Sum64, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %d: %w", uint32(alg), ErrIncompatible)
	}
}
