// Package chainhash implements the double-SHA256 hash used throughout the
// chain: block hashes, transaction ids, and merkle nodes.
package chainhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashSize is the size, in bytes, of a hash produced by this package.
const HashSize = 32

// Hash is a fixed-size double-SHA256 digest, stored in internal
// (little-endian) byte order. Display order reverses the bytes.
type Hash [HashSize]byte

// String returns the hash in display (reversed-byte, hex) order, matching
// how block explorers and wire protocols conventionally print hashes.
func (h Hash) String() string {
	var reversed Hash
	for i := 0; i < HashSize/2; i++ {
		reversed[i], reversed[HashSize-1-i] = h[HashSize-1-i], h[i]
	}
	return hex.EncodeToString(reversed[:])
}

// IsZero reports whether h is the all-zero hash, used for the null
// OutPoint.Txid of a coinbase input.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns a copy of the hash's internal byte-order bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// SetBytes sets h from b, which must be HashSize bytes of internal byte
// order.
func (h *Hash) SetBytes(b []byte) error {
	if len(b) != HashSize {
		return fmt.Errorf("chainhash: invalid hash length %d, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return nil
}

// HashB computes SHA-256d(b) (SHA256 applied twice) and returns the raw
// bytes.
func HashB(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// HashH computes SHA-256d(b) and returns it as a Hash.
func HashH(b []byte) Hash {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Less reports whether h sorts before other in raw (internal) byte order,
// used to break ties deterministically (e.g. mempool fee-rate ties).
func Less(h, other Hash) bool {
	for i := 0; i < HashSize; i++ {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}
