// Package hash160 implements the RIPEMD160(SHA256(x)) digest used to
// derive P2PKH public key hashes.
package hash160

import (
	"crypto/sha256"

	"github.com/decred/dcrd/crypto/ripemd160"
)

// Size is the length, in bytes, of a Hash160 digest.
const Size = ripemd160.Size

// Sum computes RIPEMD160(SHA256(b)).
func Sum(b []byte) [Size]byte {
	sha := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sha[:])
	var out [Size]byte
	copy(out[:], r.Sum(nil))
	return out
}
