// Package ecdsa implements the secp256k1 keypairs and DER-encoded
// signatures used as the chain's "signing oracle" (spec.md §1, §4.1).
package ecdsa

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// SighashAll is the only sighash type this chain supports.
const SighashAll byte = 0x01

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps a secp256k1 public key. This package only serializes
// it compressed (33 bytes), so script_sigs it signs carry compressed
// pubkeys; ParsePubKey, and so txscript.VerifyInput, also accepts the
// 65-byte uncompressed form.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// NewPrivateKeyFromBytes parses a 32-byte scalar into a PrivateKey.
func NewPrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("ecdsa: private key must be 32 bytes, got %d", len(b))
	}
	priv := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: priv}, nil
}

// PubKey returns the public key corresponding to priv.
func (priv *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{key: priv.key.PubKey()}
}

// Serialize returns the raw 32-byte scalar.
func (priv *PrivateKey) Serialize() []byte {
	return priv.key.Serialize()
}

// SerializeCompressed returns the 33-byte compressed public key encoding.
func (pub *PublicKey) SerializeCompressed() []byte {
	return pub.key.SerializeCompressed()
}

// ParsePubKey parses a compressed or uncompressed secp256k1 public key.
func ParsePubKey(b []byte) (*PublicKey, error) {
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("ecdsa: invalid public key: %w", err)
	}
	return &PublicKey{key: key}, nil
}

// Sign produces a DER-encoded ECDSA signature (without the trailing
// sighash-type byte) over digest, which must be a 32-byte hash.
func (priv *PrivateKey) Sign(digest []byte) []byte {
	sig := ecdsa.Sign(priv.key, digest)
	return sig.Serialize()
}

// Verify checks a DER-encoded ECDSA signature (without the trailing
// sighash-type byte) over digest against pub.
func Verify(pub *PublicKey, digest, derSig []byte) bool {
	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return false
	}
	return sig.Verify(digest, pub.key)
}

// AddPubKeys returns the elliptic-curve point sum a+b, used by BIP32
// public-key-only (non-hardened) child derivation.
func AddPubKeys(a, b *PublicKey) (*PublicKey, error) {
	var aJac, bJac, sumJac secp256k1.JacobianPoint
	a.key.AsJacobian(&aJac)
	b.key.AsJacobian(&bJac)
	secp256k1.AddNonConst(&aJac, &bJac, &sumJac)
	sumJac.ToAffine()
	sum := secp256k1.NewPublicKey(&sumJac.X, &sumJac.Y)
	return &PublicKey{key: sum}, nil
}

// Oracle is the signing-oracle contract the core consumes (spec.md §1):
// it produces an ECDSA signature over a message digest without the core
// ever holding the private key directly.
type Oracle interface {
	// Sign returns a DER-encoded signature over digest for the given
	// public key hash, or an error if the oracle does not hold the
	// corresponding key.
	Sign(pubKeyHash [20]byte, digest []byte) (sig []byte, pubKey []byte, err error)
}

// staticOracle is a trivial Oracle backed by an in-memory keyset, used
// by wallets and tests that already hold the relevant private keys.
type staticOracle struct {
	keys map[[20]byte]*PrivateKey
}

// NewStaticOracle builds an Oracle over an explicit set of keys, keyed by
// their HASH160.
func NewStaticOracle(keys map[[20]byte]*PrivateKey) Oracle {
	return &staticOracle{keys: keys}
}

func (o *staticOracle) Sign(pubKeyHash [20]byte, digest []byte) ([]byte, []byte, error) {
	priv, ok := o.keys[pubKeyHash]
	if !ok {
		return nil, nil, fmt.Errorf("ecdsa: no key for pubkey hash %x", pubKeyHash)
	}
	sig := priv.Sign(digest)
	return sig, priv.PubKey().SerializeCompressed(), nil
}
