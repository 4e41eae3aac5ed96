// Package hdkeychain implements BIP32 extended keys, BIP39 mnemonic
// generation, and BIP44-style derivation paths for the wallet that backs
// the chain's signing oracle.
package hdkeychain

import (
	"crypto/hmac"
	"crypto/sha512"
	"fmt"
	"math/big"

	"github.com/tyler-smith/go-bip39"

	"github.com/aurum-project/aurumd/internal/ecdsa"
)

// RecommendedSeedBits is the recommended BIP39 entropy length for new
// wallets: 256 bits of entropy, producing a 24-word mnemonic.
const RecommendedSeedBits = 256

// HardenedKeyStart is the index of the first hardened child key, per BIP32.
const HardenedKeyStart = uint32(1 << 31)

var curveOrder = func() *big.Int {
	// secp256k1 group order.
	n, ok := new(big.Int).SetString(
		"fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
	if !ok {
		panic("hdkeychain: invalid curve order constant")
	}
	return n
}()

// NewMnemonic generates a new random BIP39 mnemonic at the recommended
// entropy strength.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(RecommendedSeedBits)
	if err != nil {
		return "", fmt.Errorf("hdkeychain: generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("hdkeychain: build mnemonic: %w", err)
	}
	return mnemonic, nil
}

// SeedFromMnemonic derives the 64-byte BIP39 seed from a mnemonic and
// optional passphrase.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("hdkeychain: invalid mnemonic")
	}
	return bip39.NewSeed(mnemonic, passphrase), nil
}

// ExtendedKey is a BIP32 extended key: either private (holds a 32-byte
// scalar) or public (holds a compressed pubkey only), plus chain code and
// derivation metadata needed to derive children.
type ExtendedKey struct {
	key       []byte // 32-byte private scalar, or 33-byte compressed pubkey
	chainCode [32]byte
	depth     uint8
	childNum  uint32
	isPrivate bool
}

// NewMaster derives the BIP32 master extended private key from a seed.
func NewMaster(seed []byte) (*ExtendedKey, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, fmt.Errorf("hdkeychain: seed length %d out of BIP32 range", len(seed))
	}
	mac := hmac.New(sha512.New, []byte("Bitcoin seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)

	il, ir := sum[:32], sum[32:]
	if !validPrivateScalar(il) {
		return nil, fmt.Errorf("hdkeychain: master key scalar out of range, reseed")
	}

	var chainCode [32]byte
	copy(chainCode[:], ir)

	key := make([]byte, 32)
	copy(key, il)

	return &ExtendedKey{
		key:       key,
		chainCode: chainCode,
		depth:     0,
		childNum:  0,
		isPrivate: true,
	}, nil
}

// IsPrivate reports whether this extended key holds a private scalar.
func (k *ExtendedKey) IsPrivate() bool {
	return k.isPrivate
}

// Depth returns the derivation depth of this key (0 for the master key).
func (k *ExtendedKey) Depth() uint8 {
	return k.depth
}

// PrivateKey returns the underlying secp256k1 private key, or an error if
// this is a public-only extended key.
func (k *ExtendedKey) PrivateKey() (*ecdsa.PrivateKey, error) {
	if !k.isPrivate {
		return nil, fmt.Errorf("hdkeychain: not a private extended key")
	}
	return ecdsa.NewPrivateKeyFromBytes(k.key)
}

// pubKeyBytes returns the 33-byte compressed public key for this extended
// key, deriving it from the private scalar if necessary.
func (k *ExtendedKey) pubKeyBytes() ([]byte, error) {
	if !k.isPrivate {
		return k.key, nil
	}
	priv, err := k.PrivateKey()
	if err != nil {
		return nil, err
	}
	return priv.PubKey().SerializeCompressed(), nil
}

// Neuter returns the public-only version of this extended key, which can
// derive non-hardened children and public keys but cannot sign.
func (k *ExtendedKey) Neuter() (*ExtendedKey, error) {
	pub, err := k.pubKeyBytes()
	if err != nil {
		return nil, err
	}
	return &ExtendedKey{
		key:       pub,
		chainCode: k.chainCode,
		depth:     k.depth,
		childNum:  k.childNum,
		isPrivate: false,
	}, nil
}

// Child derives the child extended key at index i. Indices at or above
// HardenedKeyStart produce hardened children, which require a private
// parent key.
func (k *ExtendedKey) Child(i uint32) (*ExtendedKey, error) {
	isHardened := i >= HardenedKeyStart
	if isHardened && !k.isPrivate {
		return nil, fmt.Errorf("hdkeychain: cannot derive hardened child from public key")
	}

	var data []byte
	if isHardened {
		data = make([]byte, 0, 37)
		data = append(data, 0x00)
		data = append(data, k.key...)
	} else {
		pub, err := k.pubKeyBytes()
		if err != nil {
			return nil, err
		}
		data = make([]byte, 0, 37)
		data = append(data, pub...)
	}
	var idxBytes [4]byte
	idxBytes[0] = byte(i >> 24)
	idxBytes[1] = byte(i >> 16)
	idxBytes[2] = byte(i >> 8)
	idxBytes[3] = byte(i)
	data = append(data, idxBytes[:]...)

	mac := hmac.New(sha512.New, k.chainCode[:])
	mac.Write(data)
	sum := mac.Sum(nil)
	il, ir := sum[:32], sum[32:]

	var childChainCode [32]byte
	copy(childChainCode[:], ir)

	if k.isPrivate {
		childScalar, err := addModN(il, k.key)
		if err != nil {
			return nil, err
		}
		return &ExtendedKey{
			key:       childScalar,
			chainCode: childChainCode,
			depth:     k.depth + 1,
			childNum:  i,
			isPrivate: true,
		}, nil
	}

	childPub, err := addPointToPubKey(il, k.key)
	if err != nil {
		return nil, err
	}
	return &ExtendedKey{
		key:       childPub,
		chainCode: childChainCode,
		depth:     k.depth + 1,
		childNum:  i,
		isPrivate: false,
	}, nil
}

// DerivePath walks successive Child derivations for each path element, in
// order, e.g. BIP44's m/44'/coin'/account'/change/index.
func (k *ExtendedKey) DerivePath(path []uint32) (*ExtendedKey, error) {
	cur := k
	for _, idx := range path {
		next, err := cur.Child(idx)
		if err != nil {
			return nil, fmt.Errorf("hdkeychain: derive path element %d: %w", idx, err)
		}
		cur = next
	}
	return cur, nil
}

// BIP44Path builds the m/44'/coinType'/account'/change/index path for this
// chain's single supported purpose (44').
func BIP44Path(coinType, account, change, index uint32) []uint32 {
	return []uint32{
		HardenedKeyStart + 44,
		HardenedKeyStart + coinType,
		HardenedKeyStart + account,
		change,
		index,
	}
}

func validPrivateScalar(b []byte) bool {
	n := new(big.Int).SetBytes(b)
	return n.Sign() != 0 && n.Cmp(curveOrder) < 0
}

func addModN(a, b []byte) ([]byte, error) {
	sum := new(big.Int).Add(new(big.Int).SetBytes(a), new(big.Int).SetBytes(b))
	sum.Mod(sum, curveOrder)
	if sum.Sign() == 0 {
		return nil, fmt.Errorf("hdkeychain: derived scalar is zero, try next index")
	}
	out := make([]byte, 32)
	sum.FillBytes(out)
	return out, nil
}

// addPointToPubKey computes pubkey(il) + parentPub using secp256k1 point
// addition, for public-key-only child derivation.
func addPointToPubKey(il, parentPub []byte) ([]byte, error) {
	tweakPriv, err := ecdsa.NewPrivateKeyFromBytes(il)
	if err != nil {
		return nil, fmt.Errorf("hdkeychain: invalid tweak scalar: %w", err)
	}
	parent, err := ecdsa.ParsePubKey(parentPub)
	if err != nil {
		return nil, err
	}
	combined, err := ecdsa.AddPubKeys(tweakPriv.PubKey(), parent)
	if err != nil {
		return nil, err
	}
	return combined.SerializeCompressed(), nil
}
