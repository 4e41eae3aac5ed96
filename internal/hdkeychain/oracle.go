package hdkeychain

import (
	"fmt"

	"github.com/aurum-project/aurumd/internal/ecdsa"
	"github.com/aurum-project/aurumd/internal/hash160"
)

// WalletOracle is an ecdsa.Oracle backed by a BIP44 account: it derives a
// fixed range of external addresses up front and signs with whichever
// one matches the requested pubkey hash, so the core never needs to
// reach into the tree itself (spec.md §1's signing oracle, A5's
// "implementing the signing oracle" requirement — this is the
// HD-derived production oracle, as distinct from ecdsa.NewStaticOracle's
// role as the fixed-keyset test double).
type WalletOracle struct {
	keys map[[20]byte]*ecdsa.PrivateKey
}

// NewWalletOracle derives addressCount external addresses at
// m/44'/coinType'/0'/0/i for i in [0, addressCount) under master and
// indexes them by HASH160(pubkey) for signing.
func NewWalletOracle(master *ExtendedKey, coinType uint32, addressCount uint32) (*WalletOracle, error) {
	if !master.IsPrivate() {
		return nil, fmt.Errorf("hdkeychain: wallet oracle requires a private master key")
	}
	keys := make(map[[20]byte]*ecdsa.PrivateKey, addressCount)
	for i := uint32(0); i < addressCount; i++ {
		child, err := master.DerivePath(BIP44Path(coinType, 0, 0, i))
		if err != nil {
			return nil, fmt.Errorf("hdkeychain: derive external address %d: %w", i, err)
		}
		priv, err := child.PrivateKey()
		if err != nil {
			return nil, err
		}
		pkh := hash160.Sum(priv.PubKey().SerializeCompressed())
		keys[pkh] = priv
	}
	return &WalletOracle{keys: keys}, nil
}

// Sign implements ecdsa.Oracle.
func (w *WalletOracle) Sign(pubKeyHash [20]byte, digest []byte) ([]byte, []byte, error) {
	priv, ok := w.keys[pubKeyHash]
	if !ok {
		return nil, nil, fmt.Errorf("hdkeychain: no derived key for pubkey hash %x", pubKeyHash)
	}
	sig := priv.Sign(digest)
	return sig, priv.PubKey().SerializeCompressed(), nil
}

// PubKeyHashAt returns the HASH160 of the i-th external address, e.g. so
// a caller can confirm a configured payout address matches this wallet
// before relying on it to sign for that address.
func (w *WalletOracle) PubKeyHashAt(master *ExtendedKey, coinType, index uint32) ([20]byte, error) {
	child, err := master.DerivePath(BIP44Path(coinType, 0, 0, index))
	if err != nil {
		return [20]byte{}, fmt.Errorf("hdkeychain: derive external address %d: %w", index, err)
	}
	priv, err := child.PrivateKey()
	if err != nil {
		return [20]byte{}, err
	}
	return hash160.Sum(priv.PubKey().SerializeCompressed()), nil
}
