package txscript

import (
	"fmt"

	"github.com/aurum-project/aurumd/internal/base58check"
	hash160pkg "github.com/aurum-project/aurumd/internal/hash160"
)

var errNotP2PKH = fmt.Errorf("txscript: not a standard P2PKH script")

func hash160(pubKey []byte) [PubKeyHashSize]byte {
	return hash160pkg.Sum(pubKey)
}

// PayToAddrScript builds the P2PKH script_pubkey for addr, which must be a
// Base58Check-encoded address with the expected version byte.
func PayToAddrScript(addr string, version byte) ([]byte, error) {
	pkh, err := DecodeAddress(addr, version)
	if err != nil {
		return nil, err
	}
	return PayToPubKeyHashScript(pkh), nil
}

// EncodeAddress returns the Base58Check address for a public key hash
// under the given network version byte.
func EncodeAddress(pubKeyHash [PubKeyHashSize]byte, version byte) string {
	return base58check.Encode(version, pubKeyHash[:])
}

// DecodeAddress decodes a Base58Check address, verifying it carries the
// expected version byte, and returns the embedded public key hash.
func DecodeAddress(addr string, wantVersion byte) (pkh [PubKeyHashSize]byte, err error) {
	version, payload, err := base58check.Decode(addr)
	if err != nil {
		return pkh, fmt.Errorf("txscript: decode address: %w", err)
	}
	if version != wantVersion {
		return pkh, fmt.Errorf("txscript: address version 0x%02x does not match network version 0x%02x", version, wantVersion)
	}
	if len(payload) != PubKeyHashSize {
		return pkh, fmt.Errorf("txscript: address payload length %d, want %d", len(payload), PubKeyHashSize)
	}
	copy(pkh[:], payload)
	return pkh, nil
}
