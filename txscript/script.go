// Package txscript implements the single canonical P2PKH script template
// this chain supports (spec.md §1 Non-goals: no general script
// interpretation, no SegWit, no Schnorr/Taproot).
package txscript

import "fmt"

// Opcodes used by the P2PKH template.
const (
	OP_DUP         = 0x76
	OP_HASH160     = 0xa9
	OP_EQUALVERIFY = 0x88
	OP_CHECKSIG    = 0xac
	OP_DATA_20     = 0x14
)

// PubKeyHashSize is the length, in bytes, of a HASH160 digest.
const PubKeyHashSize = 20

// PayToPubKeyHashScript builds the canonical P2PKH script_pubkey:
//
//	OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG
func PayToPubKeyHashScript(pubKeyHash [PubKeyHashSize]byte) []byte {
	script := make([]byte, 0, 25)
	script = append(script, OP_DUP, OP_HASH160, OP_DATA_20)
	script = append(script, pubKeyHash[:]...)
	script = append(script, OP_EQUALVERIFY, OP_CHECKSIG)
	return script
}

// ExtractPubKeyHash returns the 20-byte hash embedded in script if script
// is a standard P2PKH script_pubkey, or ok=false otherwise. Grounded on
// the extraction style of the teacher's stdscript.ExtractPubKeyHashV0.
func ExtractPubKeyHash(script []byte) (hash [PubKeyHashSize]byte, ok bool) {
	if len(script) == 25 &&
		script[0] == OP_DUP &&
		script[1] == OP_HASH160 &&
		script[2] == OP_DATA_20 &&
		script[23] == OP_EQUALVERIFY &&
		script[24] == OP_CHECKSIG {

		copy(hash[:], script[3:23])
		return hash, true
	}
	return hash, false
}

// IsPayToPubKeyHash reports whether script is a standard P2PKH
// script_pubkey.
func IsPayToPubKeyHash(script []byte) bool {
	_, ok := ExtractPubKeyHash(script)
	return ok
}

// pushData prefixes data with a single-byte length if it's short enough
// for the canonical script_sig pushes this template needs (signatures and
// compressed pubkeys are always < 0x4c bytes).
func pushData(data []byte) ([]byte, error) {
	if len(data) >= 0x4c {
		return nil, fmt.Errorf("txscript: push data length %d exceeds direct-push limit", len(data))
	}
	out := make([]byte, 0, 1+len(data))
	out = append(out, byte(len(data)))
	out = append(out, data...)
	return out, nil
}

// BuildScriptSig builds script_sig = push(sig||sighashByte) push(pubkey)
// per spec.md §4.1.
func BuildScriptSig(derSig []byte, sighashType byte, compressedPubKey []byte) ([]byte, error) {
	sigPush, err := pushData(append(append([]byte{}, derSig...), sighashType))
	if err != nil {
		return nil, fmt.Errorf("txscript: signature push: %w", err)
	}
	pubKeyPush, err := pushData(compressedPubKey)
	if err != nil {
		return nil, fmt.Errorf("txscript: pubkey push: %w", err)
	}
	out := make([]byte, 0, len(sigPush)+len(pubKeyPush))
	out = append(out, sigPush...)
	out = append(out, pubKeyPush...)
	return out, nil
}

// ParseScriptSig parses a script_sig built by BuildScriptSig, returning
// the DER signature (without the trailing sighash byte), the sighash type
// byte, and the pubkey bytes (whatever length the push carries).
func ParseScriptSig(scriptSig []byte) (derSig []byte, sighashType byte, pubKey []byte, err error) {
	if len(scriptSig) < 2 {
		return nil, 0, nil, fmt.Errorf("txscript: script_sig too short")
	}
	sigLen := int(scriptSig[0])
	if len(scriptSig) < 1+sigLen+1 {
		return nil, 0, nil, fmt.Errorf("txscript: script_sig truncated signature push")
	}
	sigAndType := scriptSig[1 : 1+sigLen]
	if len(sigAndType) == 0 {
		return nil, 0, nil, fmt.Errorf("txscript: empty signature push")
	}
	derSig = sigAndType[:len(sigAndType)-1]
	sighashType = sigAndType[len(sigAndType)-1]

	rest := scriptSig[1+sigLen:]
	if len(rest) < 1 {
		return nil, 0, nil, fmt.Errorf("txscript: script_sig missing pubkey push")
	}
	pkLen := int(rest[0])
	if len(rest) != 1+pkLen {
		return nil, 0, nil, fmt.Errorf("txscript: script_sig has trailing or truncated data")
	}
	pubKey = rest[1:]
	return derSig, sighashType, pubKey, nil
}

// CoinbaseScriptSig builds the script_sig carried by a coinbase input: the
// block height as a little-endian varint-prefixed push, followed by an
// arbitrary miner tag (spec.md §3).
func CoinbaseScriptSig(height uint32, tag []byte) []byte {
	heightBytes := littleEndianMinimal(height)
	out := make([]byte, 0, 1+len(heightBytes)+len(tag))
	out = append(out, byte(len(heightBytes)))
	out = append(out, heightBytes...)
	out = append(out, tag...)
	return out
}

// littleEndianMinimal encodes n as the minimal number of little-endian
// bytes needed to represent it (at least one byte).
func littleEndianMinimal(n uint32) []byte {
	if n == 0 {
		return []byte{0}
	}
	var buf []byte
	for n > 0 {
		buf = append(buf, byte(n))
		n >>= 8
	}
	return buf
}
