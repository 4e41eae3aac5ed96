package txscript

import (
	"encoding/binary"

	"github.com/aurum-project/aurumd/internal/chainhash"
	"github.com/aurum-project/aurumd/internal/ecdsa"
	"github.com/aurum-project/aurumd/wire"
)

// ComputeSighash builds the scratch transaction described in spec.md §4.1:
// every input's script_sig is emptied except inputIdx, which carries the
// referenced output's script_pubkey; the canonical serialization of that
// scratch transaction is concatenated with a 4-byte little-endian
// SIGHASH_ALL and hashed with SHA-256d.
func ComputeSighash(tx *wire.Transaction, inputIdx int, prevScriptPubKey []byte) chainhash.Hash {
	scratch := &wire.Transaction{
		Version:  tx.Version,
		Outputs:  tx.Outputs,
		LockTime: tx.LockTime,
	}
	scratch.Inputs = make([]wire.TxInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		scriptSig := []byte(nil)
		if i == inputIdx {
			scriptSig = prevScriptPubKey
		}
		scratch.Inputs[i] = wire.TxInput{
			Prev:      in.Prev,
			ScriptSig: scriptSig,
			Sequence:  in.Sequence,
		}
	}

	data := scratch.Bytes()
	var sighashType [4]byte
	binary.LittleEndian.PutUint32(sighashType[:], wire.SighashAll)
	data = append(data, sighashType[:]...)
	return chainhash.HashH(data)
}

// SignInput signs tx.Inputs[i] against prevScriptPubKey using oracle,
// identified by the P2PKH hash embedded in prevScriptPubKey, and sets the
// input's script_sig to the result. It returns an error if
// prevScriptPubKey is not a standard P2PKH script or the oracle has no
// matching key.
func SignInput(tx *wire.Transaction, i int, prevScriptPubKey []byte, oracle ecdsa.Oracle) error {
	pkh, ok := ExtractPubKeyHash(prevScriptPubKey)
	if !ok {
		return errNotP2PKH
	}
	digest := ComputeSighash(tx, i, prevScriptPubKey)
	derSig, pubKey, err := oracle.Sign(pkh, digest[:])
	if err != nil {
		return err
	}
	scriptSig, err := BuildScriptSig(derSig, ecdsa.SighashAll, pubKey)
	if err != nil {
		return err
	}
	tx.Inputs[i].ScriptSig = scriptSig
	return nil
}

// VerifyInput checks that tx.Inputs[i]'s script_sig is a valid signature
// over the sighash for prevScriptPubKey, and that the embedded pubkey
// hashes to the P2PKH hash encoded in prevScriptPubKey.
func VerifyInput(tx *wire.Transaction, i int, prevScriptPubKey []byte) bool {
	pkh, ok := ExtractPubKeyHash(prevScriptPubKey)
	if !ok {
		return false
	}
	derSig, sighashType, pubKeyBytes, err := ParseScriptSig(tx.Inputs[i].ScriptSig)
	if err != nil {
		return false
	}
	if sighashType != ecdsa.SighashAll {
		return false
	}
	gotHash := hash160(pubKeyBytes)
	if gotHash != pkh {
		return false
	}
	pubKey, err := ecdsa.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}
	digest := ComputeSighash(tx, i, prevScriptPubKey)
	return ecdsa.Verify(pubKey, digest[:], derSig)
}
