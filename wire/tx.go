package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/aurum-project/aurumd/internal/chainhash"
)

// CoinbaseOutputIndex is the prev.index value that marks a coinbase
// input's null OutPoint (spec.md §3).
const CoinbaseOutputIndex uint32 = 0xFFFFFFFF

// SighashAll is the only supported sighash type.
const SighashAll uint32 = 1

// OutPoint uniquely identifies a transaction output.
type OutPoint struct {
	Txid  chainhash.Hash
	Index uint32
}

// IsNull reports whether this OutPoint is the null OutPoint used by
// coinbase inputs.
func (o OutPoint) IsNull() bool {
	return o.Txid.IsZero() && o.Index == CoinbaseOutputIndex
}

// String renders the OutPoint as "txid:index" in display (reversed) byte
// order for the txid.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Txid.String(), o.Index)
}

// TxInput is a transaction input.
type TxInput struct {
	Prev      OutPoint
	ScriptSig []byte
	Sequence  uint32
}

// TxOutput is a transaction output.
type TxOutput struct {
	Value        uint64
	ScriptPubKey []byte
}

// Transaction is the canonical, tagged transaction record. There is no
// stored "is coinbase" boolean: coinbase-ness is always derived from
// Inputs[0].Prev.
type Transaction struct {
	Version  uint32
	Inputs   []TxInput
	Outputs  []TxOutput
	LockTime uint32
}

// IsCoinbase reports whether tx is a coinbase transaction: exactly the
// shape of its single null-OutPoint input, never a stored flag.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].Prev.IsNull()
}

// Serialize writes the canonical byte encoding of tx to w:
//
//	version || varint(|in|) || inputs || varint(|out|) || outputs || locktime
//
// This is the same encoding used both for the stored/wire form and as the
// base of the sighash (with script_sig substitutions per input, see
// txscript.ComputeSighash).
func (tx *Transaction) Serialize(w io.Writer) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], tx.Version)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(tx.Inputs))); err != nil {
		return err
	}
	for _, in := range tx.Inputs {
		if err := writeOutPoint(w, in.Prev); err != nil {
			return err
		}
		if err := WriteVarBytes(w, in.ScriptSig); err != nil {
			return err
		}
		var seq [4]byte
		binary.LittleEndian.PutUint32(seq[:], in.Sequence)
		if _, err := w.Write(seq[:]); err != nil {
			return err
		}
	}
	if err := WriteVarInt(w, uint64(len(tx.Outputs))); err != nil {
		return err
	}
	for _, out := range tx.Outputs {
		var val [8]byte
		binary.LittleEndian.PutUint64(val[:], out.Value)
		if _, err := w.Write(val[:]); err != nil {
			return err
		}
		if err := WriteVarBytes(w, out.ScriptPubKey); err != nil {
			return err
		}
	}
	var lt [4]byte
	binary.LittleEndian.PutUint32(lt[:], tx.LockTime)
	_, err := w.Write(lt[:])
	return err
}

// Bytes returns the canonical serialized form of tx.
func (tx *Transaction) Bytes() []byte {
	var buf bytes.Buffer
	// Serialize cannot fail writing to a bytes.Buffer.
	_ = tx.Serialize(&buf)
	return buf.Bytes()
}

// SerializeSize returns len(tx.Bytes()) without allocating the buffer.
func (tx *Transaction) SerializeSize() int {
	n := 4 // version
	n += VarIntSerializeSize(uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		n += chainhash.HashSize + 4 // txid + index
		n += VarIntSerializeSize(uint64(len(in.ScriptSig))) + len(in.ScriptSig)
		n += 4 // sequence
	}
	n += VarIntSerializeSize(uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		n += 8 // value
		n += VarIntSerializeSize(uint64(len(out.ScriptPubKey))) + len(out.ScriptPubKey)
	}
	n += 4 // locktime
	return n
}

func writeOutPoint(w io.Writer, o OutPoint) error {
	if _, err := w.Write(o.Txid[:]); err != nil {
		return err
	}
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], o.Index)
	_, err := w.Write(idx[:])
	return err
}

func readOutPoint(r io.Reader) (OutPoint, error) {
	var o OutPoint
	if _, err := io.ReadFull(r, o.Txid[:]); err != nil {
		return o, err
	}
	var idx [4]byte
	if _, err := io.ReadFull(r, idx[:]); err != nil {
		return o, err
	}
	o.Index = binary.LittleEndian.Uint32(idx[:])
	return o, nil
}

// DeserializeTransaction parses a canonically-serialized transaction from r.
func DeserializeTransaction(r io.Reader) (*Transaction, error) {
	tx := &Transaction{}
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	tx.Version = binary.LittleEndian.Uint32(hdr[:])

	numIn, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	tx.Inputs = make([]TxInput, numIn)
	for i := range tx.Inputs {
		prev, err := readOutPoint(r)
		if err != nil {
			return nil, err
		}
		scriptSig, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		var seq [4]byte
		if _, err := io.ReadFull(r, seq[:]); err != nil {
			return nil, err
		}
		tx.Inputs[i] = TxInput{
			Prev:      prev,
			ScriptSig: scriptSig,
			Sequence:  binary.LittleEndian.Uint32(seq[:]),
		}
	}

	numOut, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	tx.Outputs = make([]TxOutput, numOut)
	for i := range tx.Outputs {
		var val [8]byte
		if _, err := io.ReadFull(r, val[:]); err != nil {
			return nil, err
		}
		script, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		tx.Outputs[i] = TxOutput{
			Value:        binary.LittleEndian.Uint64(val[:]),
			ScriptPubKey: script,
		}
	}

	var lt [4]byte
	if _, err := io.ReadFull(r, lt[:]); err != nil {
		return nil, err
	}
	tx.LockTime = binary.LittleEndian.Uint32(lt[:])
	return tx, nil
}

// TxID computes SHA-256d over the canonical serialization of tx. Because
// script_sig is part of that serialization, the txid changes as inputs are
// signed and is stable again once every input has been signed.
func TxID(tx *Transaction) chainhash.Hash {
	return chainhash.HashH(tx.Bytes())
}
