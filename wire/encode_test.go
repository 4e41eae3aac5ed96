package wire

import (
	"bytes"
	"testing"

	"github.com/aurum-project/aurumd/internal/chainhash"
)

func sampleTx() *Transaction {
	return &Transaction{
		Version: 1,
		Inputs: []TxInput{{
			Prev:      OutPoint{Txid: chainhash.HashH([]byte("prev")), Index: 1},
			ScriptSig: []byte{0x01, 0x02},
			Sequence:  0xffffffff,
		}},
		Outputs: []TxOutput{{
			Value:        5_000_000,
			ScriptPubKey: []byte{0x76, 0xa9, 0x14},
		}},
		LockTime: 0,
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	tx := sampleTx()
	got, err := DeserializeTransaction(bytes.NewReader(tx.Bytes()))
	if err != nil {
		t.Fatalf("DeserializeTransaction: %v", err)
	}
	if TxID(got) != TxID(tx) {
		t.Fatalf("round-tripped tx has a different txid")
	}
	if got.SerializeSize() != len(tx.Bytes()) {
		t.Fatalf("SerializeSize() = %d, want %d", got.SerializeSize(), len(tx.Bytes()))
	}
}

func TestTxIDStableAcrossScriptSigCopy(t *testing.T) {
	// Per spec.md: txid is computed from the canonical serialization
	// including script_sig, so changing script_sig content (e.g. signing)
	// DOES change the txid — the "stability" contract is that an unsigned
	// tx with empty script_sigs keeps a fixed txid until it is signed, at
	// which point recomputing is expected and final.
	tx := sampleTx()
	before := TxID(tx)
	tx.Inputs[0].ScriptSig = append([]byte{}, tx.Inputs[0].ScriptSig...)
	after := TxID(tx)
	if before != after {
		t.Fatalf("txid changed despite identical script_sig bytes")
	}
}

func TestCoinbaseDetection(t *testing.T) {
	tx := &Transaction{
		Inputs: []TxInput{{
			Prev: OutPoint{Index: CoinbaseOutputIndex},
		}},
	}
	if !tx.IsCoinbase() {
		t.Fatalf("expected coinbase shape to be detected")
	}
	tx.Inputs = append(tx.Inputs, TxInput{})
	if tx.IsCoinbase() {
		t.Fatalf("a second input should disqualify coinbase shape")
	}
}

func TestBlockRoundTrip(t *testing.T) {
	tx := sampleTx()
	txid := TxID(tx)
	b := &Block{
		Header: BlockHeader{
			Version:    1,
			Timestamp:  1700000000,
			Bits:       0x1d00ffff,
			MerkleRoot: MerkleRoot([]chainhash.Hash{txid}),
		},
		Height: 42,
		Txs:    []*Transaction{tx},
	}
	got, err := DeserializeBlock(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("DeserializeBlock: %v", err)
	}
	if got.Header.BlockHash() != b.Header.BlockHash() {
		t.Fatalf("round-tripped block hash mismatch")
	}
	if got.Height != 42 {
		t.Fatalf("height mismatch: %d", got.Height)
	}
}

func TestMerkleRootOddDuplication(t *testing.T) {
	a := chainhash.HashH([]byte("a"))
	b := chainhash.HashH([]byte("b"))
	c := chainhash.HashH([]byte("c"))

	root3 := MerkleRoot([]chainhash.Hash{a, b, c})
	root4 := MerkleRoot([]chainhash.Hash{a, b, c, c})
	if root3 != root4 {
		t.Fatalf("odd-length merkle root should duplicate the last node")
	}
}

func TestMerkleRootSingleElement(t *testing.T) {
	a := chainhash.HashH([]byte("solo"))
	if MerkleRoot([]chainhash.Hash{a}) != a {
		t.Fatalf("single-element merkle root should equal that element")
	}
}
