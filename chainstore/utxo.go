package chainstore

import (
	"bytes"

	"github.com/aurum-project/aurumd/wire"
)

// OutPointEntry pairs an OutPoint with the UTXO entry it names, for
// callers that need a snapshot of several entries together (e.g. the
// payout sender's mature-balance snapshot, spec.md §9 TOCTOU fix).
type OutPointEntry struct {
	OutPoint wire.OutPoint
	Entry    UTXOEntry
}

// UTXOEntry describes one unspent output: its value, script, the height
// it was created at, and whether that creating transaction was a
// coinbase (which governs maturity, spec.md §3).
type UTXOEntry struct {
	Value       uint64
	ScriptPubKey []byte
	Height      uint32
	IsCoinbase  bool
}

// IsMature reports whether this entry, if it is a coinbase output, has
// accumulated enough confirmations to be spendable at tipHeight
// (spec.md §3: height_tip − height_output + 1 ≥ 100).
func (e *UTXOEntry) IsMature(tipHeight uint32, maturity uint32) bool {
	if !e.IsCoinbase {
		return true
	}
	confirmations := tipHeight - e.Height + 1
	return confirmations >= maturity
}

// UTXOSet is a set of unspent outputs keyed by OutPoint.
type UTXOSet map[wire.OutPoint]*UTXOEntry

// Get returns the entry for op, or nil if it is not present (spent or
// never existed).
func (s UTXOSet) Get(op wire.OutPoint) *UTXOEntry {
	return s[op]
}

// Put records op as unspent with entry.
func (s UTXOSet) Put(op wire.OutPoint, entry *UTXOEntry) {
	s[op] = entry
}

// Spend removes op from the set, as if consumed by a later input.
func (s UTXOSet) Spend(op wire.OutPoint) {
	delete(s, op)
}

// ApplyTx updates set for tx confirmed at height: every input's OutPoint
// is spent, and every output becomes a new unspent entry.
func ApplyTx(set UTXOSet, tx *wire.Transaction, txid wire.OutPoint, height uint32) {
	isCoinbase := tx.IsCoinbase()
	if !isCoinbase {
		for _, in := range tx.Inputs {
			set.Spend(in.Prev)
		}
	}
	for i, out := range tx.Outputs {
		op := wire.OutPoint{Txid: txid.Txid, Index: uint32(i)}
		set.Put(op, &UTXOEntry{
			Value:        out.Value,
			ScriptPubKey: out.ScriptPubKey,
			Height:       height,
			IsCoinbase:   isCoinbase,
		})
	}
}
