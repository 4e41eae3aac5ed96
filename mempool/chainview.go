package mempool

import (
	"github.com/aurum-project/aurumd/chainstore"
	"github.com/aurum-project/aurumd/wire"
)

// StoreView adapts a *chainstore.Store to the narrow ChainView the pool
// needs. It is the only place in this package that imports chainstore,
// keeping Pool's own exported surface independent of the store's
// concrete type (the store itself depends on mempool only through the
// MempoolHandle interface it declares — never the reverse).
type StoreView struct {
	Store *chainstore.Store
}

func (v StoreView) UTXO(op wire.OutPoint) (UTXOEntry, bool) {
	entry := v.Store.UTXO(op)
	if entry == nil {
		return UTXOEntry{}, false
	}
	return UTXOEntry{
		Value:        entry.Value,
		ScriptPubKey: entry.ScriptPubKey,
		Height:       entry.Height,
		IsCoinbase:   entry.IsCoinbase,
	}, true
}

func (v StoreView) Height() uint32 {
	return v.Store.Height()
}

func (v StoreView) CoinbaseMaturity() uint32 {
	return v.Store.Params().CoinbaseMaturity
}
