package chainstore

import (
	"github.com/aurum-project/aurumd/chaincfg"
	"github.com/aurum-project/aurumd/internal/chainhash"
	"github.com/aurum-project/aurumd/txscript"
	"github.com/aurum-project/aurumd/wire"
)

// BuildGenesisBlock constructs the canonical height-0 block for params: a
// single zero-value coinbase carrying the network's miner tag, accepted
// by fiat rather than through validateBlockLocked (spec.md §4.2: genesis has no
// parent to check PoW or a merkle ancestor against).
func BuildGenesisBlock(p *chaincfg.Params) *wire.Block {
	coinbase := &wire.Transaction{
		Version: 1,
		Inputs: []wire.TxInput{{
			Prev:      wire.OutPoint{Index: wire.CoinbaseOutputIndex},
			ScriptSig: txscript.CoinbaseScriptSig(0, []byte(p.Genesis.MinerTag)),
			Sequence:  0xffffffff,
		}},
		Outputs: []wire.TxOutput{{Value: 0, ScriptPubKey: nil}},
	}
	root := wire.MerkleRoot([]chainhash.Hash{wire.TxID(coinbase)})
	return &wire.Block{
		Header: wire.BlockHeader{
			Version:    p.Genesis.Version,
			PrevHash:   chainhash.Hash{},
			MerkleRoot: root,
			Timestamp:  p.Genesis.Timestamp,
			Bits:       p.Genesis.Bits,
			Nonce:      p.Genesis.Nonce,
		},
		Height: 0,
		Txs:    []*wire.Transaction{coinbase},
	}
}
