package chainstore

import (
	"testing"

	"github.com/aurum-project/aurumd/chaincfg"
	"github.com/aurum-project/aurumd/internal/chainhash"
	"github.com/aurum-project/aurumd/internal/ecdsa"
	"github.com/aurum-project/aurumd/internal/hash160"
	"github.com/aurum-project/aurumd/txscript"
	"github.com/aurum-project/aurumd/wire"
)

// testRegParams returns RegTestParams with a coinbase maturity small
// enough to exercise spends within a handful of mined blocks.
func testRegParams() *chaincfg.Params {
	p := chaincfg.RegTestParams()
	p.CoinbaseMaturity = 2
	p.Genesis.Bits = p.PowLimitBits
	return p
}

func genesisBlock(p *chaincfg.Params) *wire.Block {
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

// mineBlock grinds the nonce until the header's hash meets bits' target.
// Test-only bits are chosen easy enough that this terminates quickly.
func mineBlock(t *testing.T, prevHash chainhash.Hash, height uint32, bits uint32, timestamp uint32, txs []*wire.Transaction) *wire.Block {
	t.Helper()
	txids := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		txids[i] = wire.TxID(tx)
	}
	header := wire.BlockHeader{
		Version:    1,
		PrevHash:   prevHash,
		MerkleRoot: wire.MerkleRoot(txids),
		Timestamp:  timestamp,
		Bits:       bits,
	}
	target := CompactToBig(bits)
	for nonce := uint32(0); nonce < 5_000_000; nonce++ {
		header.Nonce = nonce
		if HashMeetsTarget(HashToBigEndianInt(header.BlockHash()), target) {
			return &wire.Block{Header: header, Height: height, Txs: txs}
		}
	}
	t.Fatalf("failed to mine test block at height %d within nonce budget", height)
	return nil
}

// mineBlockWithMerkle grinds PoW against an explicit merkle root that need
// not match txs, for tests that want a block whose PoW passes but whose
// merkle check fails.
func mineBlockWithMerkle(t *testing.T, prevHash chainhash.Hash, height uint32, bits uint32, timestamp uint32, merkleRoot chainhash.Hash, txs []*wire.Transaction) *wire.Block {
	t.Helper()
	header := wire.BlockHeader{
		Version:    1,
		PrevHash:   prevHash,
		MerkleRoot: merkleRoot,
		Timestamp:  timestamp,
		Bits:       bits,
	}
	target := CompactToBig(bits)
	for nonce := uint32(0); nonce < 5_000_000; nonce++ {
		header.Nonce = nonce
		if HashMeetsTarget(HashToBigEndianInt(header.BlockHash()), target) {
			return &wire.Block{Header: header, Height: height, Txs: txs}
		}
	}
	t.Fatalf("failed to mine test block at height %d within nonce budget", height)
	return nil
}

func coinbaseTx(t *testing.T, p *chaincfg.Params, height uint32, payTo []byte) *wire.Transaction {
	t.Helper()
	return &wire.Transaction{
		Version: 1,
		Inputs: []wire.TxInput{{
			Prev:      wire.OutPoint{Index: wire.CoinbaseOutputIndex},
			ScriptSig: txscript.CoinbaseScriptSig(height, []byte("test")),
			Sequence:  0xffffffff,
		}},
		Outputs: []wire.TxOutput{{Value: Subsidy(p, height), ScriptPubKey: payTo}},
	}
}

type fakeMempool struct {
	removed  []chainhash.Hash
	readmits []*wire.Transaction
}

func (m *fakeMempool) RemoveConfirmed(txids []chainhash.Hash) {
	m.removed = append(m.removed, txids...)
}

func (m *fakeMempool) Readmit(tx *wire.Transaction) {
	m.readmits = append(m.readmits, tx)
}

func mustPrivAndScript(t *testing.T, p *chaincfg.Params) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	priv, err := ecdsa.NewPrivateKeyFromBytes([]byte("01234567890123456789012345678901"))
	if err != nil {
		t.Fatalf("NewPrivateKeyFromBytes: %v", err)
	}
	script, err := txscript.PayToAddrScript(txscript.EncodeAddress(hash160Of(priv), p.AddressVersion), p.AddressVersion)
	if err != nil {
		t.Fatalf("PayToAddrScript: %v", err)
	}
	return priv, script
}

func hash160Of(priv *ecdsa.PrivateKey) [20]byte {
	pub := priv.PubKey().SerializeCompressed()
	return hash160.Sum(pub)
}

func ecdsaOracle(t *testing.T, priv *ecdsa.PrivateKey, script []byte) ecdsa.Oracle {
	t.Helper()
	pkh, ok := txscript.ExtractPubKeyHash(script)
	if !ok {
		t.Fatalf("script is not P2PKH")
	}
	return ecdsa.NewStaticOracle(map[[20]byte]*ecdsa.PrivateKey{pkh: priv})
}
