package payoutsender

import (
	"testing"

	"github.com/aurum-project/aurumd/chaincfg"
	"github.com/aurum-project/aurumd/chainstore"
	"github.com/aurum-project/aurumd/internal/chainhash"
	"github.com/aurum-project/aurumd/internal/ecdsa"
	"github.com/aurum-project/aurumd/internal/hash160"
	"github.com/aurum-project/aurumd/stratum"
	"github.com/aurum-project/aurumd/txscript"
	"github.com/aurum-project/aurumd/wire"
)

func poolKeyAndScript(t *testing.T) (*ecdsa.PrivateKey, []byte, [20]byte) {
	t.Helper()
	priv, err := ecdsa.NewPrivateKeyFromBytes([]byte("22222222222222222222222222222222")[:32])
	if err != nil {
		t.Fatalf("NewPrivateKeyFromBytes: %v", err)
	}
	pkh := hash160.Sum(priv.PubKey().SerializeCompressed())
	return priv, txscript.PayToPubKeyHashScript(pkh), pkh
}

// buildStoreWithMatureCoinbase returns a store whose tip is far enough
// past a coinbase paying poolScript that it counts as mature.
func buildStoreWithMatureCoinbase(t *testing.T, p *chaincfg.Params, poolScript []byte, value uint64) *chainstore.Store {
	t.Helper()
	genesisCoinbase := &wire.Transaction{
		Version: 1,
		Inputs: []wire.TxInput{{
			Prev:     wire.OutPoint{Index: wire.CoinbaseOutputIndex},
			Sequence: 0xffffffff,
		}},
		Outputs: []wire.TxOutput{{Value: value, ScriptPubKey: poolScript}},
	}
	root := wire.MerkleRoot([]chainhash.Hash{wire.TxID(genesisCoinbase)})
	genesis := &wire.Block{
		Header: wire.BlockHeader{Version: 1, MerkleRoot: root, Timestamp: p.Genesis.Timestamp, Bits: p.Genesis.Bits},
		Height: 0,
		Txs:    []*wire.Transaction{genesisCoinbase},
	}
	store := chainstore.New(p, genesis)

	// Commit CoinbaseMaturity empty blocks so the genesis coinbase
	// matures. AddBlock runs full validation, so each one needs its own
	// valid coinbase paying somewhere (doesn't matter where).
	prevHash := genesis.Header.BlockHash()
	for i := uint32(1); i <= p.CoinbaseMaturity; i++ {
		cb := &wire.Transaction{
			Version: 1,
			Inputs: []wire.TxInput{{
				Prev:      wire.OutPoint{Index: wire.CoinbaseOutputIndex},
				ScriptSig: txscript.CoinbaseScriptSig(i, []byte("test")),
				Sequence:  0xffffffff,
			}},
			Outputs: []wire.TxOutput{{Value: chainstore.Subsidy(p, i), ScriptPubKey: poolScript}},
		}
		root := wire.MerkleRoot([]chainhash.Hash{wire.TxID(cb)})
		b := &wire.Block{
			Header: wire.BlockHeader{
				Version:    1,
				PrevHash:   prevHash,
				MerkleRoot: root,
				Timestamp:  p.Genesis.Timestamp + i,
				Bits:       p.PowLimitBits,
			},
			Height: i,
			Txs:    []*wire.Transaction{cb},
		}
		if err := store.AddBlock(b, p.Genesis.Timestamp+i+1); err != nil {
			t.Fatalf("AddBlock(%d): %v", i, err)
		}
		prevHash = b.Header.BlockHash()
	}
	return store
}

func TestRunCyclePaysFullEligiblePayouts(t *testing.T) {
	p := chaincfg.RegTestParams()
	priv, poolScript, pkh := poolKeyAndScript(t)
	store := buildStoreWithMatureCoinbase(t, p, poolScript, 10_000_000)

	accounting := stratum.NewPayoutAccounting(nil, 0, 1)
	accounting.RecordShare("addrA")
	accounting.RecordShare("addrB")
	accounting.DistributeBlock(2_000_000, 0, 1)

	oracle := ecdsa.NewStaticOracle(map[[20]byte]*ecdsa.PrivateKey{pkh: priv})
	sender := NewSender(store, accounting, oracle, poolScript, p.AddressVersion, 1)

	tx, paid, err := sender.RunCycle(1.0, 100)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if tx == nil {
		t.Fatalf("expected a built transaction")
	}
	if len(paid) != 2 {
		t.Fatalf("len(paid) = %d, want 2", len(paid))
	}
	// Both should have been paid in full since the coinbase balance
	// vastly exceeds 2,000,000 + fees.
	snap := accounting.Snapshot()
	if _, ok := snap.Pending["addrA"]; ok {
		t.Fatalf("addrA should have no pending balance left")
	}
	if _, ok := snap.Pending["addrB"]; ok {
		t.Fatalf("addrB should have no pending balance left")
	}
	if len(snap.Completed) != 2 {
		t.Fatalf("len(Completed) = %d, want 2", len(snap.Completed))
	}
	for i := range tx.Inputs {
		if !txscript.VerifyInput(tx, i, poolScript) {
			t.Fatalf("input %d does not verify against the pool script", i)
		}
	}
}

func TestRunCycleSkipsBalancesBelowMinPayout(t *testing.T) {
	p := chaincfg.RegTestParams()
	priv, poolScript, pkh := poolKeyAndScript(t)
	store := buildStoreWithMatureCoinbase(t, p, poolScript, 10_000_000)

	accounting := stratum.NewPayoutAccounting(nil, 0, 1)
	accounting.RecordShare("addrA")
	accounting.DistributeBlock(10, 0, 1) // tiny balance, below any reasonable minPayout

	oracle := ecdsa.NewStaticOracle(map[[20]byte]*ecdsa.PrivateKey{pkh: priv})
	sender := NewSender(store, accounting, oracle, poolScript, p.AddressVersion, 1000)

	tx, paid, err := sender.RunCycle(1.0, 100)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if tx != nil || len(paid) != 0 {
		t.Fatalf("expected nothing payable below minPayout, got tx=%v paid=%v", tx, paid)
	}
}

func TestRunCycleReturnsNilWithNoMatureBalance(t *testing.T) {
	p := chaincfg.RegTestParams()
	_, poolScript, pkh := poolKeyAndScript(t)

	genesisCoinbase := &wire.Transaction{
		Version: 1,
		Inputs: []wire.TxInput{{
			Prev:     wire.OutPoint{Index: wire.CoinbaseOutputIndex},
			Sequence: 0xffffffff,
		}},
		Outputs: []wire.TxOutput{{Value: 5000, ScriptPubKey: poolScript}},
	}
	root := wire.MerkleRoot([]chainhash.Hash{wire.TxID(genesisCoinbase)})
	genesis := &wire.Block{
		Header: wire.BlockHeader{Version: 1, MerkleRoot: root, Timestamp: p.Genesis.Timestamp, Bits: p.Genesis.Bits},
		Height: 0,
		Txs:    []*wire.Transaction{genesisCoinbase},
	}
	store := chainstore.New(p, genesis)

	accounting := stratum.NewPayoutAccounting(nil, 0, 1)
	accounting.RecordShare("addrA")
	accounting.DistributeBlock(1000, 0, 1)

	oracle := ecdsa.NewStaticOracle(map[[20]byte]*ecdsa.PrivateKey{pkh: nil})
	sender := NewSender(store, accounting, oracle, poolScript, p.AddressVersion, 1)

	// The coinbase is still immature (1 confirmation of the 10 regtest
	// requires), so the
	// snapshot is empty and nothing should be built.
	tx, paid, err := sender.RunCycle(1.0, 100)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if tx != nil || paid != nil {
		t.Fatalf("expected no payout with an immature-only balance, got tx=%v paid=%v", tx, paid)
	}
}
