package mempool

import (
	"errors"
	"testing"

	"github.com/aurum-project/aurumd/internal/ecdsa"
	"github.com/aurum-project/aurumd/internal/hash160"
	"github.com/aurum-project/aurumd/txscript"
	"github.com/aurum-project/aurumd/wire"
)

// fakeChain is a minimal ChainView for tests that don't need a real
// chainstore.Store.
type fakeChain struct {
	utxos    map[wire.OutPoint]UTXOEntry
	height   uint32
	maturity uint32
}

func newFakeChain() *fakeChain {
	return &fakeChain{utxos: map[wire.OutPoint]UTXOEntry{}, maturity: 100}
}

func (c *fakeChain) UTXO(op wire.OutPoint) (UTXOEntry, bool) {
	e, ok := c.utxos[op]
	return e, ok
}
func (c *fakeChain) Height() uint32           { return c.height }
func (c *fakeChain) CoinbaseMaturity() uint32 { return c.maturity }

func testKeyAndScript(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	priv, err := ecdsa.NewPrivateKeyFromBytes([]byte("11111111111111111111111111111111")[:32])
	if err != nil {
		t.Fatalf("NewPrivateKeyFromBytes: %v", err)
	}
	pkh := hash160.Sum(priv.PubKey().SerializeCompressed())
	return priv, txscript.PayToPubKeyHashScript(pkh)
}

func signedSpend(t *testing.T, priv *ecdsa.PrivateKey, script []byte, prev wire.OutPoint, value uint64) *wire.Transaction {
	t.Helper()
	pkh, _ := txscript.ExtractPubKeyHash(script)
	oracle := ecdsa.NewStaticOracle(map[[20]byte]*ecdsa.PrivateKey{pkh: priv})
	tx := &wire.Transaction{
		Inputs:  []wire.TxInput{{Prev: prev}},
		Outputs: []wire.TxOutput{{Value: value, ScriptPubKey: script}},
	}
	if err := txscript.SignInput(tx, 0, script, oracle); err != nil {
		t.Fatalf("SignInput: %v", err)
	}
	return tx
}

func TestAddRejectsDoubleSpend(t *testing.T) {
	chain := newFakeChain()
	priv, script := testKeyAndScript(t)
	prev := wire.OutPoint{Index: 0}
	chain.utxos[prev] = UTXOEntry{Value: 1000, ScriptPubKey: script}

	p := New(chain, 0, 0)
	txA := signedSpend(t, priv, script, prev, 900)
	if err := p.Add(txA, 1, false); err != nil {
		t.Fatalf("admit txA: %v", err)
	}

	txB := &wire.Transaction{
		Inputs:  []wire.TxInput{{Prev: prev}},
		Outputs: []wire.TxOutput{{Value: 800, ScriptPubKey: script}},
	}
	pkh, _ := txscript.ExtractPubKeyHash(script)
	oracle := ecdsa.NewStaticOracle(map[[20]byte]*ecdsa.PrivateKey{pkh: priv})
	if err := txscript.SignInput(txB, 0, script, oracle); err != nil {
		t.Fatalf("sign txB: %v", err)
	}

	err := p.Add(txB, 2, false)
	var rej *RejectError
	if !errors.As(err, &rej) || rej.Kind != ErrClaimedOutPoint {
		t.Fatalf("got err %v, want ErrClaimedOutPoint", err)
	}
	if p.Size() != 1 {
		t.Fatalf("pool size = %d, want 1 after rejected double-spend", p.Size())
	}
}

func TestAddRejectsDuplicateTxid(t *testing.T) {
	chain := newFakeChain()
	priv, script := testKeyAndScript(t)
	prev := wire.OutPoint{Index: 0}
	chain.utxos[prev] = UTXOEntry{Value: 1000, ScriptPubKey: script}

	p := New(chain, 0, 0)
	tx := signedSpend(t, priv, script, prev, 900)
	if err := p.Add(tx, 1, false); err != nil {
		t.Fatalf("admit: %v", err)
	}
	err := p.Add(tx, 2, false)
	if kind, ok := errKind(err); !ok || kind != ErrDuplicateTx {
		t.Fatalf("got err %v, want ErrDuplicateTx", err)
	}
}

func TestAddRejectsCoinbaseShape(t *testing.T) {
	chain := newFakeChain()
	p := New(chain, 0, 0)
	coinbase := &wire.Transaction{
		Inputs:  []wire.TxInput{{Prev: wire.OutPoint{Index: wire.CoinbaseOutputIndex}}},
		Outputs: []wire.TxOutput{{Value: 100}},
	}
	err := p.Add(coinbase, 1, false)
	if kind, ok := errKind(err); !ok || kind != ErrCoinbaseShape {
		t.Fatalf("got err %v, want ErrCoinbaseShape", err)
	}
}

func TestAddRejectsImmatureCoinbaseSpend(t *testing.T) {
	chain := newFakeChain()
	chain.height = 50
	chain.maturity = 100
	priv, script := testKeyAndScript(t)
	prev := wire.OutPoint{Index: 0}
	chain.utxos[prev] = UTXOEntry{Value: 1000, ScriptPubKey: script, Height: 1, IsCoinbase: true}

	p := New(chain, 0, 0)
	tx := signedSpend(t, priv, script, prev, 900)
	err := p.Add(tx, 1, false)
	if kind, ok := errKind(err); !ok || kind != ErrImmatureCoinbase {
		t.Fatalf("got err %v, want ErrImmatureCoinbase", err)
	}
}

func TestAddChainsOffAnotherMempoolEntry(t *testing.T) {
	chain := newFakeChain()
	priv, script := testKeyAndScript(t)
	prev := wire.OutPoint{Index: 0}
	chain.utxos[prev] = UTXOEntry{Value: 1000, ScriptPubKey: script}

	p := New(chain, 0, 0)
	parent := signedSpend(t, priv, script, prev, 900)
	if err := p.Add(parent, 1, false); err != nil {
		t.Fatalf("admit parent: %v", err)
	}

	childPrev := wire.OutPoint{Txid: wire.TxID(parent), Index: 0}
	child := signedSpend(t, priv, script, childPrev, 800)
	if err := p.Add(child, 2, false); err != nil {
		t.Fatalf("admit child spending unconfirmed parent output: %v", err)
	}
}

func TestPruneExpired(t *testing.T) {
	chain := newFakeChain()
	priv, script := testKeyAndScript(t)
	prev := wire.OutPoint{Index: 0}
	chain.utxos[prev] = UTXOEntry{Value: 1000, ScriptPubKey: script}

	p := New(chain, 0, 100) // TTL 100s
	tx := signedSpend(t, priv, script, prev, 900)
	if err := p.Add(tx, 1000, false); err != nil {
		t.Fatalf("admit: %v", err)
	}
	p.PruneExpired(1050) // 50s elapsed, within TTL
	if p.Size() != 1 {
		t.Fatalf("entry pruned too early")
	}
	p.PruneExpired(1200) // 200s elapsed, beyond TTL
	if p.Size() != 0 {
		t.Fatalf("expired entry was not pruned")
	}
}

func TestSelectForBlockOrdersByFeeRateDescending(t *testing.T) {
	chain := newFakeChain()
	priv, script := testKeyAndScript(t)

	p := New(chain, 0, 0)
	prevLow := wire.OutPoint{Index: 0}
	prevHigh := wire.OutPoint{Index: 1}
	chain.utxos[prevLow] = UTXOEntry{Value: 1000, ScriptPubKey: script}
	chain.utxos[prevHigh] = UTXOEntry{Value: 1000, ScriptPubKey: script}

	lowFee := signedSpend(t, priv, script, prevLow, 999)  // fee 1
	highFee := signedSpend(t, priv, script, prevHigh, 500) // fee 500
	if err := p.Add(lowFee, 1, false); err != nil {
		t.Fatalf("admit lowFee: %v", err)
	}
	if err := p.Add(highFee, 2, false); err != nil {
		t.Fatalf("admit highFee: %v", err)
	}

	selected := p.SelectForBlock(1_000_000)
	if len(selected) != 2 {
		t.Fatalf("selected %d entries, want 2", len(selected))
	}
	if selected[0].Txid != wire.TxID(highFee) {
		t.Fatalf("expected higher fee-rate tx first")
	}
}

func errKind(err error) (ErrorKind, bool) {
	var rej *RejectError
	if !errors.As(err, &rej) {
		return 0, false
	}
	return rej.Kind, true
}
