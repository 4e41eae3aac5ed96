package chainstore

import (
	"testing"

	"github.com/aurum-project/aurumd/internal/chainhash"
	"github.com/aurum-project/aurumd/txscript"
	"github.com/aurum-project/aurumd/wire"
)

func TestAddBlockAcceptsValidExtension(t *testing.T) {
	p := testRegParams()
	genesis := genesisBlock(p)
	s := New(p, genesis)

	ts := p.Genesis.Timestamp + 1
	cb := coinbaseTx(t, p, 1, nil)
	b1 := mineBlock(t, genesis.Header.BlockHash(), 1, p.Genesis.Bits, ts, []*wire.Transaction{cb})

	if err := s.AddBlock(b1, ts+1); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if s.Height() != 1 {
		t.Fatalf("height = %d, want 1", s.Height())
	}
}

func TestAddBlockRejectsWrongHeight(t *testing.T) {
	p := testRegParams()
	genesis := genesisBlock(p)
	s := New(p, genesis)

	ts := p.Genesis.Timestamp + 1
	cb := coinbaseTx(t, p, 2, nil)
	bad := mineBlock(t, genesis.Header.BlockHash(), 2, p.Genesis.Bits, ts, []*wire.Transaction{cb})

	err := s.AddBlock(bad, ts+1)
	if kind, ok := KindOf(err); !ok || kind != ErrInvalidHeight {
		t.Fatalf("got err %v, want ErrInvalidHeight", err)
	}
}

func TestAddBlockRejectsWrongParent(t *testing.T) {
	p := testRegParams()
	genesis := genesisBlock(p)
	s := New(p, genesis)

	ts := p.Genesis.Timestamp + 1
	cb := coinbaseTx(t, p, 1, nil)
	bad := mineBlock(t, chainhash.Hash{1, 2, 3}, 1, p.Genesis.Bits, ts, []*wire.Transaction{cb})

	err := s.AddBlock(bad, ts+1)
	if kind, ok := KindOf(err); !ok || kind != ErrBadParent {
		t.Fatalf("got err %v, want ErrBadParent", err)
	}
}

func TestAddBlockTimestampMTPBoundary(t *testing.T) {
	p := testRegParams()
	genesis := genesisBlock(p)
	s := New(p, genesis)

	ts1 := p.Genesis.Timestamp + 100
	cb1 := coinbaseTx(t, p, 1, nil)
	b1 := mineBlock(t, genesis.Header.BlockHash(), 1, p.Genesis.Bits, ts1, []*wire.Transaction{cb1})
	if err := s.AddBlock(b1, ts1+1); err != nil {
		t.Fatalf("AddBlock b1: %v", err)
	}

	mtp := s.MedianTimePast()

	// timestamp == MTP must be rejected.
	cb2 := coinbaseTx(t, p, 2, nil)
	atMTP := mineBlock(t, b1.Header.BlockHash(), 2, p.Genesis.Bits, mtp, []*wire.Transaction{cb2})
	if err := s.AddBlock(atMTP, mtp+1000); err == nil {
		t.Fatalf("expected rejection for timestamp == MTP")
	} else if kind, ok := KindOf(err); !ok || kind != ErrBadTimestamp {
		t.Fatalf("got err %v, want ErrBadTimestamp", err)
	}

	// timestamp == MTP+1 must be accepted.
	afterMTP := mineBlock(t, b1.Header.BlockHash(), 2, p.Genesis.Bits, mtp+1, []*wire.Transaction{cb2})
	if err := s.AddBlock(afterMTP, mtp+1000); err != nil {
		t.Fatalf("expected acceptance for timestamp == MTP+1, got %v", err)
	}
}

func TestAddBlockFutureTimestampBoundary(t *testing.T) {
	p := testRegParams()
	genesis := genesisBlock(p)
	s := New(p, genesis)

	now := p.Genesis.Timestamp + 1000
	maxFuture := uint32(p.MaxFutureBlockTime.Seconds())
	cb := coinbaseTx(t, p, 1, nil)

	tooFar := mineBlock(t, genesis.Header.BlockHash(), 1, p.Genesis.Bits, now+maxFuture+1, []*wire.Transaction{cb})
	if err := s.AddBlock(tooFar, now); err == nil {
		t.Fatalf("expected rejection for timestamp beyond now+maxFuture")
	} else if kind, ok := KindOf(err); !ok || kind != ErrBadTimestamp {
		t.Fatalf("got err %v, want ErrBadTimestamp", err)
	}

	atBound := mineBlock(t, genesis.Header.BlockHash(), 1, p.Genesis.Bits, now+maxFuture, []*wire.Transaction{cb})
	if err := s.AddBlock(atBound, now); err != nil {
		t.Fatalf("expected acceptance for timestamp == now+maxFuture, got %v", err)
	}
}

func TestAddBlockRejectsBadMerkle(t *testing.T) {
	p := testRegParams()
	genesis := genesisBlock(p)
	s := New(p, genesis)

	ts := p.Genesis.Timestamp + 1
	cb := coinbaseTx(t, p, 1, nil)
	wrongRoot := chainhash.Hash{9, 9, 9}
	b1 := mineBlockWithMerkle(t, genesis.Header.BlockHash(), 1, p.Genesis.Bits, ts, wrongRoot, []*wire.Transaction{cb})

	err := s.AddBlock(b1, ts+1)
	if kind, ok := KindOf(err); !ok || kind != ErrBadMerkle {
		t.Fatalf("got err %v, want ErrBadMerkle", err)
	}
}

func TestAddBlockRejectsBadCoinbasePosition(t *testing.T) {
	p := testRegParams()
	genesis := genesisBlock(p)
	s := New(p, genesis)

	ts := p.Genesis.Timestamp + 1
	cb1 := coinbaseTx(t, p, 1, nil)
	cb2 := coinbaseTx(t, p, 1, nil)
	b1 := mineBlock(t, genesis.Header.BlockHash(), 1, p.Genesis.Bits, ts, []*wire.Transaction{cb1, cb2})

	err := s.AddBlock(b1, ts+1)
	if kind, ok := KindOf(err); !ok || kind != ErrBadCoinbasePosition {
		t.Fatalf("got err %v, want ErrBadCoinbasePosition", err)
	}
}

func TestAddBlockRejectsDoubleSpendWithinBlock(t *testing.T) {
	p := testRegParams()
	genesis := genesisBlock(p)
	s := New(p, genesis)

	priv, script := mustPrivAndScript(t, p)
	oracle := ecdsaOracle(t, priv, script)

	ts1 := p.Genesis.Timestamp + 1
	cb1 := coinbaseTx(t, p, 1, script)
	b1 := mineBlock(t, genesis.Header.BlockHash(), 1, p.Genesis.Bits, ts1, []*wire.Transaction{cb1})
	if err := s.AddBlock(b1, ts1+1); err != nil {
		t.Fatalf("AddBlock b1: %v", err)
	}
	ts2 := ts1 + 1
	cb2 := coinbaseTx(t, p, 2, nil)
	b2 := mineBlock(t, b1.Header.BlockHash(), 2, p.Genesis.Bits, ts2, []*wire.Transaction{cb2})
	if err := s.AddBlock(b2, ts2+1); err != nil {
		t.Fatalf("AddBlock b2: %v", err)
	}

	spendPoint := wire.OutPoint{Txid: wire.TxID(cb1), Index: 0}
	spendA := &wire.Transaction{
		Inputs:  []wire.TxInput{{Prev: spendPoint}},
		Outputs: []wire.TxOutput{{Value: cb1.Outputs[0].Value / 2, ScriptPubKey: script}},
	}
	spendB := &wire.Transaction{
		Inputs:  []wire.TxInput{{Prev: spendPoint}},
		Outputs: []wire.TxOutput{{Value: cb1.Outputs[0].Value / 2, ScriptPubKey: script}},
	}
	if err := txscript.SignInput(spendA, 0, script, oracle); err != nil {
		t.Fatalf("sign spendA: %v", err)
	}
	if err := txscript.SignInput(spendB, 0, script, oracle); err != nil {
		t.Fatalf("sign spendB: %v", err)
	}

	ts3 := ts2 + 1
	cb3 := coinbaseTx(t, p, 3, nil)
	b3 := mineBlock(t, b2.Header.BlockHash(), 3, p.Genesis.Bits, ts3, []*wire.Transaction{cb3, spendA, spendB})

	err := s.AddBlock(b3, ts3+1)
	if kind, ok := KindOf(err); !ok || kind != ErrDoubleSpend {
		t.Fatalf("got err %v, want ErrDoubleSpend", err)
	}
}

func TestAddBlockCoinbaseMaturityBoundary(t *testing.T) {
	p := testRegParams()
	p.CoinbaseMaturity = 3
	genesis := genesisBlock(p)
	s := New(p, genesis)

	priv, script := mustPrivAndScript(t, p)
	oracle := ecdsaOracle(t, priv, script)

	ts1 := p.Genesis.Timestamp + 1
	cb1 := coinbaseTx(t, p, 1, script)
	b1 := mineBlock(t, genesis.Header.BlockHash(), 1, p.Genesis.Bits, ts1, []*wire.Transaction{cb1})
	if err := s.AddBlock(b1, ts1+1); err != nil {
		t.Fatalf("AddBlock b1: %v", err)
	}

	mkSpend := func() *wire.Transaction {
		spend := &wire.Transaction{
			Inputs:  []wire.TxInput{{Prev: wire.OutPoint{Txid: wire.TxID(cb1), Index: 0}}},
			Outputs: []wire.TxOutput{{Value: cb1.Outputs[0].Value / 2, ScriptPubKey: script}},
		}
		if err := txscript.SignInput(spend, 0, script, oracle); err != nil {
			t.Fatalf("sign spend: %v", err)
		}
		return spend
	}

	// Height 2: confirmations = 2-1+1 = 2 < 3 -> immature, rejected.
	ts2 := ts1 + 1
	cb2 := coinbaseTx(t, p, 2, nil)
	b2 := mineBlock(t, b1.Header.BlockHash(), 2, p.Genesis.Bits, ts2, []*wire.Transaction{cb2, mkSpend()})
	err := s.AddBlock(b2, ts2+1)
	if kind, ok := KindOf(err); !ok || kind != ErrImmatureCoinbase {
		t.Fatalf("got err %v, want ErrImmatureCoinbase", err)
	}

	// Advance one more block without spending, then height 3: confirmations
	// = 3-1+1 = 3, exactly meets maturity -> accepted.
	cb2b := coinbaseTx(t, p, 2, nil)
	b2b := mineBlock(t, b1.Header.BlockHash(), 2, p.Genesis.Bits, ts2, []*wire.Transaction{cb2b})
	if err := s.AddBlock(b2b, ts2+1); err != nil {
		t.Fatalf("AddBlock b2b: %v", err)
	}
	ts3 := ts2 + 1
	cb3 := coinbaseTx(t, p, 3, nil)
	b3 := mineBlock(t, b2b.Header.BlockHash(), 3, p.Genesis.Bits, ts3, []*wire.Transaction{cb3, mkSpend()})
	if err := s.AddBlock(b3, ts3+1); err != nil {
		t.Fatalf("expected mature spend to be accepted, got %v", err)
	}
}

func TestAddBlockRejectsCoinbaseOverpay(t *testing.T) {
	p := testRegParams()
	genesis := genesisBlock(p)
	s := New(p, genesis)

	ts := p.Genesis.Timestamp + 1
	cb := coinbaseTx(t, p, 1, nil)
	cb.Outputs[0].Value = Subsidy(p, 1) + 1 // overpay by 1 base unit, no fees available
	b1 := mineBlock(t, genesis.Header.BlockHash(), 1, p.Genesis.Bits, ts, []*wire.Transaction{cb})

	err := s.AddBlock(b1, ts+1)
	if kind, ok := KindOf(err); !ok || kind != ErrCoinbaseOverpay {
		t.Fatalf("got err %v, want ErrCoinbaseOverpay", err)
	}
}

func TestAddBlockRejectsBlockTooLarge(t *testing.T) {
	p := testRegParams()
	p.MaxBlockSize = 10 // absurdly small, guarantees rejection
	genesis := genesisBlock(p)
	s := New(p, genesis)

	ts := p.Genesis.Timestamp + 1
	cb := coinbaseTx(t, p, 1, nil)
	b1 := mineBlock(t, genesis.Header.BlockHash(), 1, p.Genesis.Bits, ts, []*wire.Transaction{cb})

	err := s.AddBlock(b1, ts+1)
	if kind, ok := KindOf(err); !ok || kind != ErrBlockTooLarge {
		t.Fatalf("got err %v, want ErrBlockTooLarge", err)
	}
}
