package chainstore

import (
	"math/big"
	"testing"
	"time"

	"github.com/aurum-project/aurumd/wire"
)

func TestNextWorkRequiredBeforeWindowFilled(t *testing.T) {
	p := testRegParams()
	genesis := genesisBlock(p)
	s := New(p, genesis)

	if got := s.NextWorkRequired(); got != p.Genesis.Bits {
		t.Fatalf("NextWorkRequired before window filled = 0x%08x, want genesis bits 0x%08x", got, p.Genesis.Bits)
	}
}

func TestNextWorkRequiredDoublesOnSlowBlocks(t *testing.T) {
	p := testRegParams()
	p.DifficultyWindow = 2
	p.BlockTimeTarget = 100 * time.Second

	harderTarget := new(big.Int).Rsh(CompactToBig(p.PowLimitBits), 1)
	harderBits := BigToCompact(harderTarget)
	p.Genesis.Bits = harderBits

	genesis := genesisBlock(p)
	s := New(p, genesis)

	ts1 := p.Genesis.Timestamp + 100
	cb1 := coinbaseTx(t, p, 1, nil)
	b1 := mineBlock(t, genesis.Header.BlockHash(), 1, harderBits, ts1, []*wire.Transaction{cb1})
	if err := s.AddBlock(b1, ts1+10_000); err != nil {
		t.Fatalf("AddBlock b1: %v", err)
	}

	ts2 := p.Genesis.Timestamp + 400 // actual = 400, expected = 2*100 = 200 -> double
	cb2 := coinbaseTx(t, p, 2, nil)
	b2 := mineBlock(t, b1.Header.BlockHash(), 2, harderBits, ts2, []*wire.Transaction{cb2})
	if err := s.AddBlock(b2, ts2+10_000); err != nil {
		t.Fatalf("AddBlock b2: %v", err)
	}

	// harderBits is the compact form of half the pow limit, which drops the
	// mantissa's low bit, so the doubled target sits just below the limit.
	want := BigToCompact(new(big.Int).Lsh(CompactToBig(harderBits), 1))
	got := s.NextWorkRequired()
	if got != want {
		t.Fatalf("NextWorkRequired = 0x%08x, want doubled target 0x%08x", got, want)
	}
}

func TestNextWorkRequiredClampsToPowLimit(t *testing.T) {
	p := testRegParams()
	p.DifficultyWindow = 2
	p.BlockTimeTarget = 100 * time.Second
	p.Genesis.Bits = p.PowLimitBits // already easiest allowed

	genesis := genesisBlock(p)
	s := New(p, genesis)

	ts1 := p.Genesis.Timestamp + 100
	cb1 := coinbaseTx(t, p, 1, nil)
	b1 := mineBlock(t, genesis.Header.BlockHash(), 1, p.PowLimitBits, ts1, []*wire.Transaction{cb1})
	if err := s.AddBlock(b1, ts1+10_000); err != nil {
		t.Fatalf("AddBlock b1: %v", err)
	}

	ts2 := p.Genesis.Timestamp + 1000 // would want a much easier target, but already at limit
	cb2 := coinbaseTx(t, p, 2, nil)
	b2 := mineBlock(t, b1.Header.BlockHash(), 2, p.PowLimitBits, ts2, []*wire.Transaction{cb2})
	if err := s.AddBlock(b2, ts2+10_000); err != nil {
		t.Fatalf("AddBlock b2: %v", err)
	}

	if got := s.NextWorkRequired(); got != p.PowLimitBits {
		t.Fatalf("NextWorkRequired = 0x%08x, want clamp at PowLimitBits 0x%08x", got, p.PowLimitBits)
	}
}

func TestEffectiveTemplateBitsRelaxesAfterEmergencyThreshold(t *testing.T) {
	p := testRegParams()
	p.EmergencyThreshold = 10 * time.Minute

	harderTarget := new(big.Int).Rsh(CompactToBig(p.PowLimitBits), 2)
	harderBits := BigToCompact(harderTarget)
	p.Genesis.Bits = harderBits

	genesis := genesisBlock(p)
	s := New(p, genesis)

	now := p.Genesis.Timestamp + uint32(2*p.EmergencyThreshold.Seconds()) + 1
	relaxed := s.EffectiveTemplateBits(now)
	consensus := s.NextWorkRequired()

	if CompactToBig(relaxed).Cmp(CompactToBig(consensus)) <= 0 {
		t.Fatalf("relaxed template bits should be easier than consensus bits after emergency threshold")
	}
}
