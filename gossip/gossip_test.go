package gossip

import (
	"testing"

	"github.com/aurum-project/aurumd/internal/chainhash"
)

func TestSeenMarkIfNewDedupes(t *testing.T) {
	s := NewSeen(2)
	h1 := chainhash.Hash{1}
	h2 := chainhash.Hash{2}

	if !s.MarkIfNew(h1) {
		t.Fatalf("first mark of h1 should be new")
	}
	if s.MarkIfNew(h1) {
		t.Fatalf("second mark of h1 should not be new")
	}
	if !s.MarkIfNew(h2) {
		t.Fatalf("first mark of h2 should be new")
	}
}

func TestSeenEvictsOldestBeyondCapacity(t *testing.T) {
	s := NewSeen(2)
	h1 := chainhash.Hash{1}
	h2 := chainhash.Hash{2}
	h3 := chainhash.Hash{3}

	s.MarkIfNew(h1)
	s.MarkIfNew(h2)
	s.MarkIfNew(h3) // evicts h1

	if !s.MarkIfNew(h1) {
		t.Fatalf("h1 should have aged out and be markable as new again")
	}
	if s.MarkIfNew(h3) {
		t.Fatalf("h3 is still within capacity and should not be re-markable")
	}
}
