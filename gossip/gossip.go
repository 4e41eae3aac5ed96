// Package gossip implements the thin network contract the chain store
// and mempool depend on (spec.md §4.8): an inbound side that feeds
// blocks and transactions into the validator, and an outbound side that
// announces them to peers, idempotent by hash/txid at the receiver. No
// framing, handshake, or peer-selection algorithm is specified beyond
// what's needed to exercise the contract.
package gossip

import (
	"sync"

	"github.com/aurum-project/aurumd/internal/chainhash"
	"github.com/aurum-project/aurumd/wire"
)

// Inbound is implemented by whatever feeds externally-received blocks
// and transactions into the validator. Each call must eventually be
// durable (committed to the chain store / mempool) or rejected; callers
// are expected to retry on a transient error.
type Inbound interface {
	OnBlock(b *wire.Block) error
	OnTx(tx *wire.Transaction) error
}

// Outbound is implemented by whatever broadcasts locally-accepted blocks
// and transactions to peers. Calls are fire-and-forget: no delivery
// guarantee, and duplicate announcements must be harmless at the
// receiver.
type Outbound interface {
	AnnounceBlock(b *wire.Block)
	AnnounceTx(tx *wire.Transaction)
}

// Peer composes both directions of one connection: it receives
// announcements from the remote side (implementing Inbound against the
// local validator) and accepts local announcements to forward outward
// (implementing Outbound over the wire).
type Peer interface {
	Inbound
	Outbound
	Close() error
}

// Seen is a small bounded de-duplication set keyed by hash, used by the
// inbound decode path to skip blocks/txs already processed, per spec.md
// §4.8's idempotence requirement. The outbound announce path does not
// consult it.
type Seen struct {
	mu       sync.Mutex
	capacity int
	order    []chainhash.Hash
	index    map[chainhash.Hash]struct{}
}

// NewSeen builds a Seen set retaining at most capacity hashes, evicting
// the oldest on overflow.
func NewSeen(capacity int) *Seen {
	return &Seen{capacity: capacity, index: make(map[chainhash.Hash]struct{}, capacity)}
}

// MarkIfNew records h and returns true if it had not been seen before.
func (s *Seen) MarkIfNew(h chainhash.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[h]; ok {
		return false
	}
	s.index[h] = struct{}{}
	s.order = append(s.order, h)
	if len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.index, oldest)
	}
	return true
}
