package chainstore

import (
	"bytes"
	"math/big"
	"sort"
	"sync"

	"github.com/aurum-project/aurumd/chaincfg"
	"github.com/aurum-project/aurumd/internal/chainhash"
	"github.com/aurum-project/aurumd/wire"
)

// TxLocation records where a confirmed transaction lives.
type TxLocation struct {
	BlockHash chainhash.Hash
	Height    uint32
	Index     int
}

// MempoolHandle is the narrow callback surface the store uses to keep the
// mempool consistent with the chain, per spec.md §9 ("mempool as a child
// of the store with a read-only reference; admission asks the store for
// resolution; no reverse pointer"). The store only ever calls out through
// this interface — it never imports the mempool package directly.
type MempoolHandle interface {
	// RemoveConfirmed drops entries that just confirmed in a block.
	RemoveConfirmed(txids []chainhash.Hash)
	// Readmit re-admits a transaction evicted by a reorg, skipping
	// signature re-verification since it validated once already.
	Readmit(tx *wire.Transaction)
}

type noopMempool struct{}

func (noopMempool) RemoveConfirmed([]chainhash.Hash) {}
func (noopMempool) Readmit(*wire.Transaction)        {}

// Store is the chain store and UTXO index (spec.md C4): an ordered
// sequence of blocks indexed by height, block-hash and txid lookup maps,
// and the derived UTXO set. Only the store's own methods may mutate its
// internal maps; a single sync.RWMutex guards all of them.
type Store struct {
	mu sync.RWMutex

	params *chaincfg.Params

	blocks       []*wire.Block
	hashToHeight map[chainhash.Hash]uint32
	txIndex      map[chainhash.Hash]TxLocation
	utxo         UTXOSet

	cumulativeWork *big.Int

	mempool MempoolHandle
}

// New constructs an empty store seeded with the given genesis block at
// height 0.
func New(params *chaincfg.Params, genesis *wire.Block) *Store {
	s := &Store{
		params:         params,
		blocks:         []*wire.Block{genesis},
		hashToHeight:   map[chainhash.Hash]uint32{genesis.Header.BlockHash(): 0},
		txIndex:        map[chainhash.Hash]TxLocation{},
		utxo:           UTXOSet{},
		cumulativeWork: ChainWork(genesis.Header.Bits),
		mempool:        noopMempool{},
	}
	s.indexBlockTxs(genesis, 0)
	return s
}

// SetMempool attaches the mempool handle used for confirm/readmit
// callbacks. Must be called before any AddBlock/TryReorganize if mempool
// consistency is required.
func (s *Store) SetMempool(h MempoolHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mempool = h
}

// Params returns the chain's policy parameters.
func (s *Store) Params() *chaincfg.Params {
	return s.params
}

// Tip returns the current chain tip block. Callers must not mutate the
// returned pointer.
func (s *Store) Tip() *wire.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks[len(s.blocks)-1]
}

// Height returns the current tip height.
func (s *Store) Height() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint32(len(s.blocks) - 1)
}

// CumulativeWork returns a copy of the chain's total accumulated work.
func (s *Store) CumulativeWork() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.cumulativeWork)
}

// BlockAt returns the block at height, or nil if out of range.
func (s *Store) BlockAt(height uint32) *wire.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(height) >= len(s.blocks) {
		return nil
	}
	return s.blocks[height]
}

// HeightOfHash returns the height of the block with the given hash.
func (s *Store) HeightOfHash(hash chainhash.Hash) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashToHeight[hash]
	return h, ok
}

// TxLocationOf returns where txid is confirmed, if at all.
func (s *Store) TxLocationOf(txid chainhash.Hash) (TxLocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.txIndex[txid]
	return loc, ok
}

// UTXO returns the entry for op, or nil if unspent/nonexistent.
func (s *Store) UTXO(op wire.OutPoint) *UTXOEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.utxo.Get(op)
}

// MatureUTXOsForScript returns a snapshot of every currently mature
// unspent output paying scriptPubKey, ordered by height ascending. It
// exists for the payout sender's cycle-start snapshot (spec.md §9: "the
// tx builder consumes only from that snapshot") rather than the
// validator's own hot path, which never needs a by-script scan.
func (s *Store) MatureUTXOsForScript(scriptPubKey []byte) []OutPointEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tip := uint32(len(s.blocks) - 1)
	var out []OutPointEntry
	for op, entry := range s.utxo {
		if !bytes.Equal(entry.ScriptPubKey, scriptPubKey) {
			continue
		}
		if !entry.IsMature(tip, s.params.CoinbaseMaturity) {
			continue
		}
		out = append(out, OutPointEntry{OutPoint: op, Entry: *entry})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entry.Height < out[j].Entry.Height })
	return out
}

// MedianTimePast computes the median timestamp of the last MTPWindow
// blocks ending at the tip (or the tip's own timestamp if the chain is
// shorter than that window), per spec.md §4.2 check 3.
func (s *Store) MedianTimePast() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.medianTimePastLocked()
}

func (s *Store) medianTimePastLocked() uint32 {
	n := s.params.MTPWindow
	if len(s.blocks) < n {
		return s.blocks[len(s.blocks)-1].Header.Timestamp
	}
	window := s.blocks[len(s.blocks)-n:]
	timestamps := make([]uint32, len(window))
	for i, b := range window {
		timestamps[i] = b.Header.Timestamp
	}
	return median(timestamps)
}

func median(vals []uint32) uint32 {
	sorted := append([]uint32(nil), vals...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[len(sorted)/2]
}

// AddBlock runs full validation (validateBlockLocked) against the current tip
// and, if it passes, commits the block: appends it to the chain, indexes
// it by hash and by tx, drops its confirmed transactions from the
// mempool, advances the difficulty engine's bookkeeping, and adds its
// work to the cumulative total.
func (s *Store) AddBlock(b *wire.Block, now uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateBlockLocked(b, now); err != nil {
		return err
	}
	s.commitBlockLocked(b)
	return nil
}

func (s *Store) commitBlockLocked(b *wire.Block) {
	height := uint32(len(s.blocks))
	s.blocks = append(s.blocks, b)
	s.hashToHeight[b.Header.BlockHash()] = height
	s.indexBlockTxs(b, height)
	s.cumulativeWork.Add(s.cumulativeWork, ChainWork(b.Header.Bits))

	txids := make([]chainhash.Hash, len(b.Txs))
	for i, tx := range b.Txs {
		txids[i] = wire.TxID(tx)
	}
	s.mempool.RemoveConfirmed(txids)
}

func (s *Store) indexBlockTxs(b *wire.Block, height uint32) {
	blockHash := b.Header.BlockHash()
	for i, tx := range b.Txs {
		txid := wire.TxID(tx)
		s.txIndex[txid] = TxLocation{BlockHash: blockHash, Height: height, Index: i}
		ApplyTx(s.utxo, tx, wire.OutPoint{Txid: txid}, height)
	}
}
