// Package mempool implements the UTXO-aware transaction pool (spec.md
// C8): admission against the chain store, in-memory double-spend
// tracking, fee-rate-ordered block template selection, and TTL pruning.
package mempool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aurum-project/aurumd/internal/chainhash"
	"github.com/aurum-project/aurumd/txscript"
	"github.com/aurum-project/aurumd/wire"
)

// ChainView is the narrow read surface the mempool needs from the chain
// store to resolve inputs and check coinbase maturity (spec.md §9: "no
// reverse pointer" — the mempool only ever calls out through this
// interface, never imports chainstore's mutable internals directly).
type ChainView interface {
	UTXO(op wire.OutPoint) (entry UTXOEntry, ok bool)
	Height() uint32
	CoinbaseMaturity() uint32
}

// UTXOEntry is the subset of chainstore's UTXOEntry the mempool needs.
type UTXOEntry struct {
	Value        uint64
	ScriptPubKey []byte
	Height       uint32
	IsCoinbase   bool
}

// Entry is one admitted mempool transaction.
type Entry struct {
	Tx            *wire.Transaction
	Txid          chainhash.Hash
	AdmitTime     uint32
	FeeRate       float64 // fee per serialized byte
	Fee           uint64
	SerializeSize int
}

// ErrorKind identifies why add() rejected a transaction.
type ErrorKind int

const (
	ErrDuplicateTx ErrorKind = iota
	ErrCoinbaseShape
	ErrMempoolFull
	ErrSigInvalid
	ErrClaimedOutPoint
	ErrMissingPrevOut
	ErrImmatureCoinbase
)

var errorKindNames = map[ErrorKind]string{
	ErrDuplicateTx:      "duplicate-tx",
	ErrCoinbaseShape:    "coinbase-shape",
	ErrMempoolFull:      "mempool-full",
	ErrSigInvalid:       "sig-invalid",
	ErrClaimedOutPoint:  "claimed-outpoint",
	ErrMissingPrevOut:   "missing-prev-out",
	ErrImmatureCoinbase: "immature-coinbase",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown-mempool-error(%d)", int(k))
}

// RejectError is a typed admission failure.
type RejectError struct {
	Kind    ErrorKind
	Message string
}

func (e *RejectError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func (e *RejectError) Is(target error) bool {
	other, ok := target.(*RejectError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func rejectf(kind ErrorKind, format string, args ...interface{}) *RejectError {
	return &RejectError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Pool is the mempool: a txid->Entry map and a claimed-OutPoint set kept
// atomically consistent, guarded by a single coarse mutex (spec.md §5).
type Pool struct {
	mu sync.RWMutex

	chain ChainView

	maxBytes  int
	ttlSecs   uint32
	totalSize int

	entries map[chainhash.Hash]*Entry
	claimed map[wire.OutPoint]chainhash.Hash
}

// New constructs an empty pool. maxBytes bounds total serialized size
// across all entries; ttlSecs is the expiry window (0 disables TTL
// pruning), per spec.md §4.5.
func New(chain ChainView, maxBytes int, ttlSecs uint32) *Pool {
	return &Pool{
		chain:     chain,
		maxBytes:  maxBytes,
		ttlSecs:   ttlSecs,
		entries:   map[chainhash.Hash]*Entry{},
		claimed:   map[wire.OutPoint]chainhash.Hash{},
	}
}

// Size returns the number of admitted transactions.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Get returns the entry for txid, or nil if absent.
func (p *Pool) Get(txid chainhash.Hash) *Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.entries[txid]
}

// Add runs the admission order of spec.md §4.5 and, if every check
// passes, records tx with admitTime as its admission timestamp.
// trusted, when true, skips signature verification (used when loading
// mempool state that was already verified once, or re-admitting
// transactions evicted by a reorg).
func (p *Pool) Add(tx *wire.Transaction, admitTime uint32, trusted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	txid := wire.TxID(tx)

	// 1. Duplicate.
	if _, exists := p.entries[txid]; exists {
		return rejectf(ErrDuplicateTx, "txid %s already in mempool", txid)
	}

	// 2. Coinbase shape.
	if tx.IsCoinbase() {
		return rejectf(ErrCoinbaseShape, "coinbase transactions are not admissible to the mempool")
	}

	// 3. Size budget.
	size := tx.SerializeSize()
	if p.maxBytes > 0 && p.totalSize+size > p.maxBytes {
		return rejectf(ErrMempoolFull, "admitting %d bytes would exceed mempool cap %d", size, p.maxBytes)
	}

	// 5. Resolve inputs: claim conflicts, chain resolution, maturity.
	// (Check 4, signature verification, happens per-input below so a
	// missing prevout is reported before a doomed signature check.)
	var sumIn, sumOut uint64
	for _, out := range tx.Outputs {
		sumOut += out.Value
	}

	resolved := make([]UTXOEntry, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if conflictTxid, claimed := p.claimed[in.Prev]; claimed {
			return rejectf(ErrClaimedOutPoint, "input %d OutPoint %s already claimed by mempool tx %s", i, in.Prev, conflictTxid)
		}

		entry, ok := p.chain.UTXO(in.Prev)
		if !ok {
			// Not in the chain; may still resolve to another mempool
			// entry's output (spec.md §4.5 check 5).
			producer, exists := p.entries[in.Prev.Txid]
			if !exists || int(in.Prev.Index) >= len(producer.Tx.Outputs) {
				return rejectf(ErrMissingPrevOut, "input %d references unresolved output %s", i, in.Prev)
			}
			out := producer.Tx.Outputs[in.Prev.Index]
			entry = UTXOEntry{Value: out.Value, ScriptPubKey: out.ScriptPubKey}
		} else if entry.IsCoinbase {
			confirmations := p.chain.Height() - entry.Height + 1
			if confirmations < p.chain.CoinbaseMaturity() {
				return rejectf(ErrImmatureCoinbase, "input %d spends immature coinbase %s", i, in.Prev)
			}
		}

		resolved[i] = entry
		sumIn += entry.Value
	}

	// 4. Signature verification (unless trusted).
	if !trusted {
		for i := range tx.Inputs {
			if !txscript.VerifyInput(tx, i, resolved[i].ScriptPubKey) {
				return rejectf(ErrSigInvalid, "input %d signature invalid", i)
			}
		}
	}

	feeRate := 0.0
	var fee uint64
	if sumIn >= sumOut {
		fee = sumIn - sumOut
		feeRate = float64(fee) / float64(size)
	}

	entry := &Entry{
		Tx:            tx,
		Txid:          txid,
		AdmitTime:     admitTime,
		FeeRate:       feeRate,
		Fee:           fee,
		SerializeSize: size,
	}
	p.entries[txid] = entry
	p.totalSize += size
	for _, in := range tx.Inputs {
		p.claimed[in.Prev] = txid
	}
	return nil
}

// Remove releases txid's OutPoint claims and drops it from the pool.
func (p *Pool) Remove(txid chainhash.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txid)
}

func (p *Pool) removeLocked(txid chainhash.Hash) {
	entry, ok := p.entries[txid]
	if !ok {
		return
	}
	for _, in := range entry.Tx.Inputs {
		delete(p.claimed, in.Prev)
	}
	p.totalSize -= entry.SerializeSize
	delete(p.entries, txid)
}

// RemoveConfirmed implements chainstore.MempoolHandle: it drops every
// txid that just confirmed in a block.
func (p *Pool) RemoveConfirmed(txids []chainhash.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, txid := range txids {
		p.removeLocked(txid)
	}
}

// Readmit implements chainstore.MempoolHandle: it re-admits a
// transaction evicted by a reorg without re-verifying its signatures,
// since it validated once already (spec.md §4.4). The readmit timestamp
// is the chain's current height-adjacent clock, passed in by the caller
// via ReadmitAt; Readmit itself stamps admitTime as 0, and PruneExpired
// treats such an entry as admitted at the time of the first prune that
// sees it.
func (p *Pool) Readmit(tx *wire.Transaction) {
	p.ReadmitAt(tx, 0)
}

// ReadmitAt is Readmit with an explicit admission timestamp, for callers
// that track wall-clock time outside the MempoolHandle contract.
func (p *Pool) ReadmitAt(tx *wire.Transaction, admitTime uint32) {
	_ = p.Add(tx, admitTime, true)
}

// PruneExpired drops entries admitted more than TTL seconds before now.
// A pool constructed with ttlSecs == 0 never expires entries.
func (p *Pool) PruneExpired(now uint32) {
	if p.ttlSecs == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var expired []chainhash.Hash
	for txid, entry := range p.entries {
		if entry.AdmitTime == 0 {
			entry.AdmitTime = now // readmitted via Readmit: its TTL starts now
			continue
		}
		if now-entry.AdmitTime > p.ttlSecs {
			expired = append(expired, txid)
		}
	}
	for _, txid := range expired {
		p.removeLocked(txid)
	}
}

// FeeRatesDescending returns every admitted entry's fee rate, sorted
// descending, for feeestimator's percentile lookup.
func (p *Pool) FeeRatesDescending() []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rates := make([]float64, 0, len(p.entries))
	for _, entry := range p.entries {
		rates = append(rates, entry.FeeRate)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rates)))
	return rates
}

// SelectForBlock returns a size-bounded subset of the pool ordered by
// fee-rate descending, skipping entries that would exceed maxBytes, with
// ties broken on txid lexicographic order for determinism (spec.md
// §4.5).
func (p *Pool) SelectForBlock(maxBytes int) []*Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pq := make(txPriorityQueue, 0, len(p.entries))
	for _, entry := range p.entries {
		pq = append(pq, entry)
	}
	pq.sortByPriority()

	var selected []*Entry
	used := 0
	for _, entry := range pq {
		if used+entry.SerializeSize > maxBytes {
			continue
		}
		selected = append(selected, entry)
		used += entry.SerializeSize
	}
	return selected
}
