// Package feeestimator implements the percentile-from-mempool ×
// congestion-factor fee estimator (spec.md §4.6): three priority tiers
// (fast, normal, economy) each blend a mempool-percentile candidate with
// a congestion-scaled floor derived from recent block fill and recently
// accepted fee rates.
package feeestimator

import (
	"sort"
	"sync"
)

// Priority is one of the three fee-rate tiers spec.md §4.6 defines.
type Priority int

const (
	Fast Priority = iota
	Normal
	Economy
)

var priorityMultiplier = map[Priority]float64{
	Fast:    2.0,
	Normal:  1.0,
	Economy: 0.5,
}

var priorityPercentile = map[Priority]float64{
	Fast:    90,
	Normal:  50,
	Economy: 20,
}

// ReferenceTxSize is the reference transaction size, in bytes, the
// estimator uses to report an estimated absolute fee alongside its
// sat/byte and sat/kB rates.
const ReferenceTxSize = 250

// Estimate is one priority tier's fee-rate recommendation.
type Estimate struct {
	SatPerByte   float64
	SatPerKB     float64
	ReferenceFee uint64 // estimated fee for a ReferenceTxSize-byte tx
}

// Estimator computes fee-rate estimates from a caller-supplied snapshot
// of mempool and recent-block state. It holds no reference to the chain
// store or mempool directly (spec.md §9's "no reverse pointer" design
// carried to this component too) — callers gather the inputs themselves,
// typically once per RPC call or Stratum job build.
type Estimator struct {
	minFeeRate   float64
	maxFeeRate   float64
	maxBlockSize int
	window       int // N in spec.md §4.6 ("last N=10 blocks")
}

// New constructs an Estimator. minFeeRate and maxFeeRate clamp every
// returned rate; maxBlockSize is MAX_BLOCK_SIZE from chaincfg; window is
// the number of trailing blocks (N=10) used for the fill/median_accepted
// inputs to Estimate.
func New(minFeeRate, maxFeeRate float64, maxBlockSize, window int) *Estimator {
	return &Estimator{
		minFeeRate:   minFeeRate,
		maxFeeRate:   maxFeeRate,
		maxBlockSize: maxBlockSize,
		window:       window,
	}
}

// Estimate computes the fee-rate recommendation for priority.
//
// mempoolFeeRatesDesc is the current mempool's fee rates (fee per
// serialized byte), sorted descending. mempoolSize is len of the full
// mempool (may exceed len(mempoolFeeRatesDesc) if the caller only
// snapshots a bounded prefix, but callers should normally pass the full
// set so the congestion term is accurate).
//
// recentBlockSizes is the serialized size of each of the trailing
// e.window blocks; recentAcceptedFeeRates pools every non-coinbase
// transaction's fee rate across those same blocks.
func (e *Estimator) Estimate(priority Priority, mempoolFeeRatesDesc []float64, mempoolSize int, recentBlockSizes []int, recentAcceptedFeeRates []float64) Estimate {
	fill := e.fill(recentBlockSizes)
	medianAccepted := median(recentAcceptedFeeRates)

	congestion := 1.0
	if over := float64(mempoolSize-100) / 100; over > 0 {
		congestion += over
	}
	if over := (fill - 0.8) * 5; over > 0 {
		congestion += over
	}

	base := e.minFeeRate * congestion
	if medianAccepted > base {
		base = medianAccepted
	}

	candidate := percentileFromSorted(mempoolFeeRatesDesc, priorityPercentile[priority])
	rate := base * priorityMultiplier[priority]
	if candidate > rate {
		rate = candidate
	}
	rate = clamp(rate, e.minFeeRate, e.maxFeeRate)

	return Estimate{
		SatPerByte:   rate,
		SatPerKB:     rate * 1000,
		ReferenceFee: uint64(rate * ReferenceTxSize),
	}
}

func (e *Estimator) fill(recentBlockSizes []int) float64 {
	if len(recentBlockSizes) == 0 || e.maxBlockSize == 0 {
		return 0
	}
	var sum int
	for _, sz := range recentBlockSizes {
		sum += sz
	}
	return float64(sum) / float64(e.window*e.maxBlockSize)
}

// percentileFromSorted returns the fee rate at the index spec.md §4.6
// names: (100-percentile)*len/100 into a descending-sorted slice. An
// empty slice yields 0 (no mempool signal, the congestion floor governs).
func percentileFromSorted(feeRatesDesc []float64, percentile float64) float64 {
	n := len(feeRatesDesc)
	if n == 0 {
		return 0
	}
	idx := int((100 - percentile) * float64(n) / 100)
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return feeRatesDesc[idx]
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Window accumulates the trailing N blocks' size and accepted-fee-rate
// samples Estimate needs. The chain store keeps no undo journal, so once
// a transaction's inputs are spent its fee can no longer be recomputed
// from the UTXO set — the block-connect caller (cmd/aurumd) must record
// each block's stats here at commit time, while the fee math is still
// available, rather than Estimator reconstructing it after the fact.
type Window struct {
	mu       sync.Mutex
	capacity int
	sizes    []int
	feeRates [][]float64
}

// NewWindow returns a Window retaining the last capacity blocks.
func NewWindow(capacity int) *Window {
	return &Window{capacity: capacity}
}

// RecordBlock appends one block's stats, evicting the oldest once the
// window exceeds its capacity.
func (w *Window) RecordBlock(size int, nonCoinbaseFeeRates []float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sizes = append(w.sizes, size)
	w.feeRates = append(w.feeRates, append([]float64(nil), nonCoinbaseFeeRates...))
	if len(w.sizes) > w.capacity {
		w.sizes = w.sizes[1:]
		w.feeRates = w.feeRates[1:]
	}
}

// Snapshot returns the recorded block sizes and the pooled fee rates
// across every recorded block, ready to pass to Estimator.Estimate.
func (w *Window) Snapshot() (sizes []int, feeRates []float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	sizes = append([]int(nil), w.sizes...)
	for _, fr := range w.feeRates {
		feeRates = append(feeRates, fr...)
	}
	return sizes, feeRates
}
