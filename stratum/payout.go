package stratum

import (
	"sort"
	"sync"
)

// maxCompletedHistory bounds the completed-payout history persisted in
// the pool state file (spec.md §6: "completed_payouts[last <= 100]").
const maxCompletedHistory = 100

// PendingPayout is one address's accrued, not-yet-sent balance.
type PendingPayout struct {
	Address   string
	Amount    uint64
	Shares    uint64
	CreatedAt uint32
}

// CompletedPayout records one payout transaction already sent.
type CompletedPayout struct {
	Address string
	Amount  uint64
	Txid    string
	PaidAt  uint32
}

// FeeStep is one rung of the dynamic fee-by-worker-count table (spec.md
// §4.7): at WorkerCount or more authorized workers, FeeRate applies. The
// table should be monotonically non-increasing in FeeRate as
// WorkerCount rises; FeeRate returns clamp every lookup regardless.
type FeeStep struct {
	WorkerCount int
	FeeRate     float64
}

// State is the persisted shape of a PayoutAccounting (spec.md §6 "Pool
// state file").
type State struct {
	TotalPaid  uint64
	TotalFees  uint64
	BlocksPaid uint64
	Completed  []CompletedPayout
	Pending    map[string]PendingPayout
}

// PayoutAccounting implements spec.md §4.7's proportional-within-block
// payout and pending-balance bookkeeping.
type PayoutAccounting struct {
	mu sync.Mutex

	feeSteps   []FeeStep // sorted ascending by WorkerCount
	minFeeRate float64
	maxFeeRate float64

	sharesThisRound map[string]uint64
	pending         map[string]*PendingPayout
	completed       []CompletedPayout
	totalPaid       uint64
	totalFees       uint64
	blocksPaid      uint64
}

// NewPayoutAccounting builds an empty PayoutAccounting. feeSteps need
// not be pre-sorted.
func NewPayoutAccounting(feeSteps []FeeStep, minFeeRate, maxFeeRate float64) *PayoutAccounting {
	sorted := append([]FeeStep(nil), feeSteps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].WorkerCount < sorted[j].WorkerCount })
	return &PayoutAccounting{
		feeSteps:        sorted,
		minFeeRate:      minFeeRate,
		maxFeeRate:      maxFeeRate,
		sharesThisRound: make(map[string]uint64),
		pending:         make(map[string]*PendingPayout),
	}
}

// RecordShare credits username with one accepted share toward the
// current block round.
func (p *PayoutAccounting) RecordShare(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sharesThisRound[username]++
}

// FeeRate returns the dynamic fee rate for workerCount authorized
// workers: the highest step whose WorkerCount <= workerCount, falling
// back to minFeeRate below every step, always clamped to
// [minFeeRate, maxFeeRate].
func (p *PayoutAccounting) FeeRate(workerCount int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	rate := p.minFeeRate
	for _, step := range p.feeSteps {
		if workerCount >= step.WorkerCount {
			rate = step.FeeRate
		}
	}
	return clamp(rate, p.minFeeRate, p.maxFeeRate)
}

// DistributeBlock credits every worker with shares in the current round
// proportionally to payable = reward*(1-feeRate), truncating integer
// division (the remainder stays with the pool), then resets the round's
// share counters. Pending balances accumulate across calls.
func (p *PayoutAccounting) DistributeBlock(reward uint64, feeRate float64, now uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	poolFee := uint64(float64(reward) * feeRate)
	if poolFee > reward {
		poolFee = reward
	}
	payable := reward - poolFee
	p.totalFees += poolFee
	p.blocksPaid++

	var total uint64
	for _, shares := range p.sharesThisRound {
		total += shares
	}
	if total == 0 {
		p.sharesThisRound = make(map[string]uint64)
		return
	}

	usernames := make([]string, 0, len(p.sharesThisRound))
	for u := range p.sharesThisRound {
		usernames = append(usernames, u)
	}
	sort.Strings(usernames) // deterministic credit order

	for _, username := range usernames {
		shares := p.sharesThisRound[username]
		credit := payable * shares / total
		if credit == 0 {
			continue
		}
		address, _ := splitUsername(username)
		pp, ok := p.pending[address]
		if !ok {
			pp = &PendingPayout{Address: address, CreatedAt: now}
			p.pending[address] = pp
		}
		pp.Amount += credit
		pp.Shares += shares
	}

	p.sharesThisRound = make(map[string]uint64)
}

// PendingFIFO returns every address with a positive pending balance,
// ordered by CreatedAt ascending, for the payout sender's FIFO pass
// (spec.md §4.7 "Payout sender").
func (p *PayoutAccounting) PendingFIFO() []PendingPayout {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingPayout, 0, len(p.pending))
	for _, pp := range p.pending {
		out = append(out, *pp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// RecordPayoutSent deducts amount from address's pending balance (fully
// clearing it if amount covers the whole balance, supporting partial
// payouts otherwise) and appends a bounded completed-payout record.
func (p *PayoutAccounting) RecordPayoutSent(address string, amount uint64, txid string, now uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pp, ok := p.pending[address]; ok {
		if amount >= pp.Amount {
			delete(p.pending, address)
		} else {
			pp.Amount -= amount
		}
	}
	p.totalPaid += amount
	p.completed = append(p.completed, CompletedPayout{Address: address, Amount: amount, Txid: txid, PaidAt: now})
	if len(p.completed) > maxCompletedHistory {
		p.completed = p.completed[len(p.completed)-maxCompletedHistory:]
	}
}

// Snapshot returns the persistable state of the accounting.
func (p *PayoutAccounting) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	pending := make(map[string]PendingPayout, len(p.pending))
	for addr, pp := range p.pending {
		pending[addr] = *pp
	}
	return State{
		TotalPaid:  p.totalPaid,
		TotalFees:  p.totalFees,
		BlocksPaid: p.blocksPaid,
		Completed:  append([]CompletedPayout(nil), p.completed...),
		Pending:    pending,
	}
}

// LoadState restores accounting from a persisted State, for startup.
func (p *PayoutAccounting) LoadState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalPaid = s.TotalPaid
	p.totalFees = s.TotalFees
	p.blocksPaid = s.BlocksPaid
	p.completed = append([]CompletedPayout(nil), s.Completed...)
	p.pending = make(map[string]*PendingPayout, len(s.Pending))
	for addr, pp := range s.Pending {
		v := pp
		p.pending[addr] = &v
	}
}
