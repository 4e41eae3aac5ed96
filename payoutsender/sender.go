// Package payoutsender builds and signs the transactions that clear
// PayoutAccounting's pending balances, operating only on a snapshot of
// mature UTXOs captured at the start of each cycle so a block committed
// mid-cycle can never change what the transaction builder sees (spec.md
// §9: "payouts operate on a snapshot of mature UTXOs captured at the
// start of a cycle, and the tx builder consumes only from that
// snapshot").
package payoutsender

import (
	"fmt"

	"github.com/aurum-project/aurumd/chainstore"
	"github.com/aurum-project/aurumd/internal/ecdsa"
	"github.com/aurum-project/aurumd/stratum"
	"github.com/aurum-project/aurumd/txscript"
	"github.com/aurum-project/aurumd/wire"
)

// Rough P2PKH size constants for fee estimation, matching the style of
// chainstore's own compact-size arithmetic rather than pulling in a
// dedicated size-estimation library for three constants.
const (
	estimatedInputSize  = 148
	estimatedOutputSize = 34
	baseTxOverhead      = 10
)

func estimateSize(numInputs, numOutputs int) int {
	return baseTxOverhead + numInputs*estimatedInputSize + numOutputs*estimatedOutputSize
}

// Sender builds one payout transaction per cycle from the pool's mature
// balance.
type Sender struct {
	chain          *chainstore.Store
	accounting     *stratum.PayoutAccounting
	oracle         ecdsa.Oracle
	poolScript     []byte
	addressVersion byte
	minPayout      uint64
}

// NewSender builds a Sender that spends poolScript's mature outputs
// (signed via oracle) to clear accounting's pending balances. Balances
// below minPayout are left pending rather than paid in dust-sized
// amounts.
func NewSender(chain *chainstore.Store, accounting *stratum.PayoutAccounting, oracle ecdsa.Oracle, poolScript []byte, addressVersion byte, minPayout uint64) *Sender {
	return &Sender{
		chain:          chain,
		accounting:     accounting,
		oracle:         oracle,
		poolScript:     poolScript,
		addressVersion: addressVersion,
		minPayout:      minPayout,
	}
}

// RunCycle snapshots the pool's mature UTXOs, pays as many FIFO-ordered
// pending balances as the snapshot covers (the last one partially if the
// balance runs out mid-recipient), signs the resulting transaction, and
// records what was actually paid in the accounting. It returns nil, nil,
// nil if there was nothing payable this cycle. feeRatePerByte is an
// external estimate (feeestimator.Estimate's SatPerByte, typically at
// Economy priority for non-urgent payouts) — RunCycle takes it as a
// parameter rather than computing it, the same decoupling feeestimator
// itself uses: nothing here needs to know how that number was derived.
func (s *Sender) RunCycle(feeRatePerByte float64, now uint32) (*wire.Transaction, []stratum.PendingPayout, error) {
	snapshot := s.chain.MatureUTXOsForScript(s.poolScript)
	var available uint64
	for _, e := range snapshot {
		available += e.Entry.Value
	}
	if available == 0 {
		return nil, nil, nil
	}

	pending := s.accounting.PendingFIFO()
	var eligible []stratum.PendingPayout
	for _, p := range pending {
		if p.Amount >= s.minPayout {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return nil, nil, nil
	}

	var selected []stratum.PendingPayout
	var totalOut uint64
	for _, p := range eligible {
		// +1 recipient output plus the pool's own change output.
		fee := uint64(feeRatePerByte * float64(estimateSize(len(snapshot), len(selected)+2)))
		if totalOut+p.Amount+fee <= available {
			selected = append(selected, p)
			totalOut += p.Amount
			continue
		}
		if available > totalOut+fee {
			partial := p
			partial.Amount = available - totalOut - fee
			selected = append(selected, partial)
			totalOut += partial.Amount
		}
		break
	}
	if len(selected) == 0 {
		return nil, nil, nil
	}

	fee := uint64(feeRatePerByte * float64(estimateSize(len(snapshot), len(selected)+1)))
	change := available - totalOut - fee

	tx := &wire.Transaction{Version: 1}
	for _, e := range snapshot {
		tx.Inputs = append(tx.Inputs, wire.TxInput{Prev: e.OutPoint, Sequence: 0xffffffff})
	}
	for _, p := range selected {
		script, err := txscript.PayToAddrScript(p.Address, s.addressVersion)
		if err != nil {
			return nil, nil, fmt.Errorf("payoutsender: payout script for %q: %w", p.Address, err)
		}
		tx.Outputs = append(tx.Outputs, wire.TxOutput{Value: p.Amount, ScriptPubKey: script})
	}
	if change > 0 {
		tx.Outputs = append(tx.Outputs, wire.TxOutput{Value: change, ScriptPubKey: s.poolScript})
	}

	for i, e := range snapshot {
		if err := txscript.SignInput(tx, i, e.Entry.ScriptPubKey, s.oracle); err != nil {
			return nil, nil, fmt.Errorf("payoutsender: sign input %d: %w", i, err)
		}
	}

	txid := wire.TxID(tx)
	for _, p := range selected {
		s.accounting.RecordPayoutSent(p.Address, p.Amount, txid.String(), now)
	}

	return tx, selected, nil
}
