package chainstore

import (
	"github.com/aurum-project/aurumd/internal/chainhash"
	"github.com/aurum-project/aurumd/txscript"
	"github.com/aurum-project/aurumd/wire"
)

// validateBlockLocked runs the ten ordered checks of spec.md §4.2 against
// the candidate block B, assuming it extends the current tip by one.
// Callers must hold s.mu for at least reading; AddBlock holds it for
// writing since a successful validation is immediately committed.
func (s *Store) validateBlockLocked(b *wire.Block, now uint32) error {
	tip := s.blocks[len(s.blocks)-1]
	tipHeight := uint32(len(s.blocks) - 1)
	tipHash := tip.Header.BlockHash()

	// 1. Height.
	if b.Height != tipHeight+1 {
		return ruleErrorf(ErrInvalidHeight, "height %d, want %d", b.Height, tipHeight+1)
	}

	// 2. Parent.
	if b.Header.PrevHash != tipHash {
		return ruleErrorf(ErrBadParent, "prev_hash %s, want %s", b.Header.PrevHash, tipHash)
	}

	// 3. Time lower bound (strictly greater than MTP).
	mtp := s.medianTimePastLocked()
	if b.Header.Timestamp <= mtp {
		return ruleErrorf(ErrBadTimestamp, "timestamp %d not greater than MTP %d", b.Header.Timestamp, mtp)
	}

	// 4. Time upper bound.
	maxFuture := uint32(s.params.MaxFutureBlockTime.Seconds())
	if b.Header.Timestamp > now+maxFuture {
		return ruleErrorf(ErrBadTimestamp, "timestamp %d exceeds now+%d (%d)", b.Header.Timestamp, maxFuture, now+maxFuture)
	}

	// 5. PoW.
	blockHash := b.Header.BlockHash()
	target := CompactToBig(b.Header.Bits)
	if !HashMeetsTarget(HashToBigEndianInt(blockHash), target) {
		return ruleErrorf(ErrBadPoW, "hash %s does not meet target for bits 0x%08x", blockHash, b.Header.Bits)
	}

	// 6. Merkle.
	txids := make([]chainhash.Hash, len(b.Txs))
	for i, tx := range b.Txs {
		txids[i] = wire.TxID(tx)
	}
	gotRoot := wire.MerkleRoot(txids)
	if gotRoot != b.Header.MerkleRoot {
		return ruleErrorf(ErrBadMerkle, "merkle root %s, want %s", gotRoot, b.Header.MerkleRoot)
	}

	// 7. Coinbase position.
	if len(b.Txs) == 0 || !b.Txs[0].IsCoinbase() {
		return ruleErrorf(ErrBadCoinbasePosition, "txs[0] is not coinbase")
	}
	for i := 1; i < len(b.Txs); i++ {
		if b.Txs[i].IsCoinbase() {
			return ruleErrorf(ErrBadCoinbasePosition, "tx %d is coinbase but not first", i)
		}
	}

	// 8./9. Per-transaction validation plus fee accounting.
	// inBlockOutputs resolves outputs produced earlier in this same block
	// (not yet in the committed UTXO set); inBlockSpent tracks OutPoints
	// already consumed earlier in this block, for in-block double-spend
	// detection.
	inBlockOutputs := make(map[wire.OutPoint]*UTXOEntry, len(b.Txs))
	inBlockSpent := make(map[wire.OutPoint]bool)

	var totalFees uint64
	for i, tx := range b.Txs {
		for outIdx, out := range tx.Outputs {
			op := wire.OutPoint{Txid: txids[i], Index: uint32(outIdx)}
			inBlockOutputs[op] = &UTXOEntry{
				Value:        out.Value,
				ScriptPubKey: out.ScriptPubKey,
				Height:       b.Height,
				IsCoinbase:   i == 0,
			}
		}
		if i == 0 {
			continue // coinbase has no real inputs to validate here
		}

		var sumIn, sumOut uint64
		for _, out := range tx.Outputs {
			sumOut += out.Value
		}

		for inIdx, in := range tx.Inputs {
			if inBlockSpent[in.Prev] {
				return ruleErrorf(ErrDoubleSpend, "tx %d input %d double-spends %s within block", i, inIdx, in.Prev)
			}

			entry := s.utxo.Get(in.Prev)
			if entry == nil {
				entry = inBlockOutputs[in.Prev]
			}
			if entry == nil {
				return ruleErrorf(ErrMissingPrevOut, "tx %d input %d references unknown output %s", i, inIdx, in.Prev)
			}
			if committed := s.utxo.Get(in.Prev); committed != nil {
				if !committed.IsMature(b.Height, s.params.CoinbaseMaturity) {
					return ruleErrorf(ErrImmatureCoinbase, "tx %d input %d spends immature coinbase %s", i, inIdx, in.Prev)
				}
			} else if entry.IsCoinbase {
				// Produced earlier in this same block: depth is 0 at best,
				// always immature under CoinbaseMaturity >= 1.
				return ruleErrorf(ErrImmatureCoinbase, "tx %d input %d spends same-block coinbase %s", i, inIdx, in.Prev)
			}

			if !txscript.VerifyInput(tx, inIdx, entry.ScriptPubKey) {
				return ruleErrorf(ErrSigInvalid, "tx %d input %d signature invalid", i, inIdx)
			}

			inBlockSpent[in.Prev] = true
			sumIn += entry.Value
		}

		if sumIn < sumOut {
			return ruleErrorf(ErrInputsLessThanOutputs, "tx %d: inputs %d < outputs %d", i, sumIn, sumOut)
		}
		totalFees += sumIn - sumOut
	}

	// 9. Coinbase reward bound.
	var coinbaseOut uint64
	for _, out := range b.Txs[0].Outputs {
		coinbaseOut += out.Value
	}
	maxCoinbase := Subsidy(s.params, b.Height) + totalFees
	if coinbaseOut > maxCoinbase {
		return ruleErrorf(ErrCoinbaseOverpay, "coinbase pays %d, max allowed %d", coinbaseOut, maxCoinbase)
	}

	// 10. Size.
	size := b.SerializeSize()
	if size > s.params.MaxBlockSize {
		return ruleErrorf(ErrBlockTooLarge, "block size %d exceeds max %d", size, s.params.MaxBlockSize)
	}

	return nil
}
