package chainstore

import (
	"math/big"

	"github.com/aurum-project/aurumd/internal/chainhash"
	"github.com/aurum-project/aurumd/wire"
)

// TryReorganize attempts to replace the current chain's tip suffix with
// newChain, a contiguous sequence of blocks whose first block claims a
// parent already present in the store (spec.md §4.4). It validates PoW
// and merkle on every candidate up front, rejects rollbacks deeper than
// MaxReorgDepth, and only swaps chains when the candidate suffix's
// cumulative work is strictly greater than the current suffix's — ties
// favor the chain already held. On success every evicted block's
// non-coinbase transactions are handed back to the mempool.
func (s *Store) TryReorganize(newChain []*wire.Block, now uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(newChain) == 0 {
		return ruleErrorf(ErrBadFork, "empty candidate chain")
	}

	ancestorHash := newChain[0].Header.PrevHash
	ancestorHeight, ok := s.hashToHeight[ancestorHash]
	if !ok {
		return ruleErrorf(ErrBadFork, "candidate parent %s not found in store", ancestorHash)
	}

	tipHeight := uint32(len(s.blocks) - 1)
	if ancestorHeight > tipHeight {
		return ruleErrorf(ErrBadFork, "candidate ancestor height %d above tip %d", ancestorHeight, tipHeight)
	}

	depth := tipHeight - ancestorHeight
	if depth > s.params.MaxReorgDepth {
		return ruleErrorf(ErrReorgTooDeep, "rollback depth %d exceeds max %d", depth, s.params.MaxReorgDepth)
	}

	// Pre-validate PoW, merkle, and chain linkage for every candidate
	// before touching any state.
	prevHash := ancestorHash
	for i, b := range newChain {
		if b.Header.PrevHash != prevHash {
			return ruleErrorf(ErrBadFork, "candidate %d does not chain to its predecessor", i)
		}
		blockHash := b.Header.BlockHash()
		target := CompactToBig(b.Header.Bits)
		if !HashMeetsTarget(HashToBigEndianInt(blockHash), target) {
			return ruleErrorf(ErrBadPoW, "candidate %d hash does not meet its own target", i)
		}
		txids := make([]chainhash.Hash, len(b.Txs))
		for j, tx := range b.Txs {
			txids[j] = wire.TxID(tx)
		}
		if got := wire.MerkleRoot(txids); got != b.Header.MerkleRoot {
			return ruleErrorf(ErrBadMerkle, "candidate %d merkle root mismatch", i)
		}
		prevHash = blockHash
	}

	currentWork := big.NewInt(0)
	for h := ancestorHeight + 1; h <= tipHeight; h++ {
		currentWork.Add(currentWork, ChainWork(s.blocks[h].Header.Bits))
	}
	candidateWork := big.NewInt(0)
	for _, b := range newChain {
		candidateWork.Add(candidateWork, ChainWork(b.Header.Bits))
	}
	if candidateWork.Cmp(currentWork) <= 0 {
		return ruleErrorf(ErrReorgNoGain, "candidate work %s does not exceed current suffix work %s", candidateWork, currentWork)
	}

	// Build the replacement chain state in a scratch store so a failure
	// partway through candidate application never corrupts the live
	// store; only swap in the scratch state once every candidate has
	// fully passed validate_block.
	scratch := &Store{
		params:         s.params,
		blocks:         append([]*wire.Block(nil), s.blocks[:ancestorHeight+1]...),
		hashToHeight:   make(map[chainhash.Hash]uint32, len(s.blocks)),
		txIndex:        make(map[chainhash.Hash]TxLocation, len(s.txIndex)),
		utxo:           UTXOSet{},
		cumulativeWork: big.NewInt(0),
		mempool:        noopMempool{},
	}
	for h, b := range scratch.blocks {
		scratch.hashToHeight[b.Header.BlockHash()] = uint32(h)
		scratch.indexBlockTxs(b, uint32(h))
		scratch.cumulativeWork.Add(scratch.cumulativeWork, ChainWork(b.Header.Bits))
	}
	for _, b := range newChain {
		if err := scratch.validateBlockLocked(b, now); err != nil {
			return err
		}
		scratch.commitBlockLocked(b)
	}

	var evicted []*wire.Transaction
	for h := tipHeight; h > ancestorHeight; h-- {
		for _, tx := range s.blocks[h].Txs {
			if !tx.IsCoinbase() {
				evicted = append(evicted, tx)
			}
		}
	}

	s.blocks = scratch.blocks
	s.hashToHeight = scratch.hashToHeight
	s.txIndex = scratch.txIndex
	s.utxo = scratch.utxo
	s.cumulativeWork = scratch.cumulativeWork

	for _, tx := range evicted {
		s.mempool.Readmit(tx)
	}
	confirmedTxids := make([]chainhash.Hash, 0)
	for _, b := range newChain {
		for _, tx := range b.Txs {
			confirmedTxids = append(confirmedTxids, wire.TxID(tx))
		}
	}
	s.mempool.RemoveConfirmed(confirmedTxids)

	return nil
}
