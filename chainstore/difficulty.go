package chainstore

import "math/big"

// NextWorkRequired computes the retarget bits for the block following the
// current tip, per spec.md §4.3: a Dark-Gravity-Wave-style average over
// the last DifficultyWindow blocks, clamped to [expected/4, expected*4] to
// bound single-step swings, then clamped to the network's hardest/easiest
// allowed targets.
func (s *Store) NextWorkRequired() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextWorkRequiredLocked()
}

func (s *Store) nextWorkRequiredLocked() uint32 {
	n := s.params.DifficultyWindow
	tipIdx := len(s.blocks) - 1
	if tipIdx < n {
		return s.params.Genesis.Bits
	}

	tip := s.blocks[tipIdx]
	windowStart := s.blocks[tipIdx-n]

	actual := int64(tip.Header.Timestamp) - int64(windowStart.Header.Timestamp)
	expected := int64(n) * int64(s.params.BlockTimeTarget.Seconds())

	minActual := expected / 4
	maxActual := expected * 4
	switch {
	case actual < minActual:
		actual = minActual
	case actual > maxActual:
		actual = maxActual
	}

	currentTarget := CompactToBig(tip.Header.Bits)
	newTarget := new(big.Int).Mul(currentTarget, big.NewInt(actual))
	newTarget.Div(newTarget, big.NewInt(expected))

	newTarget = clampTarget(newTarget, s.params.MinTargetCompact, s.params.PowLimitBits)

	if divisor, ok := s.params.Milestones[uint32(tipIdx+1)]; ok && divisor > 0 {
		newTarget.Div(newTarget, big.NewInt(int64(divisor)))
		newTarget = clampTarget(newTarget, s.params.MinTargetCompact, s.params.PowLimitBits)
	}

	return BigToCompact(newTarget)
}

// clampTarget bounds target to [hardest, easiest], where hardest and
// easiest are given as compact bits (hardest = smallest target value).
func clampTarget(target *big.Int, hardestCompact, easiestCompact uint32) *big.Int {
	hardest := CompactToBig(hardestCompact)
	easiest := CompactToBig(easiestCompact)
	if target.Cmp(hardest) < 0 {
		return new(big.Int).Set(hardest)
	}
	if target.Cmp(easiest) > 0 {
		return new(big.Int).Set(easiest)
	}
	return target
}

// EffectiveTemplateBits returns the bits to embed in a new block template
// at time now, applying the emergency relaxation rule of spec.md §4.3:
// if the tip is older than EmergencyThreshold, the effective target is
// multiplied by 4 per whole elapsed threshold period, capped at the
// network's easiest allowed target. This never changes the bits a
// candidate block is judged against in validate_block — only what
// templates advertise.
func (s *Store) EffectiveTemplateBits(now uint32) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	consensusBits := s.nextWorkRequiredLocked()
	tip := s.blocks[len(s.blocks)-1]

	thresholdSecs := int64(s.params.EmergencyThreshold.Seconds())
	if thresholdSecs <= 0 {
		return consensusBits
	}
	elapsed := int64(now) - int64(tip.Header.Timestamp)
	if elapsed <= thresholdSecs {
		return consensusBits
	}

	periods := elapsed / thresholdSecs
	target := CompactToBig(consensusBits)
	multiplier := new(big.Int).Lsh(big.NewInt(1), uint(2*periods)) // 4^periods
	target.Mul(target, multiplier)
	target = clampTarget(target, s.params.MinTargetCompact, s.params.PowLimitBits)
	return BigToCompact(target)
}
