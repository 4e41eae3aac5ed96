package chainstore

import "github.com/aurum-project/aurumd/chaincfg"

// Subsidy computes the block coinbase subsidy at height per spec.md §4.2:
// subsidy(h) = max(INITIAL_REWARD >> (h / HALVING_INTERVAL), MIN_REWARD).
func Subsidy(params *chaincfg.Params, height uint32) uint64 {
	halvings := height / params.HalvingInterval
	reward := params.InitialReward
	if halvings >= 64 {
		// Shifting a uint64 by 64+ is undefined in general and always
		// yields zero subsidy here; floor at MinReward below.
		reward = 0
	} else {
		reward >>= halvings
	}
	if reward < params.MinReward {
		return params.MinReward
	}
	return reward
}
