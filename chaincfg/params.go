// Package chaincfg holds the network-wide policy constants from spec.md
// §4.2–§4.3 and the address version byte used by txscript.
package chaincfg

import "time"

// Params bundles the tunable consensus and network parameters for one
// chain instance (mainnet, testnet, simnet, ...).
type Params struct {
	Name string

	// AddressVersion is the Base58Check version byte for P2PKH
	// addresses. The mainnet value is chosen so every address begins
	// with 'S', per spec.md §6.
	AddressVersion byte

	// BlockTimeTarget is the desired average spacing between blocks.
	BlockTimeTarget time.Duration

	// MaxFutureBlockTime bounds how far into the future a block's
	// timestamp may be (spec.md §4.2 check 4).
	MaxFutureBlockTime time.Duration

	// MTPWindow is the number of trailing blocks used to compute the
	// median-time-past lower bound (spec.md §4.2 check 3).
	MTPWindow int

	// CoinbaseMaturity is the number of confirmations a coinbase output
	// must accumulate before it may be spent (spec.md §4.2 check 8).
	CoinbaseMaturity uint32

	// MaxBlockSize is the maximum serialized block size in bytes
	// (spec.md §4.2 check 10).
	MaxBlockSize int

	// MaxReorgDepth is the deepest rollback try_reorganize will accept
	// (spec.md §4.4).
	MaxReorgDepth uint32

	// DifficultyWindow is the number of trailing blocks (N) the DGW-style
	// retarget averages over (spec.md §4.3).
	DifficultyWindow int

	// EmergencyThreshold is how long the chain can go without a new
	// block before template production relaxes the effective target
	// (spec.md §4.3).
	EmergencyThreshold time.Duration

	// PowLimitBits is the easiest allowed compact target (MAX_TARGET_EASIEST).
	PowLimitBits uint32

	// MinTargetCompact is the hardest allowed compact target (MIN_TARGET_HARDEST),
	// expressed here as the smallest target value's compact encoding.
	MinTargetCompact uint32

	// InitialReward is the block-0 coinbase subsidy, in base units.
	InitialReward uint64

	// HalvingInterval is the number of blocks between subsidy halvings.
	HalvingInterval uint32

	// MinReward is the floor subsidy (spec.md §4.2: subsidy never drops
	// below this once halvings would take it lower).
	MinReward uint64

	// Milestones maps specific heights to a divisor applied to the
	// retarget output target at that height (spec.md §4.3 "optional
	// milestone multipliers").
	Milestones map[uint32]uint32

	// Genesis is the parameters of the hand-built genesis block.
	Genesis GenesisParams

	// MinFeeRate and MaxFeeRate bound every rate feeestimator.Estimate
	// returns, in base units per byte (spec.md §4.6 MIN_FEE_RATE /
	// MAX_FEE_RATE).
	MinFeeRate float64
	MaxFeeRate float64

	// FeeEstimateWindow is N in spec.md §4.6: the number of trailing
	// blocks the fee estimator's fill/median_accepted inputs cover.
	FeeEstimateWindow int
}

// GenesisParams describes the hand-authored genesis block's header
// fields; its single coinbase output pays the network's initial ledger
// rather than being mined by PoW search (height 0 has no parent to PoW
// against in the conventional sense, so it is accepted by fiat at
// startup rather than through the store's block validation).
type GenesisParams struct {
	Version   uint32
	Timestamp uint32
	Bits      uint32
	Nonce     uint32
	MinerTag  string
}

// MainNetParams returns the default policy constants from spec.md §4.2:
// BLOCK_TIME_TARGET=120s, MAX_FUTURE_BLOCK_TIME=7200s, MTP_WINDOW=11,
// COINBASE_MATURITY=100, MAX_BLOCK_SIZE=2,000,000, MAX_REORG_DEPTH=100.
func MainNetParams() *Params {
	return &Params{
		Name:               "mainnet",
		AddressVersion:     0x3f, // produces the 'S' address prefix
		BlockTimeTarget:     120 * time.Second,
		MaxFutureBlockTime:  7200 * time.Second,
		MTPWindow:           11,
		CoinbaseMaturity:    100,
		MaxBlockSize:        2_000_000,
		MaxReorgDepth:       100,
		DifficultyWindow:    24,
		EmergencyThreshold:  20 * time.Minute,
		PowLimitBits:        0x1e0fffff,
		MinTargetCompact:    0x1b00ffff,
		InitialReward:       100 * 100_000_000,
		HalvingInterval:     210_000,
		MinReward:           100_000_000,
		Milestones:          map[uint32]uint32{},
		MinFeeRate:          1,
		MaxFeeRate:          10_000,
		FeeEstimateWindow:   10,
		Genesis: GenesisParams{
			Version:   1,
			Timestamp: 1_600_000_000,
			Bits:      0x1e0fffff,
			Nonce:     0,
			MinerTag:  "aurum genesis",
		},
	}
}

// RegTestParams returns parameters tuned for fast local testing: a very
// easy PoW limit, a one-second block time target, and a shorter coinbase
// maturity and reorg depth, but otherwise the same values as mainnet.
func RegTestParams() *Params {
	p := MainNetParams()
	p.Name = "regtest"
	p.AddressVersion = 0x6f
	p.BlockTimeTarget = 1 * time.Second
	p.PowLimitBits = 0x207fffff
	p.CoinbaseMaturity = 10
	p.MaxReorgDepth = 20
	return p
}
