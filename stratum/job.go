package stratum

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/aurum-project/aurumd/chainstore"
	"github.com/aurum-project/aurumd/internal/chainhash"
	"github.com/aurum-project/aurumd/mempool"
	"github.com/aurum-project/aurumd/txscript"
	"github.com/aurum-project/aurumd/wire"
)

// MaxRetainedJobs is K in spec.md §4.7: in-flight shares may only
// reference one of the last K jobs; anything older is stale.
const MaxRetainedJobs = 10

// ShareTargetMultiplier scales the network target up to the easier
// target individual shares must beat by default (spec.md §4.7:
// "share_target = network_target * 256").
const ShareTargetMultiplier = 256

// HeaderPrefixSize is the header minus its trailing 4-byte nonce: the
// fixed prefix every share's hash is computed against.
const HeaderPrefixSize = wire.HeaderSize - 4

// Job is one immutable unit of mining work built from the chain tip, the
// pool's coinbase, and a mempool snapshot (spec.md §4.7 "job manager").
type Job struct {
	ID            string
	CreatedAt     uint32
	Height        uint32
	Bits          uint32
	HeaderPrefix  [HeaderPrefixSize]byte
	MerkleRoot    chainhash.Hash
	Coinbase      *wire.Transaction
	Txs           []*wire.Transaction
	NetworkTarget *big.Int
	ShareTarget   *big.Int

	mu   sync.Mutex
	seen map[string]bool
}

// ShareErrorKind identifies why a share submission was rejected.
type ShareErrorKind int

const (
	ErrStaleJob ShareErrorKind = iota
	ErrDuplicateShare
	ErrLowDifficulty
	ErrBadNonce
)

// ShareError is a typed share-submission rejection (spec.md §7).
type ShareError struct {
	Kind    ShareErrorKind
	Message string
}

func (e *ShareError) Error() string { return e.Message }

// ValidateShare runs spec.md §4.7's share submission order (minus job
// lookup, which the Manager performs first): dedup on (extranonce2,
// nonce), hash comparison against the share target, and a block
// candidate check against the network target.
func (j *Job) ValidateShare(extranonce2, nonceHex string) (hash chainhash.Hash, blockCandidate bool, shareErr *ShareError) {
	nonceBytes, err := decodeFixedHex(nonceHex, 4)
	if err != nil {
		return hash, false, &ShareError{Kind: ErrBadNonce, Message: "nonce must be 4 bytes of hex"}
	}

	key := extranonce2 + ":" + nonceHex
	j.mu.Lock()
	if j.seen == nil {
		j.seen = make(map[string]bool)
	}
	if j.seen[key] {
		j.mu.Unlock()
		return hash, false, &ShareError{Kind: ErrDuplicateShare, Message: "duplicate (extranonce2, nonce)"}
	}
	j.seen[key] = true
	j.mu.Unlock()

	data := make([]byte, HeaderPrefixSize+4)
	copy(data, j.HeaderPrefix[:])
	copy(data[HeaderPrefixSize:], nonceBytes)
	hash = chainhash.HashH(data)
	hashInt := chainstore.HashToBigEndianInt(hash)

	if !chainstore.HashMeetsTarget(hashInt, j.ShareTarget) {
		return hash, false, &ShareError{Kind: ErrLowDifficulty, Message: "share does not meet share target"}
	}
	blockCandidate = chainstore.HashMeetsTarget(hashInt, j.NetworkTarget)
	return hash, blockCandidate, nil
}

// AssembleBlock builds the full candidate block a block-candidate share
// submits to the validator: job.Coinbase followed by job.Txs, and the
// header this job advertised but with the winning nonce filled in.
func (j *Job) AssembleBlock(nonceHex string) (*wire.Block, error) {
	nonceBytes, err := decodeFixedHex(nonceHex, 4)
	if err != nil {
		return nil, fmt.Errorf("stratum: assemble block: %w", err)
	}
	var headerBuf [wire.HeaderSize]byte
	copy(headerBuf[:HeaderPrefixSize], j.HeaderPrefix[:])
	copy(headerBuf[HeaderPrefixSize:], nonceBytes)

	var hdrReader = bytesReader(headerBuf[:])
	header, err := wire.DeserializeBlockHeader(hdrReader)
	if err != nil {
		return nil, fmt.Errorf("stratum: reconstruct header: %w", err)
	}

	txs := make([]*wire.Transaction, 0, len(j.Txs)+1)
	txs = append(txs, j.Coinbase)
	txs = append(txs, j.Txs...)
	return &wire.Block{Header: *header, Height: j.Height, Txs: txs}, nil
}

// Manager builds and retains the last MaxRetainedJobs jobs, assigning
// ascending hex ids (spec.md §4.7).
type Manager struct {
	mu sync.Mutex

	chain          *chainstore.Store
	pool           *mempool.Pool
	poolAddress    string
	addressVersion byte
	minerTag       []byte
	maxBlockBytes  int

	jobs   []*Job
	byID   map[string]*Job
	nextID uint64
}

// NewManager constructs a job manager paying poolAddress (a
// Base58Check-encoded P2PKH address under addressVersion) in every
// coinbase it builds.
func NewManager(chain *chainstore.Store, pool *mempool.Pool, poolAddress string, addressVersion byte, minerTag string, maxBlockBytes int) *Manager {
	return &Manager{
		chain:          chain,
		pool:           pool,
		poolAddress:    poolAddress,
		addressVersion: addressVersion,
		minerTag:       []byte(minerTag),
		maxBlockBytes:  maxBlockBytes,
		byID:           make(map[string]*Job),
	}
}

// BuildJob constructs a new job from the current tip and mempool state,
// retains it, and evicts the oldest job beyond MaxRetainedJobs.
func (m *Manager) BuildJob(now uint32) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tip := m.chain.Tip()
	height := m.chain.Height() + 1
	bits := m.chain.EffectiveTemplateBits(now)

	entries := m.pool.SelectForBlock(m.maxBlockBytes)
	var totalFees uint64
	txs := make([]*wire.Transaction, len(entries))
	for i, e := range entries {
		totalFees += e.Fee
		txs[i] = e.Tx
	}

	coinbaseScript, err := txscript.PayToAddrScript(m.poolAddress, m.addressVersion)
	if err != nil {
		return nil, fmt.Errorf("stratum: pool coinbase script: %w", err)
	}
	subsidy := chainstore.Subsidy(m.chain.Params(), height)
	coinbase := &wire.Transaction{
		Version: 1,
		Inputs: []wire.TxInput{{
			Prev:      wire.OutPoint{Index: wire.CoinbaseOutputIndex},
			ScriptSig: txscript.CoinbaseScriptSig(height, m.minerTag),
			Sequence:  0xffffffff,
		}},
		Outputs: []wire.TxOutput{{Value: subsidy + totalFees, ScriptPubKey: coinbaseScript}},
	}

	txids := make([]chainhash.Hash, 0, len(txs)+1)
	txids = append(txids, wire.TxID(coinbase))
	for _, tx := range txs {
		txids = append(txids, wire.TxID(tx))
	}
	merkleRoot := wire.MerkleRoot(txids)

	header := wire.BlockHeader{
		Version:    1,
		PrevHash:   tip.Header.BlockHash(),
		MerkleRoot: merkleRoot,
		Timestamp:  now,
		Bits:       bits,
	}
	headerBytes := header.Bytes()

	job := &Job{
		ID:            fmt.Sprintf("%x", m.nextID),
		CreatedAt:     now,
		Height:        height,
		Bits:          bits,
		MerkleRoot:    merkleRoot,
		Coinbase:      coinbase,
		Txs:           txs,
		NetworkTarget: chainstore.CompactToBig(bits),
		ShareTarget:   new(big.Int).Mul(chainstore.CompactToBig(bits), big.NewInt(ShareTargetMultiplier)),
	}
	copy(job.HeaderPrefix[:], headerBytes[:HeaderPrefixSize])
	m.nextID++

	m.jobs = append(m.jobs, job)
	m.byID[job.ID] = job
	if len(m.jobs) > MaxRetainedJobs {
		evicted := m.jobs[0]
		m.jobs = m.jobs[1:]
		delete(m.byID, evicted.ID)
	}

	return job, nil
}

// JobByID returns the retained job with the given id, or ok=false if it
// has aged out (stale).
func (m *Manager) JobByID(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.byID[id]
	return j, ok
}
