// Command aurumpool runs the Stratum mining pool: job manager, worker
// set, proportional payout accounting, and the payout sender, tracking
// chain state through its own gossip connection to a full node rather
// than linking the node's process directly.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aurum-project/aurumd/chaincfg"
	"github.com/aurum-project/aurumd/chainstore"
	"github.com/aurum-project/aurumd/config"
	"github.com/aurum-project/aurumd/feeestimator"
	"github.com/aurum-project/aurumd/gossip"
	"github.com/aurum-project/aurumd/internal/ecdsa"
	"github.com/aurum-project/aurumd/internal/hash160"
	"github.com/aurum-project/aurumd/internal/hdkeychain"
	"github.com/aurum-project/aurumd/logutil"
	"github.com/aurum-project/aurumd/mempool"
	"github.com/aurum-project/aurumd/payoutsender"
	"github.com/aurum-project/aurumd/persist"
	"github.com/aurum-project/aurumd/stratum"
	"github.com/aurum-project/aurumd/txscript"
	"github.com/aurum-project/aurumd/wire"
)

const (
	jobRebuildInterval  = 10 * time.Second
	payoutCycleInterval = 5 * time.Minute
	workerIdleTimeout   = 2 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "aurumpool:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.ParsePoolConfig()
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	feeSteps, err := config.ParseFeeSteps(cfg.PayoutFeeSteps)
	if err != nil {
		return fmt.Errorf("parse fee steps: %w", err)
	}

	if err := logutil.InitLogRotator(config.LogFilePath(cfg.LogDir)); err != nil {
		return fmt.Errorf("init log rotator: %w", err)
	}
	if err := logutil.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return fmt.Errorf("parse debuglevel: %w", err)
	}
	log := logutil.Stratum()
	log.Infof("aurumpool starting, datadir=%s", cfg.DataDir)

	params := chaincfg.MainNetParams()
	if cfg.RegTest {
		params = chaincfg.RegTestParams()
	}

	oracle, poolPKH, err := buildSigningOracle(cfg)
	if err != nil {
		return fmt.Errorf("build signing oracle: %w", err)
	}
	poolScript := txscript.PayToPubKeyHashScript(poolPKH)

	expectedPrefix := txscript.EncodeAddress([20]byte{}, params.AddressVersion)[0]

	genesis := chainstore.BuildGenesisBlock(params)
	chain := chainstore.New(params, genesis)
	pool := mempool.New(mempool.StoreView{Store: chain}, params.MaxBlockSize*4, 0)
	chain.SetMempool(pool)

	stateStore, err := persist.OpenPoolStateStore(filepath.Join(cfg.DataDir, "poolstate.db"))
	if err != nil {
		return fmt.Errorf("open pool state store: %w", err)
	}
	defer stateStore.Close()

	accounting := stratum.NewPayoutAccounting(feeSteps, params.MinFeeRate, params.MaxFeeRate)
	if saved, ok, err := stateStore.Load(); err != nil {
		return fmt.Errorf("load pool state: %w", err)
	} else if ok {
		accounting.LoadState(saved)
		log.Infof("restored pool state: total_paid=%d blocks_paid=%d", saved.TotalPaid, saved.BlocksPaid)
	}

	workers := stratum.NewWorkerSet(params.AddressVersion, expectedPrefix)
	broadcaster := stratum.NewBroadcaster()
	estimator := feeestimator.New(params.MinFeeRate, params.MaxFeeRate, params.MaxBlockSize, params.FeeEstimateWindow)
	feeWindow := feeestimator.NewWindow(params.FeeEstimateWindow)
	sender := payoutsender.NewSender(chain, accounting, oracle, poolScript, params.AddressVersion, cfg.MinPayout)

	inbound := &poolChainSync{chain: chain, pool: pool, feeWindow: feeWindow, log: logutil.Gossip()}
	hub := gossip.NewHub(inbound, 4096)
	inbound.hub = hub

	if cfg.NodeGossipAddr != "" {
		if _, err := hub.Dial(cfg.NodeGossipAddr); err != nil {
			return fmt.Errorf("dial node at %s: %w", cfg.NodeGossipAddr, err)
		}
		log.Infof("connected to node at %s", cfg.NodeGossipAddr)
	}

	jobs := stratum.NewManager(chain, pool, cfg.PoolAddress, params.AddressVersion, cfg.MinerTag, params.MaxBlockSize)

	ln, err := net.Listen("tcp", cfg.StratumListen)
	if err != nil {
		return fmt.Errorf("stratum listen: %w", err)
	}
	defer ln.Close()
	log.Infof("stratum listening on %s", cfg.StratumListen)

	onBlock := func(sub stratum.BlockSubmission) {
		handleBlockSubmission(sub, jobs, chain, hub, accounting, log)
	}
	go acceptWorkers(ln, jobs, workers, accounting, broadcaster, onBlock, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobTicker := time.NewTicker(jobRebuildInterval)
	defer jobTicker.Stop()
	payoutTicker := time.NewTicker(payoutCycleInterval)
	defer payoutTicker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-jobTicker.C:
			now := uint32(time.Now().Unix())
			job, err := jobs.BuildJob(now)
			if err != nil {
				log.Warnf("build job: %v", err)
				continue
			}
			broadcaster.Broadcast(job, true)
		case <-payoutTicker.C:
			now := uint32(time.Now().Unix())
			sizes, rates := feeWindow.Snapshot()
			est := estimator.Estimate(feeestimator.Economy, pool.FeeRatesDescending(), pool.Size(), sizes, rates)
			tx, paid, err := sender.RunCycle(est.SatPerByte, now)
			if err != nil {
				log.Warnf("payout cycle: %v", err)
				continue
			}
			if tx != nil {
				if err := pool.Add(tx, now, true); err != nil {
					log.Warnf("admit payout tx locally: %v", err)
				}
				hub.Broadcast(func(p *gossip.WebsocketPeer) { p.AnnounceTx(tx) })
				log.Infof("sent payout tx %s to %d recipients", wire.TxID(tx), len(paid))
			}
			if err := stateStore.Save(accounting.Snapshot()); err != nil {
				log.Warnf("persist pool state: %v", err)
			}
		}
	}

	log.Infof("shutting down, persisting final pool state")
	if err := stateStore.Save(accounting.Snapshot()); err != nil {
		log.Warnf("final persist: %v", err)
	}
	return nil
}

// buildSigningOracle constructs the pool's ecdsa.Oracle from either a
// raw hex private key (--poolprivkey) or a BIP39 mnemonic
// (--poolmnemonic), per spec.md A5's external wallet backing the
// signing oracle; ParsePoolConfig already guarantees exactly one of the
// two is set. It also returns the pubkey hash the oracle signs for, so
// the caller can build the pool's own P2PKH script from it.
func buildSigningOracle(cfg *config.PoolConfig) (ecdsa.Oracle, [20]byte, error) {
	if cfg.PoolPrivKeyHex != "" {
		keyBytes, err := hex.DecodeString(cfg.PoolPrivKeyHex)
		if err != nil {
			return nil, [20]byte{}, fmt.Errorf("decode pool private key: %w", err)
		}
		poolKey, err := ecdsa.NewPrivateKeyFromBytes(keyBytes)
		if err != nil {
			return nil, [20]byte{}, fmt.Errorf("pool private key: %w", err)
		}
		poolPKH := hash160.Sum(poolKey.PubKey().SerializeCompressed())
		return ecdsa.NewStaticOracle(map[[20]byte]*ecdsa.PrivateKey{poolPKH: poolKey}), poolPKH, nil
	}

	seed, err := hdkeychain.SeedFromMnemonic(cfg.PoolMnemonic, "")
	if err != nil {
		return nil, [20]byte{}, fmt.Errorf("derive seed from mnemonic: %w", err)
	}
	master, err := hdkeychain.NewMaster(seed)
	if err != nil {
		return nil, [20]byte{}, fmt.Errorf("derive master key: %w", err)
	}
	oracle, err := hdkeychain.NewWalletOracle(master, 0, cfg.PoolHDIndex+1)
	if err != nil {
		return nil, [20]byte{}, fmt.Errorf("derive wallet oracle: %w", err)
	}
	poolPKH, err := oracle.PubKeyHashAt(master, 0, cfg.PoolHDIndex)
	if err != nil {
		return nil, [20]byte{}, fmt.Errorf("derive pool address key: %w", err)
	}
	return oracle, poolPKH, nil
}

// acceptWorkers is the Stratum listener's acceptor loop: one goroutine
// per accepted connection (spec.md §5 "thread per connected worker").
func acceptWorkers(ln net.Listener, jobs *stratum.Manager, workers *stratum.WorkerSet, accounting *stratum.PayoutAccounting, broadcaster *stratum.Broadcaster, onBlock func(stratum.BlockSubmission), log interface {
	Warnf(string, ...interface{})
}) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Warnf("accept: %v", err)
			return
		}
		session := stratum.NewSession(conn, jobs, workers, accounting, workerIdleTimeout, onBlock)
		broadcaster.Register(session)
		go func() {
			defer broadcaster.Unregister(session)
			_ = session.Serve()
		}()
	}
}

// handleBlockSubmission assembles the full block a winning share
// describes, commits it locally, credits the round, and announces it to
// the pool's peers (its upstream node, primarily) for propagation.
func handleBlockSubmission(sub stratum.BlockSubmission, jobs *stratum.Manager, chain *chainstore.Store, hub *gossip.Hub, accounting *stratum.PayoutAccounting, log interface {
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
}) {
	block, err := sub.Job.AssembleBlock(sub.Nonce)
	if err != nil {
		log.Warnf("assemble block from share: %v", err)
		return
	}
	now := uint32(time.Now().Unix())
	if err := chain.AddBlock(block, now); err != nil {
		log.Warnf("locally reject own mined block %s: %v", block.Header.BlockHash(), err)
		return
	}

	var reward uint64
	for _, out := range block.Txs[0].Outputs {
		reward += out.Value
	}
	feeRate := accounting.FeeRate(0)
	accounting.DistributeBlock(reward, feeRate, now)

	log.Infof("found block at height %d, reward=%d, hash=%s", block.Height, reward, block.Header.BlockHash())
	hub.Broadcast(func(p *gossip.WebsocketPeer) { p.AnnounceBlock(block) })
}

// poolChainSync keeps the pool's own chain store and mempool in lockstep
// with the upstream node it gossips with, the same adapter shape
// aurumd's own nodeInbound uses.
type poolChainSync struct {
	chain     *chainstore.Store
	pool      *mempool.Pool
	feeWindow *feeestimator.Window
	hub       *gossip.Hub
	log       interface {
		Warnf(string, ...interface{})
	}
}

func (s *poolChainSync) OnBlock(b *wire.Block) error {
	now := uint32(time.Now().Unix())
	if err := s.chain.AddBlock(b, now); err != nil {
		s.log.Warnf("reject gossiped block %s: %v", b.Header.BlockHash(), err)
		return nil
	}
	s.feeWindow.RecordBlock(b.SerializeSize(), nil)
	return nil
}

func (s *poolChainSync) OnTx(tx *wire.Transaction) error {
	if err := s.pool.Add(tx, uint32(time.Now().Unix()), false); err != nil {
		s.log.Warnf("reject gossiped tx %s: %v", wire.TxID(tx), err)
	}
	return nil
}
