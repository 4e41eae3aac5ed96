// Package config defines the option structs aurumd and aurumpool parse
// their CLI flags and config files into, following the teacher's
// go-flags-plus-defaults pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	flags "github.com/jessevdk/go-flags"

	"github.com/aurum-project/aurumd/stratum"
)

const (
	defaultDataDirname    = "data"
	defaultLogFilename    = "aurum.log"
	defaultDebugLevel     = "info"
	defaultMaxBlockSize   = 2_000_000
	defaultMempoolMaxSize = 100_000_000
	defaultMempoolTTL     = 14400 // 4 hours, in seconds
)

// NodeConfig holds aurumd's parsed options.
type NodeConfig struct {
	DataDir        string `short:"b" long:"datadir" description:"Directory to store chain and UTXO data"`
	LogDir         string `long:"logdir" description:"Directory to log output"`
	DebugLevel     string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} or TAG=level,TAG=level"`
	RegTest        bool   `long:"regtest" description:"Use the regression test network"`
	ListenAddr     string `long:"listen" description:"Address to listen for gossip peer connections"`
	ConnectPeers   []string `long:"connect" description:"Connect only to the specified peers at startup"`
	MaxBlockSize   int    `long:"maxblocksize" description:"Maximum serialized block size accepted"`
	MempoolMaxSize int    `long:"mempoolmaxsize" description:"Maximum total serialized size of admitted mempool transactions, in bytes"`
	MempoolTTLSecs uint32 `long:"mempoolttl" description:"Seconds an unconfirmed transaction may remain in the mempool before expiring"`
}

// PoolConfig holds aurumpool's parsed options.
type PoolConfig struct {
	DataDir        string   `short:"b" long:"datadir" description:"Directory to store pool state"`
	LogDir         string   `long:"logdir" description:"Directory to log output"`
	DebugLevel     string   `long:"debuglevel" description:"Logging level for all subsystems"`
	RegTest        bool     `long:"regtest" description:"Use the regression test network"`
	StratumListen  string   `long:"stratumlisten" description:"Address for miners to connect to over Stratum"`
	NodeGossipAddr string   `long:"nodeaddr" description:"Gossip address of the full node this pool tracks"`
	PoolAddress    string   `long:"pooladdress" description:"Address that receives block rewards before payout distribution"`
	PoolPrivKeyHex string   `long:"poolprivkey" description:"Hex-encoded 32-byte private key controlling PoolAddress, used to sign payout transactions"`
	PoolMnemonic   string   `long:"poolmnemonic" description:"BIP39 mnemonic to derive the pool's signing key from instead of --poolprivkey"`
	PoolHDIndex    uint32   `long:"poolhdindex" description:"BIP44 external address index to derive PoolAddress's key at, when using --poolmnemonic"`
	MinerTag       string   `long:"minertag" description:"Tag embedded in the coinbase scriptSig of blocks this pool builds"`
	MinPayout      uint64   `long:"minpayout" description:"Minimum pending balance, in base units, before a payout is sent"`
	PayoutFeeSteps []string `long:"payoutfeestep" description:"workercount:rate pairs defining the dynamic pool fee table, e.g. 50:0.015"`
}

func defaultNodeConfig() NodeConfig {
	return NodeConfig{
		DataDir:        defaultDataDirname,
		DebugLevel:     defaultDebugLevel,
		MaxBlockSize:   defaultMaxBlockSize,
		MempoolMaxSize: defaultMempoolMaxSize,
		MempoolTTLSecs: defaultMempoolTTL,
	}
}

func defaultPoolConfig() PoolConfig {
	return PoolConfig{
		DataDir:    defaultDataDirname,
		DebugLevel: defaultDebugLevel,
	}
}

// ParseNodeConfig parses aurumd's CLI flags over a defaulted NodeConfig.
func ParseNodeConfig() (*NodeConfig, error) {
	cfg := defaultNodeConfig()
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	if err := normalizeDataDir(&cfg.DataDir, &cfg.LogDir, "aurumd"); err != nil {
		return nil, err
	}
	if cfg.MaxBlockSize <= 0 {
		return nil, fmt.Errorf("config: maxblocksize must be positive")
	}
	return &cfg, nil
}

// ParsePoolConfig parses aurumpool's CLI flags over a defaulted
// PoolConfig.
func ParsePoolConfig() (*PoolConfig, error) {
	cfg := defaultPoolConfig()
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	if err := normalizeDataDir(&cfg.DataDir, &cfg.LogDir, "aurumpool"); err != nil {
		return nil, err
	}
	if cfg.PoolAddress == "" {
		return nil, fmt.Errorf("config: --pooladdress is required")
	}
	if cfg.PoolPrivKeyHex == "" && cfg.PoolMnemonic == "" {
		return nil, fmt.Errorf("config: one of --poolprivkey or --poolmnemonic is required")
	}
	if cfg.PoolPrivKeyHex != "" && cfg.PoolMnemonic != "" {
		return nil, fmt.Errorf("config: --poolprivkey and --poolmnemonic are mutually exclusive")
	}
	return &cfg, nil
}

func normalizeDataDir(dataDir, logDir *string, appName string) error {
	if *dataDir == defaultDataDirname {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: resolve home directory: %w", err)
		}
		*dataDir = filepath.Join(home, "."+appName, defaultDataDirname)
	}
	if *logDir == "" {
		*logDir = filepath.Join(filepath.Dir(*dataDir), "logs")
	}
	if err := os.MkdirAll(*dataDir, 0700); err != nil {
		return fmt.Errorf("config: create data directory: %w", err)
	}
	return nil
}

// LogFilePath returns the default log file path under logDir.
func LogFilePath(logDir string) string {
	return filepath.Join(logDir, defaultLogFilename)
}

// ParseFeeSteps parses --payoutfeestep values of the form
// "workercount:rate" into a stratum.FeeStep table, in the order given;
// stratum.NewPayoutAccounting sorts its own copy by worker count.
func ParseFeeSteps(raw []string) ([]stratum.FeeStep, error) {
	steps := make([]stratum.FeeStep, 0, len(raw))
	for _, s := range raw {
		parts := strings.SplitN(s, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("config: invalid payoutfeestep %q, want workercount:rate", s)
		}
		count, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("config: invalid worker count in %q: %w", s, err)
		}
		rate, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid fee rate in %q: %w", s, err)
		}
		steps = append(steps, stratum.FeeStep{WorkerCount: count, FeeRate: rate})
	}
	return steps, nil
}
