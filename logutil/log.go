// Package logutil provides the subsystem loggers shared by aurumd and
// aurumpool, following the decred/slog backend-plus-subsystem-tag idiom
// used throughout the chaincfg/exccd family this project descends from.
package logutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter mirrors output to stdout and, once initialized, to the
// rotating log file.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if rotatorInitialized {
		LogRotator.Write(p)
	}
	return len(p), nil
}

var backendLog = slog.NewBackend(logWriter{})

var (
	// LogRotator rolls the on-disk log file. Nil until InitLogRotator is
	// called.
	LogRotator *rotator.Rotator

	rotatorInitialized bool
)

// Per-subsystem loggers. Add an entry here and to subsystemLoggers when a
// new package needs its own tag.
var (
	nodeLog  = backendLog.Logger("NODE")
	storLog  = backendLog.Logger("STOR")
	mpolLog  = backendLog.Logger("MPOL")
	festLog  = backendLog.Logger("FEST")
	strmLog  = backendLog.Logger("STRM")
	paysLog  = backendLog.Logger("PAYS")
	prstLog  = backendLog.Logger("PRST")
	gsipLog  = backendLog.Logger("GSIP")
	cnfgLog  = backendLog.Logger("CNFG")
)

var subsystemLoggers = map[string]slog.Logger{
	"NODE": nodeLog,
	"STOR": storLog,
	"MPOL": mpolLog,
	"FEST": festLog,
	"STRM": strmLog,
	"PAYS": paysLog,
	"PRST": prstLog,
	"GSIP": gsipLog,
	"CNFG": cnfgLog,
}

// Logger returns the shared logger for tag, or the disabled logger if tag
// is unknown so callers never need a nil check.
func Logger(tag string) slog.Logger {
	if l, ok := subsystemLoggers[tag]; ok {
		return l
	}
	return slog.Disabled
}

// InitLogRotator creates the rotating log file at logFile (10KB roll
// threshold, 3 archived files retained, matching the teacher's rotator
// tuning).
func InitLogRotator(logFile string) error {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("logutil: create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("logutil: create log rotator: %w", err)
	}
	LogRotator = r
	rotatorInitialized = true
	return nil
}

// SetLogLevel sets the level of a single subsystem, ignoring unknown
// subsystem tags.
func SetLogLevel(subsystemID, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, ok := slog.LevelFromString(logLevel)
	if !ok {
		level = slog.LevelInfo
	}
	logger.SetLevel(level)
}

// SetLogLevels sets every subsystem logger to logLevel.
func SetLogLevels(logLevel string) {
	for subsysID := range subsystemLoggers {
		SetLogLevel(subsysID, logLevel)
	}
}

// SupportedSubsystems returns a sorted list of known subsystem tags, for
// the --debuglevel usage string.
func SupportedSubsystems() []string {
	tags := make([]string, 0, len(subsystemLoggers))
	for tag := range subsystemLoggers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// ParseAndSetDebugLevels parses a --debuglevel value, either a bare level
// ("debug") applied to every subsystem, or a comma-separated list of
// TAG=level pairs.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if _, ok := slog.LevelFromString(debugLevel); !ok {
			return fmt.Errorf("logutil: invalid debug level %q", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("logutil: invalid subsystem/level pair %q", pair)
		}
		subsysID, level := fields[0], fields[1]
		if _, ok := subsystemLoggers[subsysID]; !ok {
			return fmt.Errorf("logutil: unknown subsystem %q (supported: %s)",
				subsysID, strings.Join(SupportedSubsystems(), ", "))
		}
		if _, ok := slog.LevelFromString(level); !ok {
			return fmt.Errorf("logutil: invalid debug level %q", level)
		}
		SetLogLevel(subsysID, level)
	}
	return nil
}

// Node returns the NODE subsystem logger (cmd/aurumd wiring/lifecycle).
func Node() slog.Logger { return nodeLog }

// Store returns the STOR subsystem logger (chainstore).
func Store() slog.Logger { return storLog }

// Mempool returns the MPOL subsystem logger.
func Mempool() slog.Logger { return mpolLog }

// FeeEstimator returns the FEST subsystem logger.
func FeeEstimator() slog.Logger { return festLog }

// Stratum returns the STRM subsystem logger.
func Stratum() slog.Logger { return strmLog }

// PayoutSender returns the PAYS subsystem logger.
func PayoutSender() slog.Logger { return paysLog }

// Persist returns the PRST subsystem logger.
func Persist() slog.Logger { return prstLog }

// Gossip returns the GSIP subsystem logger.
func Gossip() slog.Logger { return gsipLog }

// Config returns the CNFG subsystem logger.
func Config() slog.Logger { return cnfgLog }
