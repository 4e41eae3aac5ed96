package stratum

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aurum-project/aurumd/txscript"
)

// MinAddressLength is the minimum acceptable address length
// mining.authorize enforces (spec.md §4.7).
const MinAddressLength = 30

// Worker is one authorized miner connection, identified by its
// `<address>[.worker]` username. Counters are updated from whichever
// goroutine handles that connection's submissions.
type Worker struct {
	Username string
	Address  string
	Name     string

	acceptedShares uint64
	staleShares    uint64
	rejectedShares uint64
	blocksFound    uint64
}

func (w *Worker) RecordAccepted() { atomic.AddUint64(&w.acceptedShares, 1) }
func (w *Worker) RecordStale()    { atomic.AddUint64(&w.staleShares, 1) }
func (w *Worker) RecordRejected() { atomic.AddUint64(&w.rejectedShares, 1) }
func (w *Worker) RecordBlock()    { atomic.AddUint64(&w.blocksFound, 1) }

// Counters is a point-in-time read of w's counters.
type Counters struct {
	Accepted uint64
	Stale    uint64
	Rejected uint64
	Blocks   uint64
}

func (w *Worker) Counters() Counters {
	return Counters{
		Accepted: atomic.LoadUint64(&w.acceptedShares),
		Stale:    atomic.LoadUint64(&w.staleShares),
		Rejected: atomic.LoadUint64(&w.rejectedShares),
		Blocks:   atomic.LoadUint64(&w.blocksFound),
	}
}

// WorkerSet authorizes and tracks every connected miner (spec.md §4.7
// "worker set"). Authorization rejects addresses that don't carry the
// network's expected prefix character or fall short of MinAddressLength,
// then fully decodes the address to confirm its checksum and version
// byte.
type WorkerSet struct {
	mu             sync.Mutex
	addressVersion byte
	expectedPrefix byte
	workers        map[string]*Worker
}

// NewWorkerSet builds a WorkerSet that authorizes addresses encoded
// under addressVersion, whose Base58Check encoding is expected to begin
// with expectedPrefix (e.g. 'S' on mainnet).
func NewWorkerSet(addressVersion, expectedPrefix byte) *WorkerSet {
	return &WorkerSet{
		addressVersion: addressVersion,
		expectedPrefix: expectedPrefix,
		workers:        make(map[string]*Worker),
	}
}

// Authorize validates username's embedded address and returns (creating
// if new) the Worker tracking it.
func (ws *WorkerSet) Authorize(username string) (*Worker, error) {
	address, name := splitUsername(username)
	if len(address) < MinAddressLength {
		return nil, fmt.Errorf("stratum: address %q shorter than minimum %d characters", address, MinAddressLength)
	}
	if address[0] != ws.expectedPrefix {
		return nil, fmt.Errorf("stratum: address %q does not have the expected prefix %q", address, string(ws.expectedPrefix))
	}
	if _, err := txscript.DecodeAddress(address, ws.addressVersion); err != nil {
		return nil, fmt.Errorf("stratum: invalid address: %w", err)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if w, ok := ws.workers[username]; ok {
		return w, nil
	}
	w := &Worker{Username: username, Address: address, Name: name}
	ws.workers[username] = w
	return w, nil
}

// Get returns the worker for username, if authorized.
func (ws *WorkerSet) Get(username string) (*Worker, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.workers[username]
	return w, ok
}

// Count returns the number of distinct authorized usernames, the input
// to the dynamic fee step table (spec.md §4.7).
func (ws *WorkerSet) Count() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.workers)
}

// splitUsername separates a `<address>[.worker]` username into its
// address and optional worker-name suffix.
func splitUsername(username string) (address, worker string) {
	if i := strings.IndexByte(username, '.'); i >= 0 {
		return username[:i], username[i+1:]
	}
	return username, ""
}
