package stratum

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"time"
)

// extranonce1Size is the per-session extranonce1 advertised in
// mining.subscribe's result. This pool's job model hashes a fixed
// header_prefix per job rather than reassembling a per-share merkle
// root from extranonce1/extranonce2 (see job.go's doc comment), so
// extranonce1 is accepted protocol furniture, not consumed by
// ValidateShare — real Stratum clients expect it in the subscribe
// response regardless.
const extranonce1Size = 4

// Session drives one worker's connection: subscribe, authorize, and a
// loop of mining.submit calls against whatever job the JobBroadcaster
// last pushed. One Session runs on its own goroutine per spec.md §5
// ("thread per connected worker").
type Session struct {
	codec       *Codec
	jobs        *Manager
	workers     *WorkerSet
	payouts     *PayoutAccounting
	onBlock     func(b BlockSubmission)
	idleTimeout time.Duration

	worker       *Worker
	extranonce1  string
	currentJobID string
}

// BlockSubmission is what Session hands to onBlock when a share turns
// out to be a full block candidate.
type BlockSubmission struct {
	Job    *Job
	Worker *Worker
	Nonce  string
}

// NewSession wraps conn in a Stratum session. onBlock is invoked
// synchronously from the session's goroutine whenever a submitted share
// also clears the network target; the caller is responsible for
// assembling and gossiping the resulting block quickly since the
// session blocks on it.
func NewSession(conn net.Conn, jobs *Manager, workers *WorkerSet, payouts *PayoutAccounting, idleTimeout time.Duration, onBlock func(BlockSubmission)) *Session {
	var nonce1 [extranonce1Size]byte
	_, _ = rand.Read(nonce1[:])
	return &Session{
		codec:       NewCodec(conn),
		jobs:        jobs,
		workers:     workers,
		payouts:     payouts,
		onBlock:     onBlock,
		idleTimeout: idleTimeout,
		extranonce1: hex.EncodeToString(nonce1[:]),
	}
}

// Serve runs the session's request loop until the connection closes or
// idles past idleTimeout (spec.md §5 "per-worker connection idle
// timeout (>=30s with keepalive ping)" — this pool relies on
// mining.submit/authorize traffic itself as the keepalive signal rather
// than a separate ping method).
func (s *Session) Serve() error {
	defer s.codec.Close()
	for {
		if s.idleTimeout > 0 {
			_ = s.codec.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		req, err := s.codec.ReadRequest()
		if err != nil {
			return err
		}
		if err := s.handle(req); err != nil {
			return err
		}
	}
}

func (s *Session) handle(req *Request) error {
	switch req.Method {
	case "mining.subscribe":
		return s.codec.SendResponse(&Response{
			ID:     req.ID,
			Result: SubscribeResult{Extranonce1: s.extranonce1, Extranonce2Sz: 4},
		})
	case "mining.authorize":
		username, _, err := ParseAuthorizeParams(req.Params)
		if err != nil {
			return s.codec.SendResponse(&Response{ID: req.ID, Error: RPCError(ErrCodeUnauthorized, err.Error())})
		}
		w, err := s.workers.Authorize(username)
		if err != nil {
			return s.codec.SendResponse(&Response{ID: req.ID, Result: false, Error: RPCError(ErrCodeUnauthorized, err.Error())})
		}
		s.worker = w
		return s.codec.SendResponse(&Response{ID: req.ID, Result: true})
	case "mining.submit":
		return s.handleSubmit(req)
	default:
		return s.codec.SendResponse(&Response{ID: req.ID, Error: RPCError(ErrCodeUnauthorized, fmt.Sprintf("unknown method %q", req.Method))})
	}
}

func (s *Session) handleSubmit(req *Request) error {
	params, err := ParseSubmitParams(req.Params)
	if err != nil {
		return s.codec.SendResponse(&Response{ID: req.ID, Error: RPCError(ErrCodeBadNonce, err.Error())})
	}
	if s.worker == nil {
		return s.codec.SendResponse(&Response{ID: req.ID, Error: RPCError(ErrCodeUnauthorized, "not authorized")})
	}
	job, ok := s.jobs.JobByID(params.JobID)
	if !ok {
		s.worker.RecordStale()
		return s.codec.SendResponse(&Response{ID: req.ID, Error: RPCError(ErrCodeStaleJob, "stale job id")})
	}

	_, blockCandidate, shareErr := job.ValidateShare(params.Extranonce2, params.Nonce)
	if shareErr != nil {
		switch shareErr.Kind {
		case ErrDuplicateShare:
			s.worker.RecordRejected()
			return s.codec.SendResponse(&Response{ID: req.ID, Error: RPCError(ErrCodeDuplicateShare, shareErr.Message)})
		case ErrLowDifficulty:
			s.worker.RecordRejected()
			return s.codec.SendResponse(&Response{ID: req.ID, Error: RPCError(ErrCodeLowDifficulty, shareErr.Message)})
		default:
			s.worker.RecordRejected()
			return s.codec.SendResponse(&Response{ID: req.ID, Error: RPCError(ErrCodeBadNonce, shareErr.Message)})
		}
	}

	s.worker.RecordAccepted()
	s.payouts.RecordShare(s.worker.Username)

	if blockCandidate {
		s.worker.RecordBlock()
		if s.onBlock != nil {
			s.onBlock(BlockSubmission{Job: job, Worker: s.worker, Nonce: params.Nonce})
		}
	}
	return s.codec.SendResponse(&Response{ID: req.ID, Result: true})
}

// Notify pushes job as a mining.notify, encoding its header fields the
// way spec.md §6 describes (coinbase1/coinbase2 collapse to the job's
// already-built coinbase hex split around an empty extranonce gap,
// consistent with this pool not reassembling merkle roots per-share).
func (s *Session) Notify(job *Job, cleanJobs bool) error {
	s.currentJobID = job.ID
	coinbaseHex := hex.EncodeToString(mustSerializeTx(job.Coinbase))
	notif := &Notification{
		Method: "mining.notify",
		Params: NotifyParams{
			JobID:          job.ID,
			PrevHash:       hex.EncodeToString(job.HeaderPrefix[4:36]),
			Coinbase1:      coinbaseHex,
			Coinbase2:      "",
			MerkleBranches: nil,
			Version:        fmt.Sprintf("%08x", binary.LittleEndian.Uint32(job.HeaderPrefix[0:4])),
			NBits:          fmt.Sprintf("%08x", job.Bits),
			NTime:          fmt.Sprintf("%08x", job.CreatedAt),
			CleanJobs:      cleanJobs,
		}.AsParams(),
	}
	return s.codec.SendNotification(notif)
}

// SetTarget pushes a mining.set_target notification carrying job's share
// target in hex, the difficulty unit Stratum clients compare shares
// against locally before ever submitting them.
func (s *Session) SetTarget(job *Job) error {
	return s.codec.SendNotification(&Notification{
		Method: "mining.set_target",
		Params: []interface{}{fmt.Sprintf("%064x", job.ShareTarget)},
	})
}

func mustSerializeTx(tx interface{ Bytes() []byte }) []byte {
	return tx.Bytes()
}

// Broadcaster tracks every live Session so the job manager's background
// task can push mining.notify/set_target to all of them at once when a
// new job is built (spec.md §5: "the job manager... [is a] single
// background task").
type Broadcaster struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewBroadcaster builds an empty session registry.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{sessions: make(map[*Session]struct{})}
}

// Register adds s to the registry; callers should Unregister once s's
// connection closes.
func (b *Broadcaster) Register(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[s] = struct{}{}
}

// Unregister removes s from the registry.
func (b *Broadcaster) Unregister(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, s)
}

// Broadcast pushes job to every registered session, dropping (and
// unregistering) any session whose write fails.
func (b *Broadcaster) Broadcast(job *Job, cleanJobs bool) {
	b.mu.Lock()
	sessions := make([]*Session, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		if err := s.SetTarget(job); err != nil {
			b.Unregister(s)
			continue
		}
		if err := s.Notify(job, cleanJobs); err != nil {
			b.Unregister(s)
		}
	}
}
