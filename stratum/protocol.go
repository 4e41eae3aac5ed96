// Package stratum implements the pool-facing Stratum v1 server (spec.md
// C10): job manager, share validator, worker set, and payout accounting,
// wired to the consensus validator only through the gossip submission
// path described in spec.md §4.8.
package stratum

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

const (
	// writeTimeout bounds how long a single notify/response write may
	// block a worker connection.
	writeTimeout = 10 * time.Second

	// maxLineSize caps a single JSON-RPC line, guarding against a worker
	// holding a connection open with an endless unterminated line.
	maxLineSize = 16 * 1024
)

// Request is a Stratum JSON-RPC request: mining.subscribe, .authorize,
// or .submit sent by a worker.
type Request struct {
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response answers a Request by ID. Error, when non-nil, is the
// [code, message] pair spec.md §7 requires for Stratum failures.
type Response struct {
	ID     interface{} `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  interface{} `json:"error"`
}

// Notification is a server-originated push: mining.notify,
// mining.set_difficulty/set_target, or the advisory pool.block_* methods.
type Notification struct {
	ID     interface{}   `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// Codec frames newline-delimited JSON-RPC messages over a worker
// connection, grounded on the teacher pack's own Stratum transport
// (arejula27-p2pool-go's internal/stratum.Codec), generalized here from
// a share-chain gossip codec to the Stratum v1 server role.
type Codec struct {
	conn    net.Conn
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// NewCodec wraps conn in a line-delimited JSON-RPC Codec.
func NewCodec(conn net.Conn) *Codec {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), maxLineSize)
	return &Codec{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}
}

// ReadRequest blocks for the next newline-delimited JSON-RPC request.
func (c *Codec) ReadRequest() (*Request, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, fmt.Errorf("stratum: read: %w", err)
		}
		return nil, fmt.Errorf("stratum: connection closed")
	}
	var req Request
	if err := json.Unmarshal(c.scanner.Bytes(), &req); err != nil {
		return nil, fmt.Errorf("stratum: unmarshal request: %w", err)
	}
	return &req, nil
}

// SendResponse writes resp, newline-terminated.
func (c *Codec) SendResponse(resp *Response) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.encoder.Encode(resp)
}

// SendNotification writes notif, newline-terminated.
func (c *Codec) SendNotification(notif *Notification) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.encoder.Encode(notif)
}

// Close closes the underlying connection.
func (c *Codec) Close() error {
	return c.conn.Close()
}

// RPC error codes returned in Response.Error's [code, message] pair.
const (
	ErrCodeBadNonce       = 20
	ErrCodeStaleJob       = 21
	ErrCodeDuplicateShare = 22
	ErrCodeLowDifficulty  = 23
	ErrCodeUnauthorized   = 24
)

// RPCError builds the [code, message] pair Stratum callers expect in
// Response.Error.
func RPCError(code int, message string) []interface{} {
	return []interface{}{code, message}
}

// SubscribeResult is the result array for mining.subscribe: an (empty,
// in this pool's single-session-id design) subscription details list,
// the session's extranonce1 in hex, and its extranonce2 byte size.
type SubscribeResult struct {
	Details       []interface{} `json:"-"`
	Extranonce1   string        `json:"-"`
	Extranonce2Sz int           `json:"-"`
}

// MarshalJSON renders SubscribeResult as the three-element array
// mining.subscribe's result must be: [details, extranonce1, extranonce2_size].
func (r SubscribeResult) MarshalJSON() ([]byte, error) {
	details := r.Details
	if details == nil {
		details = []interface{}{}
	}
	return json.Marshal([]interface{}{details, r.Extranonce1, r.Extranonce2Sz})
}

// NotifyParams is the payload of a mining.notify push (spec.md §6).
type NotifyParams struct {
	JobID          string
	PrevHash       string
	Coinbase1      string
	Coinbase2      string
	MerkleBranches []string
	Version        string
	NBits          string
	NTime          string
	CleanJobs      bool
}

// AsParams renders NotifyParams in the positional array order
// mining.notify's wire form requires.
func (p NotifyParams) AsParams() []interface{} {
	branches := make([]interface{}, len(p.MerkleBranches))
	for i, b := range p.MerkleBranches {
		branches[i] = b
	}
	return []interface{}{
		p.JobID, p.PrevHash, p.Coinbase1, p.Coinbase2, branches,
		p.Version, p.NBits, p.NTime, p.CleanJobs,
	}
}

// SubmitParams is mining.submit's positional parameter tuple.
type SubmitParams struct {
	Username    string
	JobID       string
	Extranonce2 string
	NTime       string
	Nonce       string
}

// ParseSubmitParams decodes mining.submit's JSON array parameters.
func ParseSubmitParams(raw json.RawMessage) (SubmitParams, error) {
	var fields []string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return SubmitParams{}, fmt.Errorf("stratum: mining.submit: %w", err)
	}
	if len(fields) < 5 {
		return SubmitParams{}, fmt.Errorf("stratum: mining.submit: want 5 params, got %d", len(fields))
	}
	return SubmitParams{
		Username:    fields[0],
		JobID:       fields[1],
		Extranonce2: fields[2],
		NTime:       fields[3],
		Nonce:       fields[4],
	}, nil
}

// ParseAuthorizeParams decodes mining.authorize's JSON array parameters
// into (username, password).
func ParseAuthorizeParams(raw json.RawMessage) (username, password string, err error) {
	var fields []string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", "", fmt.Errorf("stratum: mining.authorize: %w", err)
	}
	if len(fields) < 1 {
		return "", "", fmt.Errorf("stratum: mining.authorize: missing username")
	}
	if len(fields) > 1 {
		password = fields[1]
	}
	return fields[0], password, nil
}
