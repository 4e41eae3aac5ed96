package gossip

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/aurum-project/aurumd/wire"
)

const (
	// writeWait bounds how long a single outbound frame may take.
	writeWait = 10 * time.Second
	// maxMessageBytes caps a single inbound frame (spec.md §5 "per-peer
	// receive buffer cap").
	maxMessageBytes = 4 << 20
	// peerRateLimit and peerBurst bound how many messages per second a
	// single peer connection may push before being dropped.
	peerRateLimit = 50
	peerBurst     = 100
)

// envelopeKind tags the JSON envelope every wire message travels in, per
// SPEC_FULL.md's "on_block/on_tx/announce_block/announce_tx as typed
// JSON envelopes" framing.
type envelopeKind string

const (
	kindOnBlock        envelopeKind = "on_block"
	kindOnTx           envelopeKind = "on_tx"
	kindAnnounceBlock  envelopeKind = "announce_block"
	kindAnnounceTx     envelopeKind = "announce_tx"
)

type envelope struct {
	Kind envelopeKind    `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// WebsocketPeer is a concrete Peer implementation framing gossip
// messages as JSON over a gorilla/websocket connection, rate-limited per
// connection and de-duplicated by block_hash/txid.
type WebsocketPeer struct {
	conn    *websocket.Conn
	handler Inbound
	limiter *rate.Limiter

	writeMu sync.Mutex

	seenBlocks *Seen
	seenTxs    *Seen
}

// NewWebsocketPeer wraps conn, dispatching decoded on_block/on_tx and
// announce_block/announce_tx envelopes to handler. dedupeCapacity bounds how many recent
// block/tx hashes are remembered to make repeated announcements
// idempotent.
func NewWebsocketPeer(conn *websocket.Conn, handler Inbound, dedupeCapacity int) *WebsocketPeer {
	conn.SetReadLimit(maxMessageBytes)
	return &WebsocketPeer{
		conn:       conn,
		handler:    handler,
		limiter:    rate.NewLimiter(rate.Limit(peerRateLimit), peerBurst),
		seenBlocks: NewSeen(dedupeCapacity),
		seenTxs:    NewSeen(dedupeCapacity),
	}
}

// ServeLoop reads frames until the connection fails, the peer exceeds its
// rate limit, or the handler returns an error, dispatching each to
// OnBlock/OnTx. Frames that fail to decode are skipped.
// It is meant to run on its own goroutine, one per connected peer
// (spec.md §5 "thread per connected worker" sizing applies the same way
// here).
func (p *WebsocketPeer) ServeLoop() error {
	for {
		if !p.limiter.Allow() {
			return fmt.Errorf("gossip: peer exceeded rate limit")
		}
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("gossip: read: %w", err)
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue // ignore malformed frames rather than killing the connection
		}
		if err := p.dispatch(env); err != nil {
			return err
		}
	}
}

func (p *WebsocketPeer) dispatch(env envelope) error {
	switch env.Kind {
	case kindOnBlock, kindAnnounceBlock:
		var b wire.Block
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return nil
		}
		if !p.seenBlocks.MarkIfNew(b.Header.BlockHash()) {
			return nil
		}
		return p.handler.OnBlock(&b)
	case kindOnTx, kindAnnounceTx:
		var tx wire.Transaction
		if err := json.Unmarshal(env.Data, &tx); err != nil {
			return nil
		}
		if !p.seenTxs.MarkIfNew(wire.TxID(&tx)) {
			return nil
		}
		return p.handler.OnTx(&tx)
	default:
		return nil
	}
}

// OnBlock satisfies Inbound by forwarding straight to the local handler;
// present so WebsocketPeer can be composed where an Inbound is expected
// without going through the wire (e.g. loopback tests).
func (p *WebsocketPeer) OnBlock(b *wire.Block) error { return p.handler.OnBlock(b) }

// OnTx satisfies Inbound the same way as OnBlock.
func (p *WebsocketPeer) OnTx(tx *wire.Transaction) error { return p.handler.OnTx(tx) }

// AnnounceBlock sends b to the peer, fire-and-forget: write errors are
// swallowed here (the caller has no retry contract for a dead peer;
// ServeLoop's read side will notice the connection is gone).
func (p *WebsocketPeer) AnnounceBlock(b *wire.Block) {
	p.send(kindAnnounceBlock, b)
}

// AnnounceTx sends tx to the peer the same way.
func (p *WebsocketPeer) AnnounceTx(tx *wire.Transaction) {
	p.send(kindAnnounceTx, tx)
}

func (p *WebsocketPeer) send(kind envelopeKind, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	payload, err := json.Marshal(envelope{Kind: kind, Data: data})
	if err != nil {
		return
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = p.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying connection.
func (p *WebsocketPeer) Close() error {
	return p.conn.Close()
}
