package gossip

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks every connected peer and lets callers broadcast outbound
// announcements to all of them, per spec.md §4.8's "announce_block/
// announce_tx, fire-and-forget with no delivery guarantees". One Hub
// backs both the listening side (accepted workers) and any peers this
// node dialed out to.
type Hub struct {
	mu    sync.Mutex
	peers map[*WebsocketPeer]struct{}

	handler        Inbound
	dedupeCapacity int
}

// NewHub builds a Hub that dispatches every inbound on_block/on_tx to
// handler and de-duplicates per-peer by up to dedupeCapacity recent
// hashes.
func NewHub(handler Inbound, dedupeCapacity int) *Hub {
	return &Hub{
		peers:          make(map[*WebsocketPeer]struct{}),
		handler:        handler,
		dedupeCapacity: dedupeCapacity,
	}
}

// Listen starts one acceptor goroutine serving websocket upgrades on
// addr (spec.md §5: "one acceptor thread per listening socket"). Each
// accepted connection gets its own ServeLoop goroutine ("thread per
// connected worker" sizing, reused here for peers).
func (h *Hub) Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("gossip: listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/gossip", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.adopt(conn)
	})
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()
	return ln, nil
}

// Dial connects out to a peer's gossip endpoint (e.g. a pool connecting
// to its upstream node) and registers it in the hub like an accepted
// connection.
func (h *Hub) Dial(url string) (*WebsocketPeer, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("gossip: dial %s: %w", url, err)
	}
	return h.adopt(conn), nil
}

func (h *Hub) adopt(conn *websocket.Conn) *WebsocketPeer {
	peer := NewWebsocketPeer(conn, h.handler, h.dedupeCapacity)
	h.mu.Lock()
	h.peers[peer] = struct{}{}
	h.mu.Unlock()

	go func() {
		_ = peer.ServeLoop()
		h.mu.Lock()
		delete(h.peers, peer)
		h.mu.Unlock()
		_ = peer.Close()
	}()
	return peer
}

// Broadcast fans fn out to every connected peer, e.g.
// hub.Broadcast(func(p *WebsocketPeer) { p.AnnounceBlock(b) }).
func (h *Hub) Broadcast(fn func(*WebsocketPeer)) {
	h.mu.Lock()
	peers := make([]*WebsocketPeer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		fn(p)
	}
}

// PeerCount reports how many peers are currently connected.
func (h *Hub) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}
