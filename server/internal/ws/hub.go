package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vitalops/vitalops/server/internal/store"
	"github.com/vitalops/vitalops/server/internal/vitals"
)

// EventVitals is the event name carried by every stream message.
const EventVitals = "vitals"

const (
	writeWait    = 10 * time.Second
	idleTimeout  = 60 * time.Second
	keepalive    = idleTimeout * 9 / 10
	queueDepth   = 16
	maxInboundSz = 512
)

// Message is the JSON envelope sent to clients.
// Data is nil until the first reading has been stored.
type Message struct {
	Event string                `json:"event"`
	Data  *vitals.StoredReading `json:"data"`
}

// Hub streams the latest reading to every connected client, both on a fixed
// interval and whenever Notify reports a new reading.
type Hub struct {
	store    *store.Store
	interval time.Duration
	upgrader websocket.Upgrader
	wake     chan struct{}

	// CheckOrigin, when set before serving, decides which browser origins
	// may connect. Requests without an Origin header are always allowed.
	CheckOrigin func(origin string) bool

	// OnClients, when set, is called with the client count after every
	// connect and disconnect.
	OnClients func(n int)

	mu    sync.RWMutex
	peers map[*peer]struct{}
}

type peer struct {
	conn  *websocket.Conn
	queue chan []byte
}

// New creates a Hub that reads from st and pushes every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	h := &Hub{
		store:    st,
		interval: interval,
		wake:     make(chan struct{}, 1),
		peers:    make(map[*peer]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || h.CheckOrigin == nil || h.CheckOrigin(origin)
		},
	}
	return h
}

// Notify asks the Run loop to push the latest reading now instead of waiting
// for the next tick. It never blocks; bursts collapse into one push.
func (h *Hub) Notify() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run pushes the latest reading on every tick and on every Notify until ctx
// is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return
		case <-t.C:
		case <-h.wake:
		}
		h.push()
	}
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
// The latest reading is queued before the peer joins the broadcast set.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		return
	}

	p := &peer{conn: conn, queue: make(chan []byte, queueDepth)}
	if frame, err := h.snapshot(); err == nil {
		p.queue <- frame
	}
	h.add(p)
	defer h.remove(p)

	go p.writeLoop()
	p.readLoop()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) snapshot() ([]byte, error) {
	msg := Message{Event: EventVitals}
	if latest, ok := h.store.Latest(); ok {
		msg.Data = &latest
	}
	return json.Marshal(msg)
}

func (h *Hub) push() {
	frame, err := h.snapshot()
	if err != nil {
		slog.Error("ws: encode message", "err", err)
		return
	}

	var slow []*peer
	h.mu.RLock()
	for p := range h.peers {
		select {
		case p.queue <- frame:
		default:
			slow = append(slow, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range slow {
		slog.Warn("ws: dropping slow client", "remote", p.conn.RemoteAddr().String())
		h.remove(p)
	}
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	h.clientsChanged(n)
}

// remove is safe to call more than once for the same peer.
func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	_, ok := h.peers[p]
	if ok {
		delete(h.peers, p)
		close(p.queue)
	}
	n := len(h.peers)
	h.mu.Unlock()
	if ok {
		h.clientsChanged(n)
	}
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	for p := range h.peers {
		delete(h.peers, p)
		close(p.queue)
	}
	h.mu.Unlock()
	h.clientsChanged(0)
}

func (h *Hub) clientsChanged(n int) {
	if h.OnClients != nil {
		h.OnClients(n)
	}
}

// writeLoop owns all writes to the connection. A closed queue means the hub
// has let go of the peer.
func (p *peer) writeLoop() {
	ping := time.NewTicker(keepalive)
	defer func() {
		ping.Stop()
		p.conn.Close()
	}()

	for {
		var (
			kind = websocket.TextMessage
			body []byte
		)
		select {
		case frame, open := <-p.queue:
			if !open {
				kind = websocket.CloseMessage
			}
			body = frame
		case <-ping.C:
			kind = websocket.PingMessage
		}

		p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(kind, body); err != nil || kind == websocket.CloseMessage {
			return
		}
	}
}

// readLoop discards inbound frames so pongs and close frames are processed.
// It returns when the connection fails or goes idle past idleTimeout.
func (p *peer) readLoop() {
	defer p.conn.Close()
	p.conn.SetReadLimit(maxInboundSz)
	p.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			return
		}
	}
}
