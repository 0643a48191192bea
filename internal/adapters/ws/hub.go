// Package ws is the realtime session gateway: one websocket per voter
// session, carrying pair requests, votes and leaderboard pushes.
package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	service "github.com/okian/duel/internal/app"
	"github.com/okian/duel/internal/domain/leaderboard"
	"github.com/okian/duel/internal/domain/model"
	"github.com/okian/duel/pkg/logger"
	"github.com/okian/duel/pkg/metrics"
)

const (
	defaultSendBuffer     = 256
	defaultBroadcastLimit = 200
)

// Engine is the ranking service as seen by the gateway.
type Engine interface {
	OpenSession(ctx context.Context, id string) (string, error)
	CloseSession(ctx context.Context, id string)
	RequestPair(ctx context.Context, sessionID string) (model.Pairing, error)
	SubmitVote(ctx context.Context, sessionID, winner, loser string) (service.Receipt, error)
	LeaderboardSnapshot() (*leaderboard.Snapshot, error)
	SubscribeLeaderboard(fn func(*leaderboard.Snapshot)) (func(), error)
}

// Hub tracks live connections and fans leaderboard updates out to the
// subscribed ones. The client set is owned by the Run goroutine.
type Hub struct {
	engine   Engine
	upgrader websocket.Upgrader
	log      logger.Logger

	sendBuffer     int
	broadcastLimit int

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	sent       uint64

	// latest holds the newest unsent snapshot; changed wakes Run.
	latest  atomic.Pointer[leaderboard.Snapshot]
	changed chan struct{}

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	done        chan struct{}
	running     atomic.Bool
	stopOnce    sync.Once
}

// NewHub creates a hub serving engine.
func NewHub(engine Engine, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:            logger.Default().Named("ws"),
		sendBuffer:     defaultSendBuffer,
		broadcastLimit: defaultBroadcastLimit,
		clients:        make(map[*Client]struct{}),
		register:       make(chan *Client, 100),
		unregister:     make(chan *Client, 100),
		changed:        make(chan struct{}, 1),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start subscribes to leaderboard changes and runs the hub loop.
func (h *Hub) Start() error {
	unsub, err := h.engine.SubscribeLeaderboard(h.onSnapshot)
	if err != nil {
		return err
	}
	h.unsubscribe = unsub
	h.running.Store(true)
	go h.Run()
	return nil
}

// Stop closes every connection and ends the hub loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		if h.unsubscribe != nil {
			h.unsubscribe()
		}
		h.cancel()
	})
	if h.running.Load() {
		<-h.done
	}
}

// onSnapshot runs on the publishing goroutine and never blocks.
func (h *Hub) onSnapshot(s *leaderboard.Snapshot) {
	h.latest.Store(s)
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// Run is the hub's event loop.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.log.Debug(h.ctx, "client registered",
				logger.String("session", c.id), logger.Int("clients", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case <-h.changed:
			if s := h.latest.Swap(nil); s != nil {
				h.broadcast(s)
			}
		}
	}
}

func (h *Hub) broadcast(s *leaderboard.Snapshot) {
	if s.Version <= h.sent {
		return
	}
	h.sent = s.Version
	var msg []byte
	delivered := 0
	for c := range h.clients {
		if !c.subscribed.Load() {
			continue
		}
		if msg == nil {
			b, err := encode(EventLeaderboardUpdate, leaderboardMessage(s.Entries, h.broadcastLimit))
			if err != nil {
				h.log.Error(h.ctx, "encode leaderboard failed", logger.Error(err))
				return
			}
			msg = b
		}
		select {
		case c.send <- msg:
			delivered++
		default:
			metrics.RecordErrorByComponent("ws", "broadcast_dropped")
		}
	}
	if delivered > 0 {
		metrics.RecordLeaderboardBroadcast()
		metrics.RecordWSMessage("out", EventLeaderboardUpdate)
	}
}

// closeAll drops every connection. Send queues stay open: their read pumps
// may still be replying and exit on the closed connection.
func (h *Hub) closeAll() {
	for c := range h.clients {
		delete(h.clients, c)
		_ = c.conn.Close()
	}
}

// ServeHTTP upgrades the request and runs one voter session on it.
// ?leaderboard=1 subscribes the session to leaderboard pushes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ctx := context.WithoutCancel(r.Context())
	id, err := h.engine.OpenSession(ctx, uuid.NewString())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.engine.CloseSession(ctx, id)
		h.log.Warn(ctx, "upgrade failed", logger.String("remote", r.RemoteAddr), logger.Error(err))
		return
	}

	c := newClient(id, h, conn)
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		h.engine.CloseSession(ctx, id)
		_ = conn.Close()
		return
	}
	go c.writePump()

	c.handleRequestPair(ctx)
	if q := r.URL.Query().Get("leaderboard"); q == "1" || q == "true" {
		c.subscribed.Store(true)
		c.handleRequestLeaderboard(ctx)
	}
	go c.readPump(ctx)

	h.log.Info(ctx, "session connected", logger.String("session", id), logger.String("remote", r.RemoteAddr))
}
