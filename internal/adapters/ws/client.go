package ws

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/duel/pkg/logger"
	"github.com/okian/duel/pkg/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 16 * 1024
)

// Client is one websocket connection bound to one voter session.
type Client struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	subscribed atomic.Bool
	log        logger.Logger
}

func newClient(id string, h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		log:  h.log,
	}
}

// readPump dispatches inbound frames in order. Its exit ends the session.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.engine.CloseSession(ctx, c.id)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
		c.log.Info(ctx, "session disconnected", logger.String("session", c.id))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn(ctx, "websocket read error", logger.String("session", c.id), logger.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.dispatch(ctx, message)
	}
}

// writePump drains the send queue onto the connection and keeps it alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.hub.ctx.Done():
			return
		}
	}
}

func (c *Client) dispatch(ctx context.Context, message []byte) {
	event, err := peekEvent(message)
	if err != nil {
		c.reply(ctx, EventError, ErrorMessage{Message: err.Error()})
		return
	}
	metrics.RecordWSMessage("in", event)

	switch event {
	case EventRequestPair:
		c.handleRequestPair(ctx)
	case EventVote:
		c.handleVote(ctx, message)
	case EventRequestLeaderboard:
		c.handleRequestLeaderboard(ctx)
	case EventSubscribeLeaderboard:
		c.subscribed.Store(true)
		c.handleRequestLeaderboard(ctx)
	default:
		c.reply(ctx, EventError, ErrorMessage{Message: errUnknownEvent.Error() + ": " + event})
	}
}

func (c *Client) handleRequestPair(ctx context.Context) {
	p, err := c.hub.engine.RequestPair(ctx, c.id)
	if err != nil {
		c.reply(ctx, EventError, ErrorMessage{Message: err.Error()})
		return
	}
	c.reply(ctx, EventNewPair, newPairMessage(p))
}

func (c *Client) handleVote(ctx context.Context, message []byte) {
	v, err := decodeVote(message)
	if err != nil {
		c.reply(ctx, EventError, ErrorMessage{Message: err.Error()})
		return
	}
	receipt, err := c.hub.engine.SubmitVote(ctx, c.id, v.Winner, v.Loser)
	if err != nil {
		c.reply(ctx, EventVoteRejected, VoteRejected{Reason: receipt.Reason})
	}
	if receipt.Next != nil {
		c.reply(ctx, EventNewPair, newPairMessage(*receipt.Next))
	}
}

func (c *Client) handleRequestLeaderboard(ctx context.Context) {
	snap, err := c.hub.engine.LeaderboardSnapshot()
	if err != nil {
		c.reply(ctx, EventError, ErrorMessage{Message: err.Error()})
		return
	}
	c.reply(ctx, EventLeaderboardUpdate, leaderboardMessage(snap.Entries, c.hub.broadcastLimit))
}

var errSlowConsumer = errors.New("send buffer full")

// reply queues a direct response. A full queue means the peer stopped
// reading; the connection is closed and the session ends.
func (c *Client) reply(ctx context.Context, event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		c.log.Error(ctx, "encode reply failed", logger.String("event", event), logger.Error(err))
		return
	}
	select {
	case c.send <- msg:
		metrics.RecordWSMessage("out", event)
	default:
		c.log.Warn(ctx, "closing slow session", logger.String("session", c.id), logger.Error(errSlowConsumer))
		metrics.RecordErrorByComponent("ws", "slow_consumer")
		_ = c.conn.Close()
	}
}
