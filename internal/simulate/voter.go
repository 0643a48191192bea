package simulate

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

var errTimeout = errors.New("timed out waiting for a pair")

type voter struct {
	id      int
	cfg     *Config
	rng     *rand.Rand
	stats   *Stats
	verbose func(msg string, reason string)
}

// preferred is the shared hidden preference: the phrase with the larger hash wins.
func preferred(a, b string) bool {
	return textHash(a) >= textHash(b)
}

func textHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func wsURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + "/ws"
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://") + "/ws"
	default:
		return baseURL + "/ws"
	}
}

// run casts VotesPerVoter votes on one session.
func (v *voter) run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: v.cfg.Timeout}
	conn, _, err := dialer.DialContext(ctx, wsURL(v.cfg.BaseURL), nil)
	if err != nil {
		return fmt.Errorf("voter %d dial: %w", v.id, err)
	}
	defer func() { _ = conn.Close() }()

	pair, err := v.nextPair(conn)
	if err != nil {
		return fmt.Errorf("voter %d: %w", v.id, err)
	}
	for i := 0; i < v.cfg.VotesPerVoter; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		winner, loser := pair.Get("phrase1").String(), pair.Get("phrase2").String()
		if preferred(loser, winner) {
			winner, loser = loser, winner
		}
		if v.rng.Float64() < v.cfg.Noise {
			winner, loser = loser, winner
		}
		msg := map[string]any{"event": "vote", "data": map[string]string{"winner": winner, "loser": loser}}
		_ = conn.SetWriteDeadline(time.Now().Add(v.cfg.Timeout))
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("voter %d send: %w", v.id, err)
		}
		atomic.AddInt64(&v.stats.VotesSent, 1)

		pair, err = v.nextPair(conn)
		if err != nil {
			return fmt.Errorf("voter %d: %w", v.id, err)
		}
	}
	return nil
}

// nextPair reads frames until a new_pair arrives, counting any
// vote_rejected seen on the way.
func (v *voter) nextPair(conn *websocket.Conn) (gjson.Result, error) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(v.cfg.Timeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return gjson.Result{}, errTimeout
			}
			return gjson.Result{}, err
		}
		frame := gjson.ParseBytes(msg)
		switch frame.Get("event").String() {
		case "new_pair":
			atomic.AddInt64(&v.stats.PairsReceived, 1)
			return frame.Get("data"), nil
		case "vote_rejected":
			atomic.AddInt64(&v.stats.VotesRejected, 1)
			if v.verbose != nil {
				v.verbose("vote rejected", frame.Get("data.reason").String())
			}
		case "error":
			atomic.AddInt64(&v.stats.Errors, 1)
			return gjson.Result{}, fmt.Errorf("server error: %s", frame.Get("data.message").String())
		}
	}
}
