package ws

import (
	"net/http"
	"slices"

	"github.com/okian/duel/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithSendBuffer sets the per-connection outbound queue length.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithBroadcastLimit caps the rows in each leaderboard_update.
func WithBroadcastLimit(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.broadcastLimit = n
		}
	}
}

// WithAllowedOrigins restricts upgrade requests by Origin header. "*" allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		if len(origins) == 0 || slices.Contains(origins, "*") {
			h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
			return
		}
		allowed := slices.Clone(origins)
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, origin)
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}
