// Package api wires the HTTP surface: leaderboard and item reads, stats,
// health, metrics, API docs and the websocket gateway mount.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/duel/internal/adapters/http/swagger"
	"github.com/okian/duel/internal/adapters/repository"
	service "github.com/okian/duel/internal/app"
	"github.com/okian/duel/internal/domain/leaderboard"
	"github.com/okian/duel/internal/domain/types"
	"github.com/okian/duel/pkg/logger"
	"github.com/okian/duel/pkg/metrics"
)

const defaultMaxLimit = 500

// Dependencies required by HTTP handlers.
type Dependencies interface {
	LeaderboardDependencies
	ItemDependencies
	StatsProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	itemHandler        *ItemHandler

	gateway     http.Handler
	corsOrigins []string
	log         logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxLimit    int
	corsOrigins []string
	gateway     http.Handler
	log         logger.Logger
}

// WithMaxLimit caps the leaderboard page size.
func WithMaxLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(c *serverConfig) {
		if len(origins) > 0 {
			c.corsOrigins = origins
		}
	}
}

// WithGateway mounts the websocket gateway at /ws.
func WithGateway(h http.Handler) Option {
	return func(c *serverConfig) {
		c.gateway = h
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := serverConfig{
		maxLimit:    defaultMaxLimit,
		corsOrigins: []string{"*"},
		log:         logger.Default().Named("http"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxLimit),
		itemHandler:        NewItemHandler(deps),
		gateway:            cfg.gateway,
		corsOrigins:        cfg.corsOrigins,
		log:                cfg.log,
	}
}

// Routes builds the router.
func (s *Server) Routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Get("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	r.Get("/items/{id}", MetricsMiddleware(s.itemHandler.HandleGetItem, "items"))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	if s.gateway != nil {
		r.Method(http.MethodGet, "/ws", s.gateway)
	}
	swagger.Register(ctx, r)

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, leaderboard.ErrInvalidLimit), errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
