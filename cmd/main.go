package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/duel/internal/adapters/http/api"
	"github.com/okian/duel/internal/adapters/ws"
	app "github.com/okian/duel/internal/app"
	"github.com/okian/duel/internal/config"
	"github.com/okian/duel/pkg/logger"
	"github.com/okian/duel/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readHeaderTimeout         = 5 * time.Second
	idleTimeout               = 60 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := metrics.Register(collectors.NewBuildInfoCollector()); err != nil {
		logger.Get().Warn(ctx, "build info metrics unavailable", logger.Error(err))
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Get().Error(ctx, "listen failed", logger.String("addr", cfg.Addr), logger.Error(err))
		os.Exit(1)
	}
	if err := run(ctx, cfg, ln); err != nil {
		logger.Get().Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then shuts everything down in order:
// HTTP listener, websocket sessions, service and store.
func run(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	log := logger.Get()

	svc := app.New(cfg, app.WithLogger(log.Named("service")))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	hub := ws.NewHub(svc,
		ws.WithSendBuffer(cfg.WSSendBuffer),
		ws.WithBroadcastLimit(cfg.BroadcastLimit),
		ws.WithAllowedOrigins(cfg.CORSOrigins),
		ws.WithLogger(log.Named("ws")),
	)
	if err := hub.Start(); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}
	defer hub.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	apiServer := api.NewServer(svc,
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithGateway(hub),
		api.WithLogger(log.Named("http")),
	)
	srv := &http.Server{
		Handler:           apiServer.Routes(ctx),
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges derived from service stats.
// GetStats itself updates item and session gauges.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if pending, ok := stats["pendingWrites"].(int); ok {
		metrics.UpdateQueueSize(pending)
	}
}
