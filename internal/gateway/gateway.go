// ABOUTME: Gateway orchestrator wiring store, hub, consumer, and HTTP server
// ABOUTME: Owns startup order and graceful shutdown of all components

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/notify-gateway/internal/config"
	"github.com/2389/notify-gateway/internal/consumer"
	"github.com/2389/notify-gateway/internal/hub"
	"github.com/2389/notify-gateway/internal/store"
)

// shutdownTimeout bounds how long Stop waits for in-flight requests.
const shutdownTimeout = 10 * time.Second

// Gateway orchestrates the notify-gateway server components: the SQLite
// store, the delivery hub with its background tasks, the Redis Streams
// consumer, and the HTTP server exposing the SSE stream and health endpoints.
type Gateway struct {
	cfg        *config.Config
	store      store.Store
	hub        *hub.Hub
	consumer   *consumer.Consumer
	httpServer *http.Server
	logger     *slog.Logger

	cancelConsumer context.CancelFunc
	consumerDone   chan struct{}
}

// New builds a gateway from config, connecting to SQLite and Redis.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	h := hub.New(hub.Config{
		BufferSize:        cfg.Engine.BufferSize,
		HistorySize:       cfg.Engine.HistorySize,
		HeartbeatInterval: cfg.Engine.HeartbeatInterval,
		ReapInterval:      cfg.Engine.ReapInterval,
		ReapInitialDelay:  cfg.Engine.ReapInitialDelay,
		IdleTTL:           cfg.Engine.IdleTTL,
	}, logger)

	cons, err := consumer.Connect(ctx, consumer.Config{
		URL:    cfg.Redis.URL,
		Stream: cfg.Redis.Stream,
		Group:  cfg.Redis.Group,
	}, st, h, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("connecting consumer: %w", err)
	}

	g := &Gateway{
		cfg:      cfg,
		store:    st,
		hub:      h,
		consumer: cons,
		logger:   logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	g.registerRoutes(mux)
	g.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: mux,
	}

	return g, nil
}

// Start launches the hub background tasks, the consumer loop, and the HTTP
// server. It returns once the HTTP listener is running; errors from the
// listener after that are logged.
func (g *Gateway) Start(ctx context.Context) error {
	g.hub.Start()

	consumerCtx, cancel := context.WithCancel(ctx)
	g.cancelConsumer = cancel
	g.consumerDone = make(chan struct{})
	go func() {
		defer close(g.consumerDone)
		if err := g.consumer.Run(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Error("consumer exited", "error", err)
		}
	}()

	go func() {
		g.logger.Info("HTTP server listening", "addr", g.cfg.Server.HTTPAddr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the gateway down in reverse dependency order: stop consuming new
// events, end every live stream, drain the HTTP server, then close the store.
func (g *Gateway) Stop() {
	if g.cancelConsumer != nil {
		g.cancelConsumer()
		<-g.consumerDone
	}
	if err := g.consumer.Close(); err != nil {
		g.logger.Error("closing consumer", "error", err)
	}

	g.hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := g.httpServer.Shutdown(ctx); err != nil {
		g.logger.Error("shutting down HTTP server", "error", err)
	}

	if err := g.store.Close(); err != nil {
		g.logger.Error("closing store", "error", err)
	}

	g.logger.Info("gateway stopped")
}
