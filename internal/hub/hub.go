// ABOUTME: Delivery hub coordinating publish fan-out, subscriptions, and background tasks
// ABOUTME: Owns the heartbeat and idle-reaper loops with an explicit start/stop contract

package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/notify-gateway/internal/notification"
)

// Config holds the engine tunables. Zero values fall back to defaults.
type Config struct {
	BufferSize        int           // per-subscriber live buffer capacity
	HistorySize       int           // replay history entries kept per channel
	HeartbeatInterval time.Duration // period of the heartbeat task
	ReapInterval      time.Duration // period of the idle reaper task
	ReapInitialDelay  time.Duration // delay before the reaper's first pass
	IdleTTL           time.Duration // inactivity after which an empty channel is removed
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:        128,
		HistorySize:       10,
		HeartbeatInterval: 29 * time.Second,
		ReapInterval:      2 * time.Minute,
		ReapInitialDelay:  30 * time.Second,
		IdleTTL:           3 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = def.ReapInterval
	}
	if c.ReapInitialDelay <= 0 {
		c.ReapInitialDelay = def.ReapInitialDelay
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = def.IdleTTL
	}
	return c
}

// Hub is the delivery engine: it fans persisted notifications out to live
// subscribers keyed by (user, role), replays recent history to reconnecting
// clients, and runs the heartbeat and idle-reaper background tasks.
type Hub struct {
	cfg      Config
	registry *Registry
	logger   *slog.Logger

	subscribers atomic.Int64

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New creates a hub. Pass nil logger for default. Call Start to launch the
// background tasks and Stop for clean shutdown.
func New(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	logger = logger.With("component", "hub")
	return &Hub{
		cfg:      cfg,
		registry: NewRegistry(cfg.BufferSize, cfg.HistorySize, logger),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the heartbeat and idle-reaper tasks.
func (h *Hub) Start() {
	h.wg.Add(2)
	go h.heartbeatLoop()
	go h.reaperLoop()
	h.logger.Info("hub started",
		"heartbeat_interval", h.cfg.HeartbeatInterval,
		"reap_interval", h.cfg.ReapInterval,
		"idle_ttl", h.cfg.IdleTTL,
	)
}

// Stop terminates the background tasks and closes every channel so attached
// subscribers observe end-of-stream. Safe to call more than once.
func (h *Hub) Stop() {
	h.once.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.registry.closeAll()
		h.logger.Info("hub stopped")
	})
}

// Publish fans a persisted notification out to the channel for its (user,
// role) key, creating the channel if needed. Fan-out is best-effort: non-OK
// outcomes are logged and never surfaced to the caller, because the record is
// already durable.
func (h *Hub) Publish(n *notification.Notification) {
	holder := h.registry.GetOrCreate(n.Key())

	switch holder.Broadcast(notification.NewEvent(n)) {
	case BroadcastDropped:
		h.logger.Warn("subscriber buffer full, event dropped",
			"key", n.Key().String(),
			"notification_id", n.ID,
		)
	case BroadcastClosed:
		// Holder reaped between lookup and broadcast; the next publish
		// recreates it. The record stays retrievable from the store.
		h.logger.Debug("broadcast hit closed channel", "key", n.Key().String())
	}
}

// Subscription is one live attachment to a channel. Replay holds the events
// missed since the client's cursor, in original order; Live delivers events
// until disconnect or engine shutdown, at which point it is closed.
type Subscription struct {
	Replay []notification.Event
	Live   <-chan notification.Event

	holder *Holder
	hub    *Hub
	id     string
	once   sync.Once
}

// Close detaches the subscription. Idempotent; every exit path of a transport
// handler can call it without corrupting the subscriber count.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.holder.unsubscribe(s.id)
		s.hub.subscribers.Add(-1)
	})
}

// Subscribe attaches a consumer to the channel for key, replaying history
// entries newer than lastSeenID first. The subscription is detached when ctx
// is cancelled or Close is called, whichever comes first.
func (h *Hub) Subscribe(ctx context.Context, key notification.Key, lastSeenID string) *Subscription {
	for {
		holder := h.registry.GetOrCreate(key)
		replay, live, id, ok := holder.subscribe(lastSeenID)
		if !ok {
			// Lost a race with the reaper; the next GetOrCreate builds a
			// fresh holder.
			continue
		}

		sub := &Subscription{
			Replay: replay,
			Live:   live,
			holder: holder,
			hub:    h,
			id:     id,
		}
		h.subscribers.Add(1)

		go func() {
			select {
			case <-ctx.Done():
			case <-h.done:
			}
			sub.Close()
		}()

		h.logger.Debug("subscriber attached",
			"key", key.String(),
			"sub_id", id,
			"replay", len(replay),
		)
		return sub
	}
}

// ActiveChannels returns the number of live (user, role) channels.
func (h *Hub) ActiveChannels() int {
	return h.registry.Len()
}

// ActiveSubscribers returns the number of currently attached connections.
func (h *Hub) ActiveSubscribers() int64 {
	return h.subscribers.Load()
}

// heartbeatLoop periodically pushes a heartbeat to every channel that has at
// least one live subscriber. Heartbeats are best-effort liveness signals; a
// full buffer drops them silently.
func (h *Hub) heartbeatLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.registry.ForEach(func(holder *Holder) {
				holder.SendHeartbeat()
			})
		case <-h.done:
			return
		}
	}
}

// reaperLoop periodically removes channels that have no subscribers and have
// been idle longer than the TTL.
func (h *Hub) reaperLoop() {
	defer h.wg.Done()

	delay := time.NewTimer(h.cfg.ReapInitialDelay)
	defer delay.Stop()
	select {
	case <-delay.C:
	case <-h.done:
		return
	}

	ticker := time.NewTicker(h.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		h.reapIdle()
		select {
		case <-ticker.C:
		case <-h.done:
			return
		}
	}
}

// reapIdle runs one reaper pass. Exposed to tests via the loop above only.
func (h *Hub) reapIdle() {
	if removed := h.registry.RemoveIfIdle(time.Now(), h.cfg.IdleTTL); removed > 0 {
		h.logger.Info("reaped idle channels", "count", removed)
	}
}
