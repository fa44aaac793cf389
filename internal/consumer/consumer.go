// ABOUTME: Redis Streams consumer bridging bus events into the delivery hub
// ABOUTME: Malformed payloads are acked and skipped; store failures are left for redelivery

package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/2389/notify-gateway/internal/notification"
	"github.com/2389/notify-gateway/internal/store"
)

// payloadField is the stream entry field carrying the serialized notification.
const payloadField = "payload"

// Redelivery diagnostics window; duplicates older than this are not flagged.
const (
	seenTTL     = 5 * time.Minute
	seenMaxSize = 4096
)

// Publisher is the hub-facing side of the adapter. Fan-out outcomes are not
// the consumer's concern; Publish never fails.
type Publisher interface {
	Publish(n *notification.Notification)
}

// Config holds the Redis Streams consumer settings.
type Config struct {
	URL            string        // redis connection URL
	Stream         string        // stream key the bus appends to
	Group          string        // consumer group name
	Name           string        // consumer name within the group; defaults to a UUID
	BlockTimeout   time.Duration // XREADGROUP block duration
	BatchSize      int64         // max entries fetched per read
	ConnectRetries int           // ping attempts before giving up
	RetryInterval  time.Duration // delay between ping attempts
}

func (c Config) withDefaults() Config {
	if c.Stream == "" {
		c.Stream = "notifications:events"
	}
	if c.Group == "" {
		c.Group = "notify-gateway"
	}
	if c.Name == "" {
		c.Name = "notify-gateway-" + uuid.New().String()[:8]
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = 5
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 2 * time.Second
	}
	return c
}

// Consumer reads notification events from a Redis stream, persists them, and
// hands the durable records to the hub for fan-out.
type Consumer struct {
	cfg    Config
	client *redis.Client
	store  store.Store
	hub    Publisher
	seen   *seenCache
	logger *slog.Logger
}

// Connect dials Redis with ping retries and returns a consumer bound to the
// given store and hub.
func Connect(ctx context.Context, cfg Config, st store.Store, hub Publisher, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	var client *redis.Client
	for attempt := 0; attempt < cfg.ConnectRetries; attempt++ {
		client = redis.NewClient(opt)
		if err = client.Ping(ctx).Err(); err == nil {
			break
		}
		_ = client.Close()
		client = nil

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connecting to redis: %w", ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	if client == nil {
		return nil, fmt.Errorf("connecting to redis after %d attempts: %w", cfg.ConnectRetries, err)
	}

	return New(cfg, client, st, hub, logger), nil
}

// New builds a consumer around an existing client. Used by Connect and tests.
func New(cfg Config, client *redis.Client, st store.Store, hub Publisher, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg.withDefaults(),
		client: client,
		store:  st,
		hub:    hub,
		seen:   newSeenCache(seenTTL, seenMaxSize),
		logger: logger.With("component", "consumer"),
	}
}

// Run creates the consumer group if needed and reads stream entries until ctx
// is cancelled. Entries that were handled (including terminally malformed
// ones) are acked; entries that failed transiently are left pending for
// redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}

	c.logger.Info("consumer started",
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
		"consumer", c.cfg.Name,
	)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Name,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    c.cfg.BatchSize,
			Block:    c.cfg.BlockTimeout,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("reading stream", "error", err)
			time.Sleep(c.cfg.RetryInterval)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if c.Handle(ctx, msg) {
					if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
						c.logger.Error("acking entry", "entry_id", msg.ID, "error", err)
					}
				}
			}
		}
	}
}

// Handle processes one stream entry and reports whether it should be acked.
//
// Failure policy:
//   - malformed payload: terminal, logged, acked, never retried
//   - store validation error: terminal for the same reason
//   - any other store error: transient, not acked, redelivered by the bus
//   - fan-out problems: never a failure; the record is already durable
func (c *Consumer) Handle(ctx context.Context, msg redis.XMessage) bool {
	if c.seen.checkAndMark(msg.ID) {
		// At-least-once bus; duplicates are legal but worth surfacing.
		c.logger.Warn("stream entry redelivered", "entry_id", msg.ID)
	}

	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		c.logger.Warn("skipping entry without payload field", "entry_id", msg.ID)
		return true
	}

	n, err := decodePayload([]byte(raw))
	if err != nil {
		c.logger.Warn("skipping malformed payload",
			"entry_id", msg.ID,
			"error", err,
		)
		return true
	}

	saved, err := c.store.Save(ctx, n)
	if errors.Is(err, store.ErrInvalidNotification) {
		c.logger.Warn("skipping invalid notification",
			"entry_id", msg.ID,
			"error", err,
		)
		return true
	}
	if err != nil {
		c.logger.Error("persisting notification, leaving entry for redelivery",
			"entry_id", msg.ID,
			"error", err,
		)
		return false
	}

	c.hub.Publish(saved)

	c.logger.Debug("notification delivered to hub",
		"entry_id", msg.ID,
		"notification_id", saved.ID,
		"key", saved.Key().String(),
	)
	return true
}

// Close releases the Redis connection.
func (c *Consumer) Close() error {
	return c.client.Close()
}

// inboundPayload is the wire shape the bus delivers.
type inboundPayload struct {
	UserID      string            `json:"user_id"`
	Role        string            `json:"role"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Type        string            `json:"type"`
	ClickAction string            `json:"click_action"`
	Metadata    map[string]string `json:"metadata"`
}

// decodePayload deserializes and validates an inbound event. Any error it
// returns is terminal: the payload itself is bad and retrying cannot fix it.
func decodePayload(raw []byte) (*notification.Notification, error) {
	var p inboundPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	role, err := notification.ParseRole(p.Role)
	if err != nil {
		return nil, err
	}

	n := &notification.Notification{
		UserID:      p.UserID,
		Role:        role,
		Title:       p.Title,
		Body:        p.Body,
		Type:        p.Type,
		ClickAction: p.ClickAction,
		Metadata:    p.Metadata,
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}
