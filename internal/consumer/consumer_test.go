// ABOUTME: Tests for the bus consumer's message handling policy
// ABOUTME: Malformed entries are acked, transient store failures are not

package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/notify-gateway/internal/notification"
	"github.com/2389/notify-gateway/internal/store"
)

// capturePublisher records notifications handed to the hub.
type capturePublisher struct {
	mu        sync.Mutex
	published []*notification.Notification
}

func (p *capturePublisher) Publish(n *notification.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func newTestConsumer(st store.Store, pub Publisher) *Consumer {
	return New(Config{URL: "redis://localhost:6379"}, nil, st, pub, nil)
}

func entry(payload string) redis.XMessage {
	return redis.XMessage{
		ID:     "1700000000000-0",
		Values: map[string]interface{}{payloadField: payload},
	}
}

func validPayload(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"user_id": "u1",
		"role":    "CLIENT",
		"title":   "order shipped",
		"type":    "order",
		"metadata": map[string]string{
			"order_id": "42",
		},
	})
	require.NoError(t, err)
	return string(raw)
}

func TestHandle_ValidEventPersistsAndPublishes(t *testing.T) {
	st := store.NewMockStore()
	pub := &capturePublisher{}
	c := newTestConsumer(st, pub)

	ack := c.Handle(context.Background(), entry(validPayload(t)))
	assert.True(t, ack)

	require.Equal(t, 1, st.Count())
	require.Equal(t, 1, pub.count())

	// The hub receives the durable copy, not the raw payload
	published := pub.published[0]
	assert.NotZero(t, published.ID)
	assert.Equal(t, "order shipped", published.Title)
	assert.False(t, published.CreatedAt.IsZero())
}

func TestHandle_MalformedJSONIsAckedAndSkipped(t *testing.T) {
	st := store.NewMockStore()
	pub := &capturePublisher{}
	c := newTestConsumer(st, pub)

	ack := c.Handle(context.Background(), entry("{not json"))
	assert.True(t, ack, "malformed payloads must never be retried")
	assert.Equal(t, 0, st.Count())
	assert.Equal(t, 0, pub.count())
}

func TestHandle_MissingPayloadFieldIsAcked(t *testing.T) {
	st := store.NewMockStore()
	pub := &capturePublisher{}
	c := newTestConsumer(st, pub)

	ack := c.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]interface{}{}})
	assert.True(t, ack)
	assert.Equal(t, 0, st.Count())
}

func TestHandle_InvalidFieldsAreAckedAndSkipped(t *testing.T) {
	st := store.NewMockStore()
	pub := &capturePublisher{}
	c := newTestConsumer(st, pub)

	tests := []map[string]any{
		{"role": "CLIENT", "title": "no user"},
		{"user_id": "u1", "role": "MANAGER", "title": "bad role"},
		{"user_id": "u1", "role": "CLIENT", "title": ""},
	}
	for _, payload := range tests {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		ack := c.Handle(context.Background(), entry(string(raw)))
		assert.True(t, ack, "payload %v", payload)
	}
	assert.Equal(t, 0, st.Count())
	assert.Equal(t, 0, pub.count())
}

func TestHandle_StoreFailureLeavesEntryPending(t *testing.T) {
	st := store.NewMockStore()
	st.SaveErr = errors.New("database is locked")
	pub := &capturePublisher{}
	c := newTestConsumer(st, pub)

	ack := c.Handle(context.Background(), entry(validPayload(t)))
	assert.False(t, ack, "transient store failures must be redelivered")
	assert.Equal(t, 0, pub.count())
}

func TestDecodePayload(t *testing.T) {
	n, err := decodePayload([]byte(validPayload(t)))
	require.NoError(t, err)
	assert.Equal(t, "u1", n.UserID)
	assert.Equal(t, notification.RoleClient, n.Role)
	assert.Equal(t, "order shipped", n.Title)
	assert.Equal(t, "42", n.Metadata["order_id"])

	// Role parsing is case-insensitive
	n, err = decodePayload([]byte(`{"user_id":"u1","role":"worker","title":"t"}`))
	require.NoError(t, err)
	assert.Equal(t, notification.RoleWorker, n.Role)

	_, err = decodePayload([]byte(`{"user_id":"u1","role":"NOPE","title":"t"}`))
	assert.ErrorIs(t, err, notification.ErrUnknownRole)
}
