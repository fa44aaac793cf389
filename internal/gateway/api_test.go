// ABOUTME: Tests for the SSE stream and health HTTP handlers
// ABOUTME: Covers role validation, replay-over-HTTP, and the counters endpoint

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/notify-gateway/internal/hub"
	"github.com/2389/notify-gateway/internal/notification"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	h := hub.New(hub.Config{}, nil)
	t.Cleanup(h.Stop)
	return &Gateway{
		hub:    h,
		logger: slog.Default(),
	}
}

func publish(g *Gateway, id int64, title string) {
	g.hub.Publish(&notification.Notification{
		ID:     id,
		UserID: "u1",
		Role:   notification.RoleClient,
		Title:  title,
	})
}

// runStream drives handleStream in a goroutine and returns the recorded
// response once the request context is cancelled.
func runStream(t *testing.T, g *Gateway, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.handleStream(rec, req)
	}()

	require.Eventually(t, func() bool {
		return g.hub.ActiveSubscribers() == 1
	}, time.Second, 5*time.Millisecond, "subscriber never attached")

	publish(g, 100, "live event")
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream handler did not return after cancellation")
	}
	return rec
}

func TestHandleStream_UnknownRoleIsRejected(t *testing.T) {
	g := newTestGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/stream?user_id=u1&role=MANAGER", nil)
	rec := httptest.NewRecorder()
	g.handleStream(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "unknown role")
}

func TestHandleStream_MissingUserIDIsRejected(t *testing.T) {
	g := newTestGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/stream?role=CLIENT", nil)
	rec := httptest.NewRecorder()
	g.handleStream(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStream_MethodNotAllowed(t *testing.T) {
	g := newTestGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/stream?user_id=u1&role=CLIENT", nil)
	rec := httptest.NewRecorder()
	g.handleStream(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleStream_DeliversReplayAndLiveEvents(t *testing.T) {
	g := newTestGateway(t)

	publish(g, 1, "missed while away")
	publish(g, 2, "also missed")

	rec := runStream(t, g, "/api/notifications/stream?user_id=u1&role=CLIENT&last_seen_id=1", nil)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.NotContains(t, body, "id: 1\n", "events at or before the cursor are not replayed")
	assert.Contains(t, body, "event: notification\nid: 2\n")
	assert.Contains(t, body, `"title":"also missed"`)
	assert.Contains(t, body, "id: 100\n")
	assert.Contains(t, body, `"title":"live event"`)
}

func TestHandleStream_LastEventIDHeaderActsAsCursor(t *testing.T) {
	g := newTestGateway(t)

	publish(g, 1, "seen already")
	publish(g, 2, "missed")

	header := http.Header{}
	header.Set("Last-Event-ID", "1")
	rec := runStream(t, g, "/api/notifications/stream?user_id=u1&role=CLIENT", header)

	body := rec.Body.String()
	assert.NotContains(t, body, `"title":"seen already"`)
	assert.Contains(t, body, `"title":"missed"`)
}

func TestHandleStream_GarbledCursorDegradesToLiveOnly(t *testing.T) {
	g := newTestGateway(t)

	publish(g, 1, "history entry")

	rec := runStream(t, g, "/api/notifications/stream?user_id=u1&role=CLIENT&last_seen_id=%21%21", nil)

	assert.Equal(t, http.StatusOK, rec.Code, "a stale or garbled cursor is never an error")
	body := rec.Body.String()
	assert.NotContains(t, body, `"title":"history entry"`)
	assert.Contains(t, body, `"title":"live event"`)
}

func TestHandleHealth(t *testing.T) {
	g := newTestGateway(t)

	sub := g.hub.Subscribe(context.Background(), notification.Key{UserID: "u1", Role: notification.RoleClient}, "")
	defer sub.Close()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	g.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.ActiveChannels)
	assert.Equal(t, int64(1), resp.ActiveSubscribers)
}
