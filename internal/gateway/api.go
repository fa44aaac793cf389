// ABOUTME: HTTP handlers exposing the notification stream via SSE
// ABOUTME: Provides GET /api/notifications/stream and the health endpoint

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/2389/notify-gateway/internal/notification"
)

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status            string `json:"status"`
	ActiveChannels    int    `json:"active_channels"`
	ActiveSubscribers int64  `json:"active_subscribers"`
}

// registerRoutes attaches the gateway's HTTP handlers to the mux.
func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/notifications/stream", g.handleStream)
	mux.HandleFunc("/healthz", g.handleHealth)
}

// handleStream handles GET /api/notifications/stream requests.
// Query parameters:
//
//	user_id      required; the subscriber's user identifier
//	role         required; one of the audience roles
//	last_seen_id optional replay cursor (the Last-Event-ID header works too)
//
// The response is an SSE stream: history entries newer than the cursor first,
// then live events until the client disconnects. A stale or garbled cursor
// silently degrades to live-only; an unknown role is rejected.
func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	role, err := notification.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	lastSeenID := r.URL.Query().Get("last_seen_id")
	if lastSeenID == "" {
		lastSeenID = r.Header.Get("Last-Event-ID")
	}

	// Check streaming support before subscribing (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	key := notification.Key{UserID: userID, Role: role}
	sub := g.hub.Subscribe(r.Context(), key, lastSeenID)
	defer sub.Close()

	for _, ev := range sub.Replay {
		g.writeSSEEvent(w, ev)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Live:
			if !ok {
				// Hub shut down or the channel was reaped; end the stream.
				return
			}
			g.writeSSEEvent(w, ev)
			flusher.Flush()
		}
	}
}

// handleHealth handles GET /healthz requests, reporting engine counters.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{
		Status:            "ok",
		ActiveChannels:    g.hub.ActiveChannels(),
		ActiveSubscribers: g.hub.ActiveSubscribers(),
	})
}

// writeSSEEvent writes a single deliverable event as an SSE frame. The event
// name is the kind discriminator and the id line carries the replay cursor.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, ev notification.Event) {
	var data []byte
	if ev.Notification != nil {
		var err error
		data, err = json.Marshal(ev.Notification)
		if err != nil {
			g.logger.Error("failed to marshal SSE data", "error", err)
			return
		}
	} else {
		data = []byte("{}")
	}

	fmt.Fprintf(w, "event: %s\n", ev.Kind)
	fmt.Fprintf(w, "id: %s\n", ev.ID)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
