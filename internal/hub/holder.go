// ABOUTME: Per-key fan-out unit owning live subscriber buffers and replay history
// ABOUTME: Broadcast is non-blocking; slow subscribers lose the newest event

package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/2389/notify-gateway/internal/notification"
)

// BroadcastResult reports what happened to one broadcast attempt.
// Callers only ever log on non-Delivered results; delivery is best-effort.
type BroadcastResult int

const (
	// BroadcastDelivered means every live subscriber buffer accepted the event.
	BroadcastDelivered BroadcastResult = iota
	// BroadcastNoSubscribers means the event was recorded to history only.
	BroadcastNoSubscribers
	// BroadcastDropped means at least one subscriber buffer was full and the
	// event was discarded for that subscriber.
	BroadcastDropped
	// BroadcastClosed means the holder was already reaped.
	BroadcastClosed
)

// Holder is the fan-out and replay unit for one (user, role) key. It owns a
// bounded buffer per live subscriber (drop-newest when full), a FIFO replay
// history of the most recent broadcast notifications, and the bookkeeping the
// idle reaper uses to decide removal.
type Holder struct {
	key         notification.Key
	bufferSize  int
	historySize int

	mu          sync.Mutex
	history     []notification.Event
	subscribers map[string]chan notification.Event
	closed      bool

	subCount     atomic.Int64
	lastActivity atomic.Int64 // unix nanos
}

func newHolder(key notification.Key, bufferSize, historySize int) *Holder {
	h := &Holder{
		key:         key,
		bufferSize:  bufferSize,
		historySize: historySize,
		subscribers: make(map[string]chan notification.Event),
	}
	h.Touch()
	return h
}

// Key returns the subscription key this holder serves.
func (h *Holder) Key() notification.Key {
	return h.key
}

// Touch refreshes the last-activity timestamp to now.
func (h *Holder) Touch() {
	h.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the most recent subscribe, unsubscribe,
// or publish on this holder.
func (h *Holder) LastActivity() time.Time {
	return time.Unix(0, h.lastActivity.Load())
}

// Subscribers returns the current live subscriber count.
func (h *Holder) Subscribers() int64 {
	return h.subCount.Load()
}

// isRemovable reports whether the holder has no live subscribers and has been
// inactive for longer than the idle TTL.
func (h *Holder) isRemovable(now time.Time, idleTTL time.Duration) bool {
	return h.subCount.Load() == 0 && now.Sub(h.LastActivity()) > idleTTL
}

// Broadcast records the event to replay history, then pushes it to every live
// subscriber buffer without blocking. A full buffer drops the event for that
// subscriber. With zero subscribers the event is recorded to history only.
func (h *Holder) Broadcast(ev notification.Event) BroadcastResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return BroadcastClosed
	}

	h.Touch()

	h.history = append(h.history, ev)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}

	if len(h.subscribers) == 0 {
		return BroadcastNoSubscribers
	}

	result := BroadcastDelivered
	for _, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			result = BroadcastDropped
		}
	}
	return result
}

// SendHeartbeat pushes a heartbeat event to every live subscriber buffer.
// Heartbeats never enter replay history and a full buffer silently drops
// them; they only exist so clients and proxies can detect dead connections.
// The heartbeat carries the newest replayable cursor for this channel.
func (h *Holder) SendHeartbeat() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.subscribers) == 0 {
		return
	}

	cursor := "0"
	if len(h.history) > 0 {
		cursor = h.history[len(h.history)-1].ID
	}
	hb := notification.NewHeartbeat(cursor)

	for _, ch := range h.subscribers {
		select {
		case ch <- hb:
		default:
		}
	}
}

// replaySince returns, in original order, the history entries with an ID
// strictly greater than the cursor. An absent or garbled cursor yields nil.
// Callers must hold h.mu.
func (h *Holder) replaySince(lastSeenID string) []notification.Event {
	cursor, ok := notification.ParseCursor(lastSeenID)
	if !ok {
		return nil
	}

	var replay []notification.Event
	for _, ev := range h.history {
		if id, ok := notification.ParseCursor(ev.ID); ok && id > cursor {
			replay = append(replay, ev)
		}
	}
	return replay
}

// subscribe computes the replay prefix for lastSeenID and attaches a new live
// subscriber in one critical section, so no event broadcast between the two
// steps can be missed. Returns the replay slice, the live channel, and the
// subscriber ID used to detach.
func (h *Holder) subscribe(lastSeenID string) ([]notification.Event, <-chan notification.Event, string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, nil, "", false
	}

	replay := h.replaySince(lastSeenID)

	id := uuid.New().String()
	ch := make(chan notification.Event, h.bufferSize)
	h.subscribers[id] = ch
	h.subCount.Add(1)
	h.Touch()

	return replay, ch, id, true
}

// unsubscribe detaches a subscriber and closes its channel. Safe to call more
// than once for the same ID; the counter never goes below zero.
func (h *Holder) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	close(ch)

	if h.subCount.Add(-1) < 0 {
		h.subCount.Store(0)
	}
	h.Touch()
}

// close marks the holder terminated and closes every live subscriber channel
// so straggling consumers observe end-of-stream instead of leaking.
func (h *Holder) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	h.subCount.Store(0)
}
