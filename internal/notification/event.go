// ABOUTME: Deliverable event variant pushed to live subscribers
// ABOUTME: Distinguishes notification payloads from best-effort heartbeats

package notification

import "strconv"

// EventKind discriminates what a delivered event carries.
type EventKind string

const (
	EventNotification EventKind = "notification"
	EventHeartbeat    EventKind = "heartbeat"
)

// Event is one item delivered to a live subscriber. ID is an opaque,
// strictly-increasing cursor the client may send back as last_seen_id on
// reconnect. Heartbeats carry the newest replayable cursor for their channel
// ("0" when the channel has no history yet) and are excluded from replay.
type Event struct {
	ID           string        `json:"id"`
	Kind         EventKind     `json:"kind"`
	Notification *Notification `json:"data,omitempty"`
}

// NewEvent wraps a persisted notification as a deliverable event.
func NewEvent(n *Notification) Event {
	return Event{
		ID:           strconv.FormatInt(n.ID, 10),
		Kind:         EventNotification,
		Notification: n,
	}
}

// NewHeartbeat builds a heartbeat event carrying the given cursor.
func NewHeartbeat(cursor string) Event {
	if cursor == "" {
		cursor = "0"
	}
	return Event{ID: cursor, Kind: EventHeartbeat}
}

// ParseCursor interprets a client-supplied last_seen_id. A missing or garbled
// cursor means "no replay", never an error: the second return is false and the
// caller resumes from now.
func ParseCursor(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
