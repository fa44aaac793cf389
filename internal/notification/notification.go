// ABOUTME: Notification record and audience role types for the delivery engine
// ABOUTME: Provides payload validation for events arriving from the message bus

package notification

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Metadata bounds enforced on inbound payloads.
const (
	MaxMetadataEntries  = 10
	MaxMetadataKeyLen   = 50
	MaxMetadataValueLen = 100
)

// ErrUnknownRole is returned when a role string does not match any audience kind.
var ErrUnknownRole = errors.New("unknown role")

// Role identifies the audience kind a notification is addressed to.
// Together with the user ID it forms the subscription key.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleWorker Role = "WORKER"
	RoleAdmin  Role = "ADMIN"
)

// ParseRole validates a raw role string against the known audience kinds.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleClient:
		return RoleClient, nil
	case RoleWorker:
		return RoleWorker, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Notification is one persisted notification record. The store assigns ID and
// CreatedAt; this engine treats the record as read-only after that. Read and
// Archived are mutated only by the CRUD API, never here.
type Notification struct {
	ID          int64             `json:"id"`
	UserID      string            `json:"user_id"`
	Role        Role              `json:"role"`
	Title       string            `json:"title"`
	Body        string            `json:"body,omitempty"`
	Type        string            `json:"type,omitempty"`
	ClickAction string            `json:"click_action,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Read        bool              `json:"read"`
	Archived    bool              `json:"archived"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Key returns the subscription key this notification fans out on.
func (n *Notification) Key() Key {
	return Key{UserID: n.UserID, Role: n.Role}
}

// Validate checks the fields an inbound payload must satisfy before it can be
// persisted. Returns an error describing the first violation encountered.
func (n *Notification) Validate() error {
	if strings.TrimSpace(n.UserID) == "" {
		return errors.New("user_id is required")
	}
	if _, err := ParseRole(string(n.Role)); err != nil {
		return err
	}
	if strings.TrimSpace(n.Title) == "" {
		return errors.New("title is required")
	}
	if len(n.Metadata) > MaxMetadataEntries {
		return fmt.Errorf("metadata has %d entries, limit is %d", len(n.Metadata), MaxMetadataEntries)
	}
	for k, v := range n.Metadata {
		if len(k) > MaxMetadataKeyLen {
			return fmt.Errorf("metadata key %q exceeds %d characters", k, MaxMetadataKeyLen)
		}
		if len(v) > MaxMetadataValueLen {
			return fmt.Errorf("metadata value for %q exceeds %d characters", k, MaxMetadataValueLen)
		}
	}
	return nil
}

// Key is the (user, role) pair identifying one audience-scoped stream.
// Equality is structural; it is never persisted.
type Key struct {
	UserID string
	Role   Role
}

func (k Key) String() string {
	return k.UserID + ":" + string(k.Role)
}
