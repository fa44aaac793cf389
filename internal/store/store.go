// ABOUTME: Store interface and errors for notification persistence
// ABOUTME: The store assigns the monotonic IDs used as replay cursors

package store

import (
	"context"
	"errors"

	"github.com/2389/notify-gateway/internal/notification"
)

// ErrNotFound is returned when a requested notification does not exist
var ErrNotFound = errors.New("notification not found")

// ErrInvalidNotification is returned when a record fails validation at save
// time (missing required field, metadata too large). Callers must treat this
// as a hard failure, not a transient one.
var ErrInvalidNotification = errors.New("invalid notification")

// Store defines the persistence interface for notifications.
// Save assigns a monotonically increasing ID and the creation timestamp;
// the returned record is the durable copy the engine fans out.
type Store interface {
	Save(ctx context.Context, n *notification.Notification) (*notification.Notification, error)
	Get(ctx context.Context, id int64) (*notification.Notification, error)
	Close() error
}
