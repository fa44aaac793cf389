// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sync"
	"time"

	"github.com/2389/notify-gateway/internal/notification"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*notification.Notification

	// SaveErr, when set, is returned by every Save call. Used to simulate
	// persistence failures.
	SaveErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{byID: make(map[int64]*notification.Notification)}
}

// Save validates and stores the notification, assigning the next sequential ID.
func (m *MockStore) Save(ctx context.Context, n *notification.Notification) (*notification.Notification, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	if err := n.Validate(); err != nil {
		return nil, ErrInvalidNotification
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	saved := *n
	saved.ID = m.nextID
	saved.CreatedAt = time.Now().UTC()
	m.byID[saved.ID] = &saved

	out := saved
	return &out, nil
}

// Get retrieves a stored notification by ID.
func (m *MockStore) Get(ctx context.Context, id int64) (*notification.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *n
	return &out, nil
}

// Count reports how many notifications have been saved.
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error { return nil }
