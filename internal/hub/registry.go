// ABOUTME: Thread-safe registry mapping subscription keys to channel holders
// ABOUTME: Find-or-create is atomic; removal is conditional on holder identity

package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/2389/notify-gateway/internal/notification"
)

// Registry is the single source of truth mapping a subscription key to its
// Holder. All mutation of the map goes through GetOrCreate and RemoveIfIdle;
// no other component touches it directly.
type Registry struct {
	mu          sync.RWMutex
	holders     map[notification.Key]*Holder
	bufferSize  int
	historySize int
	logger      *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(bufferSize, historySize int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		holders:     make(map[notification.Key]*Holder),
		bufferSize:  bufferSize,
		historySize: historySize,
		logger:      logger.With("component", "registry"),
	}
}

// GetOrCreate returns the holder for key, creating it if absent. The holder
// is touched on every call, found or created, so a lookup always counts as
// activity for the idle reaper.
func (r *Registry) GetOrCreate(key notification.Key) *Holder {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.holders[key]
	if !ok {
		h = newHolder(key, r.bufferSize, r.historySize)
		r.holders[key] = h
		r.logger.Debug("channel created", "key", key.String())
	}
	h.Touch()
	return h
}

// Get returns the holder for key without creating one.
func (r *Registry) Get(key notification.Key) (*Holder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.holders[key]
	return h, ok
}

// Len returns the number of live holders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.holders)
}

// ForEach calls fn for every holder. The snapshot is taken under the read
// lock so fn runs without holding it.
func (r *Registry) ForEach(fn func(*Holder)) {
	r.mu.RLock()
	snapshot := make([]*Holder, 0, len(r.holders))
	for _, h := range r.holders {
		snapshot = append(snapshot, h)
	}
	r.mu.RUnlock()

	for _, h := range snapshot {
		fn(h)
	}
}

// RemoveIfIdle removes every holder with zero subscribers whose last activity
// is older than idleTTL, and closes it so lingering consumers observe
// end-of-stream. Removal is conditional: a holder is deleted only while the
// map still holds that exact instance, so a concurrent subscribe that touched
// the holder wins over the reaper. Returns the number of holders removed.
func (r *Registry) RemoveIfIdle(now time.Time, idleTTL time.Duration) int {
	r.mu.RLock()
	candidates := make([]*Holder, 0)
	for _, h := range r.holders {
		if h.isRemovable(now, idleTTL) {
			candidates = append(candidates, h)
		}
	}
	r.mu.RUnlock()

	removed := 0
	for _, h := range candidates {
		r.mu.Lock()
		current, ok := r.holders[h.key]
		if !ok || current != h || !h.isRemovable(now, idleTTL) {
			r.mu.Unlock()
			continue
		}
		delete(r.holders, h.key)
		r.mu.Unlock()

		h.close()
		removed++
		r.logger.Debug("idle channel removed", "key", h.key.String())
	}
	return removed
}

// closeAll closes every holder and empties the map. Used on engine shutdown.
func (r *Registry) closeAll() {
	r.mu.Lock()
	holders := make([]*Holder, 0, len(r.holders))
	for key, h := range r.holders {
		holders = append(holders, h)
		delete(r.holders, key)
	}
	r.mu.Unlock()

	for _, h := range holders {
		h.close()
	}
}
