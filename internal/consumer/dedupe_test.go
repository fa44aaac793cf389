// ABOUTME: Tests for the redelivery-diagnostics cache
// ABOUTME: Covers TTL expiry, size-based eviction, and check-and-mark atomicity

package consumer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeenCache_CheckAndMark(t *testing.T) {
	c := newSeenCache(time.Minute, 16)

	assert.False(t, c.checkAndMark("1-0"), "first sighting is not a duplicate")
	assert.True(t, c.checkAndMark("1-0"), "second sighting is")
	assert.False(t, c.checkAndMark("2-0"))
}

func TestSeenCache_TTLExpiry(t *testing.T) {
	c := newSeenCache(20*time.Millisecond, 16)

	assert.False(t, c.checkAndMark("1-0"))
	time.Sleep(30 * time.Millisecond)
	assert.False(t, c.checkAndMark("1-0"), "expired entries are forgotten")
}

func TestSeenCache_SizeEviction(t *testing.T) {
	c := newSeenCache(time.Minute, 3)

	for i := 0; i < 3; i++ {
		c.checkAndMark(fmt.Sprintf("%d-0", i))
	}
	// Inserting a fourth evicts the oldest
	c.checkAndMark("3-0")

	assert.False(t, c.checkAndMark("0-0"), "oldest entry should have been evicted")
	assert.True(t, c.checkAndMark("3-0"))
}
