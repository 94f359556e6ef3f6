package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, max int, window time.Duration) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(max, window)
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	rl := newTestLimiter(t, 100, time.Minute)

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("203.0.113.1"), "request %d should pass", i+1)
	}
	assert.False(t, rl.Allow("203.0.113.1"), "request 101 is over the limit")
}

func TestRateLimiter_IPsAreIndependent(t *testing.T) {
	rl := newTestLimiter(t, 2, time.Minute)

	assert.True(t, rl.Allow("203.0.113.1"))
	assert.True(t, rl.Allow("203.0.113.1"))
	assert.False(t, rl.Allow("203.0.113.1"))

	assert.True(t, rl.Allow("203.0.113.2"), "a different IP has its own window")
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := newTestLimiter(t, 3, time.Minute)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.SetNow(func() time.Time { return current })

	assert.True(t, rl.Allow("203.0.113.1"))
	assert.True(t, rl.Allow("203.0.113.1"))
	assert.True(t, rl.Allow("203.0.113.1"))
	assert.False(t, rl.Allow("203.0.113.1"))

	// 30s later the first three are still inside the window.
	current = current.Add(30 * time.Second)
	assert.False(t, rl.Allow("203.0.113.1"))

	// Past the window they fall out and capacity returns.
	current = current.Add(31 * time.Second)
	assert.True(t, rl.Allow("203.0.113.1"))
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := newTestLimiter(t, 1, time.Minute)

	assert.True(t, rl.Allow("203.0.113.1"))
	assert.False(t, rl.Allow("203.0.113.1"))

	rl.Reset()
	assert.True(t, rl.Allow("203.0.113.1"))
}

func TestRateLimiter_PruneDropsExpiredIPs(t *testing.T) {
	rl := newTestLimiter(t, 5, time.Minute)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.SetNow(func() time.Time { return current })

	rl.Allow("203.0.113.1")
	rl.Allow("203.0.113.2")

	current = current.Add(2 * time.Minute)
	rl.prune()

	rl.mu.Lock()
	remaining := len(rl.entries)
	rl.mu.Unlock()
	assert.Zero(t, remaining)
}
