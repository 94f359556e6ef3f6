package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
)

// RateLimiter is a per-IP sliding-window counter. It is process-local:
// with multiple server instances each instance keeps its own window, so a
// shared store would be needed for a strict global limit.
//
// The limiter is constructed explicitly (no package-level state) so tests
// can build, drive, and Reset their own instance.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time

	// now is swappable in tests to roll the window forward.
	now func() time.Time

	stopPrune chan struct{}
	pruneOnce sync.Once
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		max:       max,
		window:    window,
		entries:   make(map[string][]time.Time),
		now:       time.Now,
		stopPrune: make(chan struct{}),
	}
	go rl.pruneLoop()
	return rl
}

// Allow records a request from ip and reports whether it is within the limit.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	kept := rl.entries[ip][:0]
	for _, t := range rl.entries[ip] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.max {
		rl.entries[ip] = kept
		return false
	}

	rl.entries[ip] = append(kept, now)
	return true
}

// Reset clears all recorded requests.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.entries = make(map[string][]time.Time)
}

// SetNow overrides the clock. Test hook only.
func (rl *RateLimiter) SetNow(now func() time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
}

// Stop ends the background prune loop.
func (rl *RateLimiter) Stop() {
	rl.pruneOnce.Do(func() { close(rl.stopPrune) })
}

// pruneLoop drops IPs whose whole window has expired so the map does not
// grow without bound.
func (rl *RateLimiter) pruneLoop() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopPrune:
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for ip, times := range rl.entries {
		kept := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(rl.entries, ip)
		} else {
			rl.entries[ip] = kept
		}
	}
}

// RateLimitMiddleware rejects requests over the limit with 429.
func RateLimitMiddleware(rl *RateLimiter) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !rl.Allow(GetRealIP(c)) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests",
				"message":     "Please slow down. Try again in a minute.",
				"retry_after": 60,
			})
		}
		return c.Next()
	}
}

// GetRealIP extracts the real client IP from headers or connection
// Priority: X-Real-IP > X-Forwarded-For > c.IP()
func GetRealIP(c fiber.Ctx) string {
	// Check X-Real-IP first (set by nginx)
	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	// Check X-Forwarded-For (may contain multiple IPs)
	if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
		return forwardedFor
	}

	// Fallback to connection IP
	return c.IP()
}
