package relay

import (
	"sync"
	"time"
)

// RateLimiter caps relay messages per sender in a one-minute window.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	clients map[string]*clientLimit
	now     func() time.Time
}

type clientLimit struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter allows maxPerMinute messages per sender. Zero or less
// disables limiting.
func NewRateLimiter(maxPerMinute int) *RateLimiter {
	return &RateLimiter{
		max:     maxPerMinute,
		clients: make(map[string]*clientLimit),
		now:     time.Now,
	}
}

// Allow reports whether connID may relay one more message.
func (rl *RateLimiter) Allow(connID string) bool {
	if rl.max <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limit, exists := rl.clients[connID]
	if !exists {
		rl.clients[connID] = &clientLimit{count: 1, windowStart: now}
		return true
	}

	if now.Sub(limit.windowStart) >= time.Minute {
		limit.count = 1
		limit.windowStart = now
		return true
	}

	if limit.count >= rl.max {
		return false
	}
	limit.count++
	return true
}

// Forget drops the state of a closed connection.
func (rl *RateLimiter) Forget(connID string) {
	rl.mu.Lock()
	delete(rl.clients, connID)
	rl.mu.Unlock()
}

// Cleanup removes entries idle for five windows. Call periodically.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for id, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*time.Minute {
			delete(rl.clients, id)
		}
	}
}

// Tracked returns how many senders currently hold limiter state.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
