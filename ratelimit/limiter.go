// Package ratelimit provides the per-identity throttles applied to inbound
// events. Limiters are constructed once per server instance and handed to the
// components that need them; there is no process-wide state.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window event counter. Construct one Limiter per event
// category; the identity (typically the user id) is the map key. Expired
// timestamps are pruned lazily on access.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
	now     func() time.Time
}

// NewLimiter creates a Limiter allowing max events per window per identity.
func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether the identity may emit another event. If allowed, the
// event is recorded; a denial has no side effect.
func (l *Limiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	timestamps := l.entries[identity]
	valid := timestamps[:0]
	for _, t := range timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= l.max {
		l.entries[identity] = valid
		return false
	}

	l.entries[identity] = append(valid, now)
	return true
}

// Cooldown enforces a minimum spacing between consecutive events of one
// identity. It is checked independently of the windowed Limiter: chat sends
// must pass both.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether enough time has passed since the identity's previous
// allowed event, and records the event if so.
func (c *Cooldown) Allow(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[identity]; ok && now.Sub(last) < c.interval {
		return false
	}
	c.last[identity] = now
	return true
}
