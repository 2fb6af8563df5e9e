package ws

import (
	"sync"
	"time"
)

// typingTracker holds one auto-expiry timer per (room, user) typing
// indicator. Starting again while typing resets the timer; a send or an
// explicit stop cancels it.
type typingTracker struct {
	expiry time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newTypingTracker(expiry time.Duration) *typingTracker {
	return &typingTracker{
		expiry: expiry,
		timers: make(map[string]*time.Timer),
	}
}

func typingKey(roomId, userId string) string {
	return roomId + ":" + userId
}

// Start arms (or re-arms) the expiry timer. onExpire runs once if the
// indicator is never stopped explicitly.
func (t *typingTracker) Start(roomId, userId string, onExpire func()) {
	key := typingKey(roomId, userId)
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
	}
	t.timers[key] = time.AfterFunc(t.expiry, func() {
		t.mu.Lock()
		delete(t.timers, key)
		t.mu.Unlock()
		onExpire()
	})
}

// Stop cancels the indicator and reports whether it was active. Expiry and
// explicit stop race benignly: whoever wins removes the timer, the loser is
// a no-op.
func (t *typingTracker) Stop(roomId, userId string) bool {
	key := typingKey(roomId, userId)
	t.mu.Lock()
	defer t.mu.Unlock()
	timer, ok := t.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.timers, key)
	return true
}
