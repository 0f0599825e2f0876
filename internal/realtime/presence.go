package realtime

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPresenceInterval allows one effective presence update per 100ms per session.
const DefaultPresenceInterval = 100 * time.Millisecond

// presenceCoalescer keeps at most one pending presence update per session. Updates arriving
// while the limiter is closed are merged into the pending slot and flushed later.
type presenceCoalescer struct {
	limiter  *rate.Limiter
	interval time.Duration

	mu      sync.Mutex
	pending *PresenceUpdatePayload
	timer   *time.Timer
	stopped bool
}

func newPresenceCoalescer(interval time.Duration) *presenceCoalescer {
	if interval <= 0 {
		interval = DefaultPresenceInterval
	}
	return &presenceCoalescer{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// offer returns the update to apply immediately, or parks it and schedules flush.
func (c *presenceCoalescer) offer(update PresenceUpdatePayload, flush func()) (PresenceUpdatePayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return PresenceUpdatePayload{}, false
	}
	if c.pending != nil {
		merged := mergePresence(*c.pending, update)
		c.pending = &merged
		return PresenceUpdatePayload{}, false
	}
	if c.limiter.Allow() {
		return update, true
	}

	c.pending = &update
	c.schedule(flush)
	return PresenceUpdatePayload{}, false
}

// take removes the pending update when the limiter admits it. When the window is still
// closed the update stays parked and flush is rescheduled.
func (c *presenceCoalescer) take(flush func()) (PresenceUpdatePayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timer = nil
	if c.stopped || c.pending == nil {
		return PresenceUpdatePayload{}, false
	}
	if !c.limiter.Allow() {
		c.schedule(flush)
		return PresenceUpdatePayload{}, false
	}

	update := *c.pending
	c.pending = nil
	return update, true
}

// reset discards the pending update, e.g. when the session leaves its room.
func (c *presenceCoalescer) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *presenceCoalescer) stop() {
	c.reset()
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}

func (c *presenceCoalescer) schedule(flush func()) {
	if c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.interval, flush)
}

func mergePresence(base, next PresenceUpdatePayload) PresenceUpdatePayload {
	if next.CursorPosition != nil {
		base.CursorPosition = next.CursorPosition
	}
	if next.IsActive != nil {
		base.IsActive = next.IsActive
	}
	return base
}
