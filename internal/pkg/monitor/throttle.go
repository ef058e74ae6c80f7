package monitor

import (
	"sync"
	"time"
)

// throttle lets a call through at most once per window. Calls inside the
// window are discarded, not queued.
type throttle struct {
	mu       sync.Mutex
	window   time.Duration
	lastFire time.Time
	now      func() time.Time
}

func (t *throttle) allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.lastFire.IsZero() && now.Sub(t.lastFire) < t.window {
		return false
	}
	t.lastFire = now
	return true
}

// Throttle registers handler for cond so that it only runs while the
// monitor is running, and at most once per wait. A zero wait uses the
// configured throttle window.
func (m *Monitor) Throttle(cond Condition, handler Handler, wait time.Duration) Registration {
	if wait <= 0 {
		wait = m.config.get().Throttle
	}
	t := &throttle{window: wait, now: m.now}

	return m.On(cond, func(ev Event) {
		if !m.IsRunning() {
			return
		}
		if t.allow() {
			handler(ev)
		}
	})
}
