package reconcile

import (
	"sync"
	"time"
)

// throttle runs fn at most once per interval. The first trigger after a quiet
// period runs immediately; triggers inside the window collapse into a single
// trailing run at the end of it. fn reads whatever state is current when it
// runs, so the trailing run always carries the latest value.
type throttle struct {
	clock    Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	last    time.Time
	fired   bool
	pending Timer
	stopped bool
}

func newThrottle(clock Clock, interval time.Duration, fn func()) *throttle {
	return &throttle{clock: clock, interval: interval, fn: fn}
}

func (t *throttle) Trigger() {
	t.mu.Lock()
	if t.stopped || t.pending != nil {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	if !t.fired || now.Sub(t.last) >= t.interval {
		t.fired = true
		t.last = now
		t.mu.Unlock()
		t.fn()
		return
	}

	wait := t.interval - now.Sub(t.last)
	t.pending = t.clock.AfterFunc(wait, t.trailing)
	t.mu.Unlock()
}

func (t *throttle) trailing() {
	t.mu.Lock()
	t.pending = nil
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.last = t.clock.Now()
	t.mu.Unlock()

	t.fn()
}

// Stop cancels a queued trailing run. Later triggers are ignored.
func (t *throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}
