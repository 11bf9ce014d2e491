package reconcile

import (
	"sync"
	"time"
)

// debounce runs fn once delay has passed without another trigger.
type debounce struct {
	clock Clock
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   Timer
	stopped bool
}

func newDebounce(clock Clock, delay time.Duration, fn func()) *debounce {
	return &debounce{clock: clock, delay: delay, fn: fn}
}

func (d *debounce) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.delay, d.fire)
}

func (d *debounce) fire() {
	d.mu.Lock()
	d.timer = nil
	stopped := d.stopped
	d.mu.Unlock()

	if !stopped {
		d.fn()
	}
}

func (d *debounce) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
