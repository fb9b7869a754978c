package clock

import (
	"sync"
	"time"
)

// Repeater runs fn every period until stopped. At most one timer is armed at a time:
// Start replaces any armed timer and Stop disarms it. A callback that was already
// in flight when Stop was called is dropped before fn runs.
type Repeater struct {
	clock  Clock
	period time.Duration
	fn     func()

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

func NewRepeater(c Clock, period time.Duration, fn func()) *Repeater {
	if c == nil {
		c = Real{}
	}
	return &Repeater{
		clock:  c,
		period: period,
		fn:     fn,
	}
}

// Start arms the repeater with a fresh full period.
func (r *Repeater) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disarm()
	r.arm()
}

// Stop disarms the repeater. It returns false if nothing was armed.
func (r *Repeater) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disarm()
}

// Armed reports whether a timer is pending.
func (r *Repeater) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer != nil
}

func (r *Repeater) arm() {
	r.gen++
	gen := r.gen
	r.timer = r.clock.AfterFunc(r.period, func() { r.fire(gen) })
}

func (r *Repeater) disarm() bool {
	if r.timer == nil {
		return false
	}
	r.timer.Stop()
	r.timer = nil
	r.gen++
	return true
}

func (r *Repeater) fire(gen uint64) {
	r.mu.Lock()
	if r.timer == nil || gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.arm()
	r.mu.Unlock()

	r.fn()
}
