package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Callbacks run synchronously inside Advance, in due-time order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*fakeTimer
}

type fakeTimer struct {
	fake *Fake
	when time.Time
	seq  uint64
	f    func()
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &fakeTimer{
		fake: c,
		when: c.now.Add(d),
		seq:  c.seq,
		f:    f,
	}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that comes due on the way,
// including timers armed by callbacks fired during this call.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}
		c.now = t.when
		c.mu.Unlock()
		t.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Pending returns the number of armed timers.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// nextDue pops the earliest timer due at or before target. Caller holds c.mu.
func (c *Fake) nextDue(target time.Time) *fakeTimer {
	if len(c.pending) == 0 {
		return nil
	}
	sort.Slice(c.pending, func(i, j int) bool {
		if c.pending[i].when.Equal(c.pending[j].when) {
			return c.pending[i].seq < c.pending[j].seq
		}
		return c.pending[i].when.Before(c.pending[j].when)
	})
	t := c.pending[0]
	if t.when.After(target) {
		return nil
	}
	c.pending = c.pending[1:]
	return t
}

func (t *fakeTimer) Stop() bool {
	c := t.fake
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}
