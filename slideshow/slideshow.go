// Package slideshow rotates the press images shown next to the page content
package slideshow

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bogband/website/clock"
)

const DefaultPeriod = 4 * time.Second

var (
	ErrNoSlides      = errors.New("slideshow needs at least one slide")
	ErrInvalidPeriod = errors.New("slideshow period must be positive")
)

// State is the run state of a Controller.
type State int

const (
	Running State = iota
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

type Config struct {
	// Slides are the asset paths shown in order. At least one is required.
	Slides []string
	// Period between automatic advances, DefaultPeriod when zero.
	Period time.Duration
	// Clock defaults to clock.Real.
	Clock clock.Clock
	// Preloader is optional.
	Preloader Preloader
}

// Controller advances a circular slide index on a fixed period. Pointer enter pauses
// the rotation and pointer leave resumes it with a fresh full period. Close releases
// the timer for good.
type Controller struct {
	slides []string
	period time.Duration
	clock  clock.Clock

	mu     sync.Mutex
	index  int
	paused bool
	closed bool

	// epoch changes on every arm and disarm so a tick from a replaced timer is ignored
	epoch  uint64
	ticker *clock.Repeater

	subs    map[uint64]chan int
	nextSub uint64
}

func New(cfg Config) (*Controller, error) {
	if len(cfg.Slides) == 0 {
		return nil, ErrNoSlides
	}

	period := cfg.Period
	if period == 0 {
		period = DefaultPeriod
	}
	if period < 0 {
		return nil, ErrInvalidPeriod
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	slides := make([]string, len(cfg.Slides))
	copy(slides, cfg.Slides)

	c := &Controller{
		slides: slides,
		period: period,
		clock:  clk,
		subs:   make(map[uint64]chan int),
	}

	if cfg.Preloader != nil {
		for _, src := range c.slides {
			cfg.Preloader.Preload(src)
		}
	}

	c.mu.Lock()
	c.arm()
	c.mu.Unlock()

	return c, nil
}

// PointerEnter pauses the rotation and freezes the current index.
func (c *Controller) PointerEnter() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.paused {
		return
	}
	c.paused = true
	c.disarm()
}

// PointerLeave resumes the rotation. The next advance happens one full period from now.
func (c *Controller) PointerLeave() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.paused {
		return
	}
	c.paused = false
	c.arm()
}

// Close cancels the timer and ends every subscription. No index change happens afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.disarm()

	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	slog.Debug("slideshow closed", "index", c.index)
}

// Subscribe returns a channel receiving the index after every advance. Delivery never
// blocks the controller: a slow reader only sees the latest index. The channel is closed
// by cancel or by Close.
func (c *Controller) Subscribe() (<-chan int, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan int, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			close(sub)
			delete(c.subs, id)
		}
	}
	return ch, cancel
}

func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Current returns the asset path of the slide at the current index.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slides[c.index]
}

func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Controller) State() State {
	if c.Paused() {
		return Paused
	}
	return Running
}

func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) Slides() []string {
	out := make([]string, len(c.slides))
	copy(out, c.slides)
	return out
}

func (c *Controller) Period() time.Duration {
	return c.period
}

// arm replaces the ticker with one starting a full period from now. Caller holds c.mu.
func (c *Controller) arm() {
	c.disarm()
	epoch := c.epoch
	c.ticker = clock.NewRepeater(c.clock, c.period, func() { c.tick(epoch) })
	c.ticker.Start()
}

// disarm stops the ticker. Caller holds c.mu.
func (c *Controller) disarm() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.epoch++
}

func (c *Controller) tick(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.paused || epoch != c.epoch {
		return
	}
	c.index = (c.index + 1) % len(c.slides)
	c.publish(c.index)
}

// publish hands idx to every subscriber, replacing an unread value. Caller holds c.mu.
func (c *Controller) publish(idx int) {
	for _, ch := range c.subs {
		select {
		case ch <- idx:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- idx:
			default:
			}
		}
	}
}
