// Package clock abstracts wall-clock timers so periodic work can be driven by simulated time in tests
package clock

import "time"

// Timer is a pending callback scheduled through a Clock.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the timer already fired or was stopped.
	Stop() bool
}

// Clock schedules callbacks after a delay.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the Clock backed by the time package.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
