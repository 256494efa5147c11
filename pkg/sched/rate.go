package sched

import "github.com/apwcr/rover.go/pkg/clock"

// Rate paces a task at a fixed frequency. It keeps one deadline and
// answers Ready at most once per elapsed period. The zero value runs
// at 1Hz once SetHz is called; use NewRate for a configured instance.
type Rate struct {
	period  clock.Millis
	next    clock.Millis
	started bool
}

// NewRate creates a Rate firing hz times per second.
func NewRate(hz uint16) *Rate {
	r := &Rate{}
	r.SetHz(hz)
	return r
}

// SetHz sets the frequency. 0 is treated as 1.
func (r *Rate) SetHz(hz uint16) {
	if hz == 0 {
		hz = 1
	}
	r.SetPeriod(clock.Millis(1000 / uint32(hz)))
}

// SetPeriod sets the period directly in milliseconds, minimum 1.
func (r *Rate) SetPeriod(period clock.Millis) {
	if period == 0 {
		period = 1
	}
	r.period = period
}

// Ready reports whether the task is due and, if so, schedules the next
// deadline. The first call after construction or Reset always fires.
// Comparison uses signed-difference arithmetic so it survives timestamp
// wraparound.
func (r *Rate) Ready(now clock.Millis) bool {
	if !r.started {
		r.next = now
		r.started = true
	}
	if clock.Elapsed(now, r.next) >= 0 {
		r.next = now + r.period
		return true
	}
	return false
}

// Reset makes the next Ready call fire immediately.
func (r *Rate) Reset() {
	r.started = false
}

// Period returns the configured period in milliseconds.
func (r *Rate) Period() clock.Millis { return r.period }
