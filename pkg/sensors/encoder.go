package sensors

import (
	"github.com/apwcr/rover.go/pkg/clock"
	"github.com/apwcr/rover.go/pkg/wire"
)

// SpeedEstimator derives a shaft speed from an accumulated quadrature
// count. The count itself is maintained by the hardware layer; this
// only differentiates it over time.
type SpeedEstimator struct {
	// CountsPerRev is the decoded counts per output revolution
	// (encoder CPR x quadrature factor x gear ratio).
	CountsPerRev float64

	lastCount int64
	lastAt    clock.Millis
	started   bool
}

// Update consumes the current accumulated count and returns the speed
// in RPM since the previous update. The first update only establishes
// the baseline and reports no reading, as does a zero elapsed time.
func (e *SpeedEstimator) Update(count int64, now clock.Millis) wire.OptFloat {
	if !e.started {
		e.lastCount, e.lastAt = count, now
		e.started = true
		return wire.OptFloat{}
	}

	dt := clock.Elapsed(now, e.lastAt)
	if dt <= 0 || e.CountsPerRev <= 0 {
		return wire.OptFloat{}
	}

	delta := count - e.lastCount
	e.lastCount, e.lastAt = count, now

	revs := float64(delta) / e.CountsPerRev
	return wire.Float(revs * 60000.0 / float64(dt))
}

// Reset discards the baseline; the next Update reports no reading.
func (e *SpeedEstimator) Reset() {
	e.started = false
}
