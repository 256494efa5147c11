package sensors

import (
	"math"

	"github.com/apwcr/rover.go/pkg/wire"
)

// DistanceValidator sanity-checks raw range readings against the
// usable window of the sensor. Acquisition (pulse timing) happens
// elsewhere; this only judges the resulting number.
type DistanceValidator struct {
	MinIn float64
	MaxIn float64
}

// Validate converts a raw reading in inches into a telemetry distance
// state. Readings outside the window, non-finite values and the
// sensor's zero (timeout) reading are reported invalid with a null
// value.
func (v DistanceValidator) Validate(rawIn float64) wire.DistanceState {
	if math.IsNaN(rawIn) || math.IsInf(rawIn, 0) {
		return wire.DistanceState{}
	}
	if rawIn <= 0 || rawIn < v.MinIn || rawIn > v.MaxIn {
		return wire.DistanceState{}
	}
	return wire.DistanceState{DistanceIn: wire.Float(rawIn), Valid: true}
}
