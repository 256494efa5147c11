package sensors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistanceValidator(t *testing.T) {
	v := DistanceValidator{MinIn: 6, MaxIn: 60}

	testCases := []struct {
		name  string
		raw   float64
		valid bool
	}{
		{"in range", 24, true},
		{"at min", 6, true},
		{"at max", 60, true},
		{"below min", 5.9, false},
		{"above max", 61, false},
		{"timeout zero", 0, false},
		{"negative", -3, false},
		{"nan", math.NaN(), false},
		{"inf", math.Inf(1), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := v.Validate(tc.raw)
			require.Equal(t, tc.valid, d.Valid)
			require.Equal(t, tc.valid, d.DistanceIn.Present)
			if tc.valid {
				require.Equal(t, tc.raw, d.DistanceIn.Value)
			}
		})
	}
}

func TestSpeedEstimator(t *testing.T) {
	e := SpeedEstimator{CountsPerRev: 384} // 48 CPR x4 x2 gearing

	// First sample only establishes the baseline.
	rpm := e.Update(0, 0)
	require.False(t, rpm.Present)

	// 384 counts in 1s = 1 rev/s = 60 RPM.
	rpm = e.Update(384, 1000)
	require.True(t, rpm.Present)
	require.InDelta(t, 60.0, rpm.Value, 1e-9)

	// Reverse rotation gives negative RPM.
	rpm = e.Update(192, 1500)
	require.InDelta(t, -60.0, rpm.Value, 1e-9)

	// Zero elapsed time yields no reading rather than a division blowup.
	rpm = e.Update(200, 1500)
	require.False(t, rpm.Present)
}

func TestSpeedEstimatorReset(t *testing.T) {
	e := SpeedEstimator{CountsPerRev: 100}
	e.Update(0, 0)
	e.Reset()
	require.False(t, e.Update(500, 100).Present)
	require.True(t, e.Update(600, 200).Present)
}
