package actuator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apwcr/rover.go/pkg/clock"
)

// fakeServoOut records hardware calls.
type fakeServoOut struct {
	attached bool
	attaches int
	detaches int
	writes   []float64
}

func (o *fakeServoOut) Attach() { o.attached = true; o.attaches++ }
func (o *fakeServoOut) Detach() { o.attached = false; o.detaches++ }
func (o *fakeServoOut) Write(deg float64) {
	o.writes = append(o.writes, deg)
}

func lidConfig() ServoConfig {
	return ServoConfig{
		Name:          "LID",
		MinDeg:        0,
		MaxDeg:        100,
		RampDegPerSec: 25,
		DeadbandDeg:   2,
		SettleMs:      1000,
		AutoRelease:   true,
		RestDeg:       0,
	}
}

func TestServoInitialState(t *testing.T) {
	out := &fakeServoOut{}
	s := NewServo(lidConfig(), out, 80, 0)

	require.Equal(t, StateHolding, s.State())
	require.True(t, s.Attached())
	require.Equal(t, 80.0, s.Angle())
	require.Equal(t, 80.0, s.Target())
	require.Equal(t, []float64{80}, out.writes)
}

func TestServoInitialAngleClamped(t *testing.T) {
	out := &fakeServoOut{}
	s := NewServo(lidConfig(), out, 250, 0)
	require.Equal(t, 100.0, s.Angle())

	s.SetTarget(-50, 0)
	require.Equal(t, 0.0, s.Target())
}

func TestServoRampConvergence(t *testing.T) {
	out := &fakeServoOut{}
	s := NewServo(lidConfig(), out, 0, 0)
	cfg := lidConfig()

	s.SetTarget(80, 0)
	require.Equal(t, StateMoving, s.State())

	// 25 deg/s at 50ms ticks: 1.25 deg per tick, 64 ticks to cover 80.
	prev := s.Angle()
	now := clock.Millis(0)
	for i := 0; i < 200 && s.State() == StateMoving; i++ {
		now += 50
		s.Tick(now)
		require.GreaterOrEqual(t, s.Angle(), prev, "must move monotonically toward target")
		require.LessOrEqual(t, s.Angle(), 80.0, "must never overshoot")
		require.GreaterOrEqual(t, s.Angle(), cfg.MinDeg)
		require.LessOrEqual(t, s.Angle(), cfg.MaxDeg)
		prev = s.Angle()
	}
	require.Equal(t, 80.0, s.Angle())
	require.Equal(t, StateHolding, s.State())
}

func TestServoRampStepSize(t *testing.T) {
	out := &fakeServoOut{}
	s := NewServo(lidConfig(), out, 0, 0)

	s.SetTarget(80, 0)
	s.Tick(100) // 100ms at 25 deg/s
	require.InDelta(t, 2.5, s.Angle(), 1e-9)
	s.Tick(140) // uneven tick spacing
	require.InDelta(t, 3.5, s.Angle(), 1e-9)
}

func TestServoSnapWithoutRamp(t *testing.T) {
	cfg := lidConfig()
	cfg.RampDegPerSec = 0
	cfg.AutoRelease = false
	out := &fakeServoOut{}
	s := NewServo(cfg, out, 10, 0)

	s.SetTarget(70, 5)
	require.Equal(t, 70.0, s.Angle())
	require.Equal(t, StateHolding, s.State())
}

func TestServoNoOpTargetKeepsSettleTimer(t *testing.T) {
	cfg := lidConfig()
	out := &fakeServoOut{}
	s := NewServo(cfg, out, 0, 0) // at rest from the start

	// Half the settle time passes, then the same target arrives again.
	s.Tick(500)
	require.Equal(t, StateHolding, s.State())
	s.SetTarget(0, 500)
	s.SetTarget(0.0005, 500) // within epsilon, still a no-op
	require.Equal(t, StateHolding, s.State())

	// Release happens on the original schedule, not 1000ms after the
	// repeated command.
	s.Tick(1000)
	require.Equal(t, StateDetached, s.State())
}

func TestServoAutoReleaseAtRest(t *testing.T) {
	out := &fakeServoOut{}
	s := NewServo(lidConfig(), out, 80, 0)

	s.SetTarget(0, 0)
	now := clock.Millis(0)
	for i := 0; i < 400 && s.State() != StateDetached; i++ {
		now += 50
		s.Tick(now)
	}
	require.Equal(t, StateDetached, s.State())
	require.False(t, out.attached)
	require.Equal(t, 1, out.detaches)

	// Detached ticks do nothing.
	s.Tick(now + 1000)
	require.Equal(t, StateDetached, s.State())
}

func TestServoNoReleaseAtOtherTarget(t *testing.T) {
	out := &fakeServoOut{}
	s := NewServo(lidConfig(), out, 0, 0)

	// Settling at a non-rest target must not release, no matter how
	// long it holds.
	s.SetTarget(80, 0)
	now := clock.Millis(0)
	for i := 0; i < 400; i++ {
		now += 50
		s.Tick(now)
	}
	require.Equal(t, StateHolding, s.State())
	require.True(t, s.Attached())
	require.Zero(t, out.detaches)
}

func TestServoNoReleaseWhenDisabled(t *testing.T) {
	cfg := lidConfig()
	cfg.AutoRelease = false
	out := &fakeServoOut{}
	s := NewServo(cfg, out, 0, 0)

	for now := clock.Millis(50); now <= 5000; now += 50 {
		s.Tick(now)
	}
	require.Equal(t, StateHolding, s.State())
}

func TestServoReattachOnNewTarget(t *testing.T) {
	out := &fakeServoOut{}
	s := NewServo(lidConfig(), out, 0, 0)

	// Let it settle and release at rest.
	for now := clock.Millis(50); now <= 2000 && s.Attached(); now += 50 {
		s.Tick(now)
	}
	require.Equal(t, StateDetached, s.State())
	writesBefore := len(out.writes)

	// A new target re-engages the output at the last known angle
	// before any motion.
	s.SetTarget(80, 3000)
	require.True(t, s.Attached())
	require.Equal(t, StateMoving, s.State())
	require.Equal(t, 2, out.attaches)
	require.Equal(t, 0.0, out.writes[writesBefore], "re-attach must drive the last known angle")

	s.Tick(3100)
	require.InDelta(t, 2.5, s.Angle(), 1e-9)
}

func TestServoDepartureResetsSettle(t *testing.T) {
	out := &fakeServoOut{}
	s := NewServo(lidConfig(), out, 0, 0)

	// Rest for half the settle time, then command away and back; the
	// timer must restart from the return.
	s.Tick(500)
	s.SetTarget(80, 500)
	s.Tick(600)
	require.Equal(t, StateMoving, s.State())

	s.SetTarget(0, 600)
	now := clock.Millis(600)
	for i := 0; i < 400 && s.State() == StateMoving; i++ {
		now += 50
		s.Tick(now)
	}
	require.Equal(t, StateHolding, s.State())
	settled := now

	// Still attached until a full settle period passes from re-entry.
	s.Tick(settled + 500)
	require.Equal(t, StateHolding, s.State())
	s.Tick(settled + 1100)
	require.Equal(t, StateDetached, s.State())
}

func TestServoRuntimeTuning(t *testing.T) {
	cfg := lidConfig()
	cfg.AutoRelease = false
	out := &fakeServoOut{}
	s := NewServo(cfg, out, 0, 0)

	s.SetRamp(50)
	s.SetTarget(80, 0)
	s.Tick(100)
	require.InDelta(t, 5.0, s.Angle(), 1e-9)

	s.SetSettleParams(1, 100)
	s.SetAutoRelease(true, 0)
	s.SetTarget(0, 200)
	now := clock.Millis(200)
	for i := 0; i < 100 && s.State() != StateDetached; i++ {
		now += 50
		s.Tick(now)
	}
	require.Equal(t, StateDetached, s.State())
}

func TestServoIgnoresNaNTarget(t *testing.T) {
	out := &fakeServoOut{}
	s := NewServo(lidConfig(), out, 0, 0)
	s.SetTarget(math.NaN(), 0)
	require.Equal(t, 0.0, s.Target())
	require.False(t, math.IsNaN(s.Target()))
}
