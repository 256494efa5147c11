package actuator

import (
	"math"

	"github.com/golang/glog"

	"github.com/apwcr/rover.go/pkg/clock"
)

// State is the servo ramp state.
type State int

const (
	// StateDetached means the output is not driven and holds no force.
	StateDetached State = iota
	// StateMoving means the current angle is ramping toward the target.
	StateMoving
	// StateHolding means the current angle is within the deadband of
	// the target and the output is still driven.
	StateHolding
)

// String returns a short name for logging.
func (s State) String() string {
	switch s {
	case StateDetached:
		return "DETACHED"
	case StateMoving:
		return "MOVING"
	case StateHolding:
		return "HOLDING"
	}
	return "UNKNOWN"
}

// Output is the hardware side of a servo channel.
type Output interface {
	Attach()
	Detach()
	// Write drives the output to the given angle in degrees.
	Write(deg float64)
}

// ServoConfig holds the motion parameters of one ramped servo.
type ServoConfig struct {
	Name string

	MinDeg float64
	MaxDeg float64

	// RampDegPerSec limits how fast the angle may change. 0 disables
	// ramping: new targets are taken immediately.
	RampDegPerSec float64

	// DeadbandDeg is the window within which current and target count
	// as equal for settling.
	DeadbandDeg float64

	// SettleMs is the minimum continuous time within the deadband
	// before auto-release may trigger.
	SettleMs uint32

	// AutoRelease detaches the output after settling at RestDeg, for
	// joints where gravity or a mechanical stop maintains position.
	AutoRelease bool
	RestDeg     float64
}

// targetEpsilon is the threshold below which a new target counts as
// unchanged.
const targetEpsilon = 0.001

// Servo ramps a joint toward a commanded target without exceeding the
// rate limit, and releases holding force once settled at the rest
// angle. All methods are driven from the single control tick; nothing
// here is safe for concurrent use.
type Servo struct {
	cfg ServoConfig
	out Output

	current  float64
	target   float64
	attached bool

	atTarget      bool
	atTargetSince clock.Millis // meaningful only while atTarget
	lastTick      clock.Millis
}

// NewServo creates a Servo attached and holding at the clamped initial
// angle.
func NewServo(cfg ServoConfig, out Output, initialDeg float64, now clock.Millis) *Servo {
	if cfg.RampDegPerSec < 0 {
		cfg.RampDegPerSec = 0
	}
	if cfg.DeadbandDeg < 0 {
		cfg.DeadbandDeg = 0
	}
	s := &Servo{cfg: cfg, out: out}
	s.cfg.RestDeg = s.clamp(cfg.RestDeg)

	init := s.clamp(initialDeg)
	s.current, s.target = init, init
	s.lastTick = now

	s.out.Attach()
	s.attached = true
	s.out.Write(init)
	s.updateAtTarget(now)
	return s
}

// SetTarget stores a new clamped target. A target within epsilon of the
// stored one is a no-op: it must not reset the settle timer nor leave
// HOLDING. A material change re-attaches a released output at the last
// known angle first, so the joint never jumps.
func (s *Servo) SetTarget(deg float64, now clock.Millis) {
	if math.IsNaN(deg) {
		return
	}
	target := s.clamp(deg)
	if math.Abs(target-s.target) < targetEpsilon {
		return
	}

	s.target = target
	s.attach(now)

	s.atTarget = false
	s.atTargetSince = 0

	if s.cfg.RampDegPerSec <= 0 {
		// Ramp disabled: snap to the target immediately.
		s.current = s.target
		s.out.Write(s.current)
		s.lastTick = now
		s.updateAtTarget(now)
	}
}

// Tick advances the ramp by the time elapsed since the previous tick.
func (s *Servo) Tick(now clock.Millis) {
	if !s.attached {
		return
	}

	dt := clock.Elapsed(now, s.lastTick)
	s.lastTick = now
	if dt <= 0 {
		return
	}

	if s.cfg.RampDegPerSec > 0 {
		maxStep := s.cfg.RampDegPerSec * float64(dt) / 1000.0
		err := s.target - s.current
		switch {
		case math.Abs(err) <= maxStep:
			s.current = s.target
		case err > 0:
			s.current += maxStep
		default:
			s.current -= maxStep
		}
		s.current = s.clamp(s.current)
		s.out.Write(s.current)
	}

	s.updateAtTarget(now)
	s.maybeRelease(now)
}

// maybeRelease detaches after settling, but only when the commanded
// target itself is the rest angle. Settling at any other target keeps
// holding force applied.
func (s *Servo) maybeRelease(now clock.Millis) {
	if !s.cfg.AutoRelease || !s.atTarget {
		return
	}
	if math.Abs(s.target-s.cfg.RestDeg) > s.cfg.DeadbandDeg {
		return
	}
	if clock.Elapsed(now, s.atTargetSince) >= int32(s.cfg.SettleMs) {
		glog.V(1).Infof("servo %s released at %.1f deg", s.cfg.Name, s.current)
		s.out.Detach()
		s.attached = false
	}
}

func (s *Servo) attach(now clock.Millis) {
	if s.attached {
		return
	}
	s.out.Attach()
	s.attached = true
	// Drive the last known angle before any motion to avoid a jump.
	s.out.Write(s.current)
	s.lastTick = now
}

func (s *Servo) updateAtTarget(now clock.Millis) {
	if math.Abs(s.target-s.current) <= s.cfg.DeadbandDeg {
		if !s.atTarget {
			s.atTargetSince = now
		}
		s.atTarget = true
	} else {
		s.atTarget = false
		s.atTargetSince = 0
	}
}

func (s *Servo) clamp(deg float64) float64 {
	if deg < s.cfg.MinDeg {
		return s.cfg.MinDeg
	}
	if deg > s.cfg.MaxDeg {
		return s.cfg.MaxDeg
	}
	return deg
}

// State derives the ramp state.
func (s *Servo) State() State {
	if !s.attached {
		return StateDetached
	}
	if s.atTarget {
		return StateHolding
	}
	return StateMoving
}

// Angle returns the current angle in degrees.
func (s *Servo) Angle() float64 { return s.current }

// Target returns the stored target angle in degrees.
func (s *Servo) Target() float64 { return s.target }

// Attached reports whether the output is driven.
func (s *Servo) Attached() bool { return s.attached }

// SetRamp changes the rate limit at runtime. Negative values disable
// ramping.
func (s *Servo) SetRamp(degPerSec float64) {
	if degPerSec < 0 {
		degPerSec = 0
	}
	s.cfg.RampDegPerSec = degPerSec
}

// SetSettleParams changes the deadband and settle duration at runtime.
func (s *Servo) SetSettleParams(deadbandDeg float64, settleMs uint32) {
	if deadbandDeg < 0 {
		deadbandDeg = 0
	}
	s.cfg.DeadbandDeg = deadbandDeg
	s.cfg.SettleMs = settleMs
}

// SetAutoRelease changes the auto-release behavior at runtime.
func (s *Servo) SetAutoRelease(enable bool, restDeg float64) {
	s.cfg.AutoRelease = enable
	s.cfg.RestDeg = s.clamp(restDeg)
}
