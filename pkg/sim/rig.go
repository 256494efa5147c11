// Package sim provides a simulated actuator rig so the control loop
// can run end to end on a desk, with only the command link being real.
package sim

import (
	"math"
	"sync"

	"github.com/golang/glog"

	"github.com/apwcr/rover.go/pkg/actuator"
	"github.com/apwcr/rover.go/pkg/clock"
	"github.com/apwcr/rover.go/pkg/sensors"
	"github.com/apwcr/rover.go/pkg/wire"
)

// DrivetrainConfig sizes the simulated drivetrain.
type DrivetrainConfig struct {
	// MaxRPM is the wheel speed at full linear intent.
	MaxRPM float64
	// MaxLinearFtPerSec is the linear rate treated as full intent.
	MaxLinearFtPerSec float64
	// MaxAngularDegPerSec is the angular rate treated as full intent.
	MaxAngularDegPerSec float64
	// TurnRatio scales angular intent into differential wheel speed.
	TurnRatio float64
	// SlewRPMPerSec limits how fast wheel speed follows the intent.
	SlewRPMPerSec float64
}

// DefaultDrivetrainConfig matches a small skid-steer chassis.
func DefaultDrivetrainConfig() DrivetrainConfig {
	return DrivetrainConfig{
		MaxRPM:              120,
		MaxLinearFtPerSec:   3,
		MaxAngularDegPerSec: 120,
		TurnRatio:           0.5,
		SlewRPMPerSec:       240,
	}
}

// Drivetrain models two wheels answering to a drive intent. Wheel
// speed slews toward the commanded value instead of jumping, the same
// first-order shape a real chassis shows.
type Drivetrain struct {
	cfg DrivetrainConfig

	mu             sync.Mutex
	targetL        float64
	targetR        float64
	rpmL           float64
	rpmR           float64
	lastAt         clock.Millis
	started        bool
	distIn         float64
	hasDist        bool
	distValidation sensors.DistanceValidator
}

// NewDrivetrain builds a stopped drivetrain.
func NewDrivetrain(cfg DrivetrainConfig) *Drivetrain {
	return &Drivetrain{
		cfg:            cfg,
		distValidation: sensors.DistanceValidator{MinIn: 6, MaxIn: 60},
	}
}

// Apply sets the drive intent: linear in ft/s, angular in deg/s.
func (d *Drivetrain) Apply(linear, angular float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	lin := clamp1(linear / d.cfg.MaxLinearFtPerSec)
	ang := clamp1(angular / d.cfg.MaxAngularDegPerSec)
	d.targetL = clamp1(lin-ang*d.cfg.TurnRatio) * d.cfg.MaxRPM
	d.targetR = clamp1(lin+ang*d.cfg.TurnRatio) * d.cfg.MaxRPM
}

// Stop zeroes the intent immediately.
func (d *Drivetrain) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targetL, d.targetR = 0, 0
}

// SetDistanceIn injects a simulated range reading, in inches.
func (d *Drivetrain) SetDistanceIn(in float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.distIn, d.hasDist = in, true
}

// Wheel advances the wheel model to now and reports its speeds.
func (d *Drivetrain) Wheel(now clock.Millis) wire.WheelState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		d.started, d.lastAt = true, now
	}
	dt := clock.Elapsed(now, d.lastAt)
	if dt > 0 {
		maxStep := d.cfg.SlewRPMPerSec * float64(dt) / 1000
		d.rpmL = slew(d.rpmL, d.targetL, maxStep)
		d.rpmR = slew(d.rpmR, d.targetR, maxStep)
		d.lastAt = now
	}
	return wire.WheelState{
		LeftRPM:  wire.Float(d.rpmL),
		RightRPM: wire.Float(d.rpmR),
	}
}

// Distance validates and reports the injected range reading.
func (d *Drivetrain) Distance(clock.Millis) wire.DistanceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasDist {
		return wire.DistanceState{}
	}
	return d.distValidation.Validate(d.distIn)
}

func slew(cur, target, maxStep float64) float64 {
	diff := target - cur
	if math.Abs(diff) <= maxStep {
		return target
	}
	if diff > 0 {
		return cur + maxStep
	}
	return cur - maxStep
}

func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// PWMRecorder backs an actuator.Motor with a virtual H-bridge.
type PWMRecorder struct {
	mu      sync.Mutex
	forward bool
	pwm     uint8
}

func (p *PWMRecorder) SetDirection(forward bool) {
	p.mu.Lock()
	p.forward = forward
	p.mu.Unlock()
}

func (p *PWMRecorder) SetPWM(v uint8) {
	p.mu.Lock()
	p.pwm = v
	p.mu.Unlock()
}

// Snapshot returns the last commanded direction and PWM value.
func (p *PWMRecorder) Snapshot() (forward bool, pwm uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forward, p.pwm
}

// Motor adapts an actuator.Motor to the mechanism motor interface,
// treating position commands as coarse duty requests against a known
// travel range.
type Motor struct {
	name      string
	motor     *actuator.Motor
	travelDeg float64
}

// NewMotor builds a simulated mechanism motor over a PWMRecorder.
func NewMotor(name string, travelDeg float64) (*Motor, *PWMRecorder) {
	rec := &PWMRecorder{}
	return &Motor{
		name:      name,
		motor:     actuator.NewMotor(rec, false, 0, 255),
		travelDeg: travelDeg,
	}, rec
}

func (m *Motor) SetDuty(duty float64) {
	glog.V(2).Infof("motor %s duty %.2f", m.name, duty)
	m.motor.SetDuty(duty)
}

// SetPositionDeg approximates position control by driving at a duty
// proportional to the requested fraction of travel.
func (m *Motor) SetPositionDeg(deg float64) {
	if m.travelDeg <= 0 {
		return
	}
	glog.V(2).Infof("motor %s position %.1f deg", m.name, deg)
	m.motor.SetDuty(clamp1(deg / m.travelDeg))
}

func (m *Motor) Coast() { m.motor.Coast() }

// Duty reports the underlying motor duty, for tests and dashboards.
func (m *Motor) Duty() float64 { return m.motor.Duty() }

// ServoHorn is a virtual servo horn implementing actuator.Output.
type ServoHorn struct {
	mu       sync.Mutex
	name     string
	attached bool
	deg      float64
}

// NewServoHorn names a horn for logging.
func NewServoHorn(name string) *ServoHorn { return &ServoHorn{name: name} }

func (h *ServoHorn) Attach() {
	h.mu.Lock()
	h.attached = true
	h.mu.Unlock()
	glog.V(2).Infof("servo %s attach", h.name)
}

func (h *ServoHorn) Detach() {
	h.mu.Lock()
	h.attached = false
	h.mu.Unlock()
	glog.V(2).Infof("servo %s detach", h.name)
}

func (h *ServoHorn) Write(deg float64) {
	h.mu.Lock()
	h.deg = deg
	h.mu.Unlock()
}

// Position reports the last written angle and attachment state.
func (h *ServoHorn) Position() (deg float64, attached bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deg, h.attached
}
