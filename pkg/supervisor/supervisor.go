// Package supervisor ties the link, the scheduler and the actuators
// into the fixed-rate control loop that runs the robot.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/apwcr/rover.go/pkg/actuator"
	"github.com/apwcr/rover.go/pkg/clock"
	"github.com/apwcr/rover.go/pkg/config"
	"github.com/apwcr/rover.go/pkg/link"
	"github.com/apwcr/rover.go/pkg/sched"
	"github.com/apwcr/rover.go/pkg/wire"
)

// DriveOutput receives the drive intent from the host.
type DriveOutput interface {
	// Apply sets the commanded body rates: linear in ft/s, angular
	// in deg/s.
	Apply(linear, angular float64)
	// Stop halts the drivetrain.
	Stop()
}

// MotorOutput is one addressable mechanism motor.
type MotorOutput interface {
	SetDuty(duty float64)
	SetPositionDeg(deg float64)
	Coast()
}

// SensorSource supplies the sensor half of a telemetry frame.
type SensorSource interface {
	Wheel(now clock.Millis) wire.WheelState
	Distance(now clock.Millis) wire.DistanceState
}

// Supervisor runs the receive, servo and telemetry schedules over a
// shared command link and holds the command-freshness watchdog.
type Supervisor struct {
	mu sync.Mutex

	link  *link.Link
	drive DriveOutput
	rhs   MotorOutput
	lhs   MotorOutput
	lid   *actuator.Servo
	sweep *actuator.Servo
	sense SensorSource

	rxRate    *sched.Rate
	servoRate *sched.Rate
	txRate    *sched.Rate

	timeout clock.Millis

	appliedSeq uint32
	hasApplied bool
	safe       bool
}

// New wires a supervisor from its collaborators. The servos are owned
// by the caller so that simulators and hardware share one code path.
func New(cfg config.Config, l *link.Link, drive DriveOutput, rhs, lhs MotorOutput, lid, sweep *actuator.Servo, sense SensorSource) *Supervisor {
	return &Supervisor{
		link:      l,
		drive:     drive,
		rhs:       rhs,
		lhs:       lhs,
		lid:       lid,
		sweep:     sweep,
		sense:     sense,
		rxRate:    sched.NewRate(cfg.RxHz),
		servoRate: sched.NewRate(cfg.ServoHz),
		txRate:    sched.NewRate(cfg.TelemetryHz),
		timeout:   clock.Millis(cfg.CommandTimeout.Milliseconds()),
	}
}

// Tick advances every schedule that is due at now. Order matters:
// receive first so the watchdog and the actuators see the freshest
// command, telemetry last so it reports the state after this tick.
func (s *Supervisor) Tick(now clock.Millis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rxRate.Ready(now) {
		s.link.ReceiveTick(now)
	}

	s.checkWatchdog(now)
	if !s.safe {
		s.applyCommand(now)
	}

	if s.servoRate.Ready(now) {
		s.lid.Tick(now)
		s.sweep.Tick(now)
	}

	if s.txRate.Ready(now) {
		t := s.buildTelemetry(now)
		if err := s.link.SendTick(&t); err != nil {
			return err
		}
	}
	return nil
}

// checkWatchdog drops into the safe state on the first tick at or past
// the freshness limit, and leaves it when a fresh command arrives.
func (s *Supervisor) checkWatchdog(now clock.Millis) {
	stale := s.link.CommandStale(now, s.timeout)
	if stale && !s.safe {
		s.enterSafeState(now)
	} else if !stale && s.safe {
		glog.Warningf("command link recovered, resuming control")
		s.safe = false
	}
}

func (s *Supervisor) enterSafeState(now clock.Millis) {
	glog.Warningf("command link stale, entering safe state")
	s.safe = true
	s.drive.Stop()
	s.rhs.Coast()
	s.lhs.Coast()
	s.lid.SetTarget(config.LidClosedDeg, now)
	s.sweep.SetTarget(config.SweepStowDeg, now)
}

// applyCommand pushes the latest decoded command to the actuators,
// once per sequence number.
func (s *Supervisor) applyCommand(now clock.Millis) {
	cmd, ok := s.link.Command()
	if !ok {
		return
	}
	if s.hasApplied && cmd.Seq == s.appliedSeq {
		return
	}
	s.appliedSeq = cmd.Seq
	s.hasApplied = true

	s.drive.Apply(cmd.Drive.Linear, cmd.Drive.Angular)
	applyMotor(s.rhs, cmd.Mech.MotorRHS)
	applyMotor(s.lhs, cmd.Mech.MotorLHS)
	if cmd.Mech.ServoLID.Present {
		s.lid.SetTarget(cmd.Mech.ServoLID.Value, now)
	}
	if cmd.Mech.ServoSweep.Present {
		s.sweep.SetTarget(cmd.Mech.ServoSweep.Value, now)
	}
}

func applyMotor(out MotorOutput, t wire.MotorTarget) {
	if !t.Present {
		return
	}
	switch t.Mode {
	case wire.ModeDuty:
		out.SetDuty(t.Value)
	case wire.ModePosDeg:
		out.SetPositionDeg(t.Value)
	}
}

func (s *Supervisor) buildTelemetry(now clock.Millis) wire.TelemetryFrame {
	t := wire.TelemetryFrame{
		TimeMs: uint32(now),
		AckSeq: s.link.AckSeq(),
		Note:   s.link.Note(now),
	}
	if s.sense != nil {
		t.Wheel = s.sense.Wheel(now)
		t.Distance = s.sense.Distance(now)
	}
	// Servo angles are only known while the servo is driven; once
	// released the mechanism can back-drive under gravity.
	if s.lid.Attached() {
		t.Mech.ServoLID = wire.Float(s.lid.Angle())
	}
	if s.sweep.Attached() {
		t.Mech.ServoSweep = wire.Float(s.sweep.Angle())
	}
	return t
}

// SafeState reports whether the watchdog currently holds the robot in
// its safe state.
func (s *Supervisor) SafeState() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.safe
}

// Stats returns a snapshot of the link counters.
func (s *Supervisor) Stats() link.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link.Stats()
}

// ApplyConfig adopts the runtime-tunable parts of a reloaded config:
// schedule rates, the watchdog limit and the servo motion profiles.
// Port, baud and buffer sizing need a restart and are ignored here.
func (s *Supervisor) ApplyConfig(cfg config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxRate.SetHz(cfg.RxHz)
	s.servoRate.SetHz(cfg.ServoHz)
	s.txRate.SetHz(cfg.TelemetryHz)
	s.timeout = clock.Millis(cfg.CommandTimeout.Milliseconds())
	applyServoParams(s.lid, cfg.Lid)
	applyServoParams(s.sweep, cfg.Sweep)
	glog.V(1).Infof("runtime config applied: rx=%dHz servo=%dHz telemetry=%dHz timeout=%s",
		cfg.RxHz, cfg.ServoHz, cfg.TelemetryHz, cfg.CommandTimeout)
}

func applyServoParams(s *actuator.Servo, p config.ServoParams) {
	s.SetRamp(p.RampDegPerSec)
	s.SetSettleParams(p.DeadbandDeg, uint32(p.Settle.Milliseconds()))
	s.SetAutoRelease(p.AutoRelease, p.RestDeg)
}

// Run drives Tick from a wall-clock ticker until ctx is cancelled.
// The interval should be at most the period of the fastest schedule.
func (s *Supervisor) Run(ctx context.Context, src clock.Source, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(src.Now()); err != nil {
				return err
			}
		}
	}
}
