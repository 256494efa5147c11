// Package console implements the host side of the command link: an
// interactive shell that streams commands to a robot and follows its
// telemetry.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/apwcr/rover.go/pkg/wire"
)

// Side selects one of the two mechanism motors.
type Side int

const (
	SideRHS Side = iota
	SideLHS
)

// Session keeps the current command intent and streams it to the
// robot. The robot's watchdog wants commands faster than its timeout,
// so the sender re-sends the intent at a fixed rate rather than only
// on changes.
type Session struct {
	rw     io.ReadWriteCloser
	period time.Duration
	start  time.Time

	mu     sync.Mutex
	seq    uint32
	drive  wire.DriveIntent
	mech   wire.Mechanism
	last   wire.TelemetryFrame
	lastAt time.Time
	hasTel bool

	// OnTelemetry, when set before Run, observes every decoded frame.
	OnTelemetry func(wire.TelemetryFrame)
}

// NewSession wraps a connected stream. sendHz sets the command
// refresh rate; 20 Hz comfortably beats the default watchdog.
func NewSession(rw io.ReadWriteCloser, sendHz int) *Session {
	if sendHz <= 0 {
		sendHz = 20
	}
	return &Session{
		rw:     rw,
		period: time.Second / time.Duration(sendHz),
		start:  time.Now(),
	}
}

// Run streams commands and reads telemetry until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	readErr := make(chan error, 1)
	go func() { readErr <- s.readLoop() }()

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.rw.Close()
			<-readErr
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-ticker.C:
			if err := s.sendOnce(); err != nil {
				s.rw.Close()
				<-readErr
				return err
			}
		}
	}
}

func (s *Session) sendOnce() error {
	s.mu.Lock()
	s.seq++
	frame := wire.CommandFrame{
		Seq:        s.seq,
		HostTimeMs: uint32(time.Since(s.start).Milliseconds()),
		Drive:      s.drive,
		Mech:       s.mech,
	}
	s.mu.Unlock()

	if _, err := s.rw.Write(wire.EncodeCommand(&frame)); err != nil {
		return fmt.Errorf("command write: %w", err)
	}
	return nil
}

func (s *Session) readLoop() error {
	r := bufio.NewReader(s.rw)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			tel, derr := wire.DecodeTelemetry(line)
			if derr != nil {
				glog.V(2).Infof("telemetry rejected: %v", derr)
			} else {
				s.mu.Lock()
				s.last, s.lastAt, s.hasTel = tel, time.Now(), true
				cb := s.OnTelemetry
				s.mu.Unlock()
				if cb != nil {
					cb(tel)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// SetDrive updates the drive intent: linear in ft/s, angular in deg/s.
func (s *Session) SetDrive(linear, angular float64) {
	s.mu.Lock()
	s.drive = wire.DriveIntent{Linear: linear, Angular: angular}
	s.mu.Unlock()
}

// Stop zeroes the drive intent and withdraws motor targets.
func (s *Session) Stop() {
	s.mu.Lock()
	s.drive = wire.DriveIntent{}
	s.mech.MotorRHS = wire.MotorTarget{}
	s.mech.MotorLHS = wire.MotorTarget{}
	s.mu.Unlock()
}

// SetLid commands the lid servo, degrees.
func (s *Session) SetLid(deg float64) {
	s.mu.Lock()
	s.mech.ServoLID = wire.Float(deg)
	s.mu.Unlock()
}

// SetSweep commands the sweep servo, degrees.
func (s *Session) SetSweep(deg float64) {
	s.mu.Lock()
	s.mech.ServoSweep = wire.Float(deg)
	s.mu.Unlock()
}

// SetMotorDuty commands a mechanism motor in duty mode, [-1, 1].
func (s *Session) SetMotorDuty(side Side, duty float64) {
	s.setMotor(side, wire.MotorTarget{Mode: wire.ModeDuty, Value: duty, Present: true})
}

// SetMotorPos commands a mechanism motor in position mode, degrees.
func (s *Session) SetMotorPos(side Side, deg float64) {
	s.setMotor(side, wire.MotorTarget{Mode: wire.ModePosDeg, Value: deg, Present: true})
}

func (s *Session) setMotor(side Side, t wire.MotorTarget) {
	s.mu.Lock()
	if side == SideRHS {
		s.mech.MotorRHS = t
	} else {
		s.mech.MotorLHS = t
	}
	s.mu.Unlock()
}

// Last returns the most recent telemetry frame and its arrival time.
func (s *Session) Last() (wire.TelemetryFrame, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastAt, s.hasTel
}

// Seq returns the last sent sequence number.
func (s *Session) Seq() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
