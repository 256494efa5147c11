package wire

import "math"

// OptFloat is an optional numeric value. Absent fields encode to JSON
// null rather than a sentinel number.
type OptFloat struct {
	Value   float64
	Present bool
}

// Float creates a present OptFloat.
func Float(v float64) OptFloat {
	return OptFloat{Value: v, Present: true}
}

// Finite reports whether the value is present and a finite number.
func (o OptFloat) Finite() bool {
	return o.Present && !math.IsNaN(o.Value) && !math.IsInf(o.Value, 0)
}

// MotorMode selects how a mechanism motor target is interpreted.
type MotorMode int

// Supported mechanism motor modes. The wire strings are fixed by the
// peer contract.
const (
	ModeUnknown MotorMode = iota
	ModePosDeg
	ModeDuty
)

// ParseMotorMode maps a wire mode string to a MotorMode.
func ParseMotorMode(s string) MotorMode {
	switch s {
	case "POS_DEG":
		return ModePosDeg
	case "DUTY":
		return ModeDuty
	}
	return ModeUnknown
}

// String returns the wire form of the mode.
func (m MotorMode) String() string {
	switch m {
	case ModePosDeg:
		return "POS_DEG"
	case ModeDuty:
		return "DUTY"
	}
	return "UNKNOWN"
}

// MotorTarget is an optional mechanism motor command, either an angular
// setpoint (POS_DEG) or a signed duty (DUTY).
type MotorTarget struct {
	Mode    MotorMode
	Value   float64
	Present bool
}

// DriveIntent carries the commanded base rates.
type DriveIntent struct {
	Linear  float64 // ft/s
	Angular float64 // deg/s
}

// Mechanism groups the optional actuator targets of a command frame.
// Each field is independently optional.
type Mechanism struct {
	MotorRHS   MotorTarget
	MotorLHS   MotorTarget
	ServoLID   OptFloat // degrees
	ServoSweep OptFloat // degrees
}

// CommandFrame is one decoded host command. Valid is set only after a
// fully successful decode.
type CommandFrame struct {
	Seq        uint32
	HostTimeMs uint32

	Drive DriveIntent
	Mech  Mechanism

	Valid bool
}

// WheelState carries wheel speed readings for telemetry.
type WheelState struct {
	LeftRPM  OptFloat
	RightRPM OptFloat
}

// MechState carries actuator angle readings for telemetry.
type MechState struct {
	ServoLID   OptFloat
	ServoSweep OptFloat
	MotorRHS   OptFloat
	MotorLHS   OptFloat
}

// DistanceState carries the range sensor reading with its own validity
// flag. The reading encodes to null whenever Valid is false.
type DistanceState struct {
	DistanceIn OptFloat
	Valid      bool
}

// TelemetryFrame is one board-to-host report. It is assembled fresh
// every TX tick and never retained.
type TelemetryFrame struct {
	TimeMs uint32
	AckSeq uint32

	Wheel    WheelState
	Mech     MechState
	Distance DistanceState

	Note string // empty means no note pending
}
