package wire

import (
	"encoding/json"
	"fmt"
)

// Codec translates between line frames and command/telemetry structs.
// One JSON object per newline-terminated line, field names fixed by the
// peer contract (the host sends "cmd", the board sends "telemetry").

const (
	cmdType = "cmd"
	telType = "telemetry"
)

// Wire mirror structs. Pointers distinguish absent/null from zero.

type wireMotor struct {
	Mode  string   `json:"mode"`
	Value *float64 `json:"value"`
}

type wireMech struct {
	MotorRHS   *wireMotor `json:"motor_RHS"`
	MotorLHS   *wireMotor `json:"motor_LHS"`
	ServoLID   *float64   `json:"servo_LID_deg"`
	ServoSweep *float64   `json:"servo_SWEEP_deg"`
}

type wireDrive struct {
	Linear  *float64 `json:"linear"`
	Angular *float64 `json:"angular"`
}

type wireCommand struct {
	Type       string     `json:"type"`
	Seq        *uint32    `json:"seq"`
	HostTimeMs *uint32    `json:"host_time_ms"`
	Drive      *wireDrive `json:"drive"`
	Mech       *wireMech  `json:"mech"`
}

type wireWheel struct {
	LeftRPM  *float64 `json:"left_rpm"`
	RightRPM *float64 `json:"right_rpm"`
}

type wireMechState struct {
	ServoLID   *float64 `json:"servo_LID_deg"`
	ServoSweep *float64 `json:"servo_SWEEP_deg"`
	MotorRHS   *float64 `json:"motor_RHS_deg"`
	MotorLHS   *float64 `json:"motor_LHS_deg"`
}

type wireDistance struct {
	Valid      bool     `json:"valid"`
	DistanceIn *float64 `json:"distance_in"`
}

type wireTelemetry struct {
	Type     string        `json:"type"`
	TimeMs   uint32        `json:"arduino_time_ms"`
	AckSeq   uint32        `json:"ack_seq"`
	Wheel    wireWheel     `json:"wheel"`
	Mech     wireMechState `json:"mech"`
	Distance wireDistance  `json:"ultrasonic"`
	Note     *string       `json:"note"`
}

// DecodeCommand parses one line into a CommandFrame. On any error the
// returned frame is zero with Valid false; the caller keeps whatever
// command it held before.
func DecodeCommand(line []byte) (CommandFrame, error) {
	var cmd CommandFrame
	if len(line) == 0 {
		return cmd, ErrEmptyFrame
	}

	var w wireCommand
	if err := json.Unmarshal(line, &w); err != nil {
		return cmd, fmt.Errorf("parse command: %w", err)
	}
	if w.Type != cmdType {
		return cmd, ErrNotCommand
	}
	if w.Seq == nil {
		return cmd, fmt.Errorf("%w: seq", ErrMissingField)
	}
	if w.HostTimeMs == nil {
		return cmd, fmt.Errorf("%w: host_time_ms", ErrMissingField)
	}
	if w.Drive == nil {
		return cmd, fmt.Errorf("%w: drive", ErrMissingField)
	}
	if w.Mech == nil {
		return cmd, fmt.Errorf("%w: mech", ErrMissingField)
	}

	cmd.Seq = *w.Seq
	cmd.HostTimeMs = *w.HostTimeMs

	// Drive rates default to 0 when the object omits them.
	if w.Drive.Linear != nil {
		cmd.Drive.Linear = *w.Drive.Linear
	}
	if w.Drive.Angular != nil {
		cmd.Drive.Angular = *w.Drive.Angular
	}

	cmd.Mech.MotorRHS = decodeMotor(w.Mech.MotorRHS)
	cmd.Mech.MotorLHS = decodeMotor(w.Mech.MotorLHS)
	if w.Mech.ServoLID != nil {
		cmd.Mech.ServoLID = Float(*w.Mech.ServoLID)
	}
	if w.Mech.ServoSweep != nil {
		cmd.Mech.ServoSweep = Float(*w.Mech.ServoSweep)
	}

	cmd.Valid = true
	return cmd, nil
}

// decodeMotor degrades an unknown mode to an absent target instead of
// rejecting the whole frame.
func decodeMotor(m *wireMotor) (t MotorTarget) {
	if m == nil {
		return
	}
	mode := ParseMotorMode(m.Mode)
	if mode == ModeUnknown {
		return
	}
	t.Mode = mode
	if m.Value != nil {
		t.Value = *m.Value
	}
	t.Present = true
	return
}

// EncodeTelemetry renders one newline-terminated telemetry line. It
// always succeeds: absent or non-finite numerics are emitted as explicit
// nulls so the wire shape carries the full field set every time.
func EncodeTelemetry(t *TelemetryFrame) []byte {
	w := wireTelemetry{
		Type:   telType,
		TimeMs: t.TimeMs,
		AckSeq: t.AckSeq,
		Wheel: wireWheel{
			LeftRPM:  numOrNull(t.Wheel.LeftRPM),
			RightRPM: numOrNull(t.Wheel.RightRPM),
		},
		Mech: wireMechState{
			ServoLID:   numOrNull(t.Mech.ServoLID),
			ServoSweep: numOrNull(t.Mech.ServoSweep),
			MotorRHS:   numOrNull(t.Mech.MotorRHS),
			MotorLHS:   numOrNull(t.Mech.MotorLHS),
		},
		Distance: wireDistance{Valid: t.Distance.Valid},
	}
	if t.Distance.Valid {
		w.Distance.DistanceIn = numOrNull(t.Distance.DistanceIn)
	}
	if t.Note != "" {
		w.Note = &t.Note
	}

	b, err := json.Marshal(&w)
	if err != nil {
		// A frame of plain numbers and strings cannot fail to marshal.
		b = []byte(`{"type":"telemetry"}`)
	}
	return append(b, '\n')
}

func numOrNull(o OptFloat) *float64 {
	if !o.Finite() {
		return nil
	}
	v := o.Value
	return &v
}

// EncodeCommand renders one newline-terminated command line. It is the
// host-side counterpart of DecodeCommand, used by the console tool and
// by round-trip tests.
func EncodeCommand(c *CommandFrame) []byte {
	w := wireCommand{
		Type:       cmdType,
		Seq:        &c.Seq,
		HostTimeMs: &c.HostTimeMs,
		Drive: &wireDrive{
			Linear:  &c.Drive.Linear,
			Angular: &c.Drive.Angular,
		},
		Mech: &wireMech{},
	}
	if c.Mech.MotorRHS.Present {
		w.Mech.MotorRHS = encodeMotor(c.Mech.MotorRHS)
	}
	if c.Mech.MotorLHS.Present {
		w.Mech.MotorLHS = encodeMotor(c.Mech.MotorLHS)
	}
	if c.Mech.ServoLID.Present {
		v := c.Mech.ServoLID.Value
		w.Mech.ServoLID = &v
	}
	if c.Mech.ServoSweep.Present {
		v := c.Mech.ServoSweep.Value
		w.Mech.ServoSweep = &v
	}

	b, err := json.Marshal(&w)
	if err != nil {
		b = []byte(`{"type":"cmd"}`)
	}
	return append(b, '\n')
}

func encodeMotor(t MotorTarget) *wireMotor {
	v := t.Value
	return &wireMotor{Mode: t.Mode.String(), Value: &v}
}

// DecodeTelemetry parses one telemetry line, host side.
func DecodeTelemetry(line []byte) (TelemetryFrame, error) {
	var t TelemetryFrame
	if len(line) == 0 {
		return t, ErrEmptyFrame
	}

	var w wireTelemetry
	if err := json.Unmarshal(line, &w); err != nil {
		return t, fmt.Errorf("parse telemetry: %w", err)
	}
	if w.Type != telType {
		return t, ErrNotTelemetry
	}

	t.TimeMs = w.TimeMs
	t.AckSeq = w.AckSeq
	t.Wheel.LeftRPM = optFrom(w.Wheel.LeftRPM)
	t.Wheel.RightRPM = optFrom(w.Wheel.RightRPM)
	t.Mech.ServoLID = optFrom(w.Mech.ServoLID)
	t.Mech.ServoSweep = optFrom(w.Mech.ServoSweep)
	t.Mech.MotorRHS = optFrom(w.Mech.MotorRHS)
	t.Mech.MotorLHS = optFrom(w.Mech.MotorLHS)
	t.Distance.Valid = w.Distance.Valid
	if w.Distance.Valid {
		t.Distance.DistanceIn = optFrom(w.Distance.DistanceIn)
	}
	if w.Note != nil {
		t.Note = *w.Note
	}
	return t, nil
}

func optFrom(p *float64) (o OptFloat) {
	if p != nil {
		o = Float(*p)
	}
	return
}
