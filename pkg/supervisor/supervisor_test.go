package supervisor

import (
	"bytes"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apwcr/rover.go/pkg/actuator"
	"github.com/apwcr/rover.go/pkg/clock"
	"github.com/apwcr/rover.go/pkg/config"
	"github.com/apwcr/rover.go/pkg/link"
	"github.com/apwcr/rover.go/pkg/wire"
)

type fakeStream struct {
	chunks [][]byte
	tx     bytes.Buffer
}

func (s *fakeStream) push(line string) {
	s.chunks = append(s.chunks, []byte(line))
}

func (s *fakeStream) ReadAvailable(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		return 0, nil
	}
	n := copy(p, s.chunks[0])
	if n == len(s.chunks[0]) {
		s.chunks = s.chunks[1:]
	} else {
		s.chunks[0] = s.chunks[0][n:]
	}
	return n, nil
}

func (s *fakeStream) Write(p []byte) (int, error) {
	return s.tx.Write(p)
}

type fakeDrive struct {
	linear, angular float64
	applies         int
	stops           int
}

func (d *fakeDrive) Apply(linear, angular float64) {
	d.linear, d.angular = linear, angular
	d.applies++
}

func (d *fakeDrive) Stop() { d.stops++ }

type fakeMotor struct {
	duty   float64
	posDeg float64
	coasts int
}

func (m *fakeMotor) SetDuty(d float64)        { m.duty = d }
func (m *fakeMotor) SetPositionDeg(d float64) { m.posDeg = d }
func (m *fakeMotor) Coast()                   { m.coasts++ }

type fakeServoOut struct{ writes []float64 }

func (o *fakeServoOut) Attach()           {}
func (o *fakeServoOut) Detach()           {}
func (o *fakeServoOut) Write(deg float64) { o.writes = append(o.writes, deg) }

type rig struct {
	sup    *Supervisor
	stream *fakeStream
	drive  *fakeDrive
	rhs    *fakeMotor
	lhs    *fakeMotor
	lid    *actuator.Servo
	sweep  *actuator.Servo
}

func newRig(t *testing.T) *rig {
	t.Helper()
	cfg := config.DefaultConfig()
	stream := &fakeStream{}
	l := link.New(stream, cfg.RxBufferBytes)
	lid := actuator.NewServo(cfg.Lid.ServoConfig("LID"), &fakeServoOut{}, cfg.Lid.InitialDeg, 0)
	sweep := actuator.NewServo(cfg.Sweep.ServoConfig("SWEEP"), &fakeServoOut{}, cfg.Sweep.InitialDeg, 0)
	r := &rig{
		stream: stream,
		drive:  &fakeDrive{},
		rhs:    &fakeMotor{},
		lhs:    &fakeMotor{},
		lid:    lid,
		sweep:  sweep,
	}
	r.sup = New(cfg, l, r.drive, r.rhs, r.lhs, lid, sweep, nil)
	return r
}

func cmdLine(seq uint32) string {
	return `{"type":"cmd","seq":` + strconv.FormatUint(uint64(seq), 10) +
		`,"host_time_ms":1,"drive":{"linear":0.5,"angular":-0.25},` +
		`"mech":{"motor_RHS":{"mode":"DUTY","value":0.75},"motor_LHS":null,` +
		`"servo_LID_deg":80,"servo_SWEEP_deg":null}}` + "\n"
}

func TestSupervisorAppliesCommand(t *testing.T) {
	r := newRig(t)
	r.stream.push(cmdLine(5))
	require.NoError(t, r.sup.Tick(0))

	require.Equal(t, 1, r.drive.applies)
	require.Equal(t, 0.5, r.drive.linear)
	require.Equal(t, -0.25, r.drive.angular)
	require.Equal(t, 0.75, r.rhs.duty)
	require.Equal(t, 0, r.lhs.coasts)
	require.Equal(t, config.LidOpenDeg, r.lid.Target())
	require.False(t, r.sup.SafeState())
}

func TestSupervisorAppliesOncePerSeq(t *testing.T) {
	r := newRig(t)
	r.stream.push(cmdLine(5))
	require.NoError(t, r.sup.Tick(0))
	require.NoError(t, r.sup.Tick(2))
	require.NoError(t, r.sup.Tick(4))
	require.Equal(t, 1, r.drive.applies)

	r.stream.push(cmdLine(6))
	require.NoError(t, r.sup.Tick(6))
	require.Equal(t, 2, r.drive.applies)
}

func TestSupervisorWatchdogExactlyOnce(t *testing.T) {
	r := newRig(t)
	r.stream.push(cmdLine(5))
	require.NoError(t, r.sup.Tick(0))
	require.False(t, r.sup.SafeState())

	require.NoError(t, r.sup.Tick(499))
	require.False(t, r.sup.SafeState())
	require.Zero(t, r.drive.stops)

	// First tick at or past the limit trips the watchdog, later
	// ticks must not re-trip it.
	for _, now := range []clock.Millis{500, 502, 504} {
		require.NoError(t, r.sup.Tick(now))
		require.True(t, r.sup.SafeState())
	}
	require.Equal(t, 1, r.drive.stops)
	require.Equal(t, 1, r.rhs.coasts)
	require.Equal(t, 1, r.lhs.coasts)
	require.Equal(t, config.LidClosedDeg, r.lid.Target())
	require.Equal(t, config.SweepStowDeg, r.sweep.Target())
}

func TestSupervisorWatchdogOnBoot(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.sup.Tick(0))
	require.True(t, r.sup.SafeState())
	require.Equal(t, 1, r.drive.stops)
	require.Zero(t, r.drive.applies)
}

func TestSupervisorRecoversOnFreshCommand(t *testing.T) {
	r := newRig(t)
	r.stream.push(cmdLine(5))
	require.NoError(t, r.sup.Tick(0))
	require.NoError(t, r.sup.Tick(600))
	require.True(t, r.sup.SafeState())

	r.stream.push(cmdLine(6))
	require.NoError(t, r.sup.Tick(602))
	require.False(t, r.sup.SafeState())
	require.Equal(t, 2, r.drive.applies)
}

func TestSupervisorStaleCommandNotReapplied(t *testing.T) {
	r := newRig(t)
	r.stream.push(cmdLine(5))
	require.NoError(t, r.sup.Tick(0))
	require.NoError(t, r.sup.Tick(600))
	require.True(t, r.sup.SafeState())

	applies := r.drive.applies
	require.NoError(t, r.sup.Tick(604))
	require.Equal(t, applies, r.drive.applies)
}

func TestSupervisorTelemetry(t *testing.T) {
	r := newRig(t)
	r.stream.push(cmdLine(5))
	require.NoError(t, r.sup.Tick(100))

	line, err := bytes.NewBuffer(r.stream.tx.Bytes()).ReadBytes('\n')
	require.NoError(t, err)
	tel, err := wire.DecodeTelemetry(line)
	require.NoError(t, err)
	require.Equal(t, uint32(100), tel.TimeMs)
	require.Equal(t, uint32(5), tel.AckSeq)
	// Lid is attached and moving toward 80, so its angle is reported.
	require.True(t, tel.Mech.ServoLID.Present)
}

func TestSupervisorApplyConfig(t *testing.T) {
	r := newRig(t)
	r.stream.push(cmdLine(5))
	require.NoError(t, r.sup.Tick(0))

	cfg := config.DefaultConfig()
	cfg.CommandTimeout = 100 * time.Millisecond
	r.sup.ApplyConfig(cfg)

	require.NoError(t, r.sup.Tick(99))
	require.False(t, r.sup.SafeState())
	require.NoError(t, r.sup.Tick(100))
	require.True(t, r.sup.SafeState())
}
