package actuator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePWMOut struct {
	forward bool
	pwm     uint8
}

func (o *fakePWMOut) SetDirection(forward bool) { o.forward = forward }
func (o *fakePWMOut) SetPWM(value uint8)        { o.pwm = value }

func TestMotorDuty(t *testing.T) {
	testCases := []struct {
		name    string
		invert  bool
		duty    float64
		forward bool
		pwm     uint8
	}{
		{"forward full", false, 1.0, true, 255},
		{"reverse full", false, -1.0, false, 255},
		{"forward half", false, 0.5, true, 128},
		{"clamped above", false, 3.0, true, 255},
		{"clamped below", false, -3.0, false, 255},
		{"inverted forward", true, 0.5, false, 128},
		{"zero coasts", false, 0, false, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &fakePWMOut{}
			m := NewMotor(out, tc.invert, 0, 255)
			m.SetDuty(tc.duty)
			require.Equal(t, tc.forward, out.forward)
			require.Equal(t, tc.pwm, out.pwm)
		})
	}
}

func TestMotorOutputWindow(t *testing.T) {
	out := &fakePWMOut{}
	m := NewMotor(out, false, 40, 200)

	m.SetDuty(0.5)
	require.Equal(t, uint8(120), out.pwm)

	m.SetDuty(1.0)
	require.Equal(t, uint8(200), out.pwm)

	// Zero bypasses the window floor entirely.
	m.SetDuty(0)
	require.Equal(t, uint8(0), out.pwm)
}

func TestMotorSwappedBounds(t *testing.T) {
	out := &fakePWMOut{}
	m := NewMotor(out, false, 200, 40)
	m.SetDuty(1.0)
	require.Equal(t, uint8(200), out.pwm)
}

func TestMotorBrake(t *testing.T) {
	out := &fakePWMOut{}
	m := NewMotor(out, false, 0, 255)
	m.SetDuty(0.7)
	m.Brake()
	require.True(t, out.forward)
	require.Equal(t, uint8(255), out.pwm)
	require.Zero(t, m.Duty())
}
