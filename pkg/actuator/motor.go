package actuator

import "math"

// PWMOutput is the hardware side of one DC motor channel, a direction
// pin plus a magnitude output.
type PWMOutput interface {
	SetDirection(forward bool)
	SetPWM(value uint8)
}

// Motor translates a normalized duty command into direction plus
// magnitude on a PWM driver. Pure translation: there is no feedback
// control here.
type Motor struct {
	out    PWMOutput
	invert bool
	pwmMin uint8
	pwmMax uint8

	duty float64
	pwm  uint8
}

// NewMotor creates a Motor with the given output window. Swapped bounds
// are corrected.
func NewMotor(out PWMOutput, invert bool, pwmMin, pwmMax uint8) *Motor {
	if pwmMax < pwmMin {
		pwmMin, pwmMax = pwmMax, pwmMin
	}
	m := &Motor{out: out, invert: invert, pwmMin: pwmMin, pwmMax: pwmMax}
	m.Coast()
	return m
}

// SetDuty drives the motor at duty in [-1, 1]. Zero coasts.
func (m *Motor) SetDuty(duty float64) {
	duty = clampDuty(duty)
	if m.invert {
		duty = -duty
	}
	m.duty = duty

	if duty == 0 {
		m.Coast()
		return
	}

	m.out.SetDirection(duty > 0)
	m.pwm = m.dutyToPWM(math.Abs(duty))
	m.out.SetPWM(m.pwm)
}

// Coast releases the motor: no drive, no braking.
func (m *Motor) Coast() {
	m.out.SetDirection(false)
	m.out.SetPWM(0)
	m.duty, m.pwm = 0, 0
}

// Brake shorts the motor for active braking.
func (m *Motor) Brake() {
	m.out.SetDirection(true)
	m.out.SetPWM(255)
	m.duty, m.pwm = 0, 255
}

// Duty returns the last commanded duty after inversion.
func (m *Motor) Duty() float64 { return m.duty }

// PWM returns the last magnitude written to the output.
func (m *Motor) PWM() uint8 { return m.pwm }

// dutyToPWM maps |duty| in [0, 1] onto the [pwmMin, pwmMax] window.
func (m *Motor) dutyToPWM(absDuty float64) uint8 {
	if absDuty <= 0 {
		return 0
	}
	span := float64(m.pwmMax - m.pwmMin)
	pwm := float64(m.pwmMin) + absDuty*span + 0.5
	if pwm > 255 {
		pwm = 255
	}
	return uint8(pwm)
}

func clampDuty(d float64) float64 {
	if d > 1 {
		return 1
	}
	if d < -1 {
		return -1
	}
	return d
}
