package config

import (
	"fmt"
	"time"

	"github.com/apwcr/rover.go/pkg/actuator"
)

// Mechanical positions of the mechanism servos, degrees.
const (
	LidOpenDeg   float64 = 80
	LidClosedDeg float64 = 0

	SweepDeployDeg float64 = 65
	SweepStowDeg   float64 = 15
)

// ServoParams is the tunable motion profile of one ramped servo.
type ServoParams struct {
	MinDeg        float64
	MaxDeg        float64
	RampDegPerSec float64
	DeadbandDeg   float64
	Settle        time.Duration
	AutoRelease   bool
	RestDeg       float64
	InitialDeg    float64
}

// ServoConfig converts the params into an actuator configuration.
func (p ServoParams) ServoConfig(name string) actuator.ServoConfig {
	return actuator.ServoConfig{
		Name:          name,
		MinDeg:        p.MinDeg,
		MaxDeg:        p.MaxDeg,
		RampDegPerSec: p.RampDegPerSec,
		DeadbandDeg:   p.DeadbandDeg,
		SettleMs:      uint32(p.Settle.Milliseconds()),
		AutoRelease:   p.AutoRelease,
		RestDeg:       p.RestDeg,
	}
}

// Config holds the robot parameters and tunables.
type Config struct {
	Port string
	Baud int

	RxHz        uint16
	ServoHz     uint16
	TelemetryHz uint16

	// CommandTimeout is the command-freshness watchdog limit. The
	// source parameter tables disagreed (6s bring-up vs 250ms safety
	// draft); 500ms is the explicit default here.
	CommandTimeout time.Duration

	RxBufferBytes int

	Lid   ServoParams
	Sweep ServoParams

	// MQTTBroker enables the telemetry mirror when set, e.g.
	// "mqtt://localhost:1883/rover".
	MQTTBroker string
}

// DefaultConfig returns the stock parameter set.
func DefaultConfig() Config {
	return Config{
		Port:           "/dev/ttyACM0",
		Baud:           230400,
		RxHz:           500,
		ServoHz:        60,
		TelemetryHz:    25,
		CommandTimeout: 500 * time.Millisecond,
		RxBufferBytes:  2048,
		Lid: ServoParams{
			MinDeg:        0,
			MaxDeg:        100,
			RampDegPerSec: 25,
			DeadbandDeg:   2,
			Settle:        time.Second,
			AutoRelease:   true, // gravity holds the lid closed
			RestDeg:       LidClosedDeg,
			InitialDeg:    LidClosedDeg,
		},
		Sweep: ServoParams{
			MinDeg:        0,
			MaxDeg:        100,
			RampDegPerSec: 10,
			DeadbandDeg:   2,
			Settle:        time.Second,
			AutoRelease:   false,
			RestDeg:       SweepStowDeg,
			InitialDeg:    SweepStowDeg,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive")
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive")
	}
	if c.RxBufferBytes < 64 {
		return fmt.Errorf("rx buffer must be at least 64 bytes")
	}
	for _, sp := range []struct {
		name string
		p    ServoParams
	}{{"lid", c.Lid}, {"sweep", c.Sweep}} {
		if sp.p.MaxDeg <= sp.p.MinDeg {
			return fmt.Errorf("%s: max angle must exceed min angle", sp.name)
		}
		if sp.p.DeadbandDeg < 0 {
			return fmt.Errorf("%s: deadband must not be negative", sp.name)
		}
	}
	return nil
}
