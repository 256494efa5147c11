package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type servoFile struct {
	MinDeg        *float64 `toml:"min_deg"`
	MaxDeg        *float64 `toml:"max_deg"`
	RampDegPerSec *float64 `toml:"ramp_deg_per_sec"`
	DeadbandDeg   *float64 `toml:"deadband_deg"`
	Settle        *string  `toml:"settle"`
	AutoRelease   *bool    `toml:"auto_release"`
	RestDeg       *float64 `toml:"rest_deg"`
	InitialDeg    *float64 `toml:"initial_deg"`
}

// configFile mirrors Config for TOML decoding. Durations travel as
// strings ("500ms") and absent fields keep the defaults.
type configFile struct {
	Port           *string `toml:"port"`
	Baud           *int    `toml:"baud"`
	RxHz           *uint16 `toml:"rx_hz"`
	ServoHz        *uint16 `toml:"servo_hz"`
	TelemetryHz    *uint16 `toml:"telemetry_hz"`
	CommandTimeout *string `toml:"command_timeout"`
	RxBufferBytes  *int    `toml:"rx_buffer_bytes"`
	MQTTBroker     *string `toml:"mqtt_broker"`

	Lid   servoFile `toml:"lid"`
	Sweep servoFile `toml:"sweep"`
}

func (f *servoFile) apply(p *ServoParams) error {
	if f.MinDeg != nil {
		p.MinDeg = *f.MinDeg
	}
	if f.MaxDeg != nil {
		p.MaxDeg = *f.MaxDeg
	}
	if f.RampDegPerSec != nil {
		p.RampDegPerSec = *f.RampDegPerSec
	}
	if f.DeadbandDeg != nil {
		p.DeadbandDeg = *f.DeadbandDeg
	}
	if f.Settle != nil {
		d, err := time.ParseDuration(*f.Settle)
		if err != nil {
			return fmt.Errorf("settle: %w", err)
		}
		p.Settle = d
	}
	if f.AutoRelease != nil {
		p.AutoRelease = *f.AutoRelease
	}
	if f.RestDeg != nil {
		p.RestDeg = *f.RestDeg
	}
	if f.InitialDeg != nil {
		p.InitialDeg = *f.InitialDeg
	}
	return nil
}

func (f *configFile) apply(c *Config) error {
	if f.Port != nil {
		c.Port = *f.Port
	}
	if f.Baud != nil {
		c.Baud = *f.Baud
	}
	if f.RxHz != nil {
		c.RxHz = *f.RxHz
	}
	if f.ServoHz != nil {
		c.ServoHz = *f.ServoHz
	}
	if f.TelemetryHz != nil {
		c.TelemetryHz = *f.TelemetryHz
	}
	if f.CommandTimeout != nil {
		d, err := time.ParseDuration(*f.CommandTimeout)
		if err != nil {
			return fmt.Errorf("command_timeout: %w", err)
		}
		c.CommandTimeout = d
	}
	if f.RxBufferBytes != nil {
		c.RxBufferBytes = *f.RxBufferBytes
	}
	if f.MQTTBroker != nil {
		c.MQTTBroker = *f.MQTTBroker
	}
	if err := f.Lid.apply(&c.Lid); err != nil {
		return fmt.Errorf("lid: %w", err)
	}
	if err := f.Sweep.apply(&c.Sweep); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return nil
}

// Load reads a TOML file on top of the defaults and validates the
// result.
func Load(path string) (Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes TOML bytes on top of c and validates.
func Parse(data []byte, c *Config) error {
	var f configFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return err
	}
	if err := f.apply(c); err != nil {
		return err
	}
	return c.Validate()
}
