package console

import (
	"bytes"
	"fmt"
	"time"

	"github.com/apwcr/rover.go/pkg/wire"
)

func fmtOpt(v wire.OptFloat) string {
	if !v.Present {
		return "-"
	}
	return fmt.Sprintf("%.1f", v.Value)
}

// FormatTelemetry renders a telemetry frame for display.
func FormatTelemetry(t wire.TelemetryFrame, at time.Time, sentSeq uint32) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "t=%dms ack=%d", t.TimeMs, t.AckSeq)
	if lag := sentSeq - t.AckSeq; lag > 0 {
		fmt.Fprintf(&w, " (lag %d)", lag)
	}
	fmt.Fprintf(&w, " age=%s\n", time.Since(at).Round(time.Millisecond))
	fmt.Fprintf(&w, "wheels: L=%s R=%s rpm\n", fmtOpt(t.Wheel.LeftRPM), fmtOpt(t.Wheel.RightRPM))
	fmt.Fprintf(&w, "servos: lid=%s sweep=%s deg\n", fmtOpt(t.Mech.ServoLID), fmtOpt(t.Mech.ServoSweep))
	if t.Distance.Valid {
		fmt.Fprintf(&w, "range: %.1f in\n", t.Distance.DistanceIn.Value)
	} else {
		fmt.Fprintf(&w, "range: invalid\n")
	}
	if t.Note != "" {
		fmt.Fprintf(&w, "note: %s\n", t.Note)
	}
	return w.String()
}
