package wire

import "errors"

var (
	// ErrEmptyFrame indicates a bare newline with no payload.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrNotCommand indicates the frame is not a command object.
	ErrNotCommand = errors.New("not a command frame")
	// ErrNotTelemetry indicates the frame is not a telemetry object.
	ErrNotTelemetry = errors.New("not a telemetry frame")
	// ErrMissingField indicates a required field is absent or null.
	ErrMissingField = errors.New("missing required field")
)
