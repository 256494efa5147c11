package clock

import "time"

// Millis is a 32-bit monotonic millisecond timestamp. It wraps around
// after about 49 days, so timestamps must never be compared with raw
// subtraction; use Elapsed.
type Millis uint32

// Elapsed computes now-then tolerating wraparound. The result is
// meaningful as long as the real difference fits in 31 bits.
func Elapsed(now, then Millis) int32 {
	return int32(now - then)
}

// Add offsets a timestamp by a duration, truncated to milliseconds.
func (m Millis) Add(d time.Duration) Millis {
	return m + Millis(d.Milliseconds())
}

// Source provides the current monotonic millisecond time.
type Source interface {
	Now() Millis
}

// SourceFunc is the func form of Source.
type SourceFunc func() Millis

// Now implements Source.
func (f SourceFunc) Now() Millis { return f() }

// System is a Source backed by the runtime monotonic clock.
type System struct {
	base time.Time
}

// NewSystem creates a System source anchored at the current instant.
func NewSystem() *System {
	return &System{base: time.Now()}
}

// Now implements Source.
func (s *System) Now() Millis {
	return Millis(time.Since(s.base).Milliseconds())
}
