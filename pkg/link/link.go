package link

import (
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/apwcr/rover.go/pkg/clock"
	"github.com/apwcr/rover.go/pkg/wire"
)

// ByteStream is the byte source/sink behind the link. Reads must not
// block: ReadAvailable returns only what is available right now, with
// n == 0 meaning nothing to read.
type ByteStream interface {
	ReadAvailable(p []byte) (n int, err error)
	io.Writer
}

// Stats counts link activity since initialization. Counters only grow.
type Stats struct {
	Lines      uint32 // complete frames seen
	Decoded    uint32 // frames decoded into valid commands
	Rejected   uint32 // frames that failed decoding
	Overflows  uint32 // frames dropped for exceeding the buffer
	MaxLineLen int    // longest frame observed
}

// noteLingerMs is how long a diagnostic note stays pending for
// telemetry pickup.
const noteLingerMs = 1500

// Link owns the receive framing, the latest valid command and its
// freshness timestamp, and the transmit path. It tolerates arbitrarily
// many malformed frames: nothing on the receive path is fatal.
type Link struct {
	stream  ByteStream
	framer  *Framer
	readBuf []byte

	cmd       wire.CommandFrame
	hasCmd    bool
	lastCmdAt clock.Millis
	ackSeq    uint32

	stats     Stats
	note      string
	noteUntil clock.Millis
}

// New creates a Link over stream with a receive buffer of bufSize
// bytes.
func New(stream ByteStream, bufSize int) *Link {
	return &Link{
		stream:  stream,
		framer:  NewFramer(bufSize),
		readBuf: make([]byte, 256),
	}
}

// ReceiveTick drains all currently available bytes and decodes every
// completed frame. Each successful decode replaces the stored command,
// refreshes the freshness timestamp and records the sequence number for
// acknowledgment.
func (l *Link) ReceiveTick(now clock.Millis) {
	for {
		n, err := l.stream.ReadAvailable(l.readBuf)
		if err != nil {
			glog.V(1).Infof("link read: %v", err)
			return
		}
		if n == 0 {
			return
		}
		for _, b := range l.readBuf[:n] {
			fr := l.framer.Feed(b)
			switch {
			case fr.Delivered:
				l.handleLine(now, fr.Line)
			case fr.Overflow:
				l.stats.Overflows++
				l.setNote(now, "RX OVF lines=%d ok=%d fail=%d ovf=%d len=%d head=%s tail=%s",
					l.stats.Lines, l.stats.Decoded, l.stats.Rejected, l.stats.Overflows,
					fr.Drop.Len, fr.Drop.Head, fr.Drop.Tail)
				glog.Warningf("rx overflow: len=%d head=%q", fr.Drop.Len, fr.Drop.Head)
			}
		}
	}
}

func (l *Link) handleLine(now clock.Millis, line []byte) {
	l.stats.Lines++
	if len(line) > l.stats.MaxLineLen {
		l.stats.MaxLineLen = len(line)
	}

	cmd, err := wire.DecodeCommand(line)
	if err != nil {
		l.stats.Rejected++
		if len(line) > 0 {
			l.setNote(now, "RX FAIL lines=%d ok=%d fail=%d ovf=%d len=%d",
				l.stats.Lines, l.stats.Decoded, l.stats.Rejected, l.stats.Overflows, len(line))
			glog.V(2).Infof("rx reject: %v", err)
		}
		return
	}

	l.cmd = cmd
	l.hasCmd = true
	l.lastCmdAt = now
	l.ackSeq = cmd.Seq
	l.stats.Decoded++
	glog.V(2).Infof("rx ok seq=%d len=%d", cmd.Seq, len(line))
}

// SendTick encodes and writes one telemetry frame. The write goes out
// whether or not the peer is reading; it never waits.
func (l *Link) SendTick(t *wire.TelemetryFrame) error {
	if _, err := l.stream.Write(wire.EncodeTelemetry(t)); err != nil {
		return fmt.Errorf("link write: %w", err)
	}
	return nil
}

// CommandStale reports whether no fresh command is held: either none
// was ever received, or the last one is at least timeout old. Safe
// across timestamp wraparound.
func (l *Link) CommandStale(now clock.Millis, timeout clock.Millis) bool {
	if !l.hasCmd {
		return true
	}
	return clock.Elapsed(now, l.lastCmdAt) >= int32(timeout)
}

// Command returns the latest valid command, if any.
func (l *Link) Command() (wire.CommandFrame, bool) {
	return l.cmd, l.hasCmd
}

// AckSeq returns the sequence number of the last decoded command.
func (l *Link) AckSeq() uint32 { return l.ackSeq }

// Stats returns a copy of the link counters.
func (l *Link) Stats() Stats { return l.stats }

// Note returns the pending diagnostic note, or "" when none is pending
// or the previous one has expired.
func (l *Link) Note(now clock.Millis) string {
	if l.note == "" || clock.Elapsed(l.noteUntil, now) < 0 {
		return ""
	}
	return l.note
}

func (l *Link) setNote(now clock.Millis, format string, args ...interface{}) {
	l.note = fmt.Sprintf(format, args...)
	l.noteUntil = now + noteLingerMs
}
