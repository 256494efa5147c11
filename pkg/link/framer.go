package link

// Framer turns a byte stream into newline-terminated text frames using
// one fixed-size buffer. A frame longer than the buffer puts the framer
// into a dropping state: the partial frame is discarded and bytes are
// ignored until the next '\n', so a truncated or byte-shifted frame is
// never delivered after an overflow.
type Framer struct {
	buf      []byte
	n        int
	dropping bool
}

// snapshotLen bounds the head/tail substrings kept in a DropInfo.
const snapshotLen = 24

// DropInfo is a diagnostic snapshot of a frame discarded on overflow.
type DropInfo struct {
	Head string
	Tail string
	Len  int
}

// FeedResult is the outcome of consuming one byte.
type FeedResult struct {
	// Line is the completed frame, without the terminating newline.
	// It aliases the internal buffer and is valid until the next Feed.
	Line []byte
	// Delivered reports a completed frame, possibly empty.
	Delivered bool
	// Overflow reports the frame exceeded the buffer and was dropped.
	Overflow bool
	// Drop carries the snapshot of the dropped frame on overflow.
	Drop DropInfo
}

// NewFramer creates a Framer with a fixed receive buffer of size bytes.
func NewFramer(size int) *Framer {
	if size < snapshotLen {
		size = snapshotLen
	}
	return &Framer{buf: make([]byte, size)}
}

// Feed consumes one byte. It never blocks and never allocates.
func (f *Framer) Feed(b byte) (fr FeedResult) {
	if b == '\r' {
		return
	}

	if f.dropping {
		if b == '\n' {
			// Resync point: the next frame starts clean.
			f.dropping = false
			f.n = 0
		}
		return
	}

	if b == '\n' {
		fr.Line = f.buf[:f.n]
		fr.Delivered = true
		f.n = 0
		return
	}

	if f.n < len(f.buf) {
		f.buf[f.n] = b
		f.n++
		return
	}

	// Buffer full: discard this frame and everything until newline.
	fr.Overflow = true
	fr.Drop = DropInfo{
		Head: string(f.buf[:snapshotLen]),
		Tail: string(f.buf[f.n-snapshotLen : f.n]),
		Len:  f.n,
	}
	f.dropping = true
	f.n = 0
	return
}

// Pending returns the number of buffered bytes of the current partial
// frame.
func (f *Framer) Pending() int { return f.n }

// Dropping reports whether the framer is discarding until the next
// newline.
func (f *Framer) Dropping() bool { return f.dropping }

// Reset empties the buffer and leaves the dropping state.
func (f *Framer) Reset() {
	f.n = 0
	f.dropping = false
}
