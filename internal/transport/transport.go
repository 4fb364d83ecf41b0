package transport

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced by all transport implementations.
var (
	// ErrTimeout reports that fewer bytes than requested arrived within the
	// timeout of a single read call.
	ErrTimeout = errors.New("transport: read timed out")

	// ErrClosed reports an operation on a transport that was closed, either
	// locally or by the peer going away.
	ErrClosed = errors.New("transport: closed")
)

// Transport is a half-duplex byte stream carrying the acquisition protocol.
// The session issues at most one outstanding read or write at a time; the
// only concurrent call a Transport must tolerate is Close, which has to
// unblock an in-flight read promptly.
type Transport interface {
	// Write sends the whole of p or fails.
	Write(p []byte) error

	// ReadExactly returns exactly n bytes, assembling partial reads as
	// needed. If fewer than n bytes arrive within timeout it fails with a
	// *ShortReadError wrapping ErrTimeout (or ErrClosed).
	ReadExactly(n int, timeout time.Duration) ([]byte, error)

	// ReadUntilByte discards incoming bytes one at a time until want is
	// seen or the timeout expires with ErrTimeout. This is the handshake
	// primitive: anything that is not the wanted byte is boot chatter and
	// is ignored.
	ReadUntilByte(want byte, timeout time.Duration) error

	// Close releases the underlying stream. It is safe to call more than
	// once and while a read is blocked.
	Close() error
}

// ShortReadError reports a read that ended before the requested byte count
// was reached. Cause is ErrTimeout or ErrClosed (or an underlying I/O error)
// and is exposed through errors.Is via Unwrap.
type ShortReadError struct {
	Want  int
	Got   int
	Cause error
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("transport: short read: %d of %d bytes: %v", e.Got, e.Want, e.Cause)
}

func (e *ShortReadError) Unwrap() error {
	return e.Cause
}
