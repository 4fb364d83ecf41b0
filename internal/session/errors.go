package session

import (
	"errors"
	"fmt"

	"github.com/eduardo-ufmg/2DoFSBP/internal/protocol"
)

// Sentinel errors for the failure modes that have no structured payload.
var (
	// ErrConnectTimeout reports that the controller never confirmed the
	// connection within the handshake deadline. The caller may retry the
	// whole session; the session itself never does.
	ErrConnectTimeout = errors.New("session: no handshake response before deadline")

	// ErrTestTimeout reports that the controller did not signal test
	// completion within the test-run timeout.
	ErrTestTimeout = errors.New("session: test did not complete in time")

	// ErrTestFailed reports that the controller sent something other than
	// the success token after the test was started.
	ErrTestFailed = errors.New("session: device reported test failure")
)

// MismatchError reports a wrong control byte at a step that required an
// exact value. It is fatal: a wrong ack means a desynchronized or
// incompatible device, and re-reading the same stream cannot recover that.
type MismatchError struct {
	Phase    string
	Expected protocol.Token
	Actual   byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("session: %s: expected control byte 0x%02x (%s), got 0x%02x",
		e.Phase, e.Expected.Byte(), e.Expected, e.Actual)
}

// TruncatedError reports that a framed section of the bulk transfer ended
// before its fixed length was reached. The whole buffer is discarded.
type TruncatedError struct {
	Section string
	Want    int
	Got     int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("session: truncated transfer: %s: %d of %d bytes",
		e.Section, e.Got, e.Want)
}
