package transport

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// SerialTransport carries the protocol over a physical serial port.
type SerialTransport struct {
	port   serial.Port
	device string
	closed atomic.Bool
}

// OpenSerial opens the serial port at 8N1 with the given baud rate and
// flushes any stale bytes left over from a previous run or from device boot
// output. The controller resets when the port is opened, so callers should
// allow it a moment to come up before the first handshake read times out.
func OpenSerial(device string, baud int) (*SerialTransport, error) {
	mode := &serial.Mode{BaudRate: baud}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port %s: %w", device, err)
	}

	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: reset input buffer on %s: %w", device, err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: reset output buffer on %s: %w", device, err)
	}

	return &SerialTransport{port: port, device: device}, nil
}

// Device returns the port path the transport was opened on.
func (t *SerialTransport) Device() string {
	return t.device
}

// Write sends the whole of p to the port.
func (t *SerialTransport) Write(p []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}

	n, err := t.port.Write(p)
	if err != nil {
		if t.closed.Load() {
			return ErrClosed
		}
		return fmt.Errorf("transport: serial write: %w", err)
	}
	if n < len(p) {
		return fmt.Errorf("transport: serial short write: %d of %d bytes", n, len(p))
	}
	return nil
}

// ReadExactly reads exactly n bytes within timeout. The port read timeout is
// re-armed with the remaining budget before every underlying read, so a slow
// trickle of bytes still has to finish inside the overall timeout.
func (t *SerialTransport) ReadExactly(n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, n)
	deadline := time.Now().Add(timeout)

	got := 0
	for got < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, &ShortReadError{Want: n, Got: got, Cause: ErrTimeout}
		}

		if err := t.port.SetReadTimeout(remaining); err != nil {
			return nil, fmt.Errorf("transport: set read timeout: %w", err)
		}

		m, err := t.port.Read(buf[got:])
		if err != nil {
			if t.closed.Load() {
				return nil, &ShortReadError{Want: n, Got: got, Cause: ErrClosed}
			}
			return nil, &ShortReadError{Want: n, Got: got, Cause: err}
		}
		if m == 0 {
			// Zero-byte return from go.bug.st/serial means the read
			// timeout elapsed with the line idle.
			return nil, &ShortReadError{Want: n, Got: got, Cause: ErrTimeout}
		}
		got += m
	}

	return buf, nil
}

// ReadUntilByte discards bytes until want arrives or timeout expires.
func (t *SerialTransport) ReadUntilByte(want byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	one := make([]byte, 1)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}

		if err := t.port.SetReadTimeout(remaining); err != nil {
			return fmt.Errorf("transport: set read timeout: %w", err)
		}

		m, err := t.port.Read(one)
		if err != nil {
			if t.closed.Load() {
				return ErrClosed
			}
			return fmt.Errorf("transport: serial read: %w", err)
		}
		if m == 0 {
			return ErrTimeout
		}
		if one[0] == want {
			return nil
		}
		// Anything else here is boot chatter; keep polling.
	}
}

// Close closes the port, unblocking any in-flight read.
func (t *SerialTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.port.Close()
}
