package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"
)

// ConnTransport carries the protocol over any net.Conn. It backs the TCP
// link to the simulated controller and the in-memory pipes in tests.
type ConnTransport struct {
	conn   net.Conn
	closed atomic.Bool
}

// NewConn wraps an already established connection.
func NewConn(conn net.Conn) *ConnTransport {
	return &ConnTransport{conn: conn}
}

// DialTCP connects to a controller (typically the simulator) listening on
// addr.
func DialTCP(addr string) (*ConnTransport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return NewConn(conn), nil
}

// Write sends the whole of p.
func (t *ConnTransport) Write(p []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}

	if _, err := t.conn.Write(p); err != nil {
		return t.translate(err)
	}
	return nil
}

// ReadExactly reads exactly n bytes within timeout.
func (t *ConnTransport) ReadExactly(n int, timeout time.Duration) ([]byte, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}

	buf := make([]byte, n)
	got, err := io.ReadFull(t.conn, buf)
	if err != nil {
		return nil, &ShortReadError{Want: n, Got: got, Cause: t.cause(err)}
	}
	return buf, nil
}

// ReadUntilByte discards bytes until want arrives or timeout expires.
func (t *ConnTransport) ReadUntilByte(want byte, timeout time.Duration) error {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("transport: set read deadline: %w", err)
	}

	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(t.conn, one); err != nil {
			return t.translate(err)
		}
		if one[0] == want {
			return nil
		}
	}
}

// Close closes the connection, unblocking any in-flight read.
func (t *ConnTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.conn.Close()
}

// cause maps an underlying I/O error onto the transport sentinels.
func (t *ConnTransport) cause(err error) error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout
	case t.closed.Load(),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.ErrClosedPipe):
		return ErrClosed
	default:
		return err
	}
}

func (t *ConnTransport) translate(err error) error {
	c := t.cause(err)
	if c == ErrTimeout || c == ErrClosed {
		return c
	}
	return fmt.Errorf("transport: conn: %w", err)
}
