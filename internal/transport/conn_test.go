package transport

import (
	"errors"
	"net"
	"testing"
	"time"
)

// pipe returns a ConnTransport and the raw peer end of an in-memory duplex
// connection.
func pipe(t *testing.T) (*ConnTransport, net.Conn) {
	t.Helper()

	host, peer := net.Pipe()
	tr := NewConn(host)
	t.Cleanup(func() {
		tr.Close()
		peer.Close()
	})
	return tr, peer
}

func TestReadExactlyAssemblesPartialReads(t *testing.T) {
	tr, peer := pipe(t)

	go func() {
		for _, chunk := range [][]byte{[]byte("abc"), []byte("de"), []byte("fghij")} {
			peer.Write(chunk)
			time.Sleep(5 * time.Millisecond)
		}
	}()

	got, err := tr.ReadExactly(10, 2*time.Second)
	if err != nil {
		t.Fatalf("ReadExactly failed: %v", err)
	}
	if string(got) != "abcdefghij" {
		t.Errorf("ReadExactly = %q, want %q", got, "abcdefghij")
	}
}

func TestReadExactlyTimeoutReportsBytesRead(t *testing.T) {
	tr, peer := pipe(t)

	go peer.Write([]byte{1, 2, 3})

	_, err := tr.ReadExactly(8, 150*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	var short *ShortReadError
	if !errors.As(err, &short) {
		t.Fatalf("expected *ShortReadError, got %T", err)
	}
	if short.Got != 3 || short.Want != 8 {
		t.Errorf("short read = %d of %d, want 3 of 8", short.Got, short.Want)
	}
}

func TestReadUntilByteSkipsChatter(t *testing.T) {
	tr, peer := pipe(t)

	go peer.Write(append([]byte("boot noise\r\n"), 0x02, 0x55))

	if err := tr.ReadUntilByte(0x02, time.Second); err != nil {
		t.Fatalf("ReadUntilByte failed: %v", err)
	}

	// The byte after the match must still be readable.
	got, err := tr.ReadExactly(1, time.Second)
	if err != nil {
		t.Fatalf("ReadExactly after match failed: %v", err)
	}
	if got[0] != 0x55 {
		t.Errorf("next byte = 0x%02x, want 0x55", got[0])
	}
}

func TestReadUntilByteTimeout(t *testing.T) {
	tr, peer := pipe(t)

	go peer.Write([]byte{0x11, 0x22, 0x33})

	err := tr.ReadUntilByte(0x02, 100*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestCloseUnblocksPendingRead(t *testing.T) {
	tr, _ := pipe(t)

	type result struct {
		err     error
		elapsed time.Duration
	}
	done := make(chan result, 1)

	go func() {
		began := time.Now()
		_, err := tr.ReadExactly(4, 30*time.Second)
		done <- result{err: err, elapsed: time.Since(began)}
	}()

	time.Sleep(50 * time.Millisecond)
	tr.Close()

	select {
	case r := <-done:
		if !errors.Is(r.err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", r.err)
		}
		if r.elapsed > 2*time.Second {
			t.Errorf("read took %s to unblock after close", r.elapsed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("read did not unblock after close")
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	tr, _ := pipe(t)

	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if err := tr.Write([]byte{0x01}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestPeerCloseSurfacesAsClosed(t *testing.T) {
	tr, peer := pipe(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		peer.Close()
	}()

	_, err := tr.ReadExactly(4, 5*time.Second)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
