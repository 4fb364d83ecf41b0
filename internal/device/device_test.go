package device

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/eduardo-ufmg/2DoFSBP/internal/protocol"
)

const testSamples = 16

func startResponder(t *testing.T) net.Conn {
	t.Helper()

	host, dev := net.Pipe()
	t.Cleanup(func() {
		host.Close()
		dev.Close()
	})

	r := &Responder{
		SampleCount:  testSamples,
		SamplePeriod: 10 * time.Millisecond,
		Seed:         7,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	go r.Serve(dev)

	return host
}

func expectToken(t *testing.T, host net.Conn, want protocol.Token) {
	t.Helper()

	one := make([]byte, 1)
	host.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(host, one); err != nil {
		t.Fatalf("waiting for %s: %v", want, err)
	}
	if !want.Is(one[0]) {
		t.Fatalf("got 0x%02x, want %s", one[0], want)
	}
}

func TestResponderFullExchange(t *testing.T) {
	host := startResponder(t)

	host.Write([]byte{protocol.HostCheckConnection.Byte()})
	expectToken(t, host, protocol.DeviceCheckConnection)

	host.Write([]byte{protocol.HostStartTest.Byte()})
	expectToken(t, host, protocol.DeviceAckStart)
	expectToken(t, host, protocol.DeviceTestSuccess)

	host.Write([]byte{protocol.HostRequestData.Byte()})
	expectToken(t, host, protocol.DeviceAckDataRequest)

	host.SetReadDeadline(time.Now().Add(2 * time.Second))

	head := make([]byte, protocol.StreamStart.Len())
	if _, err := io.ReadFull(host, head); err != nil {
		t.Fatalf("reading stream start: %v", err)
	}
	if !protocol.MatchMarker(head, protocol.StreamStart) {
		t.Fatalf("stream start = %q", head)
	}

	payload := make([]byte, 2*testSamples*protocol.FloatSize)
	if _, err := io.ReadFull(host, payload); err != nil {
		t.Fatalf("reading payload: %v", err)
	}

	foot := make([]byte, protocol.StreamEnd.Len())
	if _, err := io.ReadFull(host, foot); err != nil {
		t.Fatalf("reading stream end: %v", err)
	}
	if !protocol.MatchMarker(foot, protocol.StreamEnd) {
		t.Fatalf("stream end = %q", foot)
	}
}

func TestResponderIgnoresUnknownTokens(t *testing.T) {
	host := startResponder(t)

	// Garbage before the connection check must be discarded, matching the
	// firmware's polling loops.
	host.Write([]byte{0xff, 0x42})
	host.Write([]byte{protocol.HostCheckConnection.Byte()})
	expectToken(t, host, protocol.DeviceCheckConnection)
}

func TestGenerate(t *testing.T) {
	r := &Responder{SampleCount: 64, SamplePeriod: 10 * time.Millisecond, Seed: 3}

	a := r.Generate()
	b := r.Generate()

	if len(a.Input) != 64 || len(a.Angle) != 64 {
		t.Fatalf("array lengths = %d/%d, want 64/64", len(a.Input), len(a.Angle))
	}

	for i := range a.Input {
		if a.Input[i] != b.Input[i] || a.Angle[i] != b.Angle[i] {
			t.Fatalf("generation is not deterministic at sample %d", i)
		}
		if a.Input[i] < -0.25 || a.Input[i] > 0.25 {
			t.Errorf("input[%d] = %v outside [-0.25, 0.25]", i, a.Input[i])
		}
	}
}
