// Command acqsim is a simulated motor controller. It listens on TCP and
// speaks the device side of the acquisition protocol, so the host can be
// exercised end to end without hardware on the bench.
package main

import (
	"flag"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/eduardo-ufmg/2DoFSBP/internal/device"
)

func main() {
	listenAddr := flag.String("listen", "127.0.0.1:7070", "TCP listen address")
	samples := flag.Int("samples", 4096, "Samples per array")
	periodMs := flag.Int("period-ms", 10, "Simulated sample period in milliseconds")
	testDuration := flag.Duration("test-duration", 2*time.Second, "Simulated test run time")
	seed := flag.Int64("seed", 0, "Random seed for the generated data (0 = time-based)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logger.Error("failed to listen", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("simulated controller listening",
		slog.String("address", ln.Addr().String()),
		slog.Int("samples", *samples),
		slog.Duration("test_duration", *testDuration),
	)

	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Error("accept failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		connLogger := logger.With(slog.String("remote", conn.RemoteAddr().String()))
		connLogger.Info("host connected, starting session")

		// One session per connection, like one power cycle per run on
		// the real controller.
		responder := &device.Responder{
			SampleCount:  *samples,
			SamplePeriod: time.Duration(*periodMs) * time.Millisecond,
			TestDuration: *testDuration,
			Seed:         *seed,
			Logger:       connLogger,
		}
		if err := responder.Serve(conn); err != nil {
			connLogger.Error("session failed", slog.String("error", err.Error()))
		}
		conn.Close()
	}
}
