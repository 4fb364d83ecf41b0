package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/eduardo-ufmg/2DoFSBP/internal/config"
	"github.com/eduardo-ufmg/2DoFSBP/internal/metrics"
	"github.com/eduardo-ufmg/2DoFSBP/internal/sample"
	"github.com/eduardo-ufmg/2DoFSBP/internal/server"
	"github.com/eduardo-ufmg/2DoFSBP/internal/session"
	"github.com/eduardo-ufmg/2DoFSBP/internal/transport"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	outputPath := flag.String("output", "", "CSV output path (overrides config)")
	noPrompt := flag.Bool("yes", false, "Start the test immediately instead of waiting for Enter")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *outputPath != "" {
		cfg.Output.CSVPath = *outputPath
	}

	logger := initLogger(cfg.Logging)

	logger.Info("acquisition host starting",
		slog.String("config_path", *configPath),
		slog.String("transport", cfg.Transport.Kind),
		slog.Int("sample_count", cfg.Session.SampleCount),
		slog.String("csv_path", cfg.Output.CSVPath),
	)

	appMetrics := metrics.New()
	status := server.NewStatusStore()

	var monitor *server.Monitor
	if cfg.Monitor.Enabled {
		monitor = server.NewMonitor(cfg, logger, status, appMetrics)
		if err := monitor.Start(); err != nil {
			logger.Error("failed to start monitoring server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	t, err := openTransport(cfg.Transport, logger)
	if err != nil {
		logger.Error("failed to open transport", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer t.Close()

	sessionCfg := session.Config{
		SampleCount:  cfg.Session.SampleCount,
		SamplePeriod: cfg.Session.GetSamplePeriod(),
		Timeouts: session.Timeouts{
			Handshake: cfg.Session.Timeouts.GetHandshakeTimeout(),
			Start:     cfg.Session.Timeouts.GetStartTimeout(),
			TestRun:   cfg.Session.Timeouts.GetTestRunTimeout(),
			Transfer:  cfg.Session.Timeouts.GetTransferTimeout(),
		},
		Logger:  logger,
		Metrics: appMetrics,
	}
	if !*noPrompt {
		sessionCfg.StartTrigger = promptEnter
	}

	status.Set(server.Status{State: "running", StartedAt: time.Now()})

	buf, err := session.Run(t, sessionCfg)
	if err != nil {
		status.Set(server.Status{
			State:       "failed",
			CompletedAt: time.Now(),
			Error:       err.Error(),
		})
		logger.Error("acquisition failed", slog.String("error", err.Error()))
		stopMonitor(monitor)
		t.Close()
		os.Exit(1)
	}

	status.Set(server.Status{
		State:       "complete",
		CompletedAt: time.Now(),
		SampleCount: buf.Len(),
	})

	if err := sample.WriteCSVFile(cfg.Output.CSVPath, buf); err != nil {
		logger.Error("failed to write csv", slog.String("error", err.Error()))
		stopMonitor(monitor)
		t.Close()
		os.Exit(1)
	}

	logger.Info("experiment finished",
		slog.Int("samples", buf.Len()),
		slog.Duration("covered", buf.Duration()),
		slog.String("csv_path", cfg.Output.CSVPath),
	)

	stopMonitor(monitor)
}

// openTransport opens the configured byte stream to the controller.
func openTransport(cfg config.TransportConfig, logger *slog.Logger) (transport.Transport, error) {
	switch cfg.Kind {
	case config.TransportSerial:
		logger.Info("opening serial port",
			slog.String("device", cfg.Device),
			slog.Int("baud", cfg.Baud),
		)
		t, err := transport.OpenSerial(cfg.Device, cfg.Baud)
		if err != nil {
			return nil, err
		}
		// The controller resets when the port opens; give it a moment
		// before the handshake so the check byte is not lost in boot.
		time.Sleep(2 * time.Second)
		return t, nil
	case config.TransportTCP:
		logger.Info("dialing controller", slog.String("address", cfg.Address))
		return transport.DialTCP(cfg.Address)
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// promptEnter blocks until the operator presses Enter.
func promptEnter() error {
	fmt.Print("Press [Enter] to start the experiment... ")
	_, err := bufio.NewReader(os.Stdin).ReadString('\n')
	return err
}

func stopMonitor(monitor *server.Monitor) {
	if monitor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	monitor.Stop(ctx)
}

// initLogger creates the structured logger from configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
