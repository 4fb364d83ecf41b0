package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	TransportSerial = "serial"
	TransportTCP    = "tcp"
)

// Config represents the complete acquisition host configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Session   SessionConfig   `yaml:"session"`
	Output    OutputConfig    `yaml:"output"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TransportConfig selects and parameterizes the byte-stream transport.
type TransportConfig struct {
	Kind    string `yaml:"kind"`    // "serial" or "tcp"
	Device  string `yaml:"device"`  // serial port path, e.g. /dev/ttyUSB0
	Baud    int    `yaml:"baud"`    // serial baud rate
	Address string `yaml:"address"` // tcp address, e.g. 127.0.0.1:7070
}

// SessionConfig contains the protocol parameters of one acquisition run.
type SessionConfig struct {
	SampleCount  int            `yaml:"sample_count"`
	SamplePeriod float64        `yaml:"sample_period"` // seconds
	Timeouts     TimeoutsConfig `yaml:"timeouts"`
}

// TimeoutsConfig holds the per-phase read timeouts in seconds.
type TimeoutsConfig struct {
	Handshake float64 `yaml:"handshake"` // overall connect deadline
	Start     float64 `yaml:"start"`     // per control-byte ack read
	TestRun   float64 `yaml:"test_run"`  // wait for test completion
	Transfer  float64 `yaml:"transfer"`  // per framed section read
}

// OutputConfig says where the acquired data goes.
type OutputConfig struct {
	CSVPath string `yaml:"csv_path"`
}

// MonitorConfig contains the monitoring HTTP server configuration.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration matching the stock controller firmware.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind:   TransportSerial,
			Device: "/dev/ttyUSB0",
			Baud:   115200,
		},
		Session: SessionConfig{
			SampleCount:  4096,
			SamplePeriod: 0.01,
			Timeouts: TimeoutsConfig{
				Handshake: 10,
				Start:     2,
				TestRun:   120,
				Transfer:  5,
			},
		},
		Output: OutputConfig{
			CSVPath: "experiment_data.csv",
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Address: "127.0.0.1:9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of the whole configuration.
func (c *Config) Validate() error {
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport config: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates transport configuration.
func (t *TransportConfig) Validate() error {
	switch t.Kind {
	case TransportSerial:
		if t.Device == "" {
			return fmt.Errorf("device cannot be empty for serial transport")
		}
		if t.Baud < 1200 {
			return fmt.Errorf("baud must be at least 1200, got %d", t.Baud)
		}
	case TransportTCP:
		if t.Address == "" {
			return fmt.Errorf("address cannot be empty for tcp transport")
		}
	default:
		return fmt.Errorf("kind must be %q or %q, got %q", TransportSerial, TransportTCP, t.Kind)
	}
	return nil
}

// Validate validates session configuration.
func (s *SessionConfig) Validate() error {
	if s.SampleCount < 1 {
		return fmt.Errorf("sample_count must be at least 1, got %d", s.SampleCount)
	}
	if s.SamplePeriod <= 0 {
		return fmt.Errorf("sample_period must be positive, got %f", s.SamplePeriod)
	}

	t := s.Timeouts
	if t.Handshake <= 0 {
		return fmt.Errorf("timeouts.handshake must be positive, got %f", t.Handshake)
	}
	if t.Start <= 0 {
		return fmt.Errorf("timeouts.start must be positive, got %f", t.Start)
	}
	if t.Transfer <= 0 {
		return fmt.Errorf("timeouts.transfer must be positive, got %f", t.Transfer)
	}

	// The long wait must cover the whole remote test run with margin, or
	// every session would end in a spurious test timeout.
	testSeconds := float64(s.SampleCount) * s.SamplePeriod
	if t.TestRun <= testSeconds {
		return fmt.Errorf("timeouts.test_run (%gs) must exceed the test duration (%gs)",
			t.TestRun, testSeconds)
	}

	return nil
}

// Validate validates monitor configuration.
func (m *MonitorConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when monitor is enabled")
	}
	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetSamplePeriod returns the sample period as a time.Duration.
func (s *SessionConfig) GetSamplePeriod() time.Duration {
	return time.Duration(s.SamplePeriod * float64(time.Second))
}

// GetHandshakeTimeout returns the connect deadline as a time.Duration.
func (t *TimeoutsConfig) GetHandshakeTimeout() time.Duration {
	return time.Duration(t.Handshake * float64(time.Second))
}

// GetStartTimeout returns the control ack timeout as a time.Duration.
func (t *TimeoutsConfig) GetStartTimeout() time.Duration {
	return time.Duration(t.Start * float64(time.Second))
}

// GetTestRunTimeout returns the test completion timeout as a time.Duration.
func (t *TimeoutsConfig) GetTestRunTimeout() time.Duration {
	return time.Duration(t.TestRun * float64(time.Second))
}

// GetTransferTimeout returns the per-section transfer timeout as a
// time.Duration.
func (t *TimeoutsConfig) GetTransferTimeout() time.Duration {
	return time.Duration(t.Transfer * float64(time.Second))
}
