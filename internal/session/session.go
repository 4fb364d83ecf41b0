package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduardo-ufmg/2DoFSBP/internal/metrics"
	"github.com/eduardo-ufmg/2DoFSBP/internal/protocol"
	"github.com/eduardo-ufmg/2DoFSBP/internal/transport"
)

// Phase names used in logs, errors and metrics labels.
const (
	PhaseConnect  = "connect"
	PhaseTrigger  = "trigger"
	PhaseStart    = "start"
	PhaseRun      = "run"
	PhaseRequest  = "request"
	PhaseTransfer = "transfer"
)

// Timeouts holds the per-phase read timeouts. The protocol deliberately uses
// different budgets per phase: short for control bytes, long for the remote
// test run, short again for the transfer.
type Timeouts struct {
	// Handshake bounds the whole connection poll, during which any byte
	// other than the connection ack is ignored as boot chatter.
	Handshake time.Duration

	// Start bounds each single-byte ack read (start ack and data-request
	// ack).
	Start time.Duration

	// TestRun bounds the wait for the test-success token and must exceed
	// the worst-case remote test duration with margin.
	TestRun time.Duration

	// Transfer bounds each framed section read of the bulk payload.
	Transfer time.Duration
}

// DefaultTimeouts matches the stock controller firmware: a 4096-sample test
// at 10 ms per sample runs for about 41 seconds.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Handshake: 10 * time.Second,
		Start:     2 * time.Second,
		TestRun:   120 * time.Second,
		Transfer:  5 * time.Second,
	}
}

// Config parameterizes one session.
type Config struct {
	// SampleCount is the fixed length of each transferred array.
	SampleCount int

	// SamplePeriod is the controller's sample period, used only to derive
	// timestamps for the buffer.
	SamplePeriod time.Duration

	Timeouts Timeouts

	// StartTrigger blocks between connection confirmation and the start
	// command, so a human (or an automated rig) decides when the test
	// actually begins. Nil starts immediately. A non-nil error aborts the
	// session before anything else is written.
	StartTrigger func() error

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// DefaultSampleCount is the array length of the stock controller firmware.
const DefaultSampleCount = 4096

// DefaultSamplePeriod is the stock controller sample period.
const DefaultSamplePeriod = 10 * time.Millisecond

func (c Config) withDefaults() Config {
	if c.SampleCount <= 0 {
		c.SampleCount = DefaultSampleCount
	}
	if c.SamplePeriod <= 0 {
		c.SamplePeriod = DefaultSamplePeriod
	}
	z := Timeouts{}
	if c.Timeouts == z {
		c.Timeouts = DefaultTimeouts()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// session holds the state of one run. The machine is strictly linear: every
// transition is one write followed by one blocking read, no state is ever
// revisited, and there is never more than one outstanding read.
type session struct {
	t      transport.Transport
	cfg    Config
	logger *slog.Logger
}

// Run executes one complete acquisition session over t and returns the
// decoded sample buffer. On any failure the typed error describes the phase
// and cause; no partial buffer is ever returned. Run does not close t; the
// caller owns the transport and may close it from another goroutine to
// cancel an in-flight read.
func Run(t transport.Transport, cfg Config) (*SampleBuffer, error) {
	cfg = cfg.withDefaults()
	s := &session{t: t, cfg: cfg, logger: cfg.Logger}

	if m := cfg.Metrics; m != nil {
		m.RecordSessionStarted()
	}
	began := time.Now()

	buf, phase, err := s.exec()
	elapsed := time.Since(began)

	if err != nil {
		if m := cfg.Metrics; m != nil {
			m.RecordSessionFailure(phase, elapsed.Seconds())
		}
		s.logger.Error("session failed",
			slog.String("phase", phase),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if m := cfg.Metrics; m != nil {
		m.RecordSessionCompleted(elapsed.Seconds(), buf.Len())
	}
	s.logger.Info("session complete",
		slog.Int("samples", buf.Len()),
		slog.Duration("elapsed", elapsed),
	)
	return buf, nil
}

// exec walks the states in strict order and reports the phase of the first
// failure.
func (s *session) exec() (*SampleBuffer, string, error) {
	if err := s.timed(PhaseConnect, s.connect); err != nil {
		return nil, PhaseConnect, err
	}
	if err := s.awaitStartTrigger(); err != nil {
		return nil, PhaseTrigger, err
	}
	if err := s.timed(PhaseStart, s.start); err != nil {
		return nil, PhaseStart, err
	}
	if err := s.timed(PhaseRun, s.awaitCompletion); err != nil {
		return nil, PhaseRun, err
	}
	if err := s.timed(PhaseRequest, s.requestData); err != nil {
		return nil, PhaseRequest, err
	}

	var buf *SampleBuffer
	err := s.timed(PhaseTransfer, func() error {
		var err error
		buf, err = s.transfer()
		return err
	})
	if err != nil {
		return nil, PhaseTransfer, err
	}
	return buf, "", nil
}

// timed runs one phase and records its duration.
func (s *session) timed(phase string, fn func() error) error {
	began := time.Now()
	err := fn()
	if m := s.cfg.Metrics; m != nil {
		m.RecordPhase(phase, time.Since(began).Seconds())
	}
	return err
}

// connect sends the connection check and polls for the ack. This is the one
// place where a wrong byte is not fatal: the device may still be emitting
// boot chatter, so everything except the ack is discarded until the
// handshake deadline.
func (s *session) connect() error {
	s.logger.Info("checking connection with controller")

	if err := s.t.Write([]byte{protocol.HostCheckConnection.Byte()}); err != nil {
		return fmt.Errorf("session: send connection check: %w", err)
	}

	err := s.t.ReadUntilByte(protocol.DeviceCheckConnection.Byte(), s.cfg.Timeouts.Handshake)
	if errors.Is(err, transport.ErrTimeout) {
		return fmt.Errorf("%w (deadline %s)", ErrConnectTimeout, s.cfg.Timeouts.Handshake)
	}
	if err != nil {
		return fmt.Errorf("session: handshake: %w", err)
	}

	s.logger.Info("connection confirmed")
	return nil
}

func (s *session) awaitStartTrigger() error {
	if s.cfg.StartTrigger == nil {
		return nil
	}
	if err := s.cfg.StartTrigger(); err != nil {
		return fmt.Errorf("session: start trigger: %w", err)
	}
	return nil
}

// start sends the start command and requires the exact start ack.
func (s *session) start() error {
	s.logger.Info("sending start command")

	if err := s.t.Write([]byte{protocol.HostStartTest.Byte()}); err != nil {
		return fmt.Errorf("session: send start command: %w", err)
	}

	b, err := s.readControl(s.cfg.Timeouts.Start)
	if err != nil {
		return fmt.Errorf("session: start ack: %w", err)
	}
	if !protocol.DeviceAckStart.Is(b) {
		return &MismatchError{Phase: PhaseStart, Expected: protocol.DeviceAckStart, Actual: b}
	}

	s.logger.Info("start acknowledged, test running")
	return nil
}

// awaitCompletion blocks on the long read for the test-success token.
func (s *session) awaitCompletion() error {
	s.logger.Info("waiting for test completion",
		slog.Duration("timeout", s.cfg.Timeouts.TestRun),
	)

	b, err := s.readControl(s.cfg.Timeouts.TestRun)
	if errors.Is(err, transport.ErrTimeout) {
		return fmt.Errorf("%w (waited %s)", ErrTestTimeout, s.cfg.Timeouts.TestRun)
	}
	if err != nil {
		return fmt.Errorf("session: completion wait: %w", err)
	}
	if !protocol.DeviceTestSuccess.Is(b) {
		return fmt.Errorf("%w: device sent 0x%02x", ErrTestFailed, b)
	}

	s.logger.Info("test completed")
	return nil
}

// requestData asks for the sample arrays and requires the exact ack.
func (s *session) requestData() error {
	s.logger.Info("requesting data")

	if err := s.t.Write([]byte{protocol.HostRequestData.Byte()}); err != nil {
		return fmt.Errorf("session: send data request: %w", err)
	}

	b, err := s.readControl(s.cfg.Timeouts.Start)
	if err != nil {
		return fmt.Errorf("session: data request ack: %w", err)
	}
	if !protocol.DeviceAckDataRequest.Is(b) {
		return &MismatchError{Phase: PhaseRequest, Expected: protocol.DeviceAckDataRequest, Actual: b}
	}

	return nil
}

// transfer reads the framed payload: start marker, two fixed-length float32
// arrays, end marker. The payload reads are all-or-nothing; only the end
// marker is tolerated when malformed, since both arrays are already complete
// and trusted independently of footer integrity.
func (s *session) transfer() (*SampleBuffer, error) {
	n := s.cfg.SampleCount
	arrayBytes := n * protocol.FloatSize
	timeout := s.cfg.Timeouts.Transfer

	head, err := s.t.ReadExactly(protocol.StreamStart.Len(), timeout)
	if err != nil {
		return nil, s.truncated("stream start marker", protocol.StreamStart.Len(), err)
	}
	if !protocol.MatchMarker(head, protocol.StreamStart) {
		return nil, fmt.Errorf("%w: stream start marker: got %q", protocol.ErrFormat, head)
	}

	s.logger.Info("receiving sample arrays",
		slog.Int("samples", n),
		slog.Int("bytes_per_array", arrayBytes),
	)

	rawInput, err := s.t.ReadExactly(arrayBytes, timeout)
	if err != nil {
		return nil, s.truncated("input samples", arrayBytes, err)
	}
	rawAngle, err := s.t.ReadExactly(arrayBytes, timeout)
	if err != nil {
		return nil, s.truncated("angle samples", arrayBytes, err)
	}
	if m := s.cfg.Metrics; m != nil {
		m.RecordTransfer(len(rawInput) + len(rawAngle))
	}

	foot, err := s.t.ReadExactly(protocol.StreamEnd.Len(), timeout)
	if err != nil || !protocol.MatchMarker(foot, protocol.StreamEnd) {
		// Non-fatal: the fixed-length payload reads above already
		// guarantee data completeness.
		s.logger.Warn("stream end marker mismatch",
			slog.String("got", fmt.Sprintf("%q", foot)),
			slog.String("want", protocol.StreamEnd.String()),
		)
		if m := s.cfg.Metrics; m != nil {
			m.RecordFooterMismatch()
		}
	}

	input, err := protocol.DecodeFloatArray(rawInput, n)
	if err != nil {
		return nil, fmt.Errorf("session: decode input samples: %w", err)
	}
	angle, err := protocol.DecodeFloatArray(rawAngle, n)
	if err != nil {
		return nil, fmt.Errorf("session: decode angle samples: %w", err)
	}

	return &SampleBuffer{
		Input:  input,
		Angle:  angle,
		Period: s.cfg.SamplePeriod,
	}, nil
}

// readControl reads exactly one control byte.
func (s *session) readControl(timeout time.Duration) (byte, error) {
	buf, err := s.t.ReadExactly(1, timeout)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// truncated converts a short read on a framed section into a TruncatedError.
func (s *session) truncated(section string, want int, err error) error {
	var sr *transport.ShortReadError
	if errors.As(err, &sr) {
		return &TruncatedError{Section: section, Want: want, Got: sr.Got}
	}
	return fmt.Errorf("session: read %s: %w", section, err)
}
