package device

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/eduardo-ufmg/2DoFSBP/internal/protocol"
)

// TestData holds one simulated experiment run.
type TestData struct {
	Input []float32
	Angle []float32
}

// Responder speaks the device half of the protocol on a single stream:
// wait for the connection check, ack it, wait for the start command, ack it,
// run the test, report success, wait for the data request, ack it, then send
// the framed payload.
type Responder struct {
	// SampleCount is the length of each generated array.
	SampleCount int

	// SamplePeriod is the simulated sample period; it shapes the generated
	// motor response but the responder does not sleep per sample.
	SamplePeriod time.Duration

	// TestDuration is how long the responder pretends the test takes
	// between the start ack and the success token. Zero reports success
	// immediately.
	TestDuration time.Duration

	// Seed makes the generated input sequence reproducible. Zero seeds
	// from the current time.
	Seed int64

	Logger *slog.Logger
}

// Serve runs one full device-side session on rw and returns when the payload
// has been sent or the stream fails. Like the firmware, it ignores
// unexpected tokens while waiting for a command instead of failing.
func (r *Responder) Serve(rw io.ReadWriter) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	count := r.SampleCount
	if count <= 0 {
		count = 4096
	}

	if err := r.awaitToken(rw, protocol.HostCheckConnection); err != nil {
		return err
	}
	if err := writeToken(rw, protocol.DeviceCheckConnection); err != nil {
		return err
	}
	logger.Info("host connected")

	if err := r.awaitToken(rw, protocol.HostStartTest); err != nil {
		return err
	}
	if err := writeToken(rw, protocol.DeviceAckStart); err != nil {
		return err
	}

	logger.Info("running simulated test",
		slog.Int("samples", count),
		slog.Duration("duration", r.TestDuration),
	)
	if r.TestDuration > 0 {
		time.Sleep(r.TestDuration)
	}
	data := r.Generate()

	if err := writeToken(rw, protocol.DeviceTestSuccess); err != nil {
		return err
	}

	if err := r.awaitToken(rw, protocol.HostRequestData); err != nil {
		return err
	}
	if err := writeToken(rw, protocol.DeviceAckDataRequest); err != nil {
		return err
	}

	logger.Info("sending sample arrays")
	if err := r.sendData(rw, data); err != nil {
		return err
	}
	logger.Info("done")
	return nil
}

// awaitToken reads bytes one at a time until want arrives, discarding
// everything else the way the firmware polling loops do.
func (r *Responder) awaitToken(rw io.Reader, want protocol.Token) error {
	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(rw, one); err != nil {
			return fmt.Errorf("device: wait for %s: %w", want, err)
		}
		if want.Is(one[0]) {
			return nil
		}
	}
}

func writeToken(w io.Writer, t protocol.Token) error {
	if _, err := w.Write([]byte{t.Byte()}); err != nil {
		return fmt.Errorf("device: send %s: %w", t, err)
	}
	return nil
}

// sendData emits the framed payload: start marker, input array, angle array,
// end marker.
func (r *Responder) sendData(w io.Writer, data TestData) error {
	if _, err := w.Write(protocol.StreamStart); err != nil {
		return fmt.Errorf("device: send stream start: %w", err)
	}
	if _, err := w.Write(protocol.EncodeFloatArray(data.Input)); err != nil {
		return fmt.Errorf("device: send input samples: %w", err)
	}
	if _, err := w.Write(protocol.EncodeFloatArray(data.Angle)); err != nil {
		return fmt.Errorf("device: send angle samples: %w", err)
	}
	if _, err := w.Write(protocol.StreamEnd); err != nil {
		return fmt.Errorf("device: send stream end: %w", err)
	}
	return nil
}

// Generate produces a plausible experiment run: the input steps to a new
// random setpoint in [-0.25, 0.25] every 50-500 ms of simulated time, and
// the angle integrates a first-order velocity response to it.
func (r *Responder) Generate() TestData {
	count := r.SampleCount
	if count <= 0 {
		count = 4096
	}
	period := r.SamplePeriod
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	seed := r.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	dt := period.Seconds()
	const (
		gain = 40.0 // steady-state velocity per unit input, rad/s
		tau  = 0.15 // motor time constant, s
	)

	data := TestData{
		Input: make([]float32, count),
		Angle: make([]float32, count),
	}

	input := 0.0
	velocity := 0.0
	angle := 0.0
	nextChange := 0

	for i := 0; i < count; i++ {
		if i >= nextChange {
			input = rng.Float64()/2.0 - 0.25
			holdMs := 50 + rng.Intn(451)
			nextChange = i + int(math.Round(float64(holdMs)/1000.0/dt))
		}

		velocity += (gain*input - velocity) / tau * dt
		angle += velocity * dt

		data.Input[i] = float32(input)
		data.Angle[i] = float32(angle)
	}

	return data
}
