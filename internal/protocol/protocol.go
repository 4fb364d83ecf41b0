package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Control tokens exchanged between host and controller. Every control
// exchange is exactly one byte; equality is exact.
const (
	HostCheckConnection   Token = 0x01
	DeviceCheckConnection Token = 0x02
	HostStartTest         Token = 0x03
	DeviceAckStart        Token = 0x04
	DeviceTestSuccess     Token = 0x05
	HostRequestData       Token = 0x06
	DeviceAckDataRequest  Token = 0x07
)

// Markers delimiting the bulk payload. Unlike tokens these are multi-byte
// and must be matched as a contiguous run.
var (
	StreamStart = Marker("DATA_START")
	StreamEnd   = Marker("DATA_END")
)

// FloatSize is the encoded size of one sample value.
const FloatSize = 4

// ErrFormat reports a violated framing invariant: a marker that does not
// match or a payload whose length is not exactly count*4 bytes.
var ErrFormat = errors.New("protocol: format violation")

// Token is a single-byte control value.
type Token byte

// Byte returns the wire representation of the token.
func (t Token) Byte() byte {
	return byte(t)
}

// Is reports whether a received byte equals this token.
func (t Token) Is(b byte) bool {
	return byte(t) == b
}

// String returns a human-readable name for logging.
func (t Token) String() string {
	switch t {
	case HostCheckConnection:
		return "HostCheckConnection"
	case DeviceCheckConnection:
		return "DeviceCheckConnection"
	case HostStartTest:
		return "HostStartTest"
	case DeviceAckStart:
		return "DeviceAckStart"
	case DeviceTestSuccess:
		return "DeviceTestSuccess"
	case HostRequestData:
		return "HostRequestData"
	case DeviceAckDataRequest:
		return "DeviceAckDataRequest"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(t))
	}
}

// Marker is a fixed ASCII delimiter bounding the bulk payload.
type Marker []byte

// Len returns the number of bytes the marker occupies on the wire.
func (m Marker) Len() int {
	return len(m)
}

// String returns the marker as ASCII text.
func (m Marker) String() string {
	return string(m)
}

// MatchMarker reports whether buf is exactly the expected marker,
// order-sensitive.
func MatchMarker(buf []byte, expected Marker) bool {
	return bytes.Equal(buf, expected)
}

// DecodeFloatArray reinterprets buf as count little-endian IEEE-754 single
// precision values. The buffer length must be exactly count*4 bytes.
func DecodeFloatArray(buf []byte, count int) ([]float32, error) {
	if len(buf) != count*FloatSize {
		return nil, fmt.Errorf("%w: float array must be %d bytes, got %d",
			ErrFormat, count*FloatSize, len(buf))
	}

	values := make([]float32, count)
	for i := range values {
		bits := binary.LittleEndian.Uint32(buf[i*FloatSize:])
		values[i] = math.Float32frombits(bits)
	}
	return values, nil
}

// EncodeFloatArray encodes values as little-endian IEEE-754 single precision.
// It is the exact inverse of DecodeFloatArray.
func EncodeFloatArray(values []float32) []byte {
	buf := make([]byte, len(values)*FloatSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*FloatSize:], math.Float32bits(v))
	}
	return buf
}
