package session

import "time"

// Sample is one acquired pair with its derived timestamp.
type Sample struct {
	Time  time.Duration
	Input float32
	Angle float32
}

// SampleBuffer is the fixed-length decoded result of a successful session:
// input and angle arrays of equal length, sampled at a fixed period.
// Timestamps are derived, not transmitted. The buffer is a private copy
// owned by the caller and is not mutated by the session afterwards.
type SampleBuffer struct {
	Input  []float32
	Angle  []float32
	Period time.Duration
}

// Len returns the number of sample pairs.
func (b *SampleBuffer) Len() int {
	return len(b.Input)
}

// At returns sample i with its timestamp at i*Period.
func (b *SampleBuffer) At(i int) Sample {
	return Sample{
		Time:  time.Duration(i) * b.Period,
		Input: b.Input[i],
		Angle: b.Angle[i],
	}
}

// Duration returns the time span covered by the buffer.
func (b *SampleBuffer) Duration() time.Duration {
	return time.Duration(b.Len()) * b.Period
}
