// Package sample holds the collaborators that consume a finished
// SampleBuffer. They only see ordered (input, angle) pairs plus the sample
// period and are fully decoupled from wire-level detail.
package sample
