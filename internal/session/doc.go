// Package session implements the host side of the acquisition protocol as a
// strictly linear state machine: handshake, start, wait for the remote test
// to finish, then bulk transfer of the sample arrays. A session either
// returns a complete SampleBuffer or a typed error; partial buffers are
// never exposed.
package session
