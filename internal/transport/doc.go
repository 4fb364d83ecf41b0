// Package transport abstracts the byte stream between host and controller.
// Implementations exist for a physical serial port and for any net.Conn,
// which covers the TCP-based simulator and in-memory pipes used in tests.
// Reads take an explicit timeout per call; the transport keeps no mutable
// timeout state of its own.
package transport
