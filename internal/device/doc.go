// Package device implements the controller side of the acquisition protocol
// over any byte stream. It mirrors the firmware's behavior closely enough to
// stand in for real hardware: the simulator binary serves it over TCP and
// the session tests drive it over in-memory pipes.
package device
