// Package protocol defines the wire-level vocabulary of the acquisition
// protocol: single-byte control tokens, the ASCII markers that delimit the
// bulk payload, and the little-endian float32 array codec.
package protocol
