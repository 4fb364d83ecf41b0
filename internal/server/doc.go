// Package server provides the optional monitoring HTTP server for long
// bench runs: health, last session status, effective configuration, and
// Prometheus metrics.
package server
