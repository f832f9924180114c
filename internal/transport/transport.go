// Package transport publishes analyser frames to external consumers.
package transport

import "slices"

// Frame is one analysis result for a single named analyser.
type Frame struct {
	Analyser  string    `json:"analyser"`
	Sequence  uint32    `json:"sequence"`
	Timestamp int64     `json:"timestamp"` // Nanoseconds since epoch
	Bytes     []byte    `json:"bytes"`
	Decibels  []float64 `json:"decibels,omitempty"`
}

// Clone returns a deep copy so the caller may keep reusing its buffers.
func (f Frame) Clone() Frame {
	f.Bytes = slices.Clone(f.Bytes)
	f.Decibels = slices.Clone(f.Decibels)
	return f
}

// Transport defines a generic interface for sending analysis frames.
// Implementations should be thread-safe and must not retain the frame's
// slices past the call to Send.
type Transport interface {
	Send(frame Frame) error
	Close() error
}
