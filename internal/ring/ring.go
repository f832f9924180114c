// SPDX-License-Identifier: MIT
/*
Package ring implements the fixed-capacity circular sample store that feeds
the spectrum analyser.

Samples are appended at a monotonic write cursor and the oldest data is
overwritten once the capacity is exceeded. Reads always return the most
recent samples in chronological order. Slots that were never written read as
zero.

A Buffer is not safe for concurrent use. Ingestion and extraction both touch
the cursor and must be serialised by the caller.
*/
package ring

import (
	"errors"
	"fmt"

	"analyser/pkg/bitint"
)

// DefaultCapacity is the capacity used by the analyser unless configured.
const DefaultCapacity = 32768

// ErrCapacity is returned when the requested capacity is not a positive power of two.
var ErrCapacity = errors.New("ring capacity must be a positive power of two")

// Buffer is a circular store of mono samples.
type Buffer struct {
	data    []float64
	mask    int    // len(data)-1, valid because the capacity is a power of two
	w       int    // Next write position in [0, len(data))
	written uint64 // Total samples ever written
}

// New allocates a zero-filled buffer with the given capacity.
func New(capacity int) (*Buffer, error) {
	if !bitint.IsPowerOfTwo(capacity) {
		return nil, fmt.Errorf("%w, got %d", ErrCapacity, capacity)
	}
	return &Buffer{
		data: make([]float64, capacity),
		mask: capacity - 1,
	}, nil
}

// Cap returns the capacity in samples.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Cursor returns the current write position.
func (b *Buffer) Cursor() int {
	return b.w
}

// Written returns the total number of samples appended since creation or the
// last Reset.
func (b *Buffer) Written() uint64 {
	return b.written
}

// Write appends samples at the cursor, wrapping to the start of the buffer as
// needed. The copy happens in at most two contiguous passes. A chunk longer
// than the capacity behaves as if it were written sample by sample: only its
// last Cap() samples are kept and the cursor advances by len(samples) mod Cap().
func (b *Buffer) Write(samples []float64) {
	n := len(samples)
	if n == 0 {
		return
	}

	c := len(b.data)
	start := b.w
	if n > c {
		start = (b.w + n - c) & b.mask
		samples = samples[n-c:]
	}

	// Tail segment, then head segment.
	copied := copy(b.data[start:], samples)
	if copied < len(samples) {
		copy(b.data, samples[copied:])
	}

	b.w = (b.w + n) & b.mask
	b.written += uint64(n)
}

// Window fills dst with the len(dst) most recent samples in chronological
// order, ending at the sample just before the cursor. It panics when len(dst)
// exceeds the capacity.
func (b *Buffer) Window(dst []float64) {
	n := len(dst)
	c := len(b.data)
	if n > c {
		panic(fmt.Sprintf("ring: window of %d samples exceeds capacity %d", n, c))
	}
	if n == 0 {
		return
	}

	// (w - n + c) is never negative since n <= c.
	i0 := (b.w - n + c) & b.mask
	i1 := min(i0+n, c)

	copied := copy(dst, b.data[i0:i1])
	if copied != n {
		copy(dst[copied:], b.data[:n-copied])
	}
}

// Reset zeroes the contents and rewinds the cursor.
func (b *Buffer) Reset() {
	clear(b.data)
	b.w = 0
	b.written = 0
}
