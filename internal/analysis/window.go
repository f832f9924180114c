// SPDX-License-Identifier: MIT
package analysis

import (
	"analyser/pkg/dbscale"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowTable holds precomputed Blackman coefficients for a fixed frame
// length. It is immutable after construction and may be shared by engines
// using the same frame size.
type WindowTable struct {
	coeffs []float64
}

// NewWindowTable computes table[i] = blackman(i, n) for i in [0, n).
func NewWindowTable(n int) *WindowTable {
	coeffs := make([]float64, n)
	// gonum windows scale the input in place, start from ones.
	for i := range coeffs {
		coeffs[i] = 1
	}
	window.Blackman(coeffs)

	// The symmetric formula evaluates to about -1.4e-17 at both edges.
	for i, c := range coeffs {
		coeffs[i] = dbscale.Clamp(c, 0, 1)
	}

	return &WindowTable{coeffs: coeffs}
}

// Len returns the frame length the table was built for.
func (w *WindowTable) Len() int {
	return len(w.coeffs)
}

// At returns the coefficient at index i.
func (w *WindowTable) At(i int) float64 {
	return w.coeffs[i]
}

// Apply writes src[i]*table[i] into dst for i < min(len(dst), len(src), Len()).
// A product that is NaN or infinite is written as 0 so a corrupted sample
// cannot poison the whole frame.
func (w *WindowTable) Apply(dst, src []float64) {
	n := min(len(dst), len(src), len(w.coeffs))
	for i := range n {
		dst[i] = dbscale.Finite(src[i] * w.coeffs[i])
	}
}
