// SPDX-License-Identifier: MIT
package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Transformer is the Fourier capability the engine delegates to. Given a
// real frame of length N it writes the magnitude spectrum for bins
// [0, min(len(dst), N/2)) into dst. Implementations must be deterministic and
// free of side effects visible to the caller.
type Transformer interface {
	Magnitudes(dst, frame []float64)
}

// Fourier is the gonum-backed Transformer. Magnitudes are scaled by 2/N so a
// full-scale sinusoid centred on a bin reads as its amplitude times the
// window's coherent gain.
type Fourier struct {
	fft    *fourier.FFT
	n      int
	scale  float64
	coeffs []complex128 // N/2+1 complex bins, reused between calls
}

var _ Transformer = (*Fourier)(nil)

// NewFourier prepares a real FFT of length n.
func NewFourier(n int) *Fourier {
	return &Fourier{
		fft:    fourier.NewFFT(n),
		n:      n,
		scale:  2 / float64(n),
		coeffs: make([]complex128, n/2+1),
	}
}

// Len returns the transform length.
func (f *Fourier) Len() int {
	return f.n
}

// Magnitudes implements Transformer. frame must have length Len().
func (f *Fourier) Magnitudes(dst, frame []float64) {
	f.fft.Coefficients(f.coeffs, frame)

	n := min(len(dst), f.n/2)
	for i := range n {
		dst[i] = f.scale * cmplx.Abs(f.coeffs[i])
	}
}
