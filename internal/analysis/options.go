// SPDX-License-Identifier: MIT
package analysis

type options struct {
	window      *WindowTable
	transformer Transformer
}

// Option customises an Engine at construction.
type Option func(*options)

// WithWindow shares an existing window table instead of building one. The
// table length must equal the frame size.
func WithWindow(w *WindowTable) Option {
	return func(o *options) {
		o.window = w
	}
}

// WithTransformer replaces the gonum-backed Fourier transform.
func WithTransformer(t Transformer) Option {
	return func(o *options) {
		o.transformer = t
	}
}
