// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"

	"analyser/pkg/bitint"
)

var (
	ErrFrameSize    = errors.New("frame size must be a power of two")
	ErrRingCapacity = errors.New("ring capacity must be a power of two no smaller than the frame size")
	ErrSmoothing    = errors.New("smoothing time constant must be in [0, 1]")
	ErrDecibelRange = errors.New("min decibels must be below max decibels")
	ErrSampleRate   = errors.New("sample rate must be positive")
	ErrWindowLength = errors.New("window table length must match the frame size")
)

// Validate reports the first problem with c, or nil.
func (c Config) Validate() error {
	if !bitint.IsPowerOfTwo(c.FrameSize) || c.FrameSize < 2 {
		return fmt.Errorf("%w, got %d", ErrFrameSize, c.FrameSize)
	}
	if !bitint.IsPowerOfTwo(c.RingCapacity) || c.RingCapacity < c.FrameSize {
		return fmt.Errorf("%w, got %d for frame size %d", ErrRingCapacity, c.RingCapacity, c.FrameSize)
	}
	// Written as a negation so NaN is rejected too.
	if !(c.SmoothingTimeConstant >= 0 && c.SmoothingTimeConstant <= 1) {
		return fmt.Errorf("%w, got %g", ErrSmoothing, c.SmoothingTimeConstant)
	}
	if !(c.MinDecibels < c.MaxDecibels) {
		return fmt.Errorf("%w, got [%g, %g]", ErrDecibelRange, c.MinDecibels, c.MaxDecibels)
	}
	if !(c.SampleRate > 0) {
		return fmt.Errorf("%w, got %g", ErrSampleRate, c.SampleRate)
	}
	return nil
}
