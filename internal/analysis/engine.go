// SPDX-License-Identifier: MIT
/*
Package analysis implements the streaming spectrum engine: a ring buffer of
recent samples, a Blackman window table, a Fourier transform and per-bin
exponential smoothing, producing decibel or byte-quantized spectra on demand.

The contract mirrors a browser analyser node:

	Process(samples)           append mono samples to the ring buffer
	FloatFrequencyData(out)    window, transform, smooth, convert to dB
	ByteFrequencyData(out)     the above, normalised to [min, max] dB and scaled to 0..255

Hot Path:
- All scratch buffers are allocated in NewEngine
- Queries perform no allocations
- Non-finite intermediates are written as 0, never propagated

Thread Safety:
- An Engine is single-threaded; serialise Process and the queries externally
- Independent engines share no mutable state; a WindowTable may be shared
*/
package analysis

import (
	"fmt"
	"math"

	applog "analyser/internal/log"
	"analyser/internal/ring"
	"analyser/pkg/dbscale"
)

// Defaults for a single analyser.
const (
	DefaultFrameSize             = 1024
	DefaultSmoothingTimeConstant = 0.55
	DefaultMinDecibels           = -100.0
	DefaultMaxDecibels           = -6.0
	DefaultSampleRate            = 44100.0
)

// Config is fixed at construction.
type Config struct {
	FrameSize             int     // Samples per analysis frame (power of two).
	SmoothingTimeConstant float64 // Weight of the previous smoothed value, in [0, 1].
	MinDecibels           float64 // dB mapped to byte 0.
	MaxDecibels           float64 // dB mapped to byte 255.
	RingCapacity          int     // Ring buffer capacity in samples (power of two, >= FrameSize).
	SampleRate            float64 // Only used to label bins in Hz.
}

// DefaultConfig returns the defaults of the reference analyser.
func DefaultConfig() Config {
	return Config{
		FrameSize:             DefaultFrameSize,
		SmoothingTimeConstant: DefaultSmoothingTimeConstant,
		MinDecibels:           DefaultMinDecibels,
		MaxDecibels:           DefaultMaxDecibels,
		RingCapacity:          ring.DefaultCapacity,
		SampleRate:            DefaultSampleRate,
	}
}

// workspace holds the buffers reused by every query.
type workspace struct {
	frame     []float64 // Latest N samples, windowed in place.
	spectrum  []float64 // Raw magnitudes, N/2 bins.
	smoothing []float64 // Previous smoothed magnitude per bin, persists across calls.
	decibels  []float64 // Float result used by ByteFrequencyData.
}

// Engine is one independent analysis channel.
type Engine struct {
	config    Config
	ring      *ring.Buffer
	window    *WindowTable
	fft       Transformer
	workspace workspace
}

// NewEngine validates cfg and pre-allocates the ring buffer, window table,
// transform and scratch buffers.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analyser configuration: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	win := o.window
	if win == nil {
		win = NewWindowTable(cfg.FrameSize)
	} else if win.Len() != cfg.FrameSize {
		return nil, fmt.Errorf("%w: table has %d coefficients, frame size is %d", ErrWindowLength, win.Len(), cfg.FrameSize)
	}

	fft := o.transformer
	if fft == nil {
		fft = NewFourier(cfg.FrameSize)
	}

	buf, err := ring.New(cfg.RingCapacity)
	if err != nil {
		return nil, fmt.Errorf("invalid analyser configuration: %w", err)
	}

	bins := cfg.FrameSize / 2

	applog.Debugf("Analysis: Initializing Engine (Frame: %d, Smoothing: %.2f, Range: [%.1f, %.1f] dB, Ring: %d)",
		cfg.FrameSize, cfg.SmoothingTimeConstant, cfg.MinDecibels, cfg.MaxDecibels, cfg.RingCapacity)

	return &Engine{
		config: cfg,
		ring:   buf,
		window: win,
		fft:    fft,
		workspace: workspace{
			frame:     make([]float64, cfg.FrameSize),
			spectrum:  make([]float64, bins),
			smoothing: make([]float64, bins),
			decibels:  make([]float64, bins),
		},
	}, nil
}

// Process appends mono samples (nominally in [-1, 1]) to the ring buffer.
func (e *Engine) Process(samples []float64) {
	e.ring.Write(samples)
}

// FloatTimeDomainData copies the first min(len(out), N) samples of the
// current analysis frame, unwindowed, into out.
func (e *Engine) FloatTimeDomainData(out []float64) {
	e.ring.Window(e.workspace.frame)
	copy(out, e.workspace.frame)
}

// FloatFrequencyData writes smoothed decibel magnitudes for bins
// [0, min(len(out), N/2)) into out. Remaining elements of out are untouched.
// Smoothing state is only advanced for the bins written.
func (e *Engine) FloatFrequencyData(out []float64) {
	ws := &e.workspace

	// 1. Latest frame.
	e.ring.Window(ws.frame)

	// 2. Blackman window, non-finite products become 0.
	e.window.Apply(ws.frame, ws.frame)

	// 3. Magnitude spectrum.
	e.fft.Magnitudes(ws.spectrum, ws.frame)

	// 4. Smooth across calls, then convert to dB.
	alpha := e.config.SmoothingTimeConstant
	n := min(len(out), len(ws.spectrum))
	for i := range n {
		ws.smoothing[i] = alpha*ws.smoothing[i] + (1-alpha)*ws.spectrum[i]
		out[i] = dbscale.Finite(dbscale.ToDecibel(ws.smoothing[i]))
	}
}

// ByteFrequencyData writes the float analysis normalised to
// [MinDecibels, MaxDecibels] and scaled to 0..255 into the first
// min(len(out), N/2) elements of out.
func (e *Engine) ByteFrequencyData(out []byte) {
	n := min(len(out), len(e.workspace.decibels))
	db := e.workspace.decibels[:n]
	e.FloatFrequencyData(db)
	e.Quantize(out, db)
}

// Quantize maps decibel values onto 0..255 using this engine's range without
// touching smoothing state. It writes min(len(out), len(db)) elements, so a
// caller holding both representations needs only one FloatFrequencyData call.
func (e *Engine) Quantize(out []byte, db []float64) {
	n := min(len(out), len(db))
	for i := range n {
		out[i] = byte(math.Round(dbscale.Normalize(db[i], e.config.MinDecibels, e.config.MaxDecibels) * 255))
	}
}

// FrequencyBinCount returns N/2.
func (e *Engine) FrequencyBinCount() int {
	return e.config.FrameSize / 2
}

// FrameSize returns N.
func (e *Engine) FrameSize() int {
	return e.config.FrameSize
}

// Config returns the immutable configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Window returns the (shareable) window table.
func (e *Engine) Window() *WindowTable {
	return e.window
}

// FrequencyForBin returns the centre frequency in Hz of bin i, or 0 when i
// is out of range.
func (e *Engine) FrequencyForBin(i int) float64 {
	if i < 0 || i >= e.FrequencyBinCount() {
		return 0
	}
	return float64(i) * e.config.SampleRate / float64(e.config.FrameSize)
}

// Reset clears buffered samples and smoothing state.
func (e *Engine) Reset() {
	e.ring.Reset()
	clear(e.workspace.smoothing)
}
