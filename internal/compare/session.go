// SPDX-License-Identifier: MIT
/*
Package compare runs several analysers side by side on the same signal.

Every refresh the session feeds the newest chunk of samples to each engine,
takes one smoothed spectrum per engine, and reports the per-bin difference
between the first two byte spectra. Results are published to the configured
transports and returned as a Snapshot for display.

Thread Safety:
- A Session is single-threaded, like the engines it owns
- Transports receive frames whose buffers they must copy before returning
*/
package compare

import (
	"errors"
	"fmt"
	"time"

	"analyser/internal/analysis"
	applog "analyser/internal/log"
	"analyser/internal/transport"
)

var (
	// ErrNoAnalysers is returned when a session is created without analysers.
	ErrNoAnalysers = errors.New("compare: at least one analyser is required")

	// ErrDuplicateName is returned when two analysers share a name.
	ErrDuplicateName = errors.New("compare: duplicate analyser name")
)

// Spec names one analyser and its configuration.
type Spec struct {
	Name   string
	Config analysis.Config
}

// Source yields the samples that became available by now. done reports that
// the source is exhausted. source.Player and audio.Capture implement it.
type Source interface {
	Next(now time.Time) (chunk []float64, done bool)
}

// SampleSink receives every chunk fed to the session, e.g. a WAV recorder.
type SampleSink interface {
	WriteSamples(samples []float64) error
}

// channel is one named engine and its reusable output buffers.
type channel struct {
	name     string
	engine   *analysis.Engine
	bytes    []byte
	decibels []float64
	seq      uint32
}

// Session owns a set of independent engines fed from a single source.
type Session struct {
	channels   []*channel
	sinks      []SampleSink
	transports []transport.Transport
	diff       []float64
	frames     []transport.Frame
	steps      uint64
}

// Option configures a Session.
type Option func(*Session)

// WithSink adds a SampleSink.
func WithSink(sink SampleSink) Option {
	return func(s *Session) {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
}

// WithTransport adds a Transport that receives every frame.
func WithTransport(t transport.Transport) Option {
	return func(s *Session) {
		if t != nil {
			s.transports = append(s.transports, t)
		}
	}
}

// NewSession builds one engine per spec. Engines with the same frame size
// share a single window table.
func NewSession(specs []Spec, opts ...Option) (*Session, error) {
	if len(specs) == 0 {
		return nil, ErrNoAnalysers
	}

	s := &Session{}
	windows := make(map[int]*analysis.WindowTable)
	seen := make(map[string]bool, len(specs))

	for _, spec := range specs {
		if seen[spec.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, spec.Name)
		}
		seen[spec.Name] = true

		var engineOpts []analysis.Option
		if w, ok := windows[spec.Config.FrameSize]; ok {
			engineOpts = append(engineOpts, analysis.WithWindow(w))
		}

		e, err := analysis.NewEngine(spec.Config, engineOpts...)
		if err != nil {
			return nil, fmt.Errorf("analyser %q: %w", spec.Name, err)
		}
		windows[spec.Config.FrameSize] = e.Window()

		bins := e.FrequencyBinCount()
		s.channels = append(s.channels, &channel{
			name:     spec.Name,
			engine:   e,
			bytes:    make([]byte, bins),
			decibels: make([]float64, bins),
		})
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if len(s.channels) > 1 {
		s.diff = make([]float64, min(len(s.channels[0].bytes), len(s.channels[1].bytes)))
	}
	s.frames = make([]transport.Frame, len(s.channels))

	applog.Infof("Compare: Session with %d analysers, %d sinks, %d transports",
		len(s.channels), len(s.sinks), len(s.transports))
	return s, nil
}

// Process feeds a chunk of mono samples to every engine and sink. Sink
// failures are logged and do not interrupt analysis.
func (s *Session) Process(samples []float64) {
	if len(samples) == 0 {
		return
	}
	for _, c := range s.channels {
		c.engine.Process(samples)
	}
	for _, sink := range s.sinks {
		if err := sink.WriteSamples(samples); err != nil {
			applog.Warnf("Compare: Sample sink error: %v", err)
		}
	}
}

// Analyse takes one smoothed spectrum from every engine, computes the
// difference between the first two and publishes the frames. The returned
// Snapshot aliases session buffers and is valid until the next call.
func (s *Session) Analyse(now time.Time) Snapshot {
	ts := now.UnixNano()
	for i, c := range s.channels {
		c.engine.FloatFrequencyData(c.decibels)
		c.engine.Quantize(c.bytes, c.decibels)
		c.seq++

		s.frames[i] = transport.Frame{
			Analyser:  c.name,
			Sequence:  c.seq,
			Timestamp: ts,
			Bytes:     c.bytes,
			Decibels:  c.decibels,
		}
	}

	snap := Snapshot{
		Step:      s.steps,
		Timestamp: now,
		Frames:    s.frames,
	}
	s.steps++

	if s.diff != nil {
		PercentDiff(s.diff, s.channels[0].bytes, s.channels[1].bytes)
		snap.Diff = s.diff
		snap.DiffStats = Summarise(s.diff)
	}

	for _, t := range s.transports {
		for _, f := range s.frames {
			if err := t.Send(f); err != nil {
				applog.Warnf("Compare: Transport send failed for %q: %v", f.Analyser, err)
			}
		}
	}
	return snap
}

// Step is Process followed by Analyse.
func (s *Session) Step(samples []float64, now time.Time) Snapshot {
	s.Process(samples)
	return s.Analyse(now)
}

// Pull reads the chunk due at now from src and runs one Step with it.
func (s *Session) Pull(src Source, now time.Time) (Snapshot, bool) {
	chunk, done := src.Next(now)
	return s.Step(chunk, now), done
}

// Reset clears every engine, used when playback restarts.
func (s *Session) Reset() {
	for _, c := range s.channels {
		c.engine.Reset()
	}
}

// Names returns the analyser names in configuration order.
func (s *Session) Names() []string {
	names := make([]string, len(s.channels))
	for i, c := range s.channels {
		names[i] = c.name
	}
	return names
}

// Engine returns the engine registered under name, or nil.
func (s *Session) Engine(name string) *analysis.Engine {
	for _, c := range s.channels {
		if c.name == name {
			return c.engine
		}
	}
	return nil
}

// Close closes every transport and returns the combined error.
func (s *Session) Close() error {
	var errs []error
	for _, t := range s.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
