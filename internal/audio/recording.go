package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	applog "analyser/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// MaxConsecutiveWriteFailures is the number of failed writes after which a
// Recorder gives up and rejects further samples.
const MaxConsecutiveWriteFailures = 5

var (
	// ErrRecorderClosed is returned by WriteSamples after Close.
	ErrRecorderClosed = errors.New("recorder closed")

	// ErrRecorderFailed is returned once too many writes in a row have failed.
	ErrRecorderFailed = errors.New("recorder disabled after repeated write failures")
)

// Recorder writes mono float samples to a PCM WAV file.
type Recorder struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	encoder  *wav.Encoder
	buf      *audio.IntBuffer // Reusable buffer for format conversion
	peak     float64          // Largest integer sample for the bit depth
	written  uint64
	failures int
	closed   bool
}

// NewRecorder creates path (and its directory) and prepares a mono encoder.
func NewRecorder(path string, sampleRate, bitDepth int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recording directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	applog.Infof("Recorder: Writing %d-bit mono WAV at %d Hz to %s", bitDepth, sampleRate, path)

	return &Recorder{
		path:    path,
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, bitDepth, 1, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		peak: float64(int64(1)<<(bitDepth-1) - 1),
	}, nil
}

// WriteSamples converts samples in [-1, 1] (clipping outside it) and appends
// them to the file.
func (r *Recorder) WriteSamples(samples []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}
	if r.failures >= MaxConsecutiveWriteFailures {
		return ErrRecorderFailed
	}

	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		if math.IsNaN(s) {
			s = 0
		}
		s = math.Max(-1, math.Min(1, s))
		r.buf.Data[i] = int(math.Round(s * r.peak))
	}

	if err := r.encoder.Write(r.buf); err != nil {
		r.failures++
		if r.failures == MaxConsecutiveWriteFailures {
			applog.Errorf("Recorder: Giving up on %s after %d failed writes", r.path, r.failures)
		}
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	r.failures = 0
	r.written += uint64(len(samples))
	return nil
}

// Written returns the number of samples written so far.
func (r *Recorder) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Path returns the output file path.
func (r *Recorder) Path() string {
	return r.path
}

// Close finalises the WAV header and closes the file. Closing twice is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	encErr := r.encoder.Close()
	fileErr := r.file.Close()
	if encErr != nil {
		return fmt.Errorf("failed to finalise WAV file: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close recording file: %w", fileErr)
	}

	applog.Infof("Recorder: Wrote %d samples to %s", r.written, r.path)
	return nil
}
