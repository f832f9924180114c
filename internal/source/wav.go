// SPDX-License-Identifier: MIT
/*
Package source provides the sample sources that feed analysers: decoded WAV
clips and a wall-clock player that releases a clip in real-time sized chunks.
*/
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	applog "analyser/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when the input is not a PCM WAV stream.
var ErrInvalidWAV = errors.New("source: not a valid WAV file")

// Clip is a decoded mono signal in the range [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
	Channels   int // Channel count of the original file before down-mix
	BitDepth   int
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// Open decodes the WAV file at path.
func Open(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file %q: %w", path, err)
	}
	defer f.Close()

	clip, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", path, err)
	}

	applog.Infof("Source: Loaded %s (%d Hz, %d ch, %d-bit, %s)",
		path, clip.SampleRate, clip.Channels, clip.BitDepth, clip.Duration().Round(time.Millisecond))
	return clip, nil
}

// DecodeWAV reads a complete PCM WAV stream and down-mixes it to mono.
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("source: reading PCM data: %w", err)
	}
	if d.NumChans == 0 || d.SampleRate == 0 {
		return nil, ErrInvalidWAV
	}

	return &Clip{
		Samples:    Downmix(buf, int(d.BitDepth)),
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}, nil
}

// Downmix converts interleaved integer PCM to mono floats by averaging all
// channels of each frame. 8-bit WAV data is unsigned and is re-centred first.
func Downmix(buf *audio.IntBuffer, bitDepth int) []float64 {
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}

	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := range out {
		var sum int
		for ch := range channels {
			sum += buf.Data[i*channels+ch] - offset
		}
		out[i] = float64(sum) / float64(channels) * scale
	}
	return out
}
