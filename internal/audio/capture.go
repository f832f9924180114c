// SPDX-License-Identifier: MIT
/*
Package audio implements live input for the analyser:
- PortAudio capture with a lock-free hand-off to the analysis goroutine
- Host device discovery
- WAV recording of the analysed mono signal

Thread Safety:
- The PortAudio callback only touches pre-allocated buffers and atomics
- Captured chunks cross threads through a bounded channel; when the consumer
  falls behind, chunks are dropped and counted rather than blocking audio
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"analyser/internal/config"
	applog "analyser/internal/log"

	"github.com/gordonklaus/portaudio"
)

// DefaultQueueDepth is the number of callback buffers that may wait for the
// consumer before new ones are dropped.
const DefaultQueueDepth = 64

// ErrNotRunning is returned by Stop when the stream was never started.
var ErrNotRunning = errors.New("audio: capture not running")

// Capture records mono float64 chunks from a PortAudio input device.
type Capture struct {
	cfg        config.AudioConfig
	sampleRate float64

	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Pool of mono buffers handed to the consumer in rotation. With
	// len(pool) > cap(chunks)+1 a buffer is never rewritten while queued
	// or being consumed.
	pool    [][]float64
	next    int
	chunks  chan []float64
	pending []float64 // Concatenated chunks returned by Next

	running  atomic.Bool
	captured atomic.Uint64
	dropped  atomic.Uint64
}

// NewCapture resolves the input device and pre-allocates all buffers.
// PortAudio must be initialised.
func NewCapture(cfg config.AudioConfig, sampleRate float64) (*Capture, error) {
	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}
	if cfg.InputChannels > inputDevice.MaxInputChannels {
		return nil, fmt.Errorf("device %q supports %d input channels, %d requested",
			inputDevice.Name, inputDevice.MaxInputChannels, cfg.InputChannels)
	}

	c := newCapture(cfg, sampleRate, DefaultQueueDepth)
	c.inputDevice = inputDevice
	if cfg.LowLatency {
		c.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		c.inputLatency = inputDevice.DefaultHighInputLatency
	}

	applog.Infof("Capture: Using %q (%d ch, %.0f Hz, %d frames/buffer, latency %s)",
		inputDevice.Name, cfg.InputChannels, sampleRate, cfg.FramesPerBuffer, c.inputLatency)
	return c, nil
}

// newCapture builds the buffers without touching PortAudio.
func newCapture(cfg config.AudioConfig, sampleRate float64, depth int) *Capture {
	pool := make([][]float64, depth+2)
	for i := range pool {
		pool[i] = make([]float64, cfg.FramesPerBuffer)
	}
	return &Capture{
		cfg:        cfg,
		sampleRate: sampleRate,
		pool:       pool,
		chunks:     make(chan []float64, depth),
	}
}

// Start opens and starts the input stream.
func (c *Capture) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: c.cfg.InputChannels,
			Device:   c.inputDevice,
			Latency:  c.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: c.cfg.FramesPerBuffer,
		SampleRate:      c.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, c.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	c.inputStream = stream

	if err := c.inputStream.Start(); err != nil {
		c.inputStream.Close()
		c.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	c.running.Store(true)
	return nil
}

// Stop stops and closes the input stream.
func (c *Capture) Stop() error {
	if c.inputStream == nil {
		return ErrNotRunning
	}
	c.running.Store(false)

	if err := c.inputStream.Stop(); err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := c.inputStream.Close(); err != nil {
		return fmt.Errorf("failed to close input stream: %w", err)
	}
	c.inputStream = nil

	applog.Infof("Capture: Stopped after %d buffers (%d dropped)", c.captured.Load(), c.dropped.Load())
	return nil
}

// Close stops the stream if it is running.
func (c *Capture) Close() error {
	if c.inputStream == nil {
		return nil
	}
	return c.Stop()
}

// Chunks exposes the queue of captured mono chunks. Each chunk is valid until
// the consumer receives the next one.
func (c *Capture) Chunks() <-chan []float64 {
	return c.chunks
}

// Drain passes every queued chunk to fn without blocking and returns the
// number of samples delivered.
func (c *Capture) Drain(fn func([]float64)) int {
	n := 0
	for {
		select {
		case chunk := <-c.chunks:
			fn(chunk)
			n += len(chunk)
		default:
			return n
		}
	}
}

// Next concatenates every queued chunk. A live stream never finishes, so done
// is always false. The result is valid until the next call.
func (c *Capture) Next(time.Time) ([]float64, bool) {
	c.pending = c.pending[:0]
	c.Drain(func(chunk []float64) {
		c.pending = append(c.pending, chunk...)
	})
	return c.pending, false
}

// Dropped returns the number of buffers discarded because the queue was full.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// SampleRate returns the capture rate in Hz.
func (c *Capture) SampleRate() float64 {
	return c.sampleRate
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - Never blocks
func (c *Capture) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	c.enqueue(in)
}

// enqueue down-mixes one interleaved callback buffer into the next pool slot
// and offers it to the consumer.
func (c *Capture) enqueue(in []float32) {
	buf := c.pool[c.next]
	n := Downmix(buf[:cap(buf)], in, c.cfg.InputChannels)

	select {
	case c.chunks <- buf[:n]:
		c.next = (c.next + 1) % len(c.pool)
		c.captured.Add(1)
	default:
		c.dropped.Add(1)
	}
}

// Downmix averages interleaved frames of in into dst and returns the number
// of mono samples written.
func Downmix(dst []float64, in []float32, channels int) int {
	if channels <= 1 {
		n := min(len(dst), len(in))
		for i := range n {
			dst[i] = float64(in[i])
		}
		return n
	}

	n := min(len(dst), len(in)/channels)
	scale := 1 / float64(channels)
	for i := range n {
		var sum float64
		for _, s := range in[i*channels : (i+1)*channels] {
			sum += float64(s)
		}
		dst[i] = sum * scale
	}
	return n
}
