package utils

import (
	"math"
	"sync"

	"analyser/internal/transport"
)

// MockTransport implements transport.Transport for testing.
type MockTransport struct {
	mu     sync.Mutex
	Frames []transport.Frame
	Closed bool
}

// Send stores a deep copy of the frame for later inspection.
func (m *MockTransport) Send(frame transport.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames = append(m.Frames, frame.Clone())
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Last returns the most recent frame and whether any was sent.
func (m *MockTransport) Last() (transport.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Frames) == 0 {
		return transport.Frame{}, false
	}
	return m.Frames[len(m.Frames)-1], true
}

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
	}
	return buffer
}

// GenerateSineWave returns size samples of a sinusoid.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// Chunks splits samples into consecutive slices of at most size samples.
func Chunks(samples []float64, size int) [][]float64 {
	var out [][]float64
	for len(samples) > 0 {
		n := min(size, len(samples))
		out = append(out, samples[:n])
		samples = samples[n:]
	}
	return out
}

// FindPeakBin returns the index of the largest value in [startBin, endBin].
func FindPeakBin(values []float64, startBin, endBin int) int {
	if len(values) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(values) {
		endBin = len(values) - 1
	}

	peakBin := startBin
	peakValue := values[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if values[bin] > peakValue {
			peakValue = values[bin]
			peakBin = bin
		}
	}

	return peakBin
}
