// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"testing"

	"analyser/pkg/dbscale"
	"analyser/pkg/utils"
)

const (
	testFrameSize  = 1024
	testSampleRate = 44100
	testChunkSize  = 735 // One 60Hz display refresh at 44.1kHz.
)

// fixedSpectrum is a Transformer that ignores its input.
type fixedSpectrum []float64

func (f fixedSpectrum) Magnitudes(dst, _ []float64) {
	copy(dst, f)
}

func newTestEngine(t *testing.T, alpha float64, opts ...Option) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SmoothingTimeConstant = alpha
	e, err := NewEngine(cfg, opts...)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return e
}

func feed(e *Engine, samples []float64) {
	for _, chunk := range utils.Chunks(samples, testChunkSize) {
		e.Process(chunk)
	}
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		desc   string
		mutate func(*Config)
		want   error
	}{
		{"Frame size not power of two", func(c *Config) { c.FrameSize = 1000 }, ErrFrameSize},
		{"Frame size zero", func(c *Config) { c.FrameSize = 0 }, ErrFrameSize},
		{"Frame size one", func(c *Config) { c.FrameSize = 1 }, ErrFrameSize},
		{"Ring smaller than frame", func(c *Config) { c.RingCapacity = 512 }, ErrRingCapacity},
		{"Ring not power of two", func(c *Config) { c.RingCapacity = 40000 }, ErrRingCapacity},
		{"Smoothing below zero", func(c *Config) { c.SmoothingTimeConstant = -0.1 }, ErrSmoothing},
		{"Smoothing above one", func(c *Config) { c.SmoothingTimeConstant = 1.5 }, ErrSmoothing},
		{"Smoothing NaN", func(c *Config) { c.SmoothingTimeConstant = math.NaN() }, ErrSmoothing},
		{"Equal decibel bounds", func(c *Config) { c.MinDecibels = -30; c.MaxDecibels = -30 }, ErrDecibelRange},
		{"Inverted decibel bounds", func(c *Config) { c.MinDecibels = -6; c.MaxDecibels = -100 }, ErrDecibelRange},
		{"Zero sample rate", func(c *Config) { c.SampleRate = 0 }, ErrSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			e, err := NewEngine(cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewEngine() error = %v, want %v", err, tt.want)
			}
			if e != nil {
				t.Error("NewEngine() returned an engine alongside an error")
			}
		})
	}
}

func TestWindowTableShape(t *testing.T) {
	t.Parallel()
	w := NewWindowTable(testFrameSize)
	n := w.Len()
	if n != testFrameSize {
		t.Fatalf("Len() = %d, want %d", n, testFrameSize)
	}

	peak := 0.0
	for i := range n {
		c := w.At(i)
		if c < 0 || c > 1 {
			t.Fatalf("coefficient %d = %g outside [0,1]", i, c)
		}
		if d := math.Abs(c - w.At(n-1-i)); d > 1e-12 {
			t.Fatalf("asymmetric at %d: %g vs %g", i, c, w.At(n-1-i))
		}
		peak = math.Max(peak, c)
	}

	if w.At(0) > 1e-9 || w.At(n-1) > 1e-9 {
		t.Errorf("edges = %g, %g, want ~0", w.At(0), w.At(n-1))
	}
	if peak < 0.999 {
		t.Errorf("peak coefficient = %g, want ~1 near the centre", peak)
	}

	// Blackman formula spot check.
	i := n / 4
	want := 0.42 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1)) + 0.08*math.Cos(4*math.Pi*float64(i)/float64(n-1))
	if math.Abs(w.At(i)-want) > 1e-12 {
		t.Errorf("At(%d) = %g, want %g", i, w.At(i), want)
	}
}

func TestWindowApplyNeutralisesNonFinite(t *testing.T) {
	t.Parallel()
	w := NewWindowTable(8)
	src := []float64{math.Inf(1), 1, math.NaN(), 1, math.Inf(-1), 1, 1, 1}
	dst := make([]float64, 8)
	w.Apply(dst, src)

	for _, i := range []int{0, 2, 4} {
		if dst[i] != 0 {
			t.Errorf("dst[%d] = %g, want 0", i, dst[i])
		}
	}
	if dst[1] != w.At(1) {
		t.Errorf("dst[1] = %g, want %g", dst[1], w.At(1))
	}
}

func TestFourierMagnitudes(t *testing.T) {
	t.Parallel()
	const n = 64
	const bin = 8
	frame := make([]float64, n)
	for i := range frame {
		frame[i] = 0.75 * math.Cos(2*math.Pi*bin*float64(i)/n)
	}

	f := NewFourier(n)
	mags := make([]float64, n/2)
	f.Magnitudes(mags, frame)

	for i, m := range mags {
		want := 0.0
		if i == bin {
			want = 0.75
		}
		if math.Abs(m-want) > 1e-9 {
			t.Errorf("bin %d = %g, want %g", i, m, want)
		}
	}
}

func TestSineScenario(t *testing.T) {
	t.Parallel()
	signal := utils.GenerateSineWave(testSampleRate, testSampleRate, 440, 0.5)

	for _, alpha := range []float64{0, DefaultSmoothingTimeConstant} {
		e := newTestEngine(t, alpha)
		feed(e, signal)

		out := make([]float64, e.FrequencyBinCount())
		e.FloatFrequencyData(out)

		peak := utils.FindPeakBin(out, 0, len(out)-1)
		if peak != 10 {
			t.Fatalf("alpha %.2f: peak bin = %d, want 10", alpha, peak)
		}
		if out[9] >= out[10] || out[11] >= out[10] {
			t.Errorf("alpha %.2f: neighbours %g, %g not below peak %g", alpha, out[9], out[11], out[10])
		}

		for i, v := range out {
			if math.Abs(float64(i-peak)) < 8 {
				continue
			}
			if v > out[peak]-40 {
				t.Errorf("alpha %.2f: far bin %d = %.1f dB, peak %.1f dB", alpha, i, v, out[peak])
			}
		}

		if alpha == 0 {
			// amplitude * coherent gain of the Blackman window.
			want := dbscale.ToDecibel(0.5 * 0.42)
			if math.Abs(out[peak]-want) > 1 {
				t.Errorf("peak = %.2f dB, want %.2f±1", out[peak], want)
			}
		}
	}
}

func TestNoSmoothingMatchesTransform(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, 0)
	signal := utils.GenerateComplexWave(4096, testSampleRate)
	feed(e, signal)

	out := make([]float64, e.FrequencyBinCount())
	e.FloatFrequencyData(out)

	frame := make([]float64, testFrameSize)
	copy(frame, signal[len(signal)-testFrameSize:])
	e.Window().Apply(frame, frame)
	mags := make([]float64, testFrameSize/2)
	NewFourier(testFrameSize).Magnitudes(mags, frame)

	for i := range out {
		if want := dbscale.Finite(dbscale.ToDecibel(mags[i])); math.Abs(out[i]-want) > 1e-9 {
			t.Fatalf("bin %d = %g, want unsmoothed %g", i, out[i], want)
		}
	}
}

func TestSmoothingConvergence(t *testing.T) {
	t.Parallel()
	const alpha = 0.8
	signal := utils.GenerateSineWave(8192, testSampleRate, 1000, 0.5)

	reference := newTestEngine(t, 0)
	feed(reference, signal)
	truth := make([]float64, reference.FrequencyBinCount())
	reference.FloatFrequencyData(truth)

	e := newTestEngine(t, alpha)
	feed(e, signal)
	out := make([]float64, e.FrequencyBinCount())

	bin := utils.FindPeakBin(truth, 0, len(truth)-1)
	m := dbscale.Db2Mag(truth[bin])

	prev := math.Inf(1)
	for k := 1; k <= 12; k++ {
		e.FloatFrequencyData(out)
		deviation := m - dbscale.Db2Mag(out[bin])
		want := math.Pow(alpha, float64(k)) * m
		if math.Abs(deviation-want) > 1e-9*m {
			t.Fatalf("call %d: deviation %g, want alpha^k*m = %g", k, deviation, want)
		}
		if deviation >= prev {
			t.Fatalf("call %d: deviation did not shrink (%g >= %g)", k, deviation, prev)
		}
		prev = deviation
	}
}

func TestSmoothingFrozenAtOne(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, 1)
	feed(e, utils.GenerateSineWave(4096, testSampleRate, 440, 0.5))

	out := make([]float64, e.FrequencyBinCount())
	for range 3 {
		e.FloatFrequencyData(out)
	}
	for i, v := range out {
		// log10(0) is -Inf, written as 0.
		if v != 0 {
			t.Fatalf("bin %d = %g, want 0 with frozen smoothing", i, v)
		}
	}
}

// Silence produces -Inf dB, which is written as 0 dB and therefore quantizes
// to the top of the byte range.
func TestSilenceQuantizesToZeroDecibels(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, DefaultSmoothingTimeConstant)

	floats := make([]float64, e.FrequencyBinCount())
	e.FloatFrequencyData(floats)
	for i, v := range floats {
		if v != 0 {
			t.Fatalf("bin %d = %g before any input, want 0", i, v)
		}
	}

	bytes := make([]byte, e.FrequencyBinCount())
	e.ByteFrequencyData(bytes)
	for i, v := range bytes {
		if v != 255 {
			t.Fatalf("byte bin %d = %d before any input, want 255", i, v)
		}
	}
}

func TestCorruptSamplesAreNeutralised(t *testing.T) {
	t.Parallel()
	clean := utils.GenerateSineWave(4096, testSampleRate, 2000, 0.3)
	zeroed := append([]float64(nil), clean...)
	corrupt := append([]float64(nil), clean...)

	for _, i := range []int{4000, 4001, 4090} {
		zeroed[i] = 0
	}
	corrupt[4000] = math.NaN()
	corrupt[4001] = math.Inf(1)
	corrupt[4090] = math.Inf(-1)

	a := newTestEngine(t, 0.3)
	b := newTestEngine(t, 0.3)
	feed(a, zeroed)
	feed(b, corrupt)

	want := make([]float64, a.FrequencyBinCount())
	got := make([]float64, b.FrequencyBinCount())
	a.FloatFrequencyData(want)
	b.FloatFrequencyData(got)

	for i := range got {
		if math.IsNaN(got[i]) || math.IsInf(got[i], 0) {
			t.Fatalf("bin %d is not finite: %g", i, got[i])
		}
		if got[i] != want[i] {
			t.Fatalf("bin %d = %g, want %g (corrupt samples treated as 0)", i, got[i], want[i])
		}
	}
}

func TestOutputTruncation(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, 0.5)
	feed(e, utils.GenerateComplexWave(4096, testSampleRate))
	bins := e.FrequencyBinCount()

	floats := make([]float64, bins+88)
	for i := range floats {
		floats[i] = 7
	}
	e.FloatFrequencyData(floats)
	for i := bins; i < len(floats); i++ {
		if floats[i] != 7 {
			t.Fatalf("float element %d beyond bin count was modified: %g", i, floats[i])
		}
	}

	bytes := make([]byte, bins+10)
	for i := range bytes {
		bytes[i] = 7
	}
	e.ByteFrequencyData(bytes)
	for i := bins; i < len(bytes); i++ {
		if bytes[i] != 7 {
			t.Fatalf("byte element %d beyond bin count was modified: %d", i, bytes[i])
		}
	}

	// Shorter buffers are filled without complaint.
	e.FloatFrequencyData(make([]float64, 3))
	e.ByteFrequencyData(make([]byte, 0))
}

func TestShortOutputOnlyAdvancesWrittenBins(t *testing.T) {
	t.Parallel()
	const alpha = 0.5
	signal := utils.GenerateSineWave(4096, testSampleRate, 440, 0.5)

	reference := newTestEngine(t, 0)
	feed(reference, signal)
	truth := make([]float64, reference.FrequencyBinCount())
	reference.FloatFrequencyData(truth)

	e := newTestEngine(t, alpha)
	feed(e, signal)
	e.FloatFrequencyData(make([]float64, 4))
	e.FloatFrequencyData(make([]float64, 4))
	out := make([]float64, e.FrequencyBinCount())
	e.FloatFrequencyData(out)

	check := func(bin, calls int) {
		m := dbscale.Db2Mag(truth[bin])
		want := (1 - math.Pow(alpha, float64(calls))) * m
		if got := dbscale.Db2Mag(out[bin]); math.Abs(got-want) > 1e-9*m {
			t.Errorf("bin %d after %d smoothing steps = %g, want %g", bin, calls, got, want)
		}
	}
	check(2, 3)
	check(10, 1)
}

func TestByteQuantizationBounds(t *testing.T) {
	t.Parallel()
	spectrum := fixedSpectrum{
		dbscale.Db2Mag(-100), // At min
		dbscale.Db2Mag(-6),   // At max
		dbscale.Db2Mag(-140), // Below min
		1,                    // 0 dB, above max
		dbscale.Db2Mag(-76.5),
	}

	e := newTestEngine(t, 0, WithTransformer(spectrum))
	out := make([]byte, len(spectrum))
	e.ByteFrequencyData(out)

	want := []byte{0, 255, 0, 255, 64}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("byte %d = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestQuantizeMatchesByteData(t *testing.T) {
	t.Parallel()
	samples := utils.GenerateComplexWave(4096, testSampleRate)

	a := newTestEngine(t, 0.55)
	b := newTestEngine(t, 0.55)
	feed(a, samples)
	feed(b, samples)

	want := make([]byte, a.FrequencyBinCount())
	a.ByteFrequencyData(want)

	db := make([]float64, b.FrequencyBinCount())
	got := make([]byte, b.FrequencyBinCount())
	b.FloatFrequencyData(db)
	b.Quantize(got, db)

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bin %d: Quantize = %d, ByteFrequencyData = %d", i, got[i], want[i])
		}
	}

	// Quantize alone must not advance smoothing.
	again := make([]float64, b.FrequencyBinCount())
	a.FloatFrequencyData(db)
	b.FloatFrequencyData(again)
	for i := range db {
		if db[i] != again[i] {
			t.Fatalf("bin %d diverged after Quantize: %g vs %g", i, again[i], db[i])
		}
	}
}

func TestIndependentEngines(t *testing.T) {
	t.Parallel()
	shared := NewWindowTable(testFrameSize)

	refCfg := DefaultConfig()
	altCfg := DefaultConfig()
	altCfg.SmoothingTimeConstant = 0.5
	altCfg.MaxDecibels = -12

	ref, err := NewEngine(refCfg, WithWindow(shared))
	if err != nil {
		t.Fatal(err)
	}
	alt, err := NewEngine(altCfg, WithWindow(shared))
	if err != nil {
		t.Fatal(err)
	}
	if ref.Window() != alt.Window() {
		t.Error("engines should share the window table")
	}

	signal := utils.GenerateComplexWave(8192, testSampleRate)
	feed(ref, signal)
	feed(alt, signal)

	a := make([]byte, ref.FrequencyBinCount())
	b := make([]byte, alt.FrequencyBinCount())
	ref.ByteFrequencyData(a)
	alt.ByteFrequencyData(b)

	differ := false
	for i := range a {
		if a[i] != b[i] {
			differ = true
			break
		}
	}
	if !differ {
		t.Error("different configurations produced identical byte spectra")
	}

	if _, err := NewEngine(DefaultConfig(), WithWindow(NewWindowTable(512))); !errors.Is(err, ErrWindowLength) {
		t.Errorf("mismatched window table error = %v, want ErrWindowLength", err)
	}
}

func TestFloatTimeDomainData(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, 0)
	samples := make([]float64, 2000)
	for i := range samples {
		samples[i] = float64(i)
	}
	e.Process(samples)

	out := make([]float64, 4)
	e.FloatTimeDomainData(out)
	for i, v := range out {
		if want := float64(2000 - testFrameSize + i); v != want {
			t.Errorf("out[%d] = %g, want %g", i, v, want)
		}
	}
}

func TestFrequencyForBin(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, 0)
	if got, want := e.FrequencyForBin(10), 10*44100.0/1024; math.Abs(got-want) > 1e-9 {
		t.Errorf("FrequencyForBin(10) = %g, want %g", got, want)
	}
	if e.FrequencyForBin(-1) != 0 || e.FrequencyForBin(512) != 0 {
		t.Error("out of range bins should map to 0 Hz")
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, 0.9)
	feed(e, utils.GenerateSineWave(4096, testSampleRate, 440, 0.5))
	e.FloatFrequencyData(make([]float64, e.FrequencyBinCount()))
	e.Reset()

	out := make([]float64, e.FrequencyBinCount())
	e.FloatFrequencyData(out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("bin %d = %g after Reset, want 0", i, v)
		}
	}
}

func TestEngineHotPath(t *testing.T) {
	e := newTestEngine(t, DefaultSmoothingTimeConstant)
	chunk := utils.GenerateComplexWave(testChunkSize, testSampleRate)
	floats := make([]float64, e.FrequencyBinCount())
	bytes := make([]byte, e.FrequencyBinCount())

	// Warm-up call.
	e.Process(chunk)
	e.ByteFrequencyData(bytes)

	allocs := testing.AllocsPerRun(100, func() {
		e.Process(chunk)
		e.FloatFrequencyData(floats)
		e.ByteFrequencyData(bytes)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in engine hot path, got %.1f", allocs)
	}
}

func BenchmarkByteFrequencyData(b *testing.B) {
	e, _ := NewEngine(DefaultConfig())
	chunk := utils.GenerateComplexWave(testChunkSize, testSampleRate)
	out := make([]byte, e.FrequencyBinCount())

	b.ReportAllocs()
	for b.Loop() {
		e.Process(chunk)
		e.ByteFrequencyData(out)
	}
}
