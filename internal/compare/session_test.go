// SPDX-License-Identifier: MIT
package compare

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"analyser/internal/analysis"
	"analyser/internal/source"
	"analyser/pkg/utils"
)

const testSampleRate = 44100

func testSpecs() []Spec {
	ref := analysis.DefaultConfig()
	alt := analysis.DefaultConfig()
	alt.SmoothingTimeConstant = 0.5
	alt.MaxDecibels = -12
	return []Spec{{Name: "reference", Config: ref}, {Name: "alternate", Config: alt}}
}

type sliceSink struct {
	got [][]float64
	err error
}

func (s *sliceSink) WriteSamples(samples []float64) error {
	s.got = append(s.got, append([]float64(nil), samples...))
	return s.err
}

func TestNewSessionErrors(t *testing.T) {
	if _, err := NewSession(nil); !errors.Is(err, ErrNoAnalysers) {
		t.Errorf("NewSession(nil) error = %v, want ErrNoAnalysers", err)
	}

	specs := testSpecs()
	specs[1].Name = specs[0].Name
	if _, err := NewSession(specs); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate names error = %v, want ErrDuplicateName", err)
	}

	specs = testSpecs()
	specs[1].Config.FrameSize = 1000
	if _, err := NewSession(specs); !errors.Is(err, analysis.ErrFrameSize) {
		t.Errorf("bad frame size error = %v, want ErrFrameSize", err)
	}
}

func TestSessionSharesWindowTables(t *testing.T) {
	s, err := NewSession(testSpecs())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if s.Engine("reference").Window() != s.Engine("alternate").Window() {
		t.Error("engines with equal frame size should share one window table")
	}
	if s.Engine("missing") != nil {
		t.Error("Engine() of an unknown name should be nil")
	}
	if names := s.Names(); len(names) != 2 || names[0] != "reference" || names[1] != "alternate" {
		t.Errorf("Names() = %v", names)
	}
}

func TestSessionStep(t *testing.T) {
	mt := &utils.MockTransport{}
	sink := &sliceSink{}
	s, err := NewSession(testSpecs(), WithTransport(mt), WithSink(sink))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	samples := utils.GenerateSineWave(4096, testSampleRate, 440, 0.5)
	now := time.Unix(1700000000, 0)
	var snap Snapshot
	for i, chunk := range utils.Chunks(samples, 735) {
		snap = s.Step(chunk, now.Add(time.Duration(i)*time.Second/60))
	}

	if len(sink.got) != 6 {
		t.Errorf("sink received %d chunks, want 6", len(sink.got))
	}
	if len(snap.Frames) != 2 {
		t.Fatalf("snapshot has %d frames, want 2", len(snap.Frames))
	}
	if snap.Step != 5 {
		t.Errorf("Step = %d, want 5", snap.Step)
	}

	ref, alt := snap.Frames[0], snap.Frames[1]
	if ref.Analyser != "reference" || alt.Analyser != "alternate" || ref.Sequence != 6 {
		t.Errorf("frame metadata = %+v / %+v", ref.Analyser, alt.Analyser)
	}
	if len(ref.Bytes) != 512 || len(ref.Decibels) != 512 {
		t.Errorf("frame lengths = %d bytes, %d dB", len(ref.Bytes), len(ref.Decibels))
	}
	if peak := snap.PeakBin(0); peak != 10 {
		t.Errorf("PeakBin(0) = %d, want 10", peak)
	}

	// The alternate's lower ceiling saturates earlier, so at the peak it reads higher.
	if alt.Bytes[10] < ref.Bytes[10] {
		t.Errorf("alternate peak byte %d < reference %d", alt.Bytes[10], ref.Bytes[10])
	}

	for i, d := range snap.Diff {
		want := 100 * math.Abs(float64(ref.Bytes[i])-float64(alt.Bytes[i])) / 255
		if d != want {
			t.Fatalf("Diff[%d] = %g, want %g", i, d, want)
		}
	}
	if snap.DiffStats.Bins != 512 || snap.DiffStats.Max < snap.DiffStats.Mean {
		t.Errorf("DiffStats = %+v", snap.DiffStats)
	}

	// Two frames per step reached the transport, each a private copy.
	if len(mt.Frames) != 12 {
		t.Fatalf("transport received %d frames, want 12", len(mt.Frames))
	}
	last, _ := mt.Last()
	if last.Analyser != "alternate" || last.Timestamp != snap.Timestamp.UnixNano() {
		t.Errorf("last transported frame = %s @ %d", last.Analyser, last.Timestamp)
	}

	if err := s.Close(); err != nil || !mt.Closed {
		t.Errorf("Close() = %v, transport closed = %v", err, mt.Closed)
	}
}

func TestSessionSingleAnalyserHasNoDiff(t *testing.T) {
	s, err := NewSession(testSpecs()[:1])
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	snap := s.Step(utils.GenerateComplexWave(2048, testSampleRate), time.Now())
	if snap.Diff != nil {
		t.Errorf("single analyser produced a diff of %d bins", len(snap.Diff))
	}
}

func TestSessionSinkErrorDoesNotStopAnalysis(t *testing.T) {
	sink := &sliceSink{err: errors.New("disk full")}
	s, err := NewSession(testSpecs(), WithSink(sink))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	snap := s.Step(utils.GenerateSineWave(2048, testSampleRate, 440, 0.5), time.Now())
	if snap.PeakBin(0) != 10 {
		t.Errorf("PeakBin(0) = %d after sink error, want 10", snap.PeakBin(0))
	}
}

func TestSessionReset(t *testing.T) {
	s, err := NewSession(testSpecs())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	s.Step(utils.GenerateSineWave(4096, testSampleRate, 440, 0.5), time.Now())
	s.Reset()

	// Silence after reset: every bin reads 0 dB (byte 255).
	snap := s.Analyse(time.Now())
	for _, b := range snap.Frames[0].Bytes {
		if b != 255 {
			t.Fatalf("byte after Reset = %d, want 255", b)
		}
	}
}

func TestSnapshotCloneAndWrite(t *testing.T) {
	s, err := NewSession(testSpecs())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	snap := s.Step(utils.GenerateSineWave(2048, testSampleRate, 440, 0.5), time.Unix(0, 0)).Clone()
	before := snap.Frames[0].Bytes[10]
	s.Step(make([]float64, 2048), time.Unix(1, 0))
	if snap.Frames[0].Bytes[10] != before {
		t.Error("cloned snapshot changed when the session advanced")
	}

	var buf bytes.Buffer
	if _, err := snap.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"reference #1:", "alternate #1:", "diff%:", "diff mean="} {
		if !strings.Contains(out, want) {
			t.Errorf("WriteTo() output missing %q", want)
		}
	}
}

func TestPercentDiff(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want []float64
	}{
		{"Identical", []byte{0, 128, 255}, []byte{0, 128, 255}, []float64{0, 0, 0}},
		{"Extremes", []byte{0, 255}, []byte{255, 0}, []float64{100, 100}},
		{"Truncates", []byte{51, 0, 0}, []byte{0}, []float64{20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentDiff(make([]float64, 4), tt.a, tt.b)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("[%d] = %g, want %g", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSummarise(t *testing.T) {
	st := Summarise([]float64{0, 10, 0, 30})
	if st.Mean != 10 || st.Max != 30 || st.MaxBin != 3 || st.Exactly != 2 || st.Bins != 4 {
		t.Errorf("Summarise() = %+v", st)
	}
	if (Summarise(nil) != DiffStats{}) {
		t.Error("Summarise(nil) should be the zero value")
	}
}

func TestSessionPullFromPlayer(t *testing.T) {
	s, err := NewSession(testSpecs())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	clip := &source.Clip{Samples: utils.GenerateSineWave(testSampleRate, testSampleRate, 440, 0.5), SampleRate: testSampleRate}
	player := source.NewPlayer(clip)

	t0 := time.Unix(0, 0)
	player.Start(t0)
	var (
		snap Snapshot
		done bool
	)
	steps := 0
	for now := t0; !done; now = now.Add(time.Second / 60) {
		snap, done = s.Pull(player, now)
		steps++
	}
	// Tick rounding may need one extra step to release the final samples.
	if steps < 61 || steps > 62 {
		t.Errorf("one second at 60 Hz took %d steps", steps)
	}
	if snap.PeakBin(0) != 10 || snap.PeakBin(1) != 10 {
		t.Errorf("peaks = %d, %d, want 10", snap.PeakBin(0), snap.PeakBin(1))
	}
}
