// SPDX-License-Identifier: MIT
package compare

import (
	"fmt"
	"io"
	"strings"
	"time"

	"analyser/internal/transport"

	"gonum.org/v1/gonum/floats"
)

// Snapshot is the result of one Analyse call.
type Snapshot struct {
	Step      uint64
	Timestamp time.Time
	Frames    []transport.Frame
	Diff      []float64 // Percent difference of the first two analysers, nil with one analyser
	DiffStats DiffStats
}

// Clone returns a copy that stays valid after the session advances.
func (s Snapshot) Clone() Snapshot {
	frames := make([]transport.Frame, len(s.Frames))
	for i, f := range s.Frames {
		frames[i] = f.Clone()
	}
	s.Frames = frames
	if s.Diff != nil {
		s.Diff = append([]float64(nil), s.Diff...)
	}
	return s
}

// PeakBin returns the bin with the highest decibel value of frame i, or -1
// when the frame is empty or out of range.
func (s Snapshot) PeakBin(i int) int {
	if i < 0 || i >= len(s.Frames) || len(s.Frames[i].Decibels) == 0 {
		return -1
	}
	return floats.MaxIdx(s.Frames[i].Decibels)
}

// WriteTo prints the byte spectra and the difference row in a form that can
// be pasted into a spreadsheet or a plotting script.
func (s Snapshot) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "snapshot %d at %s\n", s.Step, s.Timestamp.Format(time.RFC3339Nano))
	for _, f := range s.Frames {
		fmt.Fprintf(&b, "%s #%d: %s\n", f.Analyser, f.Sequence, joinBytes(f.Bytes))
	}
	if s.Diff != nil {
		fmt.Fprintf(&b, "diff%%: %s\n", joinFloats(s.Diff))
		fmt.Fprintf(&b, "diff mean=%.3f%% max=%.3f%% at bin %d, identical bins %d/%d\n",
			s.DiffStats.Mean, s.DiffStats.Max, s.DiffStats.MaxBin, s.DiffStats.Exactly, s.DiffStats.Bins)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func joinBytes(v []byte) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ",")
}

func joinFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.2f", x)
	}
	return strings.Join(parts, ",")
}
