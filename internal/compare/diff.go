// SPDX-License-Identifier: MIT
package compare

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// PercentDiff writes 100*|a[i]-b[i]|/255 for i < min(len(dst), len(a), len(b))
// and returns the written prefix of dst.
func PercentDiff(dst []float64, a, b []byte) []float64 {
	n := min(len(dst), len(a), len(b))
	for i := range n {
		dst[i] = 100 * math.Abs(float64(a[i])-float64(b[i])) / 255
	}
	return dst[:n]
}

// DiffStats summarises a PercentDiff result.
type DiffStats struct {
	Mean    float64
	Max     float64
	MaxBin  int
	Bins    int
	Exactly int // Bins with zero difference
}

// Summarise computes DiffStats for diff. An empty diff yields the zero value.
func Summarise(diff []float64) DiffStats {
	if len(diff) == 0 {
		return DiffStats{}
	}
	idx := floats.MaxIdx(diff)
	st := DiffStats{
		Mean:   floats.Sum(diff) / float64(len(diff)),
		Max:    diff[idx],
		MaxBin: idx,
		Bins:   len(diff),
	}
	for _, v := range diff {
		if v == 0 {
			st.Exactly++
		}
	}
	return st
}
