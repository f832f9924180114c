// SPDX-License-Identifier: MIT
/*
Package dbscale provides the stateless scalar conversions used by the
spectrum analyser and its consumers: decibel/magnitude conversion and two
linear normalisers with different clamping policies.

Normalize and Val2Pct look alike but are not interchangeable:

	Normalize  maps first, then clamps the result into [0, 1].
	Val2Pct    clamps the input into [min, max] first, then maps. A degenerate
	           range (min == max) returns max unchanged.

Byte quantization of analyser output uses Normalize. Bar heights derived from
magnitudes use Val2Pct.
*/
package dbscale

import "math"

// Ln10Over20 is ln(10)/20, the exponent scale of Db2Mag.
const Ln10Over20 = 0.1151292546497023

// Db2Mag converts a decibel value into a linear magnitude.
func Db2Mag(db float64) float64 {
	return math.Exp(Ln10Over20 * db)
}

// ToDecibel converts a linear magnitude into decibels. Zero yields -Inf and
// negative magnitudes yield NaN; callers decide how to treat those.
func ToDecibel(magnitude float64) float64 {
	return 20 * math.Log10(magnitude)
}

// Normalize maps value linearly from [minValue, maxValue] onto [0, 1] and
// clamps the result.
func Normalize(value, minValue, maxValue float64) float64 {
	return Clamp((value-minValue)/(maxValue-minValue), 0, 1)
}

// Val2Pct clamps value into [minValue, maxValue] and returns its position in
// that range as a fraction. When minValue == maxValue it returns maxValue.
func Val2Pct(value, minValue, maxValue float64) float64 {
	if minValue == maxValue {
		return maxValue
	}

	v := value
	if value > maxValue {
		v = maxValue
	} else if value < minValue {
		v = minValue
	}

	return (v - minValue) / (maxValue - minValue)
}

// Clamp limits value to [minValue, maxValue].
func Clamp(value, minValue, maxValue float64) float64 {
	return math.Max(minValue, math.Min(value, maxValue))
}

// IsFinite reports whether v is neither NaN nor an infinity.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Finite returns v, or 0 when v is NaN or infinite.
func Finite(v float64) float64 {
	if IsFinite(v) {
		return v
	}
	return 0
}
