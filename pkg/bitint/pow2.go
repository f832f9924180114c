/*
Package bitint provides the power-of-two helpers used to validate ring
buffer capacities and analysis frame sizes. Both rely on the fact that a
power of two has exactly one bit set.

Usage:

	// Round a requested capacity up to a valid one
	capacity := bitint.NextPowerOfTwo(44100) // Returns 65536

	// Reject frame sizes the FFT cannot use
	ok := bitint.IsPowerOfTwo(frameSize)
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Subtracting one
// first keeps exact powers of two unchanged. Sizes <= 0 return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
