// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-2 helpers used to size real-time
buffers: analysis transforms, history rings and processing blocks.

Every function is allocation free and constant time, so they are safe to
call from the audio callback.

Usage:

	// Size a history ring that can be indexed with a mask.
	ringSize := bitint.NextPowerOfTwo(fftSize + framesPerBuffer)
	mask := ringSize - 1

	// Reject an analysis size the FFT cannot use.
	if !bitint.IsPowerOfTwo(fftSize) { ... }

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of 2 are preserved: for 8, bits.Len(7) is 3 and 1<<3 is 8. Without
the subtraction bits.Len(8) is 4 and the result would double to 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
//
//	Input  Output
//	4      4      already a power of 2
//	5      8
//	0      1      zero and negative sizes round up to 1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of 2 <= size, or 0 when size < 1.
func PrevPowerOfTwo(size int) int {
	if size < 1 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of 2 has
// exactly one bit set, so clearing its lowest set bit with n&(n-1) gives 0.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the exponent of a power of 2, or -1 if n is not one.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
