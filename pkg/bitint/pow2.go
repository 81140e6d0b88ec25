// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two arithmetic used to size and index
the lock-free sample rings that sit between the audio callbacks and the
engine loop.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Round a requested ring capacity up so indices can be masked
	capacity := bitint.NextPowerOfTwo(1000) // Returns 1024

	// Wrap a monotonically increasing cursor into the ring
	slot := bitint.Wrap(cursor, capacity)

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before measuring the bit length. Without the
subtraction an exact power of two would be doubled:

	size = 8, size-1 = 7 (0111), bits.Len = 3, 1<<3 = 8
	size = 8 without it (1000), bits.Len = 4, 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
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
	return int(1 << bits.Len64(uint64(size-1)))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
// Powers of 2 have exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Wrap maps a cursor onto a slot of a ring whose size is a power of two.
// The result is undefined when size is not a power of two.
func Wrap(cursor uint64, size int) int {
	return int(cursor & uint64(size-1))
}
