package common

import "math/bits"

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// IsPowerOfTwo reports whether n is a positive power of two.
//
// Parameters:
//   - n: the value to test
//
// Returns:
//   - bool: true if n is 1, 2, 4, 8, ...
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the base-2 logarithm of a power of two. The result is undefined for other values.
//
// Parameters:
//   - n: a positive power of two
//
// Returns:
//   - int: the exponent k such that 1<<k == n
func Log2(n int) int {
	return bits.Len(uint(n)) - 1
}

// ReverseBits reverses the lowest width bits of v. Used for the bit-reversal permutation of radix-2 FFTs.
//
// Parameters:
//   - v: the value whose low bits are reversed
//   - width: the number of significant bits (1..32)
//
// Returns:
//   - uint32: the reversed value
func ReverseBits(v uint32, width int) uint32 {
	return bits.Reverse32(v) >> (32 - uint(width))
}

// AlignUp rounds value up to the next multiple of alignment, which must be a power of two.
//
// Parameters:
//   - value: the value to align
//   - alignment: the required alignment
//
// Returns:
//   - uint64: value rounded up to a multiple of alignment
func AlignUp(value, alignment uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// DivCeil returns a/b rounded up. Used to turn an element count into a workgroup count.
func DivCeil(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
