package common

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
)

// BytesToWords copies little-endian bytes into 32-bit words. Trailing bytes that do not
// fill a whole word are dropped.
//
// Parameters:
//   - data: the raw bytes, typically read back from the GPU
//
// Returns:
//   - []uint32: one word per 4 bytes of input
func BytesToWords(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words
}

// WordsToBytes is the inverse of BytesToWords.
func WordsToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// BytesToFloat32s copies little-endian bytes into float32 values.
//
// Parameters:
//   - data: the raw bytes, length a multiple of 4
//
// Returns:
//   - []float32: the decoded values
func BytesToFloat32s(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// Float32sToBytes encodes float32 values as little-endian bytes.
func Float32sToBytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// CExpI returns e^(i*theta) as a complex64.
func CExpI(theta float32) complex64 {
	return complex(math32.Cos(theta), math32.Sin(theta))
}

// CAbs returns the magnitude of c using float32 arithmetic.
func CAbs(c complex64) float32 {
	return math32.Sqrt(real(c)*real(c) + imag(c)*imag(c))
}

// Finite reports whether every value is neither NaN nor infinite.
//
// Parameters:
//   - values: the values to check
//
// Returns:
//   - bool: false if any value is NaN or ±Inf
func Finite(values ...float32) bool {
	for _, v := range values {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}
