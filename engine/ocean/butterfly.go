package ocean

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ocean/common"
	"github.com/Carmen-Shannon/oxy-ocean/engine/ocean/gpu"
	"github.com/chewxy/math32"
)

// butterflyEntry computes the radix-2 decimation-in-time butterfly producing output index y
// at stage s of an n-point transform. The output is in[a] + w·in[b]. Stage 0 reads the
// bit-reversed permutation of its input, so no separate reordering pass exists.
func butterflyEntry(stage, y uint32, n uint32, logN int) gpu.GPUButterflyEntry {
	span := uint32(1) << stage
	k := (y * (n >> (stage + 1))) % n
	angle := -2 * math32.Pi * float32(k) / float32(n)

	var a, b uint32
	if y%(2*span) < span {
		a, b = y, y+span
	} else {
		a, b = y-span, y
	}
	if stage == 0 {
		a = common.ReverseBits(a, logN)
		b = common.ReverseBits(b, logN)
	}
	return gpu.GPUButterflyEntry{
		Twiddle: [2]float32{math32.Cos(angle), math32.Sin(angle)},
		Indices: [2]uint32{a, b},
	}
}

// BuildButterflyTable precomputes the butterfly table of an n-point FFT: log2(n)·n entries,
// indexed stage·n + y.
//
// Parameters:
//   - n: the transform length, a power of two >= 2
//
// Returns:
//   - []gpu.GPUButterflyEntry: the table
//   - error: an error wrapping ErrInvalidConfiguration if n is not a power of two >= 2
func BuildButterflyTable(n int) ([]gpu.GPUButterflyEntry, error) {
	if n < 2 || !common.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: butterfly size must be a power of two >= 2, got %d", ErrInvalidConfiguration, n)
	}
	logN := common.Log2(n)
	table := make([]gpu.GPUButterflyEntry, 0, logN*n)
	for s := range logN {
		for y := range n {
			table = append(table, butterflyEntry(uint32(s), uint32(y), uint32(n), logN))
		}
	}
	return table, nil
}

// butterflyStage applies one stage of the table to in, writing out.
func butterflyStage(table []gpu.GPUButterflyEntry, stage int, in, out []complex64, inverse bool) {
	n := len(in)
	for y := range n {
		e := table[stage*n+y]
		w := complex(e.Twiddle[0], e.Twiddle[1])
		if inverse {
			w = complex(real(w), -imag(w))
		}
		out[y] = in[e.Indices[0]] + w*in[e.Indices[1]]
	}
}

// FFT replays the butterfly table over a copy of data: the unnormalized forward transform, or
// with inverse set the unnormalized inverse. It mirrors the device FFT kernel stage for stage.
//
// Parameters:
//   - table: a table built by BuildButterflyTable for len(data)
//   - data: the input, left untouched
//   - inverse: true to conjugate every twiddle
//
// Returns:
//   - []complex64: the transform
func FFT(table []gpu.GPUButterflyEntry, data []complex64, inverse bool) []complex64 {
	n := len(data)
	ping := append([]complex64(nil), data...)
	pong := make([]complex64, n)
	for s := range common.Log2(n) {
		butterflyStage(table, s, ping, pong, inverse)
		ping, pong = pong, ping
	}
	return ping
}

// FFT2D replays the device's separable 2D transform over an n×n row-major field: a row pass,
// a transpose and a second row pass. Like the device, it leaves the result transposed, so
// output index x·n + z holds the sample of input row z, column x. Applying it twice restores
// the input orientation, scaled by n² when the directions are opposite.
//
// Parameters:
//   - table: a table built by BuildButterflyTable for n
//   - data: the n×n input, left untouched
//   - n: the field size
//   - inverse: true to conjugate every twiddle
//
// Returns:
//   - []complex64: the transposed transform
func FFT2D(table []gpu.GPUButterflyEntry, data []complex64, n int, inverse bool) []complex64 {
	rows := make([]complex64, n*n)
	for r := range n {
		copy(rows[r*n:(r+1)*n], FFT(table, data[r*n:(r+1)*n], inverse))
	}
	transposed := make([]complex64, n*n)
	for r := range n {
		for c := range n {
			transposed[c*n+r] = rows[r*n+c]
		}
	}
	out := make([]complex64, n*n)
	for r := range n {
		copy(out[r*n:(r+1)*n], FFT(table, transposed[r*n:(r+1)*n], inverse))
	}
	return out
}
