package common

import (
	"math"
	"testing"
)

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "first non-zero wins", values: []float64{0, 3, 4}, want: 3},
		{name: "leading value kept", values: []float64{1.5, 2}, want: 1.5},
		{name: "all zero", values: []float64{0, 0}, want: 0},
		{name: "empty", values: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Coalesce(tt.values...); got != tt.want {
				t.Errorf("Coalesce(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n    int
		want bool
	}{
		{0, false},
		{-4, false},
		{1, true},
		{2, true},
		{3, false},
		{256, true},
		{384, false},
		{1 << 20, true},
	}
	for _, tt := range tests {
		if got := IsPowerOfTwo(tt.n); got != tt.want {
			t.Errorf("IsPowerOfTwo(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestLog2(t *testing.T) {
	for k := range 16 {
		if got := Log2(1 << k); got != k {
			t.Errorf("Log2(%d) = %d, want %d", 1<<k, got, k)
		}
	}
}

func TestReverseBits(t *testing.T) {
	tests := []struct {
		v     uint32
		width int
		want  uint32
	}{
		{v: 0, width: 3, want: 0},
		{v: 1, width: 3, want: 4},
		{v: 3, width: 3, want: 6},
		{v: 6, width: 4, want: 6},
		{v: 1, width: 1, want: 1},
		{v: 0b0001, width: 4, want: 0b1000},
	}
	for _, tt := range tests {
		if got := ReverseBits(tt.v, tt.width); got != tt.want {
			t.Errorf("ReverseBits(%d, %d) = %d, want %d", tt.v, tt.width, got, tt.want)
		}
	}

	// Reversal is an involution on width bits.
	for v := range uint32(64) {
		if got := ReverseBits(ReverseBits(v, 6), 6); got != v {
			t.Errorf("ReverseBits twice of %d = %d", v, got)
		}
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		value, alignment, want uint64
	}{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{80, 16, 80},
		{7, 4, 8},
		{7, 0, 7},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.value, tt.alignment); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.value, tt.alignment, got, tt.want)
		}
	}
}

func TestDivCeil(t *testing.T) {
	tests := []struct {
		a, b, want uint32
	}{
		{0, 16, 0},
		{1, 16, 1},
		{16, 16, 1},
		{17, 16, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := DivCeil(tt.a, tt.b); got != tt.want {
			t.Errorf("DivCeil(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestWordsAndFloats(t *testing.T) {
	values := []float32{0, 1, -2.5, math.MaxFloat32, float32(math.Inf(-1))}
	data := Float32sToBytes(values)
	if len(data) != len(values)*4 {
		t.Fatalf("Float32sToBytes length = %d, want %d", len(data), len(values)*4)
	}
	got := BytesToFloat32s(data)
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("BytesToFloat32s[%d] = %v, want %v", i, got[i], values[i])
		}
	}

	words := BytesToWords(data)
	if w := words[1]; w != math.Float32bits(1) {
		t.Errorf("BytesToWords[1] = %#x, want %#x", w, math.Float32bits(1))
	}
	if back := WordsToBytes(words); string(back) != string(data) {
		t.Error("WordsToBytes did not restore the input bytes")
	}

	// trailing partial word is dropped
	if n := len(BytesToWords(make([]byte, 6))); n != 1 {
		t.Errorf("BytesToWords of 6 bytes returned %d words, want 1", n)
	}
}

func TestFinite(t *testing.T) {
	if !Finite(0, 1, -1e30) {
		t.Error("Finite reported finite values as non-finite")
	}
	if Finite(1, float32(math.NaN())) {
		t.Error("Finite accepted NaN")
	}
	if Finite(float32(math.Inf(1))) {
		t.Error("Finite accepted +Inf")
	}
}

func TestComplexHelpers(t *testing.T) {
	c := CExpI(math.Pi / 2)
	if math.Abs(float64(real(c))) > 1e-6 || math.Abs(float64(imag(c))-1) > 1e-6 {
		t.Errorf("CExpI(π/2) = %v, want i", c)
	}
	if got := CAbs(complex(3, -4)); got != 5 {
		t.Errorf("CAbs(3-4i) = %v, want 5", got)
	}
}

func TestTextureStagingData(t *testing.T) {
	tex := TextureStagingData{Texels: make([]float32, 3*2*4), Width: 3, Height: 2}
	tex.SetTexel(2, 1, [4]float32{1, 2, 3, 4})
	if got := tex.Texel(2, 1); got != [4]float32{1, 2, 3, 4} {
		t.Errorf("Texel(2, 1) = %v", got)
	}
	if got := tex.Texels[(1*3+2)*4]; got != 1 {
		t.Errorf("texel stored at wrong offset, first channel = %v", got)
	}
	if got := tex.Texel(0, 0); got != [4]float32{} {
		t.Errorf("Texel(0, 0) = %v, want zero", got)
	}
}
