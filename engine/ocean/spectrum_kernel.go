package ocean

import (
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/pipeline"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"github.com/Carmen-Shannon/oxy-ocean/engine/ocean/gpu"
	"github.com/chewxy/math32"
)

// pcg is the PCG output permutation used as an integer hash. It wraps like WGSL u32 arithmetic.
func pcg(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

// randomPhase returns the phase in [0, 2π) of the spectrum cell (x, y) for a seed.
func randomPhase(x, y uint32, seed [2]int32) float32 {
	s := pcg(uint32(seed[0]) ^ pcg(uint32(seed[1])))
	h := pcg(x ^ pcg(y^s))
	return float32(h>>8) / 16777216 * 2 * math32.Pi
}

// waveVector maps a frequency grid cell to its wave vector, wrapping indices >= n/2 to negative
// frequencies.
func waveVector(x, y uint32, p gpu.GPUOceanParams) (float32, float32) {
	n := int32(p.GridSize)
	mx, my := int32(x), int32(y)
	if mx >= n/2 {
		mx -= n
	}
	if my >= n/2 {
		my -= n
	}
	scale := 2 * math32.Pi / p.TileLength
	return float32(mx) * scale, float32(my) * scale
}

func jonswap32(omega float32, p gpu.GPUOceanParams) float32 {
	peak := p.PeakFrequency
	if peak/omega > 5 {
		return 0
	}
	sigma := float32(0.07)
	if omega > peak {
		sigma = 0.09
	}
	d := omega - peak
	r := math32.Exp(-d * d / (2 * sigma * sigma * peak * peak))
	ratio := peak / omega
	g := p.Gravity
	return p.Alpha * g * g / math32.Pow(omega, 5) * math32.Exp(-1.25*math32.Pow(ratio, 4)) * math32.Pow(p.Gamma, r)
}

func tma32(omega float32, p gpu.GPUOceanParams) float32 {
	if p.Depth <= 0 {
		return 1
	}
	wh := omega * math32.Sqrt(p.Depth/p.Gravity)
	switch {
	case wh <= 1:
		return 0.5 * wh * wh
	case wh < 2:
		return 1 - 0.5*(2-wh)*(2-wh)
	default:
		return 1
	}
}

// initialAmplitude computes h0 of one cell: a deterministic amplitude from the directional
// spectrum with a hashed phase.
func initialAmplitude(x, y uint32, p gpu.GPUOceanParams) complex64 {
	kx, kz := waveVector(x, y, p)
	k := math32.Hypot(kx, kz)
	if k < 1e-6 {
		return 0
	}
	omega := math32.Sqrt(p.Gravity * k)
	dOmegaDk := p.Gravity / (2 * omega)
	theta := math32.Atan2(kz, kx) - p.WindDirection
	spread := p.SpreadNorm * math32.Pow(math32.Abs(math32.Cos(theta*0.5)), 2*p.Spread)
	density := jonswap32(omega, p) * tma32(omega, p) * spread * dOmegaDk / k
	dk := 2 * math32.Pi / p.TileLength
	amplitude := p.Amplitude * math32.Sqrt(2*density*dk*dk)
	phase := randomPhase(x, y, p.Seed)
	return complex(amplitude*math32.Cos(phase), amplitude*math32.Sin(phase))
}

// emulateSpectrum mirrors spectrum.wgsl.
func emulateSpectrum(b pipeline.EmulatedBindings, id [3]uint32) {
	p := oceanParams(b[shader.AnnotationArgParams])
	n := p.GridSize
	if id[0] >= n || id[1] >= n {
		return
	}
	a := initialAmplitude(id[0], id[1], p)
	m := initialAmplitude((n-id[0])%n, (n-id[1])%n, p)
	b[shader.AnnotationArgSpectrum].SetTexel(id[0], id[1], [4]float32{real(a), imag(a), real(m), -imag(m)})
}
