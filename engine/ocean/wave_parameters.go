package ocean

import (
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-ocean/common"
	"github.com/Carmen-Shannon/oxy-ocean/engine/ocean/gpu"
)

// ErrInvalidConfiguration is returned when WaveParameters fail validation. It is reported
// before any device resource is allocated.
var ErrInvalidConfiguration = errors.New("ocean: invalid configuration")

const (
	// DefaultGravity is the gravitational acceleration in m/s².
	DefaultGravity = 9.81

	// DefaultGamma is the JONSWAP peak enhancement factor.
	DefaultGamma = 3.3

	// DefaultSpread is the directional spreading exponent s of cos^{2s}(θ/2).
	DefaultSpread = 8
)

// WaveParameters configures one ocean simulation run. The value is immutable once passed to
// NewOrchestrator. Changing GridSize requires a full rebuild.
type WaveParameters struct {
	// WindSpeed is the wind speed at 10 m above the surface in m/s.
	WindSpeed float64
	// FetchLength is the distance over which the wind has blown in meters.
	FetchLength float64
	// TileLength is the world size of the periodic ocean tile in meters.
	TileLength float64
	// GridSize is the number of samples along each tile edge. Must be a power of two, at least 2.
	GridSize int
	// Seed keys the random phase of every spectrum cell.
	Seed [2]int32

	// Gravity defaults to DefaultGravity when zero.
	Gravity float64
	// WindDirection is the direction the wind blows towards, in radians from +x.
	WindDirection float64
	// Depth is the water depth in meters. Zero means deep water.
	Depth float64
	// Gamma defaults to DefaultGamma when zero.
	Gamma float64
	// Spread defaults to DefaultSpread when zero.
	Spread float64
	// Amplitude scales every spectral amplitude. Defaults to 1.
	Amplitude float64
	// HeightScale scales the unpacked height. Defaults to 1.
	HeightScale float64
	// Choppiness scales the horizontal displacement and is used as given. Zero leaves a purely
	// vertical surface. DefaultWaveParameters sets 1.
	Choppiness float64
}

// DefaultWaveParameters returns parameters for a 20 m/s wind over a 550 km fetch on a
// 50 m tile sampled at 128×128.
func DefaultWaveParameters() WaveParameters {
	return WaveParameters{
		WindSpeed:   20,
		FetchLength: 550000,
		TileLength:  50,
		GridSize:    128,
		Seed:        [2]int32{123, 123},
		Choppiness:  1,
	}.WithDefaults()
}

// WithDefaults returns a copy of p with every zero tunable replaced by its default. Choppiness
// has no default.
//
// Returns:
//   - WaveParameters: the completed parameters
func (p WaveParameters) WithDefaults() WaveParameters {
	p.Gravity = common.Coalesce(p.Gravity, DefaultGravity)
	p.Gamma = common.Coalesce(p.Gamma, DefaultGamma)
	p.Spread = common.Coalesce(p.Spread, DefaultSpread)
	p.Amplitude = common.Coalesce(p.Amplitude, 1)
	p.HeightScale = common.Coalesce(p.HeightScale, 1)
	return p
}

// Validate checks the parameters after applying defaults.
//
// Returns:
//   - error: an error wrapping ErrInvalidConfiguration describing the first violation, or nil
func (p WaveParameters) Validate() error {
	p = p.WithDefaults()

	values := []struct {
		name  string
		value float64
	}{
		{"wind speed", p.WindSpeed},
		{"fetch length", p.FetchLength},
		{"tile length", p.TileLength},
		{"gravity", p.Gravity},
		{"wind direction", p.WindDirection},
		{"depth", p.Depth},
		{"gamma", p.Gamma},
		{"spread", p.Spread},
		{"amplitude", p.Amplitude},
		{"height scale", p.HeightScale},
		{"choppiness", p.Choppiness},
	}
	for _, v := range values {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidConfiguration, v.name)
		}
	}

	switch {
	case p.WindSpeed <= 0:
		return fmt.Errorf("%w: wind speed must be positive, got %v", ErrInvalidConfiguration, p.WindSpeed)
	case p.FetchLength <= 0:
		return fmt.Errorf("%w: fetch length must be positive, got %v", ErrInvalidConfiguration, p.FetchLength)
	case p.TileLength <= 0:
		return fmt.Errorf("%w: tile length must be positive, got %v", ErrInvalidConfiguration, p.TileLength)
	case p.Gravity <= 0:
		return fmt.Errorf("%w: gravity must be positive, got %v", ErrInvalidConfiguration, p.Gravity)
	case p.GridSize < 2 || !common.IsPowerOfTwo(p.GridSize):
		return fmt.Errorf("%w: grid size must be a power of two >= 2, got %d", ErrInvalidConfiguration, p.GridSize)
	case p.Depth < 0:
		return fmt.Errorf("%w: depth must not be negative, got %v", ErrInvalidConfiguration, p.Depth)
	case p.Gamma < 1:
		return fmt.Errorf("%w: gamma must be >= 1, got %v", ErrInvalidConfiguration, p.Gamma)
	case p.Spread <= 0:
		return fmt.Errorf("%w: spread must be positive, got %v", ErrInvalidConfiguration, p.Spread)
	}
	return nil
}

// Alpha returns the JONSWAP scale factor for the wind and fetch.
func (p WaveParameters) Alpha() float64 {
	return JONSWAPAlpha(p.WindSpeed, p.FetchLength, common.Coalesce(p.Gravity, DefaultGravity))
}

// PeakAngularFrequency returns the JONSWAP spectral peak for the wind and fetch, in rad/s.
func (p WaveParameters) PeakAngularFrequency() float64 {
	return JONSWAPPeakAngularFrequency(p.WindSpeed, p.FetchLength, common.Coalesce(p.Gravity, DefaultGravity))
}

// LogSize returns log2(GridSize), the number of FFT stages per pass.
func (p WaveParameters) LogSize() int {
	return common.Log2(p.GridSize)
}

// GPU packs the parameters and their derived constants into the static kernel uniform.
//
// Returns:
//   - gpu.GPUOceanParams: the uniform contents
func (p WaveParameters) GPU() gpu.GPUOceanParams {
	p = p.WithDefaults()
	return gpu.GPUOceanParams{
		Seed:          p.Seed,
		TileLength:    float32(p.TileLength),
		Depth:         float32(p.Depth),
		Alpha:         float32(p.Alpha()),
		PeakFrequency: float32(p.PeakAngularFrequency()),
		WindSpeed:     float32(p.WindSpeed),
		WindDirection: float32(p.WindDirection),
		Gamma:         float32(p.Gamma),
		Gravity:       float32(p.Gravity),
		Spread:        float32(p.Spread),
		SpreadNorm:    float32(SpreadNormalization(p.Spread)),
		Amplitude:     float32(p.Amplitude),
		Choppiness:    float32(p.Choppiness),
		HeightScale:   float32(p.HeightScale),
		GridSize:      uint32(p.GridSize),
		LogSize:       uint32(p.LogSize()),
	}
}
