package ocean

import (
	_ "embed"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/pipeline"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"github.com/Carmen-Shannon/oxy-ocean/engine/ocean/gpu"
)

// Pipeline keys of the six ocean kernels.
const (
	PipelineKeySpectrum  = "ocean_spectrum"
	PipelineKeyButterfly = "ocean_butterfly"
	PipelineKeyModulate  = "ocean_modulate"
	PipelineKeyFFT       = "ocean_fft"
	PipelineKeyTranspose = "ocean_transpose"
	PipelineKeyUnpack    = "ocean_unpack"
)

// fieldLayers is the number of complex fields transformed together: height, and the packed
// horizontal displacement Dx + i·Dz.
const fieldLayers = 2

// resultPing is the ping-pong half holding the transformed field after 2·log2(N)+1 passes.
const resultPing = 1

var (
	//go:embed assets/spectrum.wgsl
	spectrumSource string

	//go:embed assets/butterfly.wgsl
	butterflySource string

	//go:embed assets/modulate.wgsl
	modulateSource string

	//go:embed assets/fft.wgsl
	fftSource string

	//go:embed assets/transpose.wgsl
	transposeSource string

	//go:embed assets/unpack.wgsl
	unpackSource string
)

// kernel pairs one WGSL kernel with its host emulation.
type kernel struct {
	key      string
	source   string
	emulator pipeline.Emulator
	// grid kernels run one invocation per field cell and accept the workgroup override
	grid bool
}

var kernels = []kernel{
	{key: PipelineKeySpectrum, source: spectrumSource, emulator: emulateSpectrum, grid: true},
	{key: PipelineKeyButterfly, source: butterflySource, emulator: emulateButterfly},
	{key: PipelineKeyModulate, source: modulateSource, emulator: emulateModulate, grid: true},
	{key: PipelineKeyFFT, source: fftSource, emulator: emulateFFT, grid: true},
	{key: PipelineKeyTranspose, source: transposeSource, emulator: emulateTranspose, grid: true},
	{key: PipelineKeyUnpack, source: unpackSource, emulator: emulateUnpack, grid: true},
}

// newPipelines parses every kernel and wraps it in a fresh pipeline. Pipelines hold device
// objects once registered, so each device gets its own set.
//
// Parameters:
//   - workgroupOverride: replaces the workgroup size of grid kernels when non-zero
//
// Returns:
//   - []pipeline.Pipeline: one pipeline per kernel
//   - error: an error if a kernel fails to parse
func newPipelines(workgroupOverride [3]uint32) ([]pipeline.Pipeline, error) {
	pipelines := make([]pipeline.Pipeline, 0, len(kernels))
	for _, k := range kernels {
		s, err := shader.NewShaderFromSource(k.key, k.source)
		if err != nil {
			return nil, fmt.Errorf("kernel %s: %w", k.key, err)
		}
		opts := []pipeline.PipelineBuilderOption{
			pipeline.WithComputeShader(s),
			pipeline.WithEmulator(k.emulator),
		}
		if k.grid && workgroupOverride != [3]uint32{} {
			opts = append(opts, pipeline.WithWorkgroupSize(workgroupOverride))
		}
		pipelines = append(pipelines, pipeline.NewPipeline(k.key, opts...))
	}
	return pipelines, nil
}

// validateWorkgroupOverride checks an override against the @workgroup_size compiled into each
// grid kernel. A larger override would dispatch fewer invocations than there are cells and leave
// part of the field unwritten on the GPU.
func validateWorkgroupOverride(override [3]uint32) error {
	if override == [3]uint32{} {
		return nil
	}
	for axis, v := range override {
		if v == 0 {
			return fmt.Errorf("%w: workgroup override %v has a zero axis %d", ErrInvalidConfiguration, override, axis)
		}
	}
	if override[2] > 1 {
		return fmt.Errorf("%w: workgroup override %v, grid kernels dispatch a single z layer", ErrInvalidConfiguration, override)
	}
	for _, k := range kernels {
		if !k.grid {
			continue
		}
		s, err := shader.NewShaderFromSource(k.key, k.source)
		if err != nil {
			return fmt.Errorf("kernel %s: %w", k.key, err)
		}
		compiled := s.WorkgroupSize()
		for axis := range override {
			if override[axis] > compiled[axis] {
				return fmt.Errorf("%w: workgroup override %v exceeds %s @workgroup_size %v",
					ErrInvalidConfiguration, override, k.key, compiled)
			}
		}
	}
	return nil
}

// oceanParams decodes the params uniform seen by an emulated kernel.
func oceanParams(b pipeline.EmulatedBinding) gpu.GPUOceanParams {
	return gpu.GPUOceanParams{
		Seed:          [2]int32{int32(b.U32(0)), int32(b.U32(1))},
		TileLength:    b.F32(2),
		Depth:         b.F32(3),
		Alpha:         b.F32(4),
		PeakFrequency: b.F32(5),
		WindSpeed:     b.F32(6),
		WindDirection: b.F32(7),
		Gamma:         b.F32(8),
		Gravity:       b.F32(9),
		Spread:        b.F32(10),
		SpreadNorm:    b.F32(11),
		Amplitude:     b.F32(12),
		Choppiness:    b.F32(13),
		HeightScale:   b.F32(14),
		GridSize:      b.U32(15),
		LogSize:       b.U32(16),
	}
}

// dispatchParams decodes the dispatch slot seen by an emulated kernel.
func dispatchParams(b pipeline.EmulatedBinding) gpu.GPUDispatchParams {
	return gpu.GPUDispatchParams{
		Stage:     b.U32(0),
		Ping:      b.U32(1),
		Direction: gpu.FFTDirection(b.U32(2)),
	}
}

// fieldIndex is the vec2 element index of (row, col) in one layer and ping-pong half of the
// field buffer.
func fieldIndex(n, layer, ping, row, col uint32) int {
	return int(((layer*2+ping)*n+row)*n + col)
}

// fieldValue reads one complex element of the field buffer.
func fieldValue(b pipeline.EmulatedBinding, i int) complex64 {
	v := b.Vec2(i)
	return complex(v[0], v[1])
}

// setFieldValue writes one complex element of the field buffer.
func setFieldValue(b pipeline.EmulatedBinding, i int, c complex64) {
	b.SetVec2(i, [2]float32{real(c), imag(c)})
}

// frameTime decodes the elapsed time from the frame uniform.
func frameTime(b pipeline.EmulatedBinding) float32 {
	return math.Float32frombits(b.U32(0))
}
