// Package gpu holds the host-side mirrors of the WGSL structs shared by the ocean kernels.
// Every struct has an embedded WGSL source that the shader pre-processor injects through
// //@oxy:include, so the Go and WGSL layouts are declared side by side.
package gpu

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// DispatchSlotStride is the byte stride between per-dispatch DispatchParams slots in the dispatch
// uniform buffer. It matches the WebGPU default minUniformBufferOffsetAlignment.
const DispatchSlotStride = 256

// GPUOceanParamsSource is the canonical WGSL definition of the OceanParams struct.
// Matches GPUOceanParams layout exactly (80 bytes).
//
//go:embed assets/ocean_params.wgsl
var GPUOceanParamsSource string

// GPUFrameUniformSource is the canonical WGSL definition of the FrameUniform struct.
//
//go:embed assets/frame_uniform.wgsl
var GPUFrameUniformSource string

// GPUDispatchParamsSource is the canonical WGSL definition of the DispatchParams struct.
//
//go:embed assets/dispatch_params.wgsl
var GPUDispatchParamsSource string

// GPUButterflyEntrySource is the canonical WGSL definition of the ButterflyEntry struct.
//
//go:embed assets/butterfly_entry.wgsl
var GPUButterflyEntrySource string

// GPUOceanParams is the static uniform written once when the pipeline is built.
// Size: 80 bytes.
type GPUOceanParams struct {
	Seed          [2]int32 // offset  0: phase hash seed (vec2<i32>)
	TileLength    float32  // offset  8: world size of the periodic tile in meters
	Depth         float32  // offset 12: water depth, <= 0 for deep water
	Alpha         float32  // offset 16: JONSWAP scale factor
	PeakFrequency float32  // offset 20: JONSWAP peak angular frequency
	WindSpeed     float32  // offset 24
	WindDirection float32  // offset 28: radians
	Gamma         float32  // offset 32: peak enhancement
	Gravity       float32  // offset 36
	Spread        float32  // offset 40: directional spreading exponent
	SpreadNorm    float32  // offset 44: spreading normalization Q(s)
	Amplitude     float32  // offset 48
	Choppiness    float32  // offset 52
	HeightScale   float32  // offset 56
	GridSize      uint32   // offset 60: grid size N
	LogSize       uint32   // offset 64: log2(N)
	_pad          [3]uint32
}

// Size returns the size of the GPUOceanParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUOceanParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUOceanParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUOceanParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], uint32(g.Seed[0]))
	binary.LittleEndian.PutUint32(buf[4:], uint32(g.Seed[1]))
	floats := []float32{
		g.TileLength, g.Depth, g.Alpha, g.PeakFrequency, g.WindSpeed, g.WindDirection,
		g.Gamma, g.Gravity, g.Spread, g.SpreadNorm, g.Amplitude, g.Choppiness, g.HeightScale,
	}
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[8+i*4:], math.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(buf[60:], g.GridSize)
	binary.LittleEndian.PutUint32(buf[64:], g.LogSize)
	return buf
}

// GPUFrameUniform carries the per-frame simulation clock. Size: 16 bytes.
type GPUFrameUniform struct {
	Time      float32 // offset 0: elapsed simulation time in seconds
	DeltaTime float32 // offset 4
	Frame     uint32  // offset 8
	_pad      uint32  // offset 12
}

// Size returns the size of the GPUFrameUniform struct in bytes.
func (g *GPUFrameUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUFrameUniform struct into a byte buffer suitable for GPU upload.
func (g *GPUFrameUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(g.Time))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(g.DeltaTime))
	binary.LittleEndian.PutUint32(buf[8:], g.Frame)
	return buf
}

// FFTDirection selects the twiddle sign used by the FFT kernel.
type FFTDirection uint32

const (
	// FFTForward uses the table twiddles exp(-2πik/N) unchanged.
	FFTForward FFTDirection = iota

	// FFTInverse conjugates the table twiddles. The result is not normalized.
	FFTInverse
)

// GPUDispatchParams selects the FFT stage and ping-pong half for one buffer pass. Size: 16 bytes.
type GPUDispatchParams struct {
	Stage     uint32       // offset 0: butterfly stage, unused by the transpose kernel
	Ping      uint32       // offset 4: ping-pong half read by this pass
	Direction FFTDirection // offset 8
	_pad      uint32       // offset 12
}

// Size returns the size of the GPUDispatchParams struct in bytes.
func (g *GPUDispatchParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUDispatchParams struct into a byte buffer suitable for GPU upload.
func (g *GPUDispatchParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], g.Stage)
	binary.LittleEndian.PutUint32(buf[4:], g.Ping)
	binary.LittleEndian.PutUint32(buf[8:], uint32(g.Direction))
	return buf
}

// GPUButterflyEntry is one precomputed butterfly: the twiddle factor and the two source
// indices combined at a given (stage, index). Size: 16 bytes.
type GPUButterflyEntry struct {
	Twiddle [2]float32 // offset 0: (re, im)
	Indices [2]uint32  // offset 8: (a, b), output = in[a] + twiddle*in[b]
}

// Size returns the size of the GPUButterflyEntry struct in bytes.
func (g *GPUButterflyEntry) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUButterflyEntry struct into a byte buffer suitable for GPU upload.
func (g *GPUButterflyEntry) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(g.Twiddle[0]))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(g.Twiddle[1]))
	binary.LittleEndian.PutUint32(buf[8:], g.Indices[0])
	binary.LittleEndian.PutUint32(buf[12:], g.Indices[1])
	return buf
}

// UnmarshalButterflyEntries decodes a butterfly storage buffer read back from the device.
//
// Parameters:
//   - data: the raw buffer bytes, a multiple of 16 bytes
//
// Returns:
//   - []GPUButterflyEntry: one entry per 16 bytes of input
func UnmarshalButterflyEntries(data []byte) []GPUButterflyEntry {
	const stride = 16
	entries := make([]GPUButterflyEntry, len(data)/stride)
	for i := range entries {
		b := data[i*stride:]
		entries[i] = GPUButterflyEntry{
			Twiddle: [2]float32{
				math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
				math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
			},
			Indices: [2]uint32{
				binary.LittleEndian.Uint32(b[8:]),
				binary.LittleEndian.Uint32(b[12:]),
			},
		}
	}
	return entries
}
