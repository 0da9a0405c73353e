package pipeline

import (
	"math"

	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
)

// Emulator executes a single kernel invocation on the host. The bindings hold the words of
// every resource the kernel declares, keyed by resource identity, and id is the global
// invocation id. Implementations must only write the outputs owned by id so that the
// invocations of one dispatch can run concurrently.
type Emulator func(b EmulatedBindings, id [3]uint32)

// EmulatedBindings maps each resource identity to its host-side storage.
type EmulatedBindings map[shader.AnnotationArg]EmulatedBinding

// EmulatedBinding is the host view of one device resource. Buffers leave Width and Height
// at zero. Textures store four 32-bit words per texel in row-major order.
type EmulatedBinding struct {
	Words  []uint32
	Width  uint32
	Height uint32
}

// U32 returns the word at index i.
func (e EmulatedBinding) U32(i int) uint32 {
	return e.Words[i]
}

// SetU32 stores v at word index i.
func (e EmulatedBinding) SetU32(i int, v uint32) {
	e.Words[i] = v
}

// F32 returns the word at index i reinterpreted as a float32.
func (e EmulatedBinding) F32(i int) float32 {
	return math.Float32frombits(e.Words[i])
}

// SetF32 stores the bits of v at word index i.
func (e EmulatedBinding) SetF32(i int, v float32) {
	e.Words[i] = math.Float32bits(v)
}

// Vec2 returns the vec2<f32> at element index i.
func (e EmulatedBinding) Vec2(i int) [2]float32 {
	return [2]float32{e.F32(2 * i), e.F32(2*i + 1)}
}

// SetVec2 stores v as the vec2<f32> at element index i.
func (e EmulatedBinding) SetVec2(i int, v [2]float32) {
	e.SetF32(2*i, v[0])
	e.SetF32(2*i+1, v[1])
}

// Texel returns the rgba32float texel at (x, y).
func (e EmulatedBinding) Texel(x, y uint32) [4]float32 {
	base := int(y*e.Width+x) * 4
	return [4]float32{e.F32(base), e.F32(base + 1), e.F32(base + 2), e.F32(base + 3)}
}

// SetTexel stores v as the rgba32float texel at (x, y).
func (e EmulatedBinding) SetTexel(x, y uint32, v [4]float32) {
	base := int(y*e.Width+x) * 4
	for i, c := range v {
		e.SetF32(base+i, c)
	}
}
