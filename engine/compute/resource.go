package compute

import (
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
)

// ResourceKind identifies how a device resource is allocated and bound.
type ResourceKind int

const (
	// ResourceKindUniform is a uniform buffer. With a SlotStride it holds one struct per dispatch slot.
	ResourceKindUniform ResourceKind = iota

	// ResourceKindStorage is a read-write storage buffer.
	ResourceKindStorage

	// ResourceKindTexture is a 2D rgba32float texture usable both as a storage texture and as a
	// sampled texture read with textureLoad.
	ResourceKindTexture
)

// TexelSize is the byte size of one rgba32float texel.
const TexelSize = 16

// ResourceDescriptor declares a named device resource. Kernels reference resources by Name
// through their @oxy annotations.
type ResourceDescriptor struct {
	// Name is the resource identity matched against kernel declarations.
	Name shader.AnnotationArg

	// Kind selects the allocation type.
	Kind ResourceKind

	// Size is the byte size of buffer resources. Ignored for textures.
	Size uint64

	// Width and Height are the texel dimensions of texture resources.
	Width, Height uint32

	// SlotStride is the byte distance between dispatch slots of a slotted uniform, zero otherwise.
	SlotStride uint64
}

// ByteSize returns the tightly packed byte size of the resource contents.
//
// Returns:
//   - uint64: the buffer size, or width*height*16 for textures
func (d ResourceDescriptor) ByteSize() uint64 {
	if d.Kind == ResourceKindTexture {
		return uint64(d.Width) * uint64(d.Height) * TexelSize
	}
	return d.Size
}

// SlotOffset returns the byte offset of a dispatch slot within the resource.
//
// Parameters:
//   - slot: the dispatch slot
//
// Returns:
//   - uint64: slot*SlotStride, or 0 for unslotted resources
func (d ResourceDescriptor) SlotOffset(slot int) uint64 {
	if d.SlotStride == 0 {
		return 0
	}
	return uint64(slot) * d.SlotStride
}

// BufferWrite describes a single host-to-device write into a named buffer at a byte offset.
type BufferWrite struct {
	Resource shader.AnnotationArg
	Offset   uint64
	Data     []byte
}
