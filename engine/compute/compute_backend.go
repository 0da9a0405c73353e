package compute

import (
	"context"

	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/pipeline"
)

// BackendType identifies the implementation executing kernels for a Compute device.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU backend.
	BackendTypeWGPU BackendType = iota

	// BackendTypeEmulated selects the host backend, which runs each kernel's Go emulator on a
	// worker pool. It needs no adapter and is used for tests and headless hosts.
	BackendTypeEmulated
)

// String returns the backend name used in logs.
func (b BackendType) String() string {
	switch b {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeEmulated:
		return "emulated"
	default:
		return "unknown"
	}
}

// ComputeBackend is the backend interface the Compute device delegates to. Implementations
// are not required to be safe for concurrent use; the device serializes calls.
type ComputeBackend interface {
	// RegisterComputePipeline builds the backend objects for a kernel.
	RegisterComputePipeline(p pipeline.Pipeline) error

	// CreateResource allocates a named resource.
	CreateResource(d ResourceDescriptor) error

	// WriteBuffer copies host data into a buffer resource.
	WriteBuffer(d ResourceDescriptor, w BufferWrite) error

	// BeginComputeFrame starts recording dispatches.
	BeginComputeFrame() error

	// DispatchCompute records one dispatch of p binding the given slot of slotted resources.
	DispatchCompute(p pipeline.Pipeline, slot int, workGroupCount [3]uint32) error

	// EndComputeFrame submits every dispatch recorded since BeginComputeFrame, in order.
	EndComputeFrame() error

	// StageReadback records and submits the copy of a resource into host-visible memory. The
	// returned Readback must be waited on exactly once.
	StageReadback(d ResourceDescriptor) (Readback, error)

	// Lost reports whether the backend context has been invalidated.
	Lost() bool

	// MarkLost flags the backend context as invalidated.
	MarkLost()

	// Release frees every backend object.
	Release()
}

// Readback is a resource copy that has been submitted but not yet returned to the host. It
// belongs to the caller that staged it and is waited on without holding any device lock.
type Readback interface {
	// Wait blocks until the copy reaches the host, ctx ends, or the backend is released.
	// Returns the resource tightly packed, ErrReadbackTimeout, or ErrDeviceLost.
	Wait(ctx context.Context) ([]byte, error)
}
