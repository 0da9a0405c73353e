package pipeline

import (
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline is the implementation of the Pipeline interface.
// It holds the compute kernel, the WebGPU pipeline object once built, and the host emulation
// of the kernel used when no adapter is available.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	// computeShader is required to be set before registering the pipeline.
	computeShader shader.Shader

	// computePipeline is nil until the pipeline is registered with a WebGPU device
	computePipeline *wgpu.ComputePipeline

	// emulator runs one kernel invocation on the host, nil if the kernel has no host path
	emulator Emulator

	// workgroupSize overrides the shader's parsed @workgroup_size when non-zero
	workgroupSize [3]uint32
}

// Pipeline defines the interface for a compute pipeline: one WGSL kernel with a single
// @compute entry point, its device pipeline object, and an optional host emulation.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the compute kernel of this pipeline.
	//
	// Returns:
	//   - shader.Shader: the kernel, or nil if not set
	Shader() shader.Shader

	// Pipeline returns the underlying WebGPU compute pipeline.
	//
	// Returns:
	//   - *wgpu.ComputePipeline: the device pipeline, or nil before registration
	Pipeline() *wgpu.ComputePipeline

	// Emulator returns the host emulation of the kernel.
	//
	// Returns:
	//   - Emulator: the per-invocation host function, or nil if none is configured
	Emulator() Emulator

	// WorkgroupSize returns the workgroup size used to derive dispatch counts. This is the
	// configured override when set, otherwise the kernel's @workgroup_size.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// WorkgroupCount derives the number of workgroups needed to cover a grid of invocations.
	//
	// Parameters:
	//   - invocations: the number of invocations required along x, y and z
	//
	// Returns:
	//   - [3]uint32: the workgroup count, each dimension rounded up
	WorkgroupCount(invocations [3]uint32) [3]uint32

	// SetComputePipeline sets the compute pipeline
	//
	// Parameters:
	//   - p: the WebGPU compute pipeline to set
	SetComputePipeline(p *wgpu.ComputePipeline)
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new compute Pipeline.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.computeShader
}

func (p *pipeline) Pipeline() *wgpu.ComputePipeline {
	return p.computePipeline
}

func (p *pipeline) Emulator() Emulator {
	return p.emulator
}

func (p *pipeline) WorkgroupSize() [3]uint32 {
	if p.workgroupSize != [3]uint32{} {
		return p.workgroupSize
	}
	if p.computeShader == nil {
		return [3]uint32{1, 1, 1}
	}
	return p.computeShader.WorkgroupSize()
}

func (p *pipeline) WorkgroupCount(invocations [3]uint32) [3]uint32 {
	size := p.WorkgroupSize()
	var count [3]uint32
	for i := range count {
		s := max(size[i], 1)
		count[i] = max((invocations[i]+s-1)/s, 1)
	}
	return count
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline) {
	p.computePipeline = cp
}
