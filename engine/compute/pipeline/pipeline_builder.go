package pipeline

import (
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithComputeShader sets the compute shader for this pipeline.
//
// Parameters:
//   - s: the compute shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compute shader for this pipeline
func WithComputeShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.computeShader = s
	}
}

// WithEmulator sets the host emulation of the kernel, used by the emulated compute backend.
//
// Parameters:
//   - e: a function executing one kernel invocation against host-side bindings
//
// Returns:
//   - PipelineBuilderOption: a function that sets the emulator for this pipeline
func WithEmulator(e Emulator) PipelineBuilderOption {
	return func(p *pipeline) {
		p.emulator = e
	}
}

// WithWorkgroupSize overrides the @workgroup_size parsed from the kernel when deriving
// dispatch counts. The override must match the size compiled into the kernel.
//
// Parameters:
//   - size: the workgroup size as [x, y, z]
//
// Returns:
//   - PipelineBuilderOption: a function that sets the workgroup size for this pipeline
func WithWorkgroupSize(size [3]uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.workgroupSize = size
	}
}
