package compute

import (
	"time"

	"go.uber.org/zap"
)

// ComputeBuilderOption is a functional option applied to a compute device during construction via NewCompute.
type ComputeBuilderOption func(*compute)

// WithLogger sets the logger used by the device and its backend.
//
// Parameters:
//   - l: the logger, nil keeps the package default
//
// Returns:
//   - ComputeBuilderOption: a function that applies the logger option to a compute device
func WithLogger(l *zap.Logger) ComputeBuilderOption {
	return func(c *compute) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithForceFallbackAdapter forces WGPU to use a CPU/software fallback adapter instead of hardware
// GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - ComputeBuilderOption: a function that applies the fallback adapter option to a compute device
func WithForceFallbackAdapter(force bool) ComputeBuilderOption {
	return func(c *compute) {
		c.forceFallbackAdapter = force
	}
}

// WithComputeWorkers sets the number of workers the emulated backend fans dispatches out to.
// Values <= 0 select max(NumCPU-1, 1).
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - ComputeBuilderOption: a function that applies the worker count option to a compute device
func WithComputeWorkers(n int) ComputeBuilderOption {
	return func(c *compute) {
		c.computeWorkers = n
	}
}

// WithPollInterval sets the interval at which a pending WGPU readback polls the device.
//
// Parameters:
//   - d: the poll interval, defaults to 1ms
//
// Returns:
//   - ComputeBuilderOption: a function that applies the poll interval option to a compute device
func WithPollInterval(d time.Duration) ComputeBuilderOption {
	return func(c *compute) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}
