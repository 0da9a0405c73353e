package ocean

import (
	"time"

	"go.uber.org/zap"
)

// OrchestratorBuilderOption is a functional option applied to an orchestrator during construction via NewOrchestrator.
type OrchestratorBuilderOption func(*orchestrator)

// WithLogger sets the logger used by the orchestrator.
//
// Parameters:
//   - l: the logger, nil keeps the package default
//
// Returns:
//   - OrchestratorBuilderOption: a function that applies the logger option to an orchestrator
func WithLogger(l *zap.Logger) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithReadbackTimeout bounds every diagnostic readback in addition to the caller's context.
//
// Parameters:
//   - d: the timeout, defaults to 2 seconds
//
// Returns:
//   - OrchestratorBuilderOption: a function that applies the timeout option to an orchestrator
func WithReadbackTimeout(d time.Duration) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		if d > 0 {
			o.readbackTimeout = d
		}
	}
}

// WithWorkgroupOverride replaces the workgroup size used to derive dispatch counts of the
// grid kernels. Every kernel bounds-checks its invocation id, so sizes at or below the
// compiled @workgroup_size stay correct on the GPU. NewOrchestrator rejects larger sizes, a
// zero axis, and a z size above 1 with ErrInvalidConfiguration.
//
// Parameters:
//   - size: the workgroup size as [x, y, z]
//
// Returns:
//   - OrchestratorBuilderOption: a function that applies the override to an orchestrator
func WithWorkgroupOverride(size [3]uint32) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.workgroupOverride = size
	}
}

// WithInitialTime sets the simulation time the orchestrator starts from. Update rejects
// earlier times.
//
// Parameters:
//   - t: the start time in seconds
//
// Returns:
//   - OrchestratorBuilderOption: a function that applies the initial time to an orchestrator
func WithInitialTime(t float64) OrchestratorBuilderOption {
	return func(o *orchestrator) {
		o.time = t
	}
}
