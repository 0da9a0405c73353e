package engine

import (
	"time"

	"go.uber.org/zap"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Every registered simulation is updated at this rate.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithTimeScale multiplies the wall time elapsed between ticks before it is added to the
// simulation time. Values <= 0 are ignored.
//
// Parameters:
//   - scale: simulated seconds per wall second (default 1)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTimeScale(scale float64) EngineBuilderOption {
	return func(e *engine) {
		if scale > 0 {
			e.timeScale = scale
		}
	}
}

// WithSimulation registers a simulation at the given key during engine construction.
// Simulations are updated in ascending key order every tick.
//
// Parameters:
//   - key: the ordering key
//   - s: the Simulation to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSimulation(key int, s Simulation) EngineBuilderOption {
	return func(e *engine) {
		e.simulations[key] = s
	}
}

// WithLogger sets the logger used by the engine and its profiler.
//
// Parameters:
//   - l: the logger, nil keeps the package default
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(l *zap.Logger) EngineBuilderOption {
	return func(e *engine) {
		if l != nil {
			e.logger = l
		}
	}
}
