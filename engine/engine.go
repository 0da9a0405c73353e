package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ocean/engine/logger"
	"github.com/Carmen-Shannon/oxy-ocean/engine/profiler"
	"go.uber.org/zap"
)

// Simulation is anything advanced by the engine clock. The ocean orchestrator is one.
type Simulation interface {
	// Update advances the simulation to time t, in seconds since the engine started.
	Update(ctx context.Context, t float64) error
}

// engine implements the Engine interface.
// Drives registered simulations from a fixed-rate tick goroutine.
type engine struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	logger           *zap.Logger
	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	timeScale      float64
	simTime        float64
	tickCallback   func(deltaTime float32)

	simulations map[int]Simulation
}

// Engine is the main entry point for the engine.
// It owns the simulation clock and updates every registered simulation once per tick.
type Engine interface {
	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick after every simulation
	// has been updated.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// AddSimulation registers a simulation at the given key.
	// Simulations are updated in ascending key order.
	//
	// Parameters:
	//   - key: the ordering key (lower updates first)
	//   - s: the Simulation to register
	AddSimulation(key int, s Simulation)

	// RemoveSimulation removes the simulation at the given key.
	//
	// Parameters:
	//   - key: the key of the simulation to remove
	RemoveSimulation(key int)

	// Simulation retrieves the simulation registered at the given key.
	// Returns nil if no simulation exists at that key.
	//
	// Parameters:
	//   - key: the key of the simulation to retrieve
	//
	// Returns:
	//   - Simulation: the simulation at the key, or nil if not found
	Simulation(key int) Simulation

	// Simulations returns a copy of all registered simulations keyed by ordering key.
	//
	// Returns:
	//   - map[int]Simulation: a copy of the simulations map
	Simulations() map[int]Simulation

	// Time returns the current simulation time in seconds.
	//
	// Returns:
	//   - float64: the simulation time
	Time() float64

	// Run starts the tick loop and blocks until ctx is cancelled or Quit is called.
	//
	// Parameters:
	//   - ctx: cancelling it stops the engine; it is also passed to every Update
	//
	// Returns:
	//   - error: ctx.Err() if the context ended the run, nil after Quit
	Run(ctx context.Context) error

	// Quit signals the tick goroutine to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		simulations:     make(map[int]Simulation),
		logger:          logger.Named("engine"),
		engineTickRate:  time.Second / 60,
		timeScale:       1,
	}

	for _, opt := range options {
		opt(e)
	}
	e.profiler = profiler.NewProfiler(e.logger)
	return e
}

func (e *engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.handleEngine(ctx)

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
		e.signalQuit()
	case <-e.quitChannel:
	}
	e.wg.Wait()
	return err
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Advances the simulation clock and updates every simulation at the configured tick rate,
// listening for dynamic rate changes via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine(ctx context.Context) {
	defer e.wg.Done()
	// Recover from panics inside the tick goroutine to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine goroutine recovered from panic", zap.Any("panic", r))
			e.signalQuit()
		}
	}()

	e.mu.Lock()
	ticker := time.NewTicker(e.engineTickRate)
	e.mu.Unlock()
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := now.Sub(lastTick)
			lastTick = now
			if profiling := e.tick(ctx, dt); profiling {
				e.profiler.Tick(time.Since(now))
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.mu.Lock()
			e.engineTickRate = newRate
			e.mu.Unlock()
		}
	}
}

// tick advances the clock by dt and updates every simulation in ascending key order.
// A failing simulation is logged and does not stop the others. Returns whether profiling is on.
func (e *engine) tick(ctx context.Context, dt time.Duration) bool {
	e.mu.Lock()
	e.simTime += dt.Seconds() * e.timeScale
	t := e.simTime
	keys := make([]int, 0, len(e.simulations))
	for k := range e.simulations {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	sims := make([]Simulation, len(keys))
	for i, k := range keys {
		sims[i] = e.simulations[k]
	}
	callback := e.tickCallback
	profiling := e.profilingEnabled
	e.mu.Unlock()

	for i, s := range sims {
		if err := s.Update(ctx, t); err != nil {
			e.logger.Error("simulation update failed",
				zap.Int("key", keys[i]),
				zap.Float64("time", t),
				zap.Error(err),
			)
		}
	}
	if callback != nil {
		callback(float32(dt.Seconds()))
	}
	return profiling
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	e.mu.Lock()
	running := e.running
	if !running {
		// Engine not running, just update the field
		e.engineTickRate = newRate
	}
	e.mu.Unlock()
	if !running {
		return
	}

	// Non-blocking send - if channel is full, replace the pending value
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

func (e *engine) AddSimulation(key int, s Simulation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.simulations[key] = s
}

func (e *engine) RemoveSimulation(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.simulations, key)
}

func (e *engine) Simulation(key int) Simulation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.simulations[key]
}

func (e *engine) Simulations() map[int]Simulation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[int]Simulation, len(e.simulations))
	for k, s := range e.simulations {
		out[k] = s
	}
	return out
}

func (e *engine) Time() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.simTime
}
