package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// recorder is a Simulation that records every update it receives into a shared log.
type recorder struct {
	key int
	err error

	mu    *sync.Mutex
	log   *[]int
	times []float64
}

func newRecorder(key int, mu *sync.Mutex, log *[]int) *recorder {
	return &recorder{key: key, mu: mu, log: log}
}

func (r *recorder) Update(_ context.Context, t float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.log = append(*r.log, r.key)
	r.times = append(r.times, t)
	return r.err
}

func (r *recorder) updates() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.times...)
}

func newTestEngine(t *testing.T, options ...EngineBuilderOption) *engine {
	t.Helper()
	options = append([]EngineBuilderOption{WithLogger(zaptest.NewLogger(t))}, options...)
	return NewEngine(options...).(*engine)
}

func TestTickOrder(t *testing.T) {
	var mu sync.Mutex
	var log []int
	failing := newRecorder(1, &mu, &log)
	failing.err = errors.New("update failed")

	e := newTestEngine(t,
		WithSimulation(3, newRecorder(3, &mu, &log)),
		WithSimulation(-2, newRecorder(-2, &mu, &log)),
		WithSimulation(1, failing),
	)
	e.AddSimulation(7, newRecorder(7, &mu, &log))

	e.tick(context.Background(), 10*time.Millisecond)
	e.tick(context.Background(), 10*time.Millisecond)

	want := []int{-2, 1, 3, 7, -2, 1, 3, 7}
	if len(log) != len(want) {
		t.Fatalf("update log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("update log = %v, want %v", log, want)
		}
	}
}

func TestTickTime(t *testing.T) {
	tests := []struct {
		name  string
		scale float64
		want  float64
	}{
		{name: "default scale", scale: 0, want: 0.05},
		{name: "fast forward", scale: 4, want: 0.2},
		{name: "negative ignored", scale: -1, want: 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var log []int
			r := newRecorder(0, &mu, &log)
			e := newTestEngine(t, WithTimeScale(tt.scale), WithSimulation(0, r))

			var deltas []float32
			e.SetTickCallback(func(dt float32) { deltas = append(deltas, dt) })

			for range 5 {
				e.tick(context.Background(), 10*time.Millisecond)
			}
			times := r.updates()
			if len(times) != 5 {
				t.Fatalf("got %d updates, want 5", len(times))
			}
			for i := 1; i < len(times); i++ {
				if times[i] <= times[i-1] {
					t.Fatalf("time went backwards: %v", times)
				}
			}
			if diff := e.Time() - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Time() = %v, want %v", e.Time(), tt.want)
			}
			if times[4] != e.Time() {
				t.Errorf("last update at %v, Time() = %v", times[4], e.Time())
			}
			// The callback receives unscaled wall time.
			if len(deltas) != 5 || deltas[0] != 0.01 {
				t.Errorf("callback deltas = %v", deltas)
			}
		})
	}
}

func TestSimulationRegistry(t *testing.T) {
	var mu sync.Mutex
	var log []int
	a := newRecorder(1, &mu, &log)
	b := newRecorder(2, &mu, &log)
	e := newTestEngine(t, WithSimulation(1, a))
	e.AddSimulation(2, b)

	if e.Simulation(1) != a || e.Simulation(2) != b {
		t.Fatal("Simulation() did not return the registered simulations")
	}
	if e.Simulation(5) != nil {
		t.Error("Simulation(5) != nil")
	}

	sims := e.Simulations()
	delete(sims, 1)
	if e.Simulation(1) == nil {
		t.Error("Simulations() returned the internal map")
	}

	e.RemoveSimulation(1)
	if e.Simulation(1) != nil {
		t.Error("RemoveSimulation() kept the simulation")
	}
	if len(e.Simulations()) != 1 {
		t.Errorf("Simulations() has %d entries, want 1", len(e.Simulations()))
	}
}

func TestRunContextCancel(t *testing.T) {
	var mu sync.Mutex
	var log []int
	r := newRecorder(0, &mu, &log)
	e := newTestEngine(t, WithTickRate(500), WithSimulation(0, r), WithProfiling(true))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want context.DeadlineExceeded", err)
	}
	if len(r.updates()) == 0 {
		t.Error("simulation was never updated")
	}

	// Quit after the run has ended is a no-op.
	e.Quit()
}

func TestRunQuit(t *testing.T) {
	e := newTestEngine(t, WithTickRate(1000))

	ticks := make(chan float32, 1)
	e.SetTickCallback(func(dt float32) {
		select {
		case ticks <- dt:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	select {
	case <-ticks:
	case <-time.After(5 * time.Second):
		t.Fatal("engine never ticked")
	}

	e.SetTickRate(250)
	e.EnableProfiler()
	e.DisableProfiler()
	e.Quit()
	e.Quit()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() after Quit error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after Quit")
	}
}

func TestSetTickRateStopped(t *testing.T) {
	e := newTestEngine(t)
	if e.engineTickRate != time.Second/60 {
		t.Errorf("default tick rate = %v", e.engineTickRate)
	}
	e.SetTickRate(120)
	if e.engineTickRate != time.Second/120 {
		t.Errorf("tick rate = %v, want %v", e.engineTickRate, time.Second/120)
	}
	e.SetTickRate(-3)
	if e.engineTickRate != time.Second/60 {
		t.Errorf("tick rate = %v after a non-positive rate, want the default", e.engineTickRate)
	}
}
