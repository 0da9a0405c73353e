package ocean

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ocean/common"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"github.com/Carmen-Shannon/oxy-ocean/engine/logger"
	"github.com/Carmen-Shannon/oxy-ocean/engine/ocean/gpu"
	"go.uber.org/zap"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("ocean: orchestrator closed")

// DeviceFactory acquires a compute device. The orchestrator calls it at construction and again
// after every device loss.
type DeviceFactory func(ctx context.Context) (compute.Compute, error)

// NewDeviceFactory returns a DeviceFactory creating devices with compute.NewCompute.
//
// Parameters:
//   - backendType: the backend of every device created
//   - options: options passed to compute.NewCompute
//
// Returns:
//   - DeviceFactory: the factory
func NewDeviceFactory(backendType compute.BackendType, options ...compute.ComputeBuilderOption) DeviceFactory {
	return func(ctx context.Context) (compute.Compute, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return compute.NewCompute(backendType, options...)
	}
}

// orchestrator is the implementation of the Orchestrator interface.
type orchestrator struct {
	mu     *sync.Mutex
	logger *zap.Logger

	factory DeviceFactory
	device  compute.Compute

	params WaveParameters

	readbackTimeout   time.Duration
	workgroupOverride [3]uint32

	time     float64
	frame    uint32
	rebuilds int
	closed   bool
}

// Orchestrator owns every device resource of one ocean simulation and drives the kernels.
//
// At construction and after every rebuild it generates the base spectrum and the butterfly
// table. Each Update then encodes one frame as a single submission:
// Modulate → FFT rows (log2 N stages) → Transpose → FFT columns (log2 N stages) → Unpack.
// After Update returns, the displacement and normal maps hold the surface at the given time.
type Orchestrator interface {
	// Params returns the parameters of the simulation with defaults applied.
	//
	// Returns:
	//   - WaveParameters: the parameters
	Params() WaveParameters

	// Time returns the simulation time of the last completed frame.
	//
	// Returns:
	//   - float64: the time in seconds
	Time() float64

	// Frame returns the number of frames completed since construction.
	//
	// Returns:
	//   - uint32: the frame count
	Frame() uint32

	// Rebuilds returns the number of times the device has been rebuilt.
	//
	// Returns:
	//   - int: the rebuild count
	Rebuilds() int

	// Device returns the current compute device. It changes after a rebuild.
	//
	// Returns:
	//   - compute.Compute: the device
	Device() compute.Compute

	// Update synthesizes the surface at time t. When the device is lost the in-flight frame is
	// discarded, the whole pipeline is rebuilt on a new device and the frame is encoded again.
	//
	// Parameters:
	//   - ctx: bounds the device rebuild
	//   - t: the simulation time in seconds, not before the previous frame
	//
	// Returns:
	//   - error: ErrClosed, an error for a time running backwards, or compute.ErrDeviceLost if
	//     the rebuild fails
	Update(ctx context.Context, t float64) error

	// Rebuild releases every device resource and reconstructs the pipeline on a new device from
	// the factory, rerunning the spectrum and butterfly dispatches.
	//
	// Parameters:
	//   - ctx: bounds device acquisition
	//
	// Returns:
	//   - error: an error if the device or any resource cannot be created
	Rebuild(ctx context.Context) error

	// ReadSpectrum reads back the base spectrum.
	//
	// Parameters:
	//   - ctx: bounds the readback
	//
	// Returns:
	//   - common.TextureStagingData: xy = h0(k), zw = conj(h0(-k)) per texel
	//   - error: compute.ErrReadbackTimeout, compute.ErrDeviceLost, or ErrClosed
	ReadSpectrum(ctx context.Context) (common.TextureStagingData, error)

	// ReadButterfly reads back the butterfly table.
	//
	// Parameters:
	//   - ctx: bounds the readback
	//
	// Returns:
	//   - []gpu.GPUButterflyEntry: log2(N)·N entries indexed stage·N + y
	//   - error: compute.ErrReadbackTimeout, compute.ErrDeviceLost, or ErrClosed
	ReadButterfly(ctx context.Context) ([]gpu.GPUButterflyEntry, error)

	// ReadField reads back the transformed complex field of the last frame.
	//
	// Parameters:
	//   - ctx: bounds the readback
	//
	// Returns:
	//   - ComplexField: the spatial-domain height and horizontal displacement fields
	//   - error: compute.ErrReadbackTimeout, compute.ErrDeviceLost, or ErrClosed
	ReadField(ctx context.Context) (ComplexField, error)

	// ReadDisplacement reads back the displacement map.
	//
	// Parameters:
	//   - ctx: bounds the readback
	//
	// Returns:
	//   - common.TextureStagingData: (λ·Dx, height, λ·Dz, imaginary residue) per texel
	//   - error: compute.ErrReadbackTimeout, compute.ErrDeviceLost, or ErrClosed
	ReadDisplacement(ctx context.Context) (common.TextureStagingData, error)

	// ReadNormals reads back the normal map.
	//
	// Parameters:
	//   - ctx: bounds the readback
	//
	// Returns:
	//   - common.TextureStagingData: (nx, ny, nz, Jacobian determinant) per texel
	//   - error: compute.ErrReadbackTimeout, compute.ErrDeviceLost, or ErrClosed
	ReadNormals(ctx context.Context) (common.TextureStagingData, error)

	// Close releases the device and every resource. It is safe to call more than once.
	Close()
}

var _ Orchestrator = &orchestrator{}

// NewOrchestrator validates the parameters, acquires a device from the factory and builds
// the pipeline.
//
// Parameters:
//   - ctx: bounds device acquisition
//   - factory: the device source, also used for rebuilds
//   - params: the wave parameters
//   - options: variadic list of OrchestratorBuilderOption functions
//
// Returns:
//   - Orchestrator: the ready orchestrator
//   - error: an error wrapping ErrInvalidConfiguration, compute.ErrDeviceUnavailable, or a
//     device error
func NewOrchestrator(ctx context.Context, factory DeviceFactory, params WaveParameters, options ...OrchestratorBuilderOption) (Orchestrator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, errors.New("ocean: a device factory is required")
	}

	o := &orchestrator{
		mu:              &sync.Mutex{},
		logger:          logger.Named("ocean"),
		factory:         factory,
		params:          params.WithDefaults(),
		readbackTimeout: 2 * time.Second,
	}
	for _, opt := range options {
		opt(o)
	}
	if err := validateWorkgroupOverride(o.workgroupOverride); err != nil {
		return nil, err
	}

	if err := o.build(ctx); err != nil {
		return nil, err
	}
	o.logger.Info("ocean pipeline built",
		zap.Int("grid_size", o.params.GridSize),
		zap.Float64("tile_length", o.params.TileLength),
		zap.Float64("alpha", o.params.Alpha()),
		zap.Float64("peak_angular_frequency", o.params.PeakAngularFrequency()),
		zap.Stringer("backend", o.device.BackendType()),
	)
	return o, nil
}

func (o *orchestrator) Params() WaveParameters {
	return o.params
}

func (o *orchestrator) Time() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.time
}

func (o *orchestrator) Frame() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frame
}

func (o *orchestrator) Rebuilds() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rebuilds
}

func (o *orchestrator) Device() compute.Compute {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.device
}

func (o *orchestrator) Update(ctx context.Context, t float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if t < o.time {
		return fmt.Errorf("ocean: time %v precedes the previous frame at %v", t, o.time)
	}
	if o.device == nil {
		if err := o.rebuild(ctx); err != nil {
			return fmt.Errorf("%w: rebuild: %w", compute.ErrDeviceLost, err)
		}
	}

	err := o.encodeFrame(t, t-o.time)
	if err != nil && (errors.Is(err, compute.ErrDeviceLost) || o.device.Lost()) {
		o.logger.Warn("device lost, frame discarded",
			zap.Uint32("frame", o.frame),
			zap.Float64("time", t),
			zap.Error(err),
		)
		if rerr := o.rebuild(ctx); rerr != nil {
			return fmt.Errorf("%w: rebuild: %w", compute.ErrDeviceLost, rerr)
		}
		err = o.encodeFrame(t, t-o.time)
	}
	if err != nil {
		return fmt.Errorf("ocean: frame %d: %w", o.frame, err)
	}

	o.time = t
	o.frame++
	return nil
}

func (o *orchestrator) Rebuild(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	return o.rebuild(ctx)
}

func (o *orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	if o.device != nil {
		o.device.Release()
		o.device = nil
	}
	o.logger.Debug("ocean pipeline closed", zap.Uint32("frames", o.frame))
}

// rebuild tears the current device down and builds the pipeline again. Nothing on the old
// device is reused.
func (o *orchestrator) rebuild(ctx context.Context) error {
	if o.device != nil {
		o.device.Release()
		o.device = nil
	}
	if err := o.build(ctx); err != nil {
		return err
	}
	o.rebuilds++
	o.logger.Info("ocean pipeline rebuilt", zap.Int("rebuilds", o.rebuilds))
	return nil
}

// build acquires a device, registers the kernels, allocates and initializes every resource and
// runs the one-time dispatches. The device is only kept when every step succeeds.
func (o *orchestrator) build(ctx context.Context) error {
	device, err := o.factory(ctx)
	if err != nil {
		return fmt.Errorf("ocean: acquire device: %w", err)
	}

	if err := o.initDevice(device); err != nil {
		device.Release()
		return err
	}
	o.device = device
	return nil
}

// passCount is the number of buffer passes per frame: log2(N) row stages, the transpose and
// log2(N) column stages.
func (o *orchestrator) passCount() int {
	return 2*o.params.LogSize() + 1
}

func (o *orchestrator) resourceDescriptors() []compute.ResourceDescriptor {
	n := uint32(o.params.GridSize)
	cells := uint64(n) * uint64(n)
	var oceanParams gpu.GPUOceanParams
	var frameUniform gpu.GPUFrameUniform
	var entry gpu.GPUButterflyEntry

	return []compute.ResourceDescriptor{
		{Name: shader.AnnotationArgParams, Kind: compute.ResourceKindUniform, Size: uint64(oceanParams.Size())},
		{Name: shader.AnnotationArgFrame, Kind: compute.ResourceKindUniform, Size: uint64(frameUniform.Size())},
		{
			Name:       shader.AnnotationArgDispatch,
			Kind:       compute.ResourceKindUniform,
			Size:       uint64(o.passCount()) * gpu.DispatchSlotStride,
			SlotStride: gpu.DispatchSlotStride,
		},
		{Name: shader.AnnotationArgSpectrum, Kind: compute.ResourceKindTexture, Width: n, Height: n},
		{
			Name: shader.AnnotationArgButterfly,
			Kind: compute.ResourceKindStorage,
			Size: uint64(o.params.LogSize()) * uint64(n) * uint64(entry.Size()),
		},
		{Name: shader.AnnotationArgFFT, Kind: compute.ResourceKindStorage, Size: fieldLayers * 2 * cells * 8},
		{Name: shader.AnnotationArgDisplacement, Kind: compute.ResourceKindTexture, Width: n, Height: n},
		{Name: shader.AnnotationArgNormal, Kind: compute.ResourceKindTexture, Width: n, Height: n},
	}
}

// dispatchSlots packs the DispatchParams of every buffer pass into the slotted uniform. Pass p
// reads ping p%2, so the final pass always writes ping 1.
func (o *orchestrator) dispatchSlots() []byte {
	logN := o.params.LogSize()
	data := make([]byte, o.passCount()*gpu.DispatchSlotStride)
	for p := range o.passCount() {
		slot := gpu.GPUDispatchParams{
			Ping:      uint32(p % 2),
			Direction: gpu.FFTInverse,
		}
		switch {
		case p < logN:
			slot.Stage = uint32(p)
		case p > logN:
			slot.Stage = uint32(p - logN - 1)
		}
		copy(data[p*gpu.DispatchSlotStride:], slot.Marshal())
	}
	return data
}

func (o *orchestrator) initDevice(device compute.Compute) error {
	pipelines, err := newPipelines(o.workgroupOverride)
	if err != nil {
		return err
	}
	if err := device.RegisterPipelines(pipelines...); err != nil {
		return fmt.Errorf("ocean: register kernels: %w", err)
	}
	if err := device.CreateResources(o.resourceDescriptors()...); err != nil {
		return fmt.Errorf("ocean: create resources: %w", err)
	}

	params := o.params.GPU()
	frame := gpu.GPUFrameUniform{Time: float32(o.time)}
	err = device.WriteBuffers([]compute.BufferWrite{
		{Resource: shader.AnnotationArgParams, Data: params.Marshal()},
		{Resource: shader.AnnotationArgFrame, Data: frame.Marshal()},
		{Resource: shader.AnnotationArgDispatch, Data: o.dispatchSlots()},
	})
	if err != nil {
		return fmt.Errorf("ocean: write uniforms: %w", err)
	}

	n := uint32(o.params.GridSize)
	entries := uint32(o.params.LogSize()) * n
	if err := device.BeginComputeFrame(); err != nil {
		return fmt.Errorf("ocean: init dispatch: %w", err)
	}
	// The spectrum and the butterfly table share no resource and may overlap on the device.
	dispatches := []struct {
		key         string
		invocations [3]uint32
	}{
		{PipelineKeySpectrum, [3]uint32{n, n, 1}},
		{PipelineKeyButterfly, [3]uint32{entries, 1, 1}},
	}
	for _, d := range dispatches {
		if err := o.dispatch(device, d.key, 0, d.invocations); err != nil {
			return fmt.Errorf("ocean: init dispatch: %w", err)
		}
	}
	if err := device.EndComputeFrame(); err != nil {
		return fmt.Errorf("ocean: init dispatch: %w", err)
	}
	return nil
}

// dispatch records one dispatch covering the given invocation grid.
func (o *orchestrator) dispatch(device compute.Compute, key string, slot int, invocations [3]uint32) error {
	p := device.Pipeline(key)
	if p == nil {
		return fmt.Errorf("%w: %s", compute.ErrUnknownPipeline, key)
	}
	return device.DispatchCompute(key, slot, p.WorkgroupCount(invocations))
}

// encodeFrame writes the frame uniform and submits the per-frame dispatch sequence. A failed
// submission marks the device lost.
func (o *orchestrator) encodeFrame(t, dt float64) error {
	frame := gpu.GPUFrameUniform{
		Time:      float32(t),
		DeltaTime: float32(dt),
		Frame:     o.frame,
	}
	err := o.device.WriteBuffers([]compute.BufferWrite{
		{Resource: shader.AnnotationArgFrame, Data: frame.Marshal()},
	})
	if err != nil {
		return err
	}

	n := uint32(o.params.GridSize)
	grid := [3]uint32{n, n, 1}
	layers := [3]uint32{n, n, fieldLayers}
	logN := o.params.LogSize()

	if err := o.device.BeginComputeFrame(); err != nil {
		return err
	}
	if err := o.dispatch(o.device, PipelineKeyModulate, 0, grid); err != nil {
		return err
	}
	for p := range o.passCount() {
		key := PipelineKeyFFT
		if p == logN {
			key = PipelineKeyTranspose
		}
		if err := o.dispatch(o.device, key, p, layers); err != nil {
			return err
		}
	}
	if err := o.dispatch(o.device, PipelineKeyUnpack, 0, grid); err != nil {
		return err
	}
	if err := o.device.EndComputeFrame(); err != nil {
		if !errors.Is(err, compute.ErrDeviceLost) {
			o.device.MarkLost()
			return fmt.Errorf("%w: %w", compute.ErrDeviceLost, err)
		}
		return err
	}
	return nil
}
