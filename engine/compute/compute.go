package compute

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/pipeline"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"github.com/Carmen-Shannon/oxy-ocean/engine/logger"
	"go.uber.org/zap"
)

// compute is the implementation of the Compute interface.
type compute struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline
	resources     map[shader.AnnotationArg]ResourceDescriptor

	backendType BackendType
	backend     ComputeBackend
	logger      *zap.Logger

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	computeWorkers       int
	pollInterval         time.Duration

	released bool
}

// Compute defines the interface for a compute device.
//
// It owns every named resource and registered kernel for its lifetime. Dispatches are recorded
// between BeginComputeFrame and EndComputeFrame and submitted together, in recording order, so
// that each dispatch observes the complete writes of every dispatch recorded before it.
// Kernel bindings are resolved from the kernel's @oxy declarations against the named resources;
// callers never build bind groups themselves.
type Compute interface {
	// BackendType returns the backend executing kernels for this device.
	//
	// Returns:
	//   - BackendType: BackendTypeWGPU or BackendTypeEmulated
	BackendType() BackendType

	// Pipeline retrieves the registered Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves a copy of the registered pipeline cache.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines builds the backend objects for one or more kernels and caches them by
	// PipelineKey. Pipelines whose keys are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// CreateResources allocates named device resources. Resources must exist before the first
	// dispatch of a kernel that declares them.
	//
	// Parameters:
	//   - descriptors: the resources to allocate
	//
	// Returns:
	//   - error: an error if a name is reused or allocation fails
	CreateResources(descriptors ...ResourceDescriptor) error

	// Resource returns the descriptor of a named resource.
	//
	// Parameters:
	//   - name: the resource identity
	//
	// Returns:
	//   - ResourceDescriptor: the descriptor
	//   - bool: false if no such resource exists
	Resource(name shader.AnnotationArg) (ResourceDescriptor, bool)

	// WriteBuffers writes host data into buffer resources. Writes are ordered before any
	// dispatch submitted afterwards.
	//
	// Parameters:
	//   - writes: the writes to perform, in order
	//
	// Returns:
	//   - error: ErrUnknownResource, ErrDeviceLost, or a backend error
	WriteBuffers(writes []BufferWrite) error

	// BeginComputeFrame starts recording a batch of dispatches. Must be paired with EndComputeFrame.
	//
	// Returns:
	//   - error: ErrDeviceLost or a backend error
	BeginComputeFrame() error

	// DispatchCompute records one dispatch of a registered kernel.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier of the registered kernel
	//   - slot: the slot of slotted uniforms bound by this dispatch
	//   - workGroupCount: the number of workgroups to dispatch in x, y and z
	//
	// Returns:
	//   - error: ErrUnknownPipeline, ErrNoFrame, or a backend error
	DispatchCompute(pipelineKey string, slot int, workGroupCount [3]uint32) error

	// EndComputeFrame submits every dispatch recorded since BeginComputeFrame as one batch.
	//
	// Returns:
	//   - error: ErrDeviceLost or a backend error
	EndComputeFrame() error

	// ReadResource copies a resource back to host memory and waits for it, bounded by ctx.
	// Textures are returned tightly packed, four float32 per texel. The device is only locked
	// while the copy is recorded, so frames keep encoding during the wait.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//   - name: the resource identity
	//
	// Returns:
	//   - []byte: the resource contents
	//   - error: ErrUnknownResource, ErrReadbackTimeout, ErrDeviceLost, or a backend error
	ReadResource(ctx context.Context, name shader.AnnotationArg) ([]byte, error)

	// Lost reports whether the device context has been invalidated.
	//
	// Returns:
	//   - bool: true once the device is lost
	Lost() bool

	// MarkLost flags the device as lost. Every later operation fails with ErrDeviceLost.
	MarkLost()

	// Release frees every resource, kernel and backend object held by the device.
	Release()
}

var _ Compute = &compute{}

// NewCompute creates a new compute device on the selected backend.
//
// Parameters:
//   - backendType: the backend executing kernels
//   - options: variadic list of ComputeBuilderOption functions to configure the device
//
// Returns:
//   - Compute: the device
//   - error: an error wrapping ErrDeviceUnavailable if no device can be acquired
func NewCompute(backendType BackendType, options ...ComputeBuilderOption) (Compute, error) {
	c := &compute{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		resources:     make(map[shader.AnnotationArg]ResourceDescriptor),
		backendType:   backendType,
		logger:        logger.Log,
		pollInterval:  time.Millisecond,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests an adapter.
	for _, opt := range options {
		opt(c)
	}
	if c.computeWorkers <= 0 {
		c.computeWorkers = max(runtime.NumCPU()-1, 1)
	}

	var err error
	switch backendType {
	case BackendTypeEmulated:
		c.backend = newEmulatedComputeBackend(c.computeWorkers, c.logger)
	case BackendTypeWGPU:
		c.backend, err = newWGPUComputeBackend(c.forceFallbackAdapter, c.pollInterval, c.logger)
	default:
		err = fmt.Errorf("%w: unknown backend type %d", ErrDeviceUnavailable, backendType)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info("compute device created", zap.Stringer("backend", backendType))
	return c, nil
}

func (c *compute) BackendType() BackendType {
	return c.backendType
}

func (c *compute) Pipeline(key string) pipeline.Pipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipelineCache[key]
}

func (c *compute) Pipelines() map[string]pipeline.Pipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(c.pipelineCache))
	for k, p := range c.pipelineCache {
		out[k] = p
	}
	return out
}

func (c *compute) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unusable() {
		return ErrDeviceLost
	}
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := c.pipelineCache[key]; exists {
			continue
		}
		if err := c.backend.RegisterComputePipeline(p); err != nil {
			return fmt.Errorf("register pipeline %s: %w", key, err)
		}
		c.pipelineCache[key] = p
		size := p.WorkgroupSize()
		c.logger.Debug("compute pipeline registered",
			zap.String("pipeline", key),
			zap.Uint32s("workgroup_size", size[:]),
		)
	}
	return nil
}

func (c *compute) CreateResources(descriptors ...ResourceDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unusable() {
		return ErrDeviceLost
	}
	for _, d := range descriptors {
		if _, exists := c.resources[d.Name]; exists {
			return fmt.Errorf("create resource %s: already exists", d.Name)
		}
		if d.ByteSize() == 0 {
			return fmt.Errorf("create resource %s: zero size", d.Name)
		}
		if err := c.backend.CreateResource(d); err != nil {
			return fmt.Errorf("create resource %s: %w", d.Name, err)
		}
		c.resources[d.Name] = d
	}
	return nil
}

func (c *compute) Resource(name shader.AnnotationArg) (ResourceDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.resources[name]
	return d, ok
}

func (c *compute) WriteBuffers(writes []BufferWrite) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unusable() {
		return ErrDeviceLost
	}
	for _, w := range writes {
		d, ok := c.resources[w.Resource]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownResource, w.Resource)
		}
		if d.Kind == ResourceKindTexture {
			return fmt.Errorf("write %s: resource is a texture", w.Resource)
		}
		if w.Offset+uint64(len(w.Data)) > d.Size {
			return fmt.Errorf("write %s: %d bytes at offset %d exceed size %d", w.Resource, len(w.Data), w.Offset, d.Size)
		}
		if err := c.backend.WriteBuffer(d, w); err != nil {
			return fmt.Errorf("write %s: %w", w.Resource, err)
		}
	}
	return nil
}

func (c *compute) BeginComputeFrame() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unusable() {
		return ErrDeviceLost
	}
	return c.backend.BeginComputeFrame()
}

func (c *compute) DispatchCompute(pipelineKey string, slot int, workGroupCount [3]uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unusable() {
		return ErrDeviceLost
	}
	p, ok := c.pipelineCache[pipelineKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPipeline, pipelineKey)
	}
	return c.backend.DispatchCompute(p, slot, workGroupCount)
}

func (c *compute) EndComputeFrame() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unusable() {
		return ErrDeviceLost
	}
	return c.backend.EndComputeFrame()
}

func (c *compute) ReadResource(ctx context.Context, name shader.AnnotationArg) ([]byte, error) {
	pending, err := c.stageReadback(name)
	if err != nil {
		return nil, err
	}
	data, err := pending.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (c *compute) stageReadback(name shader.AnnotationArg) (Readback, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unusable() {
		return nil, ErrDeviceLost
	}
	d, ok := c.resources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	pending, err := c.backend.StageReadback(d)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return pending, nil
}

// unusable must be called with c.mu held.
func (c *compute) unusable() bool {
	return c.released || c.backend.Lost()
}

func (c *compute) Lost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unusable()
}

func (c *compute) MarkLost() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.unusable() {
		c.logger.Warn("compute device lost", zap.Stringer("backend", c.backendType))
	}
	c.backend.MarkLost()
}

func (c *compute) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.mu.Unlock()

	// Readbacks still in flight are drained by the backend without c.mu.
	c.backend.Release()

	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.pipelineCache)
	clear(c.resources)
}
