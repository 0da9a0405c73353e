package compute

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-ocean/common"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/pipeline"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// textureRowAlignment is the required bytesPerRow alignment of texture to buffer copies.
const textureRowAlignment = 256

// wgpuResource holds the device objects backing one named resource.
type wgpuResource struct {
	desc    ResourceDescriptor
	buffer  *wgpu.Buffer
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

// providerKey identifies a cached bind group: one per pipeline, group and dispatch slot.
type providerKey struct {
	pipeline string
	group    int
	slot     int
}

type wgpuComputeBackendImpl struct {
	mu     *sync.Mutex
	logger *zap.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	resources map[shader.AnnotationArg]*wgpuResource

	// layouts holds each registered pipeline's bind group layouts, indexed by group
	layouts map[string][]*wgpu.BindGroupLayout

	// providers caches bind groups so a frame never creates device objects
	providers map[providerKey]bind_group_provider.BindGroupProvider

	// pipelines holds every registered pipeline so Release can free its device object
	pipelines map[string]pipeline.Pipeline

	// Compute frame state for batching all compute dispatches into a single GPU submission
	computeFrameEncoder *wgpu.CommandEncoder

	pollInterval time.Duration
	lost         atomic.Bool

	// closed is set under mu by Release; closing wakes readbacks still waiting on the device and
	// inflight counts them so the device outlives every staged copy.
	closed   bool
	closing  chan struct{}
	inflight sync.WaitGroup
}

var _ ComputeBackend = &wgpuComputeBackendImpl{}

func newWGPUComputeBackend(forceFallbackAdapter bool, pollInterval time.Duration, l *zap.Logger) (ComputeBackend, error) {
	w := &wgpuComputeBackendImpl{
		mu:           &sync.Mutex{},
		logger:       l,
		instance:     wgpu.CreateInstance(nil),
		resources:    make(map[shader.AnnotationArg]*wgpuResource),
		layouts:      make(map[string][]*wgpu.BindGroupLayout),
		providers:    make(map[providerKey]bind_group_provider.BindGroupProvider),
		pipelines:    make(map[string]pipeline.Pipeline),
		pollInterval: pollInterval,
		closing:      make(chan struct{}),
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		PowerPreference:      wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		w.instance.Release()
		return nil, fmt.Errorf("%w: request adapter: %w", ErrDeviceUnavailable, err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Ocean Compute Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
		DeviceLostCallback: w.deviceLost,
	})
	if err != nil {
		a.Release()
		w.instance.Release()
		return nil, fmt.Errorf("%w: request device: %w", ErrDeviceUnavailable, err)
	}
	w.device = d
	w.queue = d.GetQueue()

	info := a.GetInfo()
	l.Info("wgpu adapter acquired",
		zap.String("name", info.Name),
		zap.String("backend", info.BackendType.String()),
		zap.String("type", info.AdapterType.String()),
	)
	return w, nil
}

// deviceLost is invoked by the driver when the device stops accepting work. Destruction caused by
// Release is not a loss.
func (b *wgpuComputeBackendImpl) deviceLost(reason wgpu.DeviceLostReason, message string) {
	if reason == wgpu.DeviceLostReasonDestroyed {
		return
	}
	select {
	case <-b.closing:
		return
	default:
	}
	if !b.lost.Swap(true) {
		b.logger.Warn("wgpu device lost",
			zap.Stringer("reason", reason),
			zap.String("message", message),
		)
	}
}

func (b *wgpuComputeBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	computeShader := p.Shader()
	if computeShader == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	s, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return err
	}
	defer s.Release()

	descriptors := computeShader.BindGroupLayoutDescriptors()
	maxGroup := -1
	for g := range descriptors {
		maxGroup = max(maxGroup, g)
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := range bindGroupLayouts {
		desc := descriptors[g]
		desc.Label = fmt.Sprintf("%s Group %d", p.PipelineKey(), g)
		bgl, bglErr := b.device.CreateBindGroupLayout(&desc)
		if bglErr != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, bglErr)
		}
		bindGroupLayouts[g] = bgl
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return err
	}
	defer layout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	p.SetComputePipeline(created)
	b.layouts[p.PipelineKey()] = bindGroupLayouts
	b.pipelines[p.PipelineKey()] = p
	return nil
}

func (b *wgpuComputeBackendImpl) CreateResource(d ResourceDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := &wgpuResource{desc: d}
	switch d.Kind {
	case ResourceKindUniform, ResourceKindStorage:
		usage := wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
		if d.Kind == ResourceKindUniform {
			usage |= wgpu.BufferUsageUniform
		} else {
			usage |= wgpu.BufferUsageStorage
		}
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: string(d.Name) + " Buffer",
			Size:  common.AlignUp(d.Size, 4),
			Usage: usage,
		})
		if err != nil {
			return err
		}
		res.buffer = buf
	case ResourceKindTexture:
		tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:     string(d.Name) + " Texture",
			Usage:     wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
			Dimension: wgpu.TextureDimension2D,
			Size: wgpu.Extent3D{
				Width:              d.Width,
				Height:             d.Height,
				DepthOrArrayLayers: 1,
			},
			Format:        wgpu.TextureFormatRGBA32Float,
			MipLevelCount: 1,
			SampleCount:   1,
		})
		if err != nil {
			return err
		}
		view, err := tex.CreateView(nil)
		if err != nil {
			tex.Release()
			return err
		}
		res.texture = tex
		res.view = view
	default:
		return fmt.Errorf("unknown resource kind %d", d.Kind)
	}
	b.resources[d.Name] = res
	return nil
}

func (b *wgpuComputeBackendImpl) WriteBuffer(d ResourceDescriptor, w BufferWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, ok := b.resources[d.Name]
	if !ok || res.buffer == nil {
		return fmt.Errorf("%w: %s", ErrUnknownResource, d.Name)
	}
	b.queue.WriteBuffer(res.buffer, w.Offset, w.Data)
	return nil
}

func (b *wgpuComputeBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// An abandoned frame is dropped without submitting its dispatches.
	if b.computeFrameEncoder != nil {
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.computeFrameEncoder = encoder
	return nil
}

func (b *wgpuComputeBackendImpl) DispatchCompute(p pipeline.Pipeline, slot int, workGroupCount [3]uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoFrame
	}
	layouts, ok := b.layouts[p.PipelineKey()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPipeline, p.PipelineKey())
	}

	providers := make([]bind_group_provider.BindGroupProvider, len(layouts))
	for g := range layouts {
		provider, err := b.bindGroupProvider(p, g, slot)
		if err != nil {
			return err
		}
		providers[g] = provider
	}

	// One pass per dispatch so that each dispatch observes the writes of the previous one.
	pass := b.computeFrameEncoder.BeginComputePass(nil)
	pass.SetPipeline(p.Pipeline())
	for _, provider := range providers {
		pass.SetBindGroup(uint32(provider.Group()), provider.BindGroup(), nil)
	}
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()
	return nil
}

// bindGroupProvider returns the cached bind group of (pipeline, group, slot), creating it on
// first use by resolving each layout entry to the resource named by the kernel's declarations.
func (b *wgpuComputeBackendImpl) bindGroupProvider(p pipeline.Pipeline, group, slot int) (bind_group_provider.BindGroupProvider, error) {
	key := providerKey{pipeline: p.PipelineKey(), group: group, slot: slot}
	if provider, ok := b.providers[key]; ok {
		return provider, nil
	}

	computeShader := p.Shader()
	descriptor := computeShader.BindGroupLayoutDescriptor(group)
	provider := bind_group_provider.NewBindGroupProvider(
		fmt.Sprintf("%s/%d/%d", p.PipelineKey(), group, slot),
		bind_group_provider.WithGroup(group),
		bind_group_provider.WithBindGroupLayout(b.layouts[p.PipelineKey()][group]),
	)

	entries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		binding := int(entry.Binding)
		name, ok := computeShader.Resource(group, binding)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: binding %d/%d has no @oxy declaration", p.PipelineKey(), group, binding)
		}
		res, ok := b.resources[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
		}

		isTexture := entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined ||
			entry.StorageTexture.Format != wgpu.TextureFormatUndefined
		if isTexture {
			if res.view == nil {
				return nil, fmt.Errorf("binding %d/%d expects a texture but %s is a buffer", group, binding, name)
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding:     entry.Binding,
				TextureView: res.view,
			}
			continue
		}

		if res.buffer == nil {
			return nil, fmt.Errorf("binding %d/%d expects a buffer but %s is a texture", group, binding, name)
		}
		size := uint64(wgpu.WholeSize)
		if res.desc.SlotStride > 0 {
			size = common.Coalesce(entry.Buffer.MinBindingSize, res.desc.SlotStride)
		}
		entries[i] = wgpu.BindGroupEntry{
			Binding: entry.Binding,
			Buffer:  res.buffer,
			Offset:  res.desc.SlotOffset(slot),
			Size:    size,
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  provider.BindGroupLayout(),
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	provider.SetBindGroup(bindGroup)
	b.providers[key] = provider
	return provider, nil
}

func (b *wgpuComputeBackendImpl) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoFrame
	}
	defer func() {
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
	}()

	commandBuffer, err := b.computeFrameEncoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()
	b.queue.Submit(commandBuffer)

	// A non-blocking poll drives the device-lost callback without waiting on the submission.
	b.device.Poll(false, nil)
	if b.lost.Load() {
		return ErrDeviceLost
	}
	return nil
}

func (b *wgpuComputeBackendImpl) StageReadback(d ResourceDescriptor) (Readback, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrDeviceLost
	}
	res, ok := b.resources[d.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, d.Name)
	}

	bytesPerRow := uint64(d.Width) * TexelSize
	stagingSize := common.AlignUp(d.Size, 4)
	if res.texture != nil {
		bytesPerRow = common.AlignUp(bytesPerRow, textureRowAlignment)
		stagingSize = bytesPerRow * uint64(d.Height)
	}

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: string(d.Name) + " Staging",
		Size:  stagingSize,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create staging buffer: %w", err)
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		staging.Release()
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	if res.texture != nil {
		encoder.CopyTextureToBuffer(
			&wgpu.ImageCopyTexture{
				Texture:  res.texture,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			&wgpu.ImageCopyBuffer{
				Buffer: staging,
				Layout: wgpu.TextureDataLayout{
					Offset:       0,
					BytesPerRow:  uint32(bytesPerRow),
					RowsPerImage: d.Height,
				},
			},
			&wgpu.Extent3D{
				Width:              d.Width,
				Height:             d.Height,
				DepthOrArrayLayers: 1,
			},
		)
	} else {
		encoder.CopyBufferToBuffer(res.buffer, 0, staging, 0, stagingSize)
	}
	commands, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		staging.Release()
		return nil, fmt.Errorf("failed to finish encoder: %w", err)
	}
	b.queue.Submit(commands)
	commands.Release()

	done := make(chan wgpu.BufferMapAsyncStatus, 1)
	err = staging.MapAsync(wgpu.MapModeRead, 0, stagingSize, func(status wgpu.BufferMapAsyncStatus) {
		done <- status
	})
	if err != nil {
		staging.Release()
		return nil, err
	}

	b.inflight.Add(1)
	return &wgpuReadback{
		backend:     b,
		device:      b.device,
		staging:     staging,
		desc:        d,
		bytesPerRow: bytesPerRow,
		stagingSize: stagingSize,
		done:        done,
	}, nil
}

// wgpuReadback is a submitted copy into a mapped-read staging buffer. Waiting polls the device
// without taking the backend lock.
type wgpuReadback struct {
	backend *wgpuComputeBackendImpl
	device  *wgpu.Device
	staging *wgpu.Buffer

	desc        ResourceDescriptor
	bytesPerRow uint64
	stagingSize uint64
	done        chan wgpu.BufferMapAsyncStatus
}

func (r *wgpuReadback) Wait(ctx context.Context) ([]byte, error) {
	defer r.backend.inflight.Done()
	defer r.staging.Release()

	ticker := time.NewTicker(r.backend.pollInterval)
	defer ticker.Stop()
	for {
		r.device.Poll(false, nil)
		select {
		case status := <-r.done:
			if status == wgpu.BufferMapAsyncStatusDeviceLost {
				r.backend.lost.Store(true)
				return nil, ErrDeviceLost
			}
			if status != wgpu.BufferMapAsyncStatusSuccess {
				return nil, fmt.Errorf("failed to map buffer: %v", status)
			}
			return copyMapped(r.staging, r.desc, r.bytesPerRow, r.stagingSize), nil
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrReadbackTimeout, ctx.Err())
		case <-r.backend.closing:
			return nil, ErrDeviceLost
		case <-ticker.C:
		}
	}
}

// copyMapped copies the mapped staging range into a tightly packed host slice, dropping the row
// padding of texture copies.
func copyMapped(staging *wgpu.Buffer, d ResourceDescriptor, bytesPerRow, stagingSize uint64) []byte {
	mapped := staging.GetMappedRange(0, uint(stagingSize))
	defer staging.Unmap()

	out := make([]byte, d.ByteSize())
	if d.Kind != ResourceKindTexture {
		copy(out, mapped)
		return out
	}
	rowBytes := uint64(d.Width) * TexelSize
	for y := range uint64(d.Height) {
		copy(out[y*rowBytes:(y+1)*rowBytes], mapped[y*bytesPerRow:y*bytesPerRow+rowBytes])
	}
	return out
}

func (b *wgpuComputeBackendImpl) Lost() bool {
	return b.lost.Load()
}

func (b *wgpuComputeBackendImpl) MarkLost() {
	b.lost.Store(true)
}

func (b *wgpuComputeBackendImpl) Release() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.closing)
	b.mu.Unlock()

	// Pending readbacks return on closing; their staging buffers must go before the device.
	b.inflight.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder != nil {
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
	}
	for k, provider := range b.providers {
		provider.Release()
		delete(b.providers, k)
	}
	for k, layouts := range b.layouts {
		for _, l := range layouts {
			l.Release()
		}
		delete(b.layouts, k)
	}
	for k, p := range b.pipelines {
		if cp := p.Pipeline(); cp != nil {
			cp.Release()
			p.SetComputePipeline(nil)
		}
		delete(b.pipelines, k)
	}
	for k, res := range b.resources {
		if res.view != nil {
			res.view.Release()
		}
		if res.texture != nil {
			res.texture.Release()
		}
		if res.buffer != nil {
			res.buffer.Release()
		}
		delete(b.resources, k)
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
