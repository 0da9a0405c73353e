package compute

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-ocean/common"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/pipeline"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"go.uber.org/zap"
)

// emulatedResource is the host storage of one device resource.
type emulatedResource struct {
	desc  ResourceDescriptor
	words []uint32
}

// emulatedDispatch is one recorded dispatch awaiting EndComputeFrame.
type emulatedDispatch struct {
	p              pipeline.Pipeline
	slot           int
	workGroupCount [3]uint32
}

type emulatedComputeBackendImpl struct {
	logger *zap.Logger

	// computePool runs the invocation rows of a dispatch. Workers are reused across frames.
	computePool    worker.DynamicWorkerPool
	computeWorkers int

	resources map[shader.AnnotationArg]*emulatedResource

	// recording is true between BeginComputeFrame and EndComputeFrame
	recording bool
	pending   []emulatedDispatch

	lost bool
}

var _ ComputeBackend = &emulatedComputeBackendImpl{}

// emulatedReadback is a snapshot taken at StageReadback.
type emulatedReadback struct {
	data []byte
}

func (r emulatedReadback) Wait(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadbackTimeout, err)
	}
	return r.data, nil
}

func newEmulatedComputeBackend(computeWorkers int, l *zap.Logger) ComputeBackend {
	return &emulatedComputeBackendImpl{
		logger:         l,
		computePool:    worker.NewDynamicWorkerPool(computeWorkers, 256, 1*time.Second),
		computeWorkers: computeWorkers,
		resources:      make(map[shader.AnnotationArg]*emulatedResource),
	}
}

func (b *emulatedComputeBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	computeShader := p.Shader()
	if computeShader == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}
	if p.Emulator() == nil {
		return fmt.Errorf("pipeline %s has no host emulator", p.PipelineKey())
	}

	// The WGSL never runs here, so translation failures are only reported.
	if _, err := computeShader.Compile(); err != nil {
		level := zap.WarnLevel
		if strings.Contains(err.Error(), "not yet implemented") || strings.Contains(err.Error(), "not supported") {
			level = zap.DebugLevel
		}
		b.logger.Check(level, "kernel did not translate to SPIR-V").Write(
			zap.String("pipeline", p.PipelineKey()),
			zap.Error(err),
		)
	}
	return nil
}

func (b *emulatedComputeBackendImpl) CreateResource(d ResourceDescriptor) error {
	b.resources[d.Name] = &emulatedResource{
		desc:  d,
		words: make([]uint32, common.DivCeil(uint32(d.ByteSize()), 4)),
	}
	return nil
}

func (b *emulatedComputeBackendImpl) WriteBuffer(d ResourceDescriptor, w BufferWrite) error {
	res, ok := b.resources[d.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, d.Name)
	}
	if w.Offset%4 != 0 || len(w.Data)%4 != 0 {
		return fmt.Errorf("write %s: offset %d and length %d must be multiples of 4", d.Name, w.Offset, len(w.Data))
	}
	copy(res.words[w.Offset/4:], common.BytesToWords(w.Data))
	return nil
}

func (b *emulatedComputeBackendImpl) BeginComputeFrame() error {
	b.recording = true
	b.pending = b.pending[:0]
	return nil
}

func (b *emulatedComputeBackendImpl) DispatchCompute(p pipeline.Pipeline, slot int, workGroupCount [3]uint32) error {
	if !b.recording {
		return ErrNoFrame
	}
	b.pending = append(b.pending, emulatedDispatch{p: p, slot: slot, workGroupCount: workGroupCount})
	return nil
}

func (b *emulatedComputeBackendImpl) EndComputeFrame() error {
	if !b.recording {
		return ErrNoFrame
	}
	b.recording = false
	for _, d := range b.pending {
		if b.lost {
			return ErrDeviceLost
		}
		if err := b.run(d); err != nil {
			return fmt.Errorf("dispatch %s: %w", d.p.PipelineKey(), err)
		}
	}
	b.pending = b.pending[:0]
	return nil
}

// run executes every invocation of one dispatch. Invocation rows are fanned out over the
// worker pool and a WaitGroup provides the barrier before the next dispatch starts.
func (b *emulatedComputeBackendImpl) run(d emulatedDispatch) error {
	bindings, err := b.bind(d.p.Shader(), d.slot)
	if err != nil {
		return err
	}
	emulate := d.p.Emulator()
	size := d.p.WorkgroupSize()
	width := d.workGroupCount[0] * size[0]
	height := d.workGroupCount[1] * size[1]
	depth := d.workGroupCount[2] * size[2]
	rows := int(height * depth)
	if rows == 0 || width == 0 {
		return nil
	}

	chunks := min(rows, b.computeWorkers*4)
	perChunk := (rows + chunks - 1) / chunks

	var wg sync.WaitGroup
	for taskID := 0; taskID*perChunk < rows; taskID++ {
		first := taskID * perChunk
		last := min(first+perChunk, rows)
		wg.Add(1)
		b.computePool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				for row := first; row < last; row++ {
					y := uint32(row) % height
					z := uint32(row) / height
					for x := range width {
						emulate(bindings, [3]uint32{x, y, z})
					}
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return nil
}

// bind resolves every declaration of a kernel to the host storage of its resource. Slotted
// resources expose only the words of the dispatch's slot.
func (b *emulatedComputeBackendImpl) bind(s shader.Shader, slot int) (pipeline.EmulatedBindings, error) {
	bindings := make(pipeline.EmulatedBindings, len(s.Declarations()))
	for _, decl := range s.Declarations() {
		name, ok := decl.Resource()
		if !ok {
			continue
		}
		res, ok := b.resources[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
		}
		words := res.words
		if res.desc.SlotStride > 0 {
			start := res.desc.SlotOffset(slot) / 4
			end := start + res.desc.SlotStride/4
			if end > uint64(len(words)) {
				return nil, fmt.Errorf("slot %d of %s out of range", slot, name)
			}
			words = words[start:end]
		}
		bindings[name] = pipeline.EmulatedBinding{
			Words:  words,
			Width:  res.desc.Width,
			Height: res.desc.Height,
		}
	}
	return bindings, nil
}

// StageReadback snapshots the resource. The host memory is the device memory here, so the copy
// is complete before the call returns.
func (b *emulatedComputeBackendImpl) StageReadback(d ResourceDescriptor) (Readback, error) {
	res, ok := b.resources[d.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, d.Name)
	}
	return emulatedReadback{data: common.WordsToBytes(res.words)[:d.ByteSize()]}, nil
}

func (b *emulatedComputeBackendImpl) Lost() bool {
	return b.lost
}

func (b *emulatedComputeBackendImpl) MarkLost() {
	b.lost = true
}

func (b *emulatedComputeBackendImpl) Release() {
	b.computePool.Stop()
	clear(b.resources)
	b.pending = nil
	b.recording = false
}
