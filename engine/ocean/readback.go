package ocean

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-ocean/common"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"github.com/Carmen-Shannon/oxy-ocean/engine/ocean/gpu"
	"go.uber.org/zap"
)

// ComplexField is the spatial-domain result of one frame's transform. Both slices are stored
// the way the device leaves them: sample (x, z) at index x·Size + z.
type ComplexField struct {
	Size int
	// Height is the height field. Its imaginary part is numerical residue.
	Height []complex64
	// Horizontal packs the horizontal displacement as Dx + i·Dz.
	Horizontal []complex64
}

// HeightAt returns the height sample at (x, z).
func (f ComplexField) HeightAt(x, z int) complex64 {
	return f.Height[x*f.Size+z]
}

// HorizontalAt returns the packed horizontal displacement at (x, z).
func (f ComplexField) HorizontalAt(x, z int) complex64 {
	return f.Horizontal[x*f.Size+z]
}

func (o *orchestrator) ReadSpectrum(ctx context.Context) (common.TextureStagingData, error) {
	return o.readTexture(ctx, shader.AnnotationArgSpectrum)
}

func (o *orchestrator) ReadDisplacement(ctx context.Context) (common.TextureStagingData, error) {
	return o.readTexture(ctx, shader.AnnotationArgDisplacement)
}

func (o *orchestrator) ReadNormals(ctx context.Context) (common.TextureStagingData, error) {
	return o.readTexture(ctx, shader.AnnotationArgNormal)
}

func (o *orchestrator) ReadButterfly(ctx context.Context) ([]gpu.GPUButterflyEntry, error) {
	data, err := o.read(ctx, shader.AnnotationArgButterfly)
	if err != nil {
		return nil, err
	}
	return gpu.UnmarshalButterflyEntries(data), nil
}

func (o *orchestrator) ReadField(ctx context.Context) (ComplexField, error) {
	data, err := o.read(ctx, shader.AnnotationArgFFT)
	if err != nil {
		return ComplexField{}, err
	}
	values := common.BytesToFloat32s(data)
	n := o.params.GridSize
	field := ComplexField{
		Size:       n,
		Height:     make([]complex64, n*n),
		Horizontal: make([]complex64, n*n),
	}
	layers := [fieldLayers][]complex64{field.Height, field.Horizontal}
	for layer, out := range layers {
		base := fieldIndex(uint32(n), uint32(layer), resultPing, 0, 0)
		for i := range out {
			out[i] = complex(values[2*(base+i)], values[2*(base+i)+1])
		}
	}
	return field, nil
}

func (o *orchestrator) readTexture(ctx context.Context, name shader.AnnotationArg) (common.TextureStagingData, error) {
	data, err := o.read(ctx, name)
	if err != nil {
		return common.TextureStagingData{}, err
	}
	return common.TextureStagingData{
		Texels: common.BytesToFloat32s(data),
		Width:  uint32(o.params.GridSize),
		Height: uint32(o.params.GridSize),
	}, nil
}

// read copies one resource to the host, bounded by ctx and the readback timeout. Failures are
// logged and never touch the frame state. The orchestrator is only locked to pick the device,
// so Update keeps encoding frames while the copy is in flight; the copy reflects the last frame
// submitted before it was staged.
func (o *orchestrator) read(ctx context.Context, name shader.AnnotationArg) ([]byte, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	device := o.device
	o.mu.Unlock()
	if device == nil {
		return nil, compute.ErrDeviceLost
	}

	ctx, cancel := context.WithTimeout(ctx, o.readbackTimeout)
	defer cancel()
	data, err := device.ReadResource(ctx, name)
	if err != nil {
		o.logger.Warn("readback failed", zap.String("resource", string(name)), zap.Error(err))
		return nil, fmt.Errorf("ocean: read %s: %w", name, err)
	}
	return data, nil
}
