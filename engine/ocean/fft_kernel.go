package ocean

import (
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/pipeline"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"github.com/Carmen-Shannon/oxy-ocean/engine/ocean/gpu"
)

// emulateFFT mirrors fft.wgsl: one butterfly stage along row id.y of layer id.z.
func emulateFFT(b pipeline.EmulatedBindings, id [3]uint32) {
	p := oceanParams(b[shader.AnnotationArgParams])
	n := p.GridSize
	if id[0] >= n || id[1] >= n || id[2] >= fieldLayers {
		return
	}
	d := dispatchParams(b[shader.AnnotationArgDispatch])
	table := b[shader.AnnotationArgButterfly]
	base := int(d.Stage*n+id[0]) * 4
	w := complex(table.F32(base), table.F32(base+1))
	if d.Direction == gpu.FFTInverse {
		w = complex(real(w), -imag(w))
	}

	field := b[shader.AnnotationArgFFT]
	in := fieldValue(field, fieldIndex(n, id[2], d.Ping, id[1], table.U32(base+2)))
	tw := fieldValue(field, fieldIndex(n, id[2], d.Ping, id[1], table.U32(base+3)))
	setFieldValue(field, fieldIndex(n, id[2], 1-d.Ping, id[1], id[0]), in+w*tw)
}

// emulateTranspose mirrors transpose.wgsl.
func emulateTranspose(b pipeline.EmulatedBindings, id [3]uint32) {
	p := oceanParams(b[shader.AnnotationArgParams])
	n := p.GridSize
	if id[0] >= n || id[1] >= n || id[2] >= fieldLayers {
		return
	}
	d := dispatchParams(b[shader.AnnotationArgDispatch])
	field := b[shader.AnnotationArgFFT]
	v := fieldValue(field, fieldIndex(n, id[2], d.Ping, id[1], id[0]))
	setFieldValue(field, fieldIndex(n, id[2], 1-d.Ping, id[0], id[1]), v)
}
