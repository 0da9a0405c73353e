package ocean

import (
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/pipeline"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
)

// emulateButterfly mirrors butterfly.wgsl. Invocation x covers entry stage·N + y.
func emulateButterfly(b pipeline.EmulatedBindings, id [3]uint32) {
	p := oceanParams(b[shader.AnnotationArgParams])
	n := p.GridSize
	if id[0] >= n*p.LogSize {
		return
	}
	e := butterflyEntry(id[0]/n, id[0]%n, n, int(p.LogSize))
	out := b[shader.AnnotationArgButterfly]
	base := int(id[0]) * 4
	out.SetF32(base, e.Twiddle[0])
	out.SetF32(base+1, e.Twiddle[1])
	out.SetU32(base+2, e.Indices[0])
	out.SetU32(base+3, e.Indices[1])
}
