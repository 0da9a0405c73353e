package ocean

import (
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/pipeline"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"github.com/Carmen-Shannon/oxy-ocean/engine/ocean/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// surfaceAt returns (λ·Dx, height, λ·Dz) at (x, z) of the transformed field, wrapping around
// the tile edges.
func surfaceAt(field pipeline.EmulatedBinding, p gpu.GPUOceanParams, x, z int) mgl32.Vec3 {
	n := int(p.GridSize)
	wx := uint32((x + n) % n)
	wz := uint32((z + n) % n)
	h := fieldValue(field, fieldIndex(p.GridSize, 0, resultPing, wx, wz))
	d := fieldValue(field, fieldIndex(p.GridSize, 1, resultPing, wx, wz))
	return mgl32.Vec3{p.Choppiness * real(d), p.HeightScale * real(h), p.Choppiness * imag(d)}
}

// emulateUnpack mirrors unpack.wgsl.
func emulateUnpack(b pipeline.EmulatedBindings, id [3]uint32) {
	p := oceanParams(b[shader.AnnotationArgParams])
	n := p.GridSize
	if id[0] >= n || id[1] >= n {
		return
	}
	field := b[shader.AnnotationArgFFT]
	x, z := int(id[0]), int(id[1])

	center := surfaceAt(field, p, x, z)
	residue := imag(fieldValue(field, fieldIndex(n, 0, resultPing, id[0], id[1])))
	b[shader.AnnotationArgDisplacement].SetTexel(id[0], id[1], center.Vec4(residue))

	spacing := p.TileLength / float32(n)
	dx := surfaceAt(field, p, x+1, z).Sub(surfaceAt(field, p, x-1, z))
	dz := surfaceAt(field, p, x, z+1).Sub(surfaceAt(field, p, x, z-1))
	tangentX := mgl32.Vec3{2*spacing + dx.X(), dx.Y(), dx.Z()}
	tangentZ := mgl32.Vec3{dz.X(), dz.Y(), 2*spacing + dz.Z()}
	normal := tangentZ.Cross(tangentX).Normalize()

	jxx := 1 + dx.X()/(2*spacing)
	jzz := 1 + dz.Z()/(2*spacing)
	jxz := dz.X() / (2 * spacing)
	jzx := dx.Z() / (2 * spacing)
	b[shader.AnnotationArgNormal].SetTexel(id[0], id[1], normal.Vec4(jxx*jzz-jxz*jzx))
}
