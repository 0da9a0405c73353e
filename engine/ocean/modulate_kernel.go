package ocean

import (
	"github.com/Carmen-Shannon/oxy-ocean/common"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/pipeline"
	"github.com/Carmen-Shannon/oxy-ocean/engine/compute/shader"
	"github.com/chewxy/math32"
)

// emulateModulate mirrors modulate.wgsl.
func emulateModulate(b pipeline.EmulatedBindings, id [3]uint32) {
	p := oceanParams(b[shader.AnnotationArgParams])
	n := p.GridSize
	if id[0] >= n || id[1] >= n {
		return
	}
	field := b[shader.AnnotationArgFFT]
	heightIndex := fieldIndex(n, 0, 0, id[1], id[0])
	chopIndex := fieldIndex(n, 1, 0, id[1], id[0])

	// The Nyquist row and column mirror onto themselves instead of -k, and DC carries the
	// mean, so all three are cleared.
	nyquist := n / 2
	if id[0] == nyquist || id[1] == nyquist || (id[0] == 0 && id[1] == 0) {
		setFieldValue(field, heightIndex, 0)
		setFieldValue(field, chopIndex, 0)
		return
	}
	kx, kz := waveVector(id[0], id[1], p)
	k := math32.Hypot(kx, kz)

	texel := b[shader.AnnotationArgSpectrum].Texel(id[0], id[1])
	omega := math32.Sqrt(p.Gravity * k)
	t := frameTime(b[shader.AnnotationArgFrame])
	rot := common.CExpI(omega * t)
	h := complex(texel[0], texel[1])*rot + complex(texel[2], texel[3])*complex(real(rot), -imag(rot))

	minusIH := complex(imag(h), -real(h))
	dx := complex(kx/k, 0) * minusIH
	dz := complex(kz/k, 0) * minusIH

	setFieldValue(field, heightIndex, h)
	setFieldValue(field, chopIndex, complex(real(dx)-imag(dz), imag(dx)+real(dz)))
}
