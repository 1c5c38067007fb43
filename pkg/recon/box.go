package recon

import "github.com/jpfielding/dejpeg.go/pkg/dct"

// Box is the set of transform coefficient values consistent with the
// quantized coefficients of a plane, in block layout.
type Box struct {
	Min []float32
	Max []float32
}

// NewBox derives the interval [(v-0.5)*q, (v+0.5)*q] for every coefficient v.
func NewBox(coeffs []int16, q *QuantTable) *Box {
	b := &Box{
		Min: make([]float32, len(coeffs)),
		Max: make([]float32, len(coeffs)),
	}
	for i, v := range coeffs {
		s := float32(q[i%dct.BlockSize])
		b.Max[i] = (float32(v) + 0.5) * s
		b.Min[i] = (float32(v) - 0.5) * s
	}
	return b
}

// Clamp limits the coefficients of one block, starting at offset off, to the box.
func (b *Box) Clamp(block *[64]float32, off int) {
	lo := b.Min[off : off+dct.BlockSize]
	hi := b.Max[off : off+dct.BlockSize]
	for j, v := range block {
		block[j] = min(max(v, lo[j]), hi[j])
	}
}
