package recon

import (
	"math"
	"math/rand/v2"

	"github.com/jpfielding/dejpeg.go/pkg/dct"
)

func randomImage(w, h int, seed uint64) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := make([]float32, w*h)
	for i := range img {
		img[i] = float32(rng.IntN(256) - 128)
	}
	return img
}

func uniformQuant(s uint16) *QuantTable {
	var q QuantTable
	for i := range q {
		q[i] = s
	}
	return &q
}

// luminance table from Annex K of the JPEG standard, natural order.
var annexKLuma = QuantTable{
	16, 11, 10, 16, 24, 40, 51, 61,
	12, 12, 14, 19, 26, 58, 60, 55,
	14, 13, 16, 24, 40, 57, 69, 56,
	14, 17, 22, 29, 51, 87, 80, 62,
	18, 22, 37, 56, 68, 109, 103, 77,
	24, 35, 55, 64, 81, 104, 113, 92,
	49, 64, 78, 87, 103, 121, 120, 101,
	72, 92, 95, 98, 112, 100, 103, 99,
}

// quantizeImage encodes a level shifted raster the way a JPEG encoder would.
func quantizeImage(img []float32, w, h int, q *QuantTable) []int16 {
	blocks := make([]float32, w*h)
	dct.Box(img, blocks, w, h)
	dct.ForwardBlocks(blocks)
	coeffs := make([]int16, len(blocks))
	for i, v := range blocks {
		coeffs[i] = int16(math.Round(float64(v) / float64(q[i%dct.BlockSize])))
	}
	return coeffs
}

// coefficientsOf returns the block-layout transform of a raster.
func coefficientsOf(img []float32, w, h int) []float32 {
	blocks := make([]float32, w*h)
	dct.Box(img, blocks, w, h)
	dct.ForwardBlocks(blocks)
	return blocks
}

// outsideBox counts coefficients of img further than tol outside box.
func outsideBox(img []float32, w, h int, box *Box, tol float32) int {
	n := 0
	for i, v := range coefficientsOf(img, w, h) {
		if v < box.Min[i]-tol || v > box.Max[i]+tol {
			n++
		}
	}
	return n
}

func sum(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x)
	}
	return s
}

type countingProgress struct{ n int }

func (c *countingProgress) Inc() { c.n++ }

type recordedMetrics []Metrics

func (r *recordedMetrics) Record(m Metrics) { *r = append(*r, m) }
