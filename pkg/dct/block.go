// Package dct implements the 8x8 block discrete cosine transform used by
// JPEG and the reshape between row-major rasters and contiguous blocks.
package dct

import "math"

// BlockSize is the number of coefficients in one 8x8 block.
const BlockSize = 64

// basis[8*u+x] = 0.5*c(u)*cos((2x+1)*u*pi/16), c(0) = 1/sqrt(2), c(u) = 1 otherwise.
// The 1D transform is orthonormal, so the 2D pair carries the JPEG 1/4*C(u)*C(v)
// normalization and Inverse8x8 is the exact transpose of Forward8x8.
var basis = func() [64]float64 {
	var m [64]float64
	for u := 0; u < 8; u++ {
		c := 1.0
		if u == 0 {
			c = 1 / math.Sqrt2
		}
		for x := 0; x < 8; x++ {
			m[8*u+x] = 0.5 * c * math.Cos(float64(2*x+1)*float64(u)*math.Pi/16)
		}
	}
	return m
}()

func forward1D(in *[64]float64, off, stride int, out *[64]float64) {
	for u := 0; u < 8; u++ {
		var sum float64
		for x := 0; x < 8; x++ {
			sum += basis[8*u+x] * in[off+x*stride]
		}
		out[off+u*stride] = sum
	}
}

func inverse1D(in *[64]float64, off, stride int, out *[64]float64) {
	for x := 0; x < 8; x++ {
		var sum float64
		for u := 0; u < 8; u++ {
			sum += basis[8*u+x] * in[off+u*stride]
		}
		out[off+x*stride] = sum
	}
}

type transform1D func(in *[64]float64, off, stride int, out *[64]float64)

// transformBlock applies f along columns then rows. Intermediate sums stay in
// float64; only the final store rounds to float32.
func transformBlock(block *[64]float32, f transform1D) {
	var a, b [64]float64
	for i, v := range block {
		a[i] = float64(v)
	}
	for x := 0; x < 8; x++ {
		f(&a, x, 8, &b)
	}
	for y := 0; y < 8; y++ {
		f(&b, 8*y, 1, &a)
	}
	for i, v := range a {
		block[i] = float32(v)
	}
}

// Forward8x8 replaces 64 samples (row-major) with their DCT coefficients
// (row-major by vertical then horizontal frequency).
func Forward8x8(block *[64]float32) {
	transformBlock(block, forward1D)
}

// Inverse8x8 replaces 64 DCT coefficients with the samples they describe.
func Inverse8x8(block *[64]float32) {
	transformBlock(block, inverse1D)
}

// ForwardBlocks transforms every block of a block-layout buffer in place.
func ForwardBlocks(blocks []float32) {
	for i := 0; i+BlockSize <= len(blocks); i += BlockSize {
		Forward8x8((*[64]float32)(blocks[i : i+BlockSize]))
	}
}

// InverseBlocks inverse transforms every block of a block-layout buffer in place.
func InverseBlocks(blocks []float32) {
	for i := 0; i+BlockSize <= len(blocks); i += BlockSize {
		Inverse8x8((*[64]float32)(blocks[i : i+BlockSize]))
	}
}
