package dct

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForward8x8_Inverse8x8_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		fill func(x, y int) float32
	}{
		{name: "flat", fill: func(x, y int) float32 { return 42 }},
		{name: "ramp", fill: func(x, y int) float32 { return float32(x*8 + y - 64) }},
		{name: "checker", fill: func(x, y int) float32 {
			if (x+y)%2 == 0 {
				return 127
			}
			return -128
		}},
		{name: "edge", fill: func(x, y int) float32 {
			if x < 3 {
				return -50
			}
			return 90
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var block, orig [64]float32
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x++ {
					block[y*8+x] = tt.fill(x, y)
				}
			}
			orig = block

			Forward8x8(&block)
			Inverse8x8(&block)

			for i := range block {
				assert.InDelta(t, orig[i], block[i], 1e-3, "sample %d", i)
			}
		})
	}
}

func TestForward8x8_DCScaling(t *testing.T) {
	// JPEG normalization: a flat block of value v has DC = 8*v and no AC energy.
	var block [64]float32
	for i := range block {
		block[i] = 10
	}
	Forward8x8(&block)

	assert.InDelta(t, 80, block[0], 1e-4)
	for i := 1; i < 64; i++ {
		assert.InDelta(t, 0, block[i], 1e-4, "coefficient %d", i)
	}
}

func TestForward8x8_Orientation(t *testing.T) {
	// A horizontal cosine of frequency 1 lands in row 0, column 1.
	var block [64]float32
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			block[y*8+x] = float32(math.Cos(float64(2*x+1) * math.Pi / 16))
		}
	}
	Forward8x8(&block)

	assert.Greater(t, math.Abs(float64(block[1])), 1.0)
	assert.InDelta(t, 0, block[8], 1e-4)
}

func TestForward8x8_PreservesEnergy(t *testing.T) {
	var block [64]float32
	var before float64
	for i := range block {
		block[i] = float32((i*37)%23) - 11
		before += float64(block[i]) * float64(block[i])
	}
	Forward8x8(&block)
	var after float64
	for _, v := range block {
		after += float64(v) * float64(v)
	}
	assert.InEpsilon(t, before, after, 1e-5)
}

func TestBox_Unbox_RoundTrip(t *testing.T) {
	w, h := 24, 16
	raster := make([]float32, w*h)
	for i := range raster {
		raster[i] = float32(i)
	}
	blocks := make([]float32, w*h)
	Box(raster, blocks, w, h)

	// second block starts at raster column 8 of row 0
	assert.Equal(t, float32(8), blocks[64])
	// first block second row is raster row 1
	assert.Equal(t, float32(w), blocks[8])
	// block (0,1) starts at raster row 8
	assert.Equal(t, float32(8*w), blocks[3*64])

	back := make([]float32, w*h)
	Unbox(blocks, back, w, h)
	require.Equal(t, raster, back)
}

func TestForwardBlocks_InverseBlocks(t *testing.T) {
	buf := make([]float32, 3*BlockSize)
	for i := range buf {
		buf[i] = float32(i % 17)
	}
	orig := append([]float32(nil), buf...)
	ForwardBlocks(buf)
	InverseBlocks(buf)
	for i := range buf {
		assert.InDelta(t, orig[i], buf[i], 1e-3)
	}
}
