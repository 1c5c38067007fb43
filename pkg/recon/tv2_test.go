package recon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulateTV2_InteriorSpike(t *testing.T) {
	w, h := 10, 10
	inX := make([]float32, w*h)
	inY := make([]float32, w*h)
	inX[4*w+4] = 1
	grad := make([]float32, w*h)

	tv2 := accumulateTV2(w, h, grad, inX, inY, 0.5)

	// (4,4) sees g_xx = g_xy = 1; (5,4) and (4,5) each see a single -1.
	assert.InDelta(t, 2+math.Sqrt2, tv2, 1e-6)
	// every scatter target is in bounds, so the contributions cancel
	assert.InDelta(t, 0, sum(grad), 1e-5)
	// center pixel: alpha * -(2*g_xx + g_xy)/sqrt(2) plus neighbour terms
	assert.NotZero(t, grad[4*w+4])
	// nothing reaches far away
	assert.Zero(t, grad[0])
	assert.Zero(t, grad[w*h-1])
}

func TestAccumulateTV2_SpikeScatter(t *testing.T) {
	const a = 0.5
	s := 1 / math.Sqrt2
	// inX spike at (4,4): (4,4) has norm sqrt(2), (5,4) sees g_xx = -1 and
	// (4,5) sees g_xy = -1. Keys are {x, y}.
	spikeX := map[[2]int]float64{
		{4, 4}: -(3*a*s + 2*a),
		{3, 4}: a * s,
		{5, 4}: 2*a*s + 3*a,
		{4, 3}: a * s,
		{5, 3}: -a * s,
		{6, 4}: -a,
		{4, 5}: a,
		{5, 5}: -a,
	}
	// the scatter pattern is symmetric under x<->y with inX<->inY
	spikeY := map[[2]int]float64{}
	for k, v := range spikeX {
		spikeY[[2]int{k[1], k[0]}] = v
	}

	tests := []struct {
		name string
		inY  bool
		want map[[2]int]float64
	}{
		{name: "x", want: spikeX},
		{name: "y", inY: true, want: spikeY},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := 10, 10
			inX := make([]float32, w*h)
			inY := make([]float32, w*h)
			if tt.inY {
				inY[4*w+4] = 1
			} else {
				inX[4*w+4] = 1
			}
			grad := make([]float32, w*h)
			tv2 := accumulateTV2(w, h, grad, inX, inY, a)
			assert.InDelta(t, 2+math.Sqrt2, tv2, 1e-6)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					assert.InDelta(t, tt.want[[2]int{x, y}], grad[y*w+x], 1e-6, "(%d,%d)", x, y)
				}
			}
		})
	}
}

// tv2Energy is the TV2 sum of img, using the scalar kernel for the first
// differences.
func tv2Energy(w, h int, img []float32) float64 {
	_, _, inX, inY := runKernel(ScalarKernel, w, h, img)
	return accumulateTV2(w, h, make([]float32, w*h), inX, inY, 1)
}

func TestAccumulateTV2_MatchesFiniteDifference(t *testing.T) {
	w, h := 12, 12
	// a bowl keeps every curvature norm well away from zero, the noise breaks
	// the symmetry so the interior gradient is not trivially zero
	noise := randomImage(w, h, 11)
	img := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img[y*w+x] = float32(4*x*x+3*y*y) + noise[y*w+x]/128
		}
	}
	_, _, inX, inY := runKernel(ScalarKernel, w, h, img)
	grad := make([]float32, w*h)
	accumulateTV2(w, h, grad, inX, inY, 1)

	const eps = 0.05
	for y := 2; y < h-2; y++ {
		for x := 2; x < w-2; x++ {
			i := y*w + x
			moved := append([]float32(nil), img...)
			moved[i] = img[i] + eps
			dUp := float64(moved[i] - img[i])
			up := tv2Energy(w, h, moved)
			moved[i] = img[i] - eps
			dDown := float64(moved[i] - img[i])
			down := tv2Energy(w, h, moved)
			require.InDelta(t, (up-down)/(dUp-dDown), grad[i], 5e-3, "(%d,%d)", x, y)
		}
	}
}

func TestAccumulateTV2_ZeroField(t *testing.T) {
	w, h := 8, 8
	grad := make([]float32, w*h)
	grad[10] = 1.5
	tv2 := accumulateTV2(w, h, grad, make([]float32, w*h), make([]float32, w*h), 1)
	assert.Zero(t, tv2)
	assert.Equal(t, float32(1.5), grad[10])
	assert.InDelta(t, 1.5, sum(grad), 0)
}

func TestAccumulateTV2_ScalesWithAlpha(t *testing.T) {
	w, h := 16, 16
	in := randomImage(w, h, 3)
	_, _, inX, inY := runKernel(ScalarKernel, w, h, in)

	g1 := make([]float32, w*h)
	g2 := make([]float32, w*h)
	tvA := accumulateTV2(w, h, g1, inX, inY, 1)
	tvB := accumulateTV2(w, h, g2, inX, inY, 2)

	assert.Equal(t, tvA, tvB, "the TV2 sum does not depend on alpha")
	for i := range g1 {
		assert.InDelta(t, 2*g1[i], g2[i], 1e-4)
	}
}
