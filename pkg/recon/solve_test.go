package recon

import (
	"fmt"
	"math"
	"testing"

	"github.com/jpfielding/dejpeg.go/pkg/dct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolve_ZeroIterations(t *testing.T) {
	w, h := 16, 16
	q := annexKLuma
	p := NewPlane(w, h, quantizeImage(randomImage(w, h, 1), w, h, &q))
	p.Decode(&q)
	start := append([]float32(nil), p.Pixels...)

	var metrics recordedMetrics
	progress := &countingProgress{}
	err := Solve(p, &q, Options{Weight: 0.3, Metrics: &metrics, Progress: progress})

	require.NoError(t, err)
	assert.Equal(t, start, p.Pixels)
	assert.Empty(t, metrics)
	assert.Zero(t, progress.n)
}

func TestSolve_InvalidPlane(t *testing.T) {
	tests := []struct {
		name  string
		plane *Plane
		opts  Options
		want  error
	}{
		{
			name:  "width not a multiple of 8",
			plane: NewPlane(12, 8, make([]int16, 96)),
			want:  ErrInvalidPlane,
		},
		{
			name:  "coefficient count mismatch",
			plane: NewPlane(8, 8, make([]int16, 32)),
			want:  ErrInvalidPlane,
		},
		{
			name:  "empty",
			plane: NewPlane(0, 0, nil),
			want:  ErrInvalidPlane,
		},
		{
			name:  "above pixel limit",
			plane: NewPlane(16, 16, make([]int16, 256)),
			opts:  Options{MaxPixels: 128},
			want:  ErrTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Solve(tt.plane, uniformQuant(1), tt.opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// flatBlocks builds a plane whose blocks carry only a DC coefficient.
func flatBlocks(bw, bh int, dc func(bx, by int) int16) *Plane {
	w, h := bw*8, bh*8
	coeffs := make([]int16, w*h)
	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			coeffs[(by*bw+bx)*dct.BlockSize] = dc(bx, by)
		}
	}
	return NewPlane(w, h, coeffs)
}

// A flat image is a fixed point: both gradients vanish, so no step is taken.
func TestSolve_FlatGrayPureTV(t *testing.T) {
	q := uniformQuant(1)
	p := flatBlocks(2, 2, func(bx, by int) int16 { return 8 })
	p.Decode(q)
	start := append([]float32(nil), p.Pixels...)

	var metrics recordedMetrics
	progress := &countingProgress{}
	require.NoError(t, Solve(p, q, Options{Weight: 0, Iterations: 5, Metrics: &metrics, Progress: progress}))

	require.Len(t, metrics, 5)
	assert.Equal(t, 5, progress.n)
	for i, m := range metrics {
		assert.Equal(t, i, m.Iteration)
		assert.Zero(t, m.TV, "iteration %d", i)
		assert.Zero(t, m.TV2, "iteration %d", i)
	}
	assert.Equal(t, start, p.Pixels)
}

func TestSolve_NoisyPureTV(t *testing.T) {
	w, h := 16, 16
	q := annexKLuma
	p := NewPlane(w, h, quantizeImage(randomImage(w, h, 13), w, h, &q))
	p.Decode(&q)
	box := NewBox(p.Coeffs, &q)

	var metrics recordedMetrics
	require.NoError(t, Solve(p, &q, Options{Weight: 0, Iterations: 5, Metrics: &metrics}))

	require.Len(t, metrics, 5)
	for _, m := range metrics {
		assert.Zero(t, m.TV2)
		assert.Equal(t, m.TV, m.Objective)
	}
	assert.Less(t, metrics[len(metrics)-1].TV, metrics[0].TV)
	assert.Zero(t, outsideBox(p.Pixels, w, h, box, 0.05))
}

func TestSolve_StepEdge(t *testing.T) {
	w, h := 16, 16
	img := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img[y*w+x] = -40
			if x >= 5 {
				img[y*w+x] = 40
			}
		}
	}
	q := annexKLuma
	p := NewPlane(w, h, quantizeImage(img, w, h, &q))
	p.Decode(&q)

	var metrics recordedMetrics
	iterations := 10
	s, err := newSolver(p, &q, Options{Weight: 0.3, Iterations: iterations, Metrics: &metrics})
	require.NoError(t, err)
	box := s.proj.box

	for i := 0; i < iterations; i++ {
		s.iterate(i)
		require.Zero(t, outsideBox(s.cur, w, h, box, 0.05), "iteration %d left the box", i)
	}
	s.finish()

	require.Len(t, metrics, iterations)
	decreases := 0
	for i := 1; i < len(metrics); i++ {
		assert.Positive(t, metrics[i].TV2)
		if metrics[i].Objective <= metrics[i-1].Objective {
			decreases++
		}
	}
	assert.GreaterOrEqual(t, decreases, (iterations-1)/2)
	assert.Less(t, metrics[iterations-1].Objective, metrics[0].Objective)
	assert.Equal(t, s.cur, p.Pixels)
}

func TestSolve_KernelsAgree(t *testing.T) {
	w, h := 24, 16
	q := annexKLuma
	coeffs := quantizeImage(randomImage(w, h, 77), w, h, &q)

	run := func(k TVKernel, workers int) []float32 {
		p := NewPlane(w, h, append([]int16(nil), coeffs...))
		p.Decode(&q)
		require.NoError(t, Solve(p, &q, Options{Weight: 0.3, Iterations: 6, Kernel: k, Workers: workers}))
		return p.Pixels
	}

	assert.Equal(t, run(ScalarKernel, 1), run(RowKernel, 4))
}

func TestSolve_ReplaysIterations(t *testing.T) {
	w, h := 16, 16
	q := annexKLuma
	coeffs := quantizeImage(randomImage(w, h, 21), w, h, &q)
	const n = 3
	const weight = 0.3

	p := NewPlane(w, h, coeffs)
	p.Decode(&q)
	start := append([]float32(nil), p.Pixels...)
	require.NoError(t, Solve(p, &q, Options{Weight: weight, Iterations: n, Kernel: ScalarKernel, Workers: 1}))

	// sqrt(w*h)/2 = 8, over sqrt(1+n) = 2
	stepSize := float32(4)
	alpha := float32(float64(float32(weight)) / math.Sqrt(2))
	momentum := []float64{-2, -0.5, 0}

	st := newStepper(w, h, ScalarKernel)
	pr := newProjector(w, h, NewBox(coeffs, &q), 1)
	cur := append([]float32(nil), start...)
	prev := append([]float32(nil), start...)
	for i := 0; i < n; i++ {
		c := momentum[i]
		for j, f := range cur {
			prev[j] = float32(float64(f) + c*float64(f-prev[j]))
		}
		st.step(prev, prev, stepSize, alpha)
		pr.project(prev)
		cur, prev = prev, cur
	}

	assert.NotEqual(t, start, p.Pixels)
	assert.Equal(t, cur, p.Pixels)
}

func TestNewSolver_StepSchedule(t *testing.T) {
	tests := []struct {
		w, h, n int
		weight  float32
		step    float32
		alpha   float32
	}{
		{w: 16, h: 16, n: 3, weight: 0, step: 4, alpha: 0},
		{w: 32, h: 8, n: 0, weight: 0.3, step: 8, alpha: float32(float64(float32(0.3)) / math.Sqrt(2))},
		{w: 64, h: 16, n: 15, weight: 1, step: 4, alpha: float32(1 / math.Sqrt(2))},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d_n%d", tt.w, tt.h, tt.n), func(t *testing.T) {
			p := NewPlane(tt.w, tt.h, make([]int16, tt.w*tt.h))
			p.Decode(uniformQuant(1))
			s, err := newSolver(p, uniformQuant(1), Options{Weight: tt.weight, Iterations: tt.n})
			require.NoError(t, err)
			assert.Equal(t, tt.step, s.stepSize)
			assert.Equal(t, tt.alpha, s.alpha)
		})
	}
}
