package recon

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBox_Ordered(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	coeffs := make([]int16, 4*64)
	for i := range coeffs {
		coeffs[i] = int16(rng.IntN(2001) - 1000)
	}
	q := annexKLuma
	q[5] = 0

	box := NewBox(coeffs, &q)

	for i, v := range coeffs {
		require.LessOrEqual(t, box.Min[i], box.Max[i], "coefficient %d", i)
		s := float32(q[i%64])
		assert.Equal(t, (float32(v)-0.5)*s, box.Min[i])
		assert.Equal(t, (float32(v)+0.5)*s, box.Max[i])
	}
	// a zero scale collapses the interval to a point
	assert.Equal(t, box.Min[5], box.Max[5])
}

func TestBox_Clamp(t *testing.T) {
	box := NewBox(make([]int16, 64), uniformQuant(4))
	var blk [64]float32
	blk[0] = 10
	blk[1] = -10
	blk[2] = 1.5
	box.Clamp(&blk, 0)
	assert.Equal(t, float32(2), blk[0])
	assert.Equal(t, float32(-2), blk[1])
	assert.Equal(t, float32(1.5), blk[2])
}

func TestProject_StaysInBox(t *testing.T) {
	w, h := 24, 16
	q := annexKLuma
	coeffs := quantizeImage(randomImage(w, h, 21), w, h, &q)
	box := NewBox(coeffs, &q)
	p := newProjector(w, h, box, 1)

	img := randomImage(w, h, 22) // unrelated image, far outside the box
	require.Positive(t, outsideBox(img, w, h, box, 0.01))

	p.project(img)

	assert.Zero(t, outsideBox(img, w, h, box, 0.01))
}

func TestProject_Idempotent(t *testing.T) {
	w, h := 16, 16
	q := annexKLuma
	plane := NewPlane(w, h, quantizeImage(randomImage(w, h, 31), w, h, &q))
	plane.Decode(&q)
	p := newProjector(w, h, NewBox(plane.Coeffs, &q), 1)

	// the plain decode sits at the centre of the box
	img := append([]float32(nil), plane.Pixels...)
	p.project(img)
	for i := range img {
		assert.InDelta(t, plane.Pixels[i], img[i], 1e-3)
	}

	again := append([]float32(nil), img...)
	p.project(again)
	for i := range img {
		assert.InDelta(t, img[i], again[i], 1e-3)
	}
}

func TestProject_WorkersAgree(t *testing.T) {
	w, h := 64, 40
	q := annexKLuma
	box := NewBox(quantizeImage(randomImage(w, h, 41), w, h, &q), &q)

	single := randomImage(w, h, 42)
	multi := append([]float32(nil), single...)

	newProjector(w, h, box, 1).project(single)
	newProjector(w, h, box, 7).project(multi)

	assert.Equal(t, single, multi)
	for _, v := range multi {
		assert.False(t, math.IsNaN(float64(v)))
	}
}
