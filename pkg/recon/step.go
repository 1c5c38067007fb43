package recon

import (
	"gonum.org/v1/gonum/blas/blas32"
)

// stepper owns the scratch buffers of one normalized steepest-descent step.
type stepper struct {
	w, h   int
	kernel TVKernel
	grad   []float32
	inX    []float32
	inY    []float32
}

func newStepper(w, h int, kernel TVKernel) *stepper {
	n := w * h
	return &stepper{
		w:      w,
		h:      h,
		kernel: kernel,
		grad:   make([]float32, n),
		inX:    make([]float32, n),
		inY:    make([]float32, n),
	}
}

// step writes in - stepSize*grad/|grad| to out (out may alias in) and returns
// the objective terms measured at in. A zero gradient leaves out equal to in.
func (s *stepper) step(in, out []float32, stepSize, alpha float32) Metrics {
	clear(s.grad)

	tv := s.kernel.TV(s.w, s.h, in, s.grad, s.inX, s.inY)
	var tv2 float64
	if alpha != 0 {
		tv2 = accumulateTV2(s.w, s.h, s.grad, s.inX, s.inY, alpha)
	}

	g := blas32.Vector{N: len(s.grad), Inc: 1, Data: s.grad}
	norm := blas32.Nrm2(g)

	if &out[0] != &in[0] {
		copy(out, in)
	}
	if norm != 0 {
		blas32.Axpy(-stepSize/norm, g, blas32.Vector{N: len(out), Inc: 1, Data: out})
	}

	a := float64(alpha)
	return Metrics{
		Objective: (tv + a*tv2) / (a + 1),
		TV:        tv,
		TV2:       tv2,
	}
}
