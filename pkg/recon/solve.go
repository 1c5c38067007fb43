package recon

import (
	"fmt"
	"math"
)

// Options configures one solve.
type Options struct {
	// Weight blends in the second order term; 0 solves pure TV.
	Weight float32
	// Iterations is the fixed number of accelerated steps.
	Iterations int
	// Kernel computes the first order term; nil selects the build default.
	Kernel TVKernel
	// Workers bounds the goroutines used for the block transforms.
	Workers int
	// MaxPixels refuses larger planes; 0 means DefaultMaxPixels.
	MaxPixels int
	Metrics   MetricsSink
	Progress  ProgressSink
}

// Solve runs the accelerated projected descent on p for opts.Iterations steps
// and leaves the result in p.Pixels. The slice held in p.Pixels on entry is
// reused as working memory, and on return p.Pixels may refer to a different
// slice. Pixels must hold the starting image (see Plane.Decode).
func Solve(p *Plane, q *QuantTable, opts Options) error {
	s, err := newSolver(p, q, opts)
	if err != nil {
		return err
	}
	for i := 0; i < opts.Iterations; i++ {
		s.iterate(i)
	}
	s.finish()
	return nil
}

// solver holds the state of one solve between iterations. cur is the latest
// projected iterate, prev the one before it; the two swap roles every
// iteration without copying.
type solver struct {
	plane    *Plane
	alpha    float32
	stepSize float32
	cur      []float32
	prev     []float32
	step     *stepper
	proj     *projector
	metrics  MetricsSink
	progress ProgressSink
}

func newSolver(p *Plane, q *QuantTable, opts Options) (*solver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	limit := opts.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	w, h := p.Width, p.Height
	if w*h > limit {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, w, h, limit)
	}
	kernel := opts.Kernel
	if kernel == nil {
		kernel = defaultKernel
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = discardMetrics{}
	}

	radius := float32(math.Sqrt(float64(w*h)) / 2)
	s := &solver{
		plane:    p,
		alpha:    float32(float64(opts.Weight) / math.Sqrt(4./2.)),
		stepSize: float32(float64(radius) / math.Sqrt(float64(1+opts.Iterations))),
		cur:      p.Pixels,
		prev:     append([]float32(nil), p.Pixels...),
		step:     newStepper(w, h, kernel),
		proj:     newProjector(w, h, NewBox(p.Coeffs, q), opts.Workers),
		metrics:  metrics,
		progress: opts.Progress,
	}
	return s, nil
}

// iterate performs step i: extrapolate into prev, descend, project, swap.
func (s *solver) iterate(i int) {
	// (i-2)/(i+1), not the textbook (i-1)/(i+2)
	k := float64(i)
	c := (k - 2) / (k + 1)
	for j, f := range s.cur {
		s.prev[j] = float32(float64(f) + c*float64(f-s.prev[j]))
	}

	m := s.step.step(s.prev, s.prev, s.stepSize, s.alpha)
	m.Iteration = i
	s.metrics.Record(m)

	s.proj.project(s.prev)

	s.cur, s.prev = s.prev, s.cur
	if s.progress != nil {
		s.progress.Inc()
	}
}

// finish hands the current iterate back to the plane and drops the buffers.
func (s *solver) finish() {
	s.plane.Pixels = s.cur
	s.prev = nil
	s.step = nil
	s.proj = nil
}
