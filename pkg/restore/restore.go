// Package restore runs the TV/TV2 reconstruction over every component of a
// JPEG image and turns the solved planes into output images.
package restore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpfielding/dejpeg.go/pkg/compress/jpegdct"
	"github.com/jpfielding/dejpeg.go/pkg/logging"
	"github.com/jpfielding/dejpeg.go/pkg/recon"
	"golang.org/x/sync/errgroup"
)

// Component is one image component and its reconstruction.
type Component struct {
	ID int
	// Width and Height are the sampled size; the plane is padded to whole blocks.
	Width, Height int
	Plane         *recon.Plane
	Quant         recon.QuantTable
}

// Result holds the components of one image.
type Result struct {
	Width, Height int
	// RGB reports components stored without the YCbCr transform.
	RGB        bool
	Components []Component
}

// Sinks receive solver output. Both members may be nil.
type Sinks struct {
	// Metrics returns the sink for component i.
	Metrics  func(i int) recon.MetricsSink
	Progress recon.ProgressSink
}

// Planes builds one plane per component holding the plain decode of its
// coefficients.
func Planes(img *jpegdct.Image) (*Result, error) {
	res := &Result{Width: img.Width, Height: img.Height, RGB: img.IsRGB()}
	for _, c := range img.Components {
		bw, bh := (c.Width+7)/8, (c.Height+7)/8
		if bw > c.BlocksW || bh > c.BlocksH {
			return nil, fmt.Errorf("%w: component %d block grid %dx%d", recon.ErrInvalidPlane, c.ID, c.BlocksW, c.BlocksH)
		}
		coeffs := make([]int16, 0, bw*bh*jpegdct.BlockSize)
		for by := 0; by < bh; by++ {
			for bx := 0; bx < bw; bx++ {
				coeffs = append(coeffs, c.Block(bx, by)...)
			}
		}
		comp := Component{
			ID:     c.ID,
			Width:  c.Width,
			Height: c.Height,
			Plane:  recon.NewPlane(bw*8, bh*8, coeffs),
			Quant:  recon.QuantTable(c.Quant),
		}
		comp.Plane.Decode(&comp.Quant)
		res.Components = append(res.Components, comp)
	}
	return res, nil
}

// TotalIterations is the number of progress steps Run reports for img.
func TotalIterations(img *jpegdct.Image, opts Options) int {
	n := 0
	for i := range img.Components {
		n += opts.iterations(min(i, len(opts.Iterations)-1))
	}
	return n
}

// Run solves every component of img, at most opts.Parallel at a time.
func Run(ctx context.Context, img *jpegdct.Image, opts Options, sinks Sinks) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := opts.forComponents(len(img.Components)); err != nil {
		return nil, err
	}
	kernel, err := recon.KernelByName(opts.Kernel)
	if err != nil {
		return nil, err
	}
	res, err := Planes(img)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Parallel))
	for i := range res.Components {
		if err := gctx.Err(); err != nil {
			break
		}
		c := &res.Components[i]
		cctx := logging.AppendCtx(gctx, slog.Int("component", i))
		ropts := recon.Options{
			Weight:     opts.weight(i),
			Iterations: opts.iterations(i),
			Kernel:     kernel,
			Workers:    opts.Workers,
			MaxPixels:  opts.MaxPixels,
			Progress:   sinks.Progress,
		}
		metrics := recon.MultiMetrics{recon.SlogMetrics{Ctx: cctx}}
		if sinks.Metrics != nil {
			if m := sinks.Metrics(i); m != nil {
				metrics = append(metrics, m)
			}
		}
		ropts.Metrics = metrics

		g.Go(func() error {
			start := time.Now()
			slog.InfoContext(cctx, "restore: solving component",
				slog.Int("width", c.Plane.Width),
				slog.Int("height", c.Plane.Height),
				slog.Float64("weight", float64(ropts.Weight)),
				slog.Int("iterations", ropts.Iterations))
			if err := recon.Solve(c.Plane, &c.Quant, ropts); err != nil {
				return fmt.Errorf("component %d: %w", i, err)
			}
			slog.InfoContext(cctx, "restore: component solved",
				slog.Duration("elapsed", time.Since(start)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
