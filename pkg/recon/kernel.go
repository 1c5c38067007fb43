package recon

import (
	"fmt"
	"math"
)

// TVKernel computes the first order part of the objective: forward
// differences of in (stored in inX and inY), the isotropic TV sum, and the TV
// subgradient scattered into grad. grad must be zeroed by the caller.
//
// Implementations must agree bit for bit; the scalar kernel is the reference.
type TVKernel interface {
	Name() string
	TV(w, h int, in, grad, inX, inY []float32) float64
}

var (
	// ScalarKernel visits pixels one at a time with per-pixel bounds tests.
	ScalarKernel TVKernel = scalarKernel{}
	// RowKernel hoists the bounds tests out of the interior and processes
	// four pixels per step.
	RowKernel TVKernel = rowKernel{}
)

// Kernels lists the available kernels by name.
var Kernels = map[string]TVKernel{
	ScalarKernel.Name(): ScalarKernel,
	RowKernel.Name():    RowKernel,
}

// KernelByName returns the named kernel, or the build default for "".
func KernelByName(name string) (TVKernel, error) {
	if name == "" {
		return defaultKernel, nil
	}
	k, ok := Kernels[name]
	if !ok {
		return nil, fmt.Errorf("unknown tv kernel %q", name)
	}
	return k, nil
}

// tvNorm rounds both squares to float32 before adding so no implementation
// can fuse the multiply-add.
func tvNorm(gx, gy float32) float32 {
	return float32(math.Sqrt(float64(float32(gx*gx) + float32(gy*gy))))
}

type scalarKernel struct{}

func (scalarKernel) Name() string { return "scalar" }

func (scalarKernel) TV(w, h int, in, grad, inX, inY []float32) float64 {
	var tv float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			var gx, gy float32
			if x < w-1 {
				gx = in[i+1] - in[i]
			}
			if y < h-1 {
				gy = in[i+w] - in[i]
			}
			norm := tvNorm(gx, gy)
			tv += float64(norm)
			if norm != 0 {
				grad[i] += -(gx + gy) / norm
				if x < w-1 {
					grad[i+1] += gx / norm
				}
				if y < h-1 {
					grad[i+w] += gy / norm
				}
			}
			inX[i] = gx
			inY[i] = gy
		}
	}
	return tv
}

type rowKernel struct{}

func (rowKernel) Name() string { return "row" }

func (rowKernel) TV(w, h int, in, grad, inX, inY []float32) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	var tv float64
	for y := 0; y < h-1; y++ {
		off := y * w
		cur := in[off : off+w]
		next := in[off+w : off+2*w]
		g := grad[off : off+2*w]
		rx := inX[off : off+w]
		ry := inY[off : off+w]

		x := 0
		for ; x+4 <= w-1; x += 4 {
			var gx, gy, n [4]float32
			for k := 0; k < 4; k++ {
				gx[k] = cur[x+k+1] - cur[x+k]
				gy[k] = next[x+k] - cur[x+k]
				n[k] = tvNorm(gx[k], gy[k])
			}
			// scatter in pixel order so every cell sums in the scalar order
			for k := 0; k < 4; k++ {
				tv += float64(n[k])
				if n[k] != 0 {
					g[x+k] += -(gx[k] + gy[k]) / n[k]
					g[x+k+1] += gx[k] / n[k]
					g[w+x+k] += gy[k] / n[k]
				}
				rx[x+k] = gx[k]
				ry[x+k] = gy[k]
			}
		}
		for ; x < w-1; x++ {
			gx := cur[x+1] - cur[x]
			gy := next[x] - cur[x]
			norm := tvNorm(gx, gy)
			tv += float64(norm)
			if norm != 0 {
				g[x] += -(gx + gy) / norm
				g[x+1] += gx / norm
				g[w+x] += gy / norm
			}
			rx[x] = gx
			ry[x] = gy
		}

		// last column: no horizontal neighbour
		x = w - 1
		var gx float32
		gy := next[x] - cur[x]
		norm := tvNorm(gx, gy)
		tv += float64(norm)
		if norm != 0 {
			g[x] += -(gx + gy) / norm
			g[w+x] += gy / norm
		}
		rx[x] = gx
		ry[x] = gy
	}

	// last row: no vertical neighbour
	off := (h - 1) * w
	cur := in[off : off+w]
	g := grad[off : off+w]
	rx := inX[off : off+w]
	ry := inY[off : off+w]
	for x := 0; x < w; x++ {
		var gx, gy float32
		if x < w-1 {
			gx = cur[x+1] - cur[x]
		}
		norm := tvNorm(gx, gy)
		tv += float64(norm)
		if norm != 0 {
			g[x] += -(gx + gy) / norm
			if x < w-1 {
				g[x+1] += gx / norm
			}
		}
		rx[x] = gx
		ry[x] = gy
	}
	return tv
}
