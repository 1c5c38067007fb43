package recon

import (
	"sync"

	"github.com/jpfielding/dejpeg.go/pkg/dct"
)

// projector maps a raster onto the quantization box: forward DCT of every
// block, elementwise clamp, inverse DCT.
type projector struct {
	w, h    int
	box     *Box
	scratch []float32
	workers int
}

func newProjector(w, h int, box *Box, workers int) *projector {
	return &projector{
		w:       w,
		h:       h,
		box:     box,
		scratch: make([]float32, w*h),
		workers: max(workers, 1),
	}
}

// project replaces img (row-major) with its projection.
func (p *projector) project(img []float32) {
	dct.Box(img, p.scratch, p.w, p.h)
	p.forBlocks(len(p.scratch)/dct.BlockSize, func(b int) {
		off := b * dct.BlockSize
		blk := (*[64]float32)(p.scratch[off : off+dct.BlockSize])
		dct.Forward8x8(blk)
		p.box.Clamp(blk, off)
		dct.Inverse8x8(blk)
	})
	dct.Unbox(p.scratch, img, p.w, p.h)
}

// forBlocks runs fn for every block index, split into contiguous ranges
// across the configured workers. Blocks never share memory.
func (p *projector) forBlocks(n int, fn func(b int)) {
	workers := min(p.workers, n)
	if workers <= 1 {
		for b := 0; b < n; b++ {
			fn(b)
		}
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for b := lo; b < hi; b++ {
				fn(b)
			}
		}(lo, hi)
	}
	wg.Wait()
}
