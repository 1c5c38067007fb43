// Package recon reconstructs an image from quantized 8x8 DCT coefficients by
// minimizing a blend of first and second order total variation subject to
// the constraint that every transform coefficient stays inside the interval
// it was quantized from.
//
// The solver runs an accelerated projected gradient descent: a momentum
// extrapolation, one normalized steepest-descent step over the TV/TV2
// objective and one projection onto the quantization box per iteration.
package recon

import (
	"errors"
	"fmt"

	"github.com/jpfielding/dejpeg.go/pkg/dct"
)

var (
	// ErrInvalidPlane reports a plane whose dimensions or buffers do not agree.
	ErrInvalidPlane = errors.New("invalid plane")
	// ErrTooLarge reports a plane larger than the solver is allowed to allocate for.
	ErrTooLarge = errors.New("plane too large")
)

// DefaultMaxPixels bounds the pixel count of a single solve (eight float32
// working buffers are held per solve).
const DefaultMaxPixels = 1 << 30

// QuantTable holds the 64 quantization scale factors of one component,
// in natural (row-major) order.
type QuantTable [dct.BlockSize]uint16

// Plane is the coefficient buffer of one image component together with its
// floating point reconstruction.
type Plane struct {
	// Width and Height are multiples of 8.
	Width, Height int
	// Coeffs holds the quantized DCT coefficients as contiguous 8x8 blocks in
	// raster block order, natural order inside each block.
	Coeffs []int16
	// Pixels is the row-major reconstruction in the level shifted sample
	// domain (sample - 128). Solve replaces this slice.
	Pixels []float32
}

// NewPlane wraps coefficients for a w x h component and allocates Pixels.
func NewPlane(w, h int, coeffs []int16) *Plane {
	return &Plane{
		Width:  w,
		Height: h,
		Coeffs: coeffs,
		Pixels: make([]float32, w*h),
	}
}

// Validate checks the dimensions and buffer lengths of the plane.
func (p *Plane) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidPlane, p.Width, p.Height)
	case p.Width%8 != 0 || p.Height%8 != 0:
		return fmt.Errorf("%w: dimensions %dx%d are not multiples of 8", ErrInvalidPlane, p.Width, p.Height)
	case len(p.Coeffs) != p.Width*p.Height:
		return fmt.Errorf("%w: %d coefficients for %dx%d", ErrInvalidPlane, len(p.Coeffs), p.Width, p.Height)
	case len(p.Pixels) != p.Width*p.Height:
		return fmt.Errorf("%w: %d pixels for %dx%d", ErrInvalidPlane, len(p.Pixels), p.Width, p.Height)
	}
	return nil
}

// Decode sets Pixels to the plain JPEG decode of the plane: every coefficient
// multiplied by its scale, inverse transformed, and reshaped to raster order.
// This is the usual starting image for Solve.
func (p *Plane) Decode(q *QuantTable) {
	blocks := make([]float32, len(p.Coeffs))
	for i, v := range p.Coeffs {
		blocks[i] = float32(v) * float32(q[i%dct.BlockSize])
	}
	dct.InverseBlocks(blocks)
	if len(p.Pixels) != len(blocks) {
		p.Pixels = make([]float32, len(blocks))
	}
	dct.Unbox(blocks, p.Pixels, p.Width, p.Height)
}
