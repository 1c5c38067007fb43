package restore

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// samples returns component i at full image resolution in the sample domain
// (0..255 nominal, unclamped). Subsampled components are upscaled.
func (r *Result) samples(i int) []float32 {
	c := r.Components[i]
	p := c.Plane
	if c.Width == r.Width && c.Height == r.Height {
		out := make([]float32, r.Width*r.Height)
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				out[y*r.Width+x] = p.Pixels[y*p.Width+x] + 128
			}
		}
		return out
	}

	src := image.NewGray16(image.Rect(0, 0, c.Width, c.Height))
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			v := to16(p.Pixels[y*p.Width+x] + 128)
			src.Pix[src.PixOffset(x, y)] = uint8(v >> 8)
			src.Pix[src.PixOffset(x, y)+1] = uint8(v)
		}
	}
	dst := image.NewGray16(image.Rect(0, 0, r.Width, r.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]float32, r.Width*r.Height)
	for i := range out {
		v := uint16(dst.Pix[2*i])<<8 | uint16(dst.Pix[2*i+1])
		out[i] = float32(v) / 257
	}
	return out
}

// to16 maps a 0..255 sample to 0..65535 with rounding and clamping.
func to16(v float32) uint16 {
	return uint16(math.Round(float64(min(max(v*257, 0), 65535))))
}

func to8(v float32) uint8 {
	return uint8(math.Round(float64(min(max(v, 0), 255))))
}

// Image assembles the components into an image with bits (8 or 16) per
// channel: *image.Gray or *image.Gray16 for one component, *image.NRGBA or
// *image.NRGBA64 for three.
func (r *Result) Image(bits int) (image.Image, error) {
	if bits != 8 && bits != 16 {
		return nil, fmt.Errorf("%w: %d bits", ErrBadOption, bits)
	}
	rect := image.Rect(0, 0, r.Width, r.Height)
	switch len(r.Components) {
	case 1:
		y := r.samples(0)
		if bits == 8 {
			img := image.NewGray(rect)
			for i, v := range y {
				img.Pix[i] = to8(v)
			}
			return img, nil
		}
		img := image.NewGray16(rect)
		for i, v := range y {
			s := to16(v)
			img.Pix[2*i], img.Pix[2*i+1] = uint8(s>>8), uint8(s)
		}
		return img, nil
	case 3:
		rgb := r.rgb()
		if bits == 8 {
			img := image.NewNRGBA(rect)
			for i := 0; i < r.Width*r.Height; i++ {
				px := img.Pix[4*i : 4*i+4]
				px[0], px[1], px[2], px[3] = to8(rgb[0][i]), to8(rgb[1][i]), to8(rgb[2][i]), 0xFF
			}
			return img, nil
		}
		img := image.NewNRGBA64(rect)
		for i := 0; i < r.Width*r.Height; i++ {
			px := img.Pix[8*i : 8*i+8]
			for ch := 0; ch < 3; ch++ {
				s := to16(rgb[ch][i])
				px[2*ch], px[2*ch+1] = uint8(s>>8), uint8(s)
			}
			px[6], px[7] = 0xFF, 0xFF
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %d components", ErrUnsupportedOutput, len(r.Components))
	}
}

// rgb returns the three color planes at full resolution, converting from
// JFIF YCbCr unless the components already hold RGB.
func (r *Result) rgb() [3][]float32 {
	var ch [3][]float32
	for i := range ch {
		ch[i] = r.samples(i)
	}
	if r.RGB {
		return ch
	}
	y, cb, cr := ch[0], ch[1], ch[2]
	for i := range y {
		yy, b, rr := y[i], cb[i]-128, cr[i]-128
		y[i] = yy + 1.402*rr
		cb[i] = yy - 0.344136*b - 0.714136*rr
		cr[i] = yy + 1.772*b
	}
	return ch
}
