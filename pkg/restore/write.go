package restore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/jpfielding/dejpeg.go/pkg/compress/jpegli"
	"github.com/klauspost/compress/zstd"
)

// rawMagic starts every raw plane stream.
const rawMagic = "DJPF"

var ErrRawFormat = errors.New("invalid raw plane stream")

// Write encodes the result to w in opts.Format.
func Write(w io.Writer, r *Result, opts Options) error {
	if opts.Format == FormatRaw {
		return WriteRaw(w, r)
	}
	img, err := r.Image(opts.PNGBits)
	if err != nil {
		return err
	}
	switch opts.Format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatLJPEG:
		switch img.(type) {
		case *image.Gray, *image.Gray16:
			return jpegli.Encode(w, img, nil)
		}
		return fmt.Errorf("%w: lossless JPEG of a %d component image", ErrUnsupportedOutput, len(r.Components))
	default:
		return fmt.Errorf("%w: format %q", ErrBadOption, opts.Format)
	}
}

// RawPlane is one component in the sample domain, cropped to its sampled size.
type RawPlane struct {
	Width, Height int
	Samples       []float32
}

// WriteRaw writes every component as little endian float32 samples inside a
// zstd frame: magic, component count, then width, height and samples per
// component.
func WriteRaw(w io.Writer, r *Result) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)
	if err := writeRaw(bw, r); err != nil {
		enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func writeRaw(w io.Writer, r *Result) error {
	if _, err := io.WriteString(w, rawMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(r.Components))); err != nil {
		return err
	}
	var buf [4]byte
	for _, c := range r.Components {
		dims := []uint32{uint32(c.Width), uint32(c.Height)}
		if err := binary.Write(w, binary.LittleEndian, dims); err != nil {
			return err
		}
		p := c.Plane
		for y := 0; y < c.Height; y++ {
			for x := 0; x < c.Width; x++ {
				binary.LittleEndian.PutUint32(buf[:], math.Float32bits(p.Pixels[y*p.Width+x]+128))
				if _, err := w.Write(buf[:]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ReadRaw reads a stream written by WriteRaw.
func ReadRaw(r io.Reader) ([]RawPlane, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	magic := make([]byte, len(rawMagic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != rawMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrRawFormat)
	}
	var n uint32
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRawFormat, err)
	}
	if n > 4 {
		return nil, fmt.Errorf("%w: %d components", ErrRawFormat, n)
	}
	planes := make([]RawPlane, n)
	for i := range planes {
		var dims [2]uint32
		if err := binary.Read(br, binary.LittleEndian, &dims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRawFormat, err)
		}
		p := RawPlane{Width: int(dims[0]), Height: int(dims[1])}
		if p.Width*p.Height > 1<<28 {
			return nil, fmt.Errorf("%w: %dx%d plane", ErrRawFormat, p.Width, p.Height)
		}
		p.Samples = make([]float32, p.Width*p.Height)
		if err := binary.Read(br, binary.LittleEndian, p.Samples); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRawFormat, err)
		}
		planes[i] = p
	}
	return planes, nil
}
