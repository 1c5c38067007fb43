package jpegli

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
)

// Encoder holds lossless encoding options.
type Encoder struct {
	// Predictor selection value 1-7, default 1
	Predictor int
	// PointTransform drops low bits before prediction, 0 for lossless
	PointTransform int
}

// Encode writes img to w as lossless JPEG. *image.Gray is written with 8-bit
// precision, every other image as 16-bit gray.
func Encode(w io.Writer, img image.Image, opts *Encoder) error {
	enc := &encoder{predictor: 1}
	if opts != nil {
		if opts.Predictor >= 1 && opts.Predictor <= 7 {
			enc.predictor = opts.Predictor
		}
		enc.pointTrans = opts.PointTransform
	}

	bounds := img.Bounds()
	enc.width, enc.height = bounds.Dx(), bounds.Dy()
	if enc.width < 1 || enc.height < 1 || enc.width > 0xFFFF || enc.height > 0xFFFF {
		return fmt.Errorf("%w: %dx%d image", ErrUnsupported, enc.width, enc.height)
	}
	enc.samples = samplesOf(img)
	if _, ok := img.(*image.Gray); ok {
		enc.precision = 8
	} else {
		enc.precision = 16
	}
	if enc.pointTrans < 0 || enc.pointTrans >= enc.precision {
		return fmt.Errorf("%w: point transform %d", ErrUnsupported, enc.pointTrans)
	}

	bw := bufio.NewWriter(w)
	enc.w = bw
	if err := enc.encode(); err != nil {
		return err
	}
	return bw.Flush()
}

// samplesOf returns the raster in scan order.
func samplesOf(img image.Image) []int {
	b := img.Bounds()
	out := make([]int, 0, b.Dx()*b.Dy())
	switch g := img.(type) {
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out = append(out, int(g.GrayAt(x, y).Y))
			}
		}
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out = append(out, int(g.Gray16At(x, y).Y))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out = append(out, int(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y))
			}
		}
	}
	return out
}

type encoder struct {
	w          *bufio.Writer
	predictor  int
	pointTrans int
	precision  int
	width      int
	height     int
	samples    []int
}

func (e *encoder) encode() error {
	diffs := e.differences()
	ht, err := optimalTable(diffs)
	if err != nil {
		return err
	}

	slog.Debug("jpegli: encoding",
		slog.Int("width", e.width),
		slog.Int("height", e.height),
		slog.Int("precision", e.precision),
		slog.Int("predictor", e.predictor))

	if err := e.writeMarker(MarkerSOI); err != nil {
		return err
	}
	if err := e.writeAPP0(); err != nil {
		return err
	}
	if err := e.writeSOF3(); err != nil {
		return err
	}
	if err := e.writeDHT(ht); err != nil {
		return err
	}
	if err := e.writeSOS(); err != nil {
		return err
	}
	if err := e.encodeScan(diffs, ht); err != nil {
		return err
	}
	return e.writeMarker(MarkerEOI)
}

// differences returns the prediction residuals modulo 2^16 as signed values.
func (e *encoder) differences() []int {
	p := newRowPredictor(e.predictor, e.width, e.precision, e.pointTrans)
	diffs := make([]int, len(e.samples))
	for y := 0; y < e.height; y++ {
		for x := 0; x < e.width; x++ {
			v := e.samples[y*e.width+x] >> e.pointTrans
			diff := (v - p.at(x, y)) & 0xFFFF
			if diff >= 0x8000 {
				diff -= 0x10000
			}
			diffs[y*e.width+x] = diff
			p.set(x, v)
		}
		p.nextRow()
	}
	return diffs
}

func (e *encoder) writeMarker(marker int) error {
	return binary.Write(e.w, binary.BigEndian, uint16(marker))
}

// writeSegment writes a marker followed by its length prefixed payload.
func (e *encoder) writeSegment(marker int, payload []byte) error {
	if err := e.writeMarker(marker); err != nil {
		return err
	}
	if err := binary.Write(e.w, binary.BigEndian, uint16(len(payload)+2)); err != nil {
		return err
	}
	_, err := e.w.Write(payload)
	return err
}

func (e *encoder) writeAPP0() error {
	return e.writeSegment(MarkerAPP0, []byte{
		'J', 'F', 'I', 'F', 0x00,
		0x01, 0x01, // version 1.1
		0x00,       // no units
		0x00, 0x01, // X density
		0x00, 0x01, // Y density
		0x00, 0x00, // no thumbnail
	})
}

func (e *encoder) writeSOF3() error {
	return e.writeSegment(MarkerSOF3, []byte{
		byte(e.precision),
		byte(e.height >> 8), byte(e.height),
		byte(e.width >> 8), byte(e.width),
		1,          // components
		1, 0x11, 0, // id 1, 1x1 sampling, no quantization table
	})
}

func (e *encoder) writeDHT(ht *huffmanTable) error {
	payload := make([]byte, 17+len(ht.values))
	payload[0] = 0x00 // class 0, table 0
	for i := 1; i <= 16; i++ {
		payload[i] = byte(ht.bits[i])
	}
	copy(payload[17:], ht.values)
	return e.writeSegment(MarkerDHT, payload)
}

func (e *encoder) writeSOS() error {
	return e.writeSegment(MarkerSOS, []byte{
		1,    // components
		1, 0, // id 1, table 0
		byte(e.predictor), // Ss holds the predictor
		0,                 // Se unused
		byte(e.pointTrans),
	})
}

func (e *encoder) encodeScan(diffs []int, ht *huffmanTable) error {
	bw := &bitWriter{w: e.w}
	for _, diff := range diffs {
		ssss := category(diff)
		bw.writeBits(int(ht.codes[ssss]), ht.sizes[ssss])
		// category 16 carries no extra bits
		if ssss > 0 && ssss < 16 {
			if diff < 0 {
				diff += 1<<ssss - 1
			}
			bw.writeBits(diff, ssss)
		}
	}
	return bw.flush()
}

// optimalTable builds a length limited Huffman code for the categories used
// by diffs (T.81 K.2).
func optimalTable(diffs []int) (*huffmanTable, error) {
	// one reserved symbol keeps the all ones code unused
	const reserved = numCategories
	var freq [numCategories + 1]int
	for _, d := range diffs {
		freq[category(d)]++
	}
	freq[reserved] = 1

	var codesize [numCategories + 1]int
	var others [numCategories + 1]int
	for i := range others {
		others[i] = -1
	}
	for {
		v1, v2 := -1, -1
		for i, f := range freq {
			if f == 0 {
				continue
			}
			switch {
			case v1 < 0 || f <= freq[v1]:
				v1, v2 = i, v1
			case v2 < 0 || f <= freq[v2]:
				v2 = i
			}
		}
		if v2 < 0 {
			break
		}
		freq[v1] += freq[v2]
		freq[v2] = 0
		for codesize[v1]++; others[v1] >= 0; codesize[v1]++ {
			v1 = others[v1]
		}
		others[v1] = v2
		for codesize[v2]++; others[v2] >= 0; codesize[v2]++ {
			v2 = others[v2]
		}
	}

	var bits [2 * numCategories]int
	for _, size := range codesize {
		if size > 0 {
			bits[size]++
		}
	}
	for i := len(bits) - 1; i > 16; i-- {
		for bits[i] > 0 {
			j := i - 2
			for bits[j] == 0 {
				j--
			}
			bits[i] -= 2
			bits[i-1]++
			bits[j+1] += 2
			bits[j]--
		}
	}
	i := 16
	for bits[i] == 0 {
		i--
	}
	bits[i]-- // drop the reserved symbol

	ht := &huffmanTable{}
	copy(ht.bits[:], bits[:17])
	for size := 1; size < len(bits); size++ {
		for sym := 0; sym < numCategories; sym++ {
			if codesize[sym] == size {
				ht.values = append(ht.values, byte(sym))
			}
		}
	}
	if err := ht.generate(); err != nil {
		return nil, err
	}
	return ht, nil
}

// bitWriter packs bits MSB first with 0xFF byte stuffing.
type bitWriter struct {
	w    io.ByteWriter
	acc  uint32
	bits int
	err  error
}

func (b *bitWriter) writeBits(val, n int) {
	b.acc = b.acc<<n | uint32(val&(1<<n-1))
	b.bits += n
	for b.bits >= 8 {
		b.bits -= 8
		b.writeByte(byte(b.acc >> b.bits))
	}
}

func (b *bitWriter) writeByte(c byte) {
	if b.err != nil {
		return
	}
	if b.err = b.w.WriteByte(c); b.err == nil && c == 0xFF {
		b.err = b.w.WriteByte(0x00)
	}
}

// flush pads the last byte with ones.
func (b *bitWriter) flush() error {
	if b.bits > 0 {
		b.writeBits(1<<(8-b.bits)-1, 8-b.bits)
	}
	return b.err
}
