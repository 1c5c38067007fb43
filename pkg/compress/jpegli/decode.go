package jpegli

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"log/slog"
)

// Decode reads a single component lossless JPEG. Samples of up to 8 bits are
// returned as *image.Gray, wider samples as *image.Gray16.
func Decode(r io.Reader) (image.Image, error) {
	d := &decoder{r: bufio.NewReader(r)}
	return d.decode()
}

type decoder struct {
	r          *bufio.Reader
	width      int
	height     int
	precision  int
	compID     int
	tables     [4]*huffmanTable
	table      int
	predictor  int
	pointTrans int
	samples    []int
}

func (d *decoder) decode() (image.Image, error) {
	m, err := d.readMarker()
	if err != nil || m != MarkerSOI {
		return nil, fmt.Errorf("%w: missing SOI", ErrFormat)
	}
	for {
		m, err := d.readMarker()
		if err != nil {
			return nil, err
		}
		switch {
		case m == MarkerSOF3:
			err = d.readSOF3()
		case m == MarkerDHT:
			err = d.readDHT()
		case m == MarkerSOS:
			if err = d.readSOS(); err == nil {
				err = d.decodeScan()
			}
		case m == MarkerDRI:
			var data []byte
			if data, err = d.readSegment(); err == nil && len(data) == 2 && (data[0] != 0 || data[1] != 0) {
				err = fmt.Errorf("%w: restart intervals", ErrUnsupported)
			}
		case m == MarkerEOI:
			return d.image()
		case m >= 0xFFC0 && m <= 0xFFCF && m != MarkerDHT && m != 0xFFC8 && m != 0xFFCC:
			err = fmt.Errorf("%w: SOF marker 0x%04X", ErrUnsupported, m)
		default:
			_, err = d.readSegment()
		}
		if err != nil {
			return nil, err
		}
	}
}

func (d *decoder) image() (image.Image, error) {
	if d.samples == nil {
		return nil, fmt.Errorf("%w: no scan", ErrFormat)
	}
	rect := image.Rect(0, 0, d.width, d.height)
	if d.precision <= 8 {
		img := image.NewGray(rect)
		for i, v := range d.samples {
			img.Pix[i] = uint8(v)
		}
		return img, nil
	}
	img := image.NewGray16(rect)
	for i, v := range d.samples {
		img.Pix[2*i] = uint8(v >> 8)
		img.Pix[2*i+1] = uint8(v)
	}
	return img, nil
}

func (d *decoder) readMarker() (int, error) {
	c, err := d.r.ReadByte()
	if err != nil {
		return 0, err
	}
	for c != 0xFF {
		if c, err = d.r.ReadByte(); err != nil {
			return 0, err
		}
	}
	for c == 0xFF {
		if c, err = d.r.ReadByte(); err != nil {
			return 0, err
		}
	}
	return 0xFF00 | int(c), nil
}

func (d *decoder) readSegment() ([]byte, error) {
	var n [2]byte
	if _, err := io.ReadFull(d.r, n[:]); err != nil {
		return nil, err
	}
	length := int(n[0])<<8 | int(n[1])
	if length < 2 {
		return nil, fmt.Errorf("%w: segment length %d", ErrFormat, length)
	}
	data := make([]byte, length-2)
	_, err := io.ReadFull(d.r, data)
	return data, err
}

func (d *decoder) readSOF3() error {
	data, err := d.readSegment()
	if err != nil {
		return err
	}
	if len(data) < 9 {
		return fmt.Errorf("%w: short SOF3", ErrFormat)
	}
	d.precision = int(data[0])
	d.height = int(data[1])<<8 | int(data[2])
	d.width = int(data[3])<<8 | int(data[4])
	if n := int(data[5]); n != 1 {
		return fmt.Errorf("%w: %d components", ErrUnsupported, n)
	}
	d.compID = int(data[6])
	if d.precision < 2 || d.precision > 16 || d.width == 0 || d.height == 0 {
		return fmt.Errorf("%w: %dx%d at %d bits", ErrFormat, d.width, d.height, d.precision)
	}
	return nil
}

func (d *decoder) readDHT() error {
	data, err := d.readSegment()
	if err != nil {
		return err
	}
	for off := 0; off < len(data); {
		if off+17 > len(data) {
			return fmt.Errorf("%w: short DHT", ErrFormat)
		}
		id := int(data[off] & 0x0F)
		if id > 3 {
			return fmt.Errorf("%w: DHT table %d", ErrFormat, id)
		}
		ht := &huffmanTable{}
		total := 0
		for i := 1; i <= 16; i++ {
			ht.bits[i] = int(data[off+i])
			total += ht.bits[i]
		}
		off += 17
		if off+total > len(data) {
			return fmt.Errorf("%w: short DHT", ErrFormat)
		}
		ht.values = append([]byte(nil), data[off:off+total]...)
		off += total
		if err := ht.generate(); err != nil {
			return err
		}
		d.tables[id] = ht
	}
	return nil
}

func (d *decoder) readSOS() error {
	data, err := d.readSegment()
	if err != nil {
		return err
	}
	if d.precision == 0 {
		return fmt.Errorf("%w: SOS before SOF3", ErrFormat)
	}
	if len(data) != 6 || data[0] != 1 || int(data[1]) != d.compID {
		return fmt.Errorf("%w: SOS header", ErrFormat)
	}
	d.table = int(data[2] >> 4)
	d.predictor = int(data[3])
	d.pointTrans = int(data[5] & 0x0F)
	if d.table > 3 || d.tables[d.table] == nil {
		return fmt.Errorf("%w: undefined Huffman table %d", ErrFormat, d.table)
	}
	if d.predictor < 1 || d.predictor > 7 || d.pointTrans >= d.precision {
		return fmt.Errorf("%w: predictor %d point transform %d", ErrUnsupported, d.predictor, d.pointTrans)
	}
	slog.Debug("jpegli: SOS parsed",
		slog.Int("predictor", d.predictor),
		slog.Int("pointTransform", d.pointTrans))
	return nil
}

func (d *decoder) decodeScan() error {
	ht := d.tables[d.table]
	br := &bitReader{r: d.r}
	p := newRowPredictor(d.predictor, d.width, d.precision, d.pointTrans)
	d.samples = make([]int, d.width*d.height)
	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			ssss, err := br.decode(ht)
			if err != nil {
				return err
			}
			var diff int
			switch {
			case ssss == 16:
				diff = 0x8000
			case ssss > 16:
				return fmt.Errorf("%w: difference category %d", ErrFormat, ssss)
			case ssss > 0:
				v := br.readBits(ssss)
				if v < 1<<(ssss-1) {
					v -= 1<<ssss - 1
				}
				diff = v
			}
			v := (p.at(x, y) + diff) & 0xFFFF
			p.set(x, v)
			d.samples[y*d.width+x] = v << d.pointTrans
		}
		p.nextRow()
	}
	if br.truncated {
		return fmt.Errorf("%w: scan data ended early", ErrFormat)
	}
	return nil
}

// bitReader reads entropy coded bits and stops in front of the next marker.
type bitReader struct {
	r         *bufio.Reader
	acc       uint32
	n         int
	marker    bool
	truncated bool
}

func (b *bitReader) readBit() int {
	if b.n == 0 {
		b.fill()
	}
	b.n--
	return int(b.acc>>b.n) & 1
}

func (b *bitReader) readBits(n int) int {
	v := 0
	for range n {
		v = v<<1 | b.readBit()
	}
	return v
}

func (b *bitReader) fill() {
	b.acc <<= 8
	b.n += 8
	if b.marker {
		b.truncated = true
		return
	}
	p, _ := b.r.Peek(2)
	switch {
	case len(p) == 0:
		b.marker = true
		b.truncated = true
	case p[0] != 0xFF:
		b.acc |= uint32(p[0])
		b.r.Discard(1)
	case len(p) == 2 && p[1] == 0x00:
		b.acc |= 0xFF
		b.r.Discard(2)
	default:
		b.marker = true
		b.truncated = true
	}
}

func (b *bitReader) decode(ht *huffmanTable) (int, error) {
	code := 0
	for size := 1; size <= 16; size++ {
		code = code<<1 | b.readBit()
		if code <= ht.maxCode[size] {
			return int(ht.values[ht.valPtr[size]+code-ht.minCode[size]]), nil
		}
	}
	return 0, fmt.Errorf("%w: invalid Huffman code", ErrFormat)
}
