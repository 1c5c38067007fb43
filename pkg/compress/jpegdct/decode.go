package jpegdct

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
)

// Decode reads a JPEG stream from r and returns its quantized coefficients.
func Decode(r io.Reader) (*Image, error) {
	d := &decoder{r: bufio.NewReader(r)}
	return d.decode()
}

type decoder struct {
	r   *bufio.Reader
	img *Image

	// quantization tables in natural order, indexed by DQT destination
	quant [4]*[BlockSize]uint16
	// latched reports whether a component has already taken its quant table
	latched []bool

	dcTables [4]*huffman
	acTables [4]*huffman

	mcusX, mcusY int
	eobRun       int
}

func (d *decoder) decode() (*Image, error) {
	if err := d.expectSOI(); err != nil {
		return nil, err
	}
	d.img = &Image{AdobeTransform: -1}

	for {
		marker, err := d.readMarker()
		if err != nil {
			return nil, err
		}

		switch {
		case marker == MarkerSOF0 || marker == MarkerSOF1 || marker == MarkerSOF2:
			if err := d.readSOF(marker == MarkerSOF2); err != nil {
				return nil, err
			}
		case marker == MarkerDHT:
			if err := d.readDHT(); err != nil {
				return nil, err
			}
		case marker == MarkerDAC:
			return nil, fmt.Errorf("%w: arithmetic coding", ErrUnsupported)
		case marker >= MarkerSOF3 && marker <= MarkerSOF15 && marker != MarkerJPG:
			return nil, fmt.Errorf("%w: SOF marker 0x%04X", ErrUnsupported, marker)
		case marker == MarkerDQT:
			if err := d.readDQT(); err != nil {
				return nil, err
			}
		case marker == MarkerDRI:
			if err := d.readDRI(); err != nil {
				return nil, err
			}
		case marker == MarkerSOS:
			if err := d.readSOS(); err != nil {
				return nil, err
			}
		case marker == MarkerAPP0:
			if err := d.readAPP0(); err != nil {
				return nil, err
			}
		case marker == MarkerAPP14:
			if err := d.readAPP14(); err != nil {
				return nil, err
			}
		case marker == MarkerDNL:
			return nil, fmt.Errorf("%w: DNL marker", ErrUnsupported)
		case marker == MarkerEOI:
			return d.finish()
		case marker >= MarkerRST0 && marker <= MarkerRST7, marker == MarkerTEM:
			// standalone markers without a length
		default:
			if err := d.skipMarkerData(); err != nil {
				return nil, err
			}
		}
	}
}

func (d *decoder) finish() (*Image, error) {
	if d.img.Components == nil {
		return nil, fmt.Errorf("%w: no frame header", ErrSyntax)
	}
	if d.img.Scans == 0 {
		return nil, fmt.Errorf("%w: no scan data", ErrSyntax)
	}
	for i := range d.img.Components {
		if !d.latched[i] {
			if err := d.latchQuant(i); err != nil {
				return nil, err
			}
		}
	}
	return d.img, nil
}

func (d *decoder) expectSOI() error {
	var buf [2]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrNoJPEG, err)
	}
	if int(buf[0])<<8|int(buf[1]) != MarkerSOI {
		return ErrNoJPEG
	}
	return nil
}

// readMarker returns the next marker, skipping fill bytes and any stray data
// left behind by an entropy coded segment.
func (d *decoder) readMarker() (int, error) {
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, fmt.Errorf("%w: missing EOI", ErrSyntax)
			}
			return 0, err
		}
		if c != 0xFF {
			continue
		}
		for c == 0xFF {
			if c, err = d.r.ReadByte(); err != nil {
				return 0, err
			}
		}
		if c != 0x00 {
			return 0xFF00 | int(c), nil
		}
	}
}

// readSegment reads the payload of a marker segment.
func (d *decoder) readSegment() ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := int(lenBuf[0])<<8 | int(lenBuf[1])
	if length < 2 {
		return nil, fmt.Errorf("%w: segment length %d", ErrSyntax, length)
	}
	data := make([]byte, length-2)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *decoder) skipMarkerData() error {
	var lenBuf [2]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		return err
	}
	length := int(lenBuf[0])<<8 | int(lenBuf[1]) - 2
	if length > 0 {
		_, err := d.r.Discard(length)
		return err
	}
	return nil
}

func (d *decoder) readSOF(progressive bool) error {
	if d.img.Components != nil {
		return fmt.Errorf("%w: multiple frames", ErrUnsupported)
	}
	data, err := d.readSegment()
	if err != nil {
		return err
	}
	if len(data) < 6 {
		return fmt.Errorf("%w: short SOF", ErrSyntax)
	}

	img := d.img
	img.Progressive = progressive
	img.Precision = int(data[0])
	img.Height = int(data[1])<<8 | int(data[2])
	img.Width = int(data[3])<<8 | int(data[4])
	n := int(data[5])

	switch {
	case img.Precision != 8:
		return fmt.Errorf("%w: %d-bit precision", ErrUnsupported, img.Precision)
	case img.Height == 0:
		return fmt.Errorf("%w: height defined by DNL", ErrUnsupported)
	case img.Width == 0:
		return fmt.Errorf("%w: zero width", ErrSyntax)
	case n < 1 || n > 4:
		return fmt.Errorf("%w: %d components", ErrUnsupported, n)
	case len(data) < 6+3*n:
		return fmt.Errorf("%w: short SOF", ErrSyntax)
	}

	img.Components = make([]Component, n)
	d.latched = make([]bool, n)
	img.MaxH, img.MaxV = 1, 1
	for i := range img.Components {
		off := 6 + i*3
		c := &img.Components[i]
		c.ID = int(data[off])
		c.H = int(data[off+1]) >> 4
		c.V = int(data[off+1]) & 0x0F
		c.QuantIndex = int(data[off+2])
		if c.H < 1 || c.H > 4 || c.V < 1 || c.V > 4 {
			return fmt.Errorf("%w: sampling factors %dx%d", ErrSyntax, c.H, c.V)
		}
		if c.QuantIndex > 3 {
			return fmt.Errorf("%w: quantization table %d", ErrSyntax, c.QuantIndex)
		}
		for j := 0; j < i; j++ {
			if img.Components[j].ID == c.ID {
				return fmt.Errorf("%w: duplicate component id %d", ErrSyntax, c.ID)
			}
		}
		img.MaxH = max(img.MaxH, c.H)
		img.MaxV = max(img.MaxV, c.V)
	}

	d.mcusX = ceilDiv(img.Width, 8*img.MaxH)
	d.mcusY = ceilDiv(img.Height, 8*img.MaxV)
	for i := range img.Components {
		c := &img.Components[i]
		c.Width = ceilDiv(img.Width*c.H, img.MaxH)
		c.Height = ceilDiv(img.Height*c.V, img.MaxV)
		c.BlocksW = d.mcusX * c.H
		c.BlocksH = d.mcusY * c.V
		c.Coeffs = make([]int16, c.BlocksW*c.BlocksH*BlockSize)
	}

	slog.Debug("jpegdct: SOF parsed",
		slog.Bool("progressive", progressive),
		slog.Int("width", img.Width),
		slog.Int("height", img.Height),
		slog.Int("components", n))
	return nil
}

func (d *decoder) readDQT() error {
	data, err := d.readSegment()
	if err != nil {
		return err
	}
	for off := 0; off < len(data); {
		pq := int(data[off] >> 4)
		tq := int(data[off] & 0x0F)
		off++
		if tq > 3 || pq > 1 {
			return fmt.Errorf("%w: DQT table %d precision %d", ErrSyntax, tq, pq)
		}
		size := BlockSize * (pq + 1)
		if off+size > len(data) {
			return fmt.Errorf("%w: short DQT", ErrSyntax)
		}
		t := new([BlockSize]uint16)
		for k := 0; k < BlockSize; k++ {
			if pq == 0 {
				t[unzig[k]] = uint16(data[off+k])
			} else {
				t[unzig[k]] = uint16(data[off+2*k])<<8 | uint16(data[off+2*k+1])
			}
		}
		off += size
		d.quant[tq] = t
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
			return fmt.Errorf("%w: short DHT", ErrSyntax)
		}
		class := int(data[off] >> 4) // 0 = DC, 1 = AC
		id := int(data[off] & 0x0F)
		off++
		if class > 1 || id > 3 {
			return fmt.Errorf("%w: DHT class %d id %d", ErrSyntax, class, id)
		}

		var counts [16]int
		total := 0
		for i := range counts {
			counts[i] = int(data[off+i])
			total += counts[i]
		}
		off += 16
		if total > 256 || off+total > len(data) {
			return fmt.Errorf("%w: DHT with %d codes", ErrSyntax, total)
		}

		h, err := newHuffman(counts, data[off:off+total])
		if err != nil {
			return err
		}
		off += total

		if class == 0 {
			d.dcTables[id] = h
		} else {
			d.acTables[id] = h
		}
		slog.Debug("jpegdct: DHT parsed",
			slog.Int("class", class),
			slog.Int("tableID", id),
			slog.Int("totalCodes", total))
	}
	return nil
}

func (d *decoder) readDRI() error {
	data, err := d.readSegment()
	if err != nil {
		return err
	}
	if len(data) != 2 {
		return fmt.Errorf("%w: DRI length", ErrSyntax)
	}
	d.img.RestartInterval = int(data[0])<<8 | int(data[1])
	return nil
}

func (d *decoder) readAPP0() error {
	data, err := d.readSegment()
	if err != nil {
		return err
	}
	if bytes.HasPrefix(data, []byte("JFIF\x00")) {
		d.img.JFIF = true
	}
	return nil
}

func (d *decoder) readAPP14() error {
	data, err := d.readSegment()
	if err != nil {
		return err
	}
	if len(data) >= 12 && bytes.HasPrefix(data, []byte("Adobe")) {
		d.img.AdobeTransform = int(data[11])
	}
	return nil
}

// latchQuant copies the current table of component i into the component.
// Later DQT segments do not affect a latched component.
func (d *decoder) latchQuant(i int) error {
	c := &d.img.Components[i]
	t := d.quant[c.QuantIndex]
	if t == nil {
		return fmt.Errorf("%w: component %d uses undefined quantization table %d", ErrSyntax, c.ID, c.QuantIndex)
	}
	c.Quant = *t
	d.latched[i] = true
	return nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
