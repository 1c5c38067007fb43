package jpegdct

import (
	"fmt"
	"log/slog"
)

type scanComponent struct {
	index int
	dc    *huffman
	ac    *huffman
}

type scan struct {
	comps  []scanComponent
	ss, se int // spectral selection
	ah, al int // successive approximation
}

func (d *decoder) readSOS() error {
	img := d.img
	if img.Components == nil {
		return fmt.Errorf("%w: SOS before SOF", ErrSyntax)
	}
	data, err := d.readSegment()
	if err != nil {
		return err
	}
	if len(data) < 1 {
		return fmt.Errorf("%w: short SOS", ErrSyntax)
	}
	n := int(data[0])
	if n < 1 || n > len(img.Components) || len(data) != 4+2*n {
		return fmt.Errorf("%w: SOS with %d components", ErrSyntax, n)
	}

	s := &scan{comps: make([]scanComponent, n)}
	for i := 0; i < n; i++ {
		id := int(data[1+2*i])
		tables := int(data[2+2*i])
		index := -1
		for j := range img.Components {
			if img.Components[j].ID == id {
				index = j
				break
			}
		}
		if index < 0 {
			return fmt.Errorf("%w: SOS references unknown component %d", ErrSyntax, id)
		}
		td, ta := tables>>4, tables&0x0F
		if td > 3 || ta > 3 {
			return fmt.Errorf("%w: SOS table selectors %d/%d", ErrSyntax, td, ta)
		}
		s.comps[i] = scanComponent{index: index, dc: d.dcTables[td], ac: d.acTables[ta]}
	}
	off := 1 + 2*n
	s.ss = int(data[off])
	s.se = int(data[off+1])
	s.ah = int(data[off+2]) >> 4
	s.al = int(data[off+2]) & 0x0F

	if img.Progressive {
		switch {
		case s.ss == 0 && s.se != 0:
			return fmt.Errorf("%w: progressive DC scan with Se=%d", ErrSyntax, s.se)
		case s.ss > 0 && (n != 1 || s.se < s.ss || s.se > 63):
			return fmt.Errorf("%w: progressive AC scan Ss=%d Se=%d over %d components", ErrSyntax, s.ss, s.se, n)
		case s.al > 13 || s.ah > 13:
			return fmt.Errorf("%w: successive approximation %d/%d", ErrSyntax, s.ah, s.al)
		}
	} else {
		s.ss, s.se, s.ah, s.al = 0, 63, 0, 0
	}

	for _, sc := range s.comps {
		if !d.latched[sc.index] {
			if err := d.latchQuant(sc.index); err != nil {
				return err
			}
		}
	}

	slog.Debug("jpegdct: SOS parsed",
		slog.Int("components", n),
		slog.Int("ss", s.ss),
		slog.Int("se", s.se),
		slog.Int("ah", s.ah),
		slog.Int("al", s.al))

	if err := d.decodeScan(s); err != nil {
		return fmt.Errorf("scan %d: %w", img.Scans, err)
	}
	img.Scans++
	return nil
}

// decodeScan decodes the entropy coded data following an SOS header.
func (d *decoder) decodeScan(s *scan) error {
	img := d.img
	br := newBitReader(d.r)
	preds := make([]int, len(s.comps))
	d.eobRun = 0

	// a single component scan is never interleaved: one block per MCU over
	// the component's own block grid
	var mcus, blocksW int
	if len(s.comps) == 1 {
		c := &img.Components[s.comps[0].index]
		blocksW = ceilDiv(c.Width, 8)
		mcus = blocksW * ceilDiv(c.Height, 8)
	} else {
		mcus = d.mcusX * d.mcusY
	}

	for mcu := 0; mcu < mcus; mcu++ {
		if len(s.comps) == 1 {
			c := &img.Components[s.comps[0].index]
			blk := c.Block(mcu%blocksW, mcu/blocksW)
			if err := d.decodeBlock(br, s, 0, blk, &preds[0]); err != nil {
				return err
			}
		} else {
			mx, my := mcu%d.mcusX, mcu/d.mcusX
			for i, sc := range s.comps {
				c := &img.Components[sc.index]
				for v := 0; v < c.V; v++ {
					for h := 0; h < c.H; h++ {
						blk := c.Block(mx*c.H+h, my*c.V+v)
						if err := d.decodeBlock(br, s, i, blk, &preds[i]); err != nil {
							return err
						}
					}
				}
			}
		}

		ri := img.RestartInterval
		if ri > 0 && mcu+1 < mcus && (mcu+1)%ri == 0 {
			if err := br.restart(); err != nil {
				return err
			}
			clear(preds)
			d.eobRun = 0
		}
	}

	if br.truncated {
		slog.Warn("jpegdct: entropy coded data ended early", slog.Int("scan", img.Scans))
	}
	return nil
}

func (d *decoder) decodeBlock(br *bitReader, s *scan, i int, blk []int16, pred *int) error {
	sc := s.comps[i]
	switch {
	case !d.img.Progressive:
		return decodeSequential(br, sc, blk, pred)
	case s.ss == 0 && s.ah == 0:
		return decodeDCFirst(br, sc, blk, pred, s.al)
	case s.ss == 0:
		return decodeDCRefine(br, blk, s.al)
	case s.ah == 0:
		return d.decodeACFirst(br, sc, blk, s)
	default:
		return d.decodeACRefine(br, sc, blk, s)
	}
}

func decodeDC(br *bitReader, sc scanComponent, pred *int) error {
	if sc.dc == nil {
		return fmt.Errorf("%w: missing DC Huffman table", ErrSyntax)
	}
	t, err := br.decodeHuffman(sc.dc)
	if err != nil {
		return err
	}
	if t > 11 {
		return fmt.Errorf("%w: DC magnitude category %d", ErrSyntax, t)
	}
	diff, err := br.receiveExtend(t)
	if err != nil {
		return err
	}
	*pred += diff
	return nil
}

func decodeSequential(br *bitReader, sc scanComponent, blk []int16, pred *int) error {
	if err := decodeDC(br, sc, pred); err != nil {
		return err
	}
	blk[0] = int16(*pred)

	if sc.ac == nil {
		return fmt.Errorf("%w: missing AC Huffman table", ErrSyntax)
	}
	for k := 1; k < BlockSize; {
		rs, err := br.decodeHuffman(sc.ac)
		if err != nil {
			return err
		}
		r, s := rs>>4, rs&0x0F
		if s == 0 {
			if r != 15 {
				break // EOB
			}
			k += 16
			continue
		}
		k += r
		if k >= BlockSize {
			return fmt.Errorf("%w: AC run past end of block", ErrSyntax)
		}
		v, err := br.receiveExtend(s)
		if err != nil {
			return err
		}
		blk[unzig[k]] = int16(v)
		k++
	}
	return nil
}

func decodeDCFirst(br *bitReader, sc scanComponent, blk []int16, pred *int, al int) error {
	if err := decodeDC(br, sc, pred); err != nil {
		return err
	}
	blk[0] = int16(*pred << al)
	return nil
}

func decodeDCRefine(br *bitReader, blk []int16, al int) error {
	bit, err := br.readBit()
	if err != nil {
		return err
	}
	if bit {
		blk[0] |= 1 << al
	}
	return nil
}

func (d *decoder) decodeACFirst(br *bitReader, sc scanComponent, blk []int16, s *scan) error {
	if d.eobRun > 0 {
		d.eobRun--
		return nil
	}
	if sc.ac == nil {
		return fmt.Errorf("%w: missing AC Huffman table", ErrSyntax)
	}
	for k := s.ss; k <= s.se; {
		rs, err := br.decodeHuffman(sc.ac)
		if err != nil {
			return err
		}
		r, z := rs>>4, rs&0x0F
		if z == 0 {
			if r < 15 {
				// EOBr: this block plus 2^r - 1 + extra following blocks end here
				d.eobRun = 1<<r - 1
				if r > 0 {
					extra, err := br.readBits(r)
					if err != nil {
						return err
					}
					d.eobRun += extra
				}
				break
			}
			k += 16
			continue
		}
		k += r
		if k > s.se {
			return fmt.Errorf("%w: AC run past spectral band", ErrSyntax)
		}
		v, err := br.receiveExtend(z)
		if err != nil {
			return err
		}
		blk[unzig[k]] = int16(v << s.al)
		k++
	}
	return nil
}

// refineNonZero applies one correction bit to an already nonzero coefficient.
func refineNonZero(br *bitReader, c *int16, p1, m1 int16) error {
	bit, err := br.readBit()
	if err != nil {
		return err
	}
	if bit && *c&p1 == 0 {
		if *c >= 0 {
			*c += p1
		} else {
			*c += m1
		}
	}
	return nil
}

func (d *decoder) decodeACRefine(br *bitReader, sc scanComponent, blk []int16, s *scan) error {
	p1 := int16(1) << s.al
	m1 := int16(-1) << s.al
	k := s.ss

	if d.eobRun == 0 {
		if sc.ac == nil {
			return fmt.Errorf("%w: missing AC Huffman table", ErrSyntax)
		}
	bands:
		for ; k <= s.se; k++ {
			rs, err := br.decodeHuffman(sc.ac)
			if err != nil {
				return err
			}
			r, z := rs>>4, rs&0x0F
			var v int16
			switch {
			case z == 1:
				bit, err := br.readBit()
				if err != nil {
					return err
				}
				v = m1
				if bit {
					v = p1
				}
			case z != 0:
				return fmt.Errorf("%w: refinement magnitude %d", ErrSyntax, z)
			case r != 15:
				d.eobRun = 1 << r
				if r > 0 {
					extra, err := br.readBits(r)
					if err != nil {
						return err
					}
					d.eobRun += extra
				}
				break bands
			}

			// skip r zero-history coefficients, refining nonzero ones on the way
			for ; k <= s.se; k++ {
				c := &blk[unzig[k]]
				if *c != 0 {
					if err := refineNonZero(br, c, p1, m1); err != nil {
						return err
					}
					continue
				}
				if r == 0 {
					break
				}
				r--
			}
			if v != 0 && k <= s.se {
				blk[unzig[k]] = v
			}
		}
	}

	if d.eobRun > 0 {
		for ; k <= s.se; k++ {
			c := &blk[unzig[k]]
			if *c != 0 {
				if err := refineNonZero(br, c, p1, m1); err != nil {
					return err
				}
			}
		}
		d.eobRun--
	}
	return nil
}
