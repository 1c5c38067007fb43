package jpegdct

import (
	"bufio"
	"fmt"
	"io"
)

type huffman struct {
	// lookup packs size<<8|value for codes of at most 8 bits; 0 marks a miss
	lookup  [256]uint16
	minCode [17]int
	maxCode [17]int // -1 when no code has this length
	valPtr  [17]int
	values  []byte
}

// newHuffman builds the canonical code from the DHT BITS and HUFFVAL lists.
func newHuffman(counts [16]int, values []byte) (*huffman, error) {
	h := &huffman{values: append([]byte(nil), values...)}
	code, k := 0, 0
	for size := 1; size <= 16; size++ {
		n := counts[size-1]
		h.valPtr[size] = k
		h.minCode[size] = code
		h.maxCode[size] = -1
		for i := 0; i < n; i++ {
			if size <= 8 {
				base := code << (8 - size)
				for j := 0; j < 1<<(8-size); j++ {
					h.lookup[base+j] = uint16(size)<<8 | uint16(values[k])
				}
			}
			code++
			k++
		}
		if n > 0 {
			h.maxCode[size] = code - 1
		}
		if code > 1<<size {
			return nil, fmt.Errorf("%w: oversubscribed Huffman table", ErrSyntax)
		}
		code <<= 1
	}
	return h, nil
}

// bitReader reads entropy coded bits, removing stuffed zero bytes after 0xFF.
// Once a marker is reached it supplies zero bits and leaves the marker unread.
type bitReader struct {
	r      *bufio.Reader
	acc    uint32
	n      int // valid low bits in acc
	marker bool
	// truncated reports that the stream ended inside entropy coded data
	truncated bool
}

func newBitReader(r *bufio.Reader) *bitReader {
	return &bitReader{r: r}
}

func (b *bitReader) fill() error {
	for b.n <= 24 {
		if b.marker {
			b.acc <<= 8
			b.n += 8
			continue
		}
		p, err := b.r.Peek(2)
		if len(p) == 0 {
			if err == io.EOF {
				b.marker, b.truncated = true, true
				continue
			}
			return err
		}
		c := p[0]
		switch {
		case c != 0xFF:
			b.r.Discard(1)
		case len(p) == 2 && p[1] == 0x00:
			b.r.Discard(2)
		default:
			// marker or a lone trailing 0xFF: stop here
			b.marker = true
			if len(p) < 2 {
				b.truncated = true
			}
			continue
		}
		b.acc = b.acc<<8 | uint32(c)
		b.n += 8
	}
	return nil
}

func (b *bitReader) readBits(n int) (int, error) {
	if n == 0 {
		return 0, nil
	}
	if b.n < n {
		if err := b.fill(); err != nil {
			return 0, err
		}
	}
	b.n -= n
	return int(b.acc>>b.n) & (1<<n - 1), nil
}

func (b *bitReader) readBit() (bool, error) {
	v, err := b.readBits(1)
	return v == 1, err
}

// receiveExtend reads an s-bit magnitude and sign extends it (F.2.2.1).
func (b *bitReader) receiveExtend(s int) (int, error) {
	if s == 0 {
		return 0, nil
	}
	v, err := b.readBits(s)
	if err != nil {
		return 0, err
	}
	if v < 1<<(s-1) {
		v += -(1 << s) + 1
	}
	return v, nil
}

func (b *bitReader) decodeHuffman(h *huffman) (int, error) {
	if b.n < 16 {
		if err := b.fill(); err != nil {
			return 0, err
		}
	}
	peek := int(b.acc>>(b.n-8)) & 0xFF
	if v := h.lookup[peek]; v != 0 {
		b.n -= int(v >> 8)
		return int(v & 0xFF), nil
	}
	for size := 9; size <= 16; size++ {
		code := int(b.acc>>(b.n-size)) & (1<<size - 1)
		if code <= h.maxCode[size] {
			b.n -= size
			return int(h.values[h.valPtr[size]+code-h.minCode[size]]), nil
		}
	}
	return 0, fmt.Errorf("%w: invalid Huffman code", ErrSyntax)
}

// restart drops buffered bits and consumes the next RSTn marker.
func (b *bitReader) restart() error {
	b.acc, b.n, b.marker = 0, 0, false
	for {
		c, err := b.r.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: missing restart marker", ErrSyntax)
		}
		if c != 0xFF {
			continue
		}
		for c == 0xFF {
			if c, err = b.r.ReadByte(); err != nil {
				return fmt.Errorf("%w: missing restart marker", ErrSyntax)
			}
		}
		switch {
		case c == 0x00:
			continue
		case 0xFF00|int(c) >= MarkerRST0 && 0xFF00|int(c) <= MarkerRST7:
			return nil
		default:
			return fmt.Errorf("%w: expected RST marker, found 0xFF%02X", ErrSyntax, c)
		}
	}
}
