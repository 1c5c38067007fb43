// Package jpegli reads and writes single component lossless JPEG (ITU-T T.81
// process 14, SOF3) with 2 to 16 bits per sample.
package jpegli

import "errors"

var (
	ErrFormat      = errors.New("invalid lossless JPEG")
	ErrUnsupported = errors.New("unsupported lossless JPEG")
)

// JPEG markers
const (
	MarkerSOF3 = 0xFFC3 // Lossless, Huffman
	MarkerDHT  = 0xFFC4
	MarkerRST0 = 0xFFD0
	MarkerRST7 = 0xFFD7
	MarkerSOI  = 0xFFD8
	MarkerEOI  = 0xFFD9
	MarkerSOS  = 0xFFDA
	MarkerDRI  = 0xFFDD
	MarkerAPP0 = 0xFFE0
	MarkerCOM  = 0xFFFE
)

// difference categories 0..16
const numCategories = 17

// huffmanTable is a DC style table over difference categories.
type huffmanTable struct {
	bits   [17]int // bits[i] codes of length i
	values []byte
	// encoder side, indexed by category
	codes [numCategories]uint16
	sizes [numCategories]int
	// decoder side
	maxCode [17]int
	valPtr  [17]int
	minCode [17]int
}

// generate derives the canonical codes from bits and values (T.81 C.2).
func (ht *huffmanTable) generate() error {
	code, k := 0, 0
	for size := 1; size <= 16; size++ {
		ht.valPtr[size] = k
		ht.minCode[size] = code
		ht.maxCode[size] = -1
		for i := 0; i < ht.bits[size]; i++ {
			if k >= len(ht.values) {
				return ErrFormat
			}
			sym := int(ht.values[k])
			if sym < numCategories {
				ht.codes[sym] = uint16(code)
				ht.sizes[sym] = size
			}
			code++
			k++
		}
		if ht.bits[size] > 0 {
			ht.maxCode[size] = code - 1
		}
		if code > 1<<size {
			return ErrFormat
		}
		code <<= 1
	}
	return nil
}

// predict applies selection value sv to the neighbors a (left), b (above)
// and c (above left) per T.81 table H.1.
func predict(sv, a, b, c int) int {
	switch sv {
	case 1:
		return a
	case 2:
		return b
	case 3:
		return c
	case 4:
		return a + b - c
	case 5:
		return a + (b-c)>>1
	case 6:
		return b + (a-c)>>1
	case 7:
		return (a + b) >> 1
	default:
		return 0
	}
}

// rowPredictor walks a raster in scan order and yields the prediction for
// each sample given the already reconstructed samples.
type rowPredictor struct {
	sv        int
	width     int
	initial   int
	prev, cur []int
}

func newRowPredictor(sv, width, precision, pt int) *rowPredictor {
	return &rowPredictor{
		sv:      sv,
		width:   width,
		initial: 1 << (precision - pt - 1),
		prev:    make([]int, width),
		cur:     make([]int, width),
	}
}

func (p *rowPredictor) at(x, y int) int {
	switch {
	case x == 0 && y == 0:
		return p.initial
	case y == 0:
		return p.cur[x-1]
	case x == 0:
		return p.prev[0]
	default:
		return predict(p.sv, p.cur[x-1], p.prev[x], p.prev[x-1])
	}
}

func (p *rowPredictor) set(x, v int) { p.cur[x] = v }

func (p *rowPredictor) nextRow() { p.prev, p.cur = p.cur, p.prev }

// category returns the SSSS magnitude category of a difference.
func category(diff int) int {
	if diff < 0 {
		diff = -diff
	}
	n := 0
	for diff > 0 {
		diff >>= 1
		n++
	}
	return n
}
