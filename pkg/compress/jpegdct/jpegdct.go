// Package jpegdct reads the quantized DCT coefficients of a JPEG stream
// (ITU-T T.81 baseline, extended sequential and progressive Huffman
// processes, 8-bit samples) without running the inverse transform.
package jpegdct

import "errors"

var (
	ErrNoJPEG      = errors.New("not a JPEG stream")
	ErrUnsupported = errors.New("unsupported JPEG")
	ErrSyntax      = errors.New("JPEG syntax error")
)

// JPEG markers
const (
	MarkerSOF0  = 0xFFC0 // Baseline DCT
	MarkerSOF1  = 0xFFC1 // Extended sequential DCT
	MarkerSOF2  = 0xFFC2 // Progressive DCT
	MarkerSOF3  = 0xFFC3 // Lossless (unsupported)
	MarkerDHT   = 0xFFC4 // Define Huffman Table
	MarkerJPG   = 0xFFC8 // Reserved extension
	MarkerDAC   = 0xFFCC // Define Arithmetic Conditioning
	MarkerSOF15 = 0xFFCF
	MarkerRST0  = 0xFFD0
	MarkerRST7  = 0xFFD7
	MarkerSOI   = 0xFFD8 // Start of Image
	MarkerEOI   = 0xFFD9 // End of Image
	MarkerSOS   = 0xFFDA // Start of Scan
	MarkerDQT   = 0xFFDB // Define Quantization Table
	MarkerDNL   = 0xFFDC // Define Number of Lines
	MarkerDRI   = 0xFFDD // Define Restart Interval
	MarkerAPP0  = 0xFFE0 // JFIF APP0
	MarkerAPP14 = 0xFFEE // Adobe APP14
	MarkerCOM   = 0xFFFE // Comment
	MarkerTEM   = 0xFF01
)

// BlockSize is the number of coefficients in one 8x8 block.
const BlockSize = 64

// unzig maps the k-th coefficient in zigzag order to its natural (row-major)
// index inside the block.
var unzig = [BlockSize]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// Component is one color component of a frame.
type Component struct {
	ID int
	// H and V are the horizontal and vertical sampling factors.
	H, V int
	// Width and Height are the component dimensions in samples.
	Width, Height int
	// BlocksW and BlocksH describe the stored block grid, padded to whole MCUs.
	BlocksW, BlocksH int
	// QuantIndex is the DQT table selector from the frame header.
	QuantIndex int
	// Quant holds the scale factors in natural order.
	Quant [BlockSize]uint16
	// Coeffs holds BlocksW*BlocksH blocks of 64 quantized coefficients in raster
	// block order, natural order inside each block.
	Coeffs []int16
}

// Block returns the coefficients of the block at block coordinates (bx, by).
func (c *Component) Block(bx, by int) []int16 {
	off := (by*c.BlocksW + bx) * BlockSize
	return c.Coeffs[off : off+BlockSize]
}

// Image is the coefficient level content of a JPEG stream.
type Image struct {
	Width, Height int
	Precision     int
	Progressive   bool
	// MaxH and MaxV are the largest sampling factors of any component.
	MaxH, MaxV int
	Components []Component
	// JFIF reports an APP0 JFIF segment.
	JFIF bool
	// AdobeTransform is the APP14 color transform flag, -1 without APP14.
	AdobeTransform int
	// RestartInterval is the last DRI value seen, in MCUs.
	RestartInterval int
	// Scans counts the decoded scans.
	Scans int
}

// IsRGB reports a three component image stored without the YCbCr transform.
func (img *Image) IsRGB() bool {
	if len(img.Components) != 3 {
		return false
	}
	if img.AdobeTransform >= 0 {
		return img.AdobeTransform == 0
	}
	c := img.Components
	return !img.JFIF && c[0].ID == 'R' && c[1].ID == 'G' && c[2].ID == 'B'
}
