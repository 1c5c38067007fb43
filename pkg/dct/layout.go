package dct

// Box copies a row-major w x h raster into blocks, 64 samples per 8x8 block,
// blocks in raster order. w and h must be multiples of 8.
func Box(raster, blocks []float32, w, h int) {
	bw := w / 8
	for by := 0; by < h/8; by++ {
		for bx := 0; bx < bw; bx++ {
			dst := blocks[(by*bw+bx)*BlockSize:]
			src := raster[by*8*w+bx*8:]
			for y := 0; y < 8; y++ {
				copy(dst[y*8:y*8+8], src[y*w:y*w+8])
			}
		}
	}
}

// Unbox is the inverse of Box.
func Unbox(blocks, raster []float32, w, h int) {
	bw := w / 8
	for by := 0; by < h/8; by++ {
		for bx := 0; bx < bw; bx++ {
			src := blocks[(by*bw+bx)*BlockSize:]
			dst := raster[by*8*w+bx*8:]
			for y := 0; y < 8; y++ {
				copy(dst[y*w:y*w+8], src[y*8:y*8+8])
			}
		}
	}
}
