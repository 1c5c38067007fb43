package recon

import "math"

// accumulateTV2 adds the weighted second order (curvature) subgradient to grad
// and returns the TV2 sum. inX and inY hold the forward differences produced by
// a TVKernel; their backward differences form the discrete Hessian.
func accumulateTV2(w, h int, grad, inX, inY []float32, alpha float32) float64 {
	var tv2 float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			var gxx, gyx, gxy, gyy float32
			if x > 0 {
				gxx = inX[i] - inX[i-1]
				gyx = inY[i] - inY[i-1]
			}
			if y > 0 {
				gxy = inX[i] - inX[i-w]
				gyy = inY[i] - inY[i-w]
			}
			norm := float32(math.Sqrt(float64(float32(gxx*gxx) + float32(gyx*gyx) + float32(gxy*gxy) + float32(gyy*gyy))))
			tv2 += float64(norm)
			if norm == 0 {
				continue
			}

			grad[i] += alpha * (-(2*gxx + gxy + gyx + 2*gyy) / norm)
			if x > 0 {
				grad[i-1] += alpha * ((gyx + gxx) / norm)
			}
			if x < w-1 {
				grad[i+1] += alpha * ((gxx + gxy) / norm)
			}
			if y > 0 {
				grad[i-w] += alpha * ((gyy + gxy) / norm)
			}
			if y < h-1 {
				grad[i+w] += alpha * ((gyy + gyx) / norm)
			}
			if x < w-1 && y > 0 {
				grad[i+1-w] += alpha * (-gxy / norm)
			}
			if x > 0 && y < h-1 {
				grad[i-1+w] += alpha * (-gyx / norm)
			}
		}
	}
	return tv2
}
