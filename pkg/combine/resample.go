package combine

import "math"

// corners returns the four bilinear neighbours of (x, y) and their weights.
// Neighbours outside an nx×ny plane get index -1.
func corners(nx, ny int, x, y float64) (idx [4]int, wt [4]float64) {
	idx = [4]int{-1, -1, -1, -1}
	if math.IsNaN(x) || math.IsNaN(y) {
		return idx, wt
	}
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	wt = [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}
	for k, d := range [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		cx, cy := ix+d[0], iy+d[1]
		if cx >= 0 && cy >= 0 && cx < nx && cy < ny {
			idx[k] = cy*nx + cx
		}
	}
	return idx, wt
}

// gather interpolates plane bilinearly at (x, y); samples outside the plane are zero
func gather(plane []complex128, nx, ny int, x, y float64) complex128 {
	idx, wt := corners(nx, ny, x, y)
	var v complex128
	for k, i := range idx {
		if i >= 0 && wt[k] != 0 {
			v += complex(wt[k], 0) * plane[i]
		}
	}
	return v
}

// splat is the adjoint of gather: it spreads v over the neighbours of (x, y)
func splat(plane []complex128, nx, ny int, x, y float64, v complex128) {
	idx, wt := corners(nx, ny, x, y)
	for k, i := range idx {
		if i >= 0 && wt[k] != 0 {
			plane[i] += complex(wt[k], 0) * v
		}
	}
}
