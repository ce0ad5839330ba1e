// Package fft provides square 2-D complex Fourier transforms with the
// origin at the centre of the array, the convention used for uv grids and
// images throughout the imaging packages.
package fft

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// Forward2D replaces data with its 2-D forward transform
//
//	F(k) = Σ_x f(x) exp(-2πi k·x / n)
//
// where both x and k are measured from the centre pixel n/2.
// data is an n×n array in row-major order; n must be even.
func Forward2D(data []complex128, n int) {
	Shift2D(data, n)
	transform2D(data, n, false)
	Shift2D(data, n)
}

// Inverse2D replaces data with its unnormalised 2-D inverse transform
//
//	f(x) = Σ_k F(k) exp(+2πi k·x / n)
//
// with the same centred convention as Forward2D. Forward2D followed by
// Inverse2D scales the input by n².
func Inverse2D(data []complex128, n int) {
	Shift2D(data, n)
	transform2D(data, n, true)
	Shift2D(data, n)
}

// transform2D performs the row-column decomposition of the 2-D transform.
//
// Parameters:
//   - data: n×n complex array (row-major), transformed in place
//   - n: width/height of the square array
//   - inverse: compute the unnormalised backward transform when true
func transform2D(data []complex128, n int, inverse bool) {
	// CmplxFFT keeps internal work buffers, so each call owns its plan
	plan := fourier.NewCmplxFFT(n)

	in := make([]complex128, n)
	out := make([]complex128, n)
	apply := func() {
		if inverse {
			plan.Sequence(out, in)
		} else {
			plan.Coefficients(out, in)
		}
	}

	// Rows
	for y := 0; y < n; y++ {
		row := data[y*n : (y+1)*n]
		copy(in, row)
		apply()
		copy(row, out)
	}

	// Columns
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			in[y] = data[y*n+x]
		}
		apply()
		for y := 0; y < n; y++ {
			data[y*n+x] = out[y]
		}
	}
}

// Shift2D swaps the quadrants of an even n×n array, moving the centre pixel
// to index 0 and back. For even n the shift is its own inverse.
func Shift2D(data []complex128, n int) {
	half := n / 2
	for y := 0; y < half; y++ {
		for x := 0; x < n; x++ {
			sx := (x + half) % n
			i := y*n + x
			j := (y+half)*n + sx
			data[i], data[j] = data[j], data[i]
		}
	}
}
