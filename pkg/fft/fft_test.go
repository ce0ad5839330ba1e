package fft

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestForwardOfCentredDelta checks that a delta on the centre pixel
// transforms to a constant.
func TestForwardOfCentredDelta(t *testing.T) {
	n := 16
	data := make([]complex128, n*n)
	data[(n/2)*n+n/2] = 1

	Forward2D(data, n)

	for i, v := range data {
		require.InDeltaf(t, 1.0, real(v), 1e-12, "pixel %d", i)
		require.InDeltaf(t, 0.0, imag(v), 1e-12, "pixel %d", i)
	}
}

// TestForwardOfOffsetDelta checks the sign and origin convention against
// a direct evaluation of exp(-2πi k·x/n).
func TestForwardOfOffsetDelta(t *testing.T) {
	n := 8
	x0, y0 := 3, -2
	data := make([]complex128, n*n)
	data[(y0+n/2)*n+x0+n/2] = 1

	Forward2D(data, n)

	for ky := -n / 2; ky < n/2; ky++ {
		for kx := -n / 2; kx < n/2; kx++ {
			want := cmplx.Exp(complex(0, -2*math.Pi*float64(kx*x0+ky*y0)/float64(n)))
			got := data[(ky+n/2)*n+kx+n/2]
			assert.InDelta(t, real(want), real(got), 1e-12)
			assert.InDelta(t, imag(want), imag(got), 1e-12)
		}
	}
}

func TestRoundTripScalesByNSquared(t *testing.T) {
	n := 12
	data := make([]complex128, n*n)
	orig := make([]complex128, n*n)
	for i := range data {
		data[i] = complex(math.Sin(float64(i)), math.Cos(float64(3*i)))
		orig[i] = data[i]
	}

	Forward2D(data, n)
	Inverse2D(data, n)

	scale := float64(n * n)
	for i := range data {
		assert.InDelta(t, real(orig[i]), real(data[i])/scale, 1e-10)
		assert.InDelta(t, imag(orig[i]), imag(data[i])/scale, 1e-10)
	}
}

func TestShift2DIsInvolution(t *testing.T) {
	n := 6
	data := make([]complex128, n*n)
	for i := range data {
		data[i] = complex(float64(i), 0)
	}

	Shift2D(data, n)
	assert.Equal(t, complex(float64((n/2)*n+n/2), 0), data[0])
	Shift2D(data, n)
	for i := range data {
		assert.Equal(t, complex(float64(i), 0), data[i])
	}
}
