package gridding

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/kernels"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/simulate"
)

const frequency = 1e8

func simulatedVisibility(t *testing.T, radius float64) *models.Visibility {
	t.Helper()
	cfg := simulate.RandomConfiguration("T", 20, radius, -0.47, 42)
	vis, err := simulate.CreateVisibility(cfg, simulate.Observation{
		HourAngles:   simulate.HourAngles(5, 1.0),
		Frequency:    []float64{frequency},
		PhaseCentre:  models.Direction{Dec: -0.8},
		Polarisation: models.StokesI,
	})
	require.NoError(t, err)
	return vis
}

func pointModel(g models.Geometry, x, y int, flux float64) *models.Image {
	img := models.NewImage(g)
	img.Set(0, 0, y, x, flux)
	return img
}

func argmax(plane []float64) int {
	best := 0
	for i, v := range plane {
		if v > plane[best] {
			best = i
		}
	}
	return best
}

func TestRoundTripPointSource2D(t *testing.T) {
	vis := simulatedVisibility(t, 150)
	g := models.NewGeometry(128, 0.002, []float64{frequency}, models.StokesI, models.Direction{Dec: -0.8})
	model := pointModel(g, 80, 50, 3.0)

	predicted, stats, err := Predict(model, vis, Options{Padding: 1})
	require.NoError(t, err)
	assert.Zero(t, stats.Dropped)

	dirty, sumwt, stats, err := Invert(predicted, g, Options{Padding: 1})
	require.NoError(t, err)
	assert.Zero(t, stats.Dropped)
	assert.InDelta(t, float64(vis.NRows()), sumwt[0], 1e-9)

	plane := dirty.Plane(0, 0)
	peak := argmax(plane)
	assert.Equal(t, 50*128+80, peak, "peak should sit on the source pixel")
	assert.InEpsilon(t, 3.0, plane[peak]/sumwt[0], 0.05)
}

func TestRoundTripPointSourceWithKernels(t *testing.T) {
	vis := simulatedVisibility(t, 150)
	g := models.NewGeometry(64, 0.004, []float64{frequency}, models.StokesI, models.Direction{Dec: -0.8})
	bank, err := kernels.NewBank(g, 2, kernels.Params{Planes: 1, Oversampling: 8, Support: 3, AntiAliasing: true})
	require.NoError(t, err)
	opts := Options{Padding: 2, Kernels: bank}

	model := pointModel(g, 44, 22, 1.0)
	predicted, _, err := Predict(model, vis, opts)
	require.NoError(t, err)
	dirty, sumwt, _, err := Invert(predicted, g, opts)
	require.NoError(t, err)

	plane := dirty.Plane(0, 0)
	peak := argmax(plane)
	assert.Equal(t, 22*64+44, peak)
	assert.InEpsilon(t, 1.0, plane[peak]/sumwt[0], 0.05)
}

// TestWProjectionAppliesWTerm grids a single on-cell sample with a w on a
// kernel plane and compares the image with the exact measurement-equation
// response Re exp(2πi(ul + vm + w(n-1))).
func TestWProjectionAppliesWTerm(t *testing.T) {
	const npixel, cell, padding = 64, 0.004, 2
	g := models.NewGeometry(npixel, cell, []float64{models.SpeedOfLight}, models.StokesI, models.Direction{})
	bank, err := kernels.NewBank(g, padding, kernels.Params{Planes: 3, WStep: 10, Oversampling: 8, Support: 6, AntiAliasing: true})
	require.NoError(t, err)

	// at this frequency metres equal wavelengths; u and v sit exactly on grid cells
	du := 1 / (float64(npixel*padding) * cell)
	u, v, w := 5*du, -3*du, 10.0
	vis, err := models.NewVisibility([][3]float64{{u, v, w}}, []float64{0}, []int{0}, []int{1},
		[]complex128{1}, nil, []float64{models.SpeedOfLight}, models.Direction{}, models.StokesI)
	require.NoError(t, err)

	img, sumwt, stats, err := Invert(vis, g, Options{Padding: padding, Kernels: bank})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Gridded)
	assert.Equal(t, 1.0, sumwt[0])

	maxErr := 0.0
	for y := 0; y < npixel; y++ {
		for x := 0; x < npixel; x++ {
			l, m := g.L(float64(x)), g.M(float64(y))
			nm1, _ := models.NMinusOne(l, m)
			want := real(cmplx.Exp(complex(0, 2*math.Pi*(u*l+v*m+w*nm1))))
			maxErr = math.Max(maxErr, math.Abs(img.At(0, 0, y, x)-want))
		}
	}
	assert.Less(t, maxErr, 0.03)
}

func TestSamplesOutsideGridAreDropped(t *testing.T) {
	g := models.NewGeometry(32, 0.01, []float64{models.SpeedOfLight}, models.StokesI, models.Direction{})
	// the grid spans |u| < 1/(2*cellsize) = 50 wavelengths
	uvw := [][3]float64{{10, 5, 0}, {400, 0, 0}, {-3, 2, 0}}
	vis, err := models.NewVisibility(uvw, []float64{0, 0, 0}, []int{0, 0, 1}, []int{1, 2, 2},
		[]complex128{1, 1, 1}, []float64{1, 5, 2}, []float64{models.SpeedOfLight}, models.Direction{}, models.StokesI)
	require.NoError(t, err)

	_, sumwt, stats, err := Invert(vis, g, Options{Padding: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, 2, stats.Gridded)
	assert.Equal(t, 3.0, sumwt[0])

	predicted, pstats, err := Predict(models.NewImage(g), vis, Options{Padding: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, pstats.Dropped)
	assert.Equal(t, complex128(0), predicted.Vis[1])
}

func TestSamplesBeyondKernelWRangeAreCounted(t *testing.T) {
	g := models.NewGeometry(64, 0.004, []float64{models.SpeedOfLight}, models.StokesI, models.Direction{})
	bank, err := kernels.NewBank(g, 2, kernels.Params{Planes: 3, WStep: 10, Oversampling: 8, Support: 6, AntiAliasing: true})
	require.NoError(t, err)

	// the bank covers |w| < 15 wavelengths
	uvw := [][3]float64{{5, 3, 2}, {-4, 6, 14}, {8, -2, 40}, {3, 3, -90}}
	vis, err := models.NewVisibility(uvw, []float64{0, 0, 0, 0}, []int{0, 0, 1, 1}, []int{1, 2, 2, 3},
		[]complex128{1, 1, 1, 1}, nil, []float64{models.SpeedOfLight}, models.Direction{}, models.StokesI)
	require.NoError(t, err)

	_, _, stats, err := Invert(vis, g, Options{Padding: 2, Kernels: bank})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Gridded)
	assert.Equal(t, 2, stats.Clamped)
	assert.Zero(t, stats.Dropped)

	_, pstats, err := Predict(models.NewImage(g), vis, Options{Padding: 2, Kernels: bank})
	require.NoError(t, err)
	assert.Equal(t, 2, pstats.Clamped)

	_, _, plain, err := Invert(vis, g, Options{Padding: 2})
	require.NoError(t, err)
	assert.Zero(t, plain.Clamped)
}

func TestInvertRejectsMismatchedShapes(t *testing.T) {
	vis := simulatedVisibility(t, 100)

	quad := models.NewGeometry(32, 0.002, []float64{frequency}, models.StokesIQUV, models.Direction{})
	_, _, _, err := Invert(vis, quad, Options{Padding: 1})
	assert.ErrorIs(t, err, errdefs.ErrShapeMismatch)

	twoChan := models.NewGeometry(32, 0.002, []float64{frequency, frequency}, models.StokesI, models.Direction{})
	_, _, err = Predict(models.NewImage(twoChan), vis, Options{Padding: 1})
	assert.ErrorIs(t, err, errdefs.ErrShapeMismatch)
}

func TestInvertRejectsBadConfiguration(t *testing.T) {
	vis := simulatedVisibility(t, 100)
	g := models.NewGeometry(32, 0.002, []float64{frequency}, models.StokesI, models.Direction{})

	_, _, _, err := Invert(vis, g, Options{Padding: 0})
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)

	odd := models.NewGeometry(31, 0.002, []float64{frequency}, models.StokesI, models.Direction{})
	_, _, _, err = Invert(vis, odd, Options{Padding: 1})
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)

	bank, err := kernels.NewBank(g, 1, kernels.Params{Planes: 1, Oversampling: 4, Support: 3, AntiAliasing: true})
	require.NoError(t, err)
	_, _, _, err = Invert(vis, g, Options{Padding: 2, Kernels: bank})
	assert.ErrorIs(t, err, errdefs.ErrConfiguration, "bank built for another grid size")
}

func TestPredictComponents(t *testing.T) {
	vis := simulatedVisibility(t, 100)

	centre := models.Component{Name: "c", Flux: []float64{2.5}}
	out, err := PredictComponents([]models.Component{centre}, vis)
	require.NoError(t, err)
	for _, v := range out.Vis {
		assert.InDelta(t, 2.5, real(v), 1e-12)
		assert.InDelta(t, 0, imag(v), 1e-12)
	}

	off := models.Component{Name: "o", L: 0.05, M: -0.02, Flux: []float64{1}}
	out, err = PredictComponents([]models.Component{off}, vis)
	require.NoError(t, err)
	u, v, w := out.UVWLambda(7, 0)
	nm1, _ := models.NMinusOne(0.05, -0.02)
	want := cmplx.Exp(complex(0, -2*math.Pi*(u*0.05-v*0.02+w*nm1)))
	assert.InDelta(t, real(want), real(out.Vis[7]), 1e-12)
	assert.InDelta(t, imag(want), imag(out.Vis[7]), 1e-12)

	_, err = PredictComponents([]models.Component{{Name: "bad", Flux: []float64{1, 2}}}, vis)
	assert.ErrorIs(t, err, errdefs.ErrShapeMismatch)
}
