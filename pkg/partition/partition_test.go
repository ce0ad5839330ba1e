package partition

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/simulate"
)

// rowsVisibility builds a visibility set with one row per uvw and the given times
func rowsVisibility(t *testing.T, uvw [][3]float64, times []float64) *models.Visibility {
	t.Helper()
	n := len(uvw)
	vis := make([]complex128, n)
	for i := range vis {
		vis[i] = complex(float64(i+1), 0)
	}
	v, err := models.NewVisibility(uvw, times, make([]int, n), make([]int, n), vis, nil,
		[]float64{models.SpeedOfLight}, models.Direction{}, models.StokesI)
	require.NoError(t, err)
	return v
}

func testGeometry(npixel int) models.Geometry {
	return models.NewGeometry(npixel, 0.001, []float64{1e8}, models.StokesI, models.Direction{})
}

func TestParseKind(t *testing.T) {
	for _, tc := range []struct {
		name string
		want Kind
	}{
		{"2d", KindPlain},
		{"facets", KindFacets},
		{"WStack", KindWStack},
		{" timeslice ", KindTimeslice},
	} {
		k, err := ParseKind(tc.name)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, k)
	}
	assert.Equal(t, "wstack", KindWStack.String())

	_, err := ParseKind("wprojection")
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)
}

func TestNonPositiveParametersAreRejected(t *testing.T) {
	g := testGeometry(64)
	for _, s := range []Strategy{
		Plain{Padding: 0},
		Facets{Count: 0, Padding: 1},
		Facets{Count: 2, Padding: -1},
		WStack{Slices: 0, Padding: 1},
		Timeslice{Slices: -2, Padding: 1},
		Timeslice{Auto: true, Padding: 0},
	} {
		assert.ErrorIs(t, s.Validate(g), errdefs.ErrConfiguration, "%#v", s)
	}
	assert.NoError(t, Timeslice{Auto: true, Padding: 2}.Validate(g))
}

func TestFacetCountMustDivideImage(t *testing.T) {
	vis := rowsVisibility(t, [][3]float64{{1, 1, 1}}, []float64{0})
	_, err := Facets{Count: 3, Padding: 1}.Partitions(vis, testGeometry(512))
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)

	// 6 = 2×3, but three-pixel facets have no centre cell
	_, err = Facets{Count: 2, Padding: 1}.Partitions(vis, testGeometry(6))
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)

	_, err = Facets{Count: 3, Padding: 1}.Partitions(vis, testGeometry(6))
	assert.NoError(t, err)
}

func TestFacetPartitions(t *testing.T) {
	vis := rowsVisibility(t, [][3]float64{{10, 20, 5}, {-30, 4, -2}}, []float64{0, 0})
	g := testGeometry(512)

	parts, err := Facets{Count: 4, Padding: 2}.Partitions(vis, g)
	require.NoError(t, err)
	require.Len(t, parts, 16)

	p := parts[5]
	assert.Equal(t, 5, p.Index)
	assert.Equal(t, image.Rect(128, 128, 256, 256), p.Region)
	assert.Equal(t, 128, p.Template.NX)
	assert.Equal(t, 2, p.Padding)
	assert.Equal(t, []int{0, 1}, p.Rows)

	// facet pixel (0, 0) is full-image pixel (128, 128)
	assert.InDelta(t, g.L(128), p.Template.L(0), 1e-15)
	assert.InDelta(t, g.M(128), p.Template.M(0), 1e-15)
	assert.InDelta(t, g.L(192), p.FacetL, 1e-15)

	// the rotated copy keeps the source untouched
	assert.Equal(t, complex128(1), vis.Vis[0])
	want := complex(1, 0) * cmplxPhase(2*math.Pi*(10*p.FacetL+20*p.FacetM+5*p.FacetN1))
	assert.InDelta(t, real(want), real(p.Vis.Vis[0]), 1e-12)
	assert.InDelta(t, imag(want), imag(p.Vis.Vis[0]), 1e-12)
}

func cmplxPhase(phi float64) complex128 {
	return complex(math.Cos(phi), math.Sin(phi))
}

func TestSingleFacetIsUnrotated(t *testing.T) {
	vis := rowsVisibility(t, [][3]float64{{10, 20, 5}, {-30, 4, -2}}, []float64{0, 0})
	parts, err := Facets{Count: 1, Padding: 1}.Partitions(vis, testGeometry(64))
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, vis.Vis, parts[0].Vis.Vis)
	assert.Equal(t, testGeometry(64), parts[0].Template)
}

func TestPhaseRotateInverse(t *testing.T) {
	vis := rowsVisibility(t, [][3]float64{{10, 20, 5}, {-30, 4, -2}, {7, -7, 1}}, []float64{0, 0, 0})
	n1, _ := models.NMinusOne(0.1, -0.05)
	back := PhaseRotate(PhaseRotate(vis, 0.1, -0.05, n1, false), 0.1, -0.05, n1, true)
	for i := range vis.Vis {
		assert.InDelta(t, real(vis.Vis[i]), real(back.Vis[i]), 1e-12)
		assert.InDelta(t, imag(vis.Vis[i]), imag(back.Vis[i]), 1e-12)
	}
}

func TestWStackBinsBySortedW(t *testing.T) {
	ws := []float64{5, -1, 3, 9, 0, 2, 7, -4, 1, 6}
	uvw := make([][3]float64, len(ws))
	for i, w := range ws {
		uvw[i] = [3]float64{float64(i), 0, w}
	}
	vis := rowsVisibility(t, uvw, make([]float64, len(ws)))

	parts, err := WStack{Slices: 3, Padding: 1}.Partitions(vis, testGeometry(64))
	require.NoError(t, err)
	require.Len(t, parts, 3)

	// sorted w: -4 -1 0 | 1 2 3 | 5 6 7 9
	assert.Equal(t, []int{7, 1, 4}, parts[0].Rows)
	assert.Equal(t, []int{8, 5, 2}, parts[1].Rows)
	assert.Equal(t, []int{0, 9, 6, 3}, parts[2].Rows)

	last := parts[2]
	assert.Equal(t, 5.0, last.WMin)
	assert.Equal(t, 9.0, last.WMax)
	assert.InDelta(t, 6.75, last.WRep, 1e-12)
	assert.InDelta(t, 5-6.75, last.Vis.UVW[0][2], 1e-12)
	assert.Equal(t, complex128(1), last.Vis.Vis[0], "row 0 carries its own sample")

	// the source set is not modified
	assert.Equal(t, 5.0, vis.UVW[0][2])

	total := 0
	for _, p := range parts {
		total += p.Vis.NRows()
	}
	assert.Equal(t, len(ws), total)
}

func TestWStackClampsSlicesToRows(t *testing.T) {
	vis := rowsVisibility(t, [][3]float64{{0, 0, 1}, {0, 0, 2}}, []float64{0, 0})
	parts, err := WStack{Slices: 8, Padding: 1}.Partitions(vis, testGeometry(64))
	require.NoError(t, err)
	assert.Len(t, parts, 2)
}

func TestTimesliceGroupsDistinctTimes(t *testing.T) {
	var uvw [][3]float64
	var times []float64
	for ti := 0; ti < 5; ti++ {
		for b := 0; b < 3; b++ {
			u, v := float64(10*b+ti), float64(5*b-ti*ti)
			uvw = append(uvw, [3]float64{u, v, 0.3*u - 0.2*v})
			times = append(times, float64(100*ti))
		}
	}
	vis := rowsVisibility(t, uvw, times)
	g := testGeometry(64)

	parts, err := Timeslice{Slices: 2, Padding: 2}.Partitions(vis, g)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, parts[0].Rows)
	assert.Equal(t, 0.0, parts[0].TStart)
	assert.Equal(t, 100.0, parts[0].TEnd)
	assert.Len(t, parts[1].Rows, 9, "the last slice absorbs the remainder")
	assert.Equal(t, 400.0, parts[1].TEnd)

	for _, p := range parts {
		assert.InDelta(t, 0.3, p.PlaneA, 1e-9)
		assert.InDelta(t, -0.2, p.PlaneB, 1e-9)
		for _, uvw := range p.Vis.UVW {
			assert.InDelta(t, 0, uvw[2], 1e-9)
		}
		assert.Equal(t, 128, p.Template.NX)
		assert.Equal(t, 1, p.Padding)
		assert.InDelta(t, g.L(0), p.Template.L(32), 1e-15)
	}

	parts, err = Timeslice{Slices: 12, Padding: 1}.Partitions(vis, g)
	require.NoError(t, err)
	assert.Len(t, parts, 5, "slice count is clamped to the distinct times")
}

func TestFitWPlaneDegenerate(t *testing.T) {
	one := rowsVisibility(t, [][3]float64{{1, 2, 3}}, []float64{0})
	a, b := FitWPlane(one)
	assert.Zero(t, a)
	assert.Zero(t, b)

	origin := rowsVisibility(t, [][3]float64{{0, 0, 3}, {0, 0, 1}, {0, 0, 2}}, []float64{0, 0, 0})
	a, b = FitWPlane(origin)
	assert.Zero(t, a)
	assert.Zero(t, b)
}

func simulated(t *testing.T, ntimes int, span float64) *models.Visibility {
	t.Helper()
	cfg := simulate.RandomConfiguration("P", 12, 200, -0.47, 3)
	vis, err := simulate.CreateVisibility(cfg, simulate.Observation{
		HourAngles:   simulate.HourAngles(ntimes, span),
		Frequency:    []float64{1e8},
		PhaseCentre:  models.Direction{Dec: -0.8},
		Polarisation: models.StokesI,
	})
	require.NoError(t, err)
	return vis
}

func TestAutoTimeslices(t *testing.T) {
	g := models.NewGeometry(256, 0.002, []float64{1e8}, models.StokesI, models.Direction{Dec: -0.8})

	vis := simulated(t, 32, 1.0)
	n := AutoTimeslices(vis, g)
	want := int(math.Ceil(1.0 * MaxBaseline(vis) * 0.256))
	assert.InDelta(t, float64(min(want, 32)), float64(n), 1)
	assert.LessOrEqual(t, n, 32)
	assert.GreaterOrEqual(t, n, 1)

	assert.Equal(t, 1, AutoTimeslices(simulated(t, 1, 0), g))

	parts, err := Timeslice{Auto: true, Padding: 1}.Partitions(vis, g)
	require.NoError(t, err)
	assert.Len(t, parts, n)
}

func TestAdvise(t *testing.T) {
	vis := simulated(t, 7, 0.5)
	g := models.NewGeometry(256, 0.002, []float64{1e8}, models.StokesI, models.Direction{Dec: -0.8})

	a := Advise(vis, g, 0.02)
	assert.InDelta(t, MaxBaseline(vis), a.MaxBaseline, 1e-12)
	assert.Greater(t, a.MaxW, 0.0)
	assert.InDelta(t, 1/(3*a.MaxBaseline), a.Cellsize, 1e-15)
	assert.Equal(t, 0, a.NPixels&(a.NPixels-1), "power of two")
	assert.GreaterOrEqual(t, float64(a.NPixels)*a.Cellsize, 0.512)
	assert.GreaterOrEqual(t, a.WStackSlices, 1)
	assert.Equal(t, a.WStackSlices, a.WProjectionPlanes)
	assert.GreaterOrEqual(t, a.WProjectionSupport, 3)
	assert.Equal(t, AutoTimeslices(vis, g), a.Timeslices)
}

func TestNewStrategy(t *testing.T) {
	s, err := New(KindTimeslice, Params{Slices: 4, AutoSlices: true, Padding: 2})
	require.NoError(t, err)
	assert.Equal(t, Timeslice{Slices: 4, Auto: true, Padding: 2}, s)

	s, err = New(KindFacets, Params{Facets: 4, Slices: 9, Padding: 1})
	require.NoError(t, err)
	assert.Equal(t, KindFacets, s.Kind())
	assert.Equal(t, Facets{Count: 4, Padding: 1}, s)

	_, err = New(Kind(42), Params{})
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)
}
