package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
)

func testVisibility(t *testing.T) *Visibility {
	uvw := [][3]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	vis := []complex128{1, 2, 3}
	v, err := NewVisibility(uvw, []float64{0, 10, 20}, []int{0, 0, 1}, []int{1, 2, 2}, vis, nil,
		[]float64{1e8}, Direction{}, StokesI)
	require.NoError(t, err)
	return v
}

func TestNewVisibilityRejectsRaggedColumns(t *testing.T) {
	_, err := NewVisibility([][3]float64{{0, 0, 0}}, []float64{0, 1}, []int{0}, []int{1}, nil, nil,
		[]float64{1e8}, Direction{}, StokesI)
	assert.ErrorIs(t, err, errdefs.ErrShapeMismatch)

	_, err = NewVisibility([][3]float64{{0, 0, 0}}, []float64{0}, []int{0}, []int{1}, make([]complex128, 4), nil,
		[]float64{1e8}, Direction{}, StokesI)
	assert.ErrorIs(t, err, errdefs.ErrShapeMismatch)
}

func TestVisibilitySelectCopies(t *testing.T) {
	v := testVisibility(t)

	sub := v.Select([]int{2, 0})
	require.Equal(t, 2, sub.NRows())
	assert.Equal(t, [3]float64{7, 8, 9}, sub.UVW[0])
	assert.Equal(t, complex128(3), sub.Vis[0])
	assert.Equal(t, 20.0, sub.Time[0])

	sub.Vis[0] = 42
	sub.UVW[0][2] = 0
	assert.Equal(t, complex128(3), v.Vis[2], "select must not alias the source")
	assert.Equal(t, 9.0, v.UVW[2][2])
	assert.Equal(t, SumWeights{3}, v.SumWeight())
}

func TestUVWLambda(t *testing.T) {
	v := testVisibility(t)
	u, vv, w := v.UVWLambda(1, 0)
	scale := 1e8 / SpeedOfLight
	assert.InDelta(t, 4*scale, u, 1e-12)
	assert.InDelta(t, 5*scale, vv, 1e-12)
	assert.InDelta(t, 6*scale, w, 1e-12)
}

func TestCheckShapes(t *testing.T) {
	v := testVisibility(t)
	g := NewGeometry(64, 0.001, []float64{1e8}, StokesI, Direction{})
	assert.NoError(t, CheckShapes(g, v))

	g4 := NewGeometry(64, 0.001, []float64{1e8}, StokesIQUV, Direction{})
	assert.ErrorIs(t, CheckShapes(g4, v), errdefs.ErrShapeMismatch)

	g2 := NewGeometry(64, 0.001, []float64{1e8, 1.1e8}, StokesI, Direction{})
	assert.ErrorIs(t, CheckShapes(g2, v), errdefs.ErrShapeMismatch)
}

func TestGeometryPadded(t *testing.T) {
	g := NewGeometry(64, 0.002, []float64{1e8}, StokesI, Direction{})
	p := g.Padded(2)

	assert.Equal(t, 128, p.NX)
	// the same sky position keeps its direction cosine
	assert.InDelta(t, g.L(10), p.L(10+32), 1e-15)
	l, m := p.Offset()
	assert.Zero(t, l)
	assert.Zero(t, m)
}

func TestNMinusOne(t *testing.T) {
	v, ok := NMinusOne(0.3, 0.4)
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(1-0.25)-1, v, 1e-15)

	_, ok = NMinusOne(0.8, 0.8)
	assert.False(t, ok)
}
