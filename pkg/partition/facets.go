package partition

import (
	"image"
	"math"
	"math/cmplx"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
)

// Facets divides the image into Count×Count equal regions, each imaged with
// its own phase centre at the facet centre.
type Facets struct {
	Count   int
	Padding int
}

func (Facets) Kind() Kind { return KindFacets }
func (Facets) sealed()    {}

func (f Facets) Validate(g models.Geometry) error {
	if f.Count < 1 {
		return errdefs.Configurationf("facet count must be positive, got %d", f.Count)
	}
	if g.NX%f.Count != 0 || g.NY%f.Count != 0 {
		return errdefs.Configurationf("facet count %d does not divide the %dx%d image", f.Count, g.NX, g.NY)
	}
	if size := g.NX / f.Count; size%2 != 0 {
		return errdefs.Configurationf("facets of %d pixels must have an even size", size)
	}
	return checkPadding(f.Padding)
}

// Partitions returns Count² facets in row-major order. Every facet sees all
// rows, phase-rotated to the facet centre.
func (f Facets) Partitions(vis *models.Visibility, g models.Geometry) ([]Partition, error) {
	if err := f.Validate(g); err != nil {
		return nil, err
	}
	size := g.NX / f.Count
	rows := allRows(vis.NRows())
	out := make([]Partition, 0, f.Count*f.Count)
	for fy := 0; fy < f.Count; fy++ {
		for fx := 0; fx < f.Count; fx++ {
			t := FacetGeometry(g, f.Count, fx, fy)
			l, m := t.Offset()
			n1, ok := models.NMinusOne(l, m)
			if !ok {
				return nil, errdefs.Configurationf("facet (%d, %d) centre (%g, %g) lies outside the celestial sphere", fx, fy, l, m)
			}
			d := Descriptor{
				Index:   len(out),
				Kind:    KindFacets,
				Rows:    rows,
				Region:  image.Rect(fx*size, fy*size, (fx+1)*size, (fy+1)*size),
				FacetL:  l,
				FacetM:  m,
				FacetN1: n1,
			}
			out = append(out, Partition{
				Descriptor: d,
				Vis:        PhaseRotate(vis, l, m, n1, false),
				Template:   t,
				Padding:    f.Padding,
			})
		}
	}
	return out, nil
}

// FacetGeometry returns the geometry of facet (fx, fy) of an image split
// count×count ways. Pixel (x, y) of the facet is pixel
// (fx*size+x, fy*size+y) of g.
func FacetGeometry(g models.Geometry, count, fx, fy int) models.Geometry {
	size := g.NX / count
	t := g
	t.NX, t.NY = size, size
	t.RefX = g.RefX - float64(fx*size)
	t.RefY = g.RefY - float64(fy*size)
	return t
}

// PhaseRotate returns a copy of vis with every sample multiplied by
// exp(+2πi(ul + vm + w·n1)), which moves the phase-tracking centre to the
// direction (l, m) with n1 = n-1. With inverse set the conjugate is applied
// and the rotation is undone.
func PhaseRotate(vis *models.Visibility, l, m, n1 float64, inverse bool) *models.Visibility {
	out := vis.Copy()
	if l == 0 && m == 0 && n1 == 0 {
		return out
	}
	sign := 1.0
	if inverse {
		sign = -1
	}
	npol := out.NPol()
	for row := 0; row < out.NRows(); row++ {
		for ch := 0; ch < out.NChan(); ch++ {
			u, v, w := out.UVWLambda(row, ch)
			phasor := cmplx.Exp(complex(0, sign*2*math.Pi*(u*l+v*m+w*n1)))
			base := out.Index(row, ch, 0)
			for pol := 0; pol < npol; pol++ {
				out.Vis[base+pol] *= phasor
			}
		}
	}
	return out
}
