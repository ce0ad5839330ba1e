// Package combine merges per-partition results. In the invert direction it
// corrects and assembles partial images and their weights; in the predict
// direction it prepares each partition's model and gathers the predicted
// visibilities back into one set.
package combine

import (
	"image"
	"math"
	"math/cmplx"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/partition"
)

// Partial is the un-normalised result of inverting one partition
type Partial struct {
	partition.Descriptor

	// Image has the geometry of the partition template
	Image *models.ComplexImage

	SumWt models.SumWeights
}

// Region is a facet of the final image with the weight it was made with
type Region struct {
	Rect  image.Rectangle
	SumWt models.SumWeights
}

// Result is a combined, not yet normalised, dirty image
type Result struct {
	Image *models.Image

	// SumWt is the total weight per channel/polarisation. For facets every
	// facet integrates all rows and SumWt is the first facet's.
	SumWt models.SumWeights

	// Regions holds the per-facet weights; it is nil for other strategies
	Regions []Region
}

// Invert assembles the partials of one decomposition into an image of
// geometry g. Partials must be in partition order.
func Invert(kind partition.Kind, g models.Geometry, partials []Partial) (*Result, error) {
	if len(partials) == 0 {
		return nil, errdefs.Configurationf("no partial images to combine")
	}
	for i, p := range partials {
		if p.Kind != kind {
			return nil, errdefs.Configurationf("partial %d is a %s partition, combining %s", i, p.Kind, kind)
		}
		if p.Image.NChan != g.NChan || p.Image.NPol != g.NPol || len(p.SumWt) != g.NChan*g.NPol {
			return nil, errdefs.ShapeMismatchf("partial %d has %d channels and %d polarisations, image has %d and %d",
				i, p.Image.NChan, p.Image.NPol, g.NChan, g.NPol)
		}
	}

	switch kind {
	case partition.KindPlain:
		if !partials[0].Image.SameShape(g) {
			return nil, errdefs.ShapeMismatchf("partial image is %dx%d, template is %dx%d",
				partials[0].Image.NX, partials[0].Image.NY, g.NX, g.NY)
		}
		out := partials[0].Image.Real()
		out.Geometry = g
		return &Result{Image: out, SumWt: partials[0].SumWt.Copy()}, nil
	case partition.KindFacets:
		return facets(g, partials)
	case partition.KindWStack:
		return wstack(g, partials), nil
	case partition.KindTimeslice:
		return timeslice(g, partials), nil
	default:
		return nil, errdefs.Configurationf("cannot combine %s partitions", kind)
	}
}

func facets(g models.Geometry, partials []Partial) (*Result, error) {
	out := models.NewImage(g)
	res := &Result{Image: out, SumWt: partials[0].SumWt.Copy()}
	bounds := image.Rect(0, 0, g.NX, g.NY)
	for i, p := range partials {
		r := p.Region
		if !r.In(bounds) || r.Dx() != p.Image.NX || r.Dy() != p.Image.NY {
			return nil, errdefs.ShapeMismatchf("facet %d of %dx%d pixels does not fit region %v", i, p.Image.NX, p.Image.NY, r)
		}
		for ch := 0; ch < g.NChan; ch++ {
			for pol := 0; pol < g.NPol; pol++ {
				src := p.Image.Plane(ch, pol)
				dst := out.Plane(ch, pol)
				for y := 0; y < r.Dy(); y++ {
					row := dst[(r.Min.Y+y)*g.NX+r.Min.X:]
					for x := 0; x < r.Dx(); x++ {
						row[x] = real(src[y*r.Dx()+x])
					}
				}
			}
		}
		res.Regions = append(res.Regions, Region{Rect: r, SumWt: p.SumWt.Copy()})
	}
	return res, nil
}

// nMinusOne evaluates n-1 at every pixel of g; directions off the sky get
// ok=false.
func nMinusOne(g models.Geometry) (n1 []float64, ok []bool) {
	n1 = make([]float64, g.PlaneSize())
	ok = make([]bool, g.PlaneSize())
	for y := 0; y < g.NY; y++ {
		m := g.M(float64(y))
		for x := 0; x < g.NX; x++ {
			n1[y*g.NX+x], ok[y*g.NX+x] = models.NMinusOne(g.L(float64(x)), m)
		}
	}
	return n1, ok
}

// wScreen returns exp(sign·2πi·w·(n-1)) over a plane, zero off the sky
func wScreen(w float64, n1 []float64, ok []bool, sign float64) []complex128 {
	out := make([]complex128, len(n1))
	for i := range n1 {
		if ok[i] {
			out[i] = cmplx.Exp(complex(0, sign*2*math.Pi*w*n1[i]))
		}
	}
	return out
}

// wLambda converts a representative w in metres to wavelengths
func wLambda(wrep, frequency float64) float64 {
	return wrep * frequency / models.SpeedOfLight
}

func wstack(g models.Geometry, partials []Partial) *Result {
	out := models.NewImage(g)
	sumwt := models.NewSumWeights(g.NChan, g.NPol)
	n1, ok := nMinusOne(g)
	for _, p := range partials {
		for ch := 0; ch < g.NChan; ch++ {
			screen := wScreen(wLambda(p.WRep, g.Frequency[ch]), n1, ok, 1)
			for pol := 0; pol < g.NPol; pol++ {
				src := p.Image.Plane(ch, pol)
				dst := out.Plane(ch, pol)
				for i := range dst {
					dst[i] += real(src[i] * screen[i])
				}
			}
		}
		sumwt.Add(p.SumWt)
	}
	return &Result{Image: out, SumWt: sumwt}
}

// shifted returns, for every pixel of g, the fractional pixel of the padded
// template t at which a snapshot with w-plane (a, b) images it:
// (l + a(n-1), m + b(n-1)).
func shifted(g, t models.Geometry, a, b float64, n1 []float64, ok []bool) (xs, ys []float64) {
	xs = make([]float64, g.PlaneSize())
	ys = make([]float64, g.PlaneSize())
	offX, offY := t.RefX-g.RefX, t.RefY-g.RefY
	for y := 0; y < g.NY; y++ {
		for x := 0; x < g.NX; x++ {
			i := y*g.NX + x
			if !ok[i] {
				xs[i], ys[i] = math.NaN(), math.NaN()
				continue
			}
			xs[i] = float64(x) + offX + a*n1[i]/g.Cellsize
			ys[i] = float64(y) + offY + b*n1[i]/g.Cellsize
		}
	}
	return xs, ys
}

func timeslice(g models.Geometry, partials []Partial) *Result {
	out := models.NewImage(g)
	sumwt := models.NewSumWeights(g.NChan, g.NPol)
	n1, ok := nMinusOne(g)
	for _, p := range partials {
		t := p.Image.Geometry
		xs, ys := shifted(g, t, p.PlaneA, p.PlaneB, n1, ok)
		for ch := 0; ch < g.NChan; ch++ {
			for pol := 0; pol < g.NPol; pol++ {
				src := p.Image.Plane(ch, pol)
				dst := out.Plane(ch, pol)
				for i := range dst {
					dst[i] += real(gather(src, t.NX, t.NY, xs[i], ys[i]))
				}
			}
		}
		sumwt.Add(p.SumWt)
	}
	return &Result{Image: out, SumWt: sumwt}
}

// Normalise returns r's image divided, per channel and polarisation, by its
// sum of weights. Facets are divided by their own region's weights. Planes
// with zero weight are left at zero.
func Normalise(r *Result) *models.Image {
	out := r.Image.Copy()
	g := out.Geometry
	divide := func(plane []float64, rect image.Rectangle, wt float64) {
		scale := 0.0
		if wt > 0 {
			scale = 1 / wt
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			row := plane[y*g.NX : (y+1)*g.NX]
			for x := rect.Min.X; x < rect.Max.X; x++ {
				row[x] *= scale
			}
		}
	}
	for ch := 0; ch < g.NChan; ch++ {
		for pol := 0; pol < g.NPol; pol++ {
			k := ch*g.NPol + pol
			plane := out.Plane(ch, pol)
			if r.Regions == nil {
				divide(plane, image.Rect(0, 0, g.NX, g.NY), r.SumWt[k])
				continue
			}
			for _, reg := range r.Regions {
				divide(plane, reg.Rect, reg.SumWt[k])
			}
		}
	}
	return out
}
