package combine

import (
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/partition"
)

// Model returns the image that partition p degrids when predicting from
// model: the facet's pixels, the model with the slice's w screen applied,
// or the model moved to where the snapshot sees it.
func Model(p partition.Partition, model *models.Image) (*models.ComplexImage, error) {
	g := model.Geometry
	switch p.Kind {
	case partition.KindPlain:
		return model.ToComplex(), nil

	case partition.KindFacets:
		r := p.Region
		if r.Max.X > g.NX || r.Max.Y > g.NY || r.Dx() != p.Template.NX || r.Dy() != p.Template.NY {
			return nil, errdefs.ShapeMismatchf("facet region %v does not fit a %dx%d model", r, g.NX, g.NY)
		}
		out := models.NewComplexImage(p.Template)
		for ch := 0; ch < g.NChan; ch++ {
			for pol := 0; pol < g.NPol; pol++ {
				src := model.Plane(ch, pol)
				dst := out.Plane(ch, pol)
				for y := 0; y < r.Dy(); y++ {
					for x := 0; x < r.Dx(); x++ {
						dst[y*r.Dx()+x] = complex(src[(r.Min.Y+y)*g.NX+r.Min.X+x], 0)
					}
				}
			}
		}
		return out, nil

	case partition.KindWStack:
		out := models.NewComplexImage(g)
		n1, ok := nMinusOne(g)
		for ch := 0; ch < g.NChan; ch++ {
			screen := wScreen(wLambda(p.WRep, g.Frequency[ch]), n1, ok, -1)
			for pol := 0; pol < g.NPol; pol++ {
				src := model.Plane(ch, pol)
				dst := out.Plane(ch, pol)
				for i, v := range src {
					dst[i] = complex(v, 0) * screen[i]
				}
			}
		}
		return out, nil

	case partition.KindTimeslice:
		t := p.Template
		out := models.NewComplexImage(t)
		n1, ok := nMinusOne(g)
		xs, ys := shifted(g, t, p.PlaneA, p.PlaneB, n1, ok)
		for ch := 0; ch < g.NChan; ch++ {
			for pol := 0; pol < g.NPol; pol++ {
				src := model.Plane(ch, pol)
				dst := out.Plane(ch, pol)
				for i, v := range src {
					if v != 0 {
						splat(dst, t.NX, t.NY, xs[i], ys[i], complex(v, 0))
					}
				}
			}
		}
		return out, nil

	default:
		return nil, errdefs.Configurationf("cannot prepare a model for %s partitions", p.Kind)
	}
}

// Predict gathers the visibilities predicted for each partition into one
// set shaped like template. predicted[i] must belong to parts[i].
func Predict(template *models.Visibility, parts []partition.Partition, predicted []*models.Visibility) (*models.Visibility, error) {
	if len(parts) != len(predicted) {
		return nil, errdefs.Configurationf("%d partitions but %d predicted visibility sets", len(parts), len(predicted))
	}
	out := template.Zeroed()
	stride := out.NChan() * out.NPol()
	for i, p := range parts {
		vis := predicted[i]
		if vis.NRows() != len(p.Rows) || vis.NChan()*vis.NPol() != stride {
			return nil, errdefs.ShapeMismatchf("partition %d predicted %d rows, expected %d", i, vis.NRows(), len(p.Rows))
		}
		if p.Kind == partition.KindFacets {
			vis = partition.PhaseRotate(vis, p.FacetL, p.FacetM, p.FacetN1, true)
		}
		for j, row := range p.Rows {
			dst := out.Vis[row*stride : (row+1)*stride]
			src := vis.Vis[j*stride : (j+1)*stride]
			for k := range dst {
				dst[k] += src[k]
			}
		}
	}
	return out, nil
}
