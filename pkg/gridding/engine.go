// Package gridding converts between visibilities and images with FFTs.
//
// Invert accumulates weighted visibilities onto a padded uv grid, either on the
// nearest cell or convolved with a w-projection kernel, and transforms to the
// image plane. Predict is its adjoint: it transforms a model image to the uv
// grid and interpolates the grid at each sample with the conjugate kernel.
//
// Images returned by Invert are not normalised; divide by the returned sum of
// weights to obtain flux units.
package gridding

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/fft"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/kernels"
)

// correctionFloor is the smallest grid-correction value that is divided out;
// pixels where the taper falls below it are set to zero.
const correctionFloor = 1e-6

// Options controls one invert or predict call
type Options struct {
	// Padding enlarges the uv grid relative to the image; the image is the
	// central part of the transformed grid.
	Padding int

	// Kernels selects convolutional gridding with w-projection kernels.
	// Nil means nearest-cell gridding with no w correction.
	Kernels *kernels.Bank
}

// Stats counts what happened to the samples of one call
type Stats struct {
	// Gridded is the number of (row, chan, pol) samples placed on or read from the grid
	Gridded int

	// Dropped is the number of samples whose footprint fell outside the grid.
	// Dropped samples contribute nothing to invert and predict to zero.
	Dropped int

	// Clamped is the number of gridded samples whose w lies beyond the
	// kernel bank and were convolved with its outermost plane.
	Clamped int
}

// Add accumulates o into s
func (s *Stats) Add(o Stats) {
	s.Gridded += o.Gridded
	s.Dropped += o.Dropped
	s.Clamped += o.Clamped
}

// ValidateGeometry checks that an image can be used as a gridding target
func ValidateGeometry(g models.Geometry, padding int) error {
	if g.NX != g.NY || g.NX <= 0 || g.NX%2 != 0 {
		return errdefs.Configurationf("image must be square with an even size, got %dx%d", g.NX, g.NY)
	}
	if g.Cellsize <= 0 || math.IsNaN(g.Cellsize) {
		return errdefs.Configurationf("cellsize must be positive, got %g", g.Cellsize)
	}
	if padding < 1 {
		return errdefs.Configurationf("padding must be at least 1, got %d", padding)
	}
	return nil
}

func prepare(g models.Geometry, vis *models.Visibility, opts Options) (int, error) {
	if err := ValidateGeometry(g, opts.Padding); err != nil {
		return 0, err
	}
	if err := models.CheckShapes(g, vis); err != nil {
		return 0, err
	}
	n := g.NX * opts.Padding
	if b := opts.Kernels; b != nil {
		if b.GridSize() != n || b.Cellsize() != g.Cellsize {
			return 0, errdefs.Configurationf("kernel bank built for a %d-cell grid at cellsize %g, got %d cells at %g",
				b.GridSize(), b.Cellsize(), n, g.Cellsize)
		}
	}
	return n, nil
}

// gridder holds the per-call state shared by invert and predict
type gridder struct {
	n     int
	scale float64
	bank  *kernels.Bank
}

// locate returns the nearest grid cell of (u, v) and the fractional offsets
// of the sample from it, in cells.
func (gr *gridder) locate(u, v float64) (iu, iv int, fu, fv float64) {
	gu := u*gr.scale + float64(gr.n/2)
	gv := v*gr.scale + float64(gr.n/2)
	iu = int(math.Round(gu))
	iv = int(math.Round(gv))
	return iu, iv, gu - float64(iu), gv - float64(iv)
}

// fits reports whether the footprint centred on cell (iu, iv) lies inside the grid
func (gr *gridder) fits(iu, iv int) bool {
	s := 0
	if gr.bank != nil {
		s = gr.bank.Support()
	}
	return iu-s >= 0 && iv-s >= 0 && iu+s < gr.n && iv+s < gr.n
}

// InvertComplex grids the visibilities and transforms them to a complex image
// of geometry g:
//
//	I(l,m) = Σ wt·V·exp(+2πi(ul + vm [+ w(n-1)]))
//
// where the w-term is present only when a kernel bank is given.
// The returned weights are the sums of wt over the gridded samples.
func InvertComplex(vis *models.Visibility, g models.Geometry, opts Options) (*models.ComplexImage, models.SumWeights, Stats, error) {
	n, err := prepare(g, vis, opts)
	if err != nil {
		return nil, nil, Stats{}, err
	}

	gr := &gridder{n: n, scale: float64(n) * g.Cellsize, bank: opts.Kernels}
	out := models.NewComplexImage(g)
	sumwt := models.NewSumWeights(g.NChan, g.NPol)
	var stats Stats

	var correction []float64
	if gr.bank != nil {
		correction = gr.bank.Correction()
	}

	grid := make([]complex128, n*n)
	for ch := 0; ch < g.NChan; ch++ {
		for pol := 0; pol < g.NPol; pol++ {
			clear(grid)
			st, wt := gr.gridPlane(grid, vis, ch, pol)
			stats.Add(st)
			sumwt[ch*g.NPol+pol] = wt

			fft.Inverse2D(grid, n)
			extract(out.Plane(ch, pol), grid, n, g.NX, correction)
		}
	}

	if stats.Dropped > 0 {
		log.Debug().
			Int("dropped", stats.Dropped).
			Int("gridded", stats.Gridded).
			Int("grid", n).
			Msg("visibility samples fell outside the uv grid")
	}
	if stats.Clamped > 0 {
		log.Debug().
			Int("clamped", stats.Clamped).
			Int("gridded", stats.Gridded).
			Int("planes", len(gr.bank.WValues())).
			Msg("visibility samples lie beyond the w range of the kernel bank")
	}
	return out, sumwt, stats, nil
}

// Invert is InvertComplex followed by taking the real part
func Invert(vis *models.Visibility, g models.Geometry, opts Options) (*models.Image, models.SumWeights, Stats, error) {
	img, sumwt, stats, err := InvertComplex(vis, g, opts)
	if err != nil {
		return nil, nil, stats, err
	}
	return img.Real(), sumwt, stats, nil
}

// gridPlane accumulates one channel/polarisation onto grid
func (gr *gridder) gridPlane(grid []complex128, vis *models.Visibility, ch, pol int) (Stats, float64) {
	var stats Stats
	sumwt := 0.0
	for row := 0; row < vis.NRows(); row++ {
		idx := vis.Index(row, ch, pol)
		wt := vis.Weight[idx]
		if wt == 0 {
			continue
		}
		u, v, w := vis.UVWLambda(row, ch)
		iu, iv, fu, fv := gr.locate(u, v)
		if !gr.fits(iu, iv) {
			stats.Dropped++
			continue
		}
		val := complex(wt, 0) * vis.Vis[idx]
		if gr.bank == nil {
			grid[iv*gr.n+iu] += val
		} else {
			b := gr.bank
			if !b.Covers(w) {
				stats.Clamped++
			}
			k := b.Kernel(b.PlaneIndex(w), b.Quantize(fu), b.Quantize(fv))
			s, size := b.Support(), b.Size()
			for jy := -s; jy <= s; jy++ {
				cells := grid[(iv+jy)*gr.n+iu-s : (iv+jy)*gr.n+iu+s+1]
				taps := k[(jy+s)*size : (jy+s+1)*size]
				for j := range cells {
					cells[j] += val * taps[j]
				}
			}
		}
		stats.Gridded++
		sumwt += wt
	}
	return stats, sumwt
}

// extract copies the central npix×npix part of an n×n grid into dst,
// dividing by the grid correction when one is given.
func extract(dst, grid []complex128, n, npix int, correction []float64) {
	off := (n - npix) / 2
	for y := 0; y < npix; y++ {
		for x := 0; x < npix; x++ {
			v := grid[(y+off)*n+x+off]
			if correction != nil {
				c := correction[y+off] * correction[x+off]
				if c < correctionFloor {
					v = 0
				} else {
					v /= complex(c, 0)
				}
			}
			dst[y*npix+x] = v
		}
	}
}

// PredictComplex transforms the model to the uv grid and degrids it at every
// row of the template, returning a new visibility set:
//
//	V = Σ I(l,m)·exp(-2πi(ul + vm [+ w(n-1)]))
//
// Samples outside the grid predict zero.
func PredictComplex(model *models.ComplexImage, template *models.Visibility, opts Options) (*models.Visibility, Stats, error) {
	g := model.Geometry
	n, err := prepare(g, template, opts)
	if err != nil {
		return nil, Stats{}, err
	}

	gr := &gridder{n: n, scale: float64(n) * g.Cellsize, bank: opts.Kernels}
	out := template.Zeroed()
	var stats Stats

	var correction []float64
	if gr.bank != nil {
		correction = gr.bank.Correction()
	}

	grid := make([]complex128, n*n)
	for ch := 0; ch < g.NChan; ch++ {
		for pol := 0; pol < g.NPol; pol++ {
			clear(grid)
			insert(grid, model.Plane(ch, pol), n, g.NX, correction)
			fft.Forward2D(grid, n)
			stats.Add(gr.degridPlane(grid, out, ch, pol))
		}
	}

	if stats.Dropped > 0 {
		log.Debug().
			Int("dropped", stats.Dropped).
			Int("predicted", stats.Gridded).
			Int("grid", n).
			Msg("visibility samples fell outside the uv grid")
	}
	if stats.Clamped > 0 {
		log.Debug().
			Int("clamped", stats.Clamped).
			Int("predicted", stats.Gridded).
			Int("planes", len(gr.bank.WValues())).
			Msg("visibility samples lie beyond the w range of the kernel bank")
	}
	return out, stats, nil
}

// Predict is PredictComplex for a real model image
func Predict(model *models.Image, template *models.Visibility, opts Options) (*models.Visibility, Stats, error) {
	return PredictComplex(model.ToComplex(), template, opts)
}

// insert places an npix×npix plane in the centre of an n×n grid, dividing
// by the grid correction when one is given.
func insert(grid, plane []complex128, n, npix int, correction []float64) {
	off := (n - npix) / 2
	for y := 0; y < npix; y++ {
		for x := 0; x < npix; x++ {
			v := plane[y*npix+x]
			if correction != nil {
				c := correction[y+off] * correction[x+off]
				if c < correctionFloor {
					v = 0
				} else {
					v /= complex(c, 0)
				}
			}
			grid[(y+off)*n+x+off] = v
		}
	}
}

// degridPlane interpolates one channel/polarisation of the grid at each row
func (gr *gridder) degridPlane(grid []complex128, vis *models.Visibility, ch, pol int) Stats {
	var stats Stats
	for row := 0; row < vis.NRows(); row++ {
		idx := vis.Index(row, ch, pol)
		u, v, w := vis.UVWLambda(row, ch)
		iu, iv, fu, fv := gr.locate(u, v)
		if !gr.fits(iu, iv) {
			stats.Dropped++
			continue
		}
		if gr.bank == nil {
			vis.Vis[idx] = grid[iv*gr.n+iu]
		} else {
			b := gr.bank
			if !b.Covers(w) {
				stats.Clamped++
			}
			k := b.Kernel(b.PlaneIndex(w), b.Quantize(fu), b.Quantize(fv))
			s, size := b.Support(), b.Size()
			var sum complex128
			for jy := -s; jy <= s; jy++ {
				cells := grid[(iv+jy)*gr.n+iu-s : (iv+jy)*gr.n+iu+s+1]
				taps := k[(jy+s)*size : (jy+s+1)*size]
				for j := range cells {
					t := taps[j]
					// conjugate kernel: D(f-j) = conj(C(j-f))
					sum += cells[j] * complex(real(t), -imag(t))
				}
			}
			vis.Vis[idx] = sum
		}
		stats.Gridded++
	}
	return stats
}
