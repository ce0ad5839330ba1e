// Package kernels builds the oversampled, support-limited convolution
// kernels used by w-projection gridding.
package kernels

import (
	"math"
	"math/cmplx"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/fft"
)

// Params selects the w-planes and sampling of a kernel bank
type Params struct {
	// Planes is the number of discrete w-planes
	Planes int

	// WStep is the w spacing between planes in wavelengths
	WStep float64

	// Oversampling is the number of kernel samples per uv cell
	Oversampling int

	// Support is the kernel half-width in uv cells; kernels have 2*Support+1 taps per axis
	Support int

	// AntiAliasing composes the w-term with the spheroidal anti-aliasing function
	AntiAliasing bool
}

// Bank is an immutable set of oversampled convolution kernels, one per w-plane,
// built for one grid size and cellsize. It is safe for concurrent use.
type Bank struct {
	params     Params
	gridSize   int
	cellsize   float64
	wValues    []float64
	size       int
	qmax       int
	kernels    [][]complex128
	correction []float64
}

// Validate checks the parameters against a padded grid of gridSize cells
func (p Params) Validate(gridSize int) error {
	if p.Planes <= 0 {
		return errdefs.Configurationf("kernel bank needs a positive number of w-planes, got %d", p.Planes)
	}
	if p.Oversampling <= 0 {
		return errdefs.Configurationf("kernel oversampling must be positive, got %d", p.Oversampling)
	}
	if p.Support < 0 {
		return errdefs.Configurationf("kernel support must not be negative, got %d", p.Support)
	}
	if p.WStep < 0 || math.IsNaN(p.WStep) {
		return errdefs.Configurationf("w step must not be negative, got %g", p.WStep)
	}
	if p.Planes > 1 && p.WStep == 0 {
		return errdefs.Configurationf("%d w-planes need a positive w step", p.Planes)
	}
	if 2*p.Support+1 >= gridSize {
		return errdefs.Configurationf("kernel support %d (%d taps) does not fit in the %d-cell padded grid",
			p.Support, 2*p.Support+1, gridSize)
	}
	return nil
}

// NewBank builds the kernel bank for images of geometry g gridded with the
// given padding factor. The w-planes are centred on zero:
// w_p = (p - (Planes-1)/2) * WStep.
//
// Each kernel is the Fourier transform of taper(l,m)·exp(2πi w (n-1)),
// sampled across the padded field of view, so that gridding with it and
// dividing the image by the taper applies the w-term for that plane.
func NewBank(g models.Geometry, padding int, p Params) (*Bank, error) {
	if g.NX != g.NY || g.NX <= 0 || g.NX%2 != 0 {
		return nil, errdefs.Configurationf("kernel bank needs a square, even image, got %dx%d", g.NX, g.NY)
	}
	if g.Cellsize <= 0 {
		return nil, errdefs.Configurationf("cellsize must be positive, got %g", g.Cellsize)
	}
	if padding < 1 {
		return nil, errdefs.Configurationf("padding must be at least 1, got %d", padding)
	}
	gridSize := g.NX * padding
	if err := p.Validate(gridSize); err != nil {
		return nil, err
	}

	b := &Bank{
		params:     p,
		gridSize:   gridSize,
		cellsize:   g.Cellsize,
		wValues:    make([]float64, p.Planes),
		size:       2*p.Support + 1,
		qmax:       (p.Oversampling + 1) / 2,
		kernels:    make([][]complex128, p.Planes),
		correction: taperAxis(gridSize, p.AntiAliasing),
	}
	for i := range b.wValues {
		b.wValues[i] = (float64(i) - float64(p.Planes-1)/2) * p.WStep
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := range b.kernels {
		wg.Add(1)
		go func(plane int) {
			defer wg.Done()
			b.kernels[plane] = b.buildPlane(b.wValues[plane])
		}(i)
	}
	wg.Wait()

	log.Debug().
		Int("planes", p.Planes).
		Float64("w_step", p.WStep).
		Int("oversampling", p.Oversampling).
		Int("support", p.Support).
		Int("grid", gridSize).
		Dur("elapsed", time.Since(start)).
		Msg("built convolution kernel bank")
	return b, nil
}

// buildPlane computes all sub-cell offset kernels for one w value.
func (b *Bank) buildPlane(w float64) []complex128 {
	over := b.params.Oversampling
	// Coarse image sampling of the padded field: m pixels of the same total extent,
	// zero-padded by the oversampling factor so the transform lands on a 1/over cell lattice.
	m := 4 * b.size
	n := m * over
	coarseCell := float64(b.gridSize) * b.cellsize / float64(m)
	taper := taperAxis(m, b.params.AntiAliasing)

	screen := make([]complex128, n*n)
	for y := 0; y < m; y++ {
		mm := float64(y-m/2) * coarseCell
		for x := 0; x < m; x++ {
			ll := float64(x-m/2) * coarseCell
			v := complex(taper[x]*taper[y], 0)
			if w != 0 {
				if nm1, ok := models.NMinusOne(ll, mm); ok {
					v *= cmplx.Exp(complex(0, 2*math.Pi*w*nm1))
				}
			}
			screen[(y-m/2+n/2)*n+(x-m/2+n/2)] = v
		}
	}
	fft.Forward2D(screen, n)

	norm := complex(1/float64(m*m), 0)
	noff := 2*b.qmax + 1
	taps := b.size * b.size
	out := make([]complex128, noff*noff*taps)
	s := b.params.Support
	for qy := -b.qmax; qy <= b.qmax; qy++ {
		for qx := -b.qmax; qx <= b.qmax; qx++ {
			k := out[b.offsetIndex(qx, qy)*taps:]
			for jy := -s; jy <= s; jy++ {
				ky := n/2 + jy*over - qy
				for jx := -s; jx <= s; jx++ {
					kx := n/2 + jx*over - qx
					k[(jy+s)*b.size+(jx+s)] = screen[ky*n+kx] * norm
				}
			}
		}
	}
	return out
}

func (b *Bank) offsetIndex(qx, qy int) int {
	noff := 2*b.qmax + 1
	return (qy+b.qmax)*noff + (qx + b.qmax)
}

// Params returns the parameters the bank was built with
func (b *Bank) Params() Params { return b.params }

// GridSize is the padded grid size, in cells, the bank was built for
func (b *Bank) GridSize() int { return b.gridSize }

// Cellsize is the image cellsize, in radians, the bank was built for
func (b *Bank) Cellsize() float64 { return b.cellsize }

// Support is the kernel half-width in cells
func (b *Bank) Support() int { return b.params.Support }

// Size is the number of kernel taps per axis
func (b *Bank) Size() int { return b.size }

// WValues returns the w value of every plane in wavelengths
func (b *Bank) WValues() []float64 {
	out := make([]float64, len(b.wValues))
	copy(out, b.wValues)
	return out
}

// PlaneIndex returns the plane nearest to w, clamped to the covered range
func (b *Bank) PlaneIndex(w float64) int {
	if b.params.Planes == 1 {
		return 0
	}
	p := b.nearestPlane(w)
	if p < 0 {
		return 0
	}
	if p >= b.params.Planes {
		return b.params.Planes - 1
	}
	return p
}

// Covers reports whether w is within half a step of a plane of the bank.
// A single-plane bank carries no w-term and covers every w.
func (b *Bank) Covers(w float64) bool {
	if b.params.Planes == 1 {
		return true
	}
	p := b.nearestPlane(w)
	return p >= 0 && p < b.params.Planes
}

func (b *Bank) nearestPlane(w float64) int {
	return int(math.Round(w/b.params.WStep + float64(b.params.Planes-1)/2))
}

// Quantize converts a fractional cell offset in [-0.5, 0.5] to the nearest
// oversampled offset index used by Kernel.
func (b *Bank) Quantize(frac float64) int {
	q := int(math.Round(frac * float64(b.params.Oversampling)))
	if q > b.qmax {
		return b.qmax
	}
	if q < -b.qmax {
		return -b.qmax
	}
	return q
}

// Kernel returns the Size×Size taps of a plane for quantized sub-cell offsets
// (qx, qy). Tap (jy, jx) holds C(j - q/oversampling), the contribution of a
// sample to the cell j away from its nearest cell. The slice must not be modified.
func (b *Bank) Kernel(plane, qx, qy int) []complex128 {
	taps := b.size * b.size
	off := b.offsetIndex(qx, qy) * taps
	return b.kernels[plane][off : off+taps]
}

// Correction returns the separable grid-correction function along one axis
// of the padded grid. Gridded images are divided by it (outer product over
// both axes); models are divided by it before degridding.
func (b *Bank) Correction() []float64 {
	out := make([]float64, len(b.correction))
	copy(out, b.correction)
	return out
}
