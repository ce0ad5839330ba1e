package models

import (
	"fmt"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
)

const (
	// SpeedOfLight in m/s, used to convert baselines to wavelengths
	SpeedOfLight = 299792458.0

	// EarthRotationRate is the sidereal rotation rate in rad/s
	EarthRotationRate = 7.2921150e-5
)

// PolarisationFrame identifies the meaning of the polarisation axis
type PolarisationFrame int

const (
	StokesI PolarisationFrame = iota
	StokesIQUV
	Linear
	Circular
)

// NPol returns the number of polarisations in the frame
func (p PolarisationFrame) NPol() int {
	if p == StokesI {
		return 1
	}
	return 4
}

func (p PolarisationFrame) String() string {
	switch p {
	case StokesI:
		return "stokesI"
	case StokesIQUV:
		return "stokesIQUV"
	case Linear:
		return "linear"
	case Circular:
		return "circular"
	default:
		return fmt.Sprintf("PolarisationFrame(%d)", int(p))
	}
}

// Visibility is an ordered set of visibility samples with one set of
// frequencies and one phase centre.
//
// Per-row columns (UVW, Time, Antenna1, Antenna2) are co-indexed; Vis and
// Weight are laid out [row][chan][pol]. A Visibility is treated as immutable:
// the methods that change content return copies.
type Visibility struct {
	// UVW holds the baseline coordinates in metres
	UVW [][3]float64

	// Time holds the sample time in seconds
	Time []float64

	// Antenna1 and Antenna2 identify the baseline of each row
	Antenna1 []int
	Antenna2 []int

	// Vis holds the complex visibility per row/chan/pol
	Vis []complex128

	// Weight holds the non-negative weight per row/chan/pol
	Weight []float64

	// Frequency holds the channel frequencies in Hz
	Frequency []float64

	// PhaseCentre is the phase-tracking centre of the observation
	PhaseCentre Direction

	// Polarisation is the polarisation frame of the pol axis
	Polarisation PolarisationFrame
}

// NewVisibility builds a visibility set and checks that its columns are co-indexed.
// vis and weight may be nil, in which case they are zero and one respectively.
func NewVisibility(uvw [][3]float64, time []float64, ant1, ant2 []int, vis []complex128, weight []float64,
	frequency []float64, phaseCentre Direction, pol PolarisationFrame) (*Visibility, error) {
	nrows := len(uvw)
	if len(time) != nrows || len(ant1) != nrows || len(ant2) != nrows {
		return nil, errdefs.ShapeMismatchf("per-row columns have lengths uvw=%d time=%d antenna1=%d antenna2=%d",
			nrows, len(time), len(ant1), len(ant2))
	}
	if len(frequency) == 0 {
		return nil, errdefs.ShapeMismatchf("visibility needs at least one channel")
	}
	nsamples := nrows * len(frequency) * pol.NPol()
	if vis == nil {
		vis = make([]complex128, nsamples)
	}
	if weight == nil {
		weight = make([]float64, nsamples)
		for i := range weight {
			weight[i] = 1
		}
	}
	if len(vis) != nsamples || len(weight) != nsamples {
		return nil, errdefs.ShapeMismatchf("expected %d samples, got vis=%d weight=%d", nsamples, len(vis), len(weight))
	}
	for i, w := range weight {
		if w < 0 {
			return nil, errdefs.ShapeMismatchf("negative weight %g at sample %d", w, i)
		}
	}

	freq := make([]float64, len(frequency))
	copy(freq, frequency)
	return &Visibility{
		UVW:          uvw,
		Time:         time,
		Antenna1:     ant1,
		Antenna2:     ant2,
		Vis:          vis,
		Weight:       weight,
		Frequency:    freq,
		PhaseCentre:  phaseCentre,
		Polarisation: pol,
	}, nil
}

// NRows is the number of rows
func (v *Visibility) NRows() int { return len(v.UVW) }

// NChan is the number of channels
func (v *Visibility) NChan() int { return len(v.Frequency) }

// NPol is the number of polarisations
func (v *Visibility) NPol() int { return v.Polarisation.NPol() }

// Index returns the position of (row, chan, pol) in Vis and Weight
func (v *Visibility) Index(row, ch, pol int) int {
	return (row*v.NChan()+ch)*v.NPol() + pol
}

// UVWLambda returns the baseline coordinates of a row in wavelengths for a channel
func (v *Visibility) UVWLambda(row, ch int) (u, vv, w float64) {
	scale := v.Frequency[ch] / SpeedOfLight
	uvw := v.UVW[row]
	return uvw[0] * scale, uvw[1] * scale, uvw[2] * scale
}

// Select returns a copy holding only the given rows, in the given order
func (v *Visibility) Select(rows []int) *Visibility {
	nchan, npol := v.NChan(), v.NPol()
	stride := nchan * npol
	out := &Visibility{
		UVW:          make([][3]float64, len(rows)),
		Time:         make([]float64, len(rows)),
		Antenna1:     make([]int, len(rows)),
		Antenna2:     make([]int, len(rows)),
		Vis:          make([]complex128, len(rows)*stride),
		Weight:       make([]float64, len(rows)*stride),
		Frequency:    v.Frequency,
		PhaseCentre:  v.PhaseCentre,
		Polarisation: v.Polarisation,
	}
	for i, r := range rows {
		out.UVW[i] = v.UVW[r]
		out.Time[i] = v.Time[r]
		out.Antenna1[i] = v.Antenna1[r]
		out.Antenna2[i] = v.Antenna2[r]
		copy(out.Vis[i*stride:(i+1)*stride], v.Vis[r*stride:(r+1)*stride])
		copy(out.Weight[i*stride:(i+1)*stride], v.Weight[r*stride:(r+1)*stride])
	}
	return out
}

// Copy returns a deep copy of all rows
func (v *Visibility) Copy() *Visibility {
	rows := make([]int, v.NRows())
	for i := range rows {
		rows[i] = i
	}
	return v.Select(rows)
}

// Zeroed returns a copy with every visibility value set to zero,
// used as the template that predict fills in.
func (v *Visibility) Zeroed() *Visibility {
	out := v.Copy()
	for i := range out.Vis {
		out.Vis[i] = 0
	}
	return out
}

// WithVis returns a copy whose visibility values are replaced by values
func (v *Visibility) WithVis(values []complex128) (*Visibility, error) {
	if len(values) != len(v.Vis) {
		return nil, errdefs.ShapeMismatchf("expected %d visibility values, got %d", len(v.Vis), len(values))
	}
	out := v.Copy()
	copy(out.Vis, values)
	return out, nil
}

// SumWeight returns the total weight per channel/polarisation
func (v *Visibility) SumWeight() SumWeights {
	nchan, npol := v.NChan(), v.NPol()
	out := NewSumWeights(nchan, npol)
	for row := 0; row < v.NRows(); row++ {
		for ch := 0; ch < nchan; ch++ {
			for pol := 0; pol < npol; pol++ {
				out[ch*npol+pol] += v.Weight[v.Index(row, ch, pol)]
			}
		}
	}
	return out
}

// Component is a point source at direction cosines (L, M) relative to the
// phase centre, with a flux per channel/polarisation indexed chan*npol+pol.
type Component struct {
	Name string
	L, M float64
	Flux []float64
}

// CheckShapes verifies that an image geometry and a visibility set agree on
// channels and polarisations.
func CheckShapes(g Geometry, v *Visibility) error {
	if g.Polarisation != v.Polarisation || g.NPol != v.NPol() {
		return errdefs.ShapeMismatchf("image polarisation %s (%d) differs from visibility %s (%d)",
			g.Polarisation, g.NPol, v.Polarisation, v.NPol())
	}
	if g.NChan != v.NChan() {
		return errdefs.ShapeMismatchf("image has %d channels, visibility has %d", g.NChan, v.NChan())
	}
	return nil
}
