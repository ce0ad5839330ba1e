package partition

import (
	"image"
	"math"
	"slices"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
)

// Timeslice groups rows by time. Within a slice the baselines are close to
// coplanar, so w is fitted by a plane and the remaining distortion is a
// coordinate shift that the combiner undoes by resampling.
type Timeslice struct {
	// Slices is the number of time groups; ignored when Auto is set
	Slices int

	// Auto derives the slice count from the field of view and the
	// earth-rotation rate, see AutoTimeslices.
	Auto bool

	// Padding enlarges the partial image templates so shifted emission
	// stays inside them.
	Padding int
}

func (Timeslice) Kind() Kind { return KindTimeslice }
func (Timeslice) sealed()    {}

func (s Timeslice) Validate(g models.Geometry) error {
	if !s.Auto && s.Slices < 1 {
		return errdefs.Configurationf("timeslice count must be positive, got %d", s.Slices)
	}
	return checkPadding(s.Padding)
}

func (s Timeslice) Partitions(vis *models.Visibility, g models.Geometry) ([]Partition, error) {
	if err := s.Validate(g); err != nil {
		return nil, err
	}

	times := distinctTimes(vis)
	nslices := s.Slices
	if s.Auto {
		nslices = AutoTimeslices(vis, g)
	}
	if nslices > len(times) {
		log.Debug().Int("requested", nslices).Int("times", len(times)).Msg("fewer distinct times than slices, clamping")
		nslices = max(len(times), 1)
	}

	groups := runs(allRows(len(times)), nslices)
	template := g.Padded(s.Padding)
	out := make([]Partition, 0, nslices)
	for i, group := range groups {
		d := Descriptor{
			Index:  i,
			Kind:   KindTimeslice,
			Region: image.Rect(0, 0, g.NX, g.NY),
		}
		if len(group) > 0 {
			d.TStart = times[group[0]]
			d.TEnd = times[group[len(group)-1]]
			for row, t := range vis.Time {
				if t >= d.TStart && t <= d.TEnd {
					d.Rows = append(d.Rows, row)
				}
			}
		}
		sub := vis.Select(d.Rows)
		d.PlaneA, d.PlaneB = FitWPlane(sub)
		for j, uvw := range sub.UVW {
			sub.UVW[j][2] = uvw[2] - d.PlaneA*uvw[0] - d.PlaneB*uvw[1]
		}
		out = append(out, Partition{Descriptor: d, Vis: sub, Template: template, Padding: 1})
	}
	return out, nil
}

func distinctTimes(vis *models.Visibility) []float64 {
	times := slices.Clone(vis.Time)
	slices.Sort(times)
	return slices.Compact(times)
}

// FitWPlane returns the least-squares coefficients of w = a·u + b·v over
// all rows. Degenerate sets (fewer than two rows, or collinear baselines)
// fit the plane w = 0.
func FitWPlane(vis *models.Visibility) (a, b float64) {
	n := vis.NRows()
	if n < 2 {
		return 0, 0
	}
	design := mat.NewDense(n, 2, nil)
	w := mat.NewVecDense(n, nil)
	for i, uvw := range vis.UVW {
		design.Set(i, 0, uvw[0])
		design.Set(i, 1, uvw[1])
		w.SetVec(i, uvw[2])
	}

	var coef mat.VecDense
	if err := coef.SolveVec(design, w); err != nil {
		log.Debug().Err(err).Int("rows", n).Msg("w plane fit is degenerate, using w = 0")
		return 0, 0
	}
	a, b = coef.AtVec(0), coef.AtVec(1)
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 0, 0
	}
	return a, b
}

// AutoTimeslices estimates how many time slices keep the snapshot
// distortion below a pixel: the sky rotates by ωE·span over the
// observation, which moves a source at the edge of the field by
// ωE·span·θ/2 relative to the longest baseline's fringe spacing.
// The result lies in [1, number of distinct times].
func AutoTimeslices(vis *models.Visibility, g models.Geometry) int {
	times := distinctTimes(vis)
	if len(times) < 2 {
		return 1
	}
	span := times[len(times)-1] - times[0]
	bmax := MaxBaseline(vis)
	halfField := float64(g.NX) * g.Cellsize / 2
	n := int(math.Ceil(models.EarthRotationRate * span * bmax * halfField))
	return min(max(n, 1), len(times))
}

// MaxBaseline is the longest projected baseline sqrt(u²+v²) in wavelengths
// at the highest frequency.
func MaxBaseline(vis *models.Visibility) float64 {
	fmax := slices.Max(vis.Frequency)
	longest := 0.0
	for _, uvw := range vis.UVW {
		longest = math.Max(longest, math.Hypot(uvw[0], uvw[1]))
	}
	return longest * fmax / models.SpeedOfLight
}
