package partition

import (
	"math"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
)

// beamOversampling is the number of pixels across the synthesised beam
// that a suggested cellsize gives.
const beamOversampling = 3.0

// Advice summarises the wide-field parameters of an observation imaged
// onto a given field of view.
type Advice struct {
	// MaxBaseline is the longest projected baseline in wavelengths
	MaxBaseline float64

	// MaxW is the largest |w| in wavelengths
	MaxW float64

	// SynthesisedBeam is the resolution 1/MaxBaseline in radians
	SynthesisedBeam float64

	// Cellsize samples the synthesised beam with three pixels
	Cellsize float64

	// NPixels is the power of two that covers the field at Cellsize
	NPixels int

	// WSampling is the w spacing at which the w-term phase error at the
	// edge of the field stays below the tolerance.
	WSampling float64

	// WStackSlices and WProjectionPlanes cover ±MaxW at WSampling
	WStackSlices      int
	WProjectionPlanes int

	// WProjectionSupport is a kernel half-width, in cells of an unpadded
	// grid, that holds the widest w-kernel.
	WProjectionSupport int

	// Timeslices is the AutoTimeslices estimate
	Timeslices int
}

// Advise derives imaging parameters for vis imaged onto the field of view
// of g. delA is the tolerated fractional amplitude loss from w-term phase
// errors at the edge of the field (0.02 is typical).
func Advise(vis *models.Visibility, g models.Geometry, delA float64) Advice {
	var a Advice
	a.MaxBaseline = MaxBaseline(vis)
	scale := 0.0
	for _, f := range vis.Frequency {
		scale = math.Max(scale, f/models.SpeedOfLight)
	}
	for _, uvw := range vis.UVW {
		a.MaxW = math.Max(a.MaxW, math.Abs(uvw[2])*scale)
	}

	field := float64(g.NX) * g.Cellsize
	if a.MaxBaseline > 0 {
		a.SynthesisedBeam = 1 / a.MaxBaseline
		a.Cellsize = a.SynthesisedBeam / beamOversampling
		a.NPixels = 1 << max(0, int(math.Ceil(math.Log2(field/a.Cellsize))))
	}

	a.WSampling = math.Sqrt(2*delA) / (math.Pi * field * field)
	a.WStackSlices = max(1, int(math.Ceil(2*a.MaxW/a.WSampling)))
	a.WProjectionPlanes = a.WStackSlices
	a.WProjectionSupport = int(math.Ceil(a.MaxW*field*field/2)) + 3
	a.Timeslices = AutoTimeslices(vis, g)
	return a
}
