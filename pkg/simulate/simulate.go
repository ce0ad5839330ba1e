// Package simulate builds synthetic antenna configurations, visibility sets
// and point-source skies. It is driver and test glue: real observations come
// from external visibility construction.
package simulate

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
)

// Configuration is an array of antennas at local east/north/up positions
type Configuration struct {
	Name string

	// Names of the antennas
	Names []string

	// ENU holds east, north, up offsets in metres
	ENU [][3]float64

	// Latitude of the array in radians
	Latitude float64
}

// RandomConfiguration scatters nants antennas uniformly over a flat disc of
// the given radius in metres. The layout is fully determined by seed.
func RandomConfiguration(name string, nants int, radius, latitude float64, seed uint64) *Configuration {
	src := rand.NewSource(seed)
	area := distuv.Uniform{Min: 0, Max: 1, Src: src}
	angle := distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: src}

	cfg := &Configuration{
		Name:     name,
		Names:    make([]string, nants),
		ENU:      make([][3]float64, nants),
		Latitude: latitude,
	}
	for i := 0; i < nants; i++ {
		r := radius * math.Sqrt(area.Rand())
		theta := angle.Rand()
		cfg.Names[i] = fmt.Sprintf("%s%03d", name, i)
		cfg.ENU[i] = [3]float64{r * math.Cos(theta), r * math.Sin(theta), 0}
	}
	return cfg
}

// NBaselines is the number of distinct antenna pairs
func (c *Configuration) NBaselines() int {
	n := len(c.ENU)
	return n * (n - 1) / 2
}

// equatorial converts an ENU offset to the local equatorial frame (X towards
// the meridian on the equator, Z towards the pole).
func (c *Configuration) equatorial(enu [3]float64) [3]float64 {
	sl, cl := math.Sin(c.Latitude), math.Cos(c.Latitude)
	e, n, u := enu[0], enu[1], enu[2]
	return [3]float64{-sl*n + cl*u, e, cl*n + sl*u}
}

// Observation describes what to simulate
type Observation struct {
	// HourAngles of the phase centre at each time sample, in radians
	HourAngles []float64

	// Frequency of each channel in Hz
	Frequency []float64

	PhaseCentre  models.Direction
	Polarisation models.PolarisationFrame
}

// HourAngles returns n hour angles evenly spread over [-span/2, span/2]
func HourAngles(n int, span float64) []float64 {
	out := make([]float64, n)
	if n == 1 {
		return out
	}
	for i := range out {
		out[i] = -span/2 + span*float64(i)/float64(n-1)
	}
	return out
}

// UVW returns the baseline coordinates in metres for an equatorial baseline
// at hour angle ha and declination dec.
func UVW(b [3]float64, ha, dec float64) [3]float64 {
	sh, ch := math.Sin(ha), math.Cos(ha)
	sd, cd := math.Sin(dec), math.Cos(dec)
	x, y, z := b[0], b[1], b[2]
	return [3]float64{
		sh*x + ch*y,
		-sd*ch*x + sd*sh*y + cd*z,
		cd*ch*x - cd*sh*y + sd*z,
	}
}

// CreateVisibility simulates an empty visibility set with unit weights.
// Rows are ordered by time, then by antenna pair.
func CreateVisibility(cfg *Configuration, obs Observation) (*models.Visibility, error) {
	if len(cfg.ENU) < 2 {
		return nil, errdefs.Configurationf("configuration %q needs at least two antennas", cfg.Name)
	}
	if len(obs.HourAngles) == 0 {
		return nil, errdefs.Configurationf("observation needs at least one hour angle")
	}

	xyz := make([][3]float64, len(cfg.ENU))
	for i, enu := range cfg.ENU {
		xyz[i] = cfg.equatorial(enu)
	}

	nrows := len(obs.HourAngles) * cfg.NBaselines()
	uvw := make([][3]float64, 0, nrows)
	times := make([]float64, 0, nrows)
	ant1 := make([]int, 0, nrows)
	ant2 := make([]int, 0, nrows)
	for _, ha := range obs.HourAngles {
		for a1 := 0; a1 < len(xyz); a1++ {
			for a2 := a1 + 1; a2 < len(xyz); a2++ {
				b := [3]float64{xyz[a2][0] - xyz[a1][0], xyz[a2][1] - xyz[a1][1], xyz[a2][2] - xyz[a1][2]}
				uvw = append(uvw, UVW(b, ha, obs.PhaseCentre.Dec))
				times = append(times, ha/models.EarthRotationRate)
				ant1 = append(ant1, a1)
				ant2 = append(ant2, a2)
			}
		}
	}
	return models.NewVisibility(uvw, times, ant1, ant2, nil, nil, obs.Frequency, obs.PhaseCentre, obs.Polarisation)
}

// Source is a point component together with the pixel it was placed on
type Source struct {
	models.Component
	X, Y int
}

// PointSourceGrid places n×n equal point sources on a regular grid of pixels
// of g, one per cell of an n×n division of the image, offset from the cell
// centres so that none sits on a facet boundary or centre.
func PointSourceGrid(g models.Geometry, n int, flux float64) []Source {
	out := make([]Source, 0, n*n)
	step := g.NX / n
	shift := step / 8
	for iy := 0; iy < n; iy++ {
		for ix := 0; ix < n; ix++ {
			x := ix*step + step/2 + shift
			y := iy*step + step/2 + shift
			out = append(out, Source{
				Component: models.Component{
					Name: fmt.Sprintf("src_%d_%d", ix, iy),
					L:    g.L(float64(x)),
					M:    g.M(float64(y)),
					Flux: unpolarisedFlux(g, flux),
				},
				X: x,
				Y: y,
			})
		}
	}
	return out
}

// unpolarisedFlux returns a flux vector for an unpolarised source in every channel
func unpolarisedFlux(g models.Geometry, flux float64) []float64 {
	out := make([]float64, g.NChan*g.NPol)
	for ch := 0; ch < g.NChan; ch++ {
		out[ch*g.NPol] = flux
		if g.Polarisation == models.Linear || g.Polarisation == models.Circular {
			out[ch*g.NPol+3] = flux
		}
	}
	return out
}

// InsertComponents adds each component's flux to the pixel nearest its direction
func InsertComponents(img *models.Image, components []models.Component) error {
	for _, c := range components {
		if len(c.Flux) != img.NChan*img.NPol {
			return errdefs.ShapeMismatchf("component %q has %d flux values, image needs %d",
				c.Name, len(c.Flux), img.NChan*img.NPol)
		}
		fx, fy := img.PixelOf(c.L, c.M)
		x, y := int(math.Round(fx)), int(math.Round(fy))
		if x < 0 || y < 0 || x >= img.NX || y >= img.NY {
			return errdefs.Configurationf("component %q at pixel (%d, %d) is outside the image", c.Name, x, y)
		}
		for ch := 0; ch < img.NChan; ch++ {
			for pol := 0; pol < img.NPol; pol++ {
				img.Set(ch, pol, y, x, img.At(ch, pol, y, x)+c.Flux[ch*img.NPol+pol])
			}
		}
	}
	return nil
}

// Components strips the pixel positions from sources
func Components(sources []Source) []models.Component {
	return lo.Map(sources, func(s Source, _ int) models.Component { return s.Component })
}
