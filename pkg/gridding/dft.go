package gridding

import (
	"math"
	"math/cmplx"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
)

// PredictComponents evaluates the measurement equation directly for a list of
// point components, including the full w-term:
//
//	V = Σ_c S_c·exp(-2πi(u l_c + v m_c + w(n_c-1)))
//
// It is exact and serves as the reference the FFT-based strategies approximate.
func PredictComponents(components []models.Component, template *models.Visibility) (*models.Visibility, error) {
	nchan, npol := template.NChan(), template.NPol()
	phase := make([]float64, len(components))
	for i, c := range components {
		if len(c.Flux) != nchan*npol {
			return nil, errdefs.ShapeMismatchf("component %q has %d flux values, visibility needs %d",
				c.Name, len(c.Flux), nchan*npol)
		}
		nm1, ok := models.NMinusOne(c.L, c.M)
		if !ok {
			return nil, errdefs.Configurationf("component %q at (%g, %g) lies outside the celestial sphere", c.Name, c.L, c.M)
		}
		phase[i] = nm1
	}

	out := template.Zeroed()
	for row := 0; row < out.NRows(); row++ {
		for ch := 0; ch < nchan; ch++ {
			u, v, w := out.UVWLambda(row, ch)
			for i, c := range components {
				phasor := cmplx.Exp(complex(0, -2*math.Pi*(u*c.L+v*c.M+w*phase[i])))
				for pol := 0; pol < npol; pol++ {
					out.Vis[out.Index(row, ch, pol)] += complex(c.Flux[ch*npol+pol], 0) * phasor
				}
			}
		}
	}
	return out, nil
}
