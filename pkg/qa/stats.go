// Package qa summarises and compares images and locates point sources in
// them.
package qa

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
)

// Summary holds the basic statistics of an image cube
type Summary struct {
	NChan, NPol, NY, NX int

	Max, Min, MaxAbs float64
	RMS, Sum         float64
	MedianAbs        float64
}

// Summarise computes the statistics of all pixels of img
func Summarise(img *models.Image) Summary {
	s := Summary{NChan: img.NChan, NPol: img.NPol, NY: img.NY, NX: img.NX}
	if len(img.Data) == 0 {
		return s
	}
	d := img.Data
	s.Max = floats.Max(d)
	s.Min = floats.Min(d)
	s.MaxAbs = math.Max(math.Abs(s.Max), math.Abs(s.Min))
	s.Sum = floats.Sum(d)
	s.RMS = math.Sqrt(floats.Dot(d, d) / float64(len(d)))

	abs := make([]float64, len(d))
	for i, v := range d {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)
	s.MedianAbs = stat.Quantile(0.5, stat.Empirical, abs, nil)
	return s
}

// Comparison measures how closely an image follows a reference
type Comparison struct {
	RMSE        float64
	Correlation float64
	SSIM        float64

	// PSNR is in decibels relative to the reference's peak absolute value
	PSNR float64
}

// Compare computes the difference metrics of img against ref over one
// plane each. Both planes must have the same length.
func Compare(ref, img []float64) Comparison {
	var c Comparison
	n := len(ref)
	if n == 0 || n != len(img) {
		return c
	}

	c.RMSE = floats.Distance(ref, img, 2) / math.Sqrt(float64(n))
	c.Correlation = stat.Correlation(ref, img, nil)

	peak := math.Max(math.Abs(floats.Max(ref)), math.Abs(floats.Min(ref)))
	switch {
	case c.RMSE == 0:
		c.PSNR = math.Inf(1)
	case peak > 0:
		c.PSNR = 20 * math.Log10(peak/c.RMSE)
	}

	// structural similarity with the dynamic range of the reference
	dynamic := floats.Max(ref) - floats.Min(ref)
	c1 := math.Pow(0.01*dynamic, 2)
	c2 := math.Pow(0.03*dynamic, 2)
	muX, muY := stat.Mean(ref, nil), stat.Mean(img, nil)
	num := (2*muX*muY + c1) * (2*stat.Covariance(ref, img, nil) + c2)
	den := (muX*muX + muY*muY + c1) * (stat.Variance(ref, nil) + stat.Variance(img, nil) + c2)
	if den > 0 {
		c.SSIM = num / den
	}
	return c
}
