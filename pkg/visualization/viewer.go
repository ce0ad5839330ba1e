// Package visualization renders planes of image cubes as greyscale
// previews.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
)

// Viewer extracts and saves planes of an image cube. Pixel values are
// mapped linearly from [Low, High] onto the grey range and clipped.
type Viewer struct {
	img *models.Image

	// Low and High bound the displayed range. When both are zero each
	// plane is stretched over its own minimum and maximum.
	Low, High float64
}

// NewViewer creates a viewer for img
func NewViewer(img *models.Image) *Viewer {
	return &Viewer{img: img}
}

func (v *Viewer) checkPlane(ch, pol int) error {
	if ch < 0 || ch >= v.img.NChan {
		return fmt.Errorf("channel %d outside 0..%d", ch, v.img.NChan-1)
	}
	if pol < 0 || pol >= v.img.NPol {
		return fmt.Errorf("polarisation %d outside 0..%d", pol, v.img.NPol-1)
	}
	return nil
}

func (v *Viewer) stretch(plane []float64) (lo, hi float64) {
	if v.Low != 0 || v.High != 0 {
		return v.Low, v.High
	}
	return floats.Min(plane), floats.Max(plane)
}

// ExtractPlane renders one channel/polarisation plane. Row 0 of the
// returned image is the top row, the highest m, so north is up.
func (v *Viewer) ExtractPlane(ch, pol int) (image.Image, error) {
	if err := v.checkPlane(ch, pol); err != nil {
		return nil, err
	}
	plane := v.img.Plane(ch, pol)
	lo, hi := v.stretch(plane)
	scale := 0.0
	if hi > lo {
		scale = 1 / (hi - lo)
	}

	nx, ny := v.img.NX, v.img.NY
	out := image.NewGray16(image.Rect(0, 0, nx, ny))
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			value := (plane[y*nx+x] - lo) * scale
			grey := uint16(math.Max(0, math.Min(65535, value*65535)))
			out.SetGray16(x, ny-1-y, color.Gray16{Y: grey})
		}
	}
	return out, nil
}

// ExtractRegion copies the pixels of rect from one plane, row by row
func (v *Viewer) ExtractRegion(ch, pol int, rect image.Rectangle) ([]float64, error) {
	if err := v.checkPlane(ch, pol); err != nil {
		return nil, err
	}
	if rect.Empty() {
		return nil, fmt.Errorf("region %v is empty", rect)
	}
	if !rect.In(image.Rect(0, 0, v.img.NX, v.img.NY)) {
		return nil, fmt.Errorf("region %v extends beyond the %dx%d image", rect, v.img.NX, v.img.NY)
	}

	plane := v.img.Plane(ch, pol)
	region := make([]float64, 0, rect.Dx()*rect.Dy())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		region = append(region, plane[y*v.img.NX+rect.Min.X:y*v.img.NX+rect.Max.X]...)
	}
	return region, nil
}

// SavePlane writes a rendered plane as PNG or, for .jpg and .jpeg names, JPEG
func (v *Viewer) SavePlane(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		return png.Encode(file, img)
	}
}

// SaveCube renders every plane into outputDir as plane_c<chan>_p<pol>.png
// and returns the file names in channel-major order.
func (v *Viewer) SaveCube(outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var names []string
	for ch := 0; ch < v.img.NChan; ch++ {
		for pol := 0; pol < v.img.NPol; pol++ {
			img, err := v.ExtractPlane(ch, pol)
			if err != nil {
				return nil, err
			}
			filename := filepath.Join(outputDir, fmt.Sprintf("plane_c%03d_p%d.png", ch, pol))
			if err := v.SavePlane(img, filename); err != nil {
				return nil, err
			}
			names = append(names, filename)
		}
	}
	return names, nil
}
