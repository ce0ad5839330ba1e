package models

import (
	"math"
)

// Direction is a sky direction in radians
type Direction struct {
	RA  float64
	Dec float64
}

// Geometry describes the pixel grid of an image and how pixels map to the sky.
// It is fixed when an image is created; only the sample values mutate.
type Geometry struct {
	// NChan, NPol, NY, NX are the image dimensions.
	// Data is laid out as [chan][pol][y][x].
	NChan, NPol, NY, NX int

	// Cellsize is the angular size of one pixel in radians
	Cellsize float64

	// RefX and RefY locate the pixel where the direction cosines l and m
	// are zero, i.e. the phase-tracking centre of the image.
	// For a facet this lies outside the facet's own pixel range.
	RefX, RefY float64

	// PhaseCentre is the phase-tracking centre direction
	PhaseCentre Direction

	// Frequency holds the centre frequency of each channel in Hz
	Frequency []float64

	// Polarisation is the polarisation frame of the pol axis
	Polarisation PolarisationFrame
}

// NewGeometry returns a square geometry with the phase centre on the middle pixel.
func NewGeometry(npixel int, cellsize float64, frequency []float64, pol PolarisationFrame, phaseCentre Direction) Geometry {
	freq := make([]float64, len(frequency))
	copy(freq, frequency)
	return Geometry{
		NChan:        len(freq),
		NPol:         pol.NPol(),
		NY:           npixel,
		NX:           npixel,
		Cellsize:     cellsize,
		RefX:         float64(npixel / 2),
		RefY:         float64(npixel / 2),
		PhaseCentre:  phaseCentre,
		Frequency:    freq,
		Polarisation: pol,
	}
}

// PlaneSize is the number of pixels in one channel/polarisation plane
func (g Geometry) PlaneSize() int { return g.NY * g.NX }

// Size is the total number of pixels
func (g Geometry) Size() int { return g.NChan * g.NPol * g.NY * g.NX }

// PlaneOffset returns the index of the first pixel of the (chan, pol) plane
func (g Geometry) PlaneOffset(ch, pol int) int {
	return (ch*g.NPol + pol) * g.PlaneSize()
}

// L returns the direction cosine of pixel column x
func (g Geometry) L(x float64) float64 { return (x - g.RefX) * g.Cellsize }

// M returns the direction cosine of pixel row y
func (g Geometry) M(y float64) float64 { return (y - g.RefY) * g.Cellsize }

// PixelOf returns the (fractional) pixel position of direction cosines (l, m)
func (g Geometry) PixelOf(l, m float64) (x, y float64) {
	return l/g.Cellsize + g.RefX, m/g.Cellsize + g.RefY
}

// Offset returns the direction cosines of the grid centre relative to the
// phase centre. It is zero for an ordinary image and non-zero for a facet.
func (g Geometry) Offset() (l, m float64) {
	return g.L(float64(g.NX / 2)), g.M(float64(g.NY / 2))
}

// Padded returns the geometry enlarged by an integer factor about its centre,
// keeping the cellsize and the sky position of every existing pixel.
func (g Geometry) Padded(factor int) Geometry {
	p := g
	p.NX = g.NX * factor
	p.NY = g.NY * factor
	p.RefX = g.RefX + float64((p.NX-g.NX)/2)
	p.RefY = g.RefY + float64((p.NY-g.NY)/2)
	return p
}

// SameShape reports whether two geometries have identical dimensions
func (g Geometry) SameShape(o Geometry) bool {
	return g.NChan == o.NChan && g.NPol == o.NPol && g.NY == o.NY && g.NX == o.NX
}

// NMinusOne returns n-1 = sqrt(1-l²-m²)-1 for direction cosines (l, m).
// ok is false outside the unit circle, where the direction does not exist.
func NMinusOne(l, m float64) (float64, bool) {
	r2 := l*l + m*m
	if r2 >= 1 {
		return 0, false
	}
	// 1-sqrt(1-r2) written to avoid cancellation near the phase centre
	return -r2 / (1 + math.Sqrt(1-r2)), true
}

// Image is a real-valued image cube
type Image struct {
	Geometry
	Data []float64
}

// NewImage allocates a zero image with the given geometry
func NewImage(g Geometry) *Image {
	return &Image{Geometry: g, Data: make([]float64, g.Size())}
}

// Plane returns the pixels of one channel/polarisation plane.
// The returned slice aliases the image data.
func (img *Image) Plane(ch, pol int) []float64 {
	off := img.PlaneOffset(ch, pol)
	return img.Data[off : off+img.PlaneSize()]
}

// At returns a single pixel value
func (img *Image) At(ch, pol, y, x int) float64 {
	return img.Data[img.PlaneOffset(ch, pol)+y*img.NX+x]
}

// Set assigns a single pixel value
func (img *Image) Set(ch, pol, y, x int, v float64) {
	img.Data[img.PlaneOffset(ch, pol)+y*img.NX+x] = v
}

// Copy returns a deep copy of the image
func (img *Image) Copy() *Image {
	out := NewImage(img.Geometry)
	copy(out.Data, img.Data)
	return out
}

// ComplexImage is an image cube with complex samples. It carries w-stacking
// partials before their image-plane correction and complex models for predict.
type ComplexImage struct {
	Geometry
	Data []complex128
}

// NewComplexImage allocates a zero complex image with the given geometry
func NewComplexImage(g Geometry) *ComplexImage {
	return &ComplexImage{Geometry: g, Data: make([]complex128, g.Size())}
}

// Plane returns the pixels of one channel/polarisation plane.
// The returned slice aliases the image data.
func (img *ComplexImage) Plane(ch, pol int) []complex128 {
	off := img.PlaneOffset(ch, pol)
	return img.Data[off : off+img.PlaneSize()]
}

// Real returns the real part as an Image
func (img *ComplexImage) Real() *Image {
	out := NewImage(img.Geometry)
	for i, v := range img.Data {
		out.Data[i] = real(v)
	}
	return out
}

// ToComplex converts a real image into a complex one
func (img *Image) ToComplex() *ComplexImage {
	out := NewComplexImage(img.Geometry)
	for i, v := range img.Data {
		out.Data[i] = complex(v, 0)
	}
	return out
}

// SumWeights holds the accumulated weight per channel/polarisation,
// indexed chan*npol+pol.
type SumWeights []float64

// NewSumWeights returns zeroed weights for the given shape
func NewSumWeights(nchan, npol int) SumWeights {
	return make(SumWeights, nchan*npol)
}

// Add accumulates o into s elementwise
func (s SumWeights) Add(o SumWeights) {
	for i := range s {
		s[i] += o[i]
	}
}

// Copy returns a copy of the weights
func (s SumWeights) Copy() SumWeights {
	out := make(SumWeights, len(s))
	copy(out, s)
	return out
}
