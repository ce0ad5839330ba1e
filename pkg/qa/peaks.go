package qa

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
)

// Peak is a local maximum of an image plane
type Peak struct {
	X, Y  int
	Value float64
}

// FindPeaks returns up to n positive local maxima of one plane of img,
// brightest first. A maximum closer than exclusion pixels to a brighter accepted one
// is skipped, so sidelobe bumps on a bright source's main lobe are ignored.
func FindPeaks(img *models.Image, ch, pol, n int, exclusion float64) []Peak {
	plane := img.Plane(ch, pol)
	nx, ny := img.NX, img.NY

	var candidates []Peak
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			v := plane[y*nx+x]
			if v > 0 && isLocalMax(plane, nx, ny, x, y, v) {
				candidates = append(candidates, Peak{X: x, Y: y, Value: v})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Value > candidates[j].Value
	})

	limit := exclusion * exclusion
	out := make([]Peak, 0, n)
	for _, c := range candidates {
		if len(out) == n {
			break
		}
		free := true
		for _, p := range out {
			dx, dy := float64(c.X-p.X), float64(c.Y-p.Y)
			if dx*dx+dy*dy < limit {
				free = false
				break
			}
		}
		if free {
			out = append(out, c)
		}
	}
	return out
}

func isLocalMax(plane []float64, nx, ny, x, y int, v float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			cx, cy := x+dx, y+dy
			if cx < 0 || cy < 0 || cx >= nx || cy >= ny {
				continue
			}
			if plane[cy*nx+cx] > v {
				return false
			}
		}
	}
	return true
}

// Point2D is a pixel position
type Point2D struct {
	X, Y float64

	// Index identifies the point in the slice the tree was built from
	Index int
}

// Compare implements the kdtree.Comparable interface
func (p Point2D) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point2D)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p Point2D) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points
func (p Point2D) Distance(c kdtree.Comparable) float64 {
	q := c.(Point2D)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// Points2D is a collection of Point2D that satisfies kdtree.Interface
type Points2D []Point2D

func (p Points2D) Index(i int) kdtree.Comparable         { return p[i] }
func (p Points2D) Len() int                              { return len(p) }
func (p Points2D) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p Points2D) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{Points2D: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{Points2D: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for Points2D
type pointPlane struct {
	Points2D
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.Points2D[i].X < p.Points2D[j].X
	case 1:
		return p.Points2D[i].Y < p.Points2D[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{Points2D: p.Points2D[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.Points2D[i], p.Points2D[j] = p.Points2D[j], p.Points2D[i]
}

// Match pairs an expected source position with its nearest peak
type Match struct {
	Source   int
	Peak     Peak
	Distance float64
}

// MatchPeaks finds, for every expected position, the nearest of peaks.
// Distances are in pixels. It returns nil when there are no peaks.
func MatchPeaks(positions []Point2D, peaks []Peak) []Match {
	if len(peaks) == 0 {
		return nil
	}
	points := make(Points2D, len(peaks))
	for i, p := range peaks {
		points[i] = Point2D{X: float64(p.X), Y: float64(p.Y), Index: i}
	}
	tree := kdtree.New(points, false)

	out := make([]Match, len(positions))
	for i, pos := range positions {
		nearest, dist := tree.Nearest(pos)
		p := nearest.(Point2D)
		out[i] = Match{Source: i, Peak: peaks[p.Index], Distance: math.Sqrt(dist)}
	}
	return out
}
