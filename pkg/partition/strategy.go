// Package partition decomposes one invert or predict request into
// independent sub-problems: the whole problem (plain 2-D), image facets,
// w-slices and time slices.
//
// A Strategy is a closed set of typed parameter structs. Partitions returns
// the sub-problems in a fixed order; the combiner relies on that order.
package partition

import (
	"fmt"
	"image"
	"strings"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
)

// Kind enumerates the partitioning strategies
type Kind int

const (
	KindPlain Kind = iota
	KindFacets
	KindWStack
	KindTimeslice
)

var kindNames = map[Kind]string{
	KindPlain:     "2d",
	KindFacets:    "facets",
	KindWStack:    "wstack",
	KindTimeslice: "timeslice",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a context name ("2d", "facets", "wstack", "timeslice") to its Kind
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, s := range kindNames {
		if s == n {
			return k, nil
		}
	}
	return 0, errdefs.Configurationf("unknown imaging context %q", name)
}

// Strategy is implemented by Plain, Facets, WStack and Timeslice only
type Strategy interface {
	Kind() Kind

	// Validate checks the parameters against an image template without
	// looking at any visibility data.
	Validate(g models.Geometry) error

	// Partitions splits vis and g into independent sub-problems. Every
	// partition owns a private copy of its visibilities.
	Partitions(vis *models.Visibility, g models.Geometry) ([]Partition, error)

	sealed()
}

// Descriptor identifies one sub-problem and carries what the combiner
// needs to correct and place its partial result.
type Descriptor struct {
	Index int
	Kind  Kind

	// Rows lists the rows of the full visibility set in this partition,
	// in the order they appear in the partition's copy.
	Rows []int

	// Region is the pixel region of the full image covered by the partial
	Region image.Rectangle

	// FacetL, FacetM and FacetN1 are l, m and n-1 of the facet centre
	FacetL, FacetM, FacetN1 float64

	// WMin, WMax and WRep are the w range and representative w of a
	// w-slice, in metres.
	WMin, WMax, WRep float64

	// TStart and TEnd bound the times of a time slice in seconds
	TStart, TEnd float64

	// PlaneA and PlaneB are the coefficients of the fitted w = a·u + b·v
	PlaneA, PlaneB float64
}

// Partition is a sub-problem ready to be gridded: a private visibility set
// and the image geometry to grid it against.
type Partition struct {
	Descriptor

	// Vis is prepared for the invert direction and serves as the
	// template of rows for predict.
	Vis *models.Visibility

	// Template is the geometry of the partial image
	Template models.Geometry

	// Padding is the gridding padding for this partition
	Padding int
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

func checkPadding(padding int) error {
	if padding < 1 {
		return errdefs.Configurationf("padding must be at least 1, got %d", padding)
	}
	return nil
}

// Plain images everything at once
type Plain struct {
	Padding int
}

func (Plain) Kind() Kind { return KindPlain }
func (Plain) sealed()    {}

func (p Plain) Validate(g models.Geometry) error {
	return checkPadding(p.Padding)
}

func (p Plain) Partitions(vis *models.Visibility, g models.Geometry) ([]Partition, error) {
	if err := p.Validate(g); err != nil {
		return nil, err
	}
	return []Partition{{
		Descriptor: Descriptor{
			Kind:   KindPlain,
			Rows:   allRows(vis.NRows()),
			Region: image.Rect(0, 0, g.NX, g.NY),
		},
		Vis:      vis.Copy(),
		Template: g,
		Padding:  p.Padding,
	}}, nil
}

// Params carries the numeric parameters of all strategies; each strategy
// reads the fields it needs.
type Params struct {
	Facets     int
	Slices     int
	AutoSlices bool
	Padding    int
}

// New builds the strategy of the given kind and validates nothing; call
// Validate with the image template before use.
func New(kind Kind, p Params) (Strategy, error) {
	switch kind {
	case KindPlain:
		return Plain{Padding: p.Padding}, nil
	case KindFacets:
		return Facets{Count: p.Facets, Padding: p.Padding}, nil
	case KindWStack:
		return WStack{Slices: p.Slices, Padding: p.Padding}, nil
	case KindTimeslice:
		return Timeslice{Slices: p.Slices, Auto: p.AutoSlices, Padding: p.Padding}, nil
	default:
		return nil, errdefs.Configurationf("unknown partitioning %s", kind)
	}
}
