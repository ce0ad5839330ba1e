package partition

import (
	"cmp"
	"image"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
)

// WStack bins rows by w into Slices runs of equal length. Each run is imaged
// against the full template with its mean w removed; the combiner puts the
// mean back as an image-plane phase screen.
type WStack struct {
	Slices  int
	Padding int
}

func (WStack) Kind() Kind { return KindWStack }
func (WStack) sealed()    {}

func (s WStack) Validate(g models.Geometry) error {
	if s.Slices < 1 {
		return errdefs.Configurationf("w-stack slice count must be positive, got %d", s.Slices)
	}
	return checkPadding(s.Padding)
}

func (s WStack) Partitions(vis *models.Visibility, g models.Geometry) ([]Partition, error) {
	if err := s.Validate(g); err != nil {
		return nil, err
	}

	order := allRows(vis.NRows())
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(vis.UVW[a][2], vis.UVW[b][2])
	})

	nslices := s.Slices
	if n := len(order); nslices > n {
		log.Debug().Int("requested", s.Slices).Int("rows", n).Msg("fewer rows than w slices, clamping")
		nslices = max(n, 1)
	}

	out := make([]Partition, 0, nslices)
	for i, rows := range runs(order, nslices) {
		sub := vis.Select(rows)
		d := Descriptor{
			Index:  i,
			Kind:   KindWStack,
			Rows:   rows,
			Region: image.Rect(0, 0, g.NX, g.NY),
		}
		if len(rows) > 0 {
			d.WMin = vis.UVW[rows[0]][2]
			d.WMax = vis.UVW[rows[len(rows)-1]][2]
			for _, r := range rows {
				d.WRep += vis.UVW[r][2]
			}
			d.WRep /= float64(len(rows))
		}
		for j := range sub.UVW {
			sub.UVW[j][2] -= d.WRep
		}
		out = append(out, Partition{Descriptor: d, Vis: sub, Template: g, Padding: s.Padding})
	}
	return out, nil
}

// runs cuts items into n consecutive runs of len(items)/n; the last run
// absorbs the remainder.
func runs(items []int, n int) [][]int {
	out := make([][]int, n)
	size := len(items) / n
	for i := 0; i < n; i++ {
		end := (i + 1) * size
		if i == n-1 {
			end = len(items)
		}
		out[i] = items[i*size : end]
	}
	return out
}
