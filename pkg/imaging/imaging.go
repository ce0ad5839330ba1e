// Package imaging is the entry point for wide-field invert and predict.
//
// An Imager splits a request with the Context's partitioning strategy,
// grids every partition on the injected executor and combines the partial
// results. Configuration and shape errors are reported before any
// partition is dispatched.
package imaging

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/combine"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/dispatch"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/gridding"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/kernels"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/partition"
)

// Context selects how a request is approximated
type Context struct {
	Strategy partition.Strategy

	// Kernels enables w-projection gridding inside every partition.
	// Nil grids on the nearest cell.
	Kernels *kernels.Params
}

// Result is the combined dirty image of an Invert call
type Result struct {
	combine.Result

	// Partitions is the number of partitions that were gridded
	Partitions int

	// Stats sums the gridding statistics of all partitions
	Stats gridding.Stats
}

// Normalised returns the image divided by its sums of weights
func (r *Result) Normalised() *models.Image {
	return combine.Normalise(&r.Result)
}

// Imager runs invert and predict requests. It is safe for concurrent use.
type Imager struct {
	exec     dispatch.Executor
	cache    *kernels.Cache
	progress func(done, total int)
}

// Option configures an Imager
type Option func(*Imager)

// WithKernelCache shares a kernel bank cache between imagers
func WithKernelCache(c *kernels.Cache) Option {
	return func(im *Imager) { im.cache = c }
}

// WithProgress reports partition completion
func WithProgress(fn func(done, total int)) Option {
	return func(im *Imager) { im.progress = fn }
}

// New returns an Imager dispatching partitions to exec
func New(exec dispatch.Executor, opts ...Option) *Imager {
	im := &Imager{exec: exec}
	for _, opt := range opts {
		opt(im)
	}
	if im.cache == nil {
		im.cache = kernels.NewCache()
	}
	return im
}

// prepared is a partition with its kernel bank resolved
type prepared struct {
	partition.Partition
	options gridding.Options
}

// plan validates the request and splits it into partitions. Every error it
// returns is a configuration or shape error.
func (im *Imager) plan(vis *models.Visibility, g models.Geometry, c Context) ([]prepared, error) {
	if c.Strategy == nil {
		return nil, errdefs.Configurationf("imaging context has no partitioning strategy")
	}
	if err := models.CheckShapes(g, vis); err != nil {
		return nil, err
	}
	// the gridder puts l = m = 0 at the grid centre; facets shift it by phase rotation
	if g.RefX != float64(g.NX/2) || g.RefY != float64(g.NY/2) {
		return nil, errdefs.Configurationf("image reference pixel (%g, %g) must be the centre pixel (%d, %d)",
			g.RefX, g.RefY, g.NX/2, g.NY/2)
	}
	if err := c.Strategy.Validate(g); err != nil {
		return nil, err
	}
	parts, err := c.Strategy.Partitions(vis, g)
	if err != nil {
		return nil, err
	}

	out := make([]prepared, len(parts))
	for i, p := range parts {
		if err := gridding.ValidateGeometry(p.Template, p.Padding); err != nil {
			return nil, fmt.Errorf("partition %d: %w", i, err)
		}
		opts := gridding.Options{Padding: p.Padding}
		if c.Kernels != nil {
			bank, err := im.cache.Get(p.Template, p.Padding, *c.Kernels)
			if err != nil {
				return nil, err
			}
			opts.Kernels = bank
		}
		out[i] = prepared{Partition: p, options: opts}
	}
	return out, nil
}

func (im *Imager) dispatchOptions() []dispatch.Option {
	if im.progress == nil {
		return nil
	}
	return []dispatch.Option{dispatch.WithProgress(im.progress)}
}

type invertOutcome struct {
	partial combine.Partial
	stats   gridding.Stats
}

// Invert grids vis onto an image of geometry g. The returned image is not
// normalised; see Result.Normalised.
func (im *Imager) Invert(ctx context.Context, vis *models.Visibility, g models.Geometry, c Context) (*Result, error) {
	start := time.Now()
	parts, err := im.plan(vis, g, c)
	if err != nil {
		return nil, err
	}

	tasks := make([]dispatch.Task[invertOutcome], len(parts))
	for i, p := range parts {
		i, p := i, p
		tasks[i] = func(ctx context.Context) (invertOutcome, error) {
			if err := ctx.Err(); err != nil {
				return invertOutcome{}, err
			}
			img, sumwt, stats, err := gridding.InvertComplex(p.Vis, p.Template, p.options)
			if err != nil {
				return invertOutcome{}, err
			}
			return invertOutcome{
				partial: combine.Partial{Descriptor: p.Descriptor, Image: img, SumWt: sumwt},
				stats:   stats,
			}, nil
		}
	}

	outcomes, err := dispatch.Run(ctx, im.exec, tasks, im.dispatchOptions()...)
	if err != nil {
		return nil, fmt.Errorf("invert %s: %w", c.Strategy.Kind(), err)
	}

	partials := make([]combine.Partial, len(outcomes))
	var stats gridding.Stats
	for i, o := range outcomes {
		partials[i] = o.partial
		stats.Add(o.stats)
	}
	combined, err := combine.Invert(c.Strategy.Kind(), g, partials)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("context", c.Strategy.Kind().String()).
		Int("partitions", len(parts)).
		Int("gridded", stats.Gridded).
		Int("dropped", stats.Dropped).
		Int("clamped", stats.Clamped).
		Bool("wprojection", c.Kernels != nil).
		Dur("elapsed", time.Since(start)).
		Msg("inverted visibilities")
	return &Result{Result: *combined, Partitions: len(parts), Stats: stats}, nil
}

type predictOutcome struct {
	vis   *models.Visibility
	stats gridding.Stats
}

// Predict computes visibilities for every row of template from model.
// The returned set is a new copy of template with the predicted values.
func (im *Imager) Predict(ctx context.Context, model *models.Image, template *models.Visibility, c Context) (*models.Visibility, gridding.Stats, error) {
	start := time.Now()
	parts, err := im.plan(template, model.Geometry, c)
	if err != nil {
		return nil, gridding.Stats{}, err
	}

	tasks := make([]dispatch.Task[predictOutcome], len(parts))
	for i, p := range parts {
		i, p := i, p
		tasks[i] = func(ctx context.Context) (predictOutcome, error) {
			if err := ctx.Err(); err != nil {
				return predictOutcome{}, err
			}
			m, err := combine.Model(p.Partition, model)
			if err != nil {
				return predictOutcome{}, err
			}
			vis, stats, err := gridding.PredictComplex(m, p.Vis, p.options)
			if err != nil {
				return predictOutcome{}, err
			}
			return predictOutcome{vis: vis, stats: stats}, nil
		}
	}

	outcomes, err := dispatch.Run(ctx, im.exec, tasks, im.dispatchOptions()...)
	if err != nil {
		return nil, gridding.Stats{}, fmt.Errorf("predict %s: %w", c.Strategy.Kind(), err)
	}

	predicted := make([]*models.Visibility, len(outcomes))
	partitions := make([]partition.Partition, len(parts))
	var stats gridding.Stats
	for i, o := range outcomes {
		predicted[i] = o.vis
		partitions[i] = parts[i].Partition
		stats.Add(o.stats)
	}
	out, err := combine.Predict(template, partitions, predicted)
	if err != nil {
		return nil, stats, err
	}

	log.Debug().
		Str("context", c.Strategy.Kind().String()).
		Int("partitions", len(parts)).
		Int("predicted", stats.Gridded).
		Int("dropped", stats.Dropped).
		Int("clamped", stats.Clamped).
		Dur("elapsed", time.Since(start)).
		Msg("predicted visibilities")
	return out, stats, nil
}
