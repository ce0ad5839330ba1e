package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/models"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/config"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/dispatch"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/gridding"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/imaging"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/partition"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/qa"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/simulate"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/visualization"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		imagingContext string
		npixel         int
		cellsize       float64
		padding        int
		facets         int
		slices         string
		workers        int
		wprojection    bool
		output         string
		compare        bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate an observation and make a dirty image",
		Long: `Simulate an observation of a grid of point sources, invert it with the chosen
imaging context and report the recovered sources. Flags override the
configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("context") {
				cfg.Imaging.Context = imagingContext
			}
			if flags.Changed("npixel") {
				cfg.Imaging.NPixel = npixel
			}
			if flags.Changed("cellsize") {
				cfg.Imaging.Cellsize = cellsize
			}
			if flags.Changed("padding") {
				cfg.Imaging.Padding = padding
			}
			if flags.Changed("facets") {
				cfg.Imaging.Facets = facets
			}
			if flags.Changed("slices") {
				s, err := config.ParseSliceCount(slices)
				if err != nil {
					return err
				}
				cfg.Imaging.Slices = s
			}
			if flags.Changed("workers") {
				cfg.Processing.Workers = workers
			}
			if flags.Changed("wprojection") {
				cfg.WProjection.Enabled = wprojection
			}
			if flags.Changed("output") {
				cfg.Output.Image = output
			}
			return run(cmd.Context(), cfg, compare, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&imagingContext, "context", "", "imaging context: 2d, facets, wstack or timeslice")
	cmd.Flags().IntVar(&npixel, "npixel", 0, "image width and height in pixels")
	cmd.Flags().Float64Var(&cellsize, "cellsize", 0, "pixel size in radians")
	cmd.Flags().IntVar(&padding, "padding", 0, "grid padding factor")
	cmd.Flags().IntVar(&facets, "facets", 0, "facets per image axis")
	cmd.Flags().StringVar(&slices, "slices", "", "number of w- or time slices, or auto")
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "partitions gridded in parallel")
	cmd.Flags().BoolVar(&wprojection, "wprojection", false, "grid with w-projection kernels")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the dirty image (PNG/JPEG file, or a directory for cubes)")
	cmd.Flags().BoolVar(&compare, "compare", false, "also image with the plain 2d context and compare")

	return cmd
}

// observation is a simulated visibility set with the sky that produced it
type observation struct {
	vis     *models.Visibility
	g       models.Geometry
	sources []simulate.Source
}

func simulateObservation(cfg *config.Config) (*observation, error) {
	s := cfg.Simulation
	if s.Sources < 1 {
		return nil, errdefs.Configurationf("simulation needs at least one source per axis, got %d", s.Sources)
	}
	if cfg.Imaging.NPixel <= 0 || cfg.Imaging.Cellsize <= 0 {
		return nil, errdefs.Configurationf("image needs positive npixel and cellsize, got %d and %g",
			cfg.Imaging.NPixel, cfg.Imaging.Cellsize)
	}

	layout := simulate.RandomConfiguration("ANT", s.Antennas, s.Radius, s.Latitude, s.Seed)
	phase := models.Direction{Dec: s.Declination}
	vis, err := simulate.CreateVisibility(layout, simulate.Observation{
		HourAngles:   simulate.HourAngles(s.Times, s.HourAngle),
		Frequency:    s.Frequencies,
		PhaseCentre:  phase,
		Polarisation: models.StokesI,
	})
	if err != nil {
		return nil, err
	}
	g := models.NewGeometry(cfg.Imaging.NPixel, cfg.Imaging.Cellsize, s.Frequencies, models.StokesI, phase)
	return &observation{vis: vis, g: g, sources: simulate.PointSourceGrid(g, s.Sources, s.Flux)}, nil
}

func run(ctx context.Context, cfg *config.Config, compare bool, out io.Writer) error {
	c, err := cfg.Context()
	if err != nil {
		return err
	}
	obs, err := simulateObservation(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	data, err := gridding.PredictComponents(simulate.Components(obs.sources), obs.vis)
	if err != nil {
		return err
	}
	log.Info().
		Str("rows", humanize.Comma(int64(data.NRows()))).
		Int("channels", data.NChan()).
		Int("sources", len(obs.sources)).
		Dur("elapsed", time.Since(start)).
		Msg("simulated observation")

	bar := progressbar.Default(-1, "gridding partitions")
	im := imaging.New(dispatch.Pool{Workers: cfg.Processing.Workers}, imaging.WithProgress(func(done, total int) {
		bar.ChangeMax(total)
		_ = bar.Set(done)
	}))

	start = time.Now()
	result, err := im.Invert(ctx, data, obs.g, c)
	_ = bar.Finish()
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	dirty := result.Normalised()

	fmt.Fprintln(out, "================================")
	fmt.Fprintf(out, "Context: %s, %d partitions, %s\n", c.Strategy.Kind(), result.Partitions, elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Samples gridded: %s, dropped: %s, beyond kernel w range: %s\n",
		humanize.Comma(int64(result.Stats.Gridded)), humanize.Comma(int64(result.Stats.Dropped)),
		humanize.Comma(int64(result.Stats.Clamped)))
	fmt.Fprintf(out, "Grid memory per partition: %s\n", humanize.IBytes(gridBytes(cfg, obs.g)))
	fmt.Fprintln(out, "================================")

	s := qa.Summarise(dirty)
	fmt.Fprintf(out, "Image %dx%d: max %.4f, min %.4f, rms %.4f, median |x| %.4f\n", s.NX, s.NY, s.Max, s.Min, s.RMS, s.MedianAbs)

	fmt.Fprintln(out, "\nRecovered sources:")
	for _, m := range matchSources(dirty, obs.sources) {
		src := obs.sources[m.Source]
		fmt.Fprintf(out, "- %-10s at (%4d, %4d): peak %.3f at (%4d, %4d), offset %.2f px\n",
			src.Name, src.X, src.Y, m.Peak.Value, m.Peak.X, m.Peak.Y, m.Distance)
	}

	if compare {
		if err := comparePlain(ctx, im, data, obs, cfg, dirty, out); err != nil {
			return err
		}
	}

	if cfg.Output.Image != "" {
		if err := saveImage(dirty, cfg.Output.Image); err != nil {
			return fmt.Errorf("error saving image: %w", err)
		}
		fmt.Fprintf(out, "\nDirty image saved to: %s\n", cfg.Output.Image)
	}
	return nil
}

// matchSources pairs every simulated source with the nearest bright peak of
// the first plane.
func matchSources(dirty *models.Image, sources []simulate.Source) []qa.Match {
	exclusion := float64(dirty.NX) / (4 * math.Max(1, math.Sqrt(float64(len(sources)))))
	peaks := qa.FindPeaks(dirty, 0, 0, len(sources), exclusion)
	positions := lo.Map(sources, func(s simulate.Source, _ int) qa.Point2D {
		return qa.Point2D{X: float64(s.X), Y: float64(s.Y)}
	})
	return qa.MatchPeaks(positions, peaks)
}

func comparePlain(ctx context.Context, im *imaging.Imager, data *models.Visibility, obs *observation,
	cfg *config.Config, dirty *models.Image, out io.Writer) error {
	plain, err := im.Invert(ctx, data, obs.g, imaging.Context{Strategy: partition.Plain{Padding: cfg.Imaging.Padding}})
	if err != nil {
		return err
	}
	reference := plain.Normalised()
	cmp := qa.Compare(reference.Plane(0, 0), dirty.Plane(0, 0))

	fmt.Fprintln(out, "\nComparison with the 2d context:")
	fmt.Fprintf(out, "- RMSE: %.6f\n", cmp.RMSE)
	fmt.Fprintf(out, "- Correlation: %.4f\n", cmp.Correlation)
	fmt.Fprintf(out, "- SSIM: %.4f\n", cmp.SSIM)
	fmt.Fprintf(out, "- PSNR: %.2f dB\n", cmp.PSNR)

	fmt.Fprintf(out, "- Mean peak flux: %.3f (2d: %.3f)\n",
		meanPeak(matchSources(dirty, obs.sources)), meanPeak(matchSources(reference, obs.sources)))
	return nil
}

func meanPeak(matches []qa.Match) float64 {
	if len(matches) == 0 {
		return 0
	}
	return lo.SumBy(matches, func(m qa.Match) float64 { return m.Peak.Value }) / float64(len(matches))
}

// gridBytes estimates the complex uv grid one partition allocates
func gridBytes(cfg *config.Config, g models.Geometry) uint64 {
	n := g.NX * max(1, cfg.Imaging.Padding)
	if kind, err := partition.ParseKind(cfg.Imaging.Context); err == nil && kind == partition.KindFacets && cfg.Imaging.Facets > 0 {
		n /= cfg.Imaging.Facets
	}
	return uint64(n) * uint64(n) * 16
}

func saveImage(img *models.Image, path string) error {
	viewer := visualization.NewViewer(img)
	if filepath.Ext(path) == "" {
		_, err := viewer.SaveCube(path)
		return err
	}
	plane, err := viewer.ExtractPlane(0, 0)
	if err != nil {
		return err
	}
	return viewer.SavePlane(plane, path)
}
