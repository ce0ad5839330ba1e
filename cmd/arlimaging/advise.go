package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/config"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/partition"
)

func newAdviseCmd(a *app) *cobra.Command {
	var delA float64

	cmd := &cobra.Command{
		Use:   "advise",
		Short: "Suggest wide-field imaging parameters for the simulated observation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return advise(a.cfg, delA, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Float64Var(&delA, "dela", 0.02, "tolerated fractional amplitude loss at the edge of the field")
	return cmd
}

func advise(cfg *config.Config, delA float64, out io.Writer) error {
	obs, err := simulateObservation(cfg)
	if err != nil {
		return err
	}
	adv := partition.Advise(obs.vis, obs.g, delA)

	fmt.Fprintf(out, "Observation: %s rows, %d channels\n", humanize.Comma(int64(obs.vis.NRows())), obs.vis.NChan())
	fmt.Fprintf(out, "Field of view: %d pixels of %g rad\n\n", obs.g.NX, obs.g.Cellsize)
	fmt.Fprintf(out, "Maximum baseline: %.1f wavelengths\n", adv.MaxBaseline)
	fmt.Fprintf(out, "Maximum |w|: %.1f wavelengths\n", adv.MaxW)
	fmt.Fprintf(out, "Synthesised beam: %.3g rad\n", adv.SynthesisedBeam)
	fmt.Fprintf(out, "Suggested cellsize: %.3g rad, npixel %d\n", adv.Cellsize, adv.NPixels)
	fmt.Fprintf(out, "W sampling: %.3g wavelengths\n", adv.WSampling)
	fmt.Fprintf(out, "W-stack slices: %d\n", adv.WStackSlices)
	fmt.Fprintf(out, "W-projection planes: %d, support %d\n", adv.WProjectionPlanes, adv.WProjectionSupport)
	fmt.Fprintf(out, "Time slices: %d\n", adv.Timeslices)
	return nil
}
