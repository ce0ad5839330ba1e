package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/config"
)

// app carries what every subcommand needs after the root pre-run
type app struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("arlimaging failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "arlimaging",
		Short: "Wide-field imaging of simulated interferometer observations",
		Long: `arlimaging simulates an array observation, grids it into a dirty image with
one of the wide-field approximations (2d, facets, wstack, timeslice) and reports
how well the point sources were recovered.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("verbose") {
				cfg.Output.Verbose = a.verbose
			}
			a.cfg = cfg
			setupLogging(cfg)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "arlimaging.yaml", "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log partition and gridding details")

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newAdviseCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))

	return rootCmd
}

func setupLogging(cfg *config.Config) {
	if cfg.Output.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if cfg.Output.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if len(args) > 0 {
				path = args[0]
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			log.Info().Str("path", path).Msg("wrote default configuration")
			return nil
		},
	})
	return cmd
}
