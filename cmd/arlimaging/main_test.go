package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/config"
)

func smallConfig(t *testing.T) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Imaging.NPixel = 64
	cfg.Imaging.Cellsize = 0.004
	cfg.Imaging.Slices = config.SliceCount{N: 4}
	cfg.Simulation.Antennas = 8
	cfg.Simulation.Times = 4
	cfg.Simulation.Sources = 2
	cfg.Processing.Workers = 2
	path := filepath.Join(t.TempDir(), "arl.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "arl.yaml")
	_, err := execute(t, "config", "init", path)
	require.NoError(t, err)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Imaging, cfg.Imaging)
}

func TestRun(t *testing.T) {
	path := smallConfig(t)
	image := filepath.Join(t.TempDir(), "dirty.png")

	out, err := execute(t, "run", "--config", path, "--context", "facets", "--facets", "2", "--output", image, "--compare")
	require.NoError(t, err)
	assert.Contains(t, out, "Context: facets, 4 partitions")
	assert.Contains(t, out, "src_1_1")
	assert.Contains(t, out, "Comparison with the 2d context")

	_, err = os.Stat(image)
	assert.NoError(t, err)
}

func TestRunRejectsBadFlags(t *testing.T) {
	path := smallConfig(t)

	_, err := execute(t, "run", "--config", path, "--slices", "lots")
	assert.Error(t, err)

	_, err = execute(t, "run", "--config", path, "--context", "mosaic")
	assert.Error(t, err)
}

func TestAdvise(t *testing.T) {
	out, err := execute(t, "advise", "--config", smallConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "W-stack slices:")
	assert.Contains(t, out, "Time slices:")
}
