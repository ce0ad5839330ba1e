// Package config provides configuration loading and management for arlimaging.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/imaging"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/kernels"
	"github.com/ComputerApplicationLab/algorithm-reference-library/pkg/partition"
)

// SliceCount is a number of w- or time slices, or "auto" to derive it from
// the data.
type SliceCount struct {
	N    int
	Auto bool
}

func (s SliceCount) String() string {
	if s.Auto {
		return "auto"
	}
	return strconv.Itoa(s.N)
}

// ParseSliceCount reads an integer or "auto"
func ParseSliceCount(text string) (SliceCount, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "auto" {
		return SliceCount{Auto: true}, nil
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return SliceCount{}, errdefs.Configurationf("slice count must be an integer or \"auto\", got %q", text)
	}
	return SliceCount{N: n}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (s *SliceCount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errdefs.Configurationf("line %d: slice count must be a scalar", node.Line)
	}
	parsed, err := ParseSliceCount(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (s SliceCount) MarshalYAML() (any, error) {
	if s.Auto {
		return "auto", nil
	}
	return s.N, nil
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Imaging parameters
	Imaging struct {
		// Context names the partitioning: 2d, facets, wstack or timeslice
		Context string `yaml:"context"`

		// NPixel is the image width and height
		NPixel int `yaml:"npixel"`

		// Cellsize is the pixel size in radians
		Cellsize float64 `yaml:"cellsize"`

		// Padding enlarges the uv grid or the timeslice templates
		Padding int `yaml:"padding"`

		// Facets is the number of facets per image axis
		Facets int `yaml:"facets"`

		// Slices is the number of w- or time slices
		Slices SliceCount `yaml:"slices"`
	} `yaml:"imaging"`

	// W-projection kernel parameters
	WProjection struct {
		// Enabled turns on convolutional gridding with w-kernels
		Enabled bool `yaml:"enabled"`

		Planes       int     `yaml:"planes"`
		WStep        float64 `yaml:"wstep"`
		Oversampling int     `yaml:"oversampling"`
		Support      int     `yaml:"support"`
		AntiAliasing bool    `yaml:"antiAliasing"`
	} `yaml:"wprojection"`

	// Processing parameters
	Processing struct {
		// Workers specifies how many partitions are gridded in parallel
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	// Simulation parameters for the driver
	Simulation struct {
		Antennas int     `yaml:"antennas"`
		Radius   float64 `yaml:"radius"`
		Latitude float64 `yaml:"latitude"`

		// Declination of the phase centre in radians
		Declination float64 `yaml:"declination"`

		Times       int       `yaml:"times"`
		HourAngle   float64   `yaml:"hourAngleSpan"`
		Frequencies []float64 `yaml:"frequencies"`

		// Sources is the number of point sources per image axis
		Sources int     `yaml:"sources"`
		Flux    float64 `yaml:"flux"`
		Seed    uint64  `yaml:"seed"`
	} `yaml:"simulation"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// LogFormat is "console" or "json"
		LogFormat string `yaml:"logFormat"`

		// Image is the path the dirty image is written to; empty skips writing
		Image string `yaml:"image"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Imaging.Context = "wstack"
	cfg.Imaging.NPixel = 256
	cfg.Imaging.Cellsize = 0.002
	cfg.Imaging.Padding = 2
	cfg.Imaging.Facets = 4
	cfg.Imaging.Slices = SliceCount{N: 16}

	cfg.WProjection.Planes = 1
	cfg.WProjection.Oversampling = 8
	cfg.WProjection.Support = 3
	cfg.WProjection.AntiAliasing = true

	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default

	cfg.Simulation.Antennas = 20
	cfg.Simulation.Radius = 150
	cfg.Simulation.Latitude = -0.47
	cfg.Simulation.Declination = -0.8
	cfg.Simulation.Times = 16
	cfg.Simulation.HourAngle = 1.0
	cfg.Simulation.Frequencies = []float64{1e8}
	cfg.Simulation.Sources = 3
	cfg.Simulation.Flux = 1
	cfg.Simulation.Seed = 42

	cfg.Output.Verbose = false
	cfg.Output.LogFormat = "console"

	return cfg
}

// Strategy builds the partitioning strategy named by the imaging section
func (c *Config) Strategy() (partition.Strategy, error) {
	kind, err := partition.ParseKind(c.Imaging.Context)
	if err != nil {
		return nil, err
	}
	return partition.New(kind, partition.Params{
		Facets:     c.Imaging.Facets,
		Slices:     c.Imaging.Slices.N,
		AutoSlices: c.Imaging.Slices.Auto,
		Padding:    c.Imaging.Padding,
	})
}

// Kernels returns the w-projection parameters, or nil when disabled
func (c *Config) Kernels() *kernels.Params {
	if !c.WProjection.Enabled {
		return nil
	}
	return &kernels.Params{
		Planes:       c.WProjection.Planes,
		WStep:        c.WProjection.WStep,
		Oversampling: c.WProjection.Oversampling,
		Support:      c.WProjection.Support,
		AntiAliasing: c.WProjection.AntiAliasing,
	}
}

// Context converts the configuration to an imaging context
func (c *Config) Context() (imaging.Context, error) {
	s, err := c.Strategy()
	if err != nil {
		return imaging.Context{}, err
	}
	return imaging.Context{Strategy: s, Kernels: c.Kernels()}, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
