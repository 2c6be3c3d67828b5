// Package config loads reconstruction parameters from YAML files and turns
// them into veasl operator options.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-mri/mri/grid"
	"github.com/cwbudde/algo-mri/mri/veasl"
)

var ErrInvalidConfig = errors.New("config: invalid value")

// Config mirrors the YAML layout of a reconstruction parameter file.
type Config struct {
	// Grid describes the image volume.
	Grid struct {
		Nx int `yaml:"nx"`
		Ny int `yaml:"ny"`
		Nz int `yaml:"nz"`
	} `yaml:"grid"`

	// Acquisition describes the tensor axes of the data.
	Acquisition struct {
		Timepoints int `yaml:"timepoints"`
		Encodings  int `yaml:"encodings"`
	} `yaml:"acquisition"`

	// Gridding tunes the per-pair NUFFT plans. Oversampling is a factor
	// relative to the grid (0 keeps the plan default of 2).
	Gridding struct {
		KernelWidth  int     `yaml:"kernelWidth"`
		Oversampling float64 `yaml:"oversampling"`
		LowMemory    bool    `yaml:"lowMemory"`
	} `yaml:"gridding"`

	// Density selects the compensation-weight mode: "auto" (per pair),
	// "shared" (first pair reused) or "uniform" (one value everywhere).
	Density struct {
		Mode    string  `yaml:"mode"`
		Uniform float64 `yaml:"uniform"`
	} `yaml:"density"`

	// Workers is the goroutine count for the per-pair loops.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns a configuration matching the operator defaults: a
// two-timepoint, two-encoding acquisition with per-pair density estimation
// and serial execution.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Grid.Nx = 64
	cfg.Grid.Ny = 64
	cfg.Grid.Nz = 1
	cfg.Acquisition.Timepoints = 2
	cfg.Acquisition.Encodings = 2
	cfg.Gridding.KernelWidth = 6
	cfg.Density.Mode = "auto"
	cfg.Workers = 1
	return cfg
}

// LoadConfig reads a YAML parameter file, applying defaults for absent
// fields. A missing file yields the defaults. The result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the configuration as YAML, creating the directory if
// needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// Validate reports the first implausible parameter.
func (cfg *Config) Validate() error {
	if !cfg.Shape().Valid() {
		return fmt.Errorf("%w: grid %dx%dx%d", ErrInvalidConfig,
			cfg.Grid.Nx, cfg.Grid.Ny, cfg.Grid.Nz)
	}
	if cfg.Acquisition.Timepoints < 1 || cfg.Acquisition.Encodings < 1 {
		return fmt.Errorf("%w: acquisition %dx%d", ErrInvalidConfig,
			cfg.Acquisition.Timepoints, cfg.Acquisition.Encodings)
	}
	if cfg.Gridding.KernelWidth < 1 {
		return fmt.Errorf("%w: kernel width %d", ErrInvalidConfig, cfg.Gridding.KernelWidth)
	}
	if cfg.Gridding.Oversampling != 0 && cfg.Gridding.Oversampling < 1 {
		return fmt.Errorf("%w: oversampling %g", ErrInvalidConfig, cfg.Gridding.Oversampling)
	}
	switch cfg.Density.Mode {
	case "auto", "shared":
	case "uniform":
		if cfg.Density.Uniform < 0 {
			return fmt.Errorf("%w: uniform density %g", ErrInvalidConfig, cfg.Density.Uniform)
		}
	default:
		return fmt.Errorf("%w: density mode %q", ErrInvalidConfig, cfg.Density.Mode)
	}
	return nil
}

// Shape returns the image grid shape.
func (cfg *Config) Shape() grid.Shape {
	return grid.Shape{Nx: cfg.Grid.Nx, Ny: cfg.Grid.Ny, Nz: cfg.Grid.Nz}
}

// Options converts the configuration into veasl operator options.
func (cfg *Config) Options() []veasl.Option {
	opts := []veasl.Option{
		veasl.WithKernelWidth(cfg.Gridding.KernelWidth),
		veasl.WithLowMemory(cfg.Gridding.LowMemory),
		veasl.WithWorkers(cfg.Workers),
	}
	if cfg.Gridding.Oversampling != 0 {
		over := grid.FFTShape(cfg.Shape().Scaled(cfg.Gridding.Oversampling))
		opts = append(opts, veasl.WithOversampledGrid(over))
	}
	switch cfg.Density.Mode {
	case "shared":
		opts = append(opts, veasl.WithSharedDensity())
	case "uniform":
		opts = append(opts, veasl.WithUniformDensity(cfg.Density.Uniform))
	}
	return opts
}
