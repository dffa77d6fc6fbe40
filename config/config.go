// Package config holds the world and solver tuning knobs, loadable from a
// YAML file. Zero-valued fields are replaced by defaults on load, so a
// config file only needs to name what it changes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultGravityY           = -9.81
	DefaultMaxContacts        = 256
	DefaultPositionIterations = 0 // 0 = 2x contact count
	DefaultVelocityIterations = 0
	DefaultPositionEpsilon    = 0.01
	DefaultVelocityEpsilon    = 0.01
	DefaultSleepEpsilon       = 0.3
	DefaultGridCellSize       = 4.0
	DefaultGridCells          = 1024
	DefaultWorkers            = 1
)

type Config struct {
	// Gravity is the world gravity vector, m/s².
	Gravity [3]float64 `yaml:"gravity"`

	// MaxContacts caps the per-step contact batch.
	MaxContacts int `yaml:"max_contacts"`

	Resolver ResolverConfig `yaml:"resolver"`
	Sleep    SleepConfig    `yaml:"sleep"`
	Grid     GridConfig     `yaml:"grid"`

	// Workers bounds the goroutines used for integration and narrow-phase
	// detection. Resolution is always sequential.
	Workers int `yaml:"workers"`
}

type ResolverConfig struct {
	// Iteration caps for the two phases; zero means twice the contact
	// count.
	PositionIterations int `yaml:"position_iterations"`
	VelocityIterations int `yaml:"velocity_iterations"`

	PositionEpsilon float64 `yaml:"position_epsilon"`
	VelocityEpsilon float64 `yaml:"velocity_epsilon"`
}

type SleepConfig struct {
	// Epsilon is the motion threshold under which bodies fall asleep;
	// zero disables sleeping entirely.
	Epsilon float64 `yaml:"epsilon"`
	Enabled bool    `yaml:"enabled"`
}

type GridConfig struct {
	CellSize float64 `yaml:"cell_size"`
	Cells    int     `yaml:"cells"`
}

// Default returns the tuning used when no config file is given.
func Default() Config {
	return Config{
		Gravity:     [3]float64{0, DefaultGravityY, 0},
		MaxContacts: DefaultMaxContacts,
		Resolver: ResolverConfig{
			PositionIterations: DefaultPositionIterations,
			VelocityIterations: DefaultVelocityIterations,
			PositionEpsilon:    DefaultPositionEpsilon,
			VelocityEpsilon:    DefaultVelocityEpsilon,
		},
		Sleep: SleepConfig{
			Epsilon: DefaultSleepEpsilon,
			Enabled: true,
		},
		Grid: GridConfig{
			CellSize: DefaultGridCellSize,
			Cells:    DefaultGridCells,
		},
		Workers: DefaultWorkers,
	}
}

// Load reads a YAML config file and fills unset fields with defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{Sleep: SleepConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Gravity == ([3]float64{}) {
		c.Gravity = [3]float64{0, DefaultGravityY, 0}
	}
	if c.MaxContacts <= 0 {
		c.MaxContacts = DefaultMaxContacts
	}
	if c.Resolver.PositionEpsilon <= 0 {
		c.Resolver.PositionEpsilon = DefaultPositionEpsilon
	}
	if c.Resolver.VelocityEpsilon <= 0 {
		c.Resolver.VelocityEpsilon = DefaultVelocityEpsilon
	}
	if c.Sleep.Epsilon <= 0 {
		c.Sleep.Epsilon = DefaultSleepEpsilon
	}
	if c.Grid.CellSize <= 0 {
		c.Grid.CellSize = DefaultGridCellSize
	}
	if c.Grid.Cells <= 0 {
		c.Grid.Cells = DefaultGridCells
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
}
