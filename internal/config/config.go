// Package config loads and saves noiseforge run configurations as YAML.
package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mrsinham/noiseforge/internal/backend"
	"github.com/mrsinham/noiseforge/internal/rng"
	"github.com/mrsinham/noiseforge/internal/tensor"
	"github.com/mrsinham/noiseforge/internal/transforms"
	"github.com/mrsinham/noiseforge/internal/util"
)

// Config represents a complete run configuration for YAML serialization.
type Config struct {
	Seed    *uint32      `yaml:"seed,omitempty"` // nil = unseeded
	RNG     string       `yaml:"rng"`
	Backend string       `yaml:"backend"`
	Workers int          `yaml:"workers"`
	Noise   NoiseConfig  `yaml:"noise"`
	Output  OutputConfig `yaml:"output"`
}

// NoiseConfig holds Rician noise parameters with YAML tags.
type NoiseConfig struct {
	Prob        float64   `yaml:"prob"`
	Mean        float64   `yaml:"mean"`
	Std         float64   `yaml:"std"`
	Means       []float64 `yaml:"means,omitempty"`
	Stds        []float64 `yaml:"stds,omitempty"`
	ChannelWise bool      `yaml:"channel_wise"`
	Relative    bool      `yaml:"relative"`
	FixedStd    bool      `yaml:"fixed_std"`
	DType       string    `yaml:"dtype"`
}

// OutputConfig holds settings for written files.
type OutputConfig struct {
	Preview bool              `yaml:"preview"`
	Tags    map[string]string `yaml:"tags,omitempty"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() Config {
	return Config{
		RNG:     string(rng.NumPy),
		Backend: backend.HostName,
		Noise: NoiseConfig{
			Prob:  1.0,
			Mean:  0,
			Std:   0.1,
			DType: tensor.Float64.String(),
		},
	}
}

// Load reads a YAML file on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks every field, including the noise parameters.
func (c *Config) Validate() error {
	if !rng.IsValid(c.RNG) {
		return fmt.Errorf("unknown rng %q, valid: %v", c.RNG, rng.AllKinds())
	}
	if _, err := backend.Lookup(c.Backend, c.Workers); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if _, err := tensor.ParseDType(c.Noise.DType); err != nil {
		return err
	}
	if _, err := c.TagOverrides(); err != nil {
		return err
	}
	opts, err := c.RicianOptions()
	if err != nil {
		return err
	}
	return opts.Validate()
}

// RicianOptions converts the noise section to transform options.
func (c *Config) RicianOptions() (transforms.RicianOptions, error) {
	b, err := backend.Lookup(c.Backend, c.Workers)
	if err != nil {
		return transforms.RicianOptions{}, err
	}
	dtype, err := tensor.ParseDType(c.Noise.DType)
	if err != nil {
		return transforms.RicianOptions{}, err
	}

	return transforms.RicianOptions{
		Prob:        c.Noise.Prob,
		Mean:        c.Noise.Mean,
		Std:         c.Noise.Std,
		Means:       c.Noise.Means,
		Stds:        c.Noise.Stds,
		ChannelWise: c.Noise.ChannelWise,
		Relative:    c.Noise.Relative,
		FixedStd:    c.Noise.FixedStd,
		NoiseDType:  dtype,
		Backend:     b,
	}, nil
}

// TagOverrides returns the validated output tag overrides.
func (c *Config) TagOverrides() ([]util.TagOverride, error) {
	return util.TagOverridesFromMap(c.Output.Tags)
}

// NewTransform builds a RicianNoise transform, seeded when Seed is set.
func (c *Config) NewTransform() (*transforms.RicianNoise, error) {
	opts, err := c.RicianOptions()
	if err != nil {
		return nil, err
	}
	t, err := transforms.NewRicianNoise(opts)
	if err != nil {
		return nil, err
	}
	if c.Seed != nil {
		t.SetRandomSource(rng.NewSource(rng.Kind(c.RNG), *c.Seed))
	}
	return t, nil
}

// runSettings is the part of a Config that determines the written files.
// Backend and workers are left out since every backend writes the same pixels.
type runSettings struct {
	Seed  uint32      `yaml:"seed"`
	RNG   string      `yaml:"rng"`
	Noise NoiseConfig `yaml:"noise"`
	Tags  []string    `yaml:"tags,omitempty"`
}

// RunKey identifies the output of a run. Seeded runs with the same settings
// share a key; an unseeded run gets a fresh random key.
func (c *Config) RunKey() (string, error) {
	if c.Seed == nil {
		return "unseeded|" + uuid.New().String(), nil
	}
	overrides, err := c.TagOverrides()
	if err != nil {
		return "", err
	}
	s := runSettings{Seed: *c.Seed, RNG: c.RNG, Noise: c.Noise}
	for _, o := range overrides {
		s.Tags = append(s.Tags, o.Info.Name+"="+o.Value)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal run settings: %w", err)
	}
	return string(data), nil
}
