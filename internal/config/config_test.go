package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mrsinham/noiseforge/internal/phantom"
	"github.com/mrsinham/noiseforge/internal/transforms"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "noise.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
seed: 42
rng: pcg
backend: parallel
workers: 4
noise:
  prob: 0.5
  mean: 0.2
  std: 0.3
  relative: true
  fixed_std: true
  dtype: float32
output:
  preview: true
  tags:
    SeriesDescription: "Noised T1"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Seed == nil || *cfg.Seed != 42 {
		t.Errorf("Expected seed 42, got %v", cfg.Seed)
	}
	if cfg.RNG != "pcg" {
		t.Errorf("Expected rng pcg, got %s", cfg.RNG)
	}
	if cfg.Backend != "parallel" || cfg.Workers != 4 {
		t.Errorf("Expected parallel backend with 4 workers, got %s/%d", cfg.Backend, cfg.Workers)
	}
	if cfg.Noise.Prob != 0.5 || cfg.Noise.Mean != 0.2 || cfg.Noise.Std != 0.3 {
		t.Errorf("Unexpected noise params: %+v", cfg.Noise)
	}
	if !cfg.Noise.Relative || !cfg.Noise.FixedStd {
		t.Errorf("Expected relative and fixed_std, got %+v", cfg.Noise)
	}
	if cfg.Noise.DType != "float32" {
		t.Errorf("Expected dtype float32, got %s", cfg.Noise.DType)
	}
	if !cfg.Output.Preview {
		t.Error("Expected preview enabled")
	}
	if cfg.Output.Tags["SeriesDescription"] != "Noised T1" {
		t.Errorf("Unexpected tags: %v", cfg.Output.Tags)
	}
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "noise:\n  std: 0.25\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := Default()
	if cfg.Seed != nil {
		t.Errorf("Expected no seed, got %d", *cfg.Seed)
	}
	if cfg.RNG != def.RNG || cfg.Backend != def.Backend {
		t.Errorf("Expected default rng/backend, got %s/%s", cfg.RNG, cfg.Backend)
	}
	if cfg.Noise.Prob != def.Noise.Prob {
		t.Errorf("Expected default prob %v, got %v", def.Noise.Prob, cfg.Noise.Prob)
	}
	if cfg.Noise.Std != 0.25 {
		t.Errorf("Expected std 0.25, got %v", cfg.Noise.Std)
	}
}

func TestLoad_SeedZeroIsSet(t *testing.T) {
	cfg, err := Load(writeConfig(t, "seed: 0\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Seed == nil || *cfg.Seed != 0 {
		t.Errorf("Expected explicit seed 0, got %v", cfg.Seed)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid yaml", "noise: [unclosed", "parse config"},
		{"unknown rng", "rng: xorshift\n", "unknown rng"},
		{"unknown backend", "backend: gpu\n", "unknown backend"},
		{"negative workers", "workers: -1\n", "workers"},
		{"bad dtype", "noise:\n  dtype: int8\n", "dtype"},
		{"prob out of range", "noise:\n  prob: 1.5\n", "prob"},
		{"negative std", "noise:\n  std: -1\n", "std"},
		{"stds without channel_wise", "noise:\n  stds: [0.1, 0.2]\n", "channel-wise"},
		{"unknown tag", "output:\n  tags:\n    SeriesDescripton: x\n", "did you mean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got: %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	seed := uint32(7)
	cfg := Default()
	cfg.Seed = &seed
	cfg.Backend = "parallel"
	cfg.Workers = 2
	cfg.Noise.ChannelWise = true
	cfg.Noise.Means = []float64{0, 0.1}
	cfg.Noise.Stds = []float64{0.2, 0.3}
	cfg.Output.Tags = map[string]string{"ImageComments": "synthetic"}

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("Round trip mismatch:\n saved: %+v\nloaded: %+v", cfg, loaded)
	}
}

func TestConfig_TagOverrides(t *testing.T) {
	cfg := Default()
	cfg.Output.Tags = map[string]string{"seriesdescription": "Noised", "PatientID": "ANON"}

	overrides, err := cfg.TagOverrides()
	if err != nil {
		t.Fatalf("TagOverrides failed: %v", err)
	}
	if len(overrides) != 2 {
		t.Fatalf("Expected 2 overrides, got %d", len(overrides))
	}
	if overrides[0].Info.Name != "SeriesDescription" {
		t.Errorf("Expected SeriesDescription first, got %s", overrides[0].Info.Name)
	}
}

func TestConfig_NewTransformSeeded(t *testing.T) {
	img, err := phantom.Generate(phantom.DefaultOptions())
	if err != nil {
		t.Fatalf("phantom.Generate failed: %v", err)
	}

	seed := uint32(0)
	cfg := Default()
	cfg.Seed = &seed
	cfg.Noise.Prob = 1
	cfg.Noise.Std = 0.1

	tr, err := cfg.NewTransform()
	if err != nil {
		t.Fatalf("NewTransform failed: %v", err)
	}
	if !tr.Seeded() {
		t.Error("Expected seeded transform")
	}
	got, err := tr.Apply(img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	want, err := transforms.ApplyRicianNoise(img, 1, 0, 0.1, 0)
	if err != nil {
		t.Fatalf("ApplyRicianNoise failed: %v", err)
	}
	if !got.AllClose(want, 0, 0) {
		t.Error("Seeded config transform should match ApplyRicianNoise with the same seed")
	}
}

func TestConfig_NewTransformUnseeded(t *testing.T) {
	cfg := Default()
	tr, err := cfg.NewTransform()
	if err != nil {
		t.Fatalf("NewTransform failed: %v", err)
	}
	if tr.Seeded() {
		t.Error("Expected unseeded transform without a seed")
	}
}

func TestConfig_RunKey(t *testing.T) {
	seeded := func(mutate func(*Config)) Config {
		seed := uint32(0)
		cfg := Default()
		cfg.Seed = &seed
		if mutate != nil {
			mutate(&cfg)
		}
		return cfg
	}
	key := func(cfg Config) string {
		t.Helper()
		k, err := cfg.RunKey()
		if err != nil {
			t.Fatalf("RunKey failed: %v", err)
		}
		return k
	}

	base := key(seeded(nil))

	tests := []struct {
		name   string
		mutate func(*Config)
		same   bool
	}{
		{"same settings", func(c *Config) {}, true},
		{"other backend", func(c *Config) { c.Backend = "parallel"; c.Workers = 4 }, true},
		{"preview on", func(c *Config) { c.Output.Preview = true }, true},
		{"other std", func(c *Config) { c.Noise.Std = 0.5 }, false},
		{"other mean", func(c *Config) { c.Noise.Mean = 0.2 }, false},
		{"other prob", func(c *Config) { c.Noise.Prob = 0.5 }, false},
		{"relative", func(c *Config) { c.Noise.Relative = true }, false},
		{"other seed", func(c *Config) { s := uint32(1); c.Seed = &s }, false},
		{"other rng", func(c *Config) { c.RNG = "pcg" }, false},
		{"tag override", func(c *Config) { c.Output.Tags = map[string]string{"SeriesDescription": "x"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := key(seeded(tt.mutate))
			if (got == base) != tt.same {
				t.Errorf("RunKey equal to base = %v, want %v\nbase:\n%s\ngot:\n%s", got == base, tt.same, base, got)
			}
		})
	}
}

func TestConfig_RunKeyUnseeded(t *testing.T) {
	cfg := Default()
	a, err := cfg.RunKey()
	if err != nil {
		t.Fatalf("RunKey failed: %v", err)
	}
	b, err := cfg.RunKey()
	if err != nil {
		t.Fatalf("RunKey failed: %v", err)
	}
	if a == b {
		t.Error("Unseeded runs should get distinct keys")
	}
}
