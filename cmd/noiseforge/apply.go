package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/mrsinham/noiseforge/internal/config"
	"github.com/mrsinham/noiseforge/internal/dicomio"
	"github.com/mrsinham/noiseforge/internal/preview"
	"github.com/mrsinham/noiseforge/internal/transforms"
	"github.com/mrsinham/noiseforge/internal/util"
)

// applyFlags holds the raw apply command line.
type applyFlags struct {
	input      string
	output     string
	configFile string
	saveConfig string
	quiet      bool
	tags       []string
}

func runApply(args []string) error {
	flags := pflag.NewFlagSet("apply", pflag.ContinueOnError)
	flags.Usage = printHelp

	var f applyFlags
	flags.StringVar(&f.input, "input", "", "DICOM file or directory")
	flags.StringVar(&f.output, "output", "", "Output directory")
	flags.StringVar(&f.configFile, "config", "", "Load configuration from YAML file")
	flags.StringVar(&f.saveConfig, "save-config", "", "Save configuration to YAML file")
	flags.BoolVar(&f.quiet, "quiet", false, "Only print errors")
	flags.StringArrayVar(&f.tags, "tag", nil, "Override tag: 'Name=Value' (repeatable)")

	def := config.Default()
	seed := flags.Uint32("seed", 0, "Seed for reproducibility")
	rngKind := flags.String("rng", def.RNG, "Random generator: numpy, pcg")
	prob := flags.Float64("prob", def.Noise.Prob, "Probability of adding noise")
	mean := flags.Float64("mean", def.Noise.Mean, "Mean of the Gaussian fields")
	std := flags.Float64("std", def.Noise.Std, "Upper bound of the sampled std")
	fixedStd := flags.Bool("fixed-std", false, "Use --std directly")
	relative := flags.Bool("relative", false, "Scale std by the image's standard deviation")
	channelWise := flags.Bool("channel-wise", false, "Noise each frame independently")
	dtype := flags.String("dtype", def.Noise.DType, "Noise precision: float64, float32")
	backendName := flags.String("backend", def.Backend, "Kernel backend: host, parallel")
	workers := flags.Int("workers", 0, "Workers for the parallel backend")
	previewPNG := flags.Bool("preview", false, "Write a side-by-side PNG preview")

	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg := def
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags given explicitly win over the config file.
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("rng") {
		cfg.RNG = *rngKind
	}
	if flags.Changed("prob") {
		cfg.Noise.Prob = *prob
	}
	if flags.Changed("mean") {
		cfg.Noise.Mean = *mean
	}
	if flags.Changed("std") {
		cfg.Noise.Std = *std
	}
	if flags.Changed("fixed-std") {
		cfg.Noise.FixedStd = *fixedStd
	}
	if flags.Changed("relative") {
		cfg.Noise.Relative = *relative
	}
	if flags.Changed("channel-wise") {
		cfg.Noise.ChannelWise = *channelWise
	}
	if flags.Changed("dtype") {
		cfg.Noise.DType = *dtype
	}
	if flags.Changed("backend") {
		cfg.Backend = *backendName
	}
	if flags.Changed("workers") {
		cfg.Workers = *workers
	}
	if flags.Changed("preview") {
		cfg.Output.Preview = *previewPNG
	}
	if err := mergeTagFlags(&cfg, f.tags); err != nil {
		return err
	}

	if f.input == "" {
		return errors.New("--input is required")
	}
	if f.output == "" {
		return errors.New("--output is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return apply(cfg, f)
}

// mergeTagFlags adds --tag pairs to the config's tag map under their
// canonical names, replacing config entries for the same tag.
func mergeTagFlags(cfg *config.Config, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}
	overrides, err := util.ParseTagOverrides(pairs)
	if err != nil {
		return err
	}

	merged := make(map[string]string, len(cfg.Output.Tags)+len(overrides))
	for name, value := range cfg.Output.Tags {
		info, err := util.GetTagByName(name)
		if err != nil {
			return err
		}
		merged[info.Name] = value
	}
	for _, o := range overrides {
		merged[o.Info.Name] = o.Value
	}
	cfg.Output.Tags = merged
	return nil
}

// inputFile is a source file and its path relative to the input root.
type inputFile struct {
	path string
	rel  string
}

// collectInputs returns every regular file under root in lexical order. A
// file root yields itself.
func collectInputs(root string) ([]inputFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []inputFile{{path: root, rel: filepath.Base(root)}}, nil
	}

	var files []inputFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || d.Name() == "DICOMDIR" || strings.HasSuffix(d.Name(), ".png") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, inputFile{path: path, rel: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })
	return files, nil
}

func apply(cfg config.Config, f applyFlags) error {
	inputs, err := collectInputs(f.input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	overrides, err := cfg.TagOverrides()
	if err != nil {
		return err
	}
	transform, err := cfg.NewTransform()
	if err != nil {
		return err
	}

	logf := func(format string, a ...any) {
		if !f.quiet {
			fmt.Printf(format, a...)
		}
	}

	runKey, err := cfg.RunKey()
	if err != nil {
		return err
	}
	seedLabel := "none (non-reproducible)"
	if cfg.Seed != nil {
		seedLabel = fmt.Sprintf("%d", *cfg.Seed)
	}

	logf("noiseforge\n")
	logf("==========\n\n")
	logf("Input:   %s (%d files)\n", f.input, len(inputs))
	logf("Output:  %s\n", f.output)
	logf("Seed:    %s (%s)\n", seedLabel, cfg.RNG)
	logf("Noise:   prob=%g mean=%g std=%g relative=%v fixed-std=%v channel-wise=%v dtype=%s\n",
		cfg.Noise.Prob, cfg.Noise.Mean, cfg.Noise.Std, cfg.Noise.Relative, cfg.Noise.FixedStd, cfg.Noise.ChannelWise, cfg.Noise.DType)
	logf("Backend: %s\n", cfg.Backend)
	for _, o := range overrides {
		logf("Tag:     %s (%s) = %q\n", o.Info.Name, o.Info.Scope, o.Value)
	}
	logf("\n")

	if err := os.MkdirAll(f.output, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	written, noised := 0, 0
	for i, in := range inputs {
		img, err := dicomio.ReadImage(in.path)
		if err != nil {
			logf("[%d/%d] Skipping %s: %v\n", i+1, len(inputs), in.rel, err)
			continue
		}

		out, err := transform.Apply(img.Pixels)
		if err != nil {
			return fmt.Errorf("%s: %w", in.rel, err)
		}

		dst := filepath.Join(f.output, in.rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		err = dicomio.WriteDerived(dst, img, out, dicomio.DerivedOptions{
			RunKey:      runKey,
			Name:        filepath.ToSlash(in.rel),
			Description: derivationDescription(transform),
			Overrides:   overrides,
		})
		if err != nil {
			return err
		}
		written++

		status := "skipped by gate"
		if transform.Applied() {
			noised++
			status = fmt.Sprintf("std=%s", formatValues(transform.LastStds()))
		}
		logf("[%d/%d] %s -> %s (%s)\n", i+1, len(inputs), in.rel, dst, status)

		if cfg.Output.Preview {
			panel, err := preview.SideBySide(img.Pixels, out, "original", "noised")
			if err != nil {
				return fmt.Errorf("%s: preview: %w", in.rel, err)
			}
			if err := preview.WritePNG(strings.TrimSuffix(dst, filepath.Ext(dst))+".png", panel); err != nil {
				return fmt.Errorf("%s: preview: %w", in.rel, err)
			}
		}
	}

	if written == 0 {
		return fmt.Errorf("no readable DICOM images under %s", f.input)
	}

	if f.saveConfig != "" {
		if err := config.Save(cfg, f.saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save config: %v\n", err)
		} else {
			logf("Configuration saved to %s\n", f.saveConfig)
		}
	}

	logf("\n✓ Noise complete!\n")
	logf("  %d files written, %d noised\n", written, noised)
	return nil
}

// derivationDescription reports the per-channel means and stds the last
// call actually used.
func derivationDescription(t *transforms.RicianNoise) string {
	if !t.Applied() {
		return "Rician noise (not applied)"
	}
	return fmt.Sprintf("Rician noise mean=%s std=%s", formatValues(t.LastMeans()), formatValues(t.LastStds()))
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.4g", v)
	}
	return strings.Join(parts, ",")
}
