package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/mrsinham/noiseforge/internal/dicomio"
	"github.com/mrsinham/noiseforge/internal/phantom"
	"github.com/mrsinham/noiseforge/internal/preview"
)

func runPhantom(args []string) error {
	flags := pflag.NewFlagSet("phantom", pflag.ContinueOnError)
	flags.Usage = printHelp

	def := phantom.DefaultOptions()
	output := flags.String("output", "", "Output DICOM file")
	size := flags.Int("size", def.Width, "Width and height in pixels")
	seed := flags.Uint64("seed", def.Seed, "Seed for the phantom layout")
	circles := flags.Int("circles", def.Circles, "Number of bright disks")
	description := flags.String("description", "", "SeriesDescription")
	previewPNG := flags.Bool("preview", false, "Write a PNG of the phantom")
	quiet := flags.Bool("quiet", false, "Only print errors")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *output == "" {
		return errors.New("--output is required")
	}

	opts := def
	opts.Width, opts.Height = *size, *size
	opts.Seed = *seed
	opts.Circles = *circles

	img, err := phantom.Generate(opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	err = dicomio.WritePhantom(*output, img, dicomio.PhantomOptions{
		Seed:        *seed,
		Description: *description,
	})
	if err != nil {
		return err
	}

	if *previewPNG {
		panel, err := preview.Render(img, preview.Window{Low: 0, High: 1}, fmt.Sprintf("phantom seed %d", *seed))
		if err != nil {
			return err
		}
		if err := preview.WritePNG(strings.TrimSuffix(*output, filepath.Ext(*output))+".png", panel); err != nil {
			return err
		}
	}

	if !*quiet {
		fmt.Printf("✓ Phantom written to %s (%dx%d, seed %d)\n", *output, *size, *size, *seed)
	}
	return nil
}
