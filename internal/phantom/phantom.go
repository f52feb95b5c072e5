// Package phantom generates deterministic synthetic MR-like slices.
package phantom

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/mrsinham/noiseforge/internal/tensor"
)

// Options controls phantom generation.
type Options struct {
	Width   int
	Height  int
	Seed    uint64
	Circles int     // Number of bright disks (default 5)
	Texture float64 // Amplitude of the per-pixel texture, relative to 1 (default 0.05)
}

// DefaultOptions returns a 128x128 phantom configuration.
func DefaultOptions() Options {
	return Options{Width: 128, Height: 128, Seed: 0, Circles: 5, Texture: 0.05}
}

// Generate returns a height x width tensor with values in [0, 1].
//
// The slice is a radial background falling off from the center with a few
// disks of varying intensity and a fine texture on top. The seed makes the
// output reproducible.
func Generate(opts Options) (*tensor.Tensor, error) {
	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", width, height)
	}
	// Check for potential overflow on 32-bit systems
	if width > math.MaxInt/height {
		return nil, fmt.Errorf("dimensions %dx%d overflow", width, height)
	}
	if opts.Circles < 0 {
		return nil, fmt.Errorf("circles must be >= 0, got %d", opts.Circles)
	}
	if opts.Texture < 0 || opts.Texture > 1 {
		return nil, fmt.Errorf("texture must be in [0, 1], got %v", opts.Texture)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))

	type disk struct {
		cx, cy, r, intensity float64
	}
	minDim := float64(min(width, height))
	disks := make([]disk, opts.Circles)
	for i := range disks {
		r := minDim * (0.05 + rng.Float64()*0.1)
		disks[i] = disk{
			cx:        r + rng.Float64()*(float64(width)-2*r),
			cy:        r + rng.Float64()*(float64(height)-2*r),
			r:         r,
			intensity: 0.4 + rng.Float64()*0.4,
		}
	}

	img, err := tensor.New(height, width)
	if err != nil {
		return nil, err
	}
	data := img.Data()

	centerX, centerY := float64(width)/2, float64(height)/2
	maxDist := math.Sqrt(centerX*centerX + centerY*centerY)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			normalizedDist := math.Sqrt(dx*dx+dy*dy) / maxDist

			intensity := 0.2 * (1.0 - normalizedDist)
			for _, d := range disks {
				ddx := float64(x) - d.cx
				ddy := float64(y) - d.cy
				if ddx*ddx+ddy*ddy <= d.r*d.r {
					intensity = math.Max(intensity, d.intensity)
				}
			}
			intensity += (rng.Float64() - 0.5) * opts.Texture

			data[y*width+x] = math.Max(0, math.Min(1, intensity))
		}
	}

	return img, nil
}
