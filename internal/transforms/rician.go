package transforms

import (
	"fmt"
	"math"

	"github.com/mrsinham/noiseforge/internal/backend"
	"github.com/mrsinham/noiseforge/internal/rng"
	"github.com/mrsinham/noiseforge/internal/tensor"
)

// RicianOptions configures a RicianNoise transform.
type RicianOptions struct {
	Prob float64 // Probability of applying noise on a call, in [0, 1]
	Mean float64 // Mean of both Gaussian fields
	Std  float64 // Upper bound of the sampled std (or the std itself with FixedStd)

	// Channel-wise mode draws a separate std and noise fields for every index
	// along axis 0. Means/Stds override Mean/Std per channel; when empty the
	// scalar value is used for every channel.
	ChannelWise bool
	Means       []float64
	Stds        []float64

	Relative bool // Scale the std bound by the population std of the image (or channel)
	FixedStd bool // Use Std directly instead of drawing Uniform(0, Std)

	NoiseDType tensor.DType    // Precision of the noise fields
	Backend    backend.Backend // Elementwise kernel (nil = backend.Host)
}

// DefaultRicianOptions returns the defaults used when a field is not configured.
func DefaultRicianOptions() RicianOptions {
	return RicianOptions{Prob: 0.1, Mean: 0, Std: 1}
}

// Validate checks parameters that do not depend on the image.
func (o *RicianOptions) Validate() error {
	if math.IsNaN(o.Prob) || o.Prob < 0 || o.Prob > 1 {
		return fmt.Errorf("%w: prob must be in [0, 1], got %v", ErrInvalidParameter, o.Prob)
	}
	if !isFinite(o.Mean) {
		return fmt.Errorf("%w: mean must be finite, got %v", ErrInvalidParameter, o.Mean)
	}
	if !isFinite(o.Std) || o.Std < 0 {
		return fmt.Errorf("%w: std must be finite and >= 0, got %v", ErrInvalidParameter, o.Std)
	}
	if !o.ChannelWise && (len(o.Means) > 0 || len(o.Stds) > 0) {
		return fmt.Errorf("%w: per-channel means/stds require channel-wise mode", ErrInvalidParameter)
	}
	for i, m := range o.Means {
		if !isFinite(m) {
			return fmt.Errorf("%w: means[%d] must be finite, got %v", ErrInvalidParameter, i, m)
		}
	}
	for i, s := range o.Stds {
		if !isFinite(s) || s < 0 {
			return fmt.Errorf("%w: stds[%d] must be finite and >= 0, got %v", ErrInvalidParameter, i, s)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// RicianNoise adds Rician noise to an image:
//
//	out = sqrt((img + N(mean, s))^2 + N(mean, s)^2), s ~ Uniform(0, std)
//
// Each call draws, in order: one gate Float64, the std s, len(img) values of
// the real field, then len(img) values of the imaginary field. In
// channel-wise mode the last three steps repeat per channel. The draw order
// is independent of the backend.
//
// A RicianNoise is not safe for concurrent use.
type RicianNoise struct {
	RandomizableTransform
	opts     RicianOptions
	backend  backend.Backend
	lastStds  []float64
	lastMeans []float64
}

// NewRicianNoise validates opts and returns an unseeded transform.
func NewRicianNoise(opts RicianOptions) (*RicianNoise, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	base, err := newRandomizableTransform(opts.Prob)
	if err != nil {
		return nil, err
	}

	b := opts.Backend
	if b == nil {
		b = backend.Host{}
	}
	opts.Means = append([]float64(nil), opts.Means...)
	opts.Stds = append([]float64(nil), opts.Stds...)

	return &RicianNoise{RandomizableTransform: base, opts: opts, backend: b}, nil
}

// Options returns a copy of the transform's configuration.
func (n *RicianNoise) Options() RicianOptions {
	o := n.opts
	o.Means = append([]float64(nil), n.opts.Means...)
	o.Stds = append([]float64(nil), n.opts.Stds...)
	o.Backend = n.backend
	return o
}

// LastStds returns the effective std used for each channel by the last call
// that applied noise (one value outside channel-wise mode). It is empty when
// the last call was gated off.
func (n *RicianNoise) LastStds() []float64 {
	return append([]float64(nil), n.lastStds...)
}

// LastMeans returns the mean used for each channel by the last call that
// applied noise, aligned with LastStds.
func (n *RicianNoise) LastMeans() []float64 {
	return append([]float64(nil), n.lastMeans...)
}

// Apply draws the gate and returns a noised copy of img, or an unmodified
// copy when the gate is off. img itself is never modified.
func (n *RicianNoise) Apply(img *tensor.Tensor) (*tensor.Tensor, error) {
	return n.ApplyRandomized(img, true)
}

// ApplyRandomized is Apply with control over the gate draw: with randomize
// false the decision of the previous Randomize call is reused.
//
// The image and per-channel parameters are checked before any draw, so a
// failed call leaves the random stream untouched.
func (n *RicianNoise) ApplyRandomized(img *tensor.Tensor, randomize bool) (*tensor.Tensor, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("rician noise: %w: %w", ErrShape, err)
	}

	var means, stds []float64
	if n.opts.ChannelWise {
		if img.NDim() < 2 {
			return nil, fmt.Errorf("rician noise: %w: channel-wise mode needs a channel axis, got shape %v", ErrShape, img.Shape())
		}
		var err error
		if means, err = repeatParam("means", n.opts.Means, n.opts.Mean, img.Dim(0)); err != nil {
			return nil, err
		}
		if stds, err = repeatParam("stds", n.opts.Stds, n.opts.Std, img.Dim(0)); err != nil {
			return nil, err
		}
	}

	if randomize {
		n.Randomize()
	}
	n.lastStds, n.lastMeans = nil, nil
	if !n.doTransform {
		return img.Clone(), nil
	}

	if !n.opts.ChannelWise {
		std := n.opts.Std
		if n.opts.Relative {
			std *= img.PopStd()
		}
		return n.addNoise(img, n.opts.Mean, std)
	}

	out := img.Clone()
	for i := range means {
		ch, err := out.Channel(i)
		if err != nil {
			return nil, fmt.Errorf("rician noise: channel %d: %w", i, err)
		}
		std := stds[i]
		if n.opts.Relative {
			std *= ch.PopStd()
		}
		noised, err := n.addNoise(ch, means[i], std)
		if err != nil {
			return nil, fmt.Errorf("rician noise: channel %d: %w", i, err)
		}
		if err := out.SetChannel(i, noised); err != nil {
			return nil, fmt.Errorf("rician noise: channel %d: %w", i, err)
		}
	}
	return out, nil
}

func (n *RicianNoise) addNoise(img *tensor.Tensor, mean, std float64) (*tensor.Tensor, error) {
	s := std
	if !n.opts.FixedStd {
		s = n.R.Uniform(0, std)
	}
	n.lastStds = append(n.lastStds, s)
	n.lastMeans = append(n.lastMeans, mean)

	size := img.Len()
	re := make([]float64, size)
	im := make([]float64, size)
	rng.FillNormal(n.R, re, mean, s)
	rng.FillNormal(n.R, im, mean, s)
	if n.opts.NoiseDType == tensor.Float32 {
		roundFloat32(re)
		roundFloat32(im)
	}

	out := img.Clone()
	if err := n.backend.RicianMagnitude(out.Data(), img.Data(), re, im); err != nil {
		return nil, fmt.Errorf("rician noise: %s backend: %w", n.backend.Name(), err)
	}
	if out.DType() == tensor.Float32 {
		roundFloat32(out.Data())
	}
	return out, nil
}

func roundFloat32(v []float64) {
	for i, x := range v {
		v[i] = float64(float32(x))
	}
}

func repeatParam(name string, values []float64, scalar float64, channels int) ([]float64, error) {
	if len(values) == 0 {
		out := make([]float64, channels)
		for i := range out {
			out[i] = scalar
		}
		return out, nil
	}
	if len(values) != channels {
		return nil, fmt.Errorf("rician noise: %w: %d %s for %d channels", ErrInvalidParameter, len(values), name, channels)
	}
	return append([]float64(nil), values...), nil
}

// ApplyRicianNoise seeds a new transform and applies it once.
func ApplyRicianNoise(img *tensor.Tensor, prob, mean, std float64, seed uint32) (*tensor.Tensor, error) {
	opts := DefaultRicianOptions()
	opts.Prob, opts.Mean, opts.Std = prob, mean, std

	n, err := NewRicianNoise(opts)
	if err != nil {
		return nil, err
	}
	n.SetRandomState(seed)
	return n.Apply(img)
}
