// Package transforms provides seeded random intensity transforms for 2D/3D
// medical images.
//
// Every transform owns its random source. A fixed seed set with
// SetRandomState makes the whole sequence of calls on that instance
// reproducible; an instance built without a seed draws from an
// entropy-seeded state.
package transforms

import (
	"errors"
	"fmt"
	"math"

	"github.com/mrsinham/noiseforge/internal/rng"
)

var (
	// ErrInvalidParameter is returned for out-of-range transform parameters.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrShape is returned for nil, empty or malformed images.
	ErrShape = errors.New("invalid image")
)

// Randomizable holds the random source owned by a transform.
type Randomizable struct {
	R      rng.Source
	seeded bool
}

// SetRandomState reseeds the owned source with a fresh NumPy-compatible
// state.
func (r *Randomizable) SetRandomState(seed uint32) {
	r.R = rng.New(seed)
	r.seeded = true
}

// SetRandomSource replaces the owned source. Passing a source that is also
// used elsewhere makes both consumers advance the same stream.
func (r *Randomizable) SetRandomSource(src rng.Source) {
	r.R = src
	r.seeded = true
}

// Seeded reports whether the source was set explicitly.
func (r *Randomizable) Seeded() bool {
	return r.seeded
}

// RandomizableTransform adds a probability gate to Randomizable.
type RandomizableTransform struct {
	Randomizable
	prob        float64
	doTransform bool
}

func newRandomizableTransform(prob float64) (RandomizableTransform, error) {
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return RandomizableTransform{}, fmt.Errorf("%w: prob must be in [0, 1], got %v", ErrInvalidParameter, prob)
	}
	return RandomizableTransform{
		Randomizable: Randomizable{R: rng.NewUnseeded()},
		prob:         prob,
	}, nil
}

// Prob returns the probability of applying the transform.
func (t *RandomizableTransform) Prob() float64 {
	return t.prob
}

// Randomize draws the gate for the next call. It always consumes exactly one
// Float64, including at prob 0 and prob 1, so the stream stays aligned with
// reference computations.
func (t *RandomizableTransform) Randomize() bool {
	t.doTransform = t.R.Float64() < t.prob
	return t.doTransform
}

// Applied reports the outcome of the last gate draw.
func (t *RandomizableTransform) Applied() bool {
	return t.doTransform
}
