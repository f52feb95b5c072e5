// Package rng provides explicitly seedable random states for noise generation.
//
// RandomState reproduces NumPy's legacy numpy.random.RandomState stream
// (MT19937, 53-bit doubles, polar Gaussian) so that noise drawn here matches
// reference arrays computed in Python for the same seed. PCG is a lighter
// alternative built on math/rand/v2 for callers that only need
// self-consistency.
package rng

// Source is the set of draws a noise transform consumes.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Uniform returns a value in [low, high).
	Uniform(low, high float64) float64
	// Normal returns a sample of N(mean, std^2).
	Normal(mean, std float64) float64
}

// Kind names a Source implementation.
type Kind string

const (
	NumPy Kind = "numpy" // MT19937, NumPy RandomState compatible
	PCG64 Kind = "pcg"   // math/rand/v2 PCG
)

// AllKinds returns all supported source kinds.
func AllKinds() []Kind {
	return []Kind{NumPy, PCG64}
}

// IsValid checks if a kind string names a supported source.
func IsValid(k string) bool {
	for _, valid := range AllKinds() {
		if string(valid) == k {
			return true
		}
	}
	return false
}

// NewSource returns a seeded source of the given kind.
// Unknown kinds fall back to NumPy.
func NewSource(kind Kind, seed uint32) Source {
	switch kind {
	case PCG64:
		return NewPCG(uint64(seed))
	case NumPy:
		fallthrough
	default:
		return New(seed)
	}
}

// FillNormal fills dst with consecutive Normal(mean, std) draws from src.
func FillNormal(src Source, dst []float64, mean, std float64) {
	for i := range dst {
		dst[i] = src.Normal(mean, std)
	}
}
