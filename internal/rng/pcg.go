package rng

import "math/rand/v2"

// PCG is a Source backed by math/rand/v2's PCG generator.
type PCG struct {
	r *rand.Rand
}

// NewPCG creates a PCG source. The same seed always yields the same stream.
func NewPCG(seed uint64) *PCG {
	return &PCG{r: rand.New(rand.NewPCG(seed, seed))}
}

// Float64 returns a value in [0, 1).
func (p *PCG) Float64() float64 {
	return p.r.Float64()
}

// Uniform returns a value in [low, high).
func (p *PCG) Uniform(low, high float64) float64 {
	return low + (high-low)*p.r.Float64()
}

// Normal returns a sample of N(mean, std^2).
func (p *PCG) Normal(mean, std float64) float64 {
	return mean + std*p.r.NormFloat64()
}
