package rng

import (
	"math"
	"math/rand/v2"
)

const (
	mtN       = 624
	mtM       = 397
	matrixA   = 0x9908b0df
	upperMask = 0x80000000
	lowerMask = 0x7fffffff
)

// RandomState is a Mersenne Twister state compatible with NumPy's legacy
// RandomState. It is not safe for concurrent use.
type RandomState struct {
	mt  [mtN]uint32
	mti int

	hasGauss bool
	gauss    float64

	seeded bool
}

// New returns a state seeded like numpy.random.RandomState(seed).
func New(seed uint32) *RandomState {
	rs := &RandomState{}
	rs.Seed(seed)
	return rs
}

// NewUnseeded returns a state seeded from runtime entropy.
// Its draws are not reproducible.
func NewUnseeded() *RandomState {
	rs := &RandomState{}
	rs.Seed(rand.Uint32())
	rs.seeded = false
	return rs
}

// Seed resets the state as numpy.random.seed(seed) does, including the
// cached Gaussian.
func (rs *RandomState) Seed(seed uint32) {
	rs.mt[0] = seed
	for i := 1; i < mtN; i++ {
		rs.mt[i] = 1812433253*(rs.mt[i-1]^(rs.mt[i-1]>>30)) + uint32(i)
	}
	rs.mti = mtN
	rs.hasGauss = false
	rs.gauss = 0
	rs.seeded = true
}

// Seeded reports whether the state was explicitly seeded.
func (rs *RandomState) Seeded() bool {
	return rs.seeded
}

// Clone returns an independent copy positioned at the same point of the stream.
func (rs *RandomState) Clone() *RandomState {
	c := *rs
	return &c
}

func (rs *RandomState) generate() {
	mag01 := [2]uint32{0, matrixA}
	var y uint32
	kk := 0
	for ; kk < mtN-mtM; kk++ {
		y = (rs.mt[kk] & upperMask) | (rs.mt[kk+1] & lowerMask)
		rs.mt[kk] = rs.mt[kk+mtM] ^ (y >> 1) ^ mag01[y&1]
	}
	for ; kk < mtN-1; kk++ {
		y = (rs.mt[kk] & upperMask) | (rs.mt[kk+1] & lowerMask)
		rs.mt[kk] = rs.mt[kk+(mtM-mtN)] ^ (y >> 1) ^ mag01[y&1]
	}
	y = (rs.mt[mtN-1] & upperMask) | (rs.mt[0] & lowerMask)
	rs.mt[mtN-1] = rs.mt[mtM-1] ^ (y >> 1) ^ mag01[y&1]
	rs.mti = 0
}

// Uint32 returns the next tempered 32-bit output.
func (rs *RandomState) Uint32() uint32 {
	if rs.mti >= mtN {
		rs.generate()
	}
	y := rs.mt[rs.mti]
	rs.mti++

	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// Float64 returns a 53-bit precision value in [0, 1), consuming two outputs.
func (rs *RandomState) Float64() float64 {
	a := rs.Uint32() >> 5
	b := rs.Uint32() >> 6
	return (float64(a)*67108864.0 + float64(b)) / 9007199254740992.0
}

// Uniform returns a value in [low, high).
func (rs *RandomState) Uniform(low, high float64) float64 {
	return low + (high-low)*rs.Float64()
}

// StandardNormal returns a N(0, 1) sample using the polar method. Every
// second call returns the value cached by the previous one.
func (rs *RandomState) StandardNormal() float64 {
	if rs.hasGauss {
		rs.hasGauss = false
		return rs.gauss
	}

	var x1, x2, r2 float64
	for {
		x1 = 2.0*rs.Float64() - 1.0
		x2 = 2.0*rs.Float64() - 1.0
		r2 = x1*x1 + x2*x2
		if r2 < 1.0 && r2 != 0.0 {
			break
		}
	}
	f := math.Sqrt(-2.0 * math.Log(r2) / r2)
	rs.gauss = f * x1
	rs.hasGauss = true
	return f * x2
}

// Normal returns mean + std*StandardNormal(). A zero std still consumes a draw.
func (rs *RandomState) Normal(mean, std float64) float64 {
	return mean + std*rs.StandardNormal()
}
