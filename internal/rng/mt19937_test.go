package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomState_Float64MatchesNumPy(t *testing.T) {
	// numpy.random.seed(0); numpy.random.random(5)
	expected := []float64{
		0.5488135039273248,
		0.7151893663724195,
		0.6027633760716439,
		0.5448831829968969,
		0.4236547993389047,
	}

	rs := New(0)
	for i, want := range expected {
		assert.InDelta(t, want, rs.Float64(), 1e-15, "Float64()[%d]", i)
	}
}

func TestRandomState_UniformMatchesNumPy(t *testing.T) {
	// numpy.random.RandomState(42).uniform(-10, 10, 10)
	expected := []float64{
		-2.509197623052750,
		9.014286128198323,
		4.639878836228101,
		1.973169683940732,
		-6.879627191151270,
		-6.880109593275947,
		-8.838327756636010,
		7.323522915498703,
		2.022300234864176,
		4.161451555920910,
	}

	rs := New(42)
	for i, want := range expected {
		assert.InDelta(t, want, rs.Uniform(-10, 10), 1e-12, "Uniform(-10, 10)[%d]", i)
	}
}

func TestRandomState_StandardNormalMatchesNumPy(t *testing.T) {
	// numpy.random.seed(0); numpy.random.randn(5)
	expected := []float64{1.76405235, 0.40015721, 0.97873798, 2.2408932, 1.86755799}

	rs := New(0)
	for i, want := range expected {
		assert.InDelta(t, want, rs.StandardNormal(), 1e-8, "StandardNormal()[%d]", i)
	}
}

func TestRandomState_NormalScalesStandardNormal(t *testing.T) {
	a := New(7)
	b := New(7)

	for i := 0; i < 20; i++ {
		z := a.StandardNormal()
		require.Equal(t, 1.5+0.25*z, b.Normal(1.5, 0.25), "Normal(1.5, 0.25)[%d]", i)
	}
}

func TestRandomState_ZeroStdStillConsumesDraws(t *testing.T) {
	a := New(3)
	b := New(3)

	assert.Equal(t, 2.0, a.Normal(2, 0))
	b.StandardNormal()

	assert.Equal(t, b.Float64(), a.Float64(), "zero std draw should advance the stream like any other draw")
}

func TestRandomState_SeedResetsStream(t *testing.T) {
	rs := New(11)
	first := []float64{rs.Float64(), rs.StandardNormal(), rs.Uniform(0, 3)}

	// Leave a cached Gaussian behind before reseeding.
	rs.StandardNormal()
	rs.Seed(11)

	second := []float64{rs.Float64(), rs.StandardNormal(), rs.Uniform(0, 3)}
	assert.Equal(t, first, second)
}

func TestRandomState_Clone(t *testing.T) {
	rs := New(5)
	rs.Float64()
	rs.StandardNormal() // leaves a cached value

	c := rs.Clone()
	for i := 0; i < 1000; i++ {
		require.Equal(t, rs.StandardNormal(), c.StandardNormal(), "clone diverged at draw %d", i)
	}

	rs.Float64()
	assert.NotEqual(t, rs.Float64(), c.Float64(), "clone should advance independently")
}

func TestRandomState_Seeded(t *testing.T) {
	assert.True(t, New(1).Seeded())

	rs := NewUnseeded()
	assert.False(t, rs.Seeded())
	rs.Seed(9)
	assert.True(t, rs.Seeded())
}

func TestRandomState_Float64Range(t *testing.T) {
	rs := New(123)
	for i := 0; i < 100000; i++ {
		v := rs.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64() = %v out of [0, 1)", v)
		}
	}
}
