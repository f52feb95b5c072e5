package backend

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/floats"
)

func randomBuffers(n int, seed uint64) (img, n1, n2 []float64) {
	r := rand.New(rand.NewPCG(seed, seed))
	img = make([]float64, n)
	n1 = make([]float64, n)
	n2 = make([]float64, n)
	for i := 0; i < n; i++ {
		img[i] = r.Float64()
		n1[i] = r.NormFloat64() * 0.1
		n2[i] = r.NormFloat64() * 0.1
	}
	return img, n1, n2
}

func TestHost_RicianMagnitude(t *testing.T) {
	img := []float64{3, 0, -1}
	n1 := []float64{0, 0, 1}
	n2 := []float64{4, -2, 0}
	dst := make([]float64, 3)

	require.NoError(t, Host{}.RicianMagnitude(dst, img, n1, n2))
	assert.Equal(t, []float64{5, 2, 0}, dst)
}

func TestHost_InPlace(t *testing.T) {
	img := []float64{3, 6}
	require.NoError(t, Host{}.RicianMagnitude(img, img, []float64{0, 0}, []float64{4, 8}))
	assert.Equal(t, []float64{5, 10}, img)
}

func TestBackends_LengthMismatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, b := range []Backend{Host{}, Parallel{Workers: 4}} {
		t.Run(b.Name(), func(t *testing.T) {
			err := b.RicianMagnitude(make([]float64, 2), make([]float64, 3), make([]float64, 3), make([]float64, 3))
			assert.ErrorIs(t, err, ErrLength)
		})
	}
}

func TestParallel_MatchesHost(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name    string
		n       int
		workers int
	}{
		{"small single chunk", 100, 8},
		{"exact chunk multiple", 4 * minChunk, 4},
		{"ragged tail", 3*minChunk + 17, 3},
		{"default workers", 5*minChunk + 1, 0},
		{"one worker", 2 * minChunk, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, n1, n2 := randomBuffers(tt.n, 7)
			want := make([]float64, tt.n)
			got := make([]float64, tt.n)

			require.NoError(t, Host{}.RicianMagnitude(want, img, n1, n2))
			require.NoError(t, Parallel{Workers: tt.workers}.RicianMagnitude(got, img, n1, n2))

			assert.True(t, floats.Equal(want, got), "parallel output must be bit-identical to host")
			assert.GreaterOrEqual(t, floats.Min(got), 0.0)
		})
	}
}

func TestRicianMagnitude_NonNegative(t *testing.T) {
	img, n1, n2 := randomBuffers(1000, 3)
	for i := range img {
		img[i] = -img[i] * 10
	}
	dst := make([]float64, len(img))
	require.NoError(t, Host{}.RicianMagnitude(dst, img, n1, n2))
	for i, v := range dst {
		if v < 0 || math.IsNaN(v) {
			t.Fatalf("dst[%d] = %v, want >= 0", i, v)
		}
	}
}

func TestLookup(t *testing.T) {
	b, err := Lookup("", 0)
	require.NoError(t, err)
	assert.Equal(t, HostName, b.Name())

	b, err = Lookup("parallel", 6)
	require.NoError(t, err)
	assert.Equal(t, Parallel{Workers: 6}, b)

	_, err = Lookup("cuda", 0)
	assert.Error(t, err)
}
