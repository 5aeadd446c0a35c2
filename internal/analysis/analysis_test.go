package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func sine(n int, f, dt float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 3 + math.Sin(2*math.Pi*f*float64(i)*dt)
	}
	return out
}

func TestDominantFrequency(t *testing.T) {
	tests := []struct {
		n  int
		f  float64
		dt float64
	}{
		{256, 8, 1.0 / 256},
		{300, 1e11, 1e-13},
		{401, 2.5e11, 1e-13},
	}
	for _, tt := range tests {
		got, err := DominantFrequency(sine(tt.n, tt.f, tt.dt), tt.dt)
		require.NoError(t, err)
		resolution := 1 / (float64(tt.n) * tt.dt)
		assert.InDelta(t, tt.f, got, resolution, "n=%d", tt.n)
	}
}

func TestPowerSpectrum(t *testing.T) {
	sp, err := PowerSpectrum(sine(64, 4, 1.0/64), 1.0/64)
	require.NoError(t, err)
	assert.Len(t, sp.Freqs, 33)
	assert.Len(t, sp.Power, 33)
	assert.Equal(t, 32.0, sp.Freqs[32])
	assert.Equal(t, 4, floats.MaxIdx(sp.Power))

	_, err = PowerSpectrum([]float64{1, 2}, 1)
	assert.ErrorIs(t, err, ErrShortSignal)
	_, err = PowerSpectrum(make([]float64, 8), 0)
	assert.Error(t, err)
}

func TestUniform(t *testing.T) {
	dt, ok := Uniform([]float64{0, 0.5, 1, 1.5})
	assert.True(t, ok)
	assert.Equal(t, 0.5, dt)

	_, ok = Uniform([]float64{0, 0.1, 1})
	assert.False(t, ok)
	_, ok = Uniform([]float64{1})
	assert.False(t, ok)
	_, ok = Uniform([]float64{1, 1, 1})
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{
		0, 0,
		1e-3, -4e-3,
		2e-3, 2e-3,
	})
	s, err := Summarize([]float64{0, 1, 2}, m)
	require.NoError(t, err)
	assert.Equal(t, 2e-3, s.MaxStrain)
	assert.Equal(t, -4e-3, s.MinStrain)
	assert.Equal(t, 1.0, s.PeakDelay)
	assert.Equal(t, 1, s.PeakLayer)
	assert.InDelta(t, 2e-3, s.FinalMean, 1e-18)
	// Three samples are too few for a spectrum.
	assert.Zero(t, s.DominantFreq)

	_, err = Summarize([]float64{0}, m)
	assert.Error(t, err)
}

func TestLayerAverage(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	assert.Equal(t, []float64{2, 5}, LayerAverage(m, 0, 3))
	assert.Equal(t, []float64{2.5, 5.5}, LayerAverage(m, 1, 10))
	assert.Equal(t, []float64{0, 0}, LayerAverage(m, 2, 1))
}

func TestArrivalDelay(t *testing.T) {
	delays := []float64{0, 1, 2, 3, 4}

	got, ok := ArrivalDelay(delays, []float64{0, 0, 0.2, 1, 0.5}, 0.5)
	require.True(t, ok)
	assert.InDelta(t, 2.375, got, 1e-12)

	got, ok = ArrivalDelay(delays, []float64{0, 0, -1, 0, 0}, 0.5)
	require.True(t, ok)
	assert.InDelta(t, 1.5, got, 1e-12)

	_, ok = ArrivalDelay(delays, make([]float64, 5), 0.5)
	assert.False(t, ok)
	_, ok = ArrivalDelay(delays, []float64{1}, 0.5)
	assert.False(t, ok)
}

func TestHeatmapASCII(t *testing.T) {
	m := mat.NewDense(4, 4, nil)
	m.Set(3, 3, -1)
	m.Set(0, 0, 0.5)

	out := HeatmapASCII(m, 2, 2)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "= ", lines[0])
	assert.Equal(t, " @", lines[1])

	assert.Empty(t, HeatmapASCII(&mat.Dense{}, 10, 10))
	assert.Len(t, strings.Split(strings.TrimRight(HeatmapASCII(m, 80, 80), "\n"), "\n"), 4)
}
