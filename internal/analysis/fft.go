package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrShortSignal = errors.New("analysis: signal too short")

// Spectrum is the one-sided power spectrum of a real signal.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum removes the mean, applies a Hann window and returns |X_k|^2
// for k = 0..n/2 with frequencies k/(n*dt).
func PowerSpectrum(signal []float64, dt float64) (*Spectrum, error) {
	n := len(signal)
	if n < 4 {
		return nil, fmt.Errorf("%w: %d samples", ErrShortSignal, n)
	}
	if !(dt > 0) {
		return nil, fmt.Errorf("analysis: sample spacing must be positive, got %g", dt)
	}

	x := make([]float64, n)
	copy(x, signal)
	floats.AddConst(-stat.Mean(x, nil), x)
	window.Apply(x, window.Hann)

	coeffs := fft.FFTReal(x)
	half := n/2 + 1
	sp := &Spectrum{
		Freqs: make([]float64, half),
		Power: make([]float64, half),
	}
	for k := 0; k < half; k++ {
		a := cmplx.Abs(coeffs[k])
		sp.Freqs[k] = float64(k) / (float64(n) * dt)
		sp.Power[k] = a * a
	}
	return sp, nil
}

// DominantFrequency returns the frequency of the strongest non-DC component.
func DominantFrequency(signal []float64, dt float64) (float64, error) {
	sp, err := PowerSpectrum(signal, dt)
	if err != nil {
		return 0, err
	}
	k := floats.MaxIdx(sp.Power[1:]) + 1
	return sp.Freqs[k], nil
}
