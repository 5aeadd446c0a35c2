package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Summary condenses a strain map.
type Summary struct {
	MaxStrain float64 `json:"max_strain"`
	MinStrain float64 `json:"min_strain"`
	PeakDelay float64 `json:"peak_delay"` // delay of the largest |strain|
	PeakLayer int     `json:"peak_layer"`
	FinalMean float64 `json:"final_mean"`
	// Frequency of the layer-averaged strain; zero when the delays are not
	// uniform or too few.
	DominantFreq float64 `json:"dominant_freq,omitempty"`
}

// Uniform reports the spacing of delays if they are evenly spaced.
func Uniform(delays []float64) (float64, bool) {
	if len(delays) < 2 {
		return 0, false
	}
	dt := (delays[len(delays)-1] - delays[0]) / float64(len(delays)-1)
	if !(dt > 0) {
		return 0, false
	}
	for i := 1; i < len(delays); i++ {
		if math.Abs(delays[i]-delays[i-1]-dt) > 1e-6*dt {
			return 0, false
		}
	}
	return dt, true
}

// LayerAverage returns the mean of columns [from, to) for every row.
func LayerAverage(m *mat.Dense, from, to int) []float64 {
	rows, cols := m.Dims()
	if from < 0 {
		from = 0
	}
	if to > cols {
		to = cols
	}
	out := make([]float64, rows)
	if from >= to {
		return out
	}
	for t := range out {
		out[t] = stat.Mean(m.RawRowView(t)[from:to], nil)
	}
	return out
}

// Peak locates the entry of largest magnitude.
func Peak(m *mat.Dense) (value float64, row, col int) {
	rows, cols := m.Dims()
	for t := 0; t < rows; t++ {
		for i := 0; i < cols; i++ {
			if v := m.At(t, i); math.Abs(v) > math.Abs(value) {
				value, row, col = v, t, i
			}
		}
	}
	return value, row, col
}

func Summarize(delays []float64, strain *mat.Dense) (*Summary, error) {
	rows, cols := strain.Dims()
	if rows != len(delays) {
		return nil, fmt.Errorf("analysis: %d delays for %d strain rows", len(delays), rows)
	}
	if cols == 0 {
		return nil, fmt.Errorf("analysis: empty strain map")
	}

	raw := strain.RawMatrix()
	var all []float64
	if raw.Stride == cols {
		all = raw.Data[:rows*cols]
	} else {
		all = mat.DenseCopyOf(strain).RawMatrix().Data
	}

	_, row, col := Peak(strain)
	mean := LayerAverage(strain, 0, cols)
	s := &Summary{
		MaxStrain: floats.Max(all),
		MinStrain: floats.Min(all),
		PeakDelay: delays[row],
		PeakLayer: col,
		FinalMean: mean[rows-1],
	}
	if dt, ok := Uniform(delays); ok {
		if f, err := DominantFrequency(mean, dt); err == nil {
			s.DominantFreq = f
		}
	}
	return s, nil
}

// ArrivalDelay returns the first delay at which |series| rises through
// frac times its maximum, linearly interpolated between samples.
func ArrivalDelay(delays, series []float64, frac float64) (float64, bool) {
	if len(series) == 0 || len(series) != len(delays) {
		return 0, false
	}
	peak := 0.0
	for _, v := range series {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 {
		return 0, false
	}
	threshold := frac * peak

	prev := math.Abs(series[0])
	if prev >= threshold {
		return delays[0], true
	}
	for i := 1; i < len(series); i++ {
		curr := math.Abs(series[i])
		if prev < threshold && curr >= threshold {
			w := (threshold - prev) / (curr - prev)
			if math.IsNaN(w) || math.IsInf(w, 0) {
				w = 0.5
			}
			return delays[i-1] + w*(delays[i]-delays[i-1]), true
		}
		prev = curr
	}
	return 0, false
}
