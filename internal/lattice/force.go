package lattice

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/latticesim/internal/dynamo"
)

// heatRowChunk is the minimum number of heat-force rows handed to one worker.
const heatRowChunk = 64

// SpringForce returns the force on every layer for the given bond elongations.
// left[i] is x_i - x_{i-1} (zero for the surface layer) and right[i] is
// x_{i+1} - x_i (zero for the last layer):
//
//	F_i = -sum_j k[i-1][j] left_i^(j+1) + sum_j k[i][j] right_i^(j+1)
//
// Mismatched lengths or an empty spring-constant matrix panic.
func SpringForce(left, right []float64, k *mat.Dense) []float64 {
	n := len(left)
	if len(right) != n {
		panic(fmt.Sprintf("lattice: left/right length mismatch: %d != %d", n, len(right)))
	}
	rows, order := k.Dims()
	if rows != n {
		panic(fmt.Sprintf("lattice: spring constants have %d rows, want %d", rows, n))
	}
	if order == 0 {
		panic("lattice: anharmonic order must be at least 1")
	}

	f := make([]float64, n)
	for i := 0; i < n; i++ {
		var force float64
		if i > 0 && left[i] != 0 {
			force -= polyBond(k.RawRowView(i-1), left[i])
		}
		if i < n-1 && right[i] != 0 {
			force += polyBond(k.RawRowView(i), right[i])
		}
		f[i] = force
	}
	return f
}

// polyBond evaluates sum_j c[j] d^(j+1).
func polyBond(c []float64, d float64) float64 {
	var sum float64
	p := d
	for _, cj := range c {
		sum += cj * p
		p *= d
	}
	return sum
}

// DampingForce returns m_i γ_i (v_i - v_{i-1}) with v_{-1} = 0. A single
// layer has no bond and therefore no damping partner, so it gets zero force.
func DampingForce(v, gamma, m []float64) []float64 {
	n := len(v)
	if len(gamma) != n || len(m) != n {
		panic(fmt.Sprintf("lattice: damping inputs have lengths %d/%d/%d", n, len(gamma), len(m)))
	}

	f := make([]float64, n)
	if n < 2 {
		return f
	}
	prev := 0.0
	for i := 0; i < n; i++ {
		f[i] = m[i] * gamma[i] * (v[i] - prev)
		prev = v[i]
	}
	return f
}

// HeatForce converts the sticks matrix [T, L] into the equivalent driving
// force [T, L]. Each row treats the elongations of the first L-1 layers as an
// imposed bond displacement and negates the resulting spring force.
func HeatForce(sticks, k *mat.Dense) *mat.Dense {
	steps, n := sticks.Dims()
	if steps == 0 || n == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(steps, n, nil)

	dynamo.ParallelFor(steps, heatRowChunk, func(start, end int) {
		left := make([]float64, n)
		right := make([]float64, n)
		for t := start; t < end; t++ {
			row := sticks.RawRowView(t)
			copy(right[:n-1], row[:n-1])
			copy(left[1:], row[:n-1])

			f := SpringForce(left, right, k)
			dst := out.RawRowView(t)
			for i, v := range f {
				dst[i] = -v
			}
		}
	})
	return out
}
