// Package expansion turns temperature histories into heat-induced layer
// elongations ("sticks") that drive the lattice.
package expansion

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Sample is the part of a layer stack the expansion model reads.
type Sample interface {
	PropertyVector(name string) ([]float64, error)
	LinThermExp() *mat.Dense
}

// Linear models every layer as expanding linearly with the temperature rise
// of each subsystem relative to the first delay:
//
//	sticks_k[t,i] = d_i * alpha[i,k] * (T_k[t,i] - T_k[0,i])
//
// and sums the subsystem contributions.
type Linear struct{}

func (Linear) Name() string { return "linear" }

// Sticks returns the total sticks [T, L] and the per-subsystem sticks. Delta
// maps are accepted for interface compatibility and only shape-checked.
func (Linear) Sticks(sample Sample, tempMaps, deltaTempMaps []*mat.Dense) (*mat.Dense, []*mat.Dense, error) {
	thickness, err := sample.PropertyVector("thickness")
	if err != nil {
		return nil, nil, err
	}
	alpha := sample.LinThermExp()
	n := len(thickness)
	if n == 0 {
		return nil, nil, fmt.Errorf("expansion: sample has no layers")
	}
	if len(tempMaps) == 0 {
		return nil, nil, fmt.Errorf("expansion: no temperature maps")
	}
	if r, k := alpha.Dims(); r != n || k != len(tempMaps) {
		return nil, nil, fmt.Errorf("expansion: %dx%d expansion coefficients for %d layers and %d subsystems", r, k, n, len(tempMaps))
	}
	if len(deltaTempMaps) != 0 && len(deltaTempMaps) != len(tempMaps) {
		return nil, nil, fmt.Errorf("expansion: %d delta maps for %d temperature maps", len(deltaTempMaps), len(tempMaps))
	}

	steps, _ := tempMaps[0].Dims()
	total := mat.NewDense(steps, n, nil)
	sub := make([]*mat.Dense, len(tempMaps))

	for k, temp := range tempMaps {
		if r, c := temp.Dims(); r != steps || c != n {
			return nil, nil, fmt.Errorf("expansion: temperature map %d is %dx%d, want %dx%d", k, r, c, steps, n)
		}
		if len(deltaTempMaps) != 0 {
			if r, c := deltaTempMaps[k].Dims(); r != steps || c != n {
				return nil, nil, fmt.Errorf("expansion: delta temperature map %d is %dx%d, want %dx%d", k, r, c, steps, n)
			}
		}

		s := mat.NewDense(steps, n, nil)
		t0 := temp.RawRowView(0)
		for t := 0; t < steps; t++ {
			row := temp.RawRowView(t)
			dst := s.RawRowView(t)
			for i := 0; i < n; i++ {
				dst[i] = thickness[i] * alpha.At(i, k) * (row[i] - t0[i])
			}
		}
		sub[k] = s
		total.Add(total, s)
	}
	return total, sub, nil
}
