package metrics

import (
	"math"

	"github.com/san-kum/latticesim/internal/dynamo"
)

// PeakEnergy records the largest energy seen during a run. For a heat-driven
// chain that starts at rest this is the peak coherent phonon energy.
type PeakEnergy struct {
	dyn  dynamo.Hamiltonian
	peak float64
}

// Systems without an energy function always report zero.
func NewPeakEnergy(dyn dynamo.System) *PeakEnergy {
	h, _ := dyn.(dynamo.Hamiltonian)
	return &PeakEnergy{dyn: h}
}

func (p *PeakEnergy) Name() string { return "peak_energy" }

func (p *PeakEnergy) Observe(x dynamo.State, t float64) {
	if p.dyn != nil {
		p.peak = math.Max(p.peak, p.dyn.Energy(x))
	}
}

func (p *PeakEnergy) Value() float64 { return p.peak }
func (p *PeakEnergy) Reset()         { p.peak = 0 }

// ResidualEnergy is the energy left in the chain at the last observed step
// as a fraction of the peak. Values near one mean the damping has not yet
// removed the coherent oscillation by the end of the delay grid.
type ResidualEnergy struct {
	dyn        dynamo.Hamiltonian
	peak, last float64
}

func NewResidualEnergy(dyn dynamo.System) *ResidualEnergy {
	h, _ := dyn.(dynamo.Hamiltonian)
	return &ResidualEnergy{dyn: h}
}

func (r *ResidualEnergy) Name() string { return "residual_energy" }

func (r *ResidualEnergy) Observe(x dynamo.State, t float64) {
	if r.dyn == nil {
		return
	}
	r.last = r.dyn.Energy(x)
	r.peak = math.Max(r.peak, r.last)
}

func (r *ResidualEnergy) Value() float64 {
	if r.peak == 0 {
		return 0
	}
	return r.last / r.peak
}

func (r *ResidualEnergy) Reset() { r.peak, r.last = 0, 0 }
