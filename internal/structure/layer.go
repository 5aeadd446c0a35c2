package structure

import (
	"fmt"
	"math"

	"github.com/san-kum/latticesim/internal/atoms"
)

// Layer is the smallest mechanically distinct slab of a stack. Two layers
// with the same ID are the same layer; Name is display-only.
type Layer struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	Thickness     float64   `yaml:"thickness" json:"thickness"`         // m
	MassPerArea   float64   `yaml:"mass_per_area" json:"mass_per_area"` // kg/m^2
	SpringConsts  []float64 `yaml:"spring_const" json:"spring_const"`   // k^1..k^M
	Damping       float64   `yaml:"damping" json:"damping"`
	LinThermExp   []float64 `yaml:"lin_therm_exp" json:"lin_therm_exp"` // one per subsystem
	SoundVelocity float64   `yaml:"sound_velocity,omitempty" json:"sound_velocity,omitempty"`
}

func (l *Layer) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("layer: empty id")
	}
	if !(l.Thickness > 0) || math.IsInf(l.Thickness, 0) {
		return fmt.Errorf("layer %s: thickness must be positive, got %g", l.ID, l.Thickness)
	}
	if !(l.MassPerArea > 0) || math.IsInf(l.MassPerArea, 0) {
		return fmt.Errorf("layer %s: mass per area must be positive, got %g", l.ID, l.MassPerArea)
	}
	if len(l.SpringConsts) == 0 {
		return fmt.Errorf("layer %s: at least one spring constant is required", l.ID)
	}
	for j, k := range l.SpringConsts {
		if math.IsNaN(k) || math.IsInf(k, 0) {
			return fmt.Errorf("layer %s: spring constant %d is not finite", l.ID, j)
		}
	}
	if l.Damping < 0 || math.IsNaN(l.Damping) {
		return fmt.Errorf("layer %s: damping must not be negative, got %g", l.ID, l.Damping)
	}
	if len(l.LinThermExp) == 0 {
		return fmt.Errorf("layer %s: at least one thermal expansion coefficient is required", l.ID)
	}
	return nil
}

func (l *Layer) String() string {
	name := l.Name
	if name == "" {
		name = l.ID
	}
	return fmt.Sprintf("%s: d=%.4g m, m=%.4g kg/m^2, k=%v, gamma=%.4g", name, l.Thickness, l.MassPerArea, l.SpringConsts, l.Damping)
}

// MassPerAreaFromAtoms sums the masses of the atoms of one unit cell and
// divides by the in-plane cell area (m^2).
func MassPerAreaFromAtoms(cell []atoms.Species, area float64) (float64, error) {
	if !(area > 0) {
		return 0, fmt.Errorf("unit cell area must be positive, got %g", area)
	}
	var m float64
	for _, s := range cell {
		m += s.Mass()
	}
	return m / area, nil
}

// HarmonicSpringConst returns k = m v^2 / d^2, the nearest-neighbour spring
// constant that reproduces the longitudinal sound velocity v of a chain of
// masses m (per area) spaced d apart.
func HarmonicSpringConst(massPerArea, thickness, soundVelocity float64) float64 {
	return massPerArea * soundVelocity * soundVelocity / (thickness * thickness)
}
