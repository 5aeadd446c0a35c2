package config

import (
	"sort"

	"github.com/san-kum/latticesim/internal/phonon"
)

const (
	sroCell = 3.93e-10 // in-plane lattice constant of SrRuO3
	stoCell = 3.905e-10
)

func sro(alpha ...float64) LayerConfig {
	return LayerConfig{
		ID: "sro", Name: "SrRuO3",
		Thickness: 3.95e-10, Atoms: []string{"Sr", "Ru", "O", "O", "O"}, Area: sroCell * sroCell,
		SoundVelocity: 6312, LinThermExp: alpha,
	}
}

func sto(alpha ...float64) LayerConfig {
	return LayerConfig{
		ID: "sto", Name: "SrTiO3",
		Thickness: stoCell, Atoms: []string{"Sr", "Ti", "O", "O", "O"}, Area: stoCell * stoCell,
		SoundVelocity: 7800, LinThermExp: alpha,
	}
}

func baseSimulation() SimulationConfig {
	return SimulationConfig{Method: phonon.DefaultMethod, RelTol: 1e-4, AbsTol: 1e-12}
}

func lattice(rise, depth float64) SubsystemExcitation {
	return SubsystemExcitation{Name: "lattice", Initial: 300, Rise: rise, Depth: depth}
}

// Presets builds a fresh configuration per call so callers may modify the
// result freely.
var Presets = map[string]func() *Config{
	"sro_sto": func() *Config {
		return &Config{
			Name:     "SRO/STO",
			CacheDir: DefaultCacheDir,
			Layers:   []LayerConfig{sro(1.03e-5), sto(1e-5)},
			Stack: []StackItem{
				{Layer: "sro", Repeat: 20},
				{Layer: "sto", Repeat: 100},
			},
			Simulation: baseSimulation(),
			Excitation: ExcitationConfig{
				Delays:     DelayConfig{Start: -5e-12, Stop: DefaultStop, Steps: DefaultSteps},
				Subsystems: []SubsystemExcitation{lattice(200, 8e-9)},
			},
		}
	},
	"single_layer": func() *Config {
		sim := baseSimulation()
		sim.OnlyHeat = true
		return &Config{
			Name:       "single SRO layer",
			CacheDir:   DefaultCacheDir,
			Layers:     []LayerConfig{sro(1.03e-5)},
			Stack:      []StackItem{{Layer: "sro"}},
			Simulation: sim,
			Excitation: ExcitationConfig{
				Delays:     DelayConfig{Start: 0, Stop: 10e-12, Steps: 101},
				Subsystems: []SubsystemExcitation{{Name: "lattice", Initial: 300, Rise: 100, Onset: 1e-12, Tau: 5e-12}},
			},
		}
	},
	"anharmonic": func() *Config {
		film := sro(1.03e-5)
		film.SpringConst = []float64{6.5e20, -7e30}
		film.Damping = 1e10
		sim := baseSimulation()
		sim.Method = "RK45"
		return &Config{
			Name:     "anharmonic SRO/STO",
			CacheDir: DefaultCacheDir,
			Layers:   []LayerConfig{film, sto(1e-5)},
			Stack: []StackItem{
				{Layer: "sro", Repeat: 20},
				{Layer: "sto", Repeat: 50},
			},
			Simulation: sim,
			Excitation: ExcitationConfig{
				Delays:     DelayConfig{Start: -2e-12, Stop: 20e-12, Steps: 221},
				Subsystems: []SubsystemExcitation{lattice(500, 8e-9)},
			},
		}
	},
	"superlattice": func() *Config {
		return &Config{
			Name:     "SRO/STO superlattice",
			CacheDir: DefaultCacheDir,
			Layers:   []LayerConfig{sro(1.03e-5, 1e-6), sto(1e-5, 0)},
			Stack: []StackItem{
				{Repeat: 10, Group: []StackItem{
					{Layer: "sro", Repeat: 5},
					{Layer: "sto", Repeat: 5},
				}},
				{Layer: "sto", Repeat: 50},
			},
			Simulation: baseSimulation(),
			Excitation: ExcitationConfig{
				Delays: DelayConfig{Start: -2e-12, Stop: 30e-12, Steps: 321},
				Subsystems: []SubsystemExcitation{
					lattice(150, 20e-9),
					{Name: "electrons", Initial: 300, Rise: 1500, Depth: 20e-9, Tau: 0.5e-12},
				},
			},
		}
	},
}

// GetPreset returns a new copy of the named preset or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
