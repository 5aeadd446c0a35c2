package config

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/latticesim/internal/atoms"
	"github.com/san-kum/latticesim/internal/dynamo"
	"github.com/san-kum/latticesim/internal/phonon"
	"github.com/san-kum/latticesim/internal/structure"
)

const (
	DefaultCacheDir = "./cache"
	DefaultSteps    = 401
	DefaultStop     = 40e-12
)

// Config describes one strain-map run: the layer stack, the solver and the
// heat excitation. All quantities are SI.
type Config struct {
	Name       string           `yaml:"name"`
	CacheDir   string           `yaml:"cache_dir,omitempty"`
	Layers     []LayerConfig    `yaml:"layers"`
	Stack      []StackItem      `yaml:"stack"`
	Simulation SimulationConfig `yaml:"simulation"`
	Excitation ExcitationConfig `yaml:"excitation"`
}

// LayerConfig defines a layer. MassPerArea may be left zero when Atoms and
// Area describe the unit cell, and SpringConst may be left empty when
// SoundVelocity is given.
type LayerConfig struct {
	ID            string    `yaml:"id"`
	Name          string    `yaml:"name,omitempty"`
	Thickness     float64   `yaml:"thickness"`
	MassPerArea   float64   `yaml:"mass_per_area,omitempty"`
	Atoms         []string  `yaml:"atoms,omitempty"`
	Area          float64   `yaml:"area,omitempty"`
	SpringConst   []float64 `yaml:"spring_const,omitempty"`
	SoundVelocity float64   `yaml:"sound_velocity,omitempty"`
	Damping       float64   `yaml:"damping,omitempty"`
	LinThermExp   []float64 `yaml:"lin_therm_exp"`
}

// StackItem is either a layer reference or a group, repeated Repeat times
// (zero means once).
type StackItem struct {
	Layer  string      `yaml:"layer,omitempty"`
	Group  []StackItem `yaml:"group,omitempty"`
	Repeat int         `yaml:"repeat,omitempty"`
}

type SimulationConfig struct {
	Method      string  `yaml:"method"`
	OnlyHeat    bool    `yaml:"only_heat"`
	ForceRecalc bool    `yaml:"force_recalc"`
	RelTol      float64 `yaml:"rtol"`
	AbsTol      float64 `yaml:"atol"`
	MaxStep     float64 `yaml:"max_step,omitempty"`
	FirstStep   float64 `yaml:"first_step,omitempty"`
	MaxSteps    int     `yaml:"max_steps,omitempty"`
}

type DelayConfig struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Steps int     `yaml:"steps"`
}

type ExcitationConfig struct {
	Delays     DelayConfig           `yaml:"delays"`
	Subsystems []SubsystemExcitation `yaml:"subsystems"`
}

// SubsystemExcitation is a temperature step at Onset with amplitude Rise at
// the surface, decaying into the depth over Depth (0 = uniform) and
// relaxing in time over Tau (0 = no relaxation).
type SubsystemExcitation struct {
	Name    string  `yaml:"name"`
	Initial float64 `yaml:"initial"`
	Rise    float64 `yaml:"rise"`
	Depth   float64 `yaml:"depth,omitempty"`
	Onset   float64 `yaml:"onset,omitempty"`
	Tau     float64 `yaml:"tau,omitempty"`
}

func DefaultConfig() *Config {
	return GetPreset("sro_sto")
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		CacheDir: DefaultCacheDir,
		Simulation: SimulationConfig{
			Method: phonon.DefaultMethod,
			RelTol: dynamo.DefaultConfig().RelTol,
			AbsTol: dynamo.DefaultConfig().AbsTol,
		},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if len(c.Layers) == 0 {
		return fmt.Errorf("config: no layers defined")
	}
	if len(c.Stack) == 0 {
		return fmt.Errorf("config: empty stack")
	}
	if c.Excitation.Delays.Steps < 1 {
		return fmt.Errorf("config: delays need at least one step")
	}
	if c.Excitation.Delays.Steps > 1 && !(c.Excitation.Delays.Stop > c.Excitation.Delays.Start) {
		return fmt.Errorf("config: delay stop %g must exceed start %g", c.Excitation.Delays.Stop, c.Excitation.Delays.Start)
	}
	if len(c.Excitation.Subsystems) == 0 {
		return fmt.Errorf("config: at least one excited subsystem is required")
	}
	for _, l := range c.Layers {
		if len(l.LinThermExp) != len(c.Excitation.Subsystems) {
			return fmt.Errorf("config: layer %s has %d expansion coefficients for %d subsystems", l.ID, len(l.LinThermExp), len(c.Excitation.Subsystems))
		}
	}
	return nil
}

// Delays returns the evenly spaced delay grid.
func (c *Config) Delays() []float64 {
	d := c.Excitation.Delays
	if d.Steps == 1 {
		return []float64{d.Start}
	}
	return floats.Span(make([]float64, d.Steps), d.Start, d.Stop)
}

// BuildLayer resolves the derived quantities of a layer definition.
func (l LayerConfig) BuildLayer() (*structure.Layer, error) {
	mass := l.MassPerArea
	if mass == 0 && len(l.Atoms) > 0 {
		cell := make([]atoms.Species, len(l.Atoms))
		for i, sym := range l.Atoms {
			e, err := atoms.NewElement(sym)
			if err != nil {
				return nil, fmt.Errorf("layer %s: %w", l.ID, err)
			}
			cell[i] = e
		}
		m, err := structure.MassPerAreaFromAtoms(cell, l.Area)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", l.ID, err)
		}
		mass = m
	}

	springs := append([]float64(nil), l.SpringConst...)
	if len(springs) == 0 && l.SoundVelocity > 0 {
		springs = []float64{structure.HarmonicSpringConst(mass, l.Thickness, l.SoundVelocity)}
	}

	layer := &structure.Layer{
		ID:            l.ID,
		Name:          l.Name,
		Thickness:     l.Thickness,
		MassPerArea:   mass,
		SpringConsts:  springs,
		Damping:       l.Damping,
		LinThermExp:   append([]float64(nil), l.LinThermExp...),
		SoundVelocity: l.SoundVelocity,
	}
	if err := layer.Validate(); err != nil {
		return nil, err
	}
	return layer, nil
}

// BuildStructure turns the layer definitions and the stack description into
// a structure.
func (c *Config) BuildStructure() (*structure.Structure, error) {
	s := structure.New(c.Name)
	handles := make(map[string]structure.Handle, len(c.Layers))
	for _, lc := range c.Layers {
		if _, dup := handles[lc.ID]; dup {
			return nil, fmt.Errorf("config: layer %s defined twice", lc.ID)
		}
		l, err := lc.BuildLayer()
		if err != nil {
			return nil, err
		}
		h, err := s.AddLayer(l)
		if err != nil {
			return nil, err
		}
		handles[lc.ID] = h
	}

	var add func(parent structure.Handle, items []StackItem) error
	add = func(parent structure.Handle, items []StackItem) error {
		for _, it := range items {
			reps := it.Repeat
			if reps == 0 {
				reps = 1
			}
			switch {
			case it.Layer != "" && len(it.Group) > 0:
				return fmt.Errorf("config: stack item names layer %s and a group", it.Layer)
			case it.Layer != "":
				h, ok := handles[it.Layer]
				if !ok {
					return fmt.Errorf("config: stack references unknown layer %q", it.Layer)
				}
				if err := s.Append(parent, h, reps); err != nil {
					return err
				}
			case len(it.Group) > 0:
				g := s.AddGroup()
				if err := add(g, it.Group); err != nil {
					return err
				}
				if err := s.Append(parent, g, reps); err != nil {
					return err
				}
			default:
				return fmt.Errorf("config: empty stack item")
			}
		}
		return nil
	}
	if err := add(s.Root(), c.Stack); err != nil {
		return nil, err
	}
	return s, s.Validate()
}

// TempMaps evaluates the excitation on the delay grid, one [T, L] map per
// subsystem. The depth profile uses the distance of each layer centre from
// the surface.
func (c *Config) TempMaps(s *structure.Structure) []*mat.Dense {
	delays := c.Delays()
	_, _, mid := s.DistancesOfLayers()

	maps := make([]*mat.Dense, len(c.Excitation.Subsystems))
	for k, ex := range c.Excitation.Subsystems {
		m := mat.NewDense(len(delays), len(mid), nil)
		for t, d := range delays {
			row := m.RawRowView(t)
			for i, z := range mid {
				row[i] = ex.Initial
				if d < ex.Onset {
					continue
				}
				rise := ex.Rise
				if ex.Depth > 0 {
					rise *= math.Exp(-z / ex.Depth)
				}
				if ex.Tau > 0 {
					rise *= math.Exp(-(d - ex.Onset) / ex.Tau)
				}
				row[i] += rise
			}
		}
		maps[k] = m
	}
	return maps
}

func (c *Config) SolverConfig() dynamo.Config {
	cfg := dynamo.DefaultConfig()
	sim := c.Simulation
	if sim.RelTol > 0 {
		cfg.RelTol = sim.RelTol
	}
	if sim.AbsTol > 0 {
		cfg.AbsTol = sim.AbsTol
	}
	cfg.MaxStep = sim.MaxStep
	cfg.FirstStep = sim.FirstStep
	if sim.MaxSteps > 0 {
		cfg.MaxSteps = sim.MaxSteps
	}
	return cfg
}

func (c *Config) PhononOptions() phonon.Options {
	opts := phonon.DefaultOptions()
	if c.Simulation.Method != "" {
		opts.Method = c.Simulation.Method
	}
	opts.OnlyHeat = c.Simulation.OnlyHeat
	opts.ForceRecalc = c.Simulation.ForceRecalc
	opts.Solver = c.SolverConfig()
	return opts
}
