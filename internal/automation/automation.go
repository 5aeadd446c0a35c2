// Package automation runs batches of strain-map computations described in
// YAML: scripted scenarios and one-parameter sweeps.
package automation

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/latticesim/internal/analysis"
	"github.com/san-kum/latticesim/internal/cache"
	"github.com/san-kum/latticesim/internal/config"
	"github.com/san-kum/latticesim/internal/expansion"
	"github.com/san-kum/latticesim/internal/phonon"
)

// Scenario defines a set of independent runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Workers     int            `yaml:"workers"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset or a config file and applies overrides.
type ScenarioStep struct {
	Name     string             `yaml:"name"`
	Preset   string             `yaml:"preset,omitempty"`
	Config   string             `yaml:"config,omitempty"`
	Method   string             `yaml:"method,omitempty"`
	OnlyHeat *bool              `yaml:"only_heat,omitempty"`
	Params   map[string]float64 `yaml:"params,omitempty"`
}

// Outcome is the result of one run, reduced to its summary.
type Outcome struct {
	Name      string
	Value     float64
	Key       string
	FromCache bool
	Summary   *analysis.Summary
	Err       error
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: no steps", path)
	}
	return &scenario, nil
}

// Setters maps parameter names usable in steps and sweeps to the config
// fields they change.
var Setters = map[string]func(*config.Config, float64){
	"rise": func(c *config.Config, v float64) {
		for i := range c.Excitation.Subsystems {
			c.Excitation.Subsystems[i].Rise = v
		}
	},
	"depth": func(c *config.Config, v float64) {
		for i := range c.Excitation.Subsystems {
			c.Excitation.Subsystems[i].Depth = v
		}
	},
	"tau": func(c *config.Config, v float64) {
		for i := range c.Excitation.Subsystems {
			c.Excitation.Subsystems[i].Tau = v
		}
	},
	"damping": func(c *config.Config, v float64) {
		for i := range c.Layers {
			c.Layers[i].Damping = v
		}
	},
	"rtol": func(c *config.Config, v float64) { c.Simulation.RelTol = v },
	"atol": func(c *config.Config, v float64) { c.Simulation.AbsTol = v },
}

func applyParam(cfg *config.Config, name string, v float64) error {
	set, ok := Setters[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	set(cfg, v)
	return nil
}

func (st ScenarioStep) resolve() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case st.Preset != "" && st.Config != "":
		return nil, fmt.Errorf("step %s: both preset and config given", st.Name)
	case st.Preset != "":
		cfg = config.GetPreset(st.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("step %s: unknown preset %q", st.Name, st.Preset)
		}
	case st.Config != "":
		c, err := config.Load(st.Config)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", st.Name, err)
		}
		cfg = c
	default:
		return nil, fmt.Errorf("step %s: preset or config required", st.Name)
	}

	if st.Method != "" {
		cfg.Simulation.Method = st.Method
	}
	if st.OnlyHeat != nil {
		cfg.Simulation.OnlyHeat = *st.OnlyHeat
	}
	for name, v := range st.Params {
		if err := applyParam(cfg, name, v); err != nil {
			return nil, fmt.Errorf("step %s: %w", st.Name, err)
		}
	}
	return cfg, cfg.Validate()
}

// NewJob builds the structure, excitation and simulation described by cfg.
func NewJob(name string, cfg *config.Config, store *cache.Store, logger *log.Entry) (phonon.Job, error) {
	s, err := cfg.BuildStructure()
	if err != nil {
		return phonon.Job{}, fmt.Errorf("%s: %w", name, err)
	}
	return phonon.Job{
		Name:     name,
		Sim:      phonon.New(s, expansion.Linear{}, store, cfg.PhononOptions(), logger.WithField("job", name)),
		Delays:   cfg.Delays(),
		TempMaps: cfg.TempMaps(s),
	}, nil
}

// RunScenario runs all steps with the scenario's worker limit. Outcomes are
// returned in step order even when a step fails.
func RunScenario(ctx context.Context, scenario *Scenario, store *cache.Store, logger *log.Entry) ([]Outcome, error) {
	jobs := make([]phonon.Job, len(scenario.Steps))
	for i, st := range scenario.Steps {
		if st.Name == "" {
			st.Name = fmt.Sprintf("step-%d", i+1)
		}
		cfg, err := st.resolve()
		if err != nil {
			return nil, err
		}
		if jobs[i], err = NewJob(st.Name, cfg, store, logger); err != nil {
			return nil, err
		}
	}

	logger.WithFields(log.Fields{"scenario": scenario.Name, "steps": len(jobs), "workers": scenario.Workers}).Info("running scenario")
	return collect(ctx, jobs, nil, scenario.Workers)
}

// ParameterSweep varies one parameter of a base configuration over
// Steps evenly spaced values.
type ParameterSweep struct {
	Base     *config.Config
	Param    string
	Min, Max float64
	Steps    int
	Workers  int
}

func RunSweep(ctx context.Context, sweep *ParameterSweep, store *cache.Store, logger *log.Entry) ([]Outcome, error) {
	if sweep.Base == nil {
		return nil, fmt.Errorf("sweep: no base configuration")
	}
	if _, ok := Setters[sweep.Param]; !ok {
		return nil, fmt.Errorf("sweep: unknown parameter %q", sweep.Param)
	}
	if sweep.Steps < 2 {
		return nil, fmt.Errorf("sweep: at least two steps required")
	}

	values := floats.Span(make([]float64, sweep.Steps), sweep.Min, sweep.Max)
	jobs := make([]phonon.Job, len(values))
	for i, v := range values {
		cfg, err := clone(sweep.Base)
		if err != nil {
			return nil, err
		}
		Setters[sweep.Param](cfg, v)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("sweep %s=%g: %w", sweep.Param, v, err)
		}
		name := fmt.Sprintf("%s=%g", sweep.Param, v)
		if jobs[i], err = NewJob(name, cfg, store, logger); err != nil {
			return nil, err
		}
	}

	logger.WithFields(log.Fields{"param": sweep.Param, "steps": len(jobs)}).Info("running sweep")
	return collect(ctx, jobs, values, sweep.Workers)
}

func collect(ctx context.Context, jobs []phonon.Job, values []float64, workers int) ([]Outcome, error) {
	results, runErr := phonon.RunAll(ctx, jobs, workers)
	out := make([]Outcome, len(results))
	for i, r := range results {
		out[i] = Outcome{Name: r.Name, Err: r.Err}
		if values != nil {
			out[i].Value = values[i]
		}
		if r.Result == nil {
			continue
		}
		out[i].Key = r.Result.Key
		out[i].FromCache = r.Result.FromCache
		if sum, err := analysis.Summarize(r.Result.Delays, r.Result.Strain); err == nil {
			out[i].Summary = sum
		}
	}
	return out, runErr
}

func clone(cfg *config.Config) (*config.Config, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var c config.Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Stats counts successful and failed outcomes.
func Stats(outcomes []Outcome) (ok, failed int) {
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	return
}
