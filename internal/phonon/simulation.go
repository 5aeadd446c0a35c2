package phonon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/latticesim/internal/cache"
	"github.com/san-kum/latticesim/internal/dynamo"
	"github.com/san-kum/latticesim/internal/expansion"
	"github.com/san-kum/latticesim/internal/lattice"
	"github.com/san-kum/latticesim/internal/metrics"
	"github.com/san-kum/latticesim/internal/structure"
)

// Sample is the layer stack a Simulation works on.
type Sample interface {
	expansion.Sample
	NumLayers() int
	SpringConstants() *mat.Dense
	UniqueLayers() []*structure.Layer
	LayerIDs() []string
}

// Expander converts temperature maps [T, L] (one per subsystem) into sticks.
type Expander interface {
	Name() string
	Sticks(sample expansion.Sample, tempMaps, deltaTempMaps []*mat.Dense) (*mat.Dense, []*mat.Dense, error)
}

type State int

const (
	StateStart State = iota
	StateValidating
	StateCacheHit
	StateComputing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateValidating:
		return "validating"
	case StateCacheHit:
		return "cache_hit"
	case StateComputing:
		return "computing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result holds the maps of one request. The matrices are owned by the caller.
type Result struct {
	Strain   *mat.Dense // [T, L-1], or [T, L] in only-heat mode
	Velocity *mat.Dense // [T, L]

	// Sticks are not cached and are nil when FromCache is set.
	Sticks          *mat.Dense
	SubSystemSticks []*mat.Dense

	Delays        []float64
	Key           string
	FromCache     bool
	Elapsed       time.Duration
	Metrics       map[string]float64
	StepsTaken    int
	StepsRejected int
}

func (r *Result) clone() *Result {
	c := *r
	c.Strain = mat.DenseCopyOf(r.Strain)
	c.Velocity = mat.DenseCopyOf(r.Velocity)
	if r.Sticks != nil {
		c.Sticks = mat.DenseCopyOf(r.Sticks)
	}
	c.SubSystemSticks = make([]*mat.Dense, len(r.SubSystemSticks))
	for i, m := range r.SubSystemSticks {
		c.SubSystemSticks[i] = mat.DenseCopyOf(m)
	}
	c.Delays = append([]float64(nil), r.Delays...)
	c.Metrics = make(map[string]float64, len(r.Metrics))
	for k, v := range r.Metrics {
		c.Metrics[k] = v
	}
	return &c
}

type Simulation struct {
	sample Sample
	exp    Expander
	store  *cache.Store
	opts   Options
	log    *log.Entry

	flight singleflight.Group
}

// New builds a Simulation. store may be nil to disable caching and logger
// may be nil to use the standard logrus logger.
func New(sample Sample, exp Expander, store *cache.Store, opts Options, logger *log.Entry) *Simulation {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	if opts.Method == "" {
		opts.Method = DefaultMethod
	}
	return &Simulation{
		sample: sample,
		exp:    exp,
		store:  store,
		opts:   opts,
		log:    logger.WithField("sample", sampleName(sample)),
	}
}

func (s *Simulation) Options() Options { return s.opts }

func sampleName(sample Sample) string {
	if n, ok := sample.(interface{ Label() string }); ok {
		return n.Label()
	}
	return fmt.Sprintf("%T", sample)
}

func (s *Simulation) enter(logger *log.Entry, st State) {
	logger.WithField("state", st).Debug("strain map")
}

// StrainMap returns the strain and velocity maps for the given delays and
// temperature maps, from the cache when possible. Concurrent calls for the
// same key share one computation, which runs under the first caller's ctx.
//
// A cache write failure is returned together with the computed result.
func (s *Simulation) StrainMap(ctx context.Context, delays []float64, tempMaps, deltaTempMaps []*mat.Dense) (*Result, error) {
	start := time.Now()
	logger := s.log
	s.enter(logger, StateStart)

	s.enter(logger, StateValidating)
	lv, err := s.validate(delays, tempMaps, deltaTempMaps)
	if err != nil {
		logger.WithError(err).Warn("strain map request rejected")
		return nil, err
	}

	key := s.Key(delays, tempMaps, deltaTempMaps)
	logger = logger.WithField("key", key)

	if res := s.loadCached(logger, key, delays, lv.n); res != nil {
		s.enter(logger, StateCacheHit)
		res.Elapsed = time.Since(start)
		logger.WithFields(log.Fields{
			"file": s.store.StrainPath(key),
		}).Info("strain map loaded from cache")
		s.enter(logger, StateDone)
		return res, nil
	}

	v, err, shared := s.flight.Do(key, func() (any, error) {
		s.enter(logger, StateComputing)
		res, err := s.calc(ctx, lv, delays, tempMaps, deltaTempMaps)
		if err != nil {
			return nil, err
		}
		res.Key = key
		logger.WithFields(log.Fields{
			"method":  s.methodName(),
			"steps":   res.StepsTaken,
			"elapsed": res.Elapsed,
		}).Info("strain map computed")

		if s.store != nil {
			if err := s.save(key, res); err != nil {
				return res, fmt.Errorf("save strain map %s: %w", key, err)
			}
		}
		return res, nil
	})
	if v == nil {
		return nil, err
	}

	res := v.(*Result)
	if shared {
		res = res.clone()
	}
	if err != nil {
		logger.WithError(err).Error("strain map not cached")
	}
	s.enter(logger, StateDone)
	return res, err
}

// CalcStrainMap computes the maps without reading or writing the cache.
func (s *Simulation) CalcStrainMap(ctx context.Context, delays []float64, tempMaps, deltaTempMaps []*mat.Dense) (*Result, error) {
	lv, err := s.validate(delays, tempMaps, deltaTempMaps)
	if err != nil {
		return nil, err
	}
	res, err := s.calc(ctx, lv, delays, tempMaps, deltaTempMaps)
	if err != nil {
		return nil, err
	}
	res.Key = s.Key(delays, tempMaps, deltaTempMaps)
	return res, nil
}

func (s *Simulation) methodName() string {
	switch {
	case s.opts.OnlyHeat:
		return "only_heat"
	case s.opts.NewIntegrator != nil:
		return "custom"
	case s.opts.Method == "":
		return DefaultMethod
	default:
		return s.opts.Method
	}
}

type layerVectors struct {
	n         int
	thickness []float64
	mass      []float64
	damping   []float64
	springs   *mat.Dense
}

func (s *Simulation) validate(delays []float64, tempMaps, deltaTempMaps []*mat.Dense) (*layerVectors, error) {
	n := s.sample.NumLayers()
	if n < 1 {
		return nil, dynamo.NewInputError("sample", "has no layers")
	}
	if n < 2 && !s.opts.OnlyHeat {
		return nil, dynamo.NewInputError("sample", "coherent dynamics need at least two layers, got %d", n)
	}

	lv := &layerVectors{n: n}
	for _, p := range []struct {
		name     string
		dst      *[]float64
		positive bool
	}{
		{"thickness", &lv.thickness, true},
		{"mass_per_area", &lv.mass, true},
		{"damping", &lv.damping, false},
	} {
		v, err := s.sample.PropertyVector(p.name)
		if err != nil {
			return nil, dynamo.NewInputError(p.name, "%v", err)
		}
		if len(v) != n {
			return nil, dynamo.NewInputError(p.name, "has %d entries for %d layers", len(v), n)
		}
		for i, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 || (p.positive && x == 0) {
				return nil, dynamo.NewInputError(p.name, "layer %d has invalid value %g", i, x)
			}
		}
		*p.dst = v
	}

	lv.springs = s.sample.SpringConstants()
	if lv.springs == nil || lv.springs.IsEmpty() {
		return nil, dynamo.NewInputError("spring_const", "missing")
	}
	if r, c := lv.springs.Dims(); r != n || c < 1 {
		return nil, dynamo.NewInputError("spring_const", "is %dx%d for %d layers", r, c, n)
	}

	if len(delays) == 0 {
		return nil, dynamo.NewInputError("delays", "must not be empty")
	}
	for i, d := range delays {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, dynamo.NewInputError("delays", "entry %d is not finite", i)
		}
		if i > 0 && d < delays[i-1] {
			return nil, dynamo.NewInputError("delays", "not monotonically non-decreasing at index %d (%g < %g)", i, d, delays[i-1])
		}
	}

	if len(tempMaps) == 0 {
		return nil, dynamo.NewInputError("temp_map", "at least one subsystem is required")
	}
	if _, k := s.sample.LinThermExp().Dims(); k != len(tempMaps) {
		return nil, dynamo.NewInputError("temp_map", "%d maps for %d subsystems", len(tempMaps), k)
	}
	if err := checkMaps("temp_map", tempMaps, len(delays), n); err != nil {
		return nil, err
	}
	if len(deltaTempMaps) != 0 && len(deltaTempMaps) != len(tempMaps) {
		return nil, dynamo.NewInputError("delta_temp_map", "%d maps for %d temperature maps", len(deltaTempMaps), len(tempMaps))
	}
	if err := checkMaps("delta_temp_map", deltaTempMaps, len(delays), n); err != nil {
		return nil, err
	}
	return lv, nil
}

func checkMaps(param string, maps []*mat.Dense, rows, cols int) error {
	for k, m := range maps {
		if m == nil || m.IsEmpty() {
			return dynamo.NewInputError(param, "map %d is empty", k)
		}
		if r, c := m.Dims(); r != rows || c != cols {
			return dynamo.NewInputError(param, "map %d is %dx%d, want %dx%d", k, r, c, rows, cols)
		}
		for i := 0; i < rows; i++ {
			for _, v := range m.RawRowView(i) {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return dynamo.NewInputError(param, "map %d row %d is not finite", k, i)
				}
			}
		}
	}
	return nil
}

func (s *Simulation) calc(ctx context.Context, lv *layerVectors, delays []float64, tempMaps, deltaTempMaps []*mat.Dense) (*Result, error) {
	start := time.Now()

	sticks, sub, err := s.exp.Sticks(s.sample, tempMaps, deltaTempMaps)
	if err != nil {
		return nil, fmt.Errorf("%s expansion: %w", s.exp.Name(), err)
	}
	steps := len(delays)

	res := &Result{
		Sticks:          sticks,
		SubSystemSticks: sub,
		Delays:          append([]float64(nil), delays...),
		Metrics:         make(map[string]float64),
	}

	if s.opts.OnlyHeat {
		res.Strain = quasiStaticStrain(sticks, lv.thickness)
		res.Velocity = mat.NewDense(steps, lv.n, nil)
	} else {
		integ, err := s.opts.integrator()
		if err != nil {
			return nil, dynamo.NewInputError("method", "%v", err)
		}
		chain, err := lattice.NewChain(lv.mass, lv.damping, lv.springs, lattice.HeatForce(sticks, lv.springs), delays)
		if err != nil {
			return nil, err
		}

		sim := dynamo.New(chain, integ)
		sim.AddMetric(metrics.NewPeakEnergy(chain))
		sim.AddMetric(metrics.NewResidualEnergy(chain))
		sim.AddMetric(metrics.NewMaxDisplacement())
		sim.AddMetric(metrics.NewMaxVelocity())
		for _, obs := range s.opts.Observers {
			sim.AddObserver(obs)
		}

		traj, err := sim.Run(ctx, make(dynamo.State, chain.StateDim()), delays, s.opts.Solver)
		if err != nil {
			return nil, fmt.Errorf("integrate lattice: %w", err)
		}
		res.Strain, res.Velocity = mapsFromTrajectory(traj, lv.thickness)
		res.Metrics = traj.Metrics
		res.StepsTaken = traj.StepsTaken
		res.StepsRejected = traj.StepsRejected
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, err)
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// quasiStaticStrain divides every column of sticks by the layer thickness.
func quasiStaticStrain(sticks *mat.Dense, thickness []float64) *mat.Dense {
	steps, n := sticks.Dims()
	strain := mat.NewDense(steps, n, nil)
	strain.Apply(func(i, j int, v float64) float64 {
		return v / thickness[j]
	}, sticks)
	return strain
}

func mapsFromTrajectory(traj *dynamo.Trajectory, thickness []float64) (strain, velocity *mat.Dense) {
	steps := len(traj.States)
	n := len(thickness)
	strain = mat.NewDense(steps, n-1, nil)
	velocity = mat.NewDense(steps, n, nil)
	for t, st := range traj.States {
		x, v := st.Halves()
		strain.SetRow(t, lattice.Strain(x, thickness))
		velocity.SetRow(t, v)
	}
	return strain, velocity
}

func (s *Simulation) loadCached(logger *log.Entry, key string, delays []float64, n int) *Result {
	if s.store == nil || s.opts.ForceRecalc {
		return nil
	}

	entry, err := s.store.Load(key)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrMiss):
		logger.Debug("cache miss")
		return nil
	default:
		logger.WithError(err).Warn("ignoring unreadable cache entry")
		return nil
	}

	if r, _ := entry.Strain.Dims(); r != len(delays) {
		logger.WithField("rows", r).Warn("ignoring cache entry with wrong shape")
		return nil
	}
	if r, c := entry.Velocity.Dims(); r != len(delays) || c != n {
		logger.WithFields(log.Fields{"rows": r, "cols": c}).Warn("ignoring cache entry with wrong shape")
		return nil
	}

	return &Result{
		Strain:    entry.Strain,
		Velocity:  entry.Velocity,
		Delays:    append([]float64(nil), delays...),
		Key:       key,
		FromCache: true,
		Metrics:   entry.Meta.Metrics,
	}
}

func (s *Simulation) save(key string, res *Result) error {
	return s.store.Save(key, &cache.Entry{
		Strain:   res.Strain,
		Velocity: res.Velocity,
		Meta: cache.Metadata{
			Sample:    sampleName(s.sample),
			Method:    s.methodName(),
			OnlyHeat:  s.opts.OnlyHeat,
			Delays:    len(res.Delays),
			DelayGrid: res.Delays,
			Layers:    s.sample.NumLayers(),
			Elapsed:   res.Elapsed.Seconds(),
			Metrics:   res.Metrics,
		},
	})
}
