package dynamo

import (
	"context"
	"fmt"
	"math"
)

type Simulator struct {
	dyn        System
	integrator Integrator
	metrics    []Metric
	observers  []Observer
}

func New(dyn System, integrator Integrator) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run integrates from times[0] to times[len(times)-1] in one continuous pass
// and records the state exactly at every entry of times. Steps are clipped so
// that they land on report times; the adaptive step proposal survives the clip.
func (s *Simulator) Run(ctx context.Context, x0 State, times []float64, cfg Config) (*Trajectory, error) {
	if err := s.validate(x0, times, cfg); err != nil {
		return nil, err
	}

	traj := &Trajectory{
		Times:   append([]float64(nil), times...),
		States:  make([]State, 0, len(times)),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	t := times[0]
	next := 0
	for next < len(times) && times[next] <= t {
		traj.States = append(traj.States, x.Clone())
		next++
	}

	adaptive, isAdaptive := s.integrator.(AdaptiveIntegrator)
	tol := cfg.Tolerance()

	h := cfg.MaxStep
	if isAdaptive {
		h = cfg.FirstStep
		if h <= 0 && next < len(times) {
			h = initialStep(s.dyn, x, t, times[len(times)-1]-t, tol, adaptive.ErrorOrder())
		}
	}

	for next < len(times) {
		select {
		case <-ctx.Done():
			return nil, &SimulationError{
				Step:    traj.StepsTaken,
				Time:    t,
				State:   x.Clone(),
				Wrapped: fmt.Errorf("%w: %w", ErrContextCanceled, ctx.Err()),
			}
		default:
		}

		if cfg.MaxSteps > 0 && traj.StepsTaken+traj.StepsRejected >= cfg.MaxSteps {
			return nil, &SimulationError{
				Step:    traj.StepsTaken,
				Time:    t,
				State:   x.Clone(),
				Wrapped: fmt.Errorf("%w: step budget of %d exhausted", ErrStepTooSmall, cfg.MaxSteps),
			}
		}

		if cfg.MaxStep > 0 && h > cfg.MaxStep {
			h = cfg.MaxStep
		}
		if minStep := 10 * ulp(t); h < minStep {
			return nil, &SimulationError{
				Step:    traj.StepsTaken,
				Time:    t,
				State:   x.Clone(),
				Wrapped: fmt.Errorf("%w: h=%g below %g", ErrStepTooSmall, h, minStep),
			}
		}

		target := times[next]
		dt, clipped := h, false
		if t+dt >= target {
			dt, clipped = target-t, true
		}

		sys := s.dyn
		if pw, ok := s.dyn.(Piecewise); ok {
			sys = pw.Hold(t)
		}

		var newX State
		if isAdaptive {
			var hNext float64
			var accepted bool
			newX, hNext, accepted = adaptive.StepAdaptive(sys, x, t, dt, tol)
			if !accepted {
				traj.StepsRejected++
				h = hNext
				continue
			}
			if clipped {
				h = math.Max(h, hNext)
			} else {
				h = hNext
			}
		} else {
			newX = s.integrator.Step(sys, x, t, dt)
		}

		if cfg.ValidateState && !newX.IsValid() {
			return nil, &SimulationError{
				Step:    traj.StepsTaken,
				Time:    t,
				State:   x.Clone(),
				Wrapped: ErrUnstable,
			}
		}

		if clipped {
			t = target
		} else {
			t += dt
		}
		x = newX
		traj.StepsTaken++

		for _, m := range s.metrics {
			m.Observe(x, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, t)
		}

		for next < len(times) && times[next] <= t {
			traj.States = append(traj.States, x.Clone())
			next++
		}
	}

	for _, m := range s.metrics {
		traj.Metrics[m.Name()] = m.Value()
	}

	return traj, nil
}

func (s *Simulator) validate(x0 State, times []float64, cfg Config) error {
	if len(times) == 0 {
		return NewInputError("times", "at least one report time is required")
	}
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return NewInputError("times", "entry %d is not finite", i)
		}
		if i > 0 && t < times[i-1] {
			return NewInputError("times", "not monotonically non-decreasing at index %d (%g < %g)", i, t, times[i-1])
		}
	}
	if len(x0) != s.dyn.StateDim() {
		return fmt.Errorf("%w: state has %d entries, system expects %d", ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}
	if _, ok := s.integrator.(AdaptiveIntegrator); ok {
		if cfg.AbsTol <= 0 {
			return NewInputError("atol", "must be positive, got %g", cfg.AbsTol)
		}
		if cfg.RelTol < 0 {
			return NewInputError("rtol", "must not be negative, got %g", cfg.RelTol)
		}
	} else if cfg.MaxStep <= 0 && times[len(times)-1] > times[0] {
		return NewInputError("max_step", "fixed-step integrators need a positive max step")
	}
	if cfg.MaxStep < 0 {
		return NewInputError("max_step", "must not be negative, got %g", cfg.MaxStep)
	}
	return nil
}

// initialStep follows the Hairer-Norsett-Wanner heuristic for the first trial step.
func initialStep(dyn System, x State, t, interval float64, tol Tolerance, order int) float64 {
	f0 := dyn.Derive(x, t)

	scale := make([]float64, len(x))
	for i := range x {
		scale[i] = tol.Abs + math.Abs(x[i])*tol.Rel
	}

	d0 := RMSNorm(x, scale)
	d1 := RMSNorm(f0, scale)

	var h0 float64
	if d0 < 1e-5 || d1 < 1e-5 {
		h0 = 1e-6
	} else {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, interval)

	x1 := make(State, len(x))
	for i := range x {
		x1[i] = x[i] + h0*f0[i]
	}
	f1 := dyn.Derive(x1, t+h0)

	df := make([]float64, len(x))
	for i := range df {
		df[i] = f1[i] - f0[i]
	}
	d2 := RMSNorm(df, scale) / h0

	var h1 float64
	if d1 <= 1e-15 && d2 <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/math.Max(d1, d2), 1.0/float64(order+1))
	}

	return math.Min(math.Min(100*h0, h1), interval)
}

// RMSNorm returns sqrt(mean((v_i/scale_i)^2)).
func RMSNorm(v, scale []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for i := range v {
		r := v[i] / scale[i]
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(v)))
}

func ulp(t float64) float64 {
	a := math.Abs(t)
	return math.Nextafter(a, math.Inf(1)) - a
}
