package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Halves splits a [positions..., velocities...] state without copying.
func (s State) Halves() (x, v State) {
	n := len(s) / 2
	return s[:n], s[n:]
}

type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

// Piecewise systems carry an input that is constant between consecutive
// report times. Hold returns the system with that input frozen at the value
// active at t; the simulator never lets a step cross a report time, so the
// held system is exact over the whole step.
type Piecewise interface {
	System
	Hold(t float64) System
}

type Hamiltonian interface {
	Energy(x State) float64
}

type Integrator interface {
	Step(dyn System, x State, t float64, dt float64) State
}

// AdaptiveIntegrator is an embedded Runge-Kutta pair. StepAdaptive attempts one
// step of size dt and reports whether the local error met tol, together with
// the step size proposed for the next attempt.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn System, x State, t, dt float64, tol Tolerance) (State, float64, bool)
	ErrorOrder() int
}

type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, t float64)
}

// Tolerance bounds the local error of an adaptive step as
// |err_i| <= Abs + Rel*max(|x_i|, |x_new_i|) in the RMS sense.
type Tolerance struct {
	Rel float64
	Abs float64
}

type Config struct {
	RelTol        float64
	AbsTol        float64
	MaxStep       float64 // 0 means unbounded; fixed-step integrators require it
	FirstStep     float64 // 0 selects the initial step automatically
	MaxSteps      int
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		RelTol:        1e-3,
		AbsTol:        1e-6,
		MaxSteps:      5_000_000,
		ValidateState: true,
	}
}

func (c Config) Tolerance() Tolerance {
	return Tolerance{Rel: c.RelTol, Abs: c.AbsTol}
}

// Trajectory holds the state sampled at every requested time.
type Trajectory struct {
	Times         []float64
	States        []State
	Metrics       map[string]float64
	StepsTaken    int
	StepsRejected int
}
