package phonon

import (
	"github.com/san-kum/latticesim/internal/dynamo"
	"github.com/san-kum/latticesim/internal/integrators"
)

const DefaultMethod = "RK23"

type Options struct {
	// OnlyHeat skips the coherent dynamics: strain = sticks / thickness.
	OnlyHeat bool
	// ForceRecalc ignores cached entries. Results are still written.
	ForceRecalc bool
	// Method names the integrator (RK23, RK45, RK4).
	Method string
	Solver dynamo.Config

	// NewIntegrator overrides Method when set.
	NewIntegrator func() (dynamo.Integrator, error)
	// Observers are attached to every integration run.
	Observers []dynamo.Observer
}

func DefaultOptions() Options {
	return Options{
		Method: DefaultMethod,
		Solver: dynamo.DefaultConfig(),
	}
}

func (o Options) integrator() (dynamo.Integrator, error) {
	if o.NewIntegrator != nil {
		return o.NewIntegrator()
	}
	method := o.Method
	if method == "" {
		method = DefaultMethod
	}
	return integrators.New(method)
}
