// Package dynamo provides core simulation primitives for ordinary differential
// equation systems.
//
// The package defines the interfaces and types shared by the lattice model and
// the integrators:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [AdaptiveIntegrator]: embedded Runge-Kutta stepper with error control
//   - [Simulator]: drives one continuous integration and samples it at report times
//
// # Example
//
//	chain, _ := lattice.NewChain(params, heat, delays)
//	s := dynamo.New(chain, integrators.NewRK23())
//	traj, err := s.Run(ctx, make(dynamo.State, chain.StateDim()), delays, dynamo.DefaultConfig())
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe. Independent runs must use their own
// Simulator; systems passed to it must not mutate shared state in Derive.
package dynamo
