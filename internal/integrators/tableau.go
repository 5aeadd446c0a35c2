package integrators

import "github.com/san-kum/latticesim/internal/dynamo"

// tableau holds the Butcher coefficients of an explicit Runge-Kutta method.
// Row a[s] has exactly s entries.
type tableau struct {
	c []float64
	a [][]float64
	b []float64
}

// advance evaluates every stage and returns the propagated state together
// with the stage derivatives. The returned slice has one spare slot at the
// end for methods that reuse the derivative at the new state.
func (tb *tableau) advance(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, []dynamo.State) {
	n := len(x)
	stages := len(tb.b)

	k := make([]dynamo.State, stages+1)
	k[0] = dyn.Derive(x, t)

	probe := make(dynamo.State, n)
	for s := 1; s < stages; s++ {
		row := tb.a[s]
		for i := range probe {
			sum := 0.0
			for j, w := range row {
				sum += w * k[j][i]
			}
			probe[i] = x[i] + dt*sum
		}
		k[s] = dyn.Derive(probe, t+tb.c[s]*dt)
	}

	next := make(dynamo.State, n)
	for i := range next {
		sum := 0.0
		for s, w := range tb.b {
			if w != 0 {
				sum += w * k[s][i]
			}
		}
		next[i] = x[i] + dt*sum
	}
	return next, k
}
