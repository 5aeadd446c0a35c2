package integrators

import "github.com/san-kum/latticesim/internal/dynamo"

// RK4 is the classic fixed-step fourth order method. The simulator drives it
// with Config.MaxStep as step size.
type RK4 struct {
	tableau
}

func NewRK4() *RK4 {
	return &RK4{tableau{
		c: []float64{0, 0.5, 0.5, 1},
		a: [][]float64{
			{},
			{0.5},
			{0, 0.5},
			{0, 0, 1},
		},
		b: []float64{1.0 / 6.0, 1.0 / 3.0, 1.0 / 3.0, 1.0 / 6.0},
	}}
}

func (r *RK4) Name() string { return "RK4" }

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	next, _ := r.advance(dyn, x, t, dt)
	return next
}
