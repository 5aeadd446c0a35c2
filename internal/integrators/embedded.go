package integrators

import (
	"math"

	"github.com/san-kum/latticesim/internal/dynamo"
)

// EmbeddedRK is an explicit Runge-Kutta pair with an embedded error estimate.
// The error weights e cover the stages plus the derivative at the new state.
type EmbeddedRK struct {
	tableau
	name     string
	e        []float64
	errOrder int

	safety   float64
	minScale float64
	maxScale float64
}

func (r *EmbeddedRK) Name() string    { return r.name }
func (r *EmbeddedRK) ErrorOrder() int { return r.errOrder }

func (r *EmbeddedRK) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	newX, _ := r.attempt(dyn, x, t, dt, dynamo.Tolerance{Rel: 1e-3, Abs: 1e-6})
	return newX
}

func (r *EmbeddedRK) StepAdaptive(dyn dynamo.System, x dynamo.State, t, dt float64, tol dynamo.Tolerance) (dynamo.State, float64, bool) {
	newX, errNorm := r.attempt(dyn, x, t, dt, tol)

	if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
		return x, dt * r.minScale, false
	}

	exponent := -1.0 / float64(r.errOrder+1)
	if errNorm < 1 {
		scale := r.maxScale
		if errNorm > 0 {
			scale = math.Min(r.maxScale, r.safety*math.Pow(errNorm, exponent))
		}
		return newX, dt * scale, true
	}

	scale := math.Max(r.minScale, r.safety*math.Pow(errNorm, exponent))
	return x, dt * scale, false
}

func (r *EmbeddedRK) attempt(dyn dynamo.System, x dynamo.State, t, dt float64, tol dynamo.Tolerance) (dynamo.State, float64) {
	newX, k := r.advance(dyn, x, t, dt)
	n := len(x)
	if n == 0 {
		return newX, 0
	}
	k[len(k)-1] = dyn.Derive(newX, t+dt)

	errSum := 0.0
	for i := 0; i < n; i++ {
		errEst := 0.0
		for s, w := range r.e {
			if w != 0 {
				errEst += w * k[s][i]
			}
		}
		scale := tol.Abs + tol.Rel*math.Max(math.Abs(x[i]), math.Abs(newX[i]))
		ratio := dt * errEst / scale
		errSum += ratio * ratio
	}
	return newX, math.Sqrt(errSum / float64(n))
}
