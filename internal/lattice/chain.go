package lattice

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/latticesim/internal/dynamo"
)

// Chain is the right-hand side of the lattice equations of motion.
// State: [x_0..x_{L-1}, v_0..v_{L-1}] where x is the layer shift.
//
// All fields are fixed at construction; Derive allocates its result and
// never writes to the chain, so a Chain may be shared between goroutines.
type Chain struct {
	n       int
	mass    []float64
	damping []float64
	springs *mat.Dense // [L, M]
	heat    *mat.Dense // [T, L], nil when undriven
	delays  []float64
}

// NewChain captures the per-layer vectors and the heat-force matrix. heat may
// be nil for a free chain; otherwise it must have one row per delay.
func NewChain(mass, damping []float64, springs, heat *mat.Dense, delays []float64) (*Chain, error) {
	n := len(mass)
	if n == 0 {
		return nil, dynamo.NewInputError("mass", "chain needs at least one layer")
	}
	if len(damping) != n {
		return nil, fmt.Errorf("%w: %d damping coefficients for %d layers", dynamo.ErrDimensionMismatch, len(damping), n)
	}
	if springs == nil {
		return nil, dynamo.NewInputError("spring_const", "missing")
	}
	if r, c := springs.Dims(); r != n || c == 0 {
		return nil, fmt.Errorf("%w: spring constants are %dx%d for %d layers", dynamo.ErrDimensionMismatch, r, c, n)
	}
	for i, m := range mass {
		if !(m > 0) {
			return nil, dynamo.NewInputError("mass", "layer %d has non-positive mass %g", i, m)
		}
	}
	if heat != nil {
		r, c := heat.Dims()
		if c != n {
			return nil, fmt.Errorf("%w: heat force has %d columns for %d layers", dynamo.ErrDimensionMismatch, c, n)
		}
		if r != len(delays) {
			return nil, fmt.Errorf("%w: heat force has %d rows for %d delays", dynamo.ErrDimensionMismatch, r, len(delays))
		}
	}

	return &Chain{
		n:       n,
		mass:    append([]float64(nil), mass...),
		damping: append([]float64(nil), damping...),
		springs: springs,
		heat:    heat,
		delays:  append([]float64(nil), delays...),
	}, nil
}

var _ dynamo.Piecewise = (*Chain)(nil)

func (c *Chain) StateDim() int  { return 2 * c.n }
func (c *Chain) NumLayers() int { return c.n }

func (c *Chain) Derive(state dynamo.State, t float64) dynamo.State {
	return c.derive(state, c.row(t))
}

// Hold freezes the heat drive at the delay interval that contains t.
func (c *Chain) Hold(t float64) dynamo.System {
	if c.heat == nil {
		return c
	}
	return &heldChain{Chain: c, drive: c.row(t)}
}

// row returns the active heat-force row at t, or -1 for an undriven chain.
func (c *Chain) row(t float64) int {
	if c.heat == nil {
		return -1
	}
	return SampleAt(t, c.delays)
}

func (c *Chain) derive(state dynamo.State, row int) dynamo.State {
	x, v := state.Halves()

	left := make([]float64, c.n)
	right := make([]float64, c.n)
	for i := 0; i < c.n-1; i++ {
		d := x[i+1] - x[i]
		right[i] = d
		left[i+1] = d
	}

	spring := SpringForce(left, right, c.springs)
	damp := DampingForce(v, c.damping, c.mass)

	var drive []float64
	if row >= 0 {
		drive = c.heat.RawRowView(row)
	}

	deriv := make(dynamo.State, 2*c.n)
	copy(deriv[:c.n], v)
	for i := 0; i < c.n; i++ {
		f := spring[i] + damp[i]
		if drive != nil {
			f += drive[i]
		}
		deriv[c.n+i] = f / c.mass[i]
	}
	return deriv
}

// heldChain evaluates a Chain with a fixed heat-force row.
type heldChain struct {
	*Chain
	drive int
}

func (h *heldChain) Derive(state dynamo.State, t float64) dynamo.State {
	return h.derive(state, h.drive)
}

// Energy returns the kinetic energy plus the elastic energy stored in the
// bonds, sum_j k[i][j] d_i^(j+2)/(j+2). Damping and heat forcing make it a
// non-conserved quantity in general.
func (c *Chain) Energy(state dynamo.State) float64 {
	x, v := state.Halves()

	var e float64
	for i := 0; i < c.n; i++ {
		e += 0.5 * c.mass[i] * v[i] * v[i]
	}
	for i := 0; i < c.n-1; i++ {
		d := x[i+1] - x[i]
		p := d * d
		for j, k := range c.springs.RawRowView(i) {
			e += k * p / float64(j+2)
			p *= d
		}
	}
	return e
}

// Strain converts a layer-shift vector into per-bond strain
// (x_{i+1} - x_i) / thickness_i, one entry fewer than layers.
func Strain(x, thickness []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	s := make([]float64, len(x)-1)
	for i := range s {
		s[i] = (x[i+1] - x[i]) / thickness[i]
	}
	return s
}
