package metrics

import (
	"math"

	"github.com/san-kum/latticesim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// MaxDisplacement is the largest absolute layer shift over the run. Only the
// position half of a [x..., v...] state is inspected.
type MaxDisplacement struct{ max float64 }

func NewMaxDisplacement() *MaxDisplacement { return &MaxDisplacement{} }

func (m *MaxDisplacement) Name() string { return "max_displacement" }

func (m *MaxDisplacement) Observe(x dynamo.State, t float64) {
	pos, _ := x.Halves()
	m.max = math.Max(m.max, absMax(pos))
}

func (m *MaxDisplacement) Value() float64 { return m.max }
func (m *MaxDisplacement) Reset()         { m.max = 0 }

// MaxVelocity is the largest absolute layer velocity over the run.
type MaxVelocity struct{ max float64 }

func NewMaxVelocity() *MaxVelocity { return &MaxVelocity{} }

func (m *MaxVelocity) Name() string { return "max_velocity" }

func (m *MaxVelocity) Observe(x dynamo.State, t float64) {
	_, vel := x.Halves()
	m.max = math.Max(m.max, absMax(vel))
}

func (m *MaxVelocity) Value() float64 { return m.max }
func (m *MaxVelocity) Reset()         { m.max = 0 }

func absMax(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Max(math.Abs(floats.Max(v)), math.Abs(floats.Min(v)))
}
