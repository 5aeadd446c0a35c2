package integrators

// dp5 is the fifth order Dormand-Prince solution and dp4 the embedded
// fourth order one, both including the FSAL stage.
var (
	dp5 = []float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0, 0}
	dp4 = []float64{5179.0 / 57600.0, 0, 7571.0 / 16695.0, 393.0 / 640.0, -92097.0 / 339200.0, 187.0 / 2100.0, 1.0 / 40.0}
)

// NewRK45 returns the Dormand-Prince 5(4) pair.
func NewRK45() *EmbeddedRK {
	e := make([]float64, len(dp5))
	for i := range e {
		e[i] = dp5[i] - dp4[i]
	}
	return &EmbeddedRK{
		tableau: tableau{
			c: []float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1},
			a: [][]float64{
				{},
				{1.0 / 5.0},
				{3.0 / 40.0, 9.0 / 40.0},
				{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0},
				{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0},
				{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0},
			},
			b: dp5[:6],
		},
		name:     "RK45",
		e:        e,
		errOrder: 4,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}
