package integrators

// NewRK23 returns the Bogacki-Shampine 3(2) pair.
func NewRK23() *EmbeddedRK {
	return &EmbeddedRK{
		tableau: tableau{
			c: []float64{0, 1.0 / 2.0, 3.0 / 4.0},
			a: [][]float64{
				{},
				{1.0 / 2.0},
				{0, 3.0 / 4.0},
			},
			b: []float64{2.0 / 9.0, 1.0 / 3.0, 4.0 / 9.0},
		},
		name:     "RK23",
		e:        []float64{5.0 / 72.0, -1.0 / 12.0, -1.0 / 9.0, 1.0 / 8.0},
		errOrder: 2,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}
