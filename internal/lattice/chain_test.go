package lattice

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/latticesim/internal/dynamo"
	"github.com/san-kum/latticesim/internal/integrators"
)

func tightConfig() dynamo.Config {
	cfg := dynamo.DefaultConfig()
	cfg.RelTol = 1e-9
	cfg.AbsTol = 1e-12
	return cfg
}

func TestChain_TwoLayerFrequency(t *testing.T) {
	const m, k, d0 = 1.0, 4.0, 0.1

	chain, err := NewChain(
		[]float64{m, m},
		[]float64{0, 0},
		mat.NewDense(2, 1, []float64{k, 0}),
		nil, nil,
	)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	omega := math.Sqrt(2 * k / m)
	period := 2 * math.Pi / omega
	times := floats.Span(make([]float64, 41), 0, 2*period)

	sim := dynamo.New(chain, integrators.NewRK45())
	traj, err := sim.Run(context.Background(), dynamo.State{0, d0, 0, 0}, times, tightConfig())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for i, ts := range times {
		x, _ := traj.States[i].Halves()
		got := x[1] - x[0]
		want := d0 * math.Cos(omega*ts)
		if math.Abs(got-want) > 1e-7 {
			t.Errorf("t=%.4f: displacement difference %.9f, want %.9f", ts, got, want)
		}
	}
}

func TestChain_SingleLayerStaysAtRest(t *testing.T) {
	chain, err := NewChain([]float64{2}, []float64{0.5}, mat.NewDense(1, 1, []float64{3}), nil, nil)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	dx := chain.Derive(dynamo.State{0.2, 0}, 0)
	if dx[0] != 0 || dx[1] != 0 {
		t.Errorf("lone layer at rest should not accelerate, got %v", dx)
	}
}

func TestChain_EnergyConservation(t *testing.T) {
	const n = 6
	springs := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		springs.SetRow(i, []float64{10 + float64(i), 2, 0.5})
	}
	mass := []float64{1, 2, 1, 3, 1, 2}

	chain, err := NewChain(mass, make([]float64, n), springs, nil, nil)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	x0 := make(dynamo.State, 2*n)
	x0[0] = 0.05
	x0[n+2] = -0.1

	sim := dynamo.New(chain, integrators.NewRK45())
	traj, err := sim.Run(context.Background(), x0, floats.Span(make([]float64, 50), 0, 10), tightConfig())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	e0 := chain.Energy(x0)
	for i, s := range traj.States {
		if drift := math.Abs(chain.Energy(s)-e0) / e0; drift > 1e-6 {
			t.Fatalf("sample %d: relative energy drift %e", i, drift)
		}
	}
}

func TestChain_MethodsAgree(t *testing.T) {
	const n = 4
	springs := mat.NewDense(n, 1, []float64{5, 8, 6, 0})
	delays := floats.Span(make([]float64, 21), 0, 4)

	sticks := mat.NewDense(len(delays), n, nil)
	for row := range delays {
		sticks.SetRow(row, []float64{1e-3, 8e-4, 5e-4, 1e-4})
	}

	chain, err := NewChain([]float64{1, 1, 2, 2}, []float64{0, 0, 0, 0}, springs, HeatForce(sticks, springs), delays)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	run := func(integ dynamo.Integrator, cfg dynamo.Config) []dynamo.State {
		traj, err := dynamo.New(chain, integ).Run(context.Background(), make(dynamo.State, 2*n), delays, cfg)
		if err != nil {
			t.Fatalf("%T: run failed: %v", integ, err)
		}
		return traj.States
	}

	fixed := dynamo.DefaultConfig()
	fixed.MaxStep = 1e-3
	ref := run(integrators.NewRK4(), fixed)

	adaptive := dynamo.DefaultConfig()
	adaptive.RelTol = 1e-8
	adaptive.AbsTol = 1e-12
	adaptive.MaxStep = 0.05

	for _, integ := range []dynamo.Integrator{integrators.NewRK23(), integrators.NewRK45()} {
		got := run(integ, adaptive)
		for i := range ref {
			for j := range ref[i] {
				if math.Abs(got[i][j]-ref[i][j]) > 1e-6 {
					t.Fatalf("%T sample %d entry %d: %g vs RK4 %g", integ, i, j, got[i][j], ref[i][j])
				}
			}
		}
	}
}

func TestNewChain_Errors(t *testing.T) {
	k2 := mat.NewDense(2, 1, []float64{1, 1})

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"no layers", func() error {
			_, err := NewChain(nil, nil, k2, nil, nil)
			return err
		}, dynamo.ErrInvalidInput},
		{"damping length", func() error {
			_, err := NewChain([]float64{1, 1}, []float64{0}, k2, nil, nil)
			return err
		}, dynamo.ErrDimensionMismatch},
		{"zero mass", func() error {
			_, err := NewChain([]float64{1, 0}, []float64{0, 0}, k2, nil, nil)
			return err
		}, dynamo.ErrInvalidInput},
		{"heat rows", func() error {
			_, err := NewChain([]float64{1, 1}, []float64{0, 0}, k2, mat.NewDense(3, 2, nil), []float64{0, 1})
			return err
		}, dynamo.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestStrain(t *testing.T) {
	got := Strain([]float64{0, 0.2, 0.5}, []float64{2, 3, 4})
	want := []float64{0.1, 0.1}
	if !floats.EqualApprox(got, want, 1e-12) {
		t.Errorf("Strain = %v, want %v", got, want)
	}
	if Strain([]float64{1}, []float64{1}) != nil {
		t.Error("single layer has no strain")
	}
}

func TestChain_HoldKeepsIntervalDrive(t *testing.T) {
	springs := mat.NewDense(2, 1, []float64{4, 4})
	heat := mat.NewDense(2, 2, []float64{
		0, 0,
		3, -3,
	})
	chain, err := NewChain([]float64{1, 1}, []float64{0, 0}, springs, heat, []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	rest := make(dynamo.State, 4)

	if got := chain.Derive(rest, 1); got[2] != 3 || got[3] != -3 {
		t.Errorf("expected the second row at t=1, got %v", got)
	}
	held := chain.Hold(0.5)
	if got := held.Derive(rest, 1); got[2] != 0 || got[3] != 0 {
		t.Errorf("held chain must keep the first row at the interval end, got %v", got)
	}
	if got := chain.Hold(1).Derive(rest, 1); got[2] != 3 {
		t.Errorf("expected the second row from t=1 on, got %v", got)
	}

	free, err := NewChain([]float64{1, 1}, []float64{0, 0}, springs, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if free.Hold(0) != dynamo.System(free) {
		t.Error("an undriven chain has nothing to hold")
	}
}
