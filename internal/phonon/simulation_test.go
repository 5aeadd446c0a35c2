package phonon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/latticesim/internal/cache"
	"github.com/san-kum/latticesim/internal/dynamo"
	"github.com/san-kum/latticesim/internal/expansion"
	"github.com/san-kum/latticesim/internal/integrators"
	"github.com/san-kum/latticesim/internal/phonon"
	"github.com/san-kum/latticesim/internal/structure"
)

func newLayer(id string, d float64) *structure.Layer {
	return &structure.Layer{
		ID:           id,
		Name:         "layer " + id,
		Thickness:    d,
		MassPerArea:  1,
		SpringConsts: []float64{4},
		Damping:      0,
		LinThermExp:  []float64{1e-3},
	}
}

func bilayer(top, bottom *structure.Layer) *structure.Structure {
	s := structure.New("bilayer")
	Expect(s.AddLayers(top, 2)).To(Succeed())
	Expect(s.AddLayers(bottom, 3)).To(Succeed())
	return s
}

// stepHeating raises every layer by dT[i] after the first delay.
func stepHeating(delays []float64, dT []float64) *mat.Dense {
	m := mat.NewDense(len(delays), len(dT), nil)
	for t := range delays {
		for i, d := range dT {
			m.Set(t, i, 300)
			if t > 0 {
				m.Set(t, i, 300+d)
			}
		}
	}
	return m
}

type counter struct{ n atomic.Int64 }

func (c *counter) factory() (dynamo.Integrator, error) {
	c.n.Add(1)
	return integrators.NewRK23(), nil
}

var _ = Describe("Simulation", func() {
	var (
		dir     string
		store   *cache.Store
		sample  *structure.Structure
		delays  []float64
		temps   []*mat.Dense
		calls   *counter
		opts    phonon.Options
		logger  *log.Entry
		logHook *test.Hook
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		store = cache.New(dir)
		sample = bilayer(newLayer("A", 1), newLayer("B", 2))
		delays = floats.Span(make([]float64, 21), 0, 10)
		temps = []*mat.Dense{stepHeating(delays, []float64{50, 40, 30, 20, 10})}

		calls = &counter{}
		opts = phonon.DefaultOptions()
		opts.NewIntegrator = calls.factory

		base, hook := test.NewNullLogger()
		logger = log.NewEntry(base)
		logHook = hook
	})

	newSim := func() *phonon.Simulation {
		return phonon.New(sample, expansion.Linear{}, store, opts, logger)
	}

	Describe("only-heat mode", func() {
		BeforeEach(func() { opts.OnlyHeat = true })

		It("returns sticks divided by thickness and zero velocities", func() {
			res, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())

			rows, cols := res.Strain.Dims()
			Expect(rows).To(Equal(len(delays)))
			Expect(cols).To(Equal(5))

			thickness, _ := sample.PropertyVector("thickness")
			for t := 0; t < rows; t++ {
				for i := 0; i < cols; i++ {
					Expect(res.Strain.At(t, i)).To(Equal(res.Sticks.At(t, i) / thickness[i]))
				}
			}
			Expect(mat.Norm(res.Velocity, 1)).To(BeZero())
			Expect(calls.n.Load()).To(BeZero(), "no integration in only-heat mode")
		})

		It("works for a single layer", func() {
			sample = structure.New("single")
			Expect(sample.AddLayers(newLayer("A", 1), 1)).To(Succeed())
			temps = []*mat.Dense{stepHeating(delays, []float64{100})}

			res, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Strain.At(5, 0)).To(BeNumerically("~", 1e-3*100, 1e-15))
		})
	})

	Describe("coherent dynamics", func() {
		It("produces [T, L-1] strain and [T, L] velocity maps", func() {
			res, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())

			r, c := res.Strain.Dims()
			Expect(r).To(Equal(len(delays)))
			Expect(c).To(Equal(4))
			r, c = res.Velocity.Dims()
			Expect(r).To(Equal(len(delays)))
			Expect(c).To(Equal(5))

			Expect(res.Strain.RawRowView(0)).To(HaveEach(BeZero()), "chain starts at rest")
			Expect(mat.Norm(res.Strain, 1)).To(BeNumerically(">", 0))
			Expect(res.StepsTaken).To(BeNumerically(">", 0))
			Expect(res.Metrics).To(HaveKey("peak_energy"))
		})

		It("rejects a single-layer stack", func() {
			sample = structure.New("single")
			Expect(sample.AddLayers(newLayer("A", 1), 1)).To(Succeed())
			temps = []*mat.Dense{stepHeating(delays, []float64{100})}

			_, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).To(MatchError(dynamo.ErrInvalidInput))
		})

		It("reports solver failures as simulation errors", func() {
			opts.Solver.MaxStep = 1e-3
			opts.Solver.MaxSteps = 5

			_, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).To(MatchError(dynamo.ErrStepTooSmall))
			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(os.ReadDir(dir)).To(BeEmpty())
		})
	})

	Describe("caching", func() {
		It("serves the second identical request from the cache", func() {
			sim := newSim()
			first, err := sim.StrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.FromCache).To(BeFalse())
			Expect(calls.n.Load()).To(Equal(int64(1)))

			second, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.FromCache).To(BeTrue())
			Expect(second.Key).To(Equal(first.Key))
			Expect(calls.n.Load()).To(Equal(int64(1)), "integrator must not run on a hit")

			Expect(second.Strain.RawMatrix().Data).To(Equal(first.Strain.RawMatrix().Data))
			Expect(second.Velocity.RawMatrix().Data).To(Equal(first.Velocity.RawMatrix().Data))

			Expect(store.StrainPath(first.Key)).To(BeAnExistingFile())
			Expect(store.VelocityPath(first.Key)).To(BeAnExistingFile())
		})

		It("recomputes when forced", func() {
			_, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())

			opts.ForceRecalc = true
			res, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.FromCache).To(BeFalse())
			Expect(calls.n.Load()).To(Equal(int64(2)))
		})

		It("recomputes over a corrupt artifact and logs a warning", func() {
			sim := newSim()
			res, err := sim.StrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(os.WriteFile(store.StrainPath(res.Key), []byte("garbage"), 0644)).To(Succeed())
			logHook.Reset()

			again, err := sim.StrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.FromCache).To(BeFalse())
			Expect(calls.n.Load()).To(Equal(int64(2)))

			var warned bool
			for _, e := range logHook.AllEntries() {
				if e.Level == log.WarnLevel {
					warned = true
				}
			}
			Expect(warned).To(BeTrue())

			_, err = store.Load(res.Key)
			Expect(err).NotTo(HaveOccurred(), "the artifact is rewritten")
		})

		It("returns the result together with a write error", func() {
			blocker := filepath.Join(dir, "file")
			Expect(os.WriteFile(blocker, nil, 0644)).To(Succeed())
			store = cache.New(filepath.Join(blocker, "cache"))

			res, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).To(HaveOccurred())
			Expect(res).NotTo(BeNil())
			Expect(res.Strain).NotTo(BeNil())
		})

		It("coalesces concurrent identical requests", func() {
			sim := newSim()
			const n = 8
			results := make([]*phonon.Result, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				i := i
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					res, err := sim.StrainMap(context.Background(), delays, temps, nil)
					Expect(err).NotTo(HaveOccurred())
					results[i] = res
				}()
			}
			wg.Wait()

			Expect(calls.n.Load()).To(BeNumerically(">=", 1))
			Expect(calls.n.Load()).To(BeNumerically("<=", n))
			for i := 1; i < n; i++ {
				Expect(results[i].Strain.RawMatrix().Data).To(Equal(results[0].Strain.RawMatrix().Data))
				Expect(results[i].Strain).NotTo(BeIdenticalTo(results[0].Strain))
			}
		})
	})

	Describe("cache key", func() {
		var base string

		BeforeEach(func() {
			base = newSim().Key(delays, temps, nil)
		})

		It("is stable", func() {
			Expect(newSim().Key(delays, temps, nil)).To(Equal(base))
			Expect(base).To(MatchRegexp("^[0-9a-f]{32}$"))
		})

		DescribeTable("changes with every physical parameter",
			func(mutate func(l *structure.Layer)) {
				top := newLayer("A", 1)
				mutate(top)
				sample = bilayer(top, newLayer("B", 2))
				Expect(newSim().Key(delays, temps, nil)).NotTo(Equal(base))
			},
			Entry("thickness", func(l *structure.Layer) { l.Thickness = 1.0000001 }),
			Entry("mass", func(l *structure.Layer) { l.MassPerArea = 1.5 }),
			Entry("spring constant", func(l *structure.Layer) { l.SpringConsts = []float64{4.01} }),
			Entry("anharmonic order", func(l *structure.Layer) { l.SpringConsts = []float64{4, 0} }),
			Entry("damping", func(l *structure.Layer) { l.Damping = 1e-9 }),
			Entry("expansion", func(l *structure.Layer) { l.LinThermExp = []float64{2e-3} }),
			Entry("id", func(l *structure.Layer) { l.ID = "A2" }),
		)

		It("ignores display names", func() {
			top := newLayer("A", 1)
			top.Name = "renamed"
			sample = bilayer(top, newLayer("B", 2))
			sample.Name = "renamed stack"
			Expect(newSim().Key(delays, temps, nil)).To(Equal(base))
		})

		It("changes with any delay, temperature entry or mode", func() {
			shifted := append([]float64(nil), delays...)
			shifted[7] += 1e-9
			Expect(newSim().Key(shifted, temps, nil)).NotTo(Equal(base))

			hotter := mat.DenseCopyOf(temps[0])
			hotter.Set(3, 2, hotter.At(3, 2)+0.5)
			Expect(newSim().Key(delays, []*mat.Dense{hotter}, nil)).NotTo(Equal(base))

			delta := []*mat.Dense{mat.NewDense(len(delays), 5, nil)}
			Expect(newSim().Key(delays, temps, delta)).NotTo(Equal(base))

			opts.OnlyHeat = true
			Expect(newSim().Key(delays, temps, nil)).NotTo(Equal(base))
		})

		DescribeTable("changes with every solver setting that shapes the steps",
			func(mutate func(o *phonon.Options)) {
				mutate(&opts)
				Expect(newSim().Key(delays, temps, nil)).NotTo(Equal(base))
			},
			Entry("rtol", func(o *phonon.Options) { o.Solver.RelTol *= 10 }),
			Entry("atol", func(o *phonon.Options) { o.Solver.AbsTol /= 10 }),
			Entry("max step", func(o *phonon.Options) { o.Solver.MaxStep = 0.25 }),
			Entry("first step", func(o *phonon.Options) { o.Solver.FirstStep = 1e-3 }),
			Entry("method", func(o *phonon.Options) {
				o.NewIntegrator = nil
				o.Method = "RK45"
			}),
		)

		It("names methods case-insensitively and defaults the empty name", func() {
			opts.NewIntegrator = nil
			opts.Method = "RK23"
			rk23 := newSim().Key(delays, temps, nil)

			opts.Method = "rk23"
			Expect(newSim().Key(delays, temps, nil)).To(Equal(rk23))
			opts.Method = ""
			Expect(newSim().Key(delays, temps, nil)).To(Equal(rk23))
			opts.Method = "RK4"
			Expect(newSim().Key(delays, temps, nil)).NotTo(Equal(rk23))
		})

		It("ignores the step budget, and solver settings in only-heat mode", func() {
			opts.Solver.MaxSteps = 7
			Expect(newSim().Key(delays, temps, nil)).To(Equal(base))

			opts.OnlyHeat = true
			heat := newSim().Key(delays, temps, nil)
			opts.Solver.RelTol *= 10
			opts.NewIntegrator = nil
			opts.Method = "RK45"
			Expect(newSim().Key(delays, temps, nil)).To(Equal(heat))
		})

		It("keeps tolerance sweeps apart in a shared store", func() {
			first, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())

			opts.Solver.RelTol /= 100
			second, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.FromCache).To(BeFalse())
			Expect(second.Key).NotTo(Equal(first.Key))
			Expect(calls.n.Load()).To(Equal(int64(2)))
		})

		It("changes with the layer order", func() {
			s := structure.New("bilayer")
			Expect(s.AddLayers(newLayer("A", 1), 3)).To(Succeed())
			Expect(s.AddLayers(newLayer("B", 2), 2)).To(Succeed())
			sample = s
			Expect(newSim().Key(delays, temps, nil)).NotTo(Equal(base))
		})
	})

	Describe("validation", func() {
		DescribeTable("rejects bad requests before integrating",
			func(param string, mutate func()) {
				mutate()
				_, err := newSim().StrainMap(context.Background(), delays, temps, nil)
				Expect(err).To(MatchError(dynamo.ErrInvalidInput))
				var inErr *dynamo.InputError
				Expect(errors.As(err, &inErr)).To(BeTrue())
				Expect(inErr.Param).To(Equal(param))
				Expect(calls.n.Load()).To(BeZero())
				Expect(os.ReadDir(dir)).To(BeEmpty())
			},
			Entry("non-monotonic delays", "delays", func() {
				delays = append([]float64(nil), delays...)
				delays[4], delays[5] = delays[5], delays[4]
			}),
			Entry("empty delays", "delays", func() {
				delays = nil
				temps = []*mat.Dense{mat.NewDense(1, 5, nil)}
			}),
			Entry("no subsystems", "temp_map", func() { temps = nil }),
			Entry("wrong map shape", "temp_map", func() {
				temps = []*mat.Dense{mat.NewDense(len(delays), 4, nil)}
			}),
			Entry("too many subsystems", "temp_map", func() {
				temps = append(temps, temps[0])
			}),
		)

		It("rejects mismatched delta maps", func() {
			_, err := newSim().StrainMap(context.Background(), delays, temps, []*mat.Dense{mat.NewDense(2, 2, nil)})
			Expect(err).To(MatchError(dynamo.ErrInvalidInput))
		})

		It("rejects an unknown method", func() {
			opts.NewIntegrator = nil
			opts.Method = "leapfrog"
			_, err := newSim().StrainMap(context.Background(), delays, temps, nil)
			Expect(err).To(MatchError(dynamo.ErrInvalidInput))
		})
	})

	Describe("cancellation", func() {
		It("aborts without writing an artifact", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := newSim().StrainMap(ctx, delays, temps, nil)
			Expect(err).To(MatchError(dynamo.ErrContextCanceled))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(os.ReadDir(dir)).To(BeEmpty())
		})
	})

	Describe("CalcStrainMap", func() {
		It("never touches the cache", func() {
			sim := newSim()
			res, err := sim.CalcStrainMap(context.Background(), delays, temps, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Key).To(Equal(sim.Key(delays, temps, nil)))
			Expect(store.Exists(res.Key)).To(BeFalse())
		})
	})

	Describe("RunAll", func() {
		It("runs independent jobs and reports them in order", func() {
			other := bilayer(newLayer("C", 1), newLayer("D", 3))
			jobs := []phonon.Job{
				{Name: "ab", Sim: newSim(), Delays: delays, TempMaps: temps},
				{Name: "cd", Sim: phonon.New(other, expansion.Linear{}, store, opts, logger), Delays: delays, TempMaps: temps},
			}

			results, err := phonon.RunAll(context.Background(), jobs, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Name).To(Equal("ab"))
			Expect(results[1].Name).To(Equal("cd"))
			Expect(results[0].Result.Key).NotTo(Equal(results[1].Result.Key))
			Expect(calls.n.Load()).To(Equal(int64(2)))
		})

		It("returns the first failure", func() {
			bad := append([]float64(nil), delays...)
			bad[1], bad[2] = bad[2], bad[1]
			jobs := []phonon.Job{
				{Name: "good", Sim: newSim(), Delays: delays, TempMaps: temps},
				{Name: "bad", Sim: newSim(), Delays: bad, TempMaps: temps},
			}

			results, err := phonon.RunAll(context.Background(), jobs, 1)
			Expect(err).To(MatchError(dynamo.ErrInvalidInput))
			Expect(results[1].Err).To(HaveOccurred())
		})
	})
})

var _ = Describe("State", func() {
	It("names every state", func() {
		Expect(phonon.StateStart.String()).To(Equal("start"))
		Expect(phonon.StateCacheHit.String()).To(Equal("cache_hit"))
		Expect(phonon.StateDone.String()).To(Equal("done"))
		Expect(phonon.State(42).String()).To(Equal("state(42)"))
	})
})
