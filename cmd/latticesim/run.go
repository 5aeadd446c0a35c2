package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/latticesim/internal/analysis"
	"github.com/san-kum/latticesim/internal/automation"
	"github.com/san-kum/latticesim/internal/cache"
	"github.com/san-kum/latticesim/internal/config"
	"github.com/san-kum/latticesim/internal/dynamo"
	"github.com/san-kum/latticesim/internal/expansion"
	"github.com/san-kum/latticesim/internal/export"
	"github.com/san-kum/latticesim/internal/phonon"
	"github.com/san-kum/latticesim/internal/tui"
)

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("method") {
		cfg.Simulation.Method = method
	}
	if cmd.Flags().Changed("only-heat") {
		cfg.Simulation.OnlyHeat = onlyHeat
	}
	if cmd.Flags().Changed("force") {
		cfg.Simulation.ForceRecalc = forceRecalc
	}
	if cmd.Flags().Changed("rtol") {
		cfg.Simulation.RelTol = rtol
	}
	if cmd.Flags().Changed("atol") {
		cfg.Simulation.AbsTol = atol
	}
	if cmd.Flags().Changed("max-step") {
		cfg.Simulation.MaxStep = maxStep
	}
}

func runStrainMap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	s, err := cfg.BuildStructure()
	if err != nil {
		return err
	}
	store := cache.New(cacheDir(cfg))
	if err := store.Init(); err != nil {
		return err
	}

	delays := cfg.Delays()
	temps := cfg.TempMaps(s)
	logger := log.WithField("config", cfg.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	compute := func(ctx context.Context, obs dynamo.Observer) (*phonon.Result, error) {
		opts := cfg.PhononOptions()
		if obs != nil {
			opts.Observers = append(opts.Observers, obs)
		}
		sim := phonon.New(s, expansion.Linear{}, store, opts, logger)
		return sim.StrainMap(ctx, delays, temps, nil)
	}

	fmt.Println(s)
	var res *phonon.Result
	if useTUI {
		log.SetOutput(io.Discard)
		res, err = tui.Run(ctx, cfg.Name, delays, compute, tea.WithContext(ctx))
		log.SetOutput(os.Stderr)
	} else {
		res, err = compute(ctx, nil)
	}
	if res == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	fmt.Printf("key: %s\n", res.Key)
	fmt.Printf("cached: %v\n", res.FromCache)
	fmt.Printf("elapsed: %v\n", res.Elapsed.Round(time.Millisecond))
	if !res.FromCache && !cfg.Simulation.OnlyHeat {
		fmt.Printf("steps: %d accepted, %d rejected\n", res.StepsTaken, res.StepsRejected)
	}
	printMetrics(res.Metrics)
	if sum, err := analysis.Summarize(res.Delays, res.Strain); err == nil {
		printSummary(sum)
	}

	data := export.FromResult(s.Label(), cfg.Simulation.Method, cfg.Simulation.OnlyHeat, res)
	if outJSON != "" {
		if err := export.WriteJSON(outJSON, data); err != nil {
			return err
		}
	}
	if outCSV != "" {
		if err := export.WriteCSV(outCSV, data.Delays, data.Strain); err != nil {
			return err
		}
	}
	if outPNG != "" {
		if err := export.WritePNG(outPNG, data, export.PlotOptions{Title: cfg.Name}); err != nil {
			return err
		}
	}
	return nil
}

func printMetrics(metrics map[string]float64) {
	if len(metrics) == 0 {
		return
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, metrics[name])
	}
}

func printSummary(s *analysis.Summary) {
	fmt.Println("\nstrain:")
	fmt.Printf("  max: %.4e\n", s.MaxStrain)
	fmt.Printf("  min: %.4e\n", s.MinStrain)
	fmt.Printf("  peak: layer %d at %.3f ps\n", s.PeakLayer, s.PeakDelay*1e12)
	fmt.Printf("  final mean: %.4e\n", s.FinalMean)
	if s.DominantFreq > 0 {
		fmt.Printf("  dominant frequency: %.4g GHz\n", s.DominantFreq/1e9)
	}
}

func compareMethods(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := cfg.BuildStructure()
	if err != nil {
		return err
	}
	delays := cfg.Delays()
	temps := cfg.TempMaps(s)

	fmt.Printf("comparing integrators for %s (%d layers, %d delays)\n\n", cfg.Name, s.NumLayers(), len(delays))
	fmt.Printf("%-8s  %-12s  %-12s  %-8s  %-10s\n", "method", "max_strain", "max_diff", "steps", "time_ms")
	fmt.Println(strings.Repeat("-", 58))

	var reference *mat.Dense
	for _, name := range args {
		opts := cfg.PhononOptions()
		opts.Method = name
		sim := phonon.New(s, expansion.Linear{}, nil, opts, log.WithField("method", name))

		start := time.Now()
		res, err := sim.CalcStrainMap(context.Background(), delays, temps, nil)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("%-8s  error: %v\n", name, err)
			continue
		}

		peak, _, _ := analysis.Peak(res.Strain)
		diff := math.NaN()
		if reference == nil {
			reference = res.Strain
			diff = 0
		} else {
			var d mat.Dense
			d.Sub(res.Strain, reference)
			diff, _, _ = analysis.Peak(&d)
			diff = math.Abs(diff)
		}
		fmt.Printf("%-8s  %12.4e  %12.2e  %8d  %10.2f\n", name, peak, diff, res.StepsTaken, float64(elapsed.Microseconds())/1000)
	}
	return nil
}

func showSample(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := cfg.BuildStructure()
	if err != nil {
		return err
	}

	fmt.Println(s)
	fmt.Println("\nlayers:")
	for _, l := range s.UniqueLayers() {
		fmt.Printf("  %s\n", l)
	}

	fmt.Println("\ninterfaces (nm):")
	for _, z := range s.DistancesOfInterfaces() {
		fmt.Printf("  %.3f\n", z*1e9)
	}

	d := cfg.Excitation.Delays
	fmt.Printf("\ndelays: %d from %.3f ps to %.3f ps\n", d.Steps, d.Start*1e12, d.Stop*1e12)
	for _, ex := range cfg.Excitation.Subsystems {
		fmt.Printf("  %s: %.1f K + %.1f K", ex.Name, ex.Initial, ex.Rise)
		if ex.Depth > 0 {
			fmt.Printf(", depth %.2f nm", ex.Depth*1e9)
		}
		if ex.Tau > 0 {
			fmt.Printf(", tau %.2f ps", ex.Tau*1e12)
		}
		fmt.Println()
	}
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, runErr := automation.RunScenario(ctx, scenario, openStore(), log.WithField("scenario", scenario.Name))
	printOutcomes(out, false)
	return runErr
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sweep := &automation.ParameterSweep{
		Base:    cfg,
		Param:   sweepParam,
		Min:     sweepMin,
		Max:     sweepMax,
		Steps:   sweepSteps,
		Workers: workers,
	}
	out, runErr := automation.RunSweep(ctx, sweep, cache.New(cacheDir(cfg)), log.WithField("sweep", sweepParam))
	printOutcomes(out, true)
	return runErr
}

func printOutcomes(out []automation.Outcome, withValue bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if withValue {
		fmt.Fprint(w, "VALUE\t")
	}
	fmt.Fprintln(w, "NAME\tKEY\tCACHED\tMAX\tMIN\tFREQ_GHZ\tERROR")
	for _, o := range out {
		if withValue {
			fmt.Fprintf(w, "%g\t", o.Value)
		}
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}
		if o.Summary == nil {
			fmt.Fprintf(w, "%s\t%s\t%v\t-\t-\t-\t%s\n", o.Name, o.Key, o.FromCache, errText)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%.3e\t%.3e\t%.3g\t%s\n",
			o.Name, o.Key, o.FromCache, o.Summary.MaxStrain, o.Summary.MinStrain, o.Summary.DominantFreq/1e9, errText)
	}
	w.Flush()

	ok, failed := automation.Stats(out)
	fmt.Printf("\n%d succeeded, %d failed\n", ok, failed)
}
