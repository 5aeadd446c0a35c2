package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/latticesim/internal/cache"
	"github.com/san-kum/latticesim/internal/config"
)

var (
	dataDir  string
	logLevel string

	configFile  string
	preset      string
	method      string
	onlyHeat    bool
	forceRecalc bool
	rtol        float64
	atol        float64
	maxStep     float64
	useTUI      bool
	outJSON     string
	outCSV      string
	outPNG      string

	layers   []int
	velocity bool
	heatmap  bool
	outPath  string

	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	workers    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "latticesim",
		Short: "coherent phonon strain in layered crystals",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "cache directory (default: cache_dir of the configuration)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "compute a strain map",
		Args:  cobra.NoArgs,
		RunE:  runStrainMap,
	}
	addSampleFlags(runCmd)
	runCmd.Flags().StringVar(&method, "method", "", "integrator (RK23, RK45, RK4)")
	runCmd.Flags().BoolVar(&onlyHeat, "only-heat", false, "quasi-static strain only")
	runCmd.Flags().BoolVar(&forceRecalc, "force", false, "ignore cached results")
	runCmd.Flags().Float64Var(&rtol, "rtol", 0, "relative tolerance")
	runCmd.Flags().Float64Var(&atol, "atol", 0, "absolute tolerance")
	runCmd.Flags().Float64Var(&maxStep, "max-step", 0, "largest solver step in seconds")
	runCmd.Flags().BoolVar(&useTUI, "tui", false, "show a progress display")
	runCmd.Flags().StringVar(&outJSON, "out-json", "", "write the maps as JSON")
	runCmd.Flags().StringVar(&outCSV, "out-csv", "", "write the strain map as CSV")
	runCmd.Flags().StringVar(&outPNG, "out-png", "", "write a strain plot as PNG")

	compareCmd := &cobra.Command{
		Use:   "compare [method] [method] ...",
		Short: "compare integrators on the same sample",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compareMethods,
	}
	addSampleFlags(compareCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "describe the sample of a configuration",
		Args:  cobra.NoArgs,
		RunE:  showSample,
	}
	addSampleFlags(showCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Printf("  %-14s %s\n", name, config.GetPreset(name).Name)
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [preset] [path]",
		Short: "write a preset as an editable config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetPreset(args[0])
			if cfg == nil {
				return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
			}
			return config.Save(args[1], cfg)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list cached strain maps",
		Args:  cobra.NoArgs,
		RunE:  listEntries,
	}

	removeCmd := &cobra.Command{
		Use:   "remove [key]",
		Short: "delete a cached strain map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return openStore().Remove(args[0])
		},
	}

	plotCmd := &cobra.Command{
		Use:   "plot [key]",
		Short: "plot a cached strain map in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotEntry,
	}
	plotCmd.Flags().IntSliceVar(&layers, "layer", nil, "layers to plot (default: layer average)")
	plotCmd.Flags().BoolVar(&heatmap, "heatmap", false, "draw the whole map as a heatmap")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [key]",
		Short: "strain extrema and frequency analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeEntry,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [key]",
		Short: "export a strain map to CSV on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().BoolVar(&velocity, "velocity", false, "export the velocity map instead")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [key]",
		Short: "export strain and velocity maps to JSON on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportPNGCmd := &cobra.Command{
		Use:   "export-png [key]",
		Short: "render strain traces to a PNG file",
		Args:  cobra.ExactArgs(1),
		RunE:  exportPNG,
	}
	exportPNGCmd.Flags().IntSliceVar(&layers, "layer", nil, "layers to plot (default: layer average)")
	exportPNGCmd.Flags().StringVarP(&outPath, "out", "o", "strain.png", "output file")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a batch of strain maps from a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "vary one parameter and summarize each strain map",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addSampleFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "rise", "parameter to vary")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 50, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 500, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (0: unlimited)")

	rootCmd.AddCommand(runCmd, compareCmd, showCmd, presetsCmd, initCmd, listCmd, removeCmd,
		plotCmd, analyzeCmd, exportCSVCmd, exportJSONCmd, exportPNGCmd, scenarioCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSampleFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "sro_sto", "use preset configuration")
}

// loadConfig reads --config when given and the preset otherwise.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}
	return cfg, nil
}

func cacheDir(cfg *config.Config) string {
	switch {
	case dataDir != "":
		return dataDir
	case cfg != nil && cfg.CacheDir != "":
		return cfg.CacheDir
	default:
		return config.DefaultCacheDir
	}
}

func openStore() *cache.Store {
	return cache.New(cacheDir(nil))
}
