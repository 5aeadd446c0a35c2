package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/latticesim/internal/analysis"
	"github.com/san-kum/latticesim/internal/export"
)

func listEntries(cmd *cobra.Command, args []string) error {
	entries, err := openStore().List()
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("no cached strain maps found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSAMPLE\tTIME\tMETHOD\tDELAYS\tLAYERS\tELAPSED")

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.2fs\n",
			e.Key,
			e.Sample,
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Method,
			e.Delays,
			e.Layers,
			e.Elapsed,
		)
	}

	return w.Flush()
}

func loadData(key string) (*export.Data, error) {
	entry, err := openStore().Load(key)
	if err != nil {
		return nil, err
	}
	return export.FromEntry(entry), nil
}

func column(rows [][]float64, col int) ([]float64, error) {
	out := make([]float64, len(rows))
	for t, row := range rows {
		if col < 0 || col >= len(row) {
			return nil, fmt.Errorf("layer %d out of range [0, %d)", col, len(row))
		}
		out[t] = row[col]
	}
	return out, nil
}

func plotEntry(cmd *cobra.Command, args []string) error {
	d, err := loadData(args[0])
	if err != nil {
		return err
	}
	if len(d.Strain) == 0 {
		return fmt.Errorf("empty strain map")
	}

	fmt.Printf("key: %s\n", d.Key)
	fmt.Printf("sample: %s\n", d.Sample)
	fmt.Printf("method: %s\n", d.Method)
	fmt.Printf("delays: %d (%.3f to %.3f ps)\n\n", len(d.Delays), d.Delays[0]*1e12, d.Delays[len(d.Delays)-1]*1e12)

	if heatmap {
		m, err := export.Matrix(d.Strain)
		if err != nil {
			return err
		}
		fmt.Println("|strain|, delay down, depth across")
		fmt.Print(analysis.HeatmapASCII(m, 100, 40))
		return nil
	}

	if len(layers) == 0 {
		m, err := export.Matrix(d.Strain)
		if err != nil {
			return err
		}
		_, cols := m.Dims()
		graph := asciigraph.Plot(analysis.LayerAverage(m, 0, cols),
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption("mean strain"),
		)
		fmt.Println(graph)
		return nil
	}

	for _, l := range layers {
		data, err := column(d.Strain, l)
		if err != nil {
			return err
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("strain, layer %d", l)),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func analyzeEntry(cmd *cobra.Command, args []string) error {
	d, err := loadData(args[0])
	if err != nil {
		return err
	}
	m, err := export.Matrix(d.Strain)
	if err != nil {
		return err
	}

	sum, err := analysis.Summarize(d.Delays, m)
	if err != nil {
		return err
	}
	printMetrics(d.Metrics)
	printSummary(sum)

	_, cols := m.Dims()
	mean := analysis.LayerAverage(m, 0, cols)
	if at, ok := analysis.ArrivalDelay(d.Delays, mean, 0.5); ok {
		fmt.Printf("  half-rise delay: %.3f ps\n", at*1e12)
	}

	dt, ok := analysis.Uniform(d.Delays)
	if !ok {
		fmt.Println("\ndelays are not evenly spaced; skipping spectrum")
		return nil
	}
	sp, err := analysis.PowerSpectrum(mean, dt)
	if err != nil {
		fmt.Printf("\nspectrum: %v\n", err)
		return nil
	}

	fmt.Println()
	graph := asciigraph.Plot(sp.Power[1:],
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("power spectrum of mean strain, %.3g GHz per bin", sp.Freqs[1]/1e9)),
	)
	fmt.Println(graph)
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	d, err := loadData(args[0])
	if err != nil {
		return err
	}
	rows := d.Strain
	if velocity {
		rows = d.Velocity
	}
	return export.CSV(os.Stdout, d.Delays, rows)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	d, err := loadData(args[0])
	if err != nil {
		return err
	}
	return export.JSON(os.Stdout, d)
}

func exportPNG(cmd *cobra.Command, args []string) error {
	d, err := loadData(args[0])
	if err != nil {
		return err
	}
	title := d.Sample
	if title == "" {
		title = d.Key
	}
	if err := export.WritePNG(outPath, d, export.PlotOptions{Title: title, Layers: layers}); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outPath)
	return nil
}
