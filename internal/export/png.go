package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

type PlotOptions struct {
	Title string
	// Layers selects the columns to draw. Empty draws the layer average.
	Layers []int
	Width  vg.Length
	Height vg.Length
	DPI    int
}

func (o PlotOptions) withDefaults() PlotOptions {
	if o.Title == "" {
		o.Title = "Strain"
	}
	if o.Width == 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 5 * vg.Inch
	}
	if o.DPI == 0 {
		o.DPI = 150
	}
	return o
}

// StrainPlot draws strain against delay in picoseconds.
func StrainPlot(d *Data, opts PlotOptions) (*plot.Plot, error) {
	if len(d.Delays) == 0 || len(d.Strain) != len(d.Delays) {
		return nil, fmt.Errorf("export: nothing to plot")
	}
	opts = opts.withDefaults()
	cols := len(d.Strain[0])

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "delay (ps)"
	p.Y.Label.Text = "strain"
	p.Add(plotter.NewGrid())

	series := func(col int) plotter.XYs {
		pts := make(plotter.XYs, len(d.Delays))
		for t, delay := range d.Delays {
			pts[t].X = delay * 1e12
			if col < 0 {
				pts[t].Y = stat.Mean(d.Strain[t], nil)
			} else {
				pts[t].Y = d.Strain[t][col]
			}
		}
		return pts
	}

	if len(opts.Layers) == 0 {
		line, err := plotter.NewLine(series(-1))
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add("mean", line)
		return p, nil
	}

	for i, col := range opts.Layers {
		if col < 0 || col >= cols {
			return nil, fmt.Errorf("export: layer %d out of range [0, %d)", col, cols)
		}
		line, err := plotter.NewLine(series(col))
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("layer %d", col), line)
	}
	return p, nil
}

func PNG(w io.Writer, d *Data, opts PlotOptions) error {
	p, err := StrainPlot(d, opts)
	if err != nil {
		return err
	}
	opts = opts.withDefaults()

	c := vgimg.NewWith(
		vgimg.UseWH(opts.Width, opts.Height),
		vgimg.UseDPI(opts.DPI),
	)
	p.Draw(draw.New(c))

	bw := bufio.NewWriter(w)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("export: write png: %w", err)
	}
	return bw.Flush()
}

func WritePNG(path string, d *Data, opts PlotOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return writeFile(path, func(w io.Writer) error { return PNG(w, d, opts) })
}
