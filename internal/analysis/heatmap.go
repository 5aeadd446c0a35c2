package analysis

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var shades = []rune(" .:-=+*#%@")

// HeatmapASCII renders |m| with rows (delays) running down and columns
// (depth) running across, resampled to width x height cells. Each cell
// shows the largest magnitude it covers, scaled to the global maximum.
func HeatmapASCII(m *mat.Dense, width, height int) string {
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 || width <= 0 || height <= 0 {
		return ""
	}
	if width > cols {
		width = cols
	}
	if height > rows {
		height = rows
	}

	cells := make([][]float64, height)
	for r := range cells {
		cells[r] = make([]float64, width)
	}
	peak := 0.0
	for t := 0; t < rows; t++ {
		r := t * height / rows
		for i := 0; i < cols; i++ {
			c := i * width / cols
			v := math.Abs(m.At(t, i))
			if v > cells[r][c] {
				cells[r][c] = v
			}
			peak = math.Max(peak, v)
		}
	}
	if peak == 0 {
		peak = 1
	}

	var sb strings.Builder
	for _, row := range cells {
		for _, v := range row {
			idx := int(v / peak * float64(len(shades)-1))
			sb.WriteRune(shades[idx])
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
