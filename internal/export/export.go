// Package export writes strain maps as JSON, CSV and PNG.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/latticesim/internal/cache"
	"github.com/san-kum/latticesim/internal/phonon"
)

type Data struct {
	Key      string             `json:"key,omitempty"`
	Sample   string             `json:"sample,omitempty"`
	Method   string             `json:"method,omitempty"`
	OnlyHeat bool               `json:"only_heat"`
	Delays   []float64          `json:"delays"`
	Strain   [][]float64        `json:"strain"`
	Velocity [][]float64        `json:"velocity"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

func FromResult(sample, method string, onlyHeat bool, res *phonon.Result) *Data {
	return &Data{
		Key:      res.Key,
		Sample:   sample,
		Method:   method,
		OnlyHeat: onlyHeat,
		Delays:   res.Delays,
		Strain:   rows(res.Strain),
		Velocity: rows(res.Velocity),
		Metrics:  res.Metrics,
	}
}

// FromEntry converts a cache entry. Entries written without a delay grid
// are exported with row indices as delays.
func FromEntry(e *cache.Entry) *Data {
	delays := e.Meta.DelayGrid
	if n, _ := e.Strain.Dims(); len(delays) != n {
		delays = make([]float64, n)
		for i := range delays {
			delays[i] = float64(i)
		}
	}
	return &Data{
		Key:      e.Meta.Key,
		Sample:   e.Meta.Sample,
		Method:   e.Meta.Method,
		OnlyHeat: e.Meta.OnlyHeat,
		Delays:   delays,
		Strain:   rows(e.Strain),
		Velocity: rows(e.Velocity),
		Metrics:  e.Meta.Metrics,
	}
}

func rows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

// Matrix is the inverse of the row conversion used by Data.
func Matrix(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("export: empty map")
	}
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for t, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("export: row %d has %d columns, expected %d", t, len(row), len(rows[0]))
		}
		m.SetRow(t, row)
	}
	return m, nil
}

func JSON(w io.Writer, d *Data) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(d)
}

func WriteJSON(path string, d *Data) error {
	return writeFile(path, func(w io.Writer) error { return JSON(w, d) })
}

// CSV writes one row per delay: the delay followed by one column per layer
// (or bond) of m.
func CSV(w io.Writer, delays []float64, m [][]float64) error {
	if len(delays) != len(m) {
		return fmt.Errorf("export: %d delays for %d rows", len(delays), len(m))
	}
	cw := csv.NewWriter(w)

	cols := 0
	if len(m) > 0 {
		cols = len(m[0])
	}
	header := make([]string, cols+1)
	header[0] = "delay_s"
	for i := 0; i < cols; i++ {
		header[i+1] = "layer_" + strconv.Itoa(i)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, cols+1)
	for t, row := range m {
		if len(row) != cols {
			return fmt.Errorf("export: row %d has %d columns, expected %d", t, len(row), cols)
		}
		record[0] = strconv.FormatFloat(delays[t], 'g', -1, 64)
		for i, v := range row {
			record[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteCSV(path string, delays []float64, m [][]float64) error {
	return writeFile(path, func(w io.Writer) error { return CSV(w, delays, m) })
}

func writeFile(path string, fn func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
