// Package tracker provides the epicurve table: per-step compartment counts
// stored in a dense, row-major, append-only table.
package tracker

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/talgya/episim/internal/population"
)

// Tracker is a growing table of counts with one row per step.
type Tracker struct {
	names []string
	cols  int
	data  []int // row-major, len(data) == rows*cols
}

// New returns an empty tracker with the given column names.
func New(names []string) *Tracker {
	return &Tracker{names: append([]string(nil), names...), cols: len(names)}
}

// FromPopulation creates a tracker with the model's compartment columns and
// records the first snapshot.
func FromPopulation(pop *population.Population) *Tracker {
	t := New(pop.Model().ShortNames())
	t.Update(pop, true)
	return t
}

// Names returns the column names.
func (t *Tracker) Names() []string {
	return append([]string(nil), t.names...)
}

// Rows returns the number of recorded rows.
func (t *Tracker) Rows() int {
	if t.cols == 0 {
		return 0
	}
	return len(t.data) / t.cols
}

// Cols returns the number of columns.
func (t *Tracker) Cols() int {
	return t.cols
}

// Update records the population's compartment counts. With advance set a
// new row is appended; otherwise the last row is overwritten. Columns added
// with AddColumn past the compartment counts are left at zero on new rows.
func (t *Tracker) Update(pop *population.Population, advance bool) {
	counts := pop.Counts()
	if advance || t.Rows() == 0 {
		t.data = append(t.data, make([]int, t.cols)...)
	}
	copy(t.data[len(t.data)-t.cols:], counts)
}

// Push appends a full row.
func (t *Tracker) Push(row []int) error {
	if len(row) != t.cols {
		return fmt.Errorf("push row: got %d values, want %d", len(row), t.cols)
	}
	t.data = append(t.data, row...)
	return nil
}

// Get returns the value at row i, column j.
func (t *Tracker) Get(i, j int) int {
	return t.data[i*t.cols+j]
}

// Set overwrites the value at row i, column j.
func (t *Tracker) Set(i, j, v int) {
	t.data[i*t.cols+j] = v
}

// Row returns a copy of row i.
func (t *Tracker) Row(i int) []int {
	return append([]int(nil), t.data[i*t.cols:(i+1)*t.cols]...)
}

// Col returns a copy of column j.
func (t *Tracker) Col(j int) []int {
	out := make([]int, t.Rows())
	for i := range out {
		out[i] = t.data[i*t.cols+j]
	}
	return out
}

// ColByName returns the column with the given name.
func (t *Tracker) ColByName(name string) ([]int, bool) {
	for j, n := range t.names {
		if n == name {
			return t.Col(j), true
		}
	}
	return nil, false
}

// Tip returns a copy of the last row, or nil if the table is empty.
func (t *Tracker) Tip() []int {
	if t.Rows() == 0 {
		return nil
	}
	return t.Row(t.Rows() - 1)
}

// AddColumn appends a column. values aligns with the last rows; missing
// leading rows are filled with values[0] when bfill is set and zero
// otherwise. The table is re-laid once per added column.
func (t *Tracker) AddColumn(name string, values []int, bfill bool) error {
	rows := t.Rows()
	if len(values) > rows {
		return fmt.Errorf("add column %q: %d values for %d rows", name, len(values), rows)
	}
	offset := rows - len(values)
	fill := 0
	if bfill && len(values) > 0 {
		fill = values[0]
	}

	next := make([]int, 0, rows*(t.cols+1))
	for i := 0; i < rows; i++ {
		next = append(next, t.data[i*t.cols:(i+1)*t.cols]...)
		if i < offset {
			next = append(next, fill)
		} else {
			next = append(next, values[i-offset])
		}
	}
	t.data = next
	t.cols++
	t.names = append(t.names, name)
	return nil
}

// Normalized returns the table divided by total, row by row.
func (t *Tracker) Normalized(total float64) [][]float64 {
	out := make([][]float64, t.Rows())
	for i := range out {
		row := make([]float64, t.cols)
		for j := range row {
			row[j] = float64(t.data[i*t.cols+j]) / total
		}
		out[i] = row
	}
	return out
}

// RenderCSV writes header on the first line followed by one row per line.
// An empty header renders the column names joined by sep.
func (t *Tracker) RenderCSV(header string, sep rune) string {
	var buf bytes.Buffer
	if header == "" {
		header = strings.Join(t.names, string(sep))
	}
	buf.WriteString(header)
	buf.WriteByte('\n')

	w := csv.NewWriter(&buf)
	w.Comma = sep
	record := make([]string, t.cols)
	for i := 0; i < t.Rows(); i++ {
		for j := range record {
			record[j] = strconv.Itoa(t.data[i*t.cols+j])
		}
		// Integer fields never need quoting, so Write cannot fail here.
		_ = w.Write(record)
	}
	w.Flush()
	return buf.String()
}
