// Package dataset holds the column-oriented table the training pipeline
// works on and the CSV and XLSX loaders that produce it.
package dataset

import (
	"math"
	"sort"

	"github.com/uemura/appendicitis/pkg/errors"
)

// Frame is a column-oriented table. Numeric columns use NaN for missing
// values; categorical columns use "".
type Frame struct {
	rows        int
	columns     []string
	numeric     map[string][]float64
	categorical map[string][]string
}

// NewFrame returns an empty frame with the given number of rows.
func NewFrame(rows int) *Frame {
	return &Frame{
		rows:        rows,
		numeric:     make(map[string][]float64),
		categorical: make(map[string][]string),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Has reports whether the frame has a column.
func (f *Frame) Has(name string) bool {
	_, num := f.numeric[name]
	_, cat := f.categorical[name]
	return num || cat
}

// IsNumeric reports whether name is a numeric column.
func (f *Frame) IsNumeric(name string) bool {
	_, ok := f.numeric[name]
	return ok
}

// Numeric returns a numeric column. The slice is shared with the frame.
func (f *Frame) Numeric(name string) ([]float64, bool) {
	v, ok := f.numeric[name]
	return v, ok
}

// Categorical returns a categorical column. The slice is shared with the frame.
func (f *Frame) Categorical(name string) ([]string, bool) {
	v, ok := f.categorical[name]
	return v, ok
}

// SetNumeric adds or replaces a numeric column.
func (f *Frame) SetNumeric(name string, values []float64) error {
	if len(values) != f.rows {
		return errors.NewDimensionError("Frame.SetNumeric("+name+")", f.rows, len(values), 0)
	}
	delete(f.categorical, name)
	if !f.Has(name) {
		f.columns = append(f.columns, name)
	}
	f.numeric[name] = values
	return nil
}

// SetCategorical adds or replaces a categorical column.
func (f *Frame) SetCategorical(name string, values []string) error {
	if len(values) != f.rows {
		return errors.NewDimensionError("Frame.SetCategorical("+name+")", f.rows, len(values), 0)
	}
	delete(f.numeric, name)
	if !f.Has(name) {
		f.columns = append(f.columns, name)
	}
	f.categorical[name] = values
	return nil
}

// Require returns a MissingColumnsError naming every absent column, sorted.
func (f *Frame) Require(op string, names ...string) error {
	var missing []string
	for _, n := range names {
		if !f.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.NewMissingColumnsError(op, missing)
	}
	return nil
}

// Drop returns a copy of the frame without the named columns. Every name
// must exist.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	if err := f.Require("drop", names...); err != nil {
		return nil, err
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := NewFrame(f.rows)
	for _, c := range f.columns {
		if drop[c] {
			continue
		}
		out.copyColumn(f, c, nil)
	}
	return out, nil
}

// Select returns a copy holding only the named columns, in that order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	if err := f.Require("select", names...); err != nil {
		return nil, err
	}
	out := NewFrame(f.rows)
	for _, c := range names {
		out.copyColumn(f, c, nil)
	}
	return out, nil
}

// Rows returns a copy holding the listed rows, in that order.
func (f *Frame) Rows(indices []int) *Frame {
	if indices == nil {
		indices = []int{}
	}
	out := NewFrame(len(indices))
	for _, c := range f.columns {
		out.copyColumn(f, c, indices)
	}
	return out
}

// Filter returns a copy holding the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	indices := []int{}
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			indices = append(indices, i)
		}
	}
	return f.Rows(indices)
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := NewFrame(f.rows)
	for _, c := range f.columns {
		out.copyColumn(f, c, nil)
	}
	return out
}

// CountMissing returns the number of missing cells in a column.
func (f *Frame) CountMissing(name string) int {
	n := 0
	if v, ok := f.numeric[name]; ok {
		for _, x := range v {
			if math.IsNaN(x) {
				n++
			}
		}
	}
	if v, ok := f.categorical[name]; ok {
		for _, x := range v {
			if x == "" {
				n++
			}
		}
	}
	return n
}

// ValueCounts returns how often each non-missing value of a categorical
// column occurs.
func (f *Frame) ValueCounts(name string) map[string]int {
	counts := make(map[string]int)
	for _, v := range f.categorical[name] {
		if v != "" {
			counts[v]++
		}
	}
	return counts
}

func (f *Frame) copyColumn(src *Frame, name string, indices []int) {
	f.columns = append(f.columns, name)
	if v, ok := src.numeric[name]; ok {
		f.numeric[name] = pickFloats(v, indices)
		return
	}
	f.categorical[name] = pickStrings(src.categorical[name], indices)
}

func pickFloats(v []float64, indices []int) []float64 {
	if indices == nil {
		return append([]float64(nil), v...)
	}
	out := make([]float64, len(indices))
	for i, idx := range indices {
		out[i] = v[idx]
	}
	return out
}

func pickStrings(v []string, indices []int) []string {
	if indices == nil {
		return append([]string(nil), v...)
	}
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = v[idx]
	}
	return out
}
