package dataset

import (
	"fmt"
	"math"
	"sort"

	"bankpanel/internal/errors"
)

// Missing is the sentinel for an absent numeric value. Missing values
// propagate through derivations and shrink the estimation sample via the
// intersection mask; they are never fatal on their own.
var Missing = math.NaN()

// IsMissing reports whether v is the missing sentinel
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Frame is a columnar bank/quarter panel. Every row is identified by the
// (bank, quarter) pair; all other columns are numeric with NaN for missing.
// Derivation paths never mutate a shared Frame: Filter and Copy return deep
// copies, so each sample combination operates on its own data.
type Frame struct {
	banks    []int64
	quarters []string
	order    []string
	cols     map[string][]float64
}

// NewFrame creates a frame over the given row identifiers
func NewFrame(banks []int64, quarters []string) (*Frame, error) {
	if len(banks) != len(quarters) {
		return nil, errors.NewValidationError(
			fmt.Sprintf("bank and quarter identifiers differ in length: %d vs %d", len(banks), len(quarters)))
	}
	return &Frame{
		banks:    banks,
		quarters: quarters,
		cols:     make(map[string][]float64),
	}, nil
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.banks)
}

// Banks returns the per-row bank identifiers. The slice is shared; callers
// must not modify it.
func (f *Frame) Banks() []int64 {
	return f.banks
}

// Quarters returns the per-row quarter identifiers. The slice is shared;
// callers must not modify it.
func (f *Frame) Quarters() []string {
	return f.quarters
}

// Columns returns the numeric column names in insertion order
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// AddColumn adds a numeric column. The length must match the frame.
func (f *Frame) AddColumn(name string, values []float64) error {
	if len(values) != f.Len() {
		return errors.NewValidationError(
			fmt.Sprintf("column %q has %d values, frame has %d rows", name, len(values), f.Len()))
	}
	if _, exists := f.cols[name]; exists {
		return errors.NewValidationError(fmt.Sprintf("column %q already exists", name))
	}
	f.cols[name] = values
	f.order = append(f.order, name)
	return nil
}

// Column returns the named column, or a missing-artifact error if a prior
// stage did not emit it. The slice is the frame's own storage.
func (f *Frame) Column(name string) ([]float64, error) {
	col, ok := f.cols[name]
	if !ok {
		return nil, errors.NewMissingColumnError(name)
	}
	return col, nil
}

// HasColumn reports whether the named column exists
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// SetColumn replaces the values of an existing column
func (f *Frame) SetColumn(name string, values []float64) error {
	if _, ok := f.cols[name]; !ok {
		return errors.NewMissingColumnError(name)
	}
	if len(values) != f.Len() {
		return errors.NewValidationError(
			fmt.Sprintf("column %q has %d values, frame has %d rows", name, len(values), f.Len()))
	}
	f.cols[name] = values
	return nil
}

// RenameColumn renames a column in place, preserving its order position
func (f *Frame) RenameColumn(from, to string) error {
	col, ok := f.cols[from]
	if !ok {
		return errors.NewMissingColumnError(from)
	}
	if _, exists := f.cols[to]; exists {
		return errors.NewValidationError(fmt.Sprintf("column %q already exists", to))
	}
	delete(f.cols, from)
	f.cols[to] = col
	for i, n := range f.order {
		if n == from {
			f.order[i] = to
			break
		}
	}
	return nil
}

// DropColumn removes a column if present
func (f *Frame) DropColumn(name string) {
	if _, ok := f.cols[name]; !ok {
		return
	}
	delete(f.cols, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Filter returns a deep copy containing only rows where keep is true
func (f *Frame) Filter(keep []bool) (*Frame, error) {
	if len(keep) != f.Len() {
		return nil, errors.NewValidationError(
			fmt.Sprintf("mask has %d entries, frame has %d rows", len(keep), f.Len()))
	}

	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}

	out := &Frame{
		banks:    make([]int64, 0, n),
		quarters: make([]string, 0, n),
		order:    make([]string, len(f.order)),
		cols:     make(map[string][]float64, len(f.cols)),
	}
	copy(out.order, f.order)

	for i, k := range keep {
		if k {
			out.banks = append(out.banks, f.banks[i])
			out.quarters = append(out.quarters, f.quarters[i])
		}
	}
	for name, col := range f.cols {
		dst := make([]float64, 0, n)
		for i, k := range keep {
			if k {
				dst = append(dst, col[i])
			}
		}
		out.cols[name] = dst
	}

	return out, nil
}

// Select returns a frame with the given columns in the given order. Column
// storage is shared with the receiver; use Copy first if both frames will
// be mutated.
func (f *Frame) Select(columns []string) (*Frame, error) {
	out := &Frame{
		banks:    f.banks,
		quarters: f.quarters,
		cols:     make(map[string][]float64, len(columns)),
	}
	for _, name := range columns {
		col, ok := f.cols[name]
		if !ok {
			return nil, errors.NewMissingColumnError(name)
		}
		out.cols[name] = col
		out.order = append(out.order, name)
	}
	return out, nil
}

// Copy returns a deep copy of the frame
func (f *Frame) Copy() *Frame {
	keep := make([]bool, f.Len())
	for i := range keep {
		keep[i] = true
	}
	out, _ := f.Filter(keep)
	return out
}

// SortByBankQuarter sorts rows by (bank, quarter) ascending. Quarter labels
// of the form 2005Q1 order correctly as strings.
func (f *Frame) SortByBankQuarter() {
	idx := make([]int, f.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if f.banks[ia] != f.banks[ib] {
			return f.banks[ia] < f.banks[ib]
		}
		return f.quarters[ia] < f.quarters[ib]
	})

	reorderInt64 := func(s []int64) []int64 {
		out := make([]int64, len(s))
		for i, j := range idx {
			out[i] = s[j]
		}
		return out
	}
	reorderStr := func(s []string) []string {
		out := make([]string, len(s))
		for i, j := range idx {
			out[i] = s[j]
		}
		return out
	}
	reorderFloat := func(s []float64) []float64 {
		out := make([]float64, len(s))
		for i, j := range idx {
			out[i] = s[j]
		}
		return out
	}

	f.banks = reorderInt64(f.banks)
	f.quarters = reorderStr(f.quarters)
	for name, col := range f.cols {
		f.cols[name] = reorderFloat(col)
	}
}
