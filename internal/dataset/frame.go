// Package dataset holds the tabular snapshot the agent analyses.
//
// A Frame is a set of equally long, typed columns. Frames are treated as
// immutable: every transforming method returns a new Frame and Clone gives a
// private deep copy. Analysis scripts reach the snapshot as the predeclared
// variable df and may call any exported method.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownColumn is returned (or panicked with, from script-facing
// accessors) when a column name is not in the frame.
var ErrUnknownColumn = errors.New("unknown column")

// Kind is the inferred type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
)

// String returns the kind name used in schema summaries.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "string"
	}
}

// Numeric reports whether the kind converts losslessly to float64.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// Column is a named, typed vector. A nil cell is a missing value; non-nil
// cells are string, int64, float64, bool or time.Time according to Kind.
type Column struct {
	Name   string
	Kind   Kind
	values []any
}

// NewColumn builds a column from already typed values.
func NewColumn(name string, kind Kind, values []any) *Column {
	return &Column{Name: name, Kind: kind, values: values}
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.values) }

// Value returns cell i (nil when missing).
func (c *Column) Value(i int) any { return c.values[i] }

// NonNull counts the present cells.
func (c *Column) NonNull() int {
	n := 0
	for _, v := range c.values {
		if v != nil {
			n++
		}
	}
	return n
}

func (c *Column) clone() *Column {
	vals := make([]any, len(c.values))
	copy(vals, c.values)
	return &Column{Name: c.Name, Kind: c.Kind, values: vals}
}

func (c *Column) take(idx []int) *Column {
	vals := make([]any, len(idx))
	for i, j := range idx {
		vals[i] = c.values[j]
	}
	return &Column{Name: c.Name, Kind: c.Kind, values: vals}
}

// Row is one record keyed by column name.
type Row map[string]any

// Frame is the tabular snapshot.
type Frame struct {
	cols    []*Column
	index   map[string]int
	rows    int
	display Display
}

// New assembles a frame; all columns must have the same length and distinct
// names.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols)), display: DefaultDisplay()}
	for i, c := range cols {
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), f.rows)
		}
		f.index[c.Name] = i
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// MustNew is New that panics on error. Intended for tests and literals.
func MustNew(cols ...*Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Frame) derive(cols []*Column, rows int) *Frame {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c.Name] = i
	}
	return &Frame{cols: cols, index: idx, rows: rows, display: f.display}
}

// Len returns the row count.
func (f *Frame) Len() int { return f.rows }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the frame has the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownColumn, name, strings.Join(f.Columns(), ", "))
	}
	return f.cols[i], nil
}

func (f *Frame) mustColumn(name string) *Column {
	c, err := f.Column(name)
	if err != nil {
		panic("dataset: " + err.Error())
	}
	return c
}

// Kind returns the kind of the named column.
func (f *Frame) Kind(name string) Kind {
	return f.mustColumn(name).Kind
}

// Clone returns a deep copy. Cells are immutable scalars, so copying the
// column vectors is enough to isolate the copy.
func (f *Frame) Clone() *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.clone()
	}
	return f.derive(cols, f.rows)
}

// SetDisplay changes how String renders this frame.
func (f *Frame) SetDisplay(d Display) { f.display = d }

// Display returns the current render options.
func (f *Frame) Display() Display { return f.display }

// Strings returns the named column formatted as text ("" for missing).
func (f *Frame) Strings(name string) []string {
	c := f.mustColumn(name)
	out := make([]string, c.Len())
	for i, v := range c.values {
		out[i] = FormatValue(v)
	}
	return out
}

// Floats returns the named column as float64; missing or non-numeric cells
// are NaN.
func (f *Frame) Floats(name string) []float64 {
	c := f.mustColumn(name)
	out := make([]float64, c.Len())
	for i, v := range c.values {
		out[i] = toFloat(v)
	}
	return out
}

// Ints returns the named column as int64; missing or non-numeric cells are 0.
func (f *Frame) Ints(name string) []int64 {
	c := f.mustColumn(name)
	out := make([]int64, c.Len())
	for i, v := range c.values {
		fv := toFloat(v)
		if !math.IsNaN(fv) {
			out[i] = int64(fv)
		}
	}
	return out
}

// Bools returns the named column as bool; missing cells are false.
func (f *Frame) Bools(name string) []bool {
	c := f.mustColumn(name)
	out := make([]bool, c.Len())
	for i, v := range c.values {
		if b, ok := v.(bool); ok {
			out[i] = b
		}
	}
	return out
}

// Times returns the named column as time.Time; missing cells are zero.
func (f *Frame) Times(name string) []time.Time {
	c := f.mustColumn(name)
	out := make([]time.Time, c.Len())
	for i, v := range c.values {
		if t, ok := v.(time.Time); ok {
			out[i] = t
		}
	}
	return out
}

// Row returns record i.
func (f *Frame) Row(i int) Row {
	r := make(Row, len(f.cols))
	for _, c := range f.cols {
		r[c.Name] = c.values[i]
	}
	return r
}

// Rows returns every record.
func (f *Frame) Rows() []Row {
	out := make([]Row, f.rows)
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

// Take returns the rows at the given positions, in that order.
func (f *Frame) Take(idx []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(idx)
	}
	return f.derive(cols, len(idx))
}

// Filter keeps the rows for which keep returns true.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	var idx []int
	for i := 0; i < f.rows; i++ {
		if keep(f.Row(i)) {
			idx = append(idx, i)
		}
	}
	return f.Take(idx)
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > f.rows {
		n = f.rows
	}
	if n < 0 {
		n = 0
	}
	return f.Take(seq(0, n))
}

// Tail returns the last n rows.
func (f *Frame) Tail(n int) *Frame {
	if n > f.rows {
		n = f.rows
	}
	if n < 0 {
		n = 0
	}
	return f.Take(seq(f.rows-n, f.rows))
}

// Select keeps the named columns in the given order.
func (f *Frame) Select(names ...string) *Frame {
	cols := make([]*Column, len(names))
	for i, n := range names {
		cols[i] = f.mustColumn(n).clone()
	}
	return f.derive(cols, f.rows)
}

// SortBy orders rows by the named column. Missing values sort last in both
// directions; the sort is stable.
func (f *Frame) SortBy(name string, descending bool) *Frame {
	c := f.mustColumn(name)
	idx := seq(0, f.rows)
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := c.values[idx[a]], c.values[idx[b]]
		if va == nil || vb == nil {
			return va != nil && vb == nil
		}
		cmp := compareValues(va, vb)
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
	return f.Take(idx)
}

// Count is one entry of a value frequency table.
type Count struct {
	Value string
	N     int
}

// ValueCounts tallies the formatted values of a column, most frequent first,
// ties broken by value. Missing cells are skipped.
func (f *Frame) ValueCounts(name string) []Count {
	c := f.mustColumn(name)
	tally := make(map[string]int)
	for _, v := range c.values {
		if v == nil {
			continue
		}
		tally[FormatValue(v)]++
	}
	return sortCounts(tally)
}

func sortCounts(tally map[string]int) []Count {
	out := make([]Count, 0, len(tally))
	for v, n := range tally {
		out = append(out, Count{Value: v, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

func compareValues(a, b any) int {
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}
	fa, fb := toFloat(a), toFloat(b)
	if !math.IsNaN(fa) && !math.IsNaN(fb) {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(FormatValue(a), FormatValue(b))
}

// FormatValue renders a cell as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	default:
		return fmt.Sprint(x)
	}
}
