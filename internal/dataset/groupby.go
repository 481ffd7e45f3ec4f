package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"analyst/internal/stats"
)

// Groups partitions a frame by the formatted value of one column.
type Groups struct {
	frame *Frame
	by    string
	keys  []string
	rows  map[string][]int
}

// GroupBy partitions rows by the named column. Missing keys are dropped.
// Keys are ordered by first appearance.
func (f *Frame) GroupBy(name string) *Groups {
	c := f.mustColumn(name)
	g := &Groups{frame: f, by: name, rows: make(map[string][]int)}
	for i, v := range c.values {
		if v == nil {
			continue
		}
		k := FormatValue(v)
		if _, seen := g.rows[k]; !seen {
			g.keys = append(g.keys, k)
		}
		g.rows[k] = append(g.rows[k], i)
	}
	return g
}

// Keys returns the group keys.
func (g *Groups) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Group returns the rows of one group as a frame (empty when unknown).
func (g *Groups) Group(key string) *Frame {
	return g.frame.Take(g.rows[key])
}

// Count returns group sizes, largest first.
func (g *Groups) Count() []Count {
	tally := make(map[string]int, len(g.keys))
	for k, idx := range g.rows {
		tally[k] = len(idx)
	}
	return sortCounts(tally)
}

// Aggregate is one group's reduced value.
type Aggregate struct {
	Key   string
	Value float64
}

// Agg reduces a numeric column per group. Supported ops: count, sum, mean,
// median, min, max, std. Results are sorted by value, largest first.
func (g *Groups) Agg(column, op string) []Aggregate {
	xs := g.frame.Floats(column)
	reduce, ok := reducers[strings.ToLower(op)]
	if !ok {
		panic(fmt.Sprintf("dataset: unsupported aggregation %q", op))
	}
	out := make([]Aggregate, 0, len(g.keys))
	for _, k := range g.keys {
		vals := make([]float64, len(g.rows[k]))
		for i, j := range g.rows[k] {
			vals[i] = xs[j]
		}
		out = append(out, Aggregate{Key: k, Value: reduce(vals)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Value, out[j].Value
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
	return out
}

var reducers = map[string]func([]float64) float64{
	"count":  func(xs []float64) float64 { return float64(stats.Count(xs)) },
	"sum":    stats.Sum,
	"mean":   stats.Mean,
	"median": stats.Median,
	"min":    stats.Min,
	"max":    stats.Max,
	"std":    stats.StdDev,
}
