package dataset

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"analyst/internal/stats"
)

// Display controls how String renders a frame. Zero values mean unlimited.
type Display struct {
	MaxRows     int
	MaxColWidth int
}

// DefaultDisplay matches an interactive console: long frames are elided in
// the middle and long cells are cut.
func DefaultDisplay() Display {
	return Display{MaxRows: 60, MaxColWidth: 50}
}

// FullDisplay renders every row and every cell in full.
func FullDisplay() Display {
	return Display{}
}

// String renders the frame as an aligned text table honouring the display
// options. fmt.Println(df) from a script ends up here.
func (f *Frame) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	fmt.Fprint(w, "\t")
	for _, c := range f.cols {
		fmt.Fprintf(w, "%s\t", f.cell(c.Name))
	}
	fmt.Fprintln(w)

	rows := seq(0, f.rows)
	elided := false
	if limit := f.display.MaxRows; limit > 0 && f.rows > limit {
		half := limit / 2
		rows = append(seq(0, half), seq(f.rows-(limit-half), f.rows)...)
		elided = true
	}
	for n, i := range rows {
		if elided && n == f.display.MaxRows/2 {
			fmt.Fprint(w, "...\t")
			for range f.cols {
				fmt.Fprint(w, "...\t")
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%d\t", i)
		for _, c := range f.cols {
			v := c.values[i]
			s := "NaN"
			if v != nil {
				s = FormatValue(v)
			}
			fmt.Fprintf(w, "%s\t", f.cell(s))
		}
		fmt.Fprintln(w)
	}
	_ = w.Flush()

	if elided {
		fmt.Fprintf(&sb, "\n[%d rows x %d columns]\n", f.rows, len(f.cols))
	}
	return sb.String()
}

func (f *Frame) cell(s string) string {
	s = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(s)
	width := f.display.MaxColWidth
	if width <= 3 || utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-3]) + "..."
}

// Info summarizes the schema: row count, then one line per column with its
// kind and non-null count. This is the text handed to the planner.
func (f *Frame) Info() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The dataset `df` has %d rows and these columns:\n", f.rows)
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, " #\tColumn\tNon-Null Count\tKind\t")
	fmt.Fprintln(w, "---\t------\t--------------\t----\t")
	for i, c := range f.cols {
		fmt.Fprintf(w, " %d\t%s\t%d non-null\t%s\t\n", i, c.Name, c.NonNull(), c.Kind)
	}
	_ = w.Flush()
	return sb.String()
}

// Summary is the per-column output of Describe.
type Summary struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q25    float64
	Median float64
	Q75    float64
	Max    float64
}

// Describe computes summary statistics for every numeric column.
func (f *Frame) Describe() []Summary {
	var out []Summary
	for _, c := range f.cols {
		if !c.Kind.Numeric() {
			continue
		}
		xs := f.Floats(c.Name)
		out = append(out, Summary{
			Column: c.Name,
			Count:  stats.Count(xs),
			Mean:   stats.Mean(xs),
			Std:    stats.StdDev(xs),
			Min:    stats.Min(xs),
			Q25:    stats.Quantile(xs, 0.25),
			Median: stats.Median(xs),
			Q75:    stats.Quantile(xs, 0.75),
			Max:    stats.Max(xs),
		})
	}
	return out
}

// DescribeString renders Describe as a table with statistics as rows.
func (f *Frame) DescribeString() string {
	sums := f.Describe()
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "\t")
	for _, s := range sums {
		fmt.Fprintf(w, "%s\t", s.Column)
	}
	fmt.Fprintln(w)
	line := func(label string, get func(Summary) float64) {
		fmt.Fprintf(w, "%s\t", label)
		for _, s := range sums {
			fmt.Fprintf(w, "%.2f\t", get(s))
		}
		fmt.Fprintln(w)
	}
	line("count", func(s Summary) float64 { return float64(s.Count) })
	line("mean", func(s Summary) float64 { return s.Mean })
	line("std", func(s Summary) float64 { return s.Std })
	line("min", func(s Summary) float64 { return s.Min })
	line("25%", func(s Summary) float64 { return s.Q25 })
	line("50%", func(s Summary) float64 { return s.Median })
	line("75%", func(s Summary) float64 { return s.Q75 })
	line("max", func(s Summary) float64 { return s.Max })
	_ = w.Flush()
	return sb.String()
}
