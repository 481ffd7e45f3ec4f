// Package diff computes line diffs between script revisions, used to show
// what a repair changed.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType represents the type of diff line
type LineType int

const (
	LineContext LineType = iota // Unchanged context line
	LineAdded                   // Added line
	LineRemoved                 // Removed line
)

// Line is a single line in a hunk.
type Line struct {
	Type    LineType
	Content string
}

// Hunk is a group of changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// DefaultContext is the number of unchanged lines kept around a change.
const DefaultContext = 3

// op is one line with its position before it in each file.
type op struct {
	typ     LineType
	content string
	oldIdx  int
	newIdx  int
}

// Compute returns the hunks turning before into after.
func Compute(before, after string, context int) []Hunk {
	ops := lineOps(normalize(before), normalize(after))

	var hunks []Hunk
	var start, end = -1, -1
	flush := func() {
		if start >= 0 {
			hunks = append(hunks, buildHunk(ops[start:end]))
		}
	}
	for i, o := range ops {
		if o.typ == LineContext {
			continue
		}
		lo, hi := max(i-context, 0), min(i+context+1, len(ops))
		if start >= 0 && lo <= end {
			end = max(end, hi)
			continue
		}
		flush()
		start, end = lo, hi
	}
	flush()
	return hunks
}

func normalize(s string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}

func lineOps(before, after string) []op {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var ops []op
	oldIdx, newIdx := 0, 0
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			o := op{content: strings.TrimSuffix(line, "\n"), oldIdx: oldIdx, newIdx: newIdx}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				o.typ = LineContext
				oldIdx++
				newIdx++
			case diffmatchpatch.DiffDelete:
				o.typ = LineRemoved
				oldIdx++
			case diffmatchpatch.DiffInsert:
				o.typ = LineAdded
				newIdx++
			}
			ops = append(ops, o)
		}
	}
	return ops
}

func buildHunk(ops []op) Hunk {
	h := Hunk{Lines: make([]Line, 0, len(ops))}
	for _, o := range ops {
		h.Lines = append(h.Lines, Line{Type: o.typ, Content: o.content})
		if o.typ != LineAdded {
			h.OldCount++
		}
		if o.typ != LineRemoved {
			h.NewCount++
		}
	}
	// Unified diff convention: an empty side starts at the line before.
	h.OldStart, h.NewStart = ops[0].oldIdx, ops[0].newIdx
	if h.OldCount > 0 {
		h.OldStart++
	}
	if h.NewCount > 0 {
		h.NewStart++
	}
	return h
}

// Stat counts added and removed lines.
func Stat(hunks []Hunk) (added, removed int) {
	for _, h := range hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				added++
			case LineRemoved:
				removed++
			}
		}
	}
	return added, removed
}

// Unified renders a unified diff, or "" when the inputs are equal.
func Unified(oldName, newName, before, after string) string {
	hunks := Compute(before, after, DefaultContext)
	if len(hunks) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				sb.WriteByte('+')
			case LineRemoved:
				sb.WriteByte('-')
			default:
				sb.WriteByte(' ')
			}
			sb.WriteString(l.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
