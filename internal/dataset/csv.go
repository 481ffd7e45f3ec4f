package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"analyst/internal/logging"
)

// =============================================================================
// CSV INGESTION
// =============================================================================

// DefaultColumnMap renames the export's dotted source headers to the short
// names analysis scripts use.
func DefaultColumnMap() map[string]string {
	return map[string]string{
		"post.text":                  "text",
		"post.posted_time":           "timestamp",
		"post.username":              "username",
		"user.followers_count":       "followers",
		"post_metrics.retweet_count": "retweets",
		"post_metrics.like_count":    "likes",
		"post_metrics.reply_count":   "replies",
	}
}

// LoadOptions controls header mapping and parsing.
type LoadOptions struct {
	// Columns maps source header to canonical name. Nil means DefaultColumnMap.
	Columns map[string]string
	// KeepUnmapped keeps columns that are not in Columns under their source name.
	KeepUnmapped bool
	// Delimiter defaults to ','.
	Delimiter rune
}

// ErrNoColumns is returned when no header matches the column map.
var ErrNoColumns = errors.New("no recognized columns")

// LoadCSV reads a CSV file into a frame.
func LoadCSV(path string, opts LoadOptions) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer fh.Close()

	f, err := ReadCSV(fh, opts)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	logging.Dataset("loaded %s: %d rows, columns=%v", path, f.Len(), f.Columns())
	return f, nil
}

// ReadCSV parses CSV from r. The first record is the header.
func ReadCSV(r io.Reader, opts LoadOptions) (*Frame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input: %w", ErrNoColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	mapping := opts.Columns
	if mapping == nil {
		mapping = DefaultColumnMap()
	}

	type source struct {
		pos  int
		name string
	}
	var keep []source
	seen := make(map[string]bool)
	for i, h := range header {
		h = strings.TrimSpace(h)
		name, ok := mapping[h]
		if !ok {
			if !opts.KeepUnmapped || h == "" {
				continue
			}
			name = h
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		keep = append(keep, source{pos: i, name: name})
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("header %v: %w", header, ErrNoColumns)
	}

	raw := make([][]string, len(keep))
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		for j, s := range keep {
			cell := ""
			if s.pos < len(rec) {
				cell = rec[s.pos]
			}
			raw[j] = append(raw[j], cell)
		}
	}

	cols := make([]*Column, len(keep))
	for j, s := range keep {
		cols[j] = inferColumn(s.name, raw[j])
		logging.DatasetDebug("column %s inferred as %s", s.name, cols[j].Kind)
	}
	return New(cols...)
}

// =============================================================================
// KIND INFERENCE
// =============================================================================

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"Mon Jan 02 15:04:05 -0700 2006",
}

// inferColumn picks the narrowest kind every present cell parses as.
// Blank cells are missing and do not constrain the kind.
func inferColumn(name string, cells []string) *Column {
	for _, kind := range []Kind{KindBool, KindInt, KindFloat, KindTime} {
		if vals, ok := parseAll(cells, kind); ok {
			return NewColumn(name, kind, vals)
		}
	}
	vals := make([]any, len(cells))
	for i, c := range cells {
		if strings.TrimSpace(c) != "" {
			vals[i] = c
		}
	}
	return NewColumn(name, KindString, vals)
}

func parseAll(cells []string, kind Kind) ([]any, bool) {
	vals := make([]any, len(cells))
	present := 0
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		v, ok := parseCell(c, kind)
		if !ok {
			return nil, false
		}
		vals[i] = v
		present++
	}
	return vals, present > 0
}

func parseCell(s string, kind Kind) (any, bool) {
	switch kind {
	case KindBool:
		switch strings.ToLower(s) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	case KindInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	case KindFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	case KindTime:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return nil, false
}
