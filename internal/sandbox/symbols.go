package sandbox

import (
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"analyst/internal/dataset"
	"analyst/internal/stats"
)

// Import paths under which the host packages are visible to scripts.
const (
	DatasetImport = "analyst/dataset"
	StatsImport   = "analyst/stats"
)

// DefaultAllowedPackages is the standard library subset scripts may import.
func DefaultAllowedPackages() []string {
	return []string{
		"bytes",
		"encoding/json",
		"errors",
		"fmt",
		"maps",
		"math",
		"regexp",
		"slices",
		"sort",
		"strconv",
		"strings",
		"text/tabwriter",
		"time",
		"unicode",
		"unicode/utf8",
	}
}

// blockedPackages are never bound, whatever the configuration says.
var blockedPackages = map[string]bool{
	"io/ioutil":     true,
	"net":           true,
	"net/http":      true,
	"os":            true,
	"os/exec":       true,
	"os/signal":     true,
	"path/filepath": true,
	"plugin":        true,
	"reflect":       true,
	"runtime":       true,
	"runtime/debug": true,
	"syscall":       true,
	"unsafe":        true,
}

// Blocked reports whether pkg can never be allow-listed.
func Blocked(pkg string) bool {
	return blockedPackages[pkg] || strings.HasPrefix(pkg, "net/") || strings.HasPrefix(pkg, "os/")
}

// stdlibSymbols filters yaegi's stdlib table down to the allowed packages.
// Keys in the table are "import/path/name".
func stdlibSymbols(allowed map[string]bool) interp.Exports {
	out := make(interp.Exports)
	for key, syms := range stdlib.Symbols {
		path := key
		if i := strings.LastIndex(key, "/"); i >= 0 {
			path = key[:i]
		}
		if allowed[path] && !Blocked(path) {
			out[key] = syms
		}
	}
	return out
}

// hostSymbols exposes the dataset and stats packages. Snapshot hands the
// script its private copy of the frame.
func hostSymbols(snapshot *dataset.Frame) interp.Exports {
	return interp.Exports{
		DatasetImport + "/dataset": {
			"Snapshot":    reflect.ValueOf(func() *dataset.Frame { return snapshot }),
			"FormatValue": reflect.ValueOf(dataset.FormatValue),

			"ErrUnknownColumn": reflect.ValueOf(&dataset.ErrUnknownColumn).Elem(),

			"KindString": reflect.ValueOf(dataset.KindString),
			"KindInt":    reflect.ValueOf(dataset.KindInt),
			"KindFloat":  reflect.ValueOf(dataset.KindFloat),
			"KindBool":   reflect.ValueOf(dataset.KindBool),
			"KindTime":   reflect.ValueOf(dataset.KindTime),

			"Aggregate": reflect.ValueOf((*dataset.Aggregate)(nil)),
			"Column":    reflect.ValueOf((*dataset.Column)(nil)),
			"Count":     reflect.ValueOf((*dataset.Count)(nil)),
			"Frame":     reflect.ValueOf((*dataset.Frame)(nil)),
			"Groups":    reflect.ValueOf((*dataset.Groups)(nil)),
			"Kind":      reflect.ValueOf((*dataset.Kind)(nil)),
			"Row":       reflect.ValueOf((*dataset.Row)(nil)),
			"Summary":   reflect.ValueOf((*dataset.Summary)(nil)),
		},
		StatsImport + "/stats": {
			"Clean":       reflect.ValueOf(stats.Clean),
			"Correlation": reflect.ValueOf(stats.Correlation),
			"Count":       reflect.ValueOf(stats.Count),
			"Max":         reflect.ValueOf(stats.Max),
			"Mean":        reflect.ValueOf(stats.Mean),
			"Median":      reflect.ValueOf(stats.Median),
			"Min":         reflect.ValueOf(stats.Min),
			"Polarity":    reflect.ValueOf(stats.Polarity),
			"Quantile":    reflect.ValueOf(stats.Quantile),
			"Round":       reflect.ValueOf(stats.Round),
			"Sentiment":   reflect.ValueOf(stats.Sentiment),
			"StdDev":      reflect.ValueOf(stats.StdDev),
			"Sum":         reflect.ValueOf(stats.Sum),
			"TermCounts":  reflect.ValueOf(stats.TermCounts),
			"Tokenize":    reflect.ValueOf(stats.Tokenize),
			"TopTerms":    reflect.ValueOf(stats.TopTerms),
			"Variance":    reflect.ValueOf(stats.Variance),

			"TermCount": reflect.ValueOf((*stats.TermCount)(nil)),
		},
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
